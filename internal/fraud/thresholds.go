package fraud

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ClockTime is a wall-clock time of day, minute precision
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM"
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) minuteOfDay() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Thresholds holds the tunable limits of the fraud rules
type Thresholds struct {
	MediumRiskScore         decimal.Decimal // Scores at or above are medium risk
	HighRiskScore           decimal.Decimal // Scores at or above are high risk
	ConsumableCategory      string          // Exact category the quantity rule applies to
	ConsumableQuantityLimit int             // Quantities above this are excessive
	MidnightStart           ClockTime       // First minute of the late-night window
	MidnightEnd             ClockTime       // Last minute of the window after midnight
	DuplicateTestWindow     time.Duration
	Location                *time.Location // Zone used to read timestamps; nil keeps each timestamp's own zone
}

// DefaultThresholds returns the standard rule limits
func DefaultThresholds() Thresholds {
	return Thresholds{
		MediumRiskScore:         decimal.RequireFromString("0.2"),
		HighRiskScore:           decimal.RequireFromString("0.5"),
		ConsumableCategory:      "Consumable",
		ConsumableQuantityLimit: 10,
		MidnightStart:           ClockTime{Hour: 23, Minute: 59},
		MidnightEnd:             ClockTime{Hour: 0, Minute: 0},
		DuplicateTestWindow:     48 * time.Hour,
	}
}

// Validate ensures the thresholds are within range and consistent
func (t Thresholds) Validate() error {
	one := decimal.NewFromInt(1)

	if t.MediumRiskScore.IsNegative() || t.MediumRiskScore.GreaterThan(one) {
		return fmt.Errorf("MediumRiskScore must be between 0.0 and 1.0, got %s", t.MediumRiskScore)
	}
	if t.HighRiskScore.IsNegative() || t.HighRiskScore.GreaterThan(one) {
		return fmt.Errorf("HighRiskScore must be between 0.0 and 1.0, got %s", t.HighRiskScore)
	}
	if !t.HighRiskScore.GreaterThan(t.MediumRiskScore) {
		return fmt.Errorf("HighRiskScore must be greater than MediumRiskScore (high: %s, medium: %s)",
			t.HighRiskScore, t.MediumRiskScore)
	}
	if t.ConsumableQuantityLimit < 0 {
		return fmt.Errorf("ConsumableQuantityLimit must not be negative, got %d", t.ConsumableQuantityLimit)
	}
	for _, c := range []ClockTime{t.MidnightStart, t.MidnightEnd} {
		if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
			return fmt.Errorf("invalid clock time %s", c)
		}
	}
	if t.DuplicateTestWindow < 0 {
		return fmt.Errorf("DuplicateTestWindow must not be negative, got %s", t.DuplicateTestWindow)
	}
	return nil
}

// inMidnightWindow reports whether ts falls in the late-night window, which
// runs from MidnightStart through the end of the day and from 00:00 through
// MidnightEnd.
func (t Thresholds) inMidnightWindow(ts time.Time) bool {
	if t.Location != nil {
		ts = ts.In(t.Location)
	}
	m := ts.Hour()*60 + ts.Minute()
	return m >= t.MidnightStart.minuteOfDay() || m <= t.MidnightEnd.minuteOfDay()
}

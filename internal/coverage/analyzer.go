// Package coverage estimates how much of a hospital bill an insurance policy
// is likely to pay and explains where the rest goes.
package coverage

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/medbill-audit/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Analyzer applies a policy's exclusions, daily limits, copay and sum insured
// to a bill. It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates a new coverage analyzer
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// Option adjusts a single analysis
type Option func(*options)

type options struct {
	admission *time.Time
	discharge *time.Time
}

// WithHospitalization supplies the stay dates used to check items against
// the policy's pre- and post-hospitalization windows. Either may be nil.
func WithHospitalization(admission, discharge *time.Time) Option {
	return func(o *options) {
		o.admission = admission
		o.discharge = discharge
	}
}

// Analyze computes the coverage breakdown of a bill under policy.
func (a *Analyzer) Analyze(items []models.BillLineItem, policy models.PolicyDetails, opts ...Option) *models.InsuranceAnalysis {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		breakdown    models.CoverageBreakdown
		warnings     = make([]string, 0)
		totalClaimed = decimal.Zero
		totalCovered = decimal.Zero
	)
	zeroBreakdown(&breakdown)

	for _, item := range items {
		totalClaimed = totalClaimed.Add(item.TotalPrice)

		if w := windowWarning(item, policy, o); w != "" {
			warnings = append(warnings, w)
		}

		desc := strings.ToLower(item.Description)

		if isExcluded(desc, policy.Exclusions) {
			warnings = append(warnings, fmt.Sprintf("%s is excluded from coverage", item.Description))
			bucket := categorize(&breakdown, item)
			bucket.Claimed = bucket.Claimed.Add(item.TotalPrice)
			bucket.Excluded = bucket.Excluded.Add(item.TotalPrice)
			continue
		}

		covered := item.TotalPrice

		switch {
		case strings.Contains(desc, "general ward") || strings.Contains(desc, "room"):
			breakdown.RoomCharges.Claimed = breakdown.RoomCharges.Claimed.Add(item.TotalPrice)
			if excess, over := dailyExcess(item, policy.RoomRentLimit); over {
				covered = covered.Sub(excess)
				warnings = append(warnings, fmt.Sprintf("Room rent (₹%s/day) exceeds limit (₹%s/day). Excess: ₹%s",
					item.UnitPrice, policy.RoomRentLimit, excess))
			}
			breakdown.RoomCharges.Covered = breakdown.RoomCharges.Covered.Add(covered)

		case strings.Contains(desc, "icu"):
			breakdown.ICUCharges.Claimed = breakdown.ICUCharges.Claimed.Add(item.TotalPrice)
			if excess, over := dailyExcess(item, policy.ICULimit); over {
				covered = covered.Sub(excess)
				warnings = append(warnings, fmt.Sprintf("ICU charges (₹%s/day) exceed limit (₹%s/day). Excess: ₹%s",
					item.UnitPrice, policy.ICULimit, excess))
			}
			breakdown.ICUCharges.Covered = breakdown.ICUCharges.Covered.Add(covered)

		default:
			bucket := categorize(&breakdown, item)
			bucket.Claimed = bucket.Claimed.Add(item.TotalPrice)
			bucket.Covered = bucket.Covered.Add(covered)
		}

		totalCovered = totalCovered.Add(covered)
	}

	copay := totalCovered.Mul(policy.CopayPercentage).Div(hundred)
	totalCovered = totalCovered.Sub(copay)

	if totalCovered.GreaterThan(policy.SumInsured) {
		warnings = append(warnings, fmt.Sprintf("Total claim (₹%s) exceeds sum insured (₹%s)",
			totalCovered.StringFixed(2), policy.SumInsured))
		totalCovered = policy.SumInsured
	}

	// Rounding error is absorbed by the out-of-pocket figure so the two
	// always add up to the claimed total.
	likelyCovered := totalCovered.Round(0)
	claimed := totalClaimed.Round(0)

	result := &models.InsuranceAnalysis{
		LikelyCovered: likelyCovered,
		OutOfPocket:   claimed.Sub(likelyCovered),
		Warnings:      warnings,
		Breakdown:     breakdown,
		CopayAmount:   copay.Round(0),
		TotalClaimed:  claimed,
	}

	a.logger.Debug("Coverage analysis completed",
		zap.String("policy", policy.Name),
		zap.Int("items", len(items)),
		zap.String("claimed", claimed.String()),
		zap.String("likely_covered", likelyCovered.String()),
		zap.Int("warnings", len(warnings)))

	return result
}

// dailyExcess returns the amount by which a per-day rate exceeds limit, over
// the item's quantity of days
func dailyExcess(item models.BillLineItem, limit decimal.Decimal) (decimal.Decimal, bool) {
	if !item.UnitPrice.GreaterThan(limit) {
		return decimal.Zero, false
	}
	perDay := item.UnitPrice.Sub(limit)
	return perDay.Mul(decimal.NewFromInt(int64(item.Quantity))), true
}

func isExcluded(desc string, exclusions []string) bool {
	for _, ex := range exclusions {
		if strings.Contains(desc, strings.ToLower(ex)) {
			return true
		}
	}
	return false
}

// windowWarning flags items dated outside the pre/post-hospitalization
// window. It never changes amounts.
func windowWarning(item models.BillLineItem, policy models.PolicyDetails, o options) string {
	if item.Timestamp == nil {
		return ""
	}
	ts := *item.Timestamp

	if o.admission != nil && policy.PreHospitalizationDays != nil {
		earliest := o.admission.AddDate(0, 0, -*policy.PreHospitalizationDays)
		if ts.Before(earliest) {
			return fmt.Sprintf("%s falls outside the policy's hospitalization window", item.Description)
		}
	}
	if o.discharge != nil && policy.PostHospitalizationDays != nil {
		latest := o.discharge.AddDate(0, 0, *policy.PostHospitalizationDays)
		if ts.After(latest) {
			return fmt.Sprintf("%s falls outside the policy's hospitalization window", item.Description)
		}
	}
	return ""
}

func zeroBreakdown(b *models.CoverageBreakdown) {
	for _, c := range []*models.CategoryAmounts{
		&b.RoomCharges, &b.ICUCharges, &b.Tests, &b.Medications, &b.Consumables, &b.Other,
	} {
		*c = models.CategoryAmounts{Claimed: decimal.Zero, Covered: decimal.Zero, Excluded: decimal.Zero}
	}
}

package fraud

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Risk tiers
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

const (
	lowRiskMessage  = "Low risk of fraud. Most charges appear reasonable."
	darkPatternNote = "Dark pattern detected: Items added at 11:59 PM."
)

// RiskTier classifies a fraud score
func (t Thresholds) RiskTier(score decimal.Decimal) string {
	switch {
	case score.LessThan(t.MediumRiskScore):
		return RiskLow
	case score.LessThan(t.HighRiskScore):
		return RiskMedium
	default:
		return RiskHigh
	}
}

// explain builds the human-readable summary for a score tier
func (a *Analyzer) explain(score decimal.Decimal, suspiciousCount int, midnight bool) string {
	switch a.thresholds.RiskTier(score) {
	case RiskLow:
		return lowRiskMessage
	case RiskMedium:
		note := ""
		if midnight {
			note = darkPatternNote
		}
		return fmt.Sprintf("Medium fraud risk detected. %d item(s) have pricing concerns. %s", suspiciousCount, note)
	default:
		note := ""
		if midnight {
			note = darkPatternNote + " "
		}
		return fmt.Sprintf("High fraud risk! %d item(s) flagged. %sSignificant overcharging detected. Consider filing a complaint.",
			suspiciousCount, note)
	}
}

package models

import "github.com/shopspring/decimal"

// Global fraud flags
const (
	FlagMidnightBilling = "midnight_billing"
)

// SuspiciousItem is a line item flagged by at least one fraud rule,
// or one whose price could not be verified
type SuspiciousItem struct {
	Description string          `json:"description"`
	Category    string          `json:"category"`
	BilledPrice decimal.Decimal `json:"billedPrice"`
	ExpectedMin decimal.Decimal `json:"expectedMin"`
	ExpectedMax decimal.Decimal `json:"expectedMax"`
	Overcharge  decimal.Decimal `json:"overcharge"` // max(0, billedPrice - expectedMax)
	Reasons     []string        `json:"reasons"`
}

// FraudAnalysisResult is the outcome of analyzing a bill for fraud
type FraudAnalysisResult struct {
	FraudScore             decimal.Decimal  `json:"fraudScore"` // [0, 1]
	EstimatedOverchargeMin decimal.Decimal  `json:"estimatedOverchargeMin"`
	EstimatedOverchargeMax decimal.Decimal  `json:"estimatedOverchargeMax"`
	AnalysisExplanation    string           `json:"analysisExplanation"`
	SuspiciousItems        []SuspiciousItem `json:"suspiciousItems"`
	Flags                  []string         `json:"flags,omitempty"`
}

// HasFlag reports whether a global flag was raised
func (r *FraudAnalysisResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

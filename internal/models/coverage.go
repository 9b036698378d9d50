package models

import "github.com/shopspring/decimal"

// PolicyDetails is a named insurance policy rule set
type PolicyDetails struct {
	Name                    string          `json:"name" yaml:"name"`
	RoomRentLimit           decimal.Decimal `json:"room_rent_limit" yaml:"room_rent_limit"` // Per day
	ICULimit                decimal.Decimal `json:"icu_limit" yaml:"icu_limit"`             // Per day
	CopayPercentage         decimal.Decimal `json:"copay_percentage" yaml:"copay_percentage"`
	SumInsured              decimal.Decimal `json:"sum_insured" yaml:"sum_insured"`
	Exclusions              []string        `json:"exclusions" yaml:"exclusions"`
	PreHospitalizationDays  *int            `json:"pre_hospitalization_days,omitempty" yaml:"pre_hospitalization_days,omitempty"`
	PostHospitalizationDays *int            `json:"post_hospitalization_days,omitempty" yaml:"post_hospitalization_days,omitempty"`
}

// CategoryAmounts holds the claimed, covered and excluded totals of one coverage category
type CategoryAmounts struct {
	Claimed  decimal.Decimal `json:"claimed"`
	Covered  decimal.Decimal `json:"covered"`
	Excluded decimal.Decimal `json:"excluded"`
}

// CoverageBreakdown splits a claim into its six fixed categories
type CoverageBreakdown struct {
	RoomCharges CategoryAmounts `json:"roomCharges"`
	ICUCharges  CategoryAmounts `json:"icuCharges"`
	Tests       CategoryAmounts `json:"tests"`
	Medications CategoryAmounts `json:"medications"`
	Consumables CategoryAmounts `json:"consumables"`
	Other       CategoryAmounts `json:"other"`
}

// Categories returns the breakdown as labelled rows in display order
func (b *CoverageBreakdown) Categories() []NamedCategory {
	return []NamedCategory{
		{Name: "Room Charges", Amounts: b.RoomCharges},
		{Name: "ICU Charges", Amounts: b.ICUCharges},
		{Name: "Tests", Amounts: b.Tests},
		{Name: "Medications", Amounts: b.Medications},
		{Name: "Consumables", Amounts: b.Consumables},
		{Name: "Other", Amounts: b.Other},
	}
}

// NamedCategory pairs a breakdown category with its display name
type NamedCategory struct {
	Name    string
	Amounts CategoryAmounts
}

// InsuranceAnalysis is the outcome of a coverage analysis.
// LikelyCovered + OutOfPocket always equals TotalClaimed.
type InsuranceAnalysis struct {
	LikelyCovered decimal.Decimal   `json:"likelyCovered"`
	OutOfPocket   decimal.Decimal   `json:"outOfPocket"`
	Warnings      []string          `json:"warnings"`
	Breakdown     CoverageBreakdown `json:"breakdown"`
	CopayAmount   decimal.Decimal   `json:"copayAmount"`
	TotalClaimed  decimal.Decimal   `json:"totalClaimed"`
}

package coverage

import (
	"testing"
	"time"

	"github.com/garyjia/medbill-audit/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(desc, category string, qty int, unit string) models.BillLineItem {
	u := dec(unit)
	return models.BillLineItem{
		Description: desc,
		Category:    category,
		Quantity:    qty,
		UnitPrice:   u,
		TotalPrice:  u.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func testPolicy() models.PolicyDetails {
	return models.PolicyDetails{
		Name:            "Test Cover",
		RoomRentLimit:   dec("5000"),
		ICULimit:        dec("10000"),
		CopayPercentage: decimal.Zero,
		SumInsured:      dec("500000"),
		Exclusions:      []string{"cosmetic", "Dental"},
	}
}

func intPtr(v int) *int { return &v }

func TestRoomRentAboveLimit(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.Local)
	room := item("Room Rent (Deluxe)", "Room", 3, "8000")
	room.Timestamp = &ts

	result := NewAnalyzer(nil).Analyze([]models.BillLineItem{room}, testPolicy())

	assert.True(t, result.Breakdown.RoomCharges.Claimed.Equal(dec("24000")))
	assert.True(t, result.Breakdown.RoomCharges.Covered.Equal(dec("15000")))
	assert.True(t, result.LikelyCovered.Equal(dec("15000")))
	assert.True(t, result.OutOfPocket.Equal(dec("9000")))
	assert.True(t, result.TotalClaimed.Equal(dec("24000")))
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Room rent (₹8000/day) exceeds limit (₹5000/day). Excess: ₹9000", result.Warnings[0])
}

func TestRoomWithinLimit(t *testing.T) {
	result := NewAnalyzer(nil).Analyze([]models.BillLineItem{
		item("General Ward Bed", "Room", 2, "4000"),
	}, testPolicy())

	assert.True(t, result.Breakdown.RoomCharges.Covered.Equal(dec("8000")))
	assert.Empty(t, result.Warnings)
	assert.NotNil(t, result.Warnings)
}

func TestICUAboveLimit(t *testing.T) {
	result := NewAnalyzer(nil).Analyze([]models.BillLineItem{
		item("ICU Bed Charges", "ICU", 2, "12500"),
	}, testPolicy())

	assert.True(t, result.Breakdown.ICUCharges.Claimed.Equal(dec("25000")))
	assert.True(t, result.Breakdown.ICUCharges.Covered.Equal(dec("20000")))
	assert.True(t, result.Breakdown.RoomCharges.Claimed.IsZero())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "ICU charges (₹12500/day) exceed limit (₹10000/day). Excess: ₹5000", result.Warnings[0])
}

func TestRoomRuleTakesPrecedenceOverICU(t *testing.T) {
	result := NewAnalyzer(nil).Analyze([]models.BillLineItem{
		item("ICU Room", "ICU", 1, "6000"),
	}, testPolicy())

	assert.True(t, result.Breakdown.RoomCharges.Claimed.Equal(dec("6000")))
	assert.True(t, result.Breakdown.RoomCharges.Covered.Equal(dec("5000")))
	assert.True(t, result.Breakdown.ICUCharges.Claimed.IsZero())
}

func TestCategorization(t *testing.T) {
	tests := []struct {
		name   string
		item   models.BillLineItem
		bucket func(models.CoverageBreakdown) models.CategoryAmounts
	}{
		{
			name:   "test by description",
			item:   item("Thyroid Test", "Lab", 1, "800"),
			bucket: func(b models.CoverageBreakdown) models.CategoryAmounts { return b.Tests },
		},
		{
			name:   "x-ray by description",
			item:   item("Chest X-Ray", "Radiology", 1, "600"),
			bucket: func(b models.CoverageBreakdown) models.CategoryAmounts { return b.Tests },
		},
		{
			name:   "imaging by category",
			item:   item("MRI Brain", "Imaging", 1, "9000"),
			bucket: func(b models.CoverageBreakdown) models.CategoryAmounts { return b.Tests },
		},
		{
			name:   "medication by description",
			item:   item("Paracetamol Tablet", "Pharmacy", 10, "2"),
			bucket: func(b models.CoverageBreakdown) models.CategoryAmounts { return b.Medications },
		},
		{
			name:   "medication by category",
			item:   item("Amoxicillin", "Antibiotic", 1, "300"),
			bucket: func(b models.CoverageBreakdown) models.CategoryAmounts { return b.Medications },
		},
		{
			name:   "consumable by description",
			item:   item("Surgical Gloves", "Supplies", 4, "50"),
			bucket: func(b models.CoverageBreakdown) models.CategoryAmounts { return b.Consumables },
		},
		{
			name:   "consumable by category",
			item:   item("Bandage Roll", "Consumable", 2, "40"),
			bucket: func(b models.CoverageBreakdown) models.CategoryAmounts { return b.Consumables },
		},
		{
			name:   "test wins over medication",
			item:   item("Injection Test Dose", "Pharmacy", 1, "100"),
			bucket: func(b models.CoverageBreakdown) models.CategoryAmounts { return b.Tests },
		},
		{
			name:   "other",
			item:   item("Doctor Consultation", "Consultation", 1, "1000"),
			bucket: func(b models.CoverageBreakdown) models.CategoryAmounts { return b.Other },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewAnalyzer(nil).Analyze([]models.BillLineItem{tt.item}, testPolicy())
			got := tt.bucket(result.Breakdown)
			assert.True(t, got.Claimed.Equal(tt.item.TotalPrice), "claimed %s", got.Claimed)
			assert.True(t, got.Covered.Equal(tt.item.TotalPrice), "covered %s", got.Covered)
			assert.True(t, got.Excluded.IsZero())
		})
	}
}

func TestExclusionContributesNothingToCovered(t *testing.T) {
	items := []models.BillLineItem{
		item("Cosmetic Room Upgrade", "Room", 2, "9000"),
		item("dental x-ray", "Imaging", 1, "700"),
		item("Cosmetic Cream Tablet", "Pharmacy", 3, "100"),
	}

	result := NewAnalyzer(nil).Analyze(items, testPolicy())

	assert.True(t, result.LikelyCovered.IsZero())
	assert.True(t, result.OutOfPocket.Equal(dec("19000")))

	// Excluded room items fall through to keyword categorization.
	assert.True(t, result.Breakdown.RoomCharges.Claimed.IsZero())
	assert.True(t, result.Breakdown.Other.Excluded.Equal(dec("18000")))
	assert.True(t, result.Breakdown.Tests.Excluded.Equal(dec("700")))
	assert.True(t, result.Breakdown.Medications.Excluded.Equal(dec("300")))

	for _, c := range result.Breakdown.Categories() {
		assert.True(t, c.Amounts.Covered.IsZero(), c.Name)
	}

	assert.Equal(t, []string{
		"Cosmetic Room Upgrade is excluded from coverage",
		"dental x-ray is excluded from coverage",
		"Cosmetic Cream Tablet is excluded from coverage",
	}, result.Warnings)
}

func TestCopay(t *testing.T) {
	policy := testPolicy()
	policy.CopayPercentage = dec("10")

	result := NewAnalyzer(nil).Analyze([]models.BillLineItem{
		item("Blood Test", "Lab", 1, "1234"),
		item("Paracetamol Tablet", "Pharmacy", 1, "99"),
	}, policy)

	// 1333 * 0.9 = 1199.7
	assert.True(t, result.CopayAmount.Equal(dec("133")))
	assert.True(t, result.LikelyCovered.Equal(dec("1200")))
	assert.True(t, result.OutOfPocket.Equal(dec("133")))
	assert.True(t, result.TotalClaimed.Equal(dec("1333")))

	// Breakdown is reported before copay.
	assert.True(t, result.Breakdown.Tests.Covered.Equal(dec("1234")))
}

func TestSumInsuredClamp(t *testing.T) {
	policy := testPolicy()
	policy.SumInsured = dec("10000")

	result := NewAnalyzer(nil).Analyze([]models.BillLineItem{
		item("CT Scan", "Imaging", 1, "7500.50"),
		item("Surgical Gloves", "Consumable", 100, "50"),
	}, policy)

	assert.True(t, result.LikelyCovered.Equal(dec("10000")))
	assert.True(t, result.OutOfPocket.Equal(dec("2501")))
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Total claim (₹12500.50) exceeds sum insured (₹10000)", result.Warnings[0])
}

func TestCoverageReconciles(t *testing.T) {
	policies := []models.PolicyDetails{testPolicy()}
	withCopay := testPolicy()
	withCopay.CopayPercentage = dec("12.5")
	withCopay.SumInsured = dec("20000")
	policies = append(policies, withCopay)

	bills := [][]models.BillLineItem{
		nil,
		{item("Room Rent", "Room", 3, "8000.40")},
		{
			item("ICU Bed", "ICU", 2, "15000.75"),
			item("Cosmetic Procedure", "Other", 1, "5000"),
			item("Blood Test", "Lab", 1, "333.33"),
			item("Syringe", "Consumable", 25, "12.49"),
		},
	}

	analyzer := NewAnalyzer(nil)
	for _, policy := range policies {
		for _, bill := range bills {
			result := analyzer.Analyze(bill, policy)
			sum := result.LikelyCovered.Add(result.OutOfPocket)
			assert.True(t, sum.Sub(result.TotalClaimed).Abs().LessThanOrEqual(decimal.NewFromInt(1)))
			assert.True(t, result.LikelyCovered.LessThanOrEqual(policy.SumInsured))
		}
	}
}

func TestHospitalizationWindow(t *testing.T) {
	policy := testPolicy()
	policy.PreHospitalizationDays = intPtr(30)
	policy.PostHospitalizationDays = intPtr(60)

	admission := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	discharge := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	stamp := func(i models.BillLineItem, ts time.Time) models.BillLineItem {
		i.Timestamp = &ts
		return i
	}

	items := []models.BillLineItem{
		stamp(item("Early Blood Test", "Lab", 1, "500"), admission.AddDate(0, 0, -31)),
		stamp(item("Pre-admission X-Ray", "Imaging", 1, "500"), admission.AddDate(0, 0, -30)),
		stamp(item("Follow-up Scan", "Imaging", 1, "500"), discharge.AddDate(0, 0, 60)),
		stamp(item("Late Medicine", "Pharmacy", 1, "500"), discharge.AddDate(0, 0, 61)),
		item("Undated Tablet", "Pharmacy", 1, "500"),
	}

	analyzer := NewAnalyzer(nil)
	result := analyzer.Analyze(items, policy, WithHospitalization(&admission, &discharge))

	assert.Equal(t, []string{
		"Early Blood Test falls outside the policy's hospitalization window",
		"Late Medicine falls outside the policy's hospitalization window",
	}, result.Warnings)
	assert.True(t, result.LikelyCovered.Equal(dec("2500")))

	plain := analyzer.Analyze(items, policy)
	assert.Empty(t, plain.Warnings)
	assert.True(t, plain.LikelyCovered.Equal(result.LikelyCovered))
}

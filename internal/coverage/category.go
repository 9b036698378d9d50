package coverage

import (
	"strings"

	"github.com/garyjia/medbill-audit/internal/models"
)

// keywordRule routes an item to a breakdown category when its description or
// category contains one of the keywords
type keywordRule struct {
	descKeywords     []string
	categoryKeywords []string
	bucket           func(*models.CoverageBreakdown) *models.CategoryAmounts
}

// categoryRules are evaluated in order; the first match wins
var categoryRules = []keywordRule{
	{
		descKeywords:     []string{"test", "scan", "ray"},
		categoryKeywords: []string{"blood test", "imaging", "diagnostic"},
		bucket:           func(b *models.CoverageBreakdown) *models.CategoryAmounts { return &b.Tests },
	},
	{
		descKeywords:     []string{"tablet", "capsule", "injection", "medicine"},
		categoryKeywords: []string{"analgesic", "antibiotic"},
		bucket:           func(b *models.CoverageBreakdown) *models.CategoryAmounts { return &b.Medications },
	},
	{
		descKeywords:     []string{"glove", "syringe", "ppe", "cotton"},
		categoryKeywords: []string{"consumable"},
		bucket:           func(b *models.CoverageBreakdown) *models.CategoryAmounts { return &b.Consumables },
	},
}

// categorize returns the breakdown bucket for a non-room, non-ICU item
func categorize(b *models.CoverageBreakdown, item models.BillLineItem) *models.CategoryAmounts {
	desc := strings.ToLower(item.Description)
	cat := strings.ToLower(item.Category)

	for _, rule := range categoryRules {
		if containsAny(desc, rule.descKeywords) || containsAny(cat, rule.categoryKeywords) {
			return rule.bucket(b)
		}
	}
	return &b.Other
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

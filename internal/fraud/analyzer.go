// Package fraud flags suspicious hospital bill line items and scores the
// share of a bill that looks overcharged.
package fraud

import (
	"fmt"

	"github.com/garyjia/medbill-audit/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Rule reasons
const (
	ReasonUnknownItem  = "Unknown item - cannot verify pricing"
	ReasonMidnightItem = "⚠️ 11:59 PM Dark Pattern: Item added at suspicious time"
)

// PriceLookup resolves a bill description to its expected per-unit price range
type PriceLookup interface {
	LookupPrice(description string) (models.StandardPriceEntry, bool)
}

// Analyzer checks bills against reference prices. It holds no mutable state
// and is safe for concurrent use.
type Analyzer struct {
	prices     PriceLookup
	thresholds Thresholds
	logger     *zap.Logger
}

// NewAnalyzer creates a new fraud analyzer
func NewAnalyzer(prices PriceLookup, thresholds Thresholds, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		prices:     prices,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Thresholds returns the limits the analyzer applies
func (a *Analyzer) Thresholds() Thresholds {
	return a.thresholds
}

// Analyze evaluates every line item and aggregates a fraud score.
//
// Items with no reference price are listed as unverifiable but do not count
// toward the score. The score is the flagged share of the bill total, capped
// at 1, and 0 for a zero-total bill.
func (a *Analyzer) Analyze(items []models.BillLineItem) *models.FraudAnalysisResult {
	var (
		suspiciousAmount = decimal.Zero
		overchargeMin    = decimal.Zero
		overchargeMax    = decimal.Zero
		billTotal        = decimal.Zero
		midnight         bool
	)
	suspicious := make([]models.SuspiciousItem, 0)

	for _, item := range items {
		billTotal = billTotal.Add(item.TotalPrice)

		standard, ok := a.prices.LookupPrice(item.Description)
		if !ok {
			suspicious = append(suspicious, models.SuspiciousItem{
				Description: item.Description,
				Category:    item.Category,
				BilledPrice: item.TotalPrice,
				ExpectedMin: decimal.Zero,
				ExpectedMax: decimal.Zero,
				Overcharge:  decimal.Zero,
				Reasons:     []string{ReasonUnknownItem},
			})
			continue
		}

		check := a.evaluate(item, standard.Scale(item.Quantity))
		if check.midnight {
			midnight = true
		}
		if !check.suspicious() {
			continue
		}

		overchargeMin = overchargeMin.Add(check.overcharge)
		overchargeMax = overchargeMax.Add(check.overcharge)
		suspiciousAmount = suspiciousAmount.Add(item.TotalPrice)
		suspicious = append(suspicious, models.SuspiciousItem{
			Description: item.Description,
			Category:    item.Category,
			BilledPrice: item.TotalPrice,
			ExpectedMin: check.expected.Min,
			ExpectedMax: check.expected.Max,
			Overcharge:  check.overcharge,
			Reasons:     check.reasons,
		})
	}

	score := fraudScore(suspiciousAmount, billTotal)

	var flags []string
	if midnight {
		flags = append(flags, models.FlagMidnightBilling)
	}

	result := &models.FraudAnalysisResult{
		FraudScore:             score,
		EstimatedOverchargeMin: overchargeMin,
		EstimatedOverchargeMax: overchargeMax,
		AnalysisExplanation:    a.explain(score, len(suspicious), midnight),
		SuspiciousItems:        suspicious,
		Flags:                  flags,
	}

	a.logger.Debug("Fraud analysis completed",
		zap.Int("items", len(items)),
		zap.Int("suspicious_items", len(suspicious)),
		zap.String("fraud_score", score.String()),
		zap.String("overcharge", overchargeMax.String()),
		zap.Bool("midnight_billing", midnight))

	return result
}

// itemCheck is the rule outcome for one priced line item
type itemCheck struct {
	expected   models.StandardPriceEntry
	overcharge decimal.Decimal
	reasons    []string
	midnight   bool
}

func (c itemCheck) suspicious() bool {
	return len(c.reasons) > 0
}

// evaluate runs the price-ceiling, quantity and midnight rules on one item.
// Each rule contributes its own reason.
func (a *Analyzer) evaluate(item models.BillLineItem, expected models.StandardPriceEntry) itemCheck {
	check := itemCheck{
		expected:   expected,
		overcharge: decimal.Zero,
		reasons:    make([]string, 0, 3),
	}

	if item.TotalPrice.GreaterThan(expected.Max) {
		check.overcharge = item.TotalPrice.Sub(expected.Max)
		check.reasons = append(check.reasons, fmt.Sprintf("Price ₹%s exceeds expected range ₹%s-₹%s",
			item.TotalPrice, expected.Min, expected.Max))
	}

	if item.Category == a.thresholds.ConsumableCategory && item.Quantity > a.thresholds.ConsumableQuantityLimit {
		check.reasons = append(check.reasons, fmt.Sprintf("Excessive quantity: %d units", item.Quantity))
	}

	if item.Timestamp != nil && a.thresholds.inMidnightWindow(*item.Timestamp) {
		check.midnight = true
		check.reasons = append(check.reasons, ReasonMidnightItem)
	}

	return check
}

func fraudScore(suspicious, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	score := suspicious.Div(total)
	one := decimal.NewFromInt(1)
	if score.GreaterThan(one) {
		return one
	}
	return score
}

package batch

import (
	"github.com/garyjia/medbill-audit/internal/fraud"
	"github.com/garyjia/medbill-audit/internal/report"
	"github.com/shopspring/decimal"
)

// Entry is one file's line in a batch summary
type Entry struct {
	Path            string           `json:"path"`
	ReportID        string           `json:"reportId,omitempty"`
	FraudScore      *decimal.Decimal `json:"fraudScore,omitempty"`
	RiskTier        string           `json:"riskTier,omitempty"`
	Overcharge      *decimal.Decimal `json:"estimatedOvercharge,omitempty"`
	SuspiciousItems int              `json:"suspiciousItems"`
	LikelyCovered   *decimal.Decimal `json:"likelyCovered,omitempty"`
	OutOfPocket     *decimal.Decimal `json:"outOfPocket,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// Summary aggregates a batch run
type Summary struct {
	Files           int             `json:"files"`
	Failed          int             `json:"failed"`
	HighRisk        int             `json:"highRisk"`
	TotalClaimed    decimal.Decimal `json:"totalClaimed"`
	TotalCovered    decimal.Decimal `json:"totalCovered"`
	TotalOvercharge decimal.Decimal `json:"totalOvercharge"`
	Entries         []Entry         `json:"entries"`
}

// Summarize folds batch results into a summary, classifying scores with
// thresholds
func Summarize(results []Result, thresholds fraud.Thresholds) Summary {
	s := Summary{
		Files:           len(results),
		TotalClaimed:    decimal.Zero,
		TotalCovered:    decimal.Zero,
		TotalOvercharge: decimal.Zero,
		Entries:         make([]Entry, 0, len(results)),
	}

	for _, res := range results {
		entry := Entry{Path: res.Path}

		if res.Err != nil || res.Report == nil {
			s.Failed++
			if res.Err != nil {
				entry.Error = res.Err.Error()
			}
			s.Entries = append(s.Entries, entry)
			continue
		}

		entry.ReportID = res.Report.ID

		if f := res.Report.Fraud; f != nil {
			score := f.FraudScore
			overcharge := f.EstimatedOverchargeMax
			entry.FraudScore = &score
			entry.Overcharge = &overcharge
			entry.RiskTier = thresholds.RiskTier(score)
			entry.SuspiciousItems = len(f.SuspiciousItems)

			s.TotalOvercharge = s.TotalOvercharge.Add(overcharge)
			if entry.RiskTier == fraud.RiskHigh {
				s.HighRisk++
			}
		}

		if c := res.Report.Coverage; c != nil {
			covered := c.LikelyCovered
			outOfPocket := c.OutOfPocket
			entry.LikelyCovered = &covered
			entry.OutOfPocket = &outOfPocket

			s.TotalClaimed = s.TotalClaimed.Add(c.TotalClaimed)
			s.TotalCovered = s.TotalCovered.Add(covered)
		}

		s.Entries = append(s.Entries, entry)
	}

	return s
}

// Reports returns the reports of successful results, in order
func Reports(results []Result) []*report.Report {
	reports := make([]*report.Report, 0, len(results))
	for _, res := range results {
		if res.Err == nil && res.Report != nil {
			reports = append(reports, res.Report)
		}
	}
	return reports
}

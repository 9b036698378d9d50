package report

import (
	"fmt"
	"os"

	"github.com/garyjia/medbill-audit/internal/models"
	"github.com/parquet-go/parquet-go"
)

// FindingRow is one suspicious line item in the Parquet findings table.
// Amounts are float64 to match the Parquet representation.
type FindingRow struct {
	ReportID    string   `parquet:"report_id"`
	Source      string   `parquet:"source"`
	PolicyID    string   `parquet:"policy_id,optional"`
	Description string   `parquet:"description"`
	Category    string   `parquet:"category"`
	BilledPrice float64  `parquet:"billed_price"`
	ExpectedMin float64  `parquet:"expected_min"`
	ExpectedMax float64  `parquet:"expected_max"`
	Overcharge  float64  `parquet:"overcharge"`
	Reasons     []string `parquet:"reasons,list"`
	FraudScore  float64  `parquet:"fraud_score"`
	Midnight    bool     `parquet:"midnight_billing"`
}

// FindingRows flattens a report into Parquet rows, one per suspicious item
func FindingRows(r *Report) []FindingRow {
	if r.Fraud == nil {
		return nil
	}

	score := money(r.Fraud.FraudScore)
	midnight := r.Fraud.HasFlag(models.FlagMidnightBilling)

	rows := make([]FindingRow, 0, len(r.Fraud.SuspiciousItems))
	for _, item := range r.Fraud.SuspiciousItems {
		rows = append(rows, FindingRow{
			ReportID:    r.ID,
			Source:      r.Source,
			PolicyID:    r.PolicyID,
			Description: item.Description,
			Category:    item.Category,
			BilledPrice: money(item.BilledPrice),
			ExpectedMin: money(item.ExpectedMin),
			ExpectedMax: money(item.ExpectedMax),
			Overcharge:  money(item.Overcharge),
			Reasons:     item.Reasons,
			FraudScore:  score,
			Midnight:    midnight,
		})
	}
	return rows
}

// WriteParquet writes the findings of every report to a single Snappy
// compressed Parquet file
func WriteParquet(reports []*Report, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[FindingRow](file,
		parquet.Compression(&parquet.Snappy),
	)

	for _, r := range reports {
		rows := FindingRows(r)
		if len(rows) == 0 {
			continue
		}
		if _, err := writer.Write(rows); err != nil {
			writer.Close()
			file.Close()
			return fmt.Errorf("failed to write parquet records: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return file.Close()
}

// ReadParquet reads a findings file written by WriteParquet
func ReadParquet(path string) ([]FindingRow, error) {
	rows, err := parquet.ReadFile[FindingRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	return rows, nil
}

package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Workbook sheet names
const (
	SheetSummary    = "Summary"
	SheetSuspicious = "Suspicious Items"
	SheetCoverage   = "Coverage"
)

// WriteXLSX renders r as a three-sheet workbook
func (e *Exporter) WriteXLSX(r *Report, path string) error {
	e.logger.Debug("Writing XLSX report",
		zap.String("report_id", r.ID),
		zap.String("path", path))

	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the summary
	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetSuspicious, SheetCoverage} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	e.fillSummary(f, r, header)
	e.fillSuspicious(f, r, header)
	e.fillCoverage(f, r, header)

	f.SetActiveSheet(0)

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func (e *Exporter) fillSummary(f *excelize.File, r *Report, header int) {
	rows := [][2]interface{}{
		{"Report ID", r.ID},
		{"Generated At", r.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Source", r.Source},
		{"Policy", r.PolicyID},
	}

	if r.Fraud != nil {
		rows = append(rows,
			[2]interface{}{"Fraud Score", money(r.Fraud.FraudScore.Round(4))},
			[2]interface{}{"Estimated Overcharge", money(r.Fraud.EstimatedOverchargeMax)},
			[2]interface{}{"Suspicious Items", len(r.Fraud.SuspiciousItems)},
			[2]interface{}{"Flags", strings.Join(r.Fraud.Flags, ", ")},
			[2]interface{}{"Assessment", r.Fraud.AnalysisExplanation},
		)
	}
	if r.Coverage != nil {
		rows = append(rows,
			[2]interface{}{"Total Claimed", money(r.Coverage.TotalClaimed)},
			[2]interface{}{"Likely Covered", money(r.Coverage.LikelyCovered)},
			[2]interface{}{"Out Of Pocket", money(r.Coverage.OutOfPocket)},
			[2]interface{}{"Copay", money(r.Coverage.CopayAmount)},
		)
	}

	for i, row := range rows {
		n := i + 1
		e.setCell(f, SheetSummary, cell("A", n), row[0])
		e.setCell(f, SheetSummary, cell("B", n), row[1])
	}
	e.setStyle(f, SheetSummary, "A1", cell("A", len(rows)), header)
	e.setWidth(f, SheetSummary, "A", "A", 22)
	e.setWidth(f, SheetSummary, "B", "B", 60)
}

func (e *Exporter) fillSuspicious(f *excelize.File, r *Report, header int) {
	e.writeHeader(f, SheetSuspicious, header,
		"Description", "Category", "Billed", "Expected Min", "Expected Max", "Overcharge", "Reasons")

	if r.Fraud == nil {
		return
	}
	for i, item := range r.Fraud.SuspiciousItems {
		n := i + 2
		e.setCell(f, SheetSuspicious, cell("A", n), item.Description)
		e.setCell(f, SheetSuspicious, cell("B", n), item.Category)
		e.setCell(f, SheetSuspicious, cell("C", n), money(item.BilledPrice))
		e.setCell(f, SheetSuspicious, cell("D", n), money(item.ExpectedMin))
		e.setCell(f, SheetSuspicious, cell("E", n), money(item.ExpectedMax))
		e.setCell(f, SheetSuspicious, cell("F", n), money(item.Overcharge))
		e.setCell(f, SheetSuspicious, cell("G", n), strings.Join(item.Reasons, "; "))
	}
	e.setWidth(f, SheetSuspicious, "A", "A", 36)
	e.setWidth(f, SheetSuspicious, "G", "G", 70)
}

func (e *Exporter) fillCoverage(f *excelize.File, r *Report, header int) {
	e.writeHeader(f, SheetCoverage, header, "Category", "Claimed", "Covered", "Excluded")

	if r.Coverage == nil {
		return
	}

	n := 2
	for _, c := range r.Coverage.Breakdown.Categories() {
		e.setCell(f, SheetCoverage, cell("A", n), c.Name)
		e.setCell(f, SheetCoverage, cell("B", n), money(c.Amounts.Claimed))
		e.setCell(f, SheetCoverage, cell("C", n), money(c.Amounts.Covered))
		e.setCell(f, SheetCoverage, cell("D", n), money(c.Amounts.Excluded))
		n++
	}

	if len(r.Coverage.Warnings) > 0 {
		n++
		e.setCell(f, SheetCoverage, cell("A", n), "Warnings")
		e.setStyle(f, SheetCoverage, cell("A", n), cell("A", n), header)
		for _, w := range r.Coverage.Warnings {
			n++
			e.setCell(f, SheetCoverage, cell("A", n), w)
		}
	}
	e.setWidth(f, SheetCoverage, "A", "A", 24)
}

func (e *Exporter) writeHeader(f *excelize.File, sheet string, style int, titles ...string) {
	for i, title := range titles {
		name, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			continue
		}
		e.setCell(f, sheet, name, title)
	}
	last, _ := excelize.CoordinatesToCellName(len(titles), 1)
	e.setStyle(f, sheet, "A1", last, style)
}

// setCell sets a cell value in the Excel file
func (e *Exporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func (e *Exporter) setStyle(f *excelize.File, sheet, from, to string, style int) {
	if err := f.SetCellStyle(sheet, from, to, style); err != nil {
		e.logger.Warn("Failed to set cell style",
			zap.String("sheet", sheet),
			zap.Error(err))
	}
}

func (e *Exporter) setWidth(f *excelize.File, sheet, from, to string, width float64) {
	if err := f.SetColWidth(sheet, from, to, width); err != nil {
		e.logger.Warn("Failed to set column width",
			zap.String("sheet", sheet),
			zap.Error(err))
	}
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// money converts an amount to a float for spreadsheet arithmetic
func money(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Package report bundles finished analyses and exports them as JSON, XLSX
// workbooks or Parquet findings tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/garyjia/medbill-audit/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Format is an export file format
type Format string

// Supported export formats
const (
	FormatJSON    Format = "json"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// ParseFormat parses a format name, case-insensitively
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatXLSX, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", s)
	}
}

// Extension returns the file extension for the format, with leading dot
func (f Format) Extension() string {
	return "." + string(f)
}

// Report is the combined output of one bill's analyses
type Report struct {
	ID            string                      `json:"id"`
	GeneratedAt   time.Time                   `json:"generatedAt"`
	Source        string                      `json:"source"`
	PolicyID      string                      `json:"policyId,omitempty"`
	Fraud         *models.FraudAnalysisResult `json:"fraud,omitempty"`
	Coverage      *models.InsuranceAnalysis   `json:"coverage,omitempty"`
	Duplicates    []models.DuplicateTest      `json:"duplicateTests,omitempty"`
	SecondOpinion *models.SecondOpinion       `json:"secondOpinion,omitempty"`
}

// New creates a report with a fresh id
func New(source, policyID string, fraud *models.FraudAnalysisResult, coverage *models.InsuranceAnalysis) *Report {
	return &Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Source:      source,
		PolicyID:    policyID,
		Fraud:       fraud,
		Coverage:    coverage,
	}
}

// Exporter writes reports to disk
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new report exporter
func NewExporter(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{logger: logger}
}

// Export writes r in the given format. For JSON, path "-" writes to stdout.
func (e *Exporter) Export(r *Report, format Format, path string) error {
	var err error
	switch format {
	case FormatJSON:
		err = WriteJSONFile(path, r)
	case FormatXLSX:
		err = e.WriteXLSX(r, path)
	case FormatParquet:
		err = WriteParquet([]*Report{r}, path)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
	if err != nil {
		return err
	}

	if path != "-" {
		e.logger.Info("Report exported",
			zap.String("report_id", r.ID),
			zap.String("format", string(format)),
			zap.String("path", path))
	}
	return nil
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteJSONFile writes v as indented JSON to path, or to stdout for "-"
func WriteJSONFile(path string, v interface{}) error {
	if path == "-" || path == "" {
		return WriteJSON(os.Stdout, v)
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := WriteJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

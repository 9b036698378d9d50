package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/garyjia/medbill-audit/internal/ai"
	"github.com/garyjia/medbill-audit/internal/reference"
	"github.com/garyjia/medbill-audit/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBill = `[
  {"description": "Complete Blood Count (CBC)", "category": "Lab Tests", "quantity": 1, "unitPrice": 1500, "totalPrice": 1500},
  {"description": "Room Rent (Deluxe)", "category": "Room", "quantity": 3, "unitPrice": 8000, "totalPrice": 24000, "timestamp": "2024-01-15T10:00:00"}
]`

const testEvents = `[
  {"type": "TEST_ORDERED", "timestamp": "2024-01-15T09:00:00", "data": {"test": "CBC"}},
  {"type": "TEST_ORDERED", "timestamp": "2024-01-15T21:00:00", "data": {"test": "CBC"}}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestFraudCommand(t *testing.T) {
	out, err := run(t, "fraud", writeFile(t, "bill.json", testBill))
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, float64(300), result["estimatedOverchargeMax"])
	// The deluxe room has no reference price and is listed as unverifiable
	assert.Len(t, result["suspiciousItems"], 2)
}

func TestCoverageCommand(t *testing.T) {
	bill := writeFile(t, "bill.json", testBill)

	out, err := run(t, "coverage", bill, "--policy", "premium_policy")
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, float64(25500), result["totalClaimed"])
	assert.Equal(t, float64(25500), result["likelyCovered"])

	_, err = run(t, "coverage", bill, "--policy", "gold_plus")
	assert.True(t, errors.Is(err, reference.ErrPolicyNotFound))

	_, err = run(t, "coverage", bill, "--admission", "soon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --admission")
}

func TestAnalyzeCommand(t *testing.T) {
	bill := writeFile(t, "bill.json", testBill)
	events := writeFile(t, "events.json", testEvents)

	out, err := run(t, "analyze", bill, "--export", "json", "--out", "-", "--events", events)
	require.NoError(t, err)

	var r report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "basic_policy", r.PolicyID)
	require.NotNil(t, r.Fraud)
	require.NotNil(t, r.Coverage)
	require.Len(t, r.Duplicates, 1)
	assert.Equal(t, "CBC", r.Duplicates[0].Test)

	xlsx := filepath.Join(t.TempDir(), "report.xlsx")
	_, err = run(t, "analyze", bill, "--export", "xlsx", "--out", xlsx)
	require.NoError(t, err)
	assert.FileExists(t, xlsx)

	parquetPath := filepath.Join(t.TempDir(), "findings.parquet")
	_, err = run(t, "analyze", bill, "--export", "parquet", "--out", parquetPath)
	require.NoError(t, err)
	rows, err := report.ReadParquet(parquetPath)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = run(t, "analyze", bill, "--export", "parquet", "--out", "-")
	assert.Error(t, err)

	_, err = run(t, "analyze", bill, "--export", "csv")
	assert.Error(t, err)
}

func TestBatchCommand(t *testing.T) {
	bill := writeFile(t, "bill.json", testBill)
	broken := writeFile(t, "broken.json", `[{"description": "x"}]`)
	summaryPath := filepath.Join(t.TempDir(), "summary.json")
	findings := filepath.Join(t.TempDir(), "findings.parquet")

	_, err := run(t, "batch", bill, broken, "--no-progress", "--workers", "2", "--out", summaryPath, "--findings", findings)
	require.NoError(t, err)

	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, float64(2), summary["files"])
	assert.Equal(t, float64(1), summary["failed"])

	rows, err := report.ReadParquet(findings)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = run(t, "batch", broken, "--no-progress")
	assert.Error(t, err)
}

func TestDuplicatesCommand(t *testing.T) {
	out, err := run(t, "duplicates", writeFile(t, "events.json", testEvents))
	require.NoError(t, err)

	var dups []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &dups))
	require.Len(t, dups, 1)
	assert.Equal(t, 0.5, dups[0]["daysBetween"])
}

func TestPoliciesCommand(t *testing.T) {
	out, err := run(t, "policies")
	require.NoError(t, err)
	assert.Contains(t, out, "basic_policy")
	assert.Contains(t, out, "Premium Health Cover")
	assert.Contains(t, out, "government_scheme")
}

func TestReviewCommandRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := run(t, "review", writeFile(t, "bill.json", testBill))
	assert.ErrorIs(t, err, ai.ErrMissingAPIKey)
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "-", defaultOutputPath("", "bill.json", report.FormatJSON))
	assert.Equal(t, filepath.Join("out", "bill.report.xlsx"), defaultOutputPath("out", "/tmp/bill.json.gz", report.FormatXLSX))
	assert.Equal(t, "visit.report.json", defaultOutputPath(".", "visit.json", report.FormatJSON))
}

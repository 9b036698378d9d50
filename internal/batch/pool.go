// Package batch analyzes many bill files concurrently.
package batch

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/garyjia/medbill-audit/internal/billfile"
	"github.com/garyjia/medbill-audit/internal/coverage"
	"github.com/garyjia/medbill-audit/internal/fraud"
	"github.com/garyjia/medbill-audit/internal/models"
	"github.com/garyjia/medbill-audit/internal/progress"
	"github.com/garyjia/medbill-audit/internal/report"
	"go.uber.org/zap"
)

// Result holds the outcome of analyzing a single bill file.
type Result struct {
	Path   string
	Report *report.Report
	Err    error
}

// Pool manages concurrent analysis of bill files.
type Pool struct {
	Workers  int
	Progress progress.Manager
	Fraud    *fraud.Analyzer
	Coverage *coverage.Analyzer
	PolicyID string
	Policy   models.PolicyDetails
	Logger   *zap.Logger
}

// Run analyzes all files concurrently and returns one result per path, in
// input order. Files not started before ctx is cancelled report ctx.Err().
// Callers wait on their progress manager once Run returns.
func (p *Pool) Run(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var tracking progress.Manager = &progress.NoopManager{}
	if p.Progress != nil {
		tracking = p.Progress
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()

			// Acquire semaphore
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[idx] = Result{Path: path, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[idx] = Result{Path: path, Err: err}
				return
			}

			tracker := tracking.NewTracker(idx, len(paths), filepath.Base(path))
			results[idx] = p.analyze(path, tracker)
			tracker.Done()

			if results[idx].Err != nil {
				logger.Warn("Bill analysis failed",
					zap.String("path", path),
					zap.Error(results[idx].Err))
			}
		}(i, path)
	}

	wg.Wait()
	return results
}

// analyze runs both analyzers over one bill file
func (p *Pool) analyze(path string, tracker progress.Tracker) Result {
	const steps = 3

	tracker.SetStage("Loading")
	bill, err := billfile.Load(path)
	if err != nil {
		return Result{Path: path, Err: err}
	}
	tracker.SetProgress(1, steps)

	tracker.SetStage("Fraud")
	fraudResult := p.Fraud.Analyze(bill.Items)
	tracker.SetProgress(2, steps)

	tracker.SetStage("Coverage")
	var coverageResult *models.InsuranceAnalysis
	if p.Coverage != nil {
		coverageResult = p.Coverage.Analyze(bill.Items, p.Policy)
	}
	tracker.SetProgress(steps, steps)
	tracker.SetStage("Done")

	return Result{Path: path, Report: report.New(path, p.PolicyID, fraudResult, coverageResult)}
}

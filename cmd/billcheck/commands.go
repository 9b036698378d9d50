package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/garyjia/medbill-audit/internal/ai"
	"github.com/garyjia/medbill-audit/internal/batch"
	"github.com/garyjia/medbill-audit/internal/billfile"
	"github.com/garyjia/medbill-audit/internal/coverage"
	"github.com/garyjia/medbill-audit/internal/fraud"
	"github.com/garyjia/medbill-audit/internal/models"
	"github.com/garyjia/medbill-audit/internal/progress"
	"github.com/garyjia/medbill-audit/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newFraudCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fraud <bill.json>",
		Short: "Flag overpriced, excessive and late-night bill items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bill, err := billfile.Load(args[0])
			if err != nil {
				return err
			}
			return report.WriteJSON(cmd.OutOrStdout(), a.fraudAnalyzer().Analyze(bill.Items))
		},
	}
}

func newCoverageCmd(a *app) *cobra.Command {
	var (
		policyID  string
		admission string
		discharge string
	)

	cmd := &cobra.Command{
		Use:   "coverage <bill.json>",
		Short: "Estimate how much of a bill a policy will cover",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bill, err := billfile.Load(args[0])
			if err != nil {
				return err
			}
			_, policy, err := a.policy(policyID)
			if err != nil {
				return err
			}
			opts, err := hospitalizationOption(admission, discharge)
			if err != nil {
				return err
			}
			return report.WriteJSON(cmd.OutOrStdout(), a.coverageAnalyzer().Analyze(bill.Items, policy, opts...))
		},
	}

	cmd.Flags().StringVar(&policyID, "policy", "", "Policy id (default from configuration)")
	cmd.Flags().StringVar(&admission, "admission", "", "Admission time, e.g. 2024-01-15T10:00:00")
	cmd.Flags().StringVar(&discharge, "discharge", "", "Discharge time")

	return cmd
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		policyID   string
		exportAs   string
		outputPath string
		eventsPath string
	)

	cmd := &cobra.Command{
		Use:   "analyze <bill.json>",
		Short: "Run fraud and coverage analysis and export a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if exportAs == "" {
				exportAs = a.cfg.Report.Format
			}
			format, err := report.ParseFormat(exportAs)
			if err != nil {
				return err
			}

			bill, err := billfile.Load(args[0])
			if err != nil {
				return err
			}
			id, policy, err := a.policy(policyID)
			if err != nil {
				return err
			}

			r := report.New(args[0], id,
				a.fraudAnalyzer().Analyze(bill.Items),
				a.coverageAnalyzer().Analyze(bill.Items, policy))

			if eventsPath != "" {
				events, err := billfile.LoadEvents(eventsPath)
				if err != nil {
					return err
				}
				r.Duplicates = fraud.DetectDuplicateTests(events, a.thresholds.DuplicateTestWindow)
			}

			if outputPath == "" {
				outputPath = defaultOutputPath(a.cfg.Report.OutputDir, args[0], format)
			}
			if outputPath == "-" && format != report.FormatJSON {
				return fmt.Errorf("%s reports cannot be written to stdout", format)
			}
			if outputPath == "-" {
				return report.WriteJSON(cmd.OutOrStdout(), r)
			}

			if err := report.NewExporter(a.logger).Export(r, format, outputPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&policyID, "policy", "", "Policy id (default from configuration)")
	cmd.Flags().StringVar(&exportAs, "export", "", "Report format: json, xlsx or parquet (default from configuration)")
	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Output path, '-' for stdout (json only)")
	cmd.Flags().StringVar(&eventsPath, "events", "", "Care-event timeline to check for duplicate tests")

	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		policyID     string
		workers      int
		noProgress   bool
		outputPath   string
		findingsPath string
	)

	cmd := &cobra.Command{
		Use:   "batch <bill.json>...",
		Short: "Analyze many bill files concurrently and write a summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, policy, err := a.policy(policyID)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("workers") {
				workers = a.cfg.Batch.Workers
			}

			var mgr progress.Manager
			if noProgress || !a.cfg.Batch.ShowProgress {
				mgr = &progress.NoopManager{}
			} else {
				mgr = progress.NewMPBManager(cmd.ErrOrStderr())
			}

			// Handle signals
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			startTime := time.Now()
			pool := &batch.Pool{
				Workers:  workers,
				Progress: mgr,
				Fraud:    a.fraudAnalyzer(),
				Coverage: a.coverageAnalyzer(),
				PolicyID: id,
				Policy:   policy,
				Logger:   a.logger,
			}

			results := pool.Run(ctx, args)
			mgr.Wait()

			summary := batch.Summarize(results, a.thresholds)
			if outputPath == "-" {
				err = report.WriteJSON(cmd.OutOrStdout(), summary)
			} else {
				err = report.WriteJSONFile(outputPath, summary)
			}
			if err != nil {
				return fmt.Errorf("writing summary: %w", err)
			}

			if findingsPath != "" {
				if err := report.WriteParquet(batch.Reports(results), findingsPath); err != nil {
					return fmt.Errorf("writing findings: %w", err)
				}
			}

			a.logger.Info("Batch complete",
				zap.Int("files", summary.Files),
				zap.Int("failed", summary.Failed),
				zap.Int("high_risk", summary.HighRisk),
				zap.Duration("duration", time.Since(startTime)))

			if summary.Failed == summary.Files {
				return fmt.Errorf("all %d files failed", summary.Files)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&policyID, "policy", "", "Policy id (default from configuration)")
	cmd.Flags().IntVar(&workers, "workers", 4, "Number of concurrent file workers")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress bars")
	cmd.Flags().StringVarP(&outputPath, "out", "o", "-", "Summary output path ('-' for stdout)")
	cmd.Flags().StringVar(&findingsPath, "findings", "", "Also write all suspicious items to this Parquet file")

	return cmd
}

func newDuplicatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates <events.json>",
		Short: "Find tests ordered more than once within the duplicate window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := billfile.LoadEvents(args[0])
			if err != nil {
				return err
			}
			dups := fraud.DetectDuplicateTests(events, a.thresholds.DuplicateTestWindow)
			if dups == nil {
				dups = []models.DuplicateTest{}
			}
			return report.WriteJSON(cmd.OutOrStdout(), dups)
		},
	}
}

func newPoliciesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List insurance policies and their limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROOM/DAY\tICU/DAY\tCOPAY %\tSUM INSURED\tEXCLUSIONS")
			for _, id := range a.store.PolicyIDs() {
				p, err := a.store.Policy(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					id, p.Name, p.RoomRentLimit, p.ICULimit, p.CopayPercentage, p.SumInsured,
					strings.Join(p.Exclusions, ", "))
			}
			return w.Flush()
		},
	}
}

func newReviewCmd(a *app) *cobra.Command {
	var (
		policyID string
		question string
	)

	cmd := &cobra.Command{
		Use:   "review <bill.json>",
		Short: "Ask a language model for a plain-language second opinion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviewer, err := ai.NewReviewer(a.cfg.OpenAI, a.logger)
			if err != nil {
				return err
			}

			bill, err := billfile.Load(args[0])
			if err != nil {
				return err
			}
			_, policy, err := a.policy(policyID)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opinion, err := reviewer.Review(ctx, ai.ReviewRequest{
				Items:      bill.Items,
				Fraud:      a.fraudAnalyzer().Analyze(bill.Items),
				Coverage:   a.coverageAnalyzer().Analyze(bill.Items, policy),
				PolicyName: policy.Name,
				Question:   question,
			})
			if err != nil {
				return err
			}
			return report.WriteJSON(cmd.OutOrStdout(), opinion)
		},
	}

	cmd.Flags().StringVar(&policyID, "policy", "", "Policy id (default from configuration)")
	cmd.Flags().StringVar(&question, "question", "", "Question to put to the reviewer")

	return cmd
}

// hospitalizationOption parses optional admission and discharge times
func hospitalizationOption(admission, discharge string) ([]coverage.Option, error) {
	if admission == "" && discharge == "" {
		return nil, nil
	}

	parse := func(name, value string) (*time.Time, error) {
		if value == "" {
			return nil, nil
		}
		ts, err := models.ParseTimestamp(value)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", name, err)
		}
		return &ts, nil
	}

	in, err := parse("admission", admission)
	if err != nil {
		return nil, err
	}
	out, err := parse("discharge", discharge)
	if err != nil {
		return nil, err
	}
	return []coverage.Option{coverage.WithHospitalization(in, out)}, nil
}

// defaultOutputPath derives "<dir>/<bill name>.report.<ext>"
func defaultOutputPath(dir, billPath string, format report.Format) string {
	if format == report.FormatJSON && dir == "" {
		return "-"
	}
	base := filepath.Base(billPath)
	for _, ext := range []string{".gz", ".json"} {
		base = strings.TrimSuffix(base, ext)
	}
	return filepath.Join(dir, base+".report"+format.Extension())
}

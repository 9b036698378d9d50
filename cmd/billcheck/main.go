package main

import (
	"fmt"
	"os"

	"github.com/garyjia/medbill-audit/internal/config"
	"github.com/garyjia/medbill-audit/internal/coverage"
	"github.com/garyjia/medbill-audit/internal/fraud"
	"github.com/garyjia/medbill-audit/internal/models"
	"github.com/garyjia/medbill-audit/internal/reference"
	"github.com/garyjia/medbill-audit/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the state shared by every command, built once per invocation
type app struct {
	configPath string
	logLevel   string

	cfg        *config.Config
	logger     *zap.Logger
	store      *reference.Store
	thresholds fraud.Thresholds
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "billcheck",
		Short:         "Audit hospital bills for overcharging and estimate insurance coverage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newFraudCmd(a),
		newCoverageCmd(a),
		newAnalyzeCmd(a),
		newBatchCmd(a),
		newDuplicatesCmd(a),
		newPoliciesCmd(a),
		newReviewCmd(a),
	)

	return rootCmd
}

// setup loads configuration, the logger and reference data
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logger.Level = a.logLevel
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	thresholds, err := cfg.FraudThresholds()
	if err != nil {
		return err
	}

	store, err := reference.Load(cfg.Reference.PricesPath, cfg.Reference.PoliciesPath, logger)
	if err != nil {
		return fmt.Errorf("failed to load reference data: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.store = store
	a.thresholds = thresholds
	return nil
}

func (a *app) fraudAnalyzer() *fraud.Analyzer {
	return fraud.NewAnalyzer(a.store, a.thresholds, a.logger)
}

func (a *app) coverageAnalyzer() *coverage.Analyzer {
	return coverage.NewAnalyzer(a.logger)
}

// policy resolves a policy id, falling back to the configured default
func (a *app) policy(id string) (string, models.PolicyDetails, error) {
	if id == "" {
		id = a.cfg.Coverage.DefaultPolicy
	}
	p, err := a.store.Policy(id)
	return id, p, err
}

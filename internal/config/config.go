package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/garyjia/medbill-audit/internal/fraud"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Reference ReferenceConfig `mapstructure:"reference"`
	Fraud     FraudConfig     `mapstructure:"fraud"`
	Coverage  CoverageConfig  `mapstructure:"coverage"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Report    ReportConfig    `mapstructure:"report"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ReferenceConfig points at price and policy tables. Empty paths use the
// tables compiled into the binary.
type ReferenceConfig struct {
	PricesPath   string `mapstructure:"prices_path"`
	PoliciesPath string `mapstructure:"policies_path"`
}

// FraudConfig holds the fraud rule thresholds
type FraudConfig struct {
	MediumRiskScore         string        `mapstructure:"medium_risk_score"`
	HighRiskScore           string        `mapstructure:"high_risk_score"`
	ConsumableCategory      string        `mapstructure:"consumable_category"`
	ConsumableQuantityLimit int           `mapstructure:"consumable_quantity_limit"`
	MidnightStart           string        `mapstructure:"midnight_start"` // HH:MM
	MidnightEnd             string        `mapstructure:"midnight_end"`   // HH:MM
	DuplicateTestWindow     time.Duration `mapstructure:"duplicate_test_window"`
	Timezone                string        `mapstructure:"timezone"` // IANA name; empty keeps timestamp zones
}

// CoverageConfig holds coverage analysis defaults
type CoverageConfig struct {
	DefaultPolicy string `mapstructure:"default_policy"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// BatchConfig holds batch run configuration
type BatchConfig struct {
	Workers      int  `mapstructure:"workers"`
	ShowProgress bool `mapstructure:"show_progress"`
}

// ReportConfig holds report export configuration
type ReportConfig struct {
	Format    string `mapstructure:"format"` // json, xlsx or parquet
	OutputDir string `mapstructure:"output_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional YAML file, a .env file in the
// working directory if present, and environment variables
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment variables: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports variables from path without overriding ones already set
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	defaults := fraud.DefaultThresholds()

	// Fraud defaults
	v.SetDefault("fraud.medium_risk_score", defaults.MediumRiskScore.String())
	v.SetDefault("fraud.high_risk_score", defaults.HighRiskScore.String())
	v.SetDefault("fraud.consumable_category", defaults.ConsumableCategory)
	v.SetDefault("fraud.consumable_quantity_limit", defaults.ConsumableQuantityLimit)
	v.SetDefault("fraud.midnight_start", defaults.MidnightStart.String())
	v.SetDefault("fraud.midnight_end", defaults.MidnightEnd.String())
	v.SetDefault("fraud.duplicate_test_window", defaults.DuplicateTestWindow)
	v.SetDefault("fraud.timezone", "")

	// Coverage defaults
	v.SetDefault("coverage.default_policy", "basic_policy")

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4")
	v.SetDefault("openai.temperature", 0.3)
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.timeout", 60*time.Second)

	// Batch defaults
	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.show_progress", true)

	// Report defaults
	v.SetDefault("report.format", "json")
	v.SetDefault("report.output_dir", ".")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stderr")
	v.SetDefault("logger.format", "console")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"openai.api_key":          "OPENAI_API_KEY",
		"openai.base_url":         "OPENAI_BASE_URL",
		"reference.prices_path":   "BILLCHECK_PRICES_PATH",
		"reference.policies_path": "BILLCHECK_POLICIES_PATH",
		"logger.level":            "BILLCHECK_LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := c.FraudThresholds(); err != nil {
		return err
	}

	if c.Coverage.DefaultPolicy == "" {
		return fmt.Errorf("coverage.default_policy is required")
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}

	switch strings.ToLower(c.Report.Format) {
	case "json", "xlsx", "parquet":
	default:
		return fmt.Errorf("report.format must be json, xlsx or parquet, got %q", c.Report.Format)
	}

	if c.OpenAI.MaxTokens < 0 {
		return fmt.Errorf("openai.max_tokens must not be negative")
	}

	return nil
}

// FraudThresholds converts the fraud section into analyzer thresholds
func (c *Config) FraudThresholds() (fraud.Thresholds, error) {
	var (
		t   fraud.Thresholds
		err error
	)

	if t.MediumRiskScore, err = decimal.NewFromString(c.Fraud.MediumRiskScore); err != nil {
		return t, fmt.Errorf("fraud.medium_risk_score: %w", err)
	}
	if t.HighRiskScore, err = decimal.NewFromString(c.Fraud.HighRiskScore); err != nil {
		return t, fmt.Errorf("fraud.high_risk_score: %w", err)
	}
	if t.MidnightStart, err = fraud.ParseClockTime(c.Fraud.MidnightStart); err != nil {
		return t, fmt.Errorf("fraud.midnight_start: %w", err)
	}
	if t.MidnightEnd, err = fraud.ParseClockTime(c.Fraud.MidnightEnd); err != nil {
		return t, fmt.Errorf("fraud.midnight_end: %w", err)
	}
	if c.Fraud.Timezone != "" {
		if t.Location, err = time.LoadLocation(c.Fraud.Timezone); err != nil {
			return t, fmt.Errorf("fraud.timezone: %w", err)
		}
	}

	t.ConsumableCategory = c.Fraud.ConsumableCategory
	t.ConsumableQuantityLimit = c.Fraud.ConsumableQuantityLimit
	t.DuplicateTestWindow = c.Fraud.DuplicateTestWindow

	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("fraud thresholds: %w", err)
	}
	return t, nil
}

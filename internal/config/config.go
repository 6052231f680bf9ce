// Package config defines the reconciliation configuration surface and
// its fail-fast validation. Invalid configuration is rejected at
// construction time, never mid-run.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/auditflow/reconcile/internal/normalize"
)

var validate = validator.New()

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Engine holds the matching-engine tunables. Amounts are decimal so
// tolerance arithmetic is exact.
type Engine struct {
	AmountTolerance              decimal.Decimal
	FuzzyAmountTolerance         decimal.Decimal
	DateWindowDays               int
	SimilarityThreshold          float64
	EnableGroupedMatching        bool
	MaxGroupSize                 int
	GroupSearchBudget            int
	DuplicateDateWindowDays      int
	DuplicateSimilarityThreshold float64
	StopTokens                   []string
	Workers                      int
}

// DefaultEngine returns the engine defaults mirroring the standard
// reconciliation rules (±1.00 amount, ±3 day window).
func DefaultEngine() Engine {
	return Engine{
		AmountTolerance:              decimal.RequireFromString("1.00"),
		FuzzyAmountTolerance:         decimal.RequireFromString("2.00"),
		DateWindowDays:               3,
		SimilarityThreshold:          0.75,
		EnableGroupedMatching:        false,
		MaxGroupSize:                 4,
		GroupSearchBudget:            250000,
		DuplicateDateWindowDays:      0,
		DuplicateSimilarityThreshold: 0.90,
		StopTokens:                   normalize.DefaultStopTokens,
		Workers:                      0, // 0 means runtime.NumCPU at run time
	}
}

// Validate fails fast on any out-of-range value.
func (c Engine) Validate() error {
	if c.AmountTolerance.IsNegative() {
		return &ConfigError{Field: "amount_tolerance", Reason: "must not be negative"}
	}
	if c.FuzzyAmountTolerance.IsNegative() {
		return &ConfigError{Field: "fuzzy_amount_tolerance", Reason: "must not be negative"}
	}
	if c.FuzzyAmountTolerance.LessThan(c.AmountTolerance) {
		return &ConfigError{Field: "fuzzy_amount_tolerance", Reason: "must be at least amount_tolerance"}
	}
	if c.DateWindowDays < 0 {
		return &ConfigError{Field: "date_window_days", Reason: "must not be negative"}
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return &ConfigError{Field: "similarity_threshold", Reason: "must be in [0,1]"}
	}
	if c.MaxGroupSize < 1 {
		return &ConfigError{Field: "max_group_size", Reason: "must be at least 1"}
	}
	if c.GroupSearchBudget < 1 {
		return &ConfigError{Field: "group_search_budget", Reason: "must be at least 1"}
	}
	if c.DuplicateDateWindowDays < 0 {
		return &ConfigError{Field: "duplicate_date_window_days", Reason: "must not be negative"}
	}
	if c.DuplicateSimilarityThreshold < 0 || c.DuplicateSimilarityThreshold > 1 {
		return &ConfigError{Field: "duplicate_similarity_threshold", Reason: "must be in [0,1]"}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "workers", Reason: "must not be negative"}
	}
	return nil
}

// ServerConfig holds the HTTP service settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// App is the full application configuration as loaded from file/env.
// Engine amounts arrive as strings so they can be parsed into decimals
// without a float round trip.
type App struct {
	LogLevel  string       `mapstructure:"log_level"`
	BankFile  string       `mapstructure:"bank_file"`
	GLFile    string       `mapstructure:"gl_file"`
	ReportDir string       `mapstructure:"report_dir"`
	Server    ServerConfig `mapstructure:"server"`
	Matching  rawMatching  `mapstructure:"matching"`
}

type rawMatching struct {
	AmountTolerance              string   `mapstructure:"amount_tolerance"`
	FuzzyAmountTolerance         string   `mapstructure:"fuzzy_amount_tolerance"`
	DateWindowDays               int      `mapstructure:"date_window_days" validate:"gte=0"`
	SimilarityThreshold          float64  `mapstructure:"similarity_threshold" validate:"gte=0,lte=1"`
	EnableGroupedMatching        bool     `mapstructure:"enable_grouped_matching"`
	MaxGroupSize                 int      `mapstructure:"max_group_size" validate:"gte=1"`
	GroupSearchBudget            int      `mapstructure:"group_search_budget" validate:"gte=1"`
	DuplicateDateWindowDays      int      `mapstructure:"duplicate_date_window_days" validate:"gte=0"`
	DuplicateSimilarityThreshold float64  `mapstructure:"duplicate_similarity_threshold" validate:"gte=0,lte=1"`
	StopTokens                   []string `mapstructure:"stop_tokens"`
	Workers                      int      `mapstructure:"workers" validate:"gte=0"`
}

// Load reads configuration from the given file (optional) plus
// RECON_-prefixed environment variables and returns the validated app
// config together with the derived engine config.
func Load(path string) (*App, Engine, error) {
	v := viper.New()
	def := DefaultEngine()

	v.SetDefault("log_level", "info")
	v.SetDefault("bank_file", "data/incoming/bank.csv")
	v.SetDefault("gl_file", "data/incoming/gl.csv")
	v.SetDefault("report_dir", "reports")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("matching.amount_tolerance", def.AmountTolerance.String())
	v.SetDefault("matching.fuzzy_amount_tolerance", def.FuzzyAmountTolerance.String())
	v.SetDefault("matching.date_window_days", def.DateWindowDays)
	v.SetDefault("matching.similarity_threshold", def.SimilarityThreshold)
	v.SetDefault("matching.enable_grouped_matching", def.EnableGroupedMatching)
	v.SetDefault("matching.max_group_size", def.MaxGroupSize)
	v.SetDefault("matching.group_search_budget", def.GroupSearchBudget)
	v.SetDefault("matching.duplicate_date_window_days", def.DuplicateDateWindowDays)
	v.SetDefault("matching.duplicate_similarity_threshold", def.DuplicateSimilarityThreshold)
	v.SetDefault("matching.stop_tokens", def.StopTokens)
	v.SetDefault("matching.workers", def.Workers)

	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, Engine{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var app App
	if err := v.Unmarshal(&app); err != nil {
		return nil, Engine{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate.Struct(&app); err != nil {
		return nil, Engine{}, &ConfigError{Field: "app", Reason: err.Error()}
	}

	eng, err := app.Matching.toEngine()
	if err != nil {
		return nil, Engine{}, err
	}
	if err := eng.Validate(); err != nil {
		return nil, Engine{}, err
	}
	return &app, eng, nil
}

func (r rawMatching) toEngine() (Engine, error) {
	amountTol, err := decimal.NewFromString(r.AmountTolerance)
	if err != nil {
		return Engine{}, &ConfigError{Field: "amount_tolerance", Reason: "not a decimal: " + r.AmountTolerance}
	}
	fuzzyTol, err := decimal.NewFromString(r.FuzzyAmountTolerance)
	if err != nil {
		return Engine{}, &ConfigError{Field: "fuzzy_amount_tolerance", Reason: "not a decimal: " + r.FuzzyAmountTolerance}
	}
	return Engine{
		AmountTolerance:              amountTol,
		FuzzyAmountTolerance:         fuzzyTol,
		DateWindowDays:               r.DateWindowDays,
		SimilarityThreshold:          r.SimilarityThreshold,
		EnableGroupedMatching:        r.EnableGroupedMatching,
		MaxGroupSize:                 r.MaxGroupSize,
		GroupSearchBudget:            r.GroupSearchBudget,
		DuplicateDateWindowDays:      r.DuplicateDateWindowDays,
		DuplicateSimilarityThreshold: r.DuplicateSimilarityThreshold,
		StopTokens:                   r.StopTokens,
		Workers:                      r.Workers,
	}, nil
}

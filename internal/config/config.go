// Package config loads process settings from the environment (optionally
// seeded from a .env file) and the matching tuning from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/logging"
	"bank-reconciliation-engine/internal/services/matching"
	"bank-reconciliation-engine/internal/services/reconciliation"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Settings struct {
	DatabaseURL        string
	DBDriver           string
	Port               string
	LogLevel           string
	LogFormat          string
	MatchingConfigPath string
	CORSOrigins        []string

	Matching matching.Config
	Policy   reconciliation.Policy
}

// MatchingFile is the YAML layout of the matching configuration. Omitted keys
// keep their defaults.
type MatchingFile struct {
	Matcher                 *string            `yaml:"matcher"`
	AmountTolerance         *string            `yaml:"amount_tolerance"`
	DateWindowDays          *int               `yaml:"date_window_days"`
	ExactFloor              *float64           `yaml:"exact_floor"`
	FuzzyFloor              *float64           `yaml:"fuzzy_floor"`
	FallbackWindowDays      *int               `yaml:"fallback_window_days"`
	LooseAmountTolerancePct *float64           `yaml:"loose_amount_tolerance_pct"`
	MatcherWeights          map[string]float64 `yaml:"matcher_weights"`
	MinimumFloor            *float64           `yaml:"minimum_floor"`
	AutoApplyThreshold      *float64           `yaml:"auto_apply_threshold"`
	ReviewThreshold         *float64           `yaml:"review_threshold"`
	MaxCommitAttempts       *int               `yaml:"max_commit_attempts"`
	RetryBackoff            *string            `yaml:"retry_backoff"`
	Workers                 *int               `yaml:"workers"`
}

// Load reads the given .env files (or ./.env), then the environment, then
// the matching file named by MATCHING_CONFIG.
func Load(envFiles ...string) (*Settings, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
		slog.Debug("no .env file found, relying on system env")
	}

	s := FromEnv()
	if s.MatchingConfigPath != "" {
		if err := s.LoadMatchingFile(s.MatchingConfigPath); err != nil {
			return nil, err
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// FromEnv builds settings from environment variables and defaults.
func FromEnv() *Settings {
	return &Settings{
		DatabaseURL:        getEnv("DATABASE_URL", "reconcile.db"),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		MatchingConfigPath: os.Getenv("MATCHING_CONFIG"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		Matching:           matching.DefaultConfig(),
		Policy:             reconciliation.DefaultPolicy(),
	}
}

// LoadMatchingFile overlays the YAML matching configuration at path.
// ${VAR} references are expanded from the environment first.
func (s *Settings) LoadMatchingFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading matching config: %w", err)
	}

	var file MatchingFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return apperr.Wrap(apperr.KindValidation, "parse matching config", err)
	}
	return s.apply(file)
}

func (s *Settings) apply(f MatchingFile) error {
	const op = "matching config"
	m := &s.Matching
	p := &s.Policy

	if f.Matcher != nil {
		m.Matcher = matching.Kind(strings.ToUpper(strings.TrimSpace(*f.Matcher)))
		if _, err := matching.NewMatcher(m.Matcher, *m); err != nil {
			return err
		}
	}
	if f.AmountTolerance != nil {
		tol, err := decimal.NewFromString(*f.AmountTolerance)
		if err != nil {
			return apperr.Validation(op, "amount_tolerance %q is not a decimal", *f.AmountTolerance)
		}
		m.AmountTolerance = tol
	}
	setInt(&m.DateWindowDays, f.DateWindowDays)
	setFloat(&m.ExactFloor, f.ExactFloor)
	setFloat(&m.FuzzyFloor, f.FuzzyFloor)
	setInt(&m.FallbackWindowDays, f.FallbackWindowDays)
	setFloat(&m.LooseAmountTolerancePct, f.LooseAmountTolerancePct)
	setFloat(&m.MinimumFloor, f.MinimumFloor)
	if len(f.MatcherWeights) > 0 {
		weights := matching.DefaultWeights()
		for name, w := range f.MatcherWeights {
			weights[matching.Kind(strings.ToUpper(name))] = w
		}
		m.Weights = weights
	}

	setFloat(&p.AutoApplyThreshold, f.AutoApplyThreshold)
	setFloat(&p.ReviewThreshold, f.ReviewThreshold)
	setInt(&p.MaxCommitAttempts, f.MaxCommitAttempts)
	setInt(&p.Workers, f.Workers)
	if f.RetryBackoff != nil {
		d, err := time.ParseDuration(*f.RetryBackoff)
		if err != nil {
			return apperr.Validation(op, "retry_backoff %q is not a duration", *f.RetryBackoff)
		}
		p.RetryBackoff = d
	}
	return nil
}

func (s *Settings) Validate() error {
	const op = "settings"
	switch s.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return apperr.Validation(op, "DB_DRIVER must be %s or %s, got %q", DriverPostgres, DriverSQLite, s.DBDriver)
	}
	if s.DatabaseURL == "" {
		return apperr.Validation(op, "DATABASE_URL is required")
	}
	if port, err := strconv.Atoi(s.Port); err != nil || port <= 0 || port > 65535 {
		return apperr.Validation(op, "PORT %q is not a valid port", s.Port)
	}
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return apperr.Validation(op, "LOG_LEVEL: %v", err)
	}
	if err := s.Matching.Validate(); err != nil {
		return err
	}
	return s.Policy.Validate()
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml), with ${VAR} references expanded
//  2. Environment variables (fallback), optionally seeded from a .env file
//
// Example usage:
//
//	cfg, err := config.LoadOrEnv("")
//	if err != nil {
//		return err
//	}
//	dbPath := cfg.Storage.DatabasePath
//	m, err := matcher.New(cfg.Matching)
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
)

// Config represents the entire application configuration
type Config struct {
	Matching      matcher.Config      `yaml:"matching"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" (console) or "json"
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Matching: matcher.DefaultConfig(),
		Storage: StorageConfig{
			DatabasePath: "reconciler.db",
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// Load reads and parses the config file. Keys missing from the file keep
// their defaults, and the matching section is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECONCILER_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Matching.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := Default()

	cfg.Storage.DatabasePath = getEnv("RECONCILER_DB_PATH", cfg.Storage.DatabasePath)
	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", cfg.Observability.Logging.Format)

	m := &cfg.Matching
	m.AutoThreshold = getEnvFloat("RECONCILER_AUTO_THRESHOLD", m.AutoThreshold)
	m.SuggestedThreshold = getEnvFloat("RECONCILER_SUGGESTED_THRESHOLD", m.SuggestedThreshold)
	m.DateWeight = getEnvFloat("RECONCILER_DATE_WEIGHT", m.DateWeight)
	m.AmountWeight = getEnvFloat("RECONCILER_AMOUNT_WEIGHT", m.AmountWeight)
	m.TextWeight = getEnvFloat("RECONCILER_TEXT_WEIGHT", m.TextWeight)
	m.AmountTolerancePercent = getEnvFloat("RECONCILER_AMOUNT_TOLERANCE_PERCENT", m.AmountTolerancePercent)
	m.MaxPaymentWindowDays = getEnvInt("RECONCILER_MAX_PAYMENT_WINDOW_DAYS", m.MaxPaymentWindowDays)
	m.OutlierMultiplier = getEnvFloat("RECONCILER_OUTLIER_MULTIPLIER", m.OutlierMultiplier)
	m.Workers = getEnvInt("RECONCILER_WORKERS", m.Workers)

	return cfg
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given) without overriding ones already set. Missing files are not an
// error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// DefaultFiles are looked up in the working directory when no config file
// is named.
var DefaultFiles = []string{"config.yaml", "config.yml"}

// LoadOrEnv loads path, or the first of DefaultFiles present when path is
// empty, and falls back to environment variables only when no file exists.
// A file that exists but does not load is an error.
func LoadOrEnv(path string) (*Config, error) {
	_ = LoadDotEnv()

	if path == "" {
		for _, candidate := range DefaultFiles {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return LoadFromEnv(), nil
	}
	return Load(path)
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.Atoi(val); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseFloat(val, 64); err == nil {
			return result
		}
	}
	return fallback
}

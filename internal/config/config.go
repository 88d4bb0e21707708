package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clubfin/internal/forecast"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	DataBackend  string
	SQLiteDBPath string

	// AMQP. An empty URL disables budget change events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleBudgetSheetSuffix  string

	// Worker
	ResyncInterval  time.Duration
	MirrorCacheSize int

	// Logging
	LogLevel string

	// Reallocation policy, optionally overlaid from PolicyFile.
	PolicyFile     string
	UnmappedPolicy string
	InflationRate  float64
	CriticalYears  float64
	WarningYears   float64
}

// Policy is the TOML shape of the policy file.
type Policy struct {
	UnmappedPolicy string               `toml:"unmapped_policy"`
	InflationRate  *float64             `toml:"inflation_rate"`
	Thresholds     *forecast.Thresholds `toml:"thresholds"`
}

func Load() *Config {
	th := forecast.DefaultThresholds()
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/clubfin.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "clubfin"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_changes"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleBudgetSheetSuffix:  getEnv("GOOGLE_BUDGET_SHEET_SUFFIX", "Budget"),

		ResyncInterval:  getEnvDuration("RESYNC_INTERVAL", 15*time.Minute),
		MirrorCacheSize: getEnvInt("MIRROR_CACHE_SIZE", 64),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		PolicyFile:     getEnv("CLUBFIN_POLICY_FILE", ""),
		UnmappedPolicy: getEnv("UNMAPPED_POLICY", "skip"),
		InflationRate:  getEnvFloat("INFLATION_RATE", forecast.DefaultInflationRate),
		CriticalYears:  getEnvFloat("CRITICAL_YEARS", th.CriticalYears),
		WarningYears:   getEnvFloat("WARNING_YEARS", th.WarningYears),
	}

	if cfg.PolicyFile != "" {
		if err := cfg.ApplyPolicyFile(cfg.PolicyFile); err != nil {
			// Validate reports the unreadable file again; keep env values meanwhile.
			slog.Warn("Failed to apply policy file", "path", cfg.PolicyFile, "error", err)
		}
	}
	return cfg
}

// ApplyPolicyFile overlays the values present in a TOML policy file.
func (c *Config) ApplyPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading policy file: %w", err)
	}
	var p Policy
	if err := toml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing policy file: %w", err)
	}
	if p.UnmappedPolicy != "" {
		c.UnmappedPolicy = p.UnmappedPolicy
	}
	if p.InflationRate != nil {
		c.InflationRate = *p.InflationRate
	}
	if p.Thresholds != nil {
		c.CriticalYears = p.Thresholds.CriticalYears
		c.WarningYears = p.Thresholds.WarningYears
	}
	return nil
}

// ForecastPolicy returns the configured forecasting tunables.
func (c *Config) ForecastPolicy() forecast.Policy {
	return forecast.Policy{
		InflationRate: c.InflationRate,
		Thresholds: forecast.Thresholds{
			CriticalYears: c.CriticalYears,
			WarningYears:  c.WarningYears,
		},
	}
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// SheetsEnabled reports whether the spreadsheet mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite]", c.DataBackend))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the sheets mirror")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.ResyncInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid resync interval %v: must be at least 1 minute", c.ResyncInterval))
	} else if c.ResyncInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid resync interval %v: must be at most 24 hours", c.ResyncInterval))
	}
	if c.MirrorCacheSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid mirror cache size %d: must be at least 1", c.MirrorCacheSize))
	}

	if c.PolicyFile != "" {
		if _, err := os.Stat(c.PolicyFile); err != nil {
			errs = append(errs, fmt.Sprintf("policy file not readable: %v", err))
		}
	}
	if c.UnmappedPolicy != "skip" && c.UnmappedPolicy != "route" {
		errs = append(errs, fmt.Sprintf("invalid unmapped policy '%s': must be 'skip' or 'route'", c.UnmappedPolicy))
	}
	if c.InflationRate < 0 || c.InflationRate > 1 {
		errs = append(errs, fmt.Sprintf("invalid inflation rate %v: must be between 0 and 1", c.InflationRate))
	}
	if err := c.ForecastPolicy().Thresholds.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return errors.New("configuration validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

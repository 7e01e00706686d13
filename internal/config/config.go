package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"babywallet/internal/core"
)

type Config struct {
	// HTTP Server
	Port        string
	MetricsPort string
	RateLimit   int // write requests per minute per client

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Ledger rules
	MinChildAge         int
	MaxChildAge         int
	UnlockAge           int
	MonthlyRate         decimal.Decimal
	DefaultContribution decimal.Decimal
	ProjectionCacheSize int
	ProjectionCacheTTL  time.Duration

	// Workers
	ContributionInterval    time.Duration
	ContributionConcurrency int
	RecoveryInterval        time.Duration
	StaleAfter              time.Duration

	// problems found while reading the file or env, reported by Validate
	loadErrors []string
}

// fileConfig mirrors the optional TOML file named by BABYWALLET_CONFIG.
// Zero values leave the defaults untouched.
type fileConfig struct {
	Server struct {
		Port        string `toml:"port"`
		MetricsPort string `toml:"metrics_port"`
		RateLimit   int    `toml:"rate_limit"`
		LogLevel    string `toml:"log_level"`
		LogFormat   string `toml:"log_format"`
	} `toml:"server"`
	Storage struct {
		Backend    string `toml:"backend"`
		SQLitePath string `toml:"sqlite_path"`
	} `toml:"storage"`
	AMQP struct {
		URL      string `toml:"url"`
		Exchange string `toml:"exchange"`
		Queue    string `toml:"queue"`
	} `toml:"amqp"`
	Sheets struct {
		SpreadsheetID      string `toml:"spreadsheet_id"`
		SheetName          string `toml:"sheet_name"`
		ServiceAccountFile string `toml:"service_account_file"`
	} `toml:"sheets"`
	Ledger struct {
		MinChildAge         *int   `toml:"min_child_age"`
		MaxChildAge         *int   `toml:"max_child_age"`
		UnlockAge           *int   `toml:"unlock_age"`
		MonthlyRate         string `toml:"monthly_rate"`
		DefaultContribution string `toml:"default_contribution"`
		ProjectionCacheSize int    `toml:"projection_cache_size"`
		ProjectionCacheTTL  string `toml:"projection_cache_ttl"`
	} `toml:"ledger"`
	Workers struct {
		ContributionInterval    string `toml:"contribution_interval"`
		ContributionConcurrency int    `toml:"contribution_concurrency"`
		RecoveryInterval        string `toml:"recovery_interval"`
		StaleAfter              string `toml:"stale_after"`
	} `toml:"workers"`
}

// Defaults returns the configuration used when neither a file nor the
// environment says otherwise.
func Defaults() *Config {
	return &Config{
		Port:                    "8081",
		MetricsPort:             "9090",
		RateLimit:               60,
		LogLevel:                "info",
		LogFormat:               "text",
		DataBackend:             "memory",
		SQLiteDBPath:            "./data/babywallet.db",
		AMQPURL:                 "",
		AMQPExchange:            "babywallet",
		AMQPQueue:               "settlements",
		GoogleSheetName:         "Ledger",
		MinChildAge:             0,
		MaxChildAge:             17,
		UnlockAge:               18,
		MonthlyRate:             decimal.RequireFromString("0.005"),
		DefaultContribution:     decimal.NewFromInt(100),
		ProjectionCacheSize:     1024,
		ProjectionCacheTTL:      time.Hour,
		ContributionInterval:    time.Hour,
		ContributionConcurrency: 4,
		RecoveryInterval:        5 * time.Minute,
		StaleAfter:              15 * time.Minute,
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// BABYWALLET_CONFIG (if any), then environment variables.
func Load() *Config {
	cfg := Defaults()
	if path := os.Getenv("BABYWALLET_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			cfg.loadErrors = append(cfg.loadErrors, err.Error())
		}
	}
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("cannot read config file '%s': %v", path, err)
	}

	setString(&c.Port, fc.Server.Port)
	setString(&c.MetricsPort, fc.Server.MetricsPort)
	setInt(&c.RateLimit, fc.Server.RateLimit)
	setString(&c.LogLevel, fc.Server.LogLevel)
	setString(&c.LogFormat, fc.Server.LogFormat)

	setString(&c.DataBackend, fc.Storage.Backend)
	setString(&c.SQLiteDBPath, fc.Storage.SQLitePath)

	setString(&c.AMQPURL, fc.AMQP.URL)
	setString(&c.AMQPExchange, fc.AMQP.Exchange)
	setString(&c.AMQPQueue, fc.AMQP.Queue)

	setString(&c.GoogleSpreadsheetID, fc.Sheets.SpreadsheetID)
	setString(&c.GoogleSheetName, fc.Sheets.SheetName)
	setString(&c.GoogleServiceAccountFile, fc.Sheets.ServiceAccountFile)

	if fc.Ledger.MinChildAge != nil {
		c.MinChildAge = *fc.Ledger.MinChildAge
	}
	if fc.Ledger.MaxChildAge != nil {
		c.MaxChildAge = *fc.Ledger.MaxChildAge
	}
	if fc.Ledger.UnlockAge != nil {
		c.UnlockAge = *fc.Ledger.UnlockAge
	}
	c.setDecimal(&c.MonthlyRate, "monthly_rate", fc.Ledger.MonthlyRate)
	c.setDecimal(&c.DefaultContribution, "default_contribution", fc.Ledger.DefaultContribution)
	setInt(&c.ProjectionCacheSize, fc.Ledger.ProjectionCacheSize)
	c.setDuration(&c.ProjectionCacheTTL, "projection_cache_ttl", fc.Ledger.ProjectionCacheTTL)

	c.setDuration(&c.ContributionInterval, "contribution_interval", fc.Workers.ContributionInterval)
	setInt(&c.ContributionConcurrency, fc.Workers.ContributionConcurrency)
	c.setDuration(&c.RecoveryInterval, "recovery_interval", fc.Workers.RecoveryInterval)
	c.setDuration(&c.StaleAfter, "stale_after", fc.Workers.StaleAfter)
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.RateLimit = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimit)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", c.GoogleSheetName)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)

	c.MinChildAge = getEnvInt("MIN_CHILD_AGE", c.MinChildAge)
	c.MaxChildAge = getEnvInt("MAX_CHILD_AGE", c.MaxChildAge)
	c.UnlockAge = getEnvInt("UNLOCK_AGE", c.UnlockAge)
	c.setDecimal(&c.MonthlyRate, "MONTHLY_RATE", os.Getenv("MONTHLY_RATE"))
	c.setDecimal(&c.DefaultContribution, "DEFAULT_CONTRIBUTION", os.Getenv("DEFAULT_CONTRIBUTION"))
	c.ProjectionCacheSize = getEnvInt("PROJECTION_CACHE_SIZE", c.ProjectionCacheSize)
	c.ProjectionCacheTTL = getEnvDuration("PROJECTION_CACHE_TTL", c.ProjectionCacheTTL)

	c.ContributionInterval = getEnvDuration("CONTRIBUTION_INTERVAL", c.ContributionInterval)
	c.ContributionConcurrency = getEnvInt("CONTRIBUTION_CONCURRENCY", c.ContributionConcurrency)
	c.RecoveryInterval = getEnvDuration("SETTLEMENT_RECOVERY_INTERVAL", c.RecoveryInterval)
	c.StaleAfter = getEnvDuration("SETTLEMENT_STALE_AFTER", c.StaleAfter)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	errors := append([]string(nil), c.loadErrors...)

	// Validate ports
	for _, p := range []struct{ name, value string }{{"port", c.Port}, {"metrics port", c.MetricsPort}} {
		if port, err := strconv.Atoi(p.value); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be a number", p.name, p.value))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid %s %d: must be between 1 and 65535", p.name, port))
		}
	}

	if c.RateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimit))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Sheets export is optional; once enabled it needs a tab and credentials
	// unless application default credentials are in the environment.
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Ledger rules
	if c.MinChildAge < 0 {
		errors = append(errors, fmt.Sprintf("invalid minimum child age %d: must not be negative", c.MinChildAge))
	}
	if c.MaxChildAge < c.MinChildAge {
		errors = append(errors, fmt.Sprintf("invalid maximum child age %d: must be at least %d", c.MaxChildAge, c.MinChildAge))
	}
	if c.UnlockAge <= c.MaxChildAge {
		errors = append(errors, fmt.Sprintf("invalid unlock age %d: must be greater than maximum child age %d", c.UnlockAge, c.MaxChildAge))
	}
	if c.MonthlyRate.IsNegative() || c.MonthlyRate.GreaterThan(decimal.NewFromInt(1)) {
		errors = append(errors, fmt.Sprintf("invalid monthly rate %s: must be between 0 and 1", c.MonthlyRate))
	}
	if !c.MonthlyRate.Equal(c.MonthlyRate.Truncate(core.MaxRatePlaces)) {
		errors = append(errors, fmt.Sprintf("invalid monthly rate %s: at most %d decimal places", c.MonthlyRate, core.MaxRatePlaces))
	}
	if c.DefaultContribution.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid default contribution %s: must not be negative", c.DefaultContribution))
	}
	if c.ProjectionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid projection cache size %d: must be at least 1", c.ProjectionCacheSize))
	}
	if c.ProjectionCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid projection cache ttl %v: must be at least 1 minute", c.ProjectionCacheTTL))
	}

	// Validate worker configuration
	if c.ContributionInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid contribution interval %v: must be at least 1 second", c.ContributionInterval))
	} else if c.ContributionInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid contribution interval %v: must be at most 24 hours", c.ContributionInterval))
	}
	if c.ContributionConcurrency < 1 || c.ContributionConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid contribution concurrency %d: must be between 1 and 64", c.ContributionConcurrency))
	}
	if c.RecoveryInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid settlement recovery interval %v: must be at least 1 second", c.RecoveryInterval))
	}
	if c.StaleAfter < time.Second {
		errors = append(errors, fmt.Sprintf("invalid settlement stale threshold %v: must be at least 1 second", c.StaleAfter))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func (c *Config) setDecimal(dst *decimal.Decimal, name, value string) {
	if value == "" {
		return
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("invalid %s '%s': must be a decimal number", name, value))
		return
	}
	*dst = d
}

func (c *Config) setDuration(dst *time.Duration, name, value string) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("invalid %s '%s': %v", name, value, err))
		return
	}
	*dst = d
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setInt(dst *int, value int) {
	if value != 0 {
		*dst = value
	}
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

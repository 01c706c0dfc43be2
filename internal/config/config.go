package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"boqledger/internal/gst"
	"boqledger/internal/logger"
)

type Config struct {
	// Storage
	DBPath string

	// Project locking: Redis when set, in-process otherwise
	RedisURL string
	LockTTL  time.Duration

	// Billing rules
	CompanyState        string
	DefaultPaymentTerms string
	StrictGSTRates      bool

	// HTTP API
	HTTPAddr string
	AuthUser string
	AuthPass string

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		DBPath:               getEnv("DB_PATH", "./data/boqledger.db"),
		RedisURL:             getEnv("REDIS_URL", ""),
		CompanyState:         getEnv("COMPANY_STATE", "karnataka"),
		DefaultPaymentTerms:  getEnv("DEFAULT_PAYMENT_TERMS", "Payment due within 30 days"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		AuthUser:             getEnv("AUTH_USER", ""),
		AuthPass:             getEnv("AUTH_PASS", ""),
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "BOQ_Status"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stderr"),
	}

	ttl, err := strconv.Atoi(getEnv("LOCK_TTL_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: LOCK_TTL_SECONDS: %w", err)
	}
	config.LockTTL = time.Duration(ttl) * time.Second

	if config.StrictGSTRates, err = strconv.ParseBool(getEnv("STRICT_GST_RATES", "false")); err != nil {
		return nil, fmt.Errorf("config validation failed: STRICT_GST_RATES: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL_SECONDS must be positive")
	}
	if _, ok := gst.LookupState(c.CompanyState); !ok {
		return fmt.Errorf("COMPANY_STATE %q is not a known GST state", c.CompanyState)
	}
	if (c.AuthUser == "") != (c.AuthPass == "") {
		return fmt.Errorf("AUTH_USER and AUTH_PASS must be set together")
	}
	return nil
}

// RequireSheets checks the settings the export command needs.
func (c *Config) RequireSheets() error {
	if c.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

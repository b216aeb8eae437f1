package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"clinic/internal/ledger"
)

type Config struct {
	// HTTP Server
	Port         string
	RateLimit    int
	RateWindow   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// AMQP. An empty URL runs notifications in-process.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Spreadsheet mirror
	MirrorBackend         string
	GoogleSpreadsheetID   string
	GooglePaymentsSheet   string
	GoogleExpensesSheet   string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Clinic
	TimeZone        string
	ClinicName      string
	ClinicAddress   string
	ClinicPhone     string
	ClinicEmail     string
	CountryCode     string
	InvoiceTemplate string
	SeedExpenses    bool

	// Reports
	CacheSize          int
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration

	// Notifications and printing
	ReminderStaleAfter time.Duration
	PrintDir           string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		RateLimit:    getEnvInt("RATE_LIMIT", 60),
		RateWindow:   getEnvDuration("RATE_WINDOW", time.Minute),
		ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/clinic.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "clinic"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "clinic_notifications"),

		MirrorBackend:         getEnv("MIRROR_BACKEND", "none"),
		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GooglePaymentsSheet:   getEnv("GOOGLE_PAYMENTS_SHEET_NAME", ""),
		GoogleExpensesSheet:   getEnv("GOOGLE_EXPENSES_SHEET_NAME", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		GoogleCredentialsJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		TimeZone:        getEnv("CLINIC_TIMEZONE", "Asia/Aden"),
		ClinicName:      getEnv("CLINIC_NAME", "Al-Aamer Dental Clinic"),
		ClinicAddress:   getEnv("CLINIC_ADDRESS", "Sana'a, Yemen"),
		ClinicPhone:     getEnv("CLINIC_PHONE", "+967 123 456 789"),
		ClinicEmail:     getEnv("CLINIC_EMAIL", "info@al-aamer-dental.com"),
		CountryCode:     getEnv("CLINIC_COUNTRY_CODE", "967"),
		InvoiceTemplate: getEnv("INVOICE_TEMPLATE", ledger.DefaultInvoiceTemplate),
		SeedExpenses:    getEnvBool("SEED_DEFAULT_EXPENSES", false),

		CacheSize:          getEnvInt("REPORT_CACHE_SIZE", 64),
		CacheTTL:           getEnvDuration("REPORT_CACHE_TTL", 10*time.Minute),
		CacheSweepInterval: getEnvDuration("REPORT_CACHE_SWEEP", time.Minute),

		ReminderStaleAfter: getEnvDuration("REMINDER_STALE_AFTER", time.Hour),
		PrintDir:           getEnv("PRINT_DIR", "./data/print"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Location loads the clinic time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// UsesAMQP reports whether notifications go through a broker.
func (c *Config) UsesAMQP() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimit))
	}
	if c.RateWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rate window %v: must be at least 1 second", c.RateWindow))
	}

	// Validate data backend
	switch c.DataBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite]", c.DataBackend))
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

	// Validate the spreadsheet mirror
	switch c.MirrorBackend {
	case "none", "memory":
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using the sheets mirror")
		}
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheets mirror")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid mirror backend '%s': must be one of [none memory sheets]", c.MirrorBackend))
	}

	// Validate clinic settings
	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid time zone '%s'", c.TimeZone))
	}
	if strings.TrimSpace(c.ClinicName) == "" {
		errors = append(errors, "clinic name cannot be empty")
	}
	if _, err := strconv.Atoi(c.CountryCode); err != nil || strings.HasPrefix(c.CountryCode, "+") {
		errors = append(errors, fmt.Sprintf("invalid country code '%s': must be digits only", c.CountryCode))
	}
	if _, err := ledger.FormatInvoiceNumber(c.InvoiceTemplate, time.Now(), 1); err != nil {
		errors = append(errors, fmt.Sprintf("invalid invoice template '%s': %v", c.InvoiceTemplate, err))
	}

	// Validate report cache
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.CacheSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report cache sweep interval %v: must be at least 1 second", c.CacheSweepInterval))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

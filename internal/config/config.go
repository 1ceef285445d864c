package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// State database
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID string
	LedgerSheetName     string
	BaselineNamedRange  string
	BaselineSheetName   string

	// AMQP (optional; when unset the checker emails directly)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	CheckInterval time.Duration

	// Email
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	EmailTo      string

	// eXpense365 fetch pipeline (optional)
	Expense365Email    string
	Expense365Password string
	Expense365ReportID int
	Expense365GroupID  int
	Expense365SubGroup int
	ConverterBaseURL   string

	// Drive copy of the PDF ledger (optional)
	DrivePDFFileID string
	DrivePDFName   string
}

func Load() *Config {
	return &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledgercheck.db"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		LedgerSheetName:     getEnv("LEDGER_SHEET_NAME", ""),
		BaselineNamedRange:  getEnv("BASELINE_NAMED_RANGE", "DefaultCompare"),
		BaselineSheetName:   getEnv("BASELINE_SHEET_NAME", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledgercheck"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changes"),

		CheckInterval: getEnvDuration("CHECK_INTERVAL", 30*time.Minute),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 465),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		EmailFrom:    getEnv("EMAIL_FROM", ""),
		EmailTo:      getEnv("EMAIL_TO", ""),

		Expense365Email:    getEnv("EXPENSE365_EMAIL", ""),
		Expense365Password: getEnv("EXPENSE365_PASSWORD", ""),
		Expense365ReportID: getEnvInt("EXPENSE365_REPORT_ID", 0),
		Expense365GroupID:  getEnvInt("EXPENSE365_GROUP_ID", 0),
		Expense365SubGroup: getEnvInt("EXPENSE365_SUBGROUP_ID", 0),
		ConverterBaseURL:   getEnv("CONVERTER_BASE_URL", ""),

		DrivePDFFileID: getEnv("DRIVE_PDF_FILE_ID", ""),
		DrivePDFName:   getEnv("DRIVE_PDF_NAME", "Ledger.pdf"),
	}
}

// FetchEnabled reports whether the eXpense365 download pipeline is
// configured.
func (c *Config) FetchEnabled() bool {
	return c.Expense365Email != ""
}

// EmailEnabled reports whether direct email notification is configured.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

// SheetURL returns the browser link to the comparison spreadsheet.
func (c *Config) SheetURL() string {
	return "https://docs.google.com/spreadsheets/d/" + c.GoogleSpreadsheetID
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "GOOGLE_SPREADSHEET_ID is required")
	}
	if c.BaselineNamedRange == "" && c.BaselineSheetName == "" {
		errs = append(errs, "either BASELINE_NAMED_RANGE or BASELINE_SHEET_NAME must be set")
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.CheckInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid check interval %v: must be at least 1 minute", c.CheckInterval))
	} else if c.CheckInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid check interval %v: must be at most 24 hours", c.CheckInterval))
	}

	if c.SMTPHost != "" {
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			errs = append(errs, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
		}
		if c.EmailFrom == "" {
			errs = append(errs, "EMAIL_FROM cannot be empty when SMTP is configured")
		}
		if c.EmailTo == "" {
			errs = append(errs, "EMAIL_TO cannot be empty when SMTP is configured")
		}
	}

	if c.FetchEnabled() {
		if c.Expense365Password == "" {
			errs = append(errs, "EXPENSE365_PASSWORD is required when EXPENSE365_EMAIL is set")
		}
		if c.Expense365ReportID == 0 {
			errs = append(errs, "EXPENSE365_REPORT_ID is required when EXPENSE365_EMAIL is set")
		}
		if c.ConverterBaseURL == "" {
			errs = append(errs, "CONVERTER_BASE_URL is required when the fetch pipeline is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

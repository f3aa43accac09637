package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Ledger    LedgerConfig
	Locking   LockingConfig
	Sync      SyncConfig
	Reconcile ReconcileConfig
	Sheets    SheetsConfig
	Reporting ReportingConfig
	MongoDB   MongoDBConfig
	WhatsApp  WhatsAppConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port     string
	LogLevel string
}

// LedgerConfig points at the remote Ledger Store API.
type LedgerConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	PubSubBaseURL  string
	CameraID       string
	CameraDeviceID string
}

// LockingConfig holds defaults for tray reservations.
type LockingConfig struct {
	DefaultTimeout time.Duration
	DefaultUserID  string
}

// SyncConfig tunes the polling orchestrator.
type SyncConfig struct {
	PollInterval time.Duration
	Debounce     time.Duration
	PageSize     int
}

// ReconcileConfig selects where external quantities come from.
type ReconcileConfig struct {
	PageSize int
	Source   string
}

// SheetsConfig contains configuration required to read the external ledger from Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	ExternalRange   string
	SummaryRange    string
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule string
	Timezone     string
}

// MongoDBConfig holds settings for MongoDB. An empty URI disables summary snapshots.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// WhatsAppConfig contains credentials for operator notifications. An empty
// token disables notifications.
type WhatsAppConfig struct {
	AccessToken     string
	PhoneNumberID   string
	BaseURL         string
	APIVersion      string
	ReportRecipient string
}

const (
	SourceLedger = "ledger"
	SourceSheets = "sheets"
)

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	ledgerBase := os.Getenv("LEDGER_BASE_URL")

	var parseErrs []error
	duration := func(key string, fallback time.Duration) time.Duration {
		d, err := getDuration(key, fallback)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return d
	}
	integer := func(key string, fallback int) int {
		n, err := getInt(key, fallback)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return n
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getenvWithDefault("APP_PORT", "8080"),
			LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Ledger: LedgerConfig{
			BaseURL:        ledgerBase,
			Token:          os.Getenv("LEDGER_TOKEN"),
			Timeout:        duration("LEDGER_TIMEOUT", 15*time.Second),
			PubSubBaseURL:  getenvWithDefault("PUBSUB_BASE_URL", ledgerBase),
			CameraID:       getenvWithDefault("CAMERA_ID", "AMS-Nano-Nano_Console_B"),
			CameraDeviceID: getenvWithDefault("CAMERA_DEVICE_ID", "AMS-Nano-Nano"),
		},
		Locking: LockingConfig{
			DefaultTimeout: duration("LOCK_DEFAULT_TIMEOUT", 10*time.Minute),
			DefaultUserID:  getenvWithDefault("LOCK_DEFAULT_USER", "1"),
		},
		Sync: SyncConfig{
			PollInterval: duration("SYNC_POLL_INTERVAL", 3*time.Second),
			Debounce:     duration("SYNC_DEBOUNCE", 400*time.Millisecond),
			PageSize:     integer("SYNC_PAGE_SIZE", 10),
		},
		Reconcile: ReconcileConfig{
			PageSize: integer("RECONCILE_PAGE_SIZE", 100),
			Source:   getenvWithDefault("RECONCILE_SOURCE", SourceLedger),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			ExternalRange:   getenvWithDefault("SHEETS_EXTERNAL_RANGE", "SAP!A:B"),
			SummaryRange:    os.Getenv("SHEETS_SUMMARY_RANGE"),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "UTC"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "traystore"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:     os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:         getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:      getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			ReportRecipient: os.Getenv("WHATSAPP_REPORT_RECIPIENT"),
		},
	}

	if err := errors.Join(parseErrs...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.Ledger.BaseURL == "":
		return errors.New("LEDGER_BASE_URL must be provided")
	case c.Ledger.Token == "":
		return errors.New("LEDGER_TOKEN must be provided")
	case c.Ledger.Timeout <= 0:
		return errors.New("LEDGER_TIMEOUT must be positive")
	}

	if c.Locking.DefaultTimeout <= 0 {
		return errors.New("LOCK_DEFAULT_TIMEOUT must be positive")
	}

	switch {
	case c.Sync.PollInterval <= 0:
		return errors.New("SYNC_POLL_INTERVAL must be positive")
	case c.Sync.Debounce < 0:
		return errors.New("SYNC_DEBOUNCE must not be negative")
	case c.Sync.PageSize <= 0:
		return errors.New("SYNC_PAGE_SIZE must be positive")
	}

	if c.Reconcile.PageSize <= 0 {
		return errors.New("RECONCILE_PAGE_SIZE must be positive")
	}

	switch c.Reconcile.Source {
	case SourceLedger:
	case SourceSheets:
		if c.Sheets.CredentialsPath == "" {
			return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided when RECONCILE_SOURCE=sheets")
		}
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided when RECONCILE_SOURCE=sheets")
		}
	default:
		return fmt.Errorf("RECONCILE_SOURCE must be %q or %q", SourceLedger, SourceSheets)
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	if c.WhatsApp.AccessToken != "" && c.WhatsApp.PhoneNumberID == "" {
		return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided with WHATSAPP_TOKEN")
	}

	return nil
}

// SheetsEnabled reports whether a spreadsheet is configured.
func (c *Config) SheetsEnabled() bool {
	return c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetID != ""
}

// NotificationsEnabled reports whether WhatsApp reports can be sent.
func (c *Config) NotificationsEnabled() bool {
	return c.WhatsApp.AccessToken != "" && c.WhatsApp.ReportRecipient != ""
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

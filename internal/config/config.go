package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"
)

// Event drivers.
const (
	EventsNone  = "none"
	EventsNATS  = "nats"
	EventsKafka = "kafka"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Checkout  CheckoutConfig
	Sheets    SheetsConfig
	Reporting ReportingConfig
	AI        AIConfig
	Events    EventsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port             string
	AdminPIN         string
	LogLevel         string
	CORSAllowOrigins []string
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver      string
	MongoURI    string
	MongoDBName string
	PostgresURL string
	SeedPath    string
}

// CheckoutConfig tunes the token lifecycle.
type CheckoutConfig struct {
	TokenValidity time.Duration
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Enabled reports whether the sales sheet mirror is configured.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != "" && c.SpreadsheetID != ""
}

// ReportingConfig holds scheduler and dashboard settings.
type ReportingConfig struct {
	CronSchedule        string
	ExpirySweepSchedule string
	Timezone            string
	LowStockThreshold   int
	SummaryTimeout      time.Duration
}

// AIConfig holds settings for LLM providers.
type AIConfig struct {
	AnthropicKey string
	BaseURL      string
}

// EventsConfig selects the domain event transport.
type EventsConfig struct {
	Driver       string
	NATSURL      string
	KafkaBrokers string
	Topic        string
}

// Load reads environment variables (optionally from the provided file),
// materializes a Config instance and validates it.
func Load(envFile string) (*Config, error) {
	cfg, err := Read(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation. Tools that only need part of the configuration
// validate the part they use.
func Read(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	tokenValidity, err := getenvDuration("TOKEN_VALIDITY", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	summaryTimeout, err := getenvDuration("SUMMARY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	lowStock, err := getenvInt("LOW_STOCK_THRESHOLD", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:             getenvWithDefault("APP_PORT", "8080"),
			AdminPIN:         os.Getenv("ADMIN_PIN"),
			LogLevel:         getenvWithDefault("LOG_LEVEL", "info"),
			CORSAllowOrigins: splitList(getenvWithDefault("CORS_ALLOW_ORIGINS", "*")),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(getenvWithDefault("STORE_DRIVER", DriverMemory)),
			MongoURI:    os.Getenv("MONGODB_URI"),
			MongoDBName: getenvWithDefault("MONGODB_DB_NAME", "selfcheckout"),
			PostgresURL: os.Getenv("POSTGRES_URL"),
			SeedPath:    os.Getenv("CATALOG_SEED_PATH"),
		},
		Checkout: CheckoutConfig{
			TokenValidity: tokenValidity,
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
		Reporting: ReportingConfig{
			CronSchedule:        getenvWithDefault("REPORT_CRON_SCHEDULE", "0 21 * * *"),
			ExpirySweepSchedule: getenvWithDefault("EXPIRY_SWEEP_SCHEDULE", "@every 1m"),
			Timezone:            getenvWithDefault("TIMEZONE", "UTC"),
			LowStockThreshold:   lowStock,
			SummaryTimeout:      summaryTimeout,
		},
		AI: AIConfig{
			AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
			BaseURL:      getenvWithDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		},
		Events: EventsConfig{
			Driver:       strings.ToLower(getenvWithDefault("EVENTS_DRIVER", EventsNone)),
			NATSURL:      getenvWithDefault("NATS_URL", "nats://127.0.0.1:4222"),
			KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
			Topic:        getenvWithDefault("EVENTS_TOPIC", "selfcheckout.events"),
		},
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

	if c.Server.AdminPIN == "" {
		return errors.New("ADMIN_PIN must be provided")
	}

	if err := c.ValidateStore(); err != nil {
		return err
	}

	if c.Checkout.TokenValidity <= 0 {
		return errors.New("TOKEN_VALIDITY must be positive")
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_DATABASE_ID must be provided together")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if c.Reporting.ExpirySweepSchedule == "" {
		return errors.New("EXPIRY_SWEEP_SCHEDULE must be provided")
	}

	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q is invalid: %w", c.Reporting.Timezone, err)
	}

	if c.Reporting.LowStockThreshold < 0 {
		return errors.New("LOW_STOCK_THRESHOLD must be >= 0")
	}

	switch c.Events.Driver {
	case EventsNone:
	case EventsNATS:
		if c.Events.NATSURL == "" {
			return errors.New("NATS_URL must be provided when EVENTS_DRIVER=nats")
		}
	case EventsKafka:
		if c.Events.KafkaBrokers == "" {
			return errors.New("KAFKA_BROKERS must be provided when EVENTS_DRIVER=kafka")
		}
	default:
		return fmt.Errorf("EVENTS_DRIVER %q is not supported", c.Events.Driver)
	}

	return nil
}

// ValidateStore checks only the persistence settings.
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongoDB:
		if c.Store.MongoURI == "" {
			return errors.New("MONGODB_URI must be provided when STORE_DRIVER=mongodb")
		}
		if c.Store.MongoDBName == "" {
			return errors.New("MONGODB_DB_NAME must not be empty")
		}
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			return errors.New("POSTGRES_URL must be provided when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.Store.Driver)
	}
	return nil
}

// Location returns the reporting timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reporting.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 30m: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

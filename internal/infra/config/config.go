package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers understood by STORAGE_DRIVER.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMongo    = "mongo"
	StorageDriverPebble   = "pebble"
	StorageDriverRedis    = "redis"
)

const publicNetworkPassphrase = "Public Global Stellar Network ; September 2015"

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken string

	StorageDriver string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	PebbleDir     string
	RedisURL      string

	HorizonURL        string
	HorizonTimeout    time.Duration
	NetworkPassphrase string

	IgnoreTinyPayment bool
	FeeBumpPolicy     string // "skip" or "unwrap"
	TxExplorerURL     string

	PollInterval        time.Duration // caught-up polling cadence
	RetryBackoffInitial time.Duration
	RetryBackoffMax     time.Duration
	SendInterval        time.Duration // minimum spacing between Telegram sends
	IdleInterval        time.Duration // sleep when the outbox is empty
	MaxSendAttempts     int           // 0 retries a transient failure forever

	EnableBotCommands        bool
	EnableLedgerMonitor      bool
	EnableNotificationSender bool
	CronSpecStatusReport     string
	HTTPAddr                 string
	MetricsNamespace         string
	SeedLedger               uint64 // used by cmd/seed, 0 means current tip

	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	if cfg.EnableBotCommands, err = getBool("ENABLE_BOT_COMMANDS", true); err != nil {
		return nil, err
	}
	if cfg.EnableLedgerMonitor, err = getBool("ENABLE_LEDGER_MONITOR", true); err != nil {
		return nil, err
	}
	if cfg.EnableNotificationSender, err = getBool("ENABLE_NOTIFICATION_SENDER", true); err != nil {
		return nil, err
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" && (cfg.EnableBotCommands || cfg.EnableNotificationSender) {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.StorageDriver = strings.ToLower(getString("STORAGE_DRIVER", StorageDriverPostgres))
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case StorageDriverMongo:
		cfg.MongoURI = os.Getenv("MONGODB_URI")
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGODB_URI is not set")
		}
		cfg.MongoDatabase = getString("MONGODB_DATABASE", "stellar_notification_bot")
	case StorageDriverPebble:
		cfg.PebbleDir = getString("PEBBLE_DIR", "store")
	case StorageDriverRedis:
		cfg.RedisURL = os.Getenv("REDIS_URL")
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is not set")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	cfg.HorizonURL = getString("HORIZON_URL", "https://horizon.stellar.org")
	cfg.NetworkPassphrase = getString("NETWORK_PASSPHRASE", publicNetworkPassphrase)
	if cfg.HorizonTimeout, err = getDuration("HORIZON_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.IgnoreTinyPayment, err = getBool("IGNORE_TINY_PAYMENT", true); err != nil {
		return nil, err
	}
	cfg.FeeBumpPolicy = strings.ToLower(getString("FEE_BUMP_POLICY", "skip"))
	if cfg.FeeBumpPolicy != "skip" && cfg.FeeBumpPolicy != "unwrap" {
		return nil, fmt.Errorf("invalid FEE_BUMP_POLICY %q, expected skip or unwrap", cfg.FeeBumpPolicy)
	}
	cfg.TxExplorerURL = strings.TrimRight(getString("TX_EXPLORER_URL", "https://stellar.expert/explorer/public"), "/")

	if cfg.PollInterval, err = getDuration("POLL_INTERVAL", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryBackoffInitial, err = getDuration("RETRY_BACKOFF_INITIAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryBackoffMax, err = getDuration("RETRY_BACKOFF_MAX", time.Minute); err != nil {
		return nil, err
	}
	if cfg.SendInterval, err = getDuration("SEND_INTERVAL", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.IdleInterval, err = getDuration("IDLE_INTERVAL", time.Second); err != nil {
		return nil, err
	}

	maxAttemptsStr := getString("MAX_SEND_ATTEMPTS", "0")
	cfg.MaxSendAttempts, err = strconv.Atoi(maxAttemptsStr)
	if err != nil || cfg.MaxSendAttempts < 0 {
		return nil, fmt.Errorf("invalid MAX_SEND_ATTEMPTS %q", maxAttemptsStr)
	}

	cfg.CronSpecStatusReport = getString("CRON_SPEC_STATUS_REPORT", "* * * * *") // Default: every minute
	cfg.HTTPAddr = getString("HTTP_ADDR", ":9999")
	cfg.MetricsNamespace = getString("METRICS_NAMESPACE", "stellar_notification_bot")

	if seedStr := os.Getenv("SEED_LEDGER"); seedStr != "" {
		cfg.SeedLedger, err = strconv.ParseUint(seedStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SEED_LEDGER: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

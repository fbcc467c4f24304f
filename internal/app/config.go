package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMySQL    = "mysql"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"memory"`
	PGDSN       string `envconfig:"PG_DSN"`
	MySQLDSN    string `envconfig:"MYSQL_DSN"`
	AutoMigrate bool   `envconfig:"STORE_AUTO_MIGRATE" default:"true"`

	RedisAddr   string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	LockBackend string        `envconfig:"LOCK_BACKEND" default:"local"`
	LockTimeout time.Duration `envconfig:"LOCK_TIMEOUT" default:"5s"`
	LockTTL     time.Duration `envconfig:"LOCK_TTL" default:"30s"`

	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	AnalyticsCacheTTL time.Duration `envconfig:"ANALYTICS_CACHE_TTL" default:"0s"`

	RejectOverRemoval   bool   `envconfig:"INVENTORY_REJECT_OVER_REMOVAL" default:"false"`
	HistoryDefaultLimit int    `envconfig:"HISTORY_DEFAULT_LIMIT" default:"100"`
	LowStockScanCron    string `envconfig:"LOW_STOCK_SCAN_CRON" default:"0 * * * *"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config missing")
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.LockBackend = strings.ToLower(strings.TrimSpace(c.LockBackend))
	if c.StoreDriver == "" {
		c.StoreDriver = StoreMemory
	}
	if c.LockBackend == "" {
		c.LockBackend = LockLocal
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.PGDSN == "" {
			return errors.New("PG_DSN must be provided when STORE_DRIVER=postgres")
		}
	case StoreMySQL:
		if c.MySQLDSN == "" {
			return errors.New("MYSQL_DSN must be provided when STORE_DRIVER=mysql")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.LockBackend {
	case LockLocal, LockRedis:
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}
	if c.LockTimeout <= 0 {
		return errors.New("LOCK_TIMEOUT must be positive")
	}
	if c.LockBackend == LockRedis && c.LockTTL < c.LockTimeout {
		return errors.New("LOCK_TTL must not be shorter than LOCK_TIMEOUT")
	}
	if c.AnalyticsCacheTTL < 0 {
		return errors.New("ANALYTICS_CACHE_TTL must not be negative")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Backend bundles the stores selected by STORE_DRIVER.
type Backend struct {
	Driver string
	Items  inventory.ItemStore
	Ledger inventory.LedgerStore
	Tx     inventory.Transactor

	closers []func()
}

// OpenBackend connects the configured store and applies its schema when
// AutoMigrate is set.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{Driver: cfg.StoreDriver}
	switch cfg.StoreDriver {
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		repo := inventory.NewRepository(pool)
		b.closers = append(b.closers, pool.Close)
		if cfg.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				b.Close()
				return nil, err
			}
		}
		b.Items, b.Ledger, b.Tx = repo, repo, repo
	case StoreMySQL:
		handle, err := db.NewMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		repo := inventory.NewMySQLRepository(handle)
		b.closers = append(b.closers, func() {
			if err := handle.Close(); err != nil {
				logger.Warn("mysql close", slog.Any("error", err))
			}
		})
		if cfg.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				b.Close()
				return nil, err
			}
		}
		b.Items, b.Ledger, b.Tx = repo, repo, repo
	case StoreMemory, "":
		store := inventory.NewMemoryStore()
		b.Driver = StoreMemory
		b.Items, b.Ledger = store, store
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}
	logger.Info("store ready", slog.String("driver", b.Driver))
	return b, nil
}

// Close releases the underlying connections.
func (b *Backend) Close() {
	if b == nil {
		return
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// NewLocker returns the per-item lock backend. A nil client with
// LOCK_BACKEND=redis is a configuration error.
func NewLocker(cfg *Config, client *redis.Client) (shared.Locker, error) {
	switch cfg.LockBackend {
	case LockRedis:
		if client == nil {
			return nil, fmt.Errorf("app: LOCK_BACKEND=redis requires a reachable REDIS_ADDR")
		}
		return shared.NewRedisLocker(client, cfg.LockTTL), nil
	default:
		return shared.NewLocalLocker(), nil
	}
}

// ServiceConfig derives the stock mutator settings.
func (c *Config) ServiceConfig() inventory.ServiceConfig {
	return inventory.ServiceConfig{
		RejectOverRemoval: c.RejectOverRemoval,
		LockTimeout:       c.LockTimeout,
		HistoryLimit:      c.HistoryDefaultLimit,
	}
}

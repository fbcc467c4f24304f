package app

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("LOCK_BACKEND", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, LockLocal, cfg.LockBackend)
	require.Equal(t, 5*time.Second, cfg.LockTimeout)
	require.Equal(t, 100, cfg.HistoryDefaultLimit)
	require.Zero(t, cfg.AnalyticsCacheTTL)
	require.False(t, cfg.RejectOverRemoval)
}

func TestLoadConfigRequiresDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("PG_DSN", "")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "PG_DSN")

	t.Setenv("STORE_DRIVER", "MySQL")
	t.Setenv("MYSQL_DSN", "")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "MYSQL_DSN")

	t.Setenv("MYSQL_DSN", "root:secret@tcp(localhost:3306)/stock")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreMySQL, cfg.StoreDriver)
}

func TestLoadConfigRejectsUnknownBackends(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "STORE_DRIVER")

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOCK_BACKEND", "etcd")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "LOCK_BACKEND")
}

func TestValidateLockTTL(t *testing.T) {
	cfg := Config{StoreDriver: "memory", LockBackend: "redis", LockTimeout: 5 * time.Second, LockTTL: time.Second}
	require.ErrorContains(t, cfg.Validate(), "LOCK_TTL")

	cfg.LockTTL = 10 * time.Second
	require.NoError(t, cfg.Validate())
}

func TestServiceConfigMapping(t *testing.T) {
	cfg := Config{RejectOverRemoval: true, LockTimeout: 2 * time.Second, HistoryDefaultLimit: 25}
	svc := cfg.ServiceConfig()
	require.True(t, svc.RejectOverRemoval)
	require.Equal(t, 2*time.Second, svc.LockTimeout)
	require.Equal(t, 25, svc.HistoryLimit)
}

func TestNewLockerSelection(t *testing.T) {
	locker, err := NewLocker(&Config{LockBackend: LockLocal}, nil)
	require.NoError(t, err)
	require.IsType(t, &shared.LocalLocker{}, locker)

	_, err = NewLocker(&Config{LockBackend: LockRedis}, nil)
	require.Error(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker, err = NewLocker(&Config{LockBackend: LockRedis, LockTTL: time.Second}, client)
	require.NoError(t, err)
	unlock, err := locker.Lock(context.Background(), shared.ItemLockKey("a"))
	require.NoError(t, err)
	require.True(t, mr.Exists(shared.ItemLockKey("a")))
	unlock()
}

func TestOpenBackendMemory(t *testing.T) {
	b, err := OpenBackend(context.Background(), &Config{StoreDriver: StoreMemory}, nil)
	require.NoError(t, err)
	defer b.Close()
	require.Equal(t, StoreMemory, b.Driver)
	require.NotNil(t, b.Items)
	require.NotNil(t, b.Ledger)
	require.Nil(t, b.Tx)
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "production", LogFormat: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("visible")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "visible", line["msg"])
	require.Equal(t, "production", line["env"])
}

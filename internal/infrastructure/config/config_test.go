package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv lists every variable the tests set; each is cleared before a case runs
var testEnv = []string{
	"RETAIL_APP_NAME",
	"RETAIL_APP_ENV",
	"RETAIL_APP_PORT",
	"RETAIL_DATABASE_DRIVER",
	"RETAIL_DATABASE_HOST",
	"RETAIL_DATABASE_PORT",
	"RETAIL_DATABASE_PASSWORD",
	"RETAIL_DATABASE_SSLMODE",
	"RETAIL_DATABASE_MAX_OPEN_CONNS",
	"RETAIL_DATABASE_MAX_IDLE_CONNS",
	"RETAIL_POOLS_INVENTORY_WORKERS",
	"RETAIL_POOLS_INVENTORY_QUEUE_SIZE",
	"RETAIL_STOCK_LOW_STOCK_THRESHOLD",
	"RETAIL_STOCK_EXPIRING_SOON_DAYS",
	"RETAIL_SESSION_STORE",
	"RETAIL_SESSION_IDLE_TTL",
	"RETAIL_ARCHIVE_ENABLED",
	"RETAIL_ARCHIVE_BUCKET",
	"RETAIL_ARCHIVE_ACCESS_KEY",
	"RETAIL_ARCHIVE_SECRET_KEY",
	"RETAIL_TELEMETRY_SAMPLING_RATIO",
	"RETAIL_TELEMETRY_DB_LOG_FULL_SQL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range testEnv {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "retail-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "retail", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)

		assert.Equal(t, PoolConfig{Workers: 10, QueueSize: 100}, cfg.Pools.API)
		assert.Equal(t, PoolConfig{Workers: 5, QueueSize: 50}, cfg.Pools.Inventory)
		assert.Equal(t, PoolConfig{Workers: 5, QueueSize: 50}, cfg.Pools.Background)

		assert.Equal(t, 10, cfg.Stock.LowStockThreshold)
		assert.Equal(t, 7, cfg.Stock.ExpiringSoonDays)
		assert.Equal(t, time.Hour, cfg.Stock.LowStockCheckInterval)
		assert.Equal(t, 24*time.Hour, cfg.Stock.ExpiryCheckInterval)
		assert.Equal(t, 30*time.Minute, cfg.Stock.StockSyncCheckInterval)

		assert.Equal(t, "memory", cfg.Session.Store)
		assert.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
		assert.False(t, cfg.Archive.Enabled)
		assert.Equal(t, "bills/", cfg.Archive.Prefix)
		assert.Equal(t, "retail-backend", cfg.Telemetry.ServiceName)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
	})

	t.Run("loads values from environment variables with RETAIL prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RETAIL_APP_NAME", "test-app")
		t.Setenv("RETAIL_APP_PORT", "9000")
		t.Setenv("RETAIL_DATABASE_DRIVER", "sqlite")
		t.Setenv("RETAIL_DATABASE_HOST", "testdb.local")
		t.Setenv("RETAIL_DATABASE_PORT", "5433")
		t.Setenv("RETAIL_POOLS_INVENTORY_WORKERS", "2")
		t.Setenv("RETAIL_POOLS_INVENTORY_QUEUE_SIZE", "8")
		t.Setenv("RETAIL_STOCK_LOW_STOCK_THRESHOLD", "3")
		t.Setenv("RETAIL_STOCK_EXPIRING_SOON_DAYS", "14")
		t.Setenv("RETAIL_SESSION_STORE", "redis")
		t.Setenv("RETAIL_SESSION_IDLE_TTL", "5m")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, PoolConfig{Workers: 2, QueueSize: 8}, cfg.Pools.Inventory)
		assert.Equal(t, 3, cfg.Stock.LowStockThreshold)
		assert.Equal(t, 14, cfg.Stock.ExpiringSoonDays)
		assert.Equal(t, "redis", cfg.Session.Store)
		assert.Equal(t, 5*time.Minute, cfg.Session.IdleTTL)
		assert.Equal(t, "test-app", cfg.Telemetry.ServiceName)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RETAIL_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("RETAIL_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RETAIL_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("rejects unknown session store", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RETAIL_SESSION_STORE", "memcached")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session.store")
	})

	t.Run("rejects negative low stock threshold", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RETAIL_STOCK_LOW_STOCK_THRESHOLD", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "low_stock_threshold")
	})

	t.Run("enabled archive requires bucket and keys", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RETAIL_ARCHIVE_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive.bucket")

		t.Setenv("RETAIL_ARCHIVE_BUCKET", "bills")
		_, err = Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive.access_key")

		t.Setenv("RETAIL_ARCHIVE_ACCESS_KEY", "key")
		t.Setenv("RETAIL_ARCHIVE_SECRET_KEY", "secret")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Archive.Enabled)
	})

	t.Run("rejects sampling ratio above one", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RETAIL_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RETAIL_APP_ENV", "production")
		t.Setenv("RETAIL_DATABASE_PASSWORD", "secure-password")
		t.Setenv("RETAIL_DATABASE_SSLMODE", "require")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		os.Unsetenv("RETAIL_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("RETAIL_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("sqlite needs no database password in production", func(t *testing.T) {
		setValidProductionBase(t)
		os.Unsetenv("RETAIL_DATABASE_PASSWORD")
		t.Setenv("RETAIL_DATABASE_DRIVER", "sqlite")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("RETAIL_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"SYNCD_APP_NAME":                  os.Getenv("SYNCD_APP_NAME"),
		"SYNCD_APP_ENV":                   os.Getenv("SYNCD_APP_ENV"),
		"SYNCD_APP_PORT":                  os.Getenv("SYNCD_APP_PORT"),
		"SYNCD_SYNC_PRICE_SYNC_DIRECTION": os.Getenv("SYNCD_SYNC_PRICE_SYNC_DIRECTION"),
		"SYNCD_SYNC_BATCH_SIZE":           os.Getenv("SYNCD_SYNC_BATCH_SIZE"),
		"SYNCD_SYNC_CONCURRENCY":          os.Getenv("SYNCD_SYNC_CONCURRENCY"),
		"SYNCD_SYNC_LOOKBACK":             os.Getenv("SYNCD_SYNC_LOOKBACK"),
		"SYNCD_SYNC_FULL_SYNC_HOUR":       os.Getenv("SYNCD_SYNC_FULL_SYNC_HOUR"),
		"SYNCD_SYNC_RETRY_ATTEMPTS":       os.Getenv("SYNCD_SYNC_RETRY_ATTEMPTS"),
		"SYNCD_TELEMETRY_SAMPLING_RATIO":  os.Getenv("SYNCD_TELEMETRY_SAMPLING_RATIO"),
		"SYNCD_SHOPIFY_SHOP_DOMAIN":       os.Getenv("SYNCD_SHOPIFY_SHOP_DOMAIN"),
		"SYNCD_SHOPIFY_ACCESS_TOKEN":      os.Getenv("SYNCD_SHOPIFY_ACCESS_TOKEN"),
		"SYNCD_MOYSKLAD_TOKEN":            os.Getenv("SYNCD_MOYSKLAD_TOKEN"),
		"SYNCD_MOYSKLAD_LOGIN":            os.Getenv("SYNCD_MOYSKLAD_LOGIN"),
		"SYNCD_MOYSKLAD_PASSWORD":         os.Getenv("SYNCD_MOYSKLAD_PASSWORD"),
		"SYNCD_ORDERS_ENABLED":            os.Getenv("SYNCD_ORDERS_ENABLED"),
		"SYNCD_ORDERS_INTERVAL":           os.Getenv("SYNCD_ORDERS_INTERVAL"),
		"SYNCD_ORDERS_LOOKBACK":           os.Getenv("SYNCD_ORDERS_LOOKBACK"),
		"SYNCD_ORDERS_STORE":              os.Getenv("SYNCD_ORDERS_STORE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "catalog-syncd", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.True(t, cfg.HTTP.Enabled)

		assert.Equal(t, "target_to_source", cfg.Sync.PriceSyncDirection)
		assert.Equal(t, 50, cfg.Sync.BatchSize)
		assert.Equal(t, 5, cfg.Sync.Concurrency)
		assert.Equal(t, 500*time.Millisecond, cfg.Sync.BatchPacing)
		assert.Equal(t, 24*time.Hour, cfg.Sync.Lookback)
		assert.Equal(t, 3, cfg.Sync.RetryAttempts)
		assert.Equal(t, 2*time.Second, cfg.Sync.RetryDelay)
		assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
		assert.Equal(t, 3, cfg.Sync.FullSyncHour)
		assert.True(t, cfg.Sync.FullSyncOnStart)
		assert.True(t, cfg.Sync.SchedulerEnabled)

		assert.Equal(t, "2025-01", cfg.Shopify.APIVersion)
		assert.Equal(t, 2.0, cfg.Shopify.RequestsPerSecond)
		assert.Equal(t, "https://api.moysklad.ru/api/remap/1.2", cfg.MoySklad.APIBaseURL)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, "catalog-syncd", cfg.Telemetry.ServiceName)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)

		assert.False(t, cfg.Orders.Enabled)
		assert.True(t, cfg.Orders.RunOnStart)
		assert.Equal(t, 15*time.Minute, cfg.Orders.Interval)
		assert.Equal(t, "moysklad-synced", cfg.Orders.SyncedTag)
		assert.Equal(t, "Shopify", cfg.Orders.CustomerTag)
		assert.Zero(t, cfg.Orders.Lookback)
	})

	t.Run("loads order push settings", func(t *testing.T) {
		clearEnv()
		os.Setenv("SYNCD_ORDERS_ENABLED", "true")
		os.Setenv("SYNCD_ORDERS_INTERVAL", "5m")
		os.Setenv("SYNCD_ORDERS_LOOKBACK", "72h")
		os.Setenv("SYNCD_ORDERS_STORE", "Main warehouse")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Orders.Enabled)
		assert.Equal(t, 5*time.Minute, cfg.Orders.Interval)
		assert.Equal(t, 72*time.Hour, cfg.Orders.Lookback)
		assert.Equal(t, "Main warehouse", cfg.Orders.Store)
	})

	t.Run("validates order lookback", func(t *testing.T) {
		clearEnv()
		os.Setenv("SYNCD_ORDERS_LOOKBACK", "-1h")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "orders.lookback")
	})

	t.Run("loads values from environment variables with SYNCD prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("SYNCD_APP_NAME", "test-sync")
		os.Setenv("SYNCD_APP_PORT", "9000")
		os.Setenv("SYNCD_SYNC_PRICE_SYNC_DIRECTION", "source_to_target")
		os.Setenv("SYNCD_SYNC_BATCH_SIZE", "20")
		os.Setenv("SYNCD_SYNC_CONCURRENCY", "4")
		os.Setenv("SYNCD_SYNC_LOOKBACK", "6h")
		os.Setenv("SYNCD_SYNC_FULL_SYNC_HOUR", "0")
		os.Setenv("SYNCD_SHOPIFY_SHOP_DOMAIN", "demo.myshopify.com")
		os.Setenv("SYNCD_SHOPIFY_ACCESS_TOKEN", "shpat_test")
		os.Setenv("SYNCD_MOYSKLAD_TOKEN", "ms_test")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-sync", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "source_to_target", cfg.Sync.PriceSyncDirection)
		assert.Equal(t, 20, cfg.Sync.BatchSize)
		assert.Equal(t, 4, cfg.Sync.Concurrency)
		assert.Equal(t, 6*time.Hour, cfg.Sync.Lookback)
		assert.Equal(t, 0, cfg.Sync.FullSyncHour)
		assert.Equal(t, "demo.myshopify.com", cfg.Shopify.ShopDomain)
		assert.Equal(t, "shpat_test", cfg.Shopify.AccessToken)
		assert.Equal(t, "ms_test", cfg.MoySklad.Token)
	})

	t.Run("invalid price direction is left to the sync service", func(t *testing.T) {
		clearEnv()
		os.Setenv("SYNCD_SYNC_PRICE_SYNC_DIRECTION", "sideways")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "sideways", cfg.Sync.PriceSyncDirection)
	})

	t.Run("validates concurrency cannot exceed batch size", func(t *testing.T) {
		clearEnv()
		os.Setenv("SYNCD_SYNC_BATCH_SIZE", "5")
		os.Setenv("SYNCD_SYNC_CONCURRENCY", "10")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync.concurrency")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates sampling ratio", func(t *testing.T) {
		clearEnv()
		os.Setenv("SYNCD_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})

	t.Run("validates retry attempts", func(t *testing.T) {
		clearEnv()
		os.Setenv("SYNCD_SYNC_RETRY_ATTEMPTS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retry_attempts")
	})

	t.Run("validates full sync hour", func(t *testing.T) {
		clearEnv()
		os.Setenv("SYNCD_SYNC_FULL_SYNC_HOUR", "24")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "full_sync_hour")
	})

	t.Run("negative full sync hour disables the daily cycle", func(t *testing.T) {
		clearEnv()
		os.Setenv("SYNCD_SYNC_FULL_SYNC_HOUR", "-1")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, -1, cfg.Sync.FullSyncHour)
	})

	t.Run("production requires platform credentials", func(t *testing.T) {
		clearEnv()
		os.Setenv("SYNCD_APP_ENV", "production")
		os.Setenv("SYNCD_SHOPIFY_SHOP_DOMAIN", "demo.myshopify.com")
		os.Setenv("SYNCD_SHOPIFY_ACCESS_TOKEN", "shpat_test")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "moysklad")

		os.Setenv("SYNCD_MOYSKLAD_LOGIN", "admin@shop")
		os.Setenv("SYNCD_MOYSKLAD_PASSWORD", "secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestLoad_DotEnv(t *testing.T) {
	for _, k := range []string{"SYNCD_SHOPIFY_ACCESS_TOKEN", "SYNCD_MOYSKLAD_TOKEN"} {
		if v, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, v) })
		} else {
			t.Cleanup(func() { os.Unsetenv(k) })
		}
		os.Unsetenv(k)
	}

	dir := t.TempDir()
	content := "SYNCD_SHOPIFY_ACCESS_TOKEN=from-dotenv\nSYNCD_MOYSKLAD_TOKEN=from-dotenv\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))
	t.Chdir(dir)

	os.Setenv("SYNCD_MOYSKLAD_TOKEN", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Shopify.AccessToken)
	assert.Equal(t, "from-env", cfg.MoySklad.Token, "process environment wins over .env")
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/cache"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/config"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "catalog-syncd", Env: "development", Port: "8080"},
		Sync: config.SyncConfig{
			PriceSyncDirection: "source_to_target",
			BatchSize:          20,
			Concurrency:        4,
			BatchPacing:        time.Second,
			Lookback:           12 * time.Hour,
			RetryAttempts:      5,
			RetryDelay:         3 * time.Second,
			Interval:           10 * time.Minute,
			FullSyncHour:       -1,
			LockTTL:            time.Hour,
		},
		Shopify: config.ShopifyConfig{
			ShopDomain:        "demo.myshopify.com",
			AccessToken:       "shpat_test",
			LocationID:        "42",
			RequestsPerSecond: 2,
			Burst:             4,
		},
		MoySklad: config.MoySkladConfig{
			Token:             "ms-token",
			PriceTypeName:     "Retail",
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Orders: config.OrdersConfig{
			Interval:     5 * time.Minute,
			RunOnStart:   true,
			SyncedTag:    "moysklad-synced",
			CustomerTag:  "Shopify",
			Lookback:     72 * time.Hour,
			Organization: "Main LLC",
			Store:        "Warehouse",
		},
	}
}

func TestSyncConfig(t *testing.T) {
	got := syncConfig(testConfig().Sync)

	assert.Equal(t, "source_to_target", got.PriceSyncDirection)
	assert.Equal(t, 12*time.Hour, got.Lookback)
	assert.Equal(t, 20, got.Batch.BatchSize)
	assert.Equal(t, 4, got.Batch.Concurrency)
	assert.Equal(t, time.Second, got.Batch.Pacing)
	assert.Equal(t, 5, got.Retry.MaxAttempts)
	assert.Equal(t, 3*time.Second, got.Retry.Delay)
	require.NotNil(t, got.Retry.Retryable)
	assert.True(t, got.Retry.Retryable(integration.ErrPlatformUnavailable))
	assert.True(t, got.Retry.Retryable(integration.ErrPlatformRequestFailed))
	assert.False(t, got.Retry.Retryable(integration.ErrPlatformAuthFailed))
	assert.False(t, got.Retry.Retryable(integration.ErrProductSyncInvalidProduct))
}

func TestTriggerConfig(t *testing.T) {
	got := triggerConfig(testConfig().Sync)
	assert.Equal(t, 10*time.Minute, got.Interval)
	assert.Equal(t, -1, got.FullSyncHour)
	assert.False(t, got.FullSyncOnStart)
}

func TestOrderConfigs(t *testing.T) {
	cfg := testConfig()

	got := orderSyncConfig(cfg.Sync, cfg.Orders)
	assert.Equal(t, "moysklad-synced", got.SyncedTag)
	assert.Equal(t, "Shopify", got.CustomerTag)
	assert.Equal(t, 72*time.Hour, got.Lookback)
	assert.Equal(t, 20, got.Batch.BatchSize)
	assert.Equal(t, 5, got.Retry.MaxAttempts)

	trigger := orderTriggerConfig(cfg.Orders)
	assert.Equal(t, 5*time.Minute, trigger.Interval)
	assert.True(t, trigger.RunOnStart)
}

func TestAdapterConfigs(t *testing.T) {
	cfg := testConfig()

	shopify := shopifyConfig(cfg.Shopify)
	assert.Equal(t, "demo.myshopify.com", shopify.ShopDomain)
	assert.Equal(t, "shpat_test", shopify.AccessToken)
	assert.Equal(t, "42", shopify.LocationID)
	assert.NotEmpty(t, shopify.APIVersion)
	assert.Equal(t, 30, shopify.TimeoutSeconds)
	assert.NoError(t, shopify.Validate())

	moysklad := moySkladConfig(cfg.MoySklad, cfg.Orders)
	assert.Equal(t, "ms-token", moysklad.Token)
	assert.Equal(t, "Retail", moysklad.PriceTypeName)
	assert.Equal(t, "Main LLC", moysklad.OrganizationName)
	assert.Equal(t, "Warehouse", moysklad.StoreName)
	assert.NotEmpty(t, moysklad.APIBaseURL)
	assert.NoError(t, moysklad.Validate())
}

func TestNewSyncLock_InMemory(t *testing.T) {
	lock, err := newSyncLock(testConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &cache.InMemorySyncLock{}, lock)
}

func TestNewSyncLock_RedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	_, err := newSyncLock(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewApp(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a.service)
	require.NotNil(t, a.orders)
	assert.Nil(t, a.orders.LastReport())

	assert.False(t, a.service.IsRunning())
	assert.Nil(t, a.service.LastSyncTime())
	assert.NoError(t, a.Close(ctx))
}

func TestNewApp_InvalidCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Shopify.AccessToken = ""

	_, err := newApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shopify adapter")
}

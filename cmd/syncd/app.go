package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	syncapp "github.com/cs-lavezzi/shopify-moysklad-integration/internal/application/integration"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/cache"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/config"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/ecommerce"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/scheduler"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/telemetry"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// app holds the wired components of the daemon
type app struct {
	service *syncapp.CatalogSyncService
	orders  *syncapp.OrderSyncService
	meters  *telemetry.MeterProvider
	tracers *telemetry.TracerProvider
	closers []func() error
}

// Close releases external resources
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	if a.meters != nil {
		errs = append(errs, a.meters.Shutdown(ctx))
	}
	if a.tracers != nil {
		errs = append(errs, a.tracers.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// newApp wires adapters, lock, telemetry and the sync services from configuration
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		return nil, err
	}
	a.meters = meters

	tracers, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.tracers = tracers

	metrics, err := telemetry.NewSyncMetrics(meters.Meter("catalog-sync"))
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	source, err := ecommerce.NewShopifyAdapter(shopifyConfig(cfg.Shopify), log)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("shopify adapter: %w", err)
	}
	target, err := ecommerce.NewMoySkladAdapter(moySkladConfig(cfg.MoySklad, cfg.Orders), log)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("moysklad adapter: %w", err)
	}

	lock, err := newSyncLock(cfg, log)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if closer, ok := lock.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	translator := ecommerce.NewCatalogTranslator()
	service, err := syncapp.NewCatalogSyncService(
		source,
		target,
		translator,
		syncConfig(cfg.Sync),
		log.Named("sync"),
		syncapp.WithSyncLock(lock),
		syncapp.WithMetrics(metrics),
		syncapp.WithTracer(tracers.Tracer("catalog-sync")),
	)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.service = service

	orders, err := syncapp.NewOrderSyncService(
		source,
		target,
		target,
		translator,
		orderSyncConfig(cfg.Sync, cfg.Orders),
		log.Named("orders"),
		syncapp.WithOrderMetrics(metrics),
		syncapp.WithOrderTracer(tracers.Tracer("catalog-sync")),
	)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.orders = orders
	return a, nil
}

// newSyncLock returns the Redis lock when Redis is enabled, the in-process
// lock otherwise
func newSyncLock(cfg *config.Config, log *zap.Logger) (integration.SyncLock, error) {
	if !cfg.Redis.Enabled {
		log.Info("Using in-process sync lock")
		return cache.NewInMemorySyncLock(cfg.Sync.LockTTL), nil
	}

	lock, err := cache.NewRedisSyncLock(cache.RedisConfig{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Sync.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("redis sync lock: %w", err)
	}
	log.Info("Using Redis sync lock", zap.String("addr", cfg.Redis.Addr()))
	return lock, nil
}

func syncConfig(c config.SyncConfig) syncapp.SyncConfig {
	retry := scheduler.DefaultRetryPolicy()
	retry.MaxAttempts = c.RetryAttempts
	retry.Delay = c.RetryDelay
	return syncapp.SyncConfig{
		PriceSyncDirection: c.PriceSyncDirection,
		Lookback:           c.Lookback,
		Batch: scheduler.BatchConfig{
			BatchSize:   c.BatchSize,
			Concurrency: c.Concurrency,
			Pacing:      c.BatchPacing,
		},
		Retry: retry,
	}
}

func orderSyncConfig(s config.SyncConfig, o config.OrdersConfig) syncapp.OrderSyncConfig {
	base := syncConfig(s)
	return syncapp.OrderSyncConfig{
		SyncedTag:   o.SyncedTag,
		CustomerTag: o.CustomerTag,
		Lookback:    o.Lookback,
		Batch:       base.Batch,
		Retry:       base.Retry,
	}
}

func orderTriggerConfig(o config.OrdersConfig) scheduler.OrderSyncTriggerConfig {
	return scheduler.OrderSyncTriggerConfig{
		Interval:   o.Interval,
		RunOnStart: o.RunOnStart,
	}
}

func triggerConfig(c config.SyncConfig) scheduler.SyncTriggerConfig {
	return scheduler.SyncTriggerConfig{
		Interval:        c.Interval,
		FullSyncHour:    c.FullSyncHour,
		FullSyncOnStart: c.FullSyncOnStart,
	}
}

func shopifyConfig(c config.ShopifyConfig) *ecommerce.ShopifyConfig {
	out := ecommerce.NewShopifyConfig(c.ShopDomain, c.AccessToken)
	if c.APIVersion != "" {
		out.APIVersion = c.APIVersion
	}
	out.APIBaseURL = c.APIBaseURL
	out.LocationID = c.LocationID
	if c.TimeoutSeconds > 0 {
		out.TimeoutSeconds = c.TimeoutSeconds
	}
	out.RequestsPerSecond = c.RequestsPerSecond
	out.Burst = c.Burst
	out.MaxThrottleRetries = c.MaxThrottleRetries
	return out
}

func moySkladConfig(c config.MoySkladConfig, o config.OrdersConfig) *ecommerce.MoySkladConfig {
	out := ecommerce.NewMoySkladConfig(c.Token)
	out.Login = c.Login
	out.Password = c.Password
	if c.APIBaseURL != "" {
		out.APIBaseURL = c.APIBaseURL
	}
	out.PriceTypeName = c.PriceTypeName
	out.OrganizationName = o.Organization
	out.StoreName = o.Store
	if c.TimeoutSeconds > 0 {
		out.TimeoutSeconds = c.TimeoutSeconds
	}
	out.RequestsPerSecond = c.RequestsPerSecond
	out.Burst = c.Burst
	out.MaxThrottleRetries = c.MaxThrottleRetries
	return out
}

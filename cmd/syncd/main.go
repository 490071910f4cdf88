// Command syncd keeps a Shopify storefront and a MoySklad ERP catalog in step.
//
// By default it runs the periodic sync trigger, the optional order push
// trigger and the admin HTTP API until SIGINT or SIGTERM. With -once it runs
// a single catalog cycle or order push and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/config"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/logger"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/scheduler"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/telemetry"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/interfaces/http/handler"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/interfaces/http/router"
)

func main() {
	var once string
	flag.StringVar(&once, "once", "", "Run a single cycle (full, incremental or orders) and exit")
	flag.Parse()

	if err := run(once); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(once string) error {
	switch once {
	case "", string(integration.SyncModeFull), string(integration.SyncModeIncremental), onceOrders:
	default:
		return fmt.Errorf("invalid -once value %q: want full, incremental or orders", once)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.Output = cfg.Log.Output
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		_ = logs.Shutdown(shutdownCtx)
	}()
	level, _ := logger.ParseLevel(cfg.Log.Level)
	log = logs.Bridge(log, level)

	log.Info("Starting catalog sync daemon",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("price_sync_direction", cfg.Sync.PriceSyncDirection),
	)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize", zap.Error(err))
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			log.Warn("Error releasing resources", zap.Error(err))
		}
	}()

	if once != "" {
		return runOnce(ctx, a, integration.SyncMode(once), log)
	}
	return serve(ctx, cfg, a, log)
}

// onceOrders selects a single order push for -once
const onceOrders = "orders"

func runOnce(ctx context.Context, a *app, mode integration.SyncMode, log *zap.Logger) error {
	if mode == onceOrders {
		report, err := a.orders.SyncOrders(ctx)
		if err != nil {
			return err
		}
		log.Info("Order push finished",
			zap.String("run_id", report.RunID),
			zap.String("status", report.Status.String()),
			zap.Int("succeeded", report.SuccessCount),
			zap.Int("failed", report.FailedCount),
		)
		return nil
	}

	var (
		report *integration.SyncCycleReport
		err    error
	)
	if mode.IsFull() {
		report, err = a.service.RunCompleteSync(ctx)
	} else {
		report, err = a.service.RunIncrementalSync(ctx)
	}
	if err != nil {
		return err
	}
	log.Info("Sync finished",
		zap.String("run_id", report.RunID),
		zap.String("status", report.Status.String()),
	)
	return nil
}

func serve(ctx context.Context, cfg *config.Config, a *app, log *zap.Logger) error {
	var trigger *scheduler.SyncTrigger
	if cfg.Sync.SchedulerEnabled {
		t, err := scheduler.NewSyncTrigger(triggerConfig(cfg.Sync), a.service, log.Named("trigger"))
		if err != nil {
			return fmt.Errorf("sync trigger: %w", err)
		}
		if err := t.Start(ctx); err != nil {
			return fmt.Errorf("sync trigger: %w", err)
		}
		trigger = t
	}

	var orderTrigger *scheduler.OrderSyncTrigger
	if cfg.Orders.Enabled {
		t, err := scheduler.NewOrderSyncTrigger(orderTriggerConfig(cfg.Orders), a.orders, log.Named("orders"))
		if err != nil {
			return fmt.Errorf("order trigger: %w", err)
		}
		if err := t.Start(ctx); err != nil {
			return fmt.Errorf("order trigger: %w", err)
		}
		orderTrigger = t
	}

	var srv *http.Server
	serverErr := make(chan error, 1)
	if cfg.HTTP.Enabled {
		var status handler.SchedulerStatus
		if trigger != nil {
			status = trigger
		}
		mode := gin.ReleaseMode
		if cfg.App.Env == "development" {
			mode = gin.DebugMode
		}
		engine := router.NewEngine(router.EngineConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: version,
			Tracing:        cfg.Telemetry.Enabled,
			Mode:           mode,
		}, log, a.service, status, router.WithOrderRoutes(a.orders, orderStatus(orderTrigger)))

		srv = &http.Server{
			Addr:         ":" + cfg.App.Port,
			Handler:      engine,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		}
		go func() {
			log.Info("Admin API starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case runErr = <-serverErr:
		log.Error("Admin API failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Admin API forced to shutdown", zap.Error(err))
		}
	}
	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Warn("Sync trigger did not stop cleanly", zap.Error(err))
		}
	}
	if orderTrigger != nil {
		if err := orderTrigger.Stop(shutdownCtx); err != nil {
			log.Warn("Order trigger did not stop cleanly", zap.Error(err))
		}
	}

	log.Info("Daemon exited")
	return runErr
}

// orderStatus returns nil when the order trigger is not running
func orderStatus(t *scheduler.OrderSyncTrigger) handler.SchedulerStatus {
	if t == nil {
		return nil
	}
	return t
}

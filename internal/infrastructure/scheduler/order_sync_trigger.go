package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

// OrderSyncRunner pushes storefront orders to the ERP
type OrderSyncRunner interface {
	SyncOrders(ctx context.Context) (*integration.OrderSyncReport, error)
}

// OrderSyncTriggerConfig holds configuration for the periodic order push
type OrderSyncTriggerConfig struct {
	// Interval is how often pending orders are pushed
	Interval time.Duration
	// RunOnStart pushes pending orders as soon as the trigger starts
	RunOnStart bool
}

// DefaultOrderSyncTriggerConfig returns default order trigger configuration
func DefaultOrderSyncTriggerConfig() OrderSyncTriggerConfig {
	return OrderSyncTriggerConfig{
		Interval:   15 * time.Minute,
		RunOnStart: true,
	}
}

// Validate validates the configuration
func (c *OrderSyncTriggerConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// OrderSyncTrigger pushes pending orders on a fixed interval. Runs never overlap.
type OrderSyncTrigger struct {
	config OrderSyncTriggerConfig
	runner OrderSyncRunner
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewOrderSyncTrigger creates a new order trigger
func NewOrderSyncTrigger(config OrderSyncTriggerConfig, runner OrderSyncRunner, logger *zap.Logger) (*OrderSyncTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderSyncTrigger{
		config: config,
		runner: runner,
		logger: logger,
	}, nil
}

// Start starts the trigger loop
func (t *OrderSyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Go(func() { t.runLoop(ctx) })

	t.logger.Info("Order sync trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Bool("run_on_start", t.config.RunOnStart),
	)
	return nil
}

// Stop stops the trigger and waits for an in-flight run
func (t *OrderSyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Order sync trigger stopped")
		return nil
	case <-ctx.Done():
		t.logger.Warn("Order sync trigger stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the trigger loop is active
func (t *OrderSyncTrigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

func (t *OrderSyncTrigger) runLoop(ctx context.Context) {
	if t.config.RunOnStart {
		t.run(ctx)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.run(ctx)
		}
	}
}

// run executes one order push and logs its result
func (t *OrderSyncTrigger) run(ctx context.Context) {
	report, err := t.runner.SyncOrders(ctx)
	switch {
	case errors.Is(err, integration.ErrSyncInProgress):
		t.logger.Info("Scheduled order sync skipped, another run in progress")
		return
	case err != nil:
		t.logger.Error("Scheduled order sync failed", zap.Error(err))
		return
	}

	if report != nil {
		t.logger.Info("Scheduled order sync finished",
			zap.String("run_id", report.RunID),
			zap.String("status", string(report.Status)),
			zap.Int("succeeded", report.SuccessCount),
			zap.Int("failed", report.FailedCount),
		)
	}
}

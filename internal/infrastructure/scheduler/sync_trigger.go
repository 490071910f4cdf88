package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

// SyncRunner runs catalog sync cycles
type SyncRunner interface {
	RunCompleteSync(ctx context.Context) (*integration.SyncCycleReport, error)
	RunIncrementalSync(ctx context.Context) (*integration.SyncCycleReport, error)
}

// SyncTriggerConfig holds configuration for the periodic sync trigger
type SyncTriggerConfig struct {
	// Interval is how often an incremental sync runs
	Interval time.Duration
	// FullSyncHour is the local hour (0-23) of the daily complete sync.
	// Negative disables the daily run.
	FullSyncHour int
	// FullSyncOnStart runs a complete sync as soon as the trigger starts
	FullSyncOnStart bool
}

// DefaultSyncTriggerConfig returns default sync trigger configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		Interval:        15 * time.Minute,
		FullSyncHour:    3,
		FullSyncOnStart: true,
	}
}

// Validate validates the configuration
func (c *SyncTriggerConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.FullSyncHour > 23 {
		return ErrInvalidConfig
	}
	return nil
}

// SyncTrigger runs incremental syncs on a fixed interval and a complete sync
// once a day. Runs never overlap.
type SyncTrigger struct {
	config SyncTriggerConfig
	runner SyncRunner
	logger *zap.Logger
	now    func() time.Time

	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.Mutex
	isRunning    bool
	lastFullDate string
}

// NewSyncTrigger creates a new sync trigger
func NewSyncTrigger(config SyncTriggerConfig, runner SyncRunner, logger *zap.Logger) (*SyncTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncTrigger{
		config: config,
		runner: runner,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start starts the trigger loop
func (t *SyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Sync trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Int("full_sync_hour", t.config.FullSyncHour),
		zap.Bool("full_sync_on_start", t.config.FullSyncOnStart),
	)

	return nil
}

// Stop stops the trigger and waits for an in-flight run to reach a safe point
func (t *SyncTrigger) Stop(ctx context.Context) error {
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
		t.logger.Info("Sync trigger stopped")
		return nil
	case <-ctx.Done():
		t.logger.Warn("Sync trigger stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the trigger loop is active
func (t *SyncTrigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

// runLoop fires a sync on every tick
func (t *SyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.FullSyncOnStart {
		t.run(ctx, integration.SyncModeFull)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.run(ctx, t.nextMode())
		}
	}
}

// nextMode picks the daily complete sync once the configured hour is reached
func (t *SyncTrigger) nextMode() integration.SyncMode {
	if t.config.FullSyncHour < 0 {
		return integration.SyncModeIncremental
	}
	now := t.now()
	today := now.Format("2006-01-02")

	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Hour() == t.config.FullSyncHour && t.lastFullDate != today {
		return integration.SyncModeFull
	}
	return integration.SyncModeIncremental
}

// run executes one cycle and logs its result
func (t *SyncTrigger) run(ctx context.Context, mode integration.SyncMode) {
	var (
		report *integration.SyncCycleReport
		err    error
	)
	if mode.IsFull() {
		report, err = t.runner.RunCompleteSync(ctx)
	} else {
		report, err = t.runner.RunIncrementalSync(ctx)
	}

	switch {
	case errors.Is(err, integration.ErrSyncInProgress):
		t.logger.Info("Scheduled sync skipped, another run in progress", zap.String("mode", string(mode)))
		return
	case err != nil:
		t.logger.Error("Scheduled sync failed", zap.String("mode", string(mode)), zap.Error(err))
		return
	}

	if mode.IsFull() {
		t.mu.Lock()
		t.lastFullDate = t.now().Format("2006-01-02")
		t.mu.Unlock()
	}

	if report != nil {
		t.logger.Info("Scheduled sync finished",
			zap.String("mode", string(mode)),
			zap.String("run_id", report.RunID),
			zap.String("status", string(report.Status)),
		)
	}
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ---------------------------------------------------------------------------
// BatchConfig
// ---------------------------------------------------------------------------

// BatchConfig holds configuration for the batch scheduler
type BatchConfig struct {
	// BatchSize is the maximum number of actions per batch
	BatchSize int
	// Concurrency is the maximum number of actions running at once within a batch
	Concurrency int
	// Pacing is the delay observed between consecutive batches
	Pacing time.Duration
}

// DefaultBatchConfig returns default configuration
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:   50,
		Concurrency: 5,
		Pacing:      500 * time.Millisecond,
	}
}

// Validate validates the configuration
func (c *BatchConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if c.Concurrency <= 0 || c.Concurrency > c.BatchSize {
		return fmt.Errorf("%w: concurrency must be between 1 and batch size", ErrInvalidConfig)
	}
	if c.Pacing < 0 {
		return fmt.Errorf("%w: pacing cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// ---------------------------------------------------------------------------
// BatchScheduler
// ---------------------------------------------------------------------------

// Task executes the unit of work at index i
type Task func(ctx context.Context, i int) error

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// BatchScheduler runs independent tasks in consecutive batches with a
// concurrency cap inside each batch and a pacing delay between batches.
// A failing task never stops its siblings.
type BatchScheduler struct {
	config BatchConfig
	logger *zap.Logger
	sleep  SleepFunc
}

// NewBatchScheduler creates a new batch scheduler
func NewBatchScheduler(config BatchConfig, logger *zap.Logger) (*BatchScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchScheduler{
		config: config,
		logger: logger,
		sleep:  SleepContext,
	}, nil
}

// WithSleep replaces the pacing sleep
func (s *BatchScheduler) WithSleep(fn SleepFunc) *BatchScheduler {
	s.sleep = fn
	return s
}

// Config returns the scheduler configuration
func (s *BatchScheduler) Config() BatchConfig {
	return s.config
}

// Run executes n tasks and returns exactly n results, one per index.
// Cancellation is observed before each task starts and during pacing; tasks
// that never started report the context error.
func (s *BatchScheduler) Run(ctx context.Context, n int, task Task) []error {
	results := make([]error, n)
	batches := 0

	for start := 0; start < n; start += s.config.BatchSize {
		if start > 0 && s.config.Pacing > 0 {
			if err := s.sleep(ctx, s.config.Pacing); err != nil {
				fill(results[start:], err)
				s.logger.Debug("Batch run interrupted during pacing",
					zap.Int("completed_batches", batches),
					zap.Int("remaining", n-start),
				)
				return results
			}
		}

		end := min(start+s.config.BatchSize, n)
		s.runBatch(ctx, results, start, end, task)
		batches++

		s.logger.Debug("Batch completed",
			zap.Int("batch", batches),
			zap.Int("from", start),
			zap.Int("to", end),
		)
	}

	return results
}

// runBatch runs tasks [start, end) with at most Concurrency in flight
func (s *BatchScheduler) runBatch(ctx context.Context, results []error, start, end int, task Task) {
	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)

	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			results[i] = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = err
				return nil
			}
			results[i] = runTask(ctx, i, task)
			return nil
		})
	}

	_ = g.Wait()
}

// runTask isolates a task panic into its own result slot
func runTask(ctx context.Context, i int, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return task(ctx, i)
}

func fill(errs []error, err error) {
	for i := range errs {
		errs[i] = err
	}
}

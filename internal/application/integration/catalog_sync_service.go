package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/logger"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/scheduler"
)

// DefaultLookback is the incremental window used before the first clean run
const DefaultLookback = 24 * time.Hour

const tracerName = "catalog-sync"

// SyncConfig holds the sync engine settings
type SyncConfig struct {
	// PriceSyncDirection is source_to_target or target_to_source. Any other
	// value skips the price phase.
	PriceSyncDirection string
	// Lookback is the incremental window when no watermark exists
	Lookback time.Duration
	// Batch controls fan-out of mutations
	Batch scheduler.BatchConfig
	// Retry bounds the attempts of each mutation
	Retry scheduler.RetryPolicy
}

// DefaultSyncConfig returns default configuration
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		PriceSyncDirection: string(integration.DirectionTargetToSource),
		Lookback:           DefaultLookback,
		Batch:              scheduler.DefaultBatchConfig(),
		Retry:              scheduler.DefaultRetryPolicy(),
	}
}

// SyncMetricsRecorder receives sync activity for metrics
type SyncMetricsRecorder interface {
	RecordOutcome(ctx context.Context, phase integration.SyncPhase, o integration.SyncOutcome)
	RecordPhase(ctx context.Context, r *integration.SyncReport)
	RecordCycle(ctx context.Context, c *integration.SyncCycleReport, watermark *time.Time)
}

type noopMetrics struct{}

func (noopMetrics) RecordOutcome(context.Context, integration.SyncPhase, integration.SyncOutcome) {}
func (noopMetrics) RecordPhase(context.Context, *integration.SyncReport)                          {}
func (noopMetrics) RecordCycle(context.Context, *integration.SyncCycleReport, *time.Time)         {}

// Option configures a CatalogSyncService
type Option func(*CatalogSyncService)

// WithSyncLock serializes runs across processes in addition to the
// in-process guard
func WithSyncLock(lock integration.SyncLock) Option {
	return func(s *CatalogSyncService) {
		s.lock = lock
	}
}

// WithMetrics records sync activity
func WithMetrics(m SyncMetricsRecorder) Option {
	return func(s *CatalogSyncService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer replaces the global tracer used for cycle and phase spans
func WithTracer(t trace.Tracer) Option {
	return func(s *CatalogSyncService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithBatchSleep replaces the pacing sleep between batches
func WithBatchSleep(fn scheduler.SleepFunc) Option {
	return func(s *CatalogSyncService) {
		if fn != nil {
			s.batches.WithSleep(fn)
		}
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(s *CatalogSyncService) {
		s.now = now
	}
}

// CatalogSyncService keeps the storefront and ERP catalogs in step.
//
// Products flow both ways, newest wins. Stock flows from the ERP to the
// storefront. Prices flow in the configured direction. The watermark is the
// start time of the last run that finished without a systemic error and
// scopes incremental runs.
type CatalogSyncService struct {
	source     integration.SourcePlatform
	target     integration.TargetPlatform
	translator integration.RecordTranslator
	batches    *scheduler.BatchScheduler
	config     SyncConfig
	lock       integration.SyncLock
	metrics    SyncMetricsRecorder
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time

	running atomic.Bool

	mu           sync.RWMutex
	lastSyncTime *time.Time
	lastReport   *integration.SyncCycleReport
}

// NewCatalogSyncService creates a new sync service
func NewCatalogSyncService(
	source integration.SourcePlatform,
	target integration.TargetPlatform,
	translator integration.RecordTranslator,
	config SyncConfig,
	log *zap.Logger,
	opts ...Option,
) (*CatalogSyncService, error) {
	if source == nil || target == nil || translator == nil {
		return nil, fmt.Errorf("%w: source, target and translator are required", integration.ErrPlatformNotConfigured)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if config.Lookback <= 0 {
		config.Lookback = DefaultLookback
	}
	if err := config.Retry.Validate(); err != nil {
		return nil, err
	}
	batches, err := scheduler.NewBatchScheduler(config.Batch, log.Named("batch"))
	if err != nil {
		return nil, err
	}

	s := &CatalogSyncService{
		source:     source,
		target:     target,
		translator: translator,
		batches:    batches,
		config:     config,
		metrics:    noopMetrics{},
		tracer:     otel.Tracer(tracerName),
		logger:     log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Public operations
// ---------------------------------------------------------------------------

// SyncProducts reconciles products in both directions
func (s *CatalogSyncService) SyncProducts(ctx context.Context, fullSync bool) (*integration.SyncReport, error) {
	return s.runPhase(ctx, integration.SyncPhaseProducts, fullSync, s.syncProducts)
}

// SyncInventory pushes ERP stock levels to the storefront. It leaves the
// watermark unchanged.
func (s *CatalogSyncService) SyncInventory(ctx context.Context, fullSync bool) (*integration.SyncReport, error) {
	return s.runPhase(ctx, integration.SyncPhaseInventory, fullSync, s.syncInventory)
}

// SyncPrices propagates prices in the configured direction. An invalid
// direction skips the phase without an error. It leaves the watermark
// unchanged.
func (s *CatalogSyncService) SyncPrices(ctx context.Context, fullSync bool) (*integration.SyncReport, error) {
	return s.runPhase(ctx, integration.SyncPhasePrices, fullSync, s.syncPrices)
}

// RunCompleteSync runs products, inventory and prices without a cutoff
func (s *CatalogSyncService) RunCompleteSync(ctx context.Context) (*integration.SyncCycleReport, error) {
	return s.runCycle(ctx, integration.SyncModeFull)
}

// RunIncrementalSync runs products, inventory and prices scoped to records
// changed since the watermark
func (s *CatalogSyncService) RunIncrementalSync(ctx context.Context) (*integration.SyncCycleReport, error) {
	return s.runCycle(ctx, integration.SyncModeIncremental)
}

// LastSyncTime returns the watermark, nil before the first clean run
func (s *CatalogSyncService) LastSyncTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSyncTime == nil {
		return nil
	}
	t := *s.lastSyncTime
	return &t
}

// LastReport returns the report of the most recent cycle, nil if none ran
func (s *CatalogSyncService) LastReport() *integration.SyncCycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

// IsRunning reports whether a sync is in progress in this process
func (s *CatalogSyncService) IsRunning() bool {
	return s.running.Load()
}

// ---------------------------------------------------------------------------
// Run control
// ---------------------------------------------------------------------------

type phaseFunc func(ctx context.Context, modifiedSince *time.Time, startedAt time.Time) (*integration.SyncReport, error)

func (s *CatalogSyncService) runPhase(ctx context.Context, phase integration.SyncPhase, fullSync bool, fn phaseFunc) (*integration.SyncReport, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release(ctx)

	startedAt := s.now()
	modifiedSince := s.resolveModifiedSince(fullSync)
	runID := uuid.NewString()
	ctx, log := logger.WithRunID(ctx, s.logger, runID)
	ctx, span := s.tracer.Start(ctx, "sync."+string(phase), trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Bool("full_sync", fullSync),
	))
	ctx, log = withSpanLogger(ctx, log)

	log.Info("Sync phase started",
		zap.String("phase", string(phase)),
		zap.Bool("full_sync", fullSync),
		zap.Timep("modified_since", modifiedSince),
	)

	report, err := fn(ctx, modifiedSince, startedAt)
	s.metrics.RecordPhase(ctx, report)
	endSpan(span, report, err)
	if err != nil {
		log.Error("Sync phase aborted", zap.String("phase", string(phase)), zap.Error(err))
		return report, err
	}

	// Inventory and price runs read the watermark but never move it
	if phase == integration.SyncPhaseProducts {
		s.advanceWatermark(startedAt)
	}
	return report, nil
}

func (s *CatalogSyncService) runCycle(ctx context.Context, mode integration.SyncMode) (*integration.SyncCycleReport, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release(ctx)

	startedAt := s.now()
	modifiedSince := s.resolveModifiedSince(mode.IsFull())
	runID := uuid.NewString()
	ctx, log := logger.WithRunID(ctx, s.logger, runID)
	ctx, span := s.tracer.Start(ctx, "sync.cycle", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("mode", string(mode)),
	))
	defer span.End()
	ctx, log = withSpanLogger(ctx, log)

	cycle := &integration.SyncCycleReport{
		RunID:         runID,
		Mode:          mode,
		Status:        integration.SyncStatusInProgress,
		ModifiedSince: modifiedSince,
		StartedAt:     startedAt,
	}
	log.Info("Sync cycle started",
		zap.String("mode", string(mode)),
		zap.Timep("modified_since", modifiedSince),
	)

	phases := []struct {
		phase integration.SyncPhase
		fn    phaseFunc
	}{
		{integration.SyncPhaseProducts, s.syncProducts},
		{integration.SyncPhaseInventory, s.syncInventory},
		{integration.SyncPhasePrices, s.syncPrices},
	}

	var runErr error
	for _, p := range phases {
		phaseCtx, phaseSpan := s.tracer.Start(ctx, "sync."+string(p.phase))
		report, err := p.fn(phaseCtx, modifiedSince, startedAt)
		cycle.Add(report)
		s.metrics.RecordPhase(ctx, report)
		endSpan(phaseSpan, report, err)
		if err != nil {
			runErr = fmt.Errorf("%s phase: %w", p.phase, err)
			break
		}
	}

	cycle.Finish(s.now(), runErr)
	s.mu.Lock()
	s.lastReport = cycle
	s.mu.Unlock()
	s.metrics.RecordCycle(ctx, cycle, modifiedSince)
	span.SetAttributes(attribute.String("status", cycle.Status.String()))

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		log.Error("Sync cycle aborted, watermark unchanged",
			zap.String("mode", string(mode)),
			zap.Bool("systemic", integration.IsSystemic(runErr)),
			zap.Error(runErr),
		)
		return cycle, runErr
	}

	s.advanceWatermark(startedAt)
	log.Info("Sync cycle completed",
		zap.String("mode", string(mode)),
		zap.String("status", cycle.Status.String()),
		zap.Duration("duration", cycle.FinishedAt.Sub(cycle.StartedAt)),
	)
	return cycle, nil
}

// acquire rejects overlapping runs in this process and, with a SyncLock,
// across processes
func (s *CatalogSyncService) acquire(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return integration.ErrSyncInProgress
	}
	if s.lock == nil {
		return nil
	}

	ok, err := s.lock.TryLock(ctx)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		s.running.Store(false)
		return integration.ErrSyncInProgress
	}
	return nil
}

func (s *CatalogSyncService) release(ctx context.Context) {
	if s.lock != nil {
		if err := s.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release sync lock", zap.Error(err))
		}
	}
	s.running.Store(false)
}

// resolveModifiedSince returns nil for full runs, the watermark for
// incremental runs, or now minus the lookback before the first clean run
func (s *CatalogSyncService) resolveModifiedSince(fullSync bool) *time.Time {
	if fullSync {
		return nil
	}
	if last := s.LastSyncTime(); last != nil {
		return last
	}
	since := s.now().Add(-s.config.Lookback)
	return &since
}

// advanceWatermark moves the watermark forward only
func (s *CatalogSyncService) advanceWatermark(startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSyncTime == nil || startedAt.After(*s.lastSyncTime) {
		t := startedAt
		s.lastSyncTime = &t
	}
}

// ---------------------------------------------------------------------------
// Phases
// ---------------------------------------------------------------------------

func (s *CatalogSyncService) syncProducts(ctx context.Context, modifiedSince *time.Time, startedAt time.Time) (*integration.SyncReport, error) {
	report := integration.NewSyncReport(integration.SyncPhaseProducts, modifiedSince, startedAt)

	var sourceAll, targetAll, sourceChanged, targetChanged []integration.CatalogRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sourceAll, err = s.fetchSource(gctx, integration.FetchOptions{})
		return err
	})
	g.Go(func() (err error) {
		targetAll, err = s.fetchTarget(gctx, integration.FetchOptions{})
		return err
	})
	if modifiedSince != nil {
		g.Go(func() (err error) {
			sourceChanged, err = s.fetchSource(gctx, integration.FetchOptions{ModifiedSince: modifiedSince})
			return err
		})
		g.Go(func() (err error) {
			targetChanged, err = s.fetchTarget(gctx, integration.FetchOptions{ModifiedSince: modifiedSince})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		report.Abort(s.now(), err)
		return report, err
	}
	if modifiedSince == nil {
		sourceChanged, targetChanged = sourceAll, targetAll
	}

	sourceIndex := s.buildIndex(ctx, s.source.Name(), sourceAll)
	targetIndex := s.buildIndex(ctx, s.target.Name(), targetAll)

	toTarget := integration.ReconcileProducts(integration.DirectionSourceToTarget, sourceChanged, targetIndex,
		integration.TranslateFunc(s.translator, integration.DirectionSourceToTarget))
	toSource := integration.ReconcileProducts(integration.DirectionTargetToSource, targetChanged, sourceIndex,
		integration.TranslateFunc(s.translator, integration.DirectionTargetToSource))

	logger.FromContext(ctx).Info("Products reconciled",
		zap.Int("source_candidates", len(sourceChanged)),
		zap.Int("target_candidates", len(targetChanged)),
		zap.Int("to_target_mutations", integration.CountMutations(toTarget)),
		zap.Int("to_source_mutations", integration.CountMutations(toSource)),
	)

	// Directions touch disjoint records; neither cancels the other
	var wg sync.WaitGroup
	var toTargetOutcomes, toSourceOutcomes []integration.SyncOutcome
	var toTargetErr, toSourceErr error
	wg.Go(func() {
		toTargetOutcomes, toTargetErr = s.execute(ctx, integration.SyncPhaseProducts, toTarget, s.applyToTarget)
	})
	wg.Go(func() {
		toSourceOutcomes, toSourceErr = s.execute(ctx, integration.SyncPhaseProducts, toSource, s.applyToSource)
	})
	wg.Wait()

	for _, o := range toTargetOutcomes {
		report.Record(o)
	}
	for _, o := range toSourceOutcomes {
		report.Record(o)
	}
	report.Finish(s.now())
	s.logReport(ctx, report)

	return report, errors.Join(toTargetErr, toSourceErr)
}

func (s *CatalogSyncService) syncInventory(ctx context.Context, modifiedSince *time.Time, startedAt time.Time) (*integration.SyncReport, error) {
	report := integration.NewSyncReport(integration.SyncPhaseInventory, modifiedSince, startedAt)

	var stock, storefront []integration.CatalogRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stock, err = s.fetchTarget(gctx, integration.FetchOptions{ModifiedSince: modifiedSince, IncludeStock: true})
		return err
	})
	g.Go(func() (err error) {
		storefront, err = s.fetchSource(gctx, integration.FetchOptions{IncludeStock: true})
		return err
	})
	if err := g.Wait(); err != nil {
		report.Abort(s.now(), err)
		return report, err
	}

	actions := integration.ReconcileInventory(stock, s.buildIndex(ctx, s.source.Name(), storefront))
	outcomes, err := s.execute(ctx, integration.SyncPhaseInventory, actions, s.applyInventory)
	for _, o := range outcomes {
		report.Record(o)
	}
	report.Finish(s.now())
	s.logReport(ctx, report)
	return report, err
}

func (s *CatalogSyncService) syncPrices(ctx context.Context, modifiedSince *time.Time, startedAt time.Time) (*integration.SyncReport, error) {
	report := integration.NewSyncReport(integration.SyncPhasePrices, modifiedSince, startedAt)
	log := logger.FromContext(ctx)

	dir, err := integration.ParseDirection(s.config.PriceSyncDirection)
	if err != nil {
		log.Error("Price sync skipped", zap.String("price_sync_direction", s.config.PriceSyncDirection), zap.Error(err))
		report.Skip(s.now(), err)
		return report, nil
	}

	fetchSending, fetchReceiving := s.fetchSource, s.fetchTarget
	receivingName := s.target.Name()
	if dir == integration.DirectionTargetToSource {
		fetchSending, fetchReceiving = s.fetchTarget, s.fetchSource
		receivingName = s.source.Name()
	}

	var sending, receiving []integration.CatalogRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sending, err = fetchSending(gctx, integration.FetchOptions{ModifiedSince: modifiedSince})
		return err
	})
	g.Go(func() (err error) {
		receiving, err = fetchReceiving(gctx, integration.FetchOptions{})
		return err
	})
	if err := g.Wait(); err != nil {
		report.Abort(s.now(), err)
		return report, err
	}

	actions := integration.ReconcilePrices(dir, sending, s.buildIndex(ctx, receivingName, receiving),
		integration.ConvertFunc(s.translator, dir))
	outcomes, err := s.execute(ctx, integration.SyncPhasePrices, actions, s.applyPrice)
	for _, o := range outcomes {
		report.Record(o)
	}
	report.Finish(s.now())
	s.logReport(ctx, report)
	return report, err
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// applyFunc performs one mutation and returns the platform's record, if any
type applyFunc func(ctx context.Context, a integration.Action) (*integration.CatalogRecord, error)

// execute settles every action through the batch scheduler. Skips settle
// inside their slot without a remote call, so batch boundaries and pacing do
// not depend on how many records need writes. Mutations run with retries.
// Outcomes keep the order of actions. The returned error is the context
// error when the run was cut short.
func (s *CatalogSyncService) execute(ctx context.Context, phase integration.SyncPhase, actions []integration.Action, apply applyFunc) ([]integration.SyncOutcome, error) {
	log := logger.FromContext(ctx)
	outcomes := make([]integration.SyncOutcome, len(actions))
	results := make([]*integration.CatalogRecord, len(actions))

	errs := s.batches.Run(ctx, len(actions), func(ctx context.Context, i int) error {
		a := actions[i]
		if !a.Kind.IsMutation() {
			return nil
		}

		policy := s.config.Retry
		policy.OnRetry = func(attempt int, err error) {
			log.Warn("Retrying sync action",
				zap.String("phase", string(phase)),
				zap.String("action", a.Kind.String()),
				zap.String("identity_key", a.Key()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}

		// The retry delay honors cancellation; an issued mutation always completes
		rec, err := scheduler.RetryValue(ctx, policy, func(ctx context.Context) (*integration.CatalogRecord, error) {
			return apply(context.WithoutCancel(ctx), a)
		})
		results[i] = rec
		return err
	})

	for i, a := range actions {
		switch {
		case !a.Kind.IsMutation():
			outcomes[i] = integration.OutcomeSkipped(a)
			log.Debug("Sync action skipped",
				zap.String("phase", string(phase)),
				zap.String("direction", a.Direction.String()),
				zap.String("identity_key", a.Key()),
				zap.String("reason", a.Reason),
			)
		case errs[i] != nil:
			outcomes[i] = integration.OutcomeFailed(a, errs[i])
			log.Error("Sync action failed",
				zap.String("phase", string(phase)),
				zap.String("direction", a.Direction.String()),
				zap.String("action", a.Kind.String()),
				zap.String("identity_key", a.Key()),
				zap.String("platform_id", a.Target.PlatformID),
				zap.Error(errs[i]),
			)
		default:
			outcomes[i] = integration.OutcomeSucceeded(a, results[i])
		}
	}

	for _, o := range outcomes {
		s.metrics.RecordOutcome(ctx, phase, o)
	}
	return outcomes, ctx.Err()
}

func (s *CatalogSyncService) applyToTarget(ctx context.Context, a integration.Action) (*integration.CatalogRecord, error) {
	var (
		rec integration.CatalogRecord
		err error
	)
	switch a.Kind {
	case integration.ActionCreate:
		rec, err = s.target.CreateProduct(ctx, a.Payload)
	case integration.ActionUpdate:
		rec, err = s.target.UpdateProduct(ctx, a.Payload)
	default:
		return nil, fmt.Errorf("%w: unexpected %s action for products", integration.ErrProductSyncFailed, a.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrProductSyncFailed, err)
	}
	return &rec, nil
}

func (s *CatalogSyncService) applyToSource(ctx context.Context, a integration.Action) (*integration.CatalogRecord, error) {
	var (
		rec integration.CatalogRecord
		err error
	)
	switch a.Kind {
	case integration.ActionCreate:
		rec, err = s.source.CreateProduct(ctx, a.Payload)
	case integration.ActionUpdate:
		rec, err = s.source.UpdateProduct(ctx, a.Payload)
	default:
		return nil, fmt.Errorf("%w: unexpected %s action for products", integration.ErrProductSyncFailed, a.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrProductSyncFailed, err)
	}
	return &rec, nil
}

func (s *CatalogSyncService) applyInventory(ctx context.Context, a integration.Action) (*integration.CatalogRecord, error) {
	if err := s.source.UpdateInventory(ctx, a.Target.PlatformID, a.Target.InventoryItemID, a.Quantity); err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrInventorySyncFailed, err)
	}
	return nil, nil
}

func (s *CatalogSyncService) applyPrice(ctx context.Context, a integration.Action) (*integration.CatalogRecord, error) {
	var err error
	if a.Direction == integration.DirectionTargetToSource {
		err = s.source.UpdatePrice(ctx, a.Target.PlatformID, a.Target.VariantID, a.Price)
	} else {
		err = s.target.UpdatePrice(ctx, a.Target.PlatformID, a.Price)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrPriceSyncFailed, err)
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *CatalogSyncService) fetchSource(ctx context.Context, opts integration.FetchOptions) ([]integration.CatalogRecord, error) {
	records, err := s.source.FetchProducts(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", integration.ErrCatalogFetchFailed, s.source.Name(), err)
	}
	return records, nil
}

func (s *CatalogSyncService) fetchTarget(ctx context.Context, opts integration.FetchOptions) ([]integration.CatalogRecord, error) {
	records, err := s.target.FetchProducts(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", integration.ErrCatalogFetchFailed, s.target.Name(), err)
	}
	return records, nil
}

// buildIndex indexes records and reports identity keys seen more than once
func (s *CatalogSyncService) buildIndex(ctx context.Context, platform string, records []integration.CatalogRecord) integration.CatalogIndex {
	index := integration.BuildCatalogIndex(records)
	if dups := index.Duplicates(); len(dups) > 0 {
		logger.FromContext(ctx).Warn("Duplicate identity keys, last record wins",
			zap.String("platform", platform),
			zap.Strings("identity_keys", dups),
		)
	}
	return index
}

func (s *CatalogSyncService) logReport(ctx context.Context, r *integration.SyncReport) {
	fields := []zap.Field{
		zap.String("phase", string(r.Phase)),
		zap.String("status", r.Status.String()),
		zap.Int("total", r.TotalCount),
		zap.Int("succeeded", r.SuccessCount),
		zap.Int("failed", r.FailedCount),
		zap.Int("skipped", r.SkippedCount),
		zap.Duration("duration", r.Duration()),
	}
	log := logger.FromContext(ctx)
	if r.FailedCount > 0 {
		log.Warn("Sync phase finished with failures", fields...)
		return
	}
	log.Info("Sync phase finished", fields...)
}

// withSpanLogger tags the run logger with the current trace ids
func withSpanLogger(ctx context.Context, log *zap.Logger) (context.Context, *zap.Logger) {
	log = logger.WithTraceContext(ctx, log)
	return logger.WithContext(ctx, log), log
}

// endSpan annotates a phase span with its counts and ends it
func endSpan(span trace.Span, r *integration.SyncReport, err error) {
	defer span.End()
	if r != nil {
		span.SetAttributes(
			attribute.String("status", r.Status.String()),
			attribute.Int("total", r.TotalCount),
			attribute.Int("succeeded", r.SuccessCount),
			attribute.Int("failed", r.FailedCount),
			attribute.Int("skipped", r.SkippedCount),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

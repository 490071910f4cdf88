package integration

import (
	"context"
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

// DefaultCustomerTag is attached to counterparties created for storefront buyers
const DefaultCustomerTag = "Shopify"

// OrderSyncConfig holds the order push settings
type OrderSyncConfig struct {
	// SyncedTag marks pushed orders on the storefront; tagged orders are skipped
	SyncedTag string
	// CustomerTag is attached to newly created counterparties, empty for none
	CustomerTag string
	// Lookback limits each run to orders created within the window, 0 reads all
	Lookback time.Duration
	// Batch controls fan-out of order pushes
	Batch scheduler.BatchConfig
	// Retry bounds the attempts of each order push
	Retry scheduler.RetryPolicy
}

// DefaultOrderSyncConfig returns default configuration
func DefaultOrderSyncConfig() OrderSyncConfig {
	return OrderSyncConfig{
		SyncedTag:   integration.DefaultOrderSyncedTag,
		CustomerTag: DefaultCustomerTag,
		Batch:       scheduler.DefaultBatchConfig(),
		Retry:       scheduler.DefaultRetryPolicy(),
	}
}

// OrderMetricsRecorder receives order push runs for metrics
type OrderMetricsRecorder interface {
	RecordOrderRun(ctx context.Context, r *integration.OrderSyncReport)
}

type noopOrderMetrics struct{}

func (noopOrderMetrics) RecordOrderRun(context.Context, *integration.OrderSyncReport) {}

// OrderOption configures an OrderSyncService
type OrderOption func(*OrderSyncService)

// WithOrderMetrics records order push runs
func WithOrderMetrics(m OrderMetricsRecorder) OrderOption {
	return func(s *OrderSyncService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithOrderTracer replaces the global tracer used for run spans
func WithOrderTracer(t trace.Tracer) OrderOption {
	return func(s *OrderSyncService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithOrderClock replaces the time source
func WithOrderClock(now func() time.Time) OrderOption {
	return func(s *OrderSyncService) {
		s.now = now
	}
}

// OrderSyncService pushes storefront orders to the ERP as customer orders.
//
// Each untagged order is filed under a counterparty matched by email or
// name, its lines are matched to ERP products by SKU, and the storefront
// order is tagged once the ERP document exists. Every step is idempotent,
// so a run that fails between steps is repaired by the next one.
type OrderSyncService struct {
	source     integration.OrderSource
	target     integration.OrderTarget
	products   integration.ProductLookup
	translator integration.RecordTranslator
	batches    *scheduler.BatchScheduler
	config     OrderSyncConfig
	metrics    OrderMetricsRecorder
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time

	running atomic.Bool

	mu         sync.RWMutex
	lastReport *integration.OrderSyncReport
}

// NewOrderSyncService creates a new order push service
func NewOrderSyncService(
	source integration.OrderSource,
	target integration.OrderTarget,
	products integration.ProductLookup,
	translator integration.RecordTranslator,
	config OrderSyncConfig,
	log *zap.Logger,
	opts ...OrderOption,
) (*OrderSyncService, error) {
	if source == nil || target == nil || products == nil || translator == nil {
		return nil, fmt.Errorf("%w: order source, target, product lookup and translator are required", integration.ErrPlatformNotConfigured)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if config.SyncedTag == "" {
		config.SyncedTag = integration.DefaultOrderSyncedTag
	}
	if config.Lookback < 0 {
		config.Lookback = 0
	}
	if err := config.Retry.Validate(); err != nil {
		return nil, err
	}
	batches, err := scheduler.NewBatchScheduler(config.Batch, log.Named("batch"))
	if err != nil {
		return nil, err
	}

	s := &OrderSyncService{
		source:     source,
		target:     target,
		products:   products,
		translator: translator,
		batches:    batches,
		config:     config,
		metrics:    noopOrderMetrics{},
		tracer:     otel.Tracer(tracerName),
		logger:     log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SyncOrders pushes every untagged order to the ERP
func (s *OrderSyncService) SyncOrders(ctx context.Context) (*integration.OrderSyncReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, integration.ErrSyncInProgress
	}
	defer s.running.Store(false)

	startedAt := s.now()
	var createdSince *time.Time
	if s.config.Lookback > 0 {
		since := startedAt.Add(-s.config.Lookback)
		createdSince = &since
	}
	runID := uuid.NewString()
	ctx, log := logger.WithRunID(ctx, s.logger, runID)
	ctx, span := s.tracer.Start(ctx, "sync.orders", trace.WithAttributes(
		attribute.String("run_id", runID),
	))
	defer span.End()
	ctx, log = withSpanLogger(ctx, log)

	report := integration.NewOrderSyncReport(runID, createdSince, startedAt)
	log.Info("Order sync started",
		zap.String("synced_tag", s.config.SyncedTag),
		zap.Timep("created_since", createdSince),
	)

	err := s.run(ctx, report)
	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()
	s.metrics.RecordOrderRun(ctx, report)

	span.SetAttributes(
		attribute.String("status", report.Status.String()),
		attribute.Int("total", report.TotalCount),
		attribute.Int("succeeded", report.SuccessCount),
		attribute.Int("failed", report.FailedCount),
		attribute.Int("skipped", report.SkippedCount),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Order sync aborted", zap.Error(err))
		return report, err
	}

	fields := []zap.Field{
		zap.String("status", report.Status.String()),
		zap.Int("total", report.TotalCount),
		zap.Int("succeeded", report.SuccessCount),
		zap.Int("failed", report.FailedCount),
		zap.Int("skipped", report.SkippedCount),
		zap.Duration("duration", report.Duration()),
	}
	if report.FailedCount > 0 {
		log.Warn("Order sync finished with failures", fields...)
	} else {
		log.Info("Order sync finished", fields...)
	}
	return report, nil
}

// LastReport returns the report of the most recent run, nil if none ran
func (s *OrderSyncService) LastReport() *integration.OrderSyncReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

// IsRunning reports whether an order push is in progress
func (s *OrderSyncService) IsRunning() bool {
	return s.running.Load()
}

func (s *OrderSyncService) run(ctx context.Context, report *integration.OrderSyncReport) error {
	var (
		orders   []integration.Order
		products []integration.CatalogRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.source.FetchOrders(gctx, integration.OrderFetchOptions{
			ExcludeTag:   s.config.SyncedTag,
			CreatedSince: report.CreatedSince,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", integration.ErrOrderFetchFailed, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		products, err = s.products.FetchProducts(gctx, integration.FetchOptions{})
		if err != nil {
			return fmt.Errorf("%w: %s: %w", integration.ErrCatalogFetchFailed, s.products.Name(), err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		report.Abort(s.now(), err)
		return err
	}

	index := integration.BuildCatalogIndex(products)
	log := logger.FromContext(ctx)

	errs := s.batches.Run(ctx, len(orders), func(ctx context.Context, i int) error {
		o := orders[i]
		if o.HasTag(s.config.SyncedTag) {
			return nil
		}

		policy := s.config.Retry
		policy.OnRetry = func(attempt int, err error) {
			log.Warn("Retrying order push",
				zap.String("order_id", o.PlatformID),
				zap.String("order_name", o.Name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return scheduler.Retry(ctx, policy, func(ctx context.Context) error {
			return s.push(context.WithoutCancel(ctx), o, index)
		})
	})

	for i, o := range orders {
		switch {
		case o.HasTag(s.config.SyncedTag):
			report.Skipped()
		case errs[i] != nil:
			report.Failed(o, errs[i])
			log.Error("Order push failed",
				zap.String("order_id", o.PlatformID),
				zap.String("order_name", o.Name),
				zap.Error(errs[i]),
			)
		default:
			report.Succeeded()
		}
	}
	report.Finish(s.now())
	return ctx.Err()
}

// push files one order under its counterparty and tags it on the storefront
func (s *OrderSyncService) push(ctx context.Context, o integration.Order, products integration.CatalogIndex) error {
	log := logger.FromContext(ctx)

	var customer integration.OrderCustomer
	if o.Customer != nil {
		customer = *o.Customer
	}
	if s.config.CustomerTag != "" {
		customer.Tags = []string{s.config.CustomerTag}
	}
	customerID, err := s.target.GetOrCreateCustomer(ctx, customer)
	if err != nil {
		return fmt.Errorf("%w: customer: %w", integration.ErrOrderSyncFailed, err)
	}

	doc, unmatched := integration.BuildCustomerOrder(o, customerID, products,
		integration.ConvertFunc(s.translator, integration.DirectionSourceToTarget))
	for _, line := range unmatched {
		log.Warn("Order line has no ERP product, left out",
			zap.String("order_id", o.PlatformID),
			zap.String("title", line.Title),
			zap.String("sku", line.SKU),
		)
	}

	documentID, err := s.target.CreateCustomerOrder(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: customer order: %w", integration.ErrOrderSyncFailed, err)
	}
	if err := s.source.TagOrder(ctx, o.PlatformID, s.config.SyncedTag); err != nil {
		return fmt.Errorf("%w: tag: %w", integration.ErrOrderSyncFailed, err)
	}

	log.Debug("Order pushed",
		zap.String("order_id", o.PlatformID),
		zap.String("order_name", o.Name),
		zap.String("customer_order_id", documentID),
		zap.Int("positions", len(doc.Positions)),
	)
	return nil
}

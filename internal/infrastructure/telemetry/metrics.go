// Package telemetry wires OpenTelemetry metrics, traces and logs for the sync daemon.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

// MetricsConfig selects the OTLP collector that sync metrics are pushed to
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration // Default: 30s
	ServiceName       string
	ServiceVersion    string
	Insecure          bool
}

// MeterProvider owns the SDK provider. A disabled provider hands out meters
// from the global no-op provider.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
	enabled  bool
}

// NewMeterProvider builds the exporter pipeline and installs it globally
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled {
		logger.Info("Sync metrics disabled")
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metrics exporter: %w", err)
	}

	version := cfg.ServiceVersion
	if version == "" {
		version = "dev"
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("build metrics resource: %w", err)
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	mp.enabled = true
	otel.SetMeterProvider(mp.provider)

	logger.Info("Sync metrics exporting",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
	)
	return mp, nil
}

// Shutdown flushes buffered points, waiting at most ten seconds
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.provider.Shutdown(ctx); err != nil {
		mp.logger.Error("Flushing sync metrics failed", zap.Error(err))
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}

// Meter returns a named meter
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled reports whether points leave the process
func (mp *MeterProvider) IsEnabled() bool {
	return mp.enabled
}

// Attribute keys shared by the sync instruments
var (
	AttrPhase     = attribute.Key("phase")
	AttrDirection = attribute.Key("direction")
	AttrAction    = attribute.Key("action")
	AttrOutcome   = attribute.Key("outcome")
	AttrStatus    = attribute.Key("status")
	AttrMode      = attribute.Key("mode")
)

// SyncDurationBuckets are histogram boundaries, in seconds, for phase, cycle
// and order run durations
var SyncDurationBuckets = []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600}

// ErrMeterNil is returned when meter is nil
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError reports a failure to build the sync instruments
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// SyncMetrics records catalog reconciliation and order push activity
type SyncMetrics struct {
	actions       metric.Int64Counter
	phases        metric.Int64Counter
	cycles        metric.Int64Counter
	phaseDuration metric.Float64Histogram
	cycleDuration metric.Float64Histogram
	watermarkAge  metric.Float64Gauge

	orderRuns        metric.Int64Counter
	orders           metric.Int64Counter
	orderRunDuration metric.Float64Histogram
}

// NewSyncMetrics creates every sync instrument on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	b := instruments{meter: meter}
	sm := &SyncMetrics{
		actions:          b.counter("catalog_sync_actions_total", "Reconciliation actions by phase, direction, kind and outcome", "{actions}"),
		phases:           b.counter("catalog_sync_phases_total", "Completed sync phases by status", "{phases}"),
		cycles:           b.counter("catalog_sync_cycles_total", "Completed sync cycles by mode and status", "{cycles}"),
		phaseDuration:    b.seconds("catalog_sync_phase_duration_seconds", "Duration of a sync phase"),
		cycleDuration:    b.seconds("catalog_sync_cycle_duration_seconds", "Duration of a complete or incremental sync cycle"),
		watermarkAge:     b.gauge("catalog_sync_watermark_age_seconds", "Age of the incremental watermark when a cycle finished"),
		orderRuns:        b.counter("catalog_sync_order_runs_total", "Finished order push runs by status", "{runs}"),
		orders:           b.counter("catalog_sync_orders_total", "Orders seen by the order push, by outcome", "{orders}"),
		orderRunDuration: b.seconds("catalog_sync_order_run_duration_seconds", "Duration of an order push run"),
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, &MetricsError{Op: "NewSyncMetrics", Err: err.Error()}
	}
	return sm, nil
}

// instruments creates instruments on one meter and collects creation errors
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (b *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("counter %s: %w", name, err))
	}
	return c
}

func (b *instruments) seconds(name, desc string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(SyncDurationBuckets...),
	)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("histogram %s: %w", name, err))
	}
	return h
}

func (b *instruments) gauge(name, desc string) metric.Float64Gauge {
	g, err := b.meter.Float64Gauge(name, metric.WithDescription(desc), metric.WithUnit("s"))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("gauge %s: %w", name, err))
	}
	return g
}

// RecordOutcome counts one settled action
func (sm *SyncMetrics) RecordOutcome(ctx context.Context, phase integration.SyncPhase, o integration.SyncOutcome) {
	sm.actions.Add(ctx, 1, metric.WithAttributes(
		AttrPhase.String(string(phase)),
		AttrDirection.String(o.Action.Direction.String()),
		AttrAction.String(o.Action.Kind.String()),
		AttrOutcome.String(string(o.Status)),
	))
}

// RecordPhase records a finished phase
func (sm *SyncMetrics) RecordPhase(ctx context.Context, r *integration.SyncReport) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		AttrPhase.String(string(r.Phase)),
		AttrStatus.String(r.Status.String()),
	)
	sm.phases.Add(ctx, 1, attrs)
	sm.phaseDuration.Record(ctx, r.Duration().Seconds(), attrs)
}

// RecordCycle records a finished cycle and the watermark lag at its end.
// A nil watermark records nothing for the lag.
func (sm *SyncMetrics) RecordCycle(ctx context.Context, c *integration.SyncCycleReport, watermark *time.Time) {
	if c == nil {
		return
	}
	mode := AttrMode.String(string(c.Mode))
	sm.cycles.Add(ctx, 1, metric.WithAttributes(mode, AttrStatus.String(c.Status.String())))
	if c.FinishedAt.IsZero() {
		return
	}
	sm.cycleDuration.Record(ctx, c.FinishedAt.Sub(c.StartedAt).Seconds(), metric.WithAttributes(mode))
	if watermark != nil {
		sm.watermarkAge.Record(ctx, c.FinishedAt.Sub(*watermark).Seconds())
	}
}

// RecordOrderRun records a finished order push run and its per-order tallies
func (sm *SyncMetrics) RecordOrderRun(ctx context.Context, r *integration.OrderSyncReport) {
	if r == nil {
		return
	}
	status := metric.WithAttributes(AttrStatus.String(r.Status.String()))
	sm.orderRuns.Add(ctx, 1, status)
	if !r.FinishedAt.IsZero() {
		sm.orderRunDuration.Record(ctx, r.Duration().Seconds(), status)
	}
	for outcome, n := range map[string]int{
		"pushed":  r.SuccessCount,
		"failed":  r.FailedCount,
		"skipped": r.SkippedCount,
	} {
		if n > 0 {
			sm.orders.Add(ctx, int64(n), metric.WithAttributes(AttrOutcome.String(outcome)))
		}
	}
}

package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestWithRunID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, l := WithRunID(context.Background(), zap.New(core), "run-42")

	l.Info("direct")
	FromContext(ctx).Info("from context")

	logs := recorded.All()
	require.Len(t, logs, 2)
	for _, entry := range logs {
		assert.Equal(t, "run-42", entry.ContextMap()["run_id"])
	}
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, _ := WithRequestID(context.Background(), zap.New(core), "req-1")
	FromContext(ctx).With(zap.String("phase", "products")).Warn("phase failed")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "req-1", logs[0].ContextMap()["request_id"])
	assert.Equal(t, "products", logs[0].ContextMap()["phase"])
}

func TestWithTraceContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	assert.Same(t, base, WithTraceContext(context.Background(), base))

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	WithTraceContext(ctx, base).Info("traced")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", logs[0].ContextMap()["trace_id"])
	assert.Equal(t, "0102030405060708", logs[0].ContextMap()["span_id"])
}

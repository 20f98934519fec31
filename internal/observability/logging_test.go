package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return &Logger{Logger: zap.New(core)}, logs
}

func TestLoggerEnrichesWithSpanContext(t *testing.T) {
	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer("test-tracer")

	logger, logs := observedLogger()

	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	logger.Info(ctx, "generation complete", nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "generation complete", entries[0].Message)

	fields := entries[0].ContextMap()
	spanContext := span.SpanContext()
	assert.Equal(t, spanContext.TraceID().String(), fields["trace_id"])
	assert.Equal(t, spanContext.SpanID().String(), fields["span_id"])
}

func TestLoggerWithoutSpanOmitsTraceFields(t *testing.T) {
	logger, logs := observedLogger()

	logger.Info(context.Background(), "no span here", nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotContains(t, fields, "trace_id")
	assert.NotContains(t, fields, "span_id")
}

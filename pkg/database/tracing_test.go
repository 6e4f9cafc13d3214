package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func attrValue(attrs []attribute.KeyValue, key string) string {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.AsString()
		}
	}
	return ""
}

func TestTraceQuery_RecordsPostgresSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "GetSessionByTokenHash", "SELECT id FROM sessions")
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.GetSessionByTokenHash", spans[0].Name)
	assert.Equal(t, SystemPostgres, attrValue(spans[0].Attributes, "db.system"))
	assert.Equal(t, "SELECT id FROM sessions", attrValue(spans[0].Attributes, "db.statement"))
}

func TestTraceRedis_RecordsErrorStatus(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceRedis(context.Background(), "RotateSession")
	end(errors.New("NOSCRIPT"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, SystemRedis, attrValue(spans[0].Attributes, "db.system"))
	assert.Equal(t, "", attrValue(spans[0].Attributes, "db.statement"))
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestSlowQueryLogging(t *testing.T) {
	setupTestTracer(t)
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	SetSlowQueryLogging(time.Hour, logger)
	_, end := TraceQuery(context.Background(), "FastSelect", "SELECT 1")
	end(nil)
	assert.Empty(t, buf.String())

	SetSlowQueryLogging(time.Nanosecond, logger)
	_, end = TraceQuery(context.Background(), "DeleteExpiredSessions", "DELETE FROM sessions")
	end(errors.New("lock timeout"))
	assert.Contains(t, buf.String(), "slow query detected")
	assert.Contains(t, buf.String(), "DeleteExpiredSessions")
	assert.Contains(t, buf.String(), "lock timeout")
}

func TestSlowQueryLogging_DisabledDoesNotPanic(t *testing.T) {
	setupTestTracer(t)
	SetSlowQueryLogging(0, nil)

	_, end := TraceQuery(context.Background(), "AnyOp", "SELECT 1")
	assert.NotPanics(t, func() { end(nil) })
}

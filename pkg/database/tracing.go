package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/wnsxk2/jt-log/pkg/database"

// Database systems recorded on spans.
const (
	SystemPostgres = "postgresql"
	SystemRedis    = "redis"
)

type slowQueryConfig struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQuery atomic.Pointer[slowQueryConfig]

// SetSlowQueryLogging configures slow query detection. Operations exceeding
// threshold are logged as warnings. A zero threshold disables it.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	slowQuery.Store(&slowQueryConfig{threshold: threshold, logger: logger})
}

// TraceQuery starts a span for a PostgreSQL operation. The returned function
// must be called when the operation completes:
//
//	ctx, end := database.TraceQuery(ctx, "GetSessionByTokenHash", query)
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	return traceOp(ctx, SystemPostgres, operation, statement)
}

// TraceRedis starts a span for a Redis operation.
func TraceRedis(ctx context.Context, operation string) (context.Context, func(error)) {
	return traceOp(ctx, SystemRedis, operation, "")
}

func traceOp(ctx context.Context, system, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", operation),
	}
	if statement != "" {
		attrs = append(attrs, attribute.String("db.statement", statement))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		cfg := slowQuery.Load()
		if cfg == nil || cfg.threshold <= 0 || cfg.logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= cfg.threshold {
			logAttrs := []any{
				slog.String("db_system", system),
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				logAttrs = append(logAttrs, slog.String("error", err.Error()))
			}
			cfg.logger.WarnContext(ctx, "slow query detected", logAttrs...)
		}
	}
}

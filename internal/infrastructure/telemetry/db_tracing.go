package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include query variables in spans (dev only)
	SlowQueryThresh time.Duration // default: 200ms
	DBName          string
	// TracerProvider overrides the global provider when set
	TracerProvider trace.TracerProvider
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "storefront",
	}
}

type dbTimingKey struct{}

// RegisterDBTracing installs the otelgorm plugin on db plus a callback
// pair that flags slow statements and marks failed ones on the span.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}

	// The timer's after callbacks must run before otelgorm ends the span
	t := &statementTimer{slowQueryThresh: cfg.SlowQueryThresh}
	if err := t.register(db); err != nil {
		return err
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(cfg.DBName),
		otelgorm.WithoutMetrics(),
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

type statementTimer struct {
	slowQueryThresh time.Duration
}

func (t *statementTimer) register(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("storefront_timing:before_create", t.before),
		cb.Create().After("gorm:create").Register("storefront_timing:after_create", t.after),
		cb.Query().Before("gorm:query").Register("storefront_timing:before_query", t.before),
		cb.Query().After("gorm:query").Register("storefront_timing:after_query", t.after),
		cb.Update().Before("gorm:update").Register("storefront_timing:before_update", t.before),
		cb.Update().After("gorm:update").Register("storefront_timing:after_update", t.after),
		cb.Delete().Before("gorm:delete").Register("storefront_timing:before_delete", t.before),
		cb.Delete().After("gorm:delete").Register("storefront_timing:after_delete", t.after),
		cb.Row().Before("gorm:row").Register("storefront_timing:before_row", t.before),
		cb.Row().After("gorm:row").Register("storefront_timing:after_row", t.after),
		cb.Raw().Before("gorm:raw").Register("storefront_timing:before_raw", t.before),
		cb.Raw().After("gorm:raw").Register("storefront_timing:after_raw", t.after),
	)
}

func (t *statementTimer) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, dbTimingKey{}, time.Now())
	}
}

func (t *statementTimer) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}

	start, ok := ctx.Value(dbTimingKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > t.slowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", t.slowQueryThresh.Milliseconds()),
		))
	}
}

package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// SQLLoggerConfig tunes the SQL logger
type SQLLoggerConfig struct {
	// Level is one of silent, error, warn, info or debug
	Level string
	// SlowThreshold marks slower queries as slow; zero disables the check
	SlowThreshold time.Duration
	// LogRecordNotFound also reports lookups that found no row
	LogRecordNotFound bool
}

// SQLLogger writes gorm's statements and messages to zap, tagged with the
// request and cart session that issued them
type SQLLogger struct {
	logger *zap.Logger
	level  gormlogger.LogLevel
	cfg    SQLLoggerConfig
}

// NewSQLLogger creates a gorm logger backed by zap
func NewSQLLogger(zapLogger *zap.Logger, cfg SQLLoggerConfig) *SQLLogger {
	return &SQLLogger{
		logger: zapLogger.Named("gorm"),
		level:  ParseSQLLevel(cfg.Level),
		cfg:    cfg,
	}
}

// ParseSQLLevel maps a log level name onto gorm's levels. debug shows
// every statement; unknown names fall back to warn.
func ParseSQLLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}

// LogMode implements gormlogger.Interface
func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

// Warn implements gormlogger.Interface
func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

// Error implements gormlogger.Interface
func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *SQLLogger) printf(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < min {
		return
	}
	if ce := l.scoped(ctx).Check(lvl, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write()
	}
}

// Trace implements gormlogger.Interface. Failed statements log at error,
// slow ones at warn and the rest at debug when the level is info.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		lvl   zapcore.Level
		msg   string
		extra zap.Field
	)
	switch {
	case err != nil:
		if l.level < gormlogger.Error || (!l.cfg.LogRecordNotFound && errors.Is(err, gormlogger.ErrRecordNotFound)) {
			return
		}
		lvl, msg, extra = zapcore.ErrorLevel, "SQL Error", zap.Error(err)
	case l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold:
		if l.level < gormlogger.Warn {
			return
		}
		lvl, msg, extra = zapcore.WarnLevel, "SLOW SQL", zap.Duration("threshold", l.cfg.SlowThreshold)
	default:
		if l.level < gormlogger.Info {
			return
		}
		lvl, msg, extra = zapcore.DebugLevel, "SQL Query", zap.Skip()
	}

	ce := l.scoped(ctx).Check(lvl, msg)
	if ce == nil {
		return
	}
	sql, rows := fc()
	ce.Write(
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
		extra,
	)
}

func (l *SQLLogger) scoped(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return l.logger
	}
	log := WithTraceContext(ctx, l.logger)
	if id := GetRequestID(ctx); id != "" {
		log = log.With(zap.String("request_id", id))
	}
	if id := GetSessionID(ctx); id != "" {
		log = log.With(zap.String("session_id", id))
	}
	return log
}

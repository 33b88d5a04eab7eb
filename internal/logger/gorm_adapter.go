package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

// GormAdapter adapts our Logger to implement gorm's logger.Interface
type GormAdapter struct {
	logger        *Logger
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormAdapter creates a new GORM logger adapter
func NewGormAdapter(logger *Logger, level string) *GormAdapter {
	return &GormAdapter{
		logger:        logger,
		logLevel:      mapToGormLevel(level),
		slowThreshold: defaultSlowQueryThreshold,
	}
}

// WithSlowThreshold returns a copy of the adapter using the given slow query threshold.
// A zero threshold disables slow query warnings.
func (g *GormAdapter) WithSlowThreshold(threshold time.Duration) *GormAdapter {
	newAdapter := *g
	newAdapter.slowThreshold = threshold
	return &newAdapter
}

// LogMode sets the log level
func (g *GormAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newAdapter := *g
	newAdapter.logLevel = level
	return &newAdapter
}

// Info logs info level messages
func (g *GormAdapter) Info(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Info {
		g.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Warn logs warn level messages
func (g *GormAdapter) Warn(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Warn {
		g.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Error logs error level messages
func (g *GormAdapter) Error(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Error {
		g.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...), nil)
	}
}

// Trace logs SQL queries and their execution time.
// Not-found and duplicate-key errors are expected outcomes of catalog lookups and
// uniqueness checks, so they are logged at debug level only.
func (g *GormAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if g.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := map[string]interface{}{
		"elapsed_ms": float64(elapsed.Nanoseconds()) / 1e6,
		"rows":       rows,
		"sql":        sql,
	}

	expected := errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey)

	switch {
	case err != nil && !expected && g.logLevel >= gormlogger.Error:
		g.logger.WithFields(fields).ErrorContext(ctx, "database query error", err)

	case elapsed > g.slowThreshold && g.slowThreshold != 0 && g.logLevel >= gormlogger.Warn:
		fields["threshold_ms"] = float64(g.slowThreshold.Nanoseconds()) / 1e6
		g.logger.WithFields(fields).WarnContext(ctx, "slow SQL query detected")

	case g.logLevel >= gormlogger.Info:
		g.logger.WithFields(fields).DebugContext(ctx, "SQL query executed")
	}
}

// mapToGormLevel maps application log level string to GORM log level
func mapToGormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info // every statement
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn // slow queries and errors
	}
}

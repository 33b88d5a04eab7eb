package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Level represents the severity level of a log entry
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Format selects how entries are rendered
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

var levelOrder = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// contextKey is the type used for context keys
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	adminIDKey   contextKey = "admin_id"
)

// Package-level logger instances
var (
	appLogger      *Logger
	databaseLogger *Logger
	mu             sync.RWMutex
)

// Entry represents a single log entry
type Entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     Level                  `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Stack     []string               `json:"stack,omitempty"`
}

// Logger provides structured logging functionality
type Logger struct {
	output    io.Writer
	minLevel  Level
	withStack bool
	text      *charmlog.Logger
	writeMu   sync.Mutex
}

// Config holds logger configuration
type Config struct {
	Output    io.Writer
	MinLevel  Level
	Format    Format
	WithStack bool
}

// New creates a new logger with the given configuration
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.MinLevel == "" {
		cfg.MinLevel = LevelInfo
	}

	l := &Logger{
		output:    cfg.Output,
		minLevel:  cfg.MinLevel,
		withStack: cfg.WithStack,
	}

	if cfg.Format == FormatText {
		l.text = charmlog.NewWithOptions(cfg.Output, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			// filtering happens in shouldLog
			Level: charmlog.DebugLevel,
		})
	}

	return l
}

// Default creates a logger with default configuration
func Default() *Logger {
	return New(Config{
		Output:   os.Stdout,
		MinLevel: LevelInfo,
	})
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return New(Config{Output: io.Discard, MinLevel: LevelError})
}

// NewWithLevel creates a new JSON logger with a specific log level string
func NewWithLevel(level string) *Logger {
	return NewWithLevelAndFormat(level, string(FormatJSON))
}

// NewWithLevelAndFormat creates a new logger with a level and an output format
func NewWithLevelAndFormat(level, format string) *Logger {
	logLevel := parseLevel(level)
	return New(Config{
		Output:    os.Stdout,
		MinLevel:  logLevel,
		Format:    parseFormat(format),
		WithStack: logLevel == LevelDebug,
	})
}

// AppLogger returns the application logger, creating a default one on first use
func AppLogger() *Logger {
	mu.RLock()
	l := appLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if appLogger == nil {
		appLogger = Default()
	}
	return appLogger
}

// DatabaseLogger returns the database logger, creating a default one on first use
func DatabaseLogger() *Logger {
	mu.RLock()
	l := databaseLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if databaseLogger == nil {
		databaseLogger = Default()
	}
	return databaseLogger
}

// SetAppLogger sets the application logger (primarily for testing)
func SetAppLogger(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	appLogger = logger
}

// SetDatabaseLogger sets the database logger (primarily for testing)
func SetDatabaseLogger(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	databaseLogger = logger
}

// InitializeLoggers initializes both app and database loggers with specified levels
func InitializeLoggers(appLevel, dbLevel string) {
	InitializeLoggersWithFormat(appLevel, dbLevel, string(FormatJSON))
}

// InitializeLoggersWithFormat initializes both loggers with levels and a shared format
func InitializeLoggersWithFormat(appLevel, dbLevel, format string) {
	mu.Lock()
	defer mu.Unlock()

	appLogger = NewWithLevelAndFormat(appLevel, format)
	databaseLogger = NewWithLevelAndFormat(dbLevel, format)
}

// parseLevel converts a string log level to a Level type
func parseLevel(level string) Level {
	switch level {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func parseFormat(format string) Format {
	if format == string(FormatText) {
		return FormatText
	}
	return FormatJSON
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.log(LevelDebug, msg, nil, nil)
}

// DebugContext logs a debug message with context
func (l *Logger) DebugContext(ctx context.Context, msg string) {
	l.logContext(ctx, LevelDebug, msg, nil, nil)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.log(LevelInfo, msg, nil, nil)
}

// InfoContext logs an info message with context
func (l *Logger) InfoContext(ctx context.Context, msg string) {
	l.logContext(ctx, LevelInfo, msg, nil, nil)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.log(LevelWarn, msg, nil, nil)
}

// WarnContext logs a warning message with context
func (l *Logger) WarnContext(ctx context.Context, msg string) {
	l.logContext(ctx, LevelWarn, msg, nil, nil)
}

// Error logs an error message
func (l *Logger) Error(msg string, err error) {
	l.log(LevelError, msg, nil, err)
}

// ErrorContext logs an error message with context
func (l *Logger) ErrorContext(ctx context.Context, msg string, err error) {
	l.logContext(ctx, LevelError, msg, nil, err)
}

// WithFields returns a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *FieldLogger {
	return &FieldLogger{
		logger: l,
		fields: fields,
	}
}

// log performs the actual logging
func (l *Logger) log(level Level, msg string, fields map[string]interface{}, err error) {
	if !l.shouldLog(level) {
		return
	}

	if l.text != nil {
		l.logText(level, msg, fields, err)
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Context:   fields,
	}

	if err != nil {
		entry.Error = err.Error()
		if l.withStack && level == LevelError {
			entry.Stack = getStackTrace()
		}
	}

	data, _ := json.Marshal(entry)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	fmt.Fprintln(l.output, string(data))
}

func (l *Logger) logText(level Level, msg string, fields map[string]interface{}, err error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keyvals := make([]interface{}, 0, len(keys)*2+2)
	for _, k := range keys {
		keyvals = append(keyvals, k, fields[k])
	}
	if err != nil {
		keyvals = append(keyvals, "error", err.Error())
	}

	switch level {
	case LevelDebug:
		l.text.Debug(msg, keyvals...)
	case LevelInfo:
		l.text.Info(msg, keyvals...)
	case LevelWarn:
		l.text.Warn(msg, keyvals...)
	default:
		l.text.Error(msg, keyvals...)
	}
}

// logContext logs with context values
func (l *Logger) logContext(ctx context.Context, level Level, msg string, fields map[string]interface{}, err error) {
	if !l.shouldLog(level) {
		return
	}

	merged := make(map[string]interface{}, len(fields)+2)

	if ctx != nil {
		if requestID := ctx.Value(requestIDKey); requestID != nil {
			merged["request_id"] = requestID
		}
		if adminID := ctx.Value(adminIDKey); adminID != nil {
			merged["admin_id"] = adminID
		}
	}

	for k, v := range fields {
		merged[k] = v
	}

	l.log(level, msg, merged, err)
}

// shouldLog checks if the log level should be logged
func (l *Logger) shouldLog(level Level) bool {
	return levelOrder[level] >= levelOrder[l.minLevel]
}

// getStackTrace captures the current stack trace
func getStackTrace() []string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(4, pcs[:])

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)

	for {
		frame, more := frames.Next()
		stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}

	return stack
}

// FieldLogger is a logger with pre-set fields
type FieldLogger struct {
	logger *Logger
	fields map[string]interface{}
}

// Debug logs a debug message with fields
func (fl *FieldLogger) Debug(msg string) {
	fl.logger.log(LevelDebug, msg, fl.fields, nil)
}

// DebugContext logs a debug message with fields and context
func (fl *FieldLogger) DebugContext(ctx context.Context, msg string) {
	fl.logger.logContext(ctx, LevelDebug, msg, fl.fields, nil)
}

// Info logs an info message with fields
func (fl *FieldLogger) Info(msg string) {
	fl.logger.log(LevelInfo, msg, fl.fields, nil)
}

// InfoContext logs an info message with fields and context
func (fl *FieldLogger) InfoContext(ctx context.Context, msg string) {
	fl.logger.logContext(ctx, LevelInfo, msg, fl.fields, nil)
}

// Warn logs a warning message with fields
func (fl *FieldLogger) Warn(msg string) {
	fl.logger.log(LevelWarn, msg, fl.fields, nil)
}

// WarnContext logs a warning message with fields and context
func (fl *FieldLogger) WarnContext(ctx context.Context, msg string) {
	fl.logger.logContext(ctx, LevelWarn, msg, fl.fields, nil)
}

// Error logs an error message with fields
func (fl *FieldLogger) Error(msg string, err error) {
	fl.logger.log(LevelError, msg, fl.fields, err)
}

// ErrorContext logs an error message with fields and context
func (fl *FieldLogger) ErrorContext(ctx context.Context, msg string, err error) {
	fl.logger.logContext(ctx, LevelError, msg, fl.fields, err)
}

// ContextWithRequestID adds a request ID to the context
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithAdminID adds the authenticated admin's ID to the context
func ContextWithAdminID(ctx context.Context, adminID uint) context.Context {
	return context.WithValue(ctx, adminIDKey, adminID)
}

// RequestIDFromContext returns the request ID stored in ctx, if any
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

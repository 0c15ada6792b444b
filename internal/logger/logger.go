package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"

	itrace "nifty-signals/internal/trace"
)

var (
	// Global logger instance
	globalLogger = slog.Default()
	// Log level controlled by environment variable
	logLevel slog.Level
	// Whether detailed logging is enabled
	detailedLogging bool
	// Rotating file sink, when LOG_FILE is set
	fileWriter *lumberjack.Logger
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level           string // DEBUG, INFO, WARN, ERROR
	Format          string // json or text
	DetailedLogging bool   // Enable detailed logs
	File            string // Optional rotating log file, in addition to stdout
	MaxSizeMB       int
	MaxBackups      int
}

// Init initializes the global logger based on environment variables
func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

// LoadConfigFromEnv loads logging configuration from environment variables
func LoadConfigFromEnv() LogConfig {
	return LogConfig{
		Level:           getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format:          getEnvOrDefault("LOG_FORMAT", "json"),
		DetailedLogging: getEnvOrDefault("LOG_DETAILED", "false") == "true",
		File:            os.Getenv("LOG_FILE"),
		MaxSizeMB:       getEnvInt("LOG_FILE_MAX_MB", 50),
		MaxBackups:      getEnvInt("LOG_FILE_MAX_BACKUPS", 5),
	}
}

// InitWithConfig initializes the logger with specific configuration
func InitWithConfig(config LogConfig) error {
	logLevel = parseLogLevel(config.Level)
	detailedLogging = config.DetailedLogging || logLevel == slog.LevelDebug

	// Source is added manually in logWithTrace to get the correct caller
	opts := &slog.HandlerOptions{Level: logLevel}

	var out io.Writer = os.Stdout
	if config.File != "" {
		fileWriter = &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, fileWriter)
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	return nil
}

// Close flushes and closes the rotating file sink, if any.
func Close() error {
	if fileWriter != nil {
		return fileWriter.Close()
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

// getTraceAttrs extracts trace ID and span ID from context for logging
func getTraceAttrs(ctx context.Context) []any {
	traceID, spanID, ok := itrace.GetTraceFields(ctx)
	if !ok {
		return nil
	}
	return []any{"trace_id", traceID, "span_id", spanID}
}

// Debug logs a debug message
func Debug(ctx context.Context, msg string, args ...any) {
	if !detailedLogging {
		return
	}
	logWithTrace(ctx, slog.LevelDebug, msg, 2, args...)
}

// Info logs an info message
func Info(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2, args...)
}

// Warn logs a warning message
func Warn(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, 2, args...)
}

// Error logs an error message
func Error(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelError, msg, 2, args...)
}

// ErrorWithErr logs an error message with an error object
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	recordSpanError(ctx, err)
	allArgs := append([]any{"error", err}, args...)
	logWithTrace(ctx, slog.LevelError, msg, 2, allArgs...)
}

// The *Skip variants report the caller skip frames further up, so decorators
// can log on behalf of the code they wrap.

func DebugSkip(ctx context.Context, skip int, msg string, args ...any) {
	if !detailedLogging {
		return
	}
	logWithTrace(ctx, slog.LevelDebug, msg, 2+skip, args...)
}

func InfoSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2+skip, args...)
}

func WarnSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, 2+skip, args...)
}

func ErrorWithErrSkip(ctx context.Context, skip int, msg string, err error, args ...any) {
	recordSpanError(ctx, err)
	allArgs := append([]any{"error", err}, args...)
	logWithTrace(ctx, slog.LevelError, msg, 2+skip, allArgs...)
}

func recordSpanError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// logWithTrace logs a message with trace ID and span ID if available.
// skip is the number of stack frames between runtime.Caller and the caller.
func logWithTrace(ctx context.Context, level slog.Level, msg string, skip int, args ...any) {
	if traceAttrs := getTraceAttrs(ctx); traceAttrs != nil {
		args = append(traceAttrs, args...)
	}

	if detailedLogging {
		if pc, file, line, ok := runtime.Caller(skip); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				args = append(args, "source", slog.GroupValue(
					slog.String("function", fn.Name()),
					slog.String("file", file),
					slog.Int("line", line),
				))
			}
		}
	}

	globalLogger.Log(ctx, level, msg, args...)
}

// OperationTimer helps measure operation duration with OpenTelemetry spans
type OperationTimer struct {
	ctx    context.Context
	span   trace.Span
	start  time.Time
	fields []any
}

// StartOperation starts timing an operation with an OpenTelemetry span
func StartOperation(ctx context.Context, operation string, fields ...any) *OperationTimer {
	ctx, span := itrace.StartSpan(ctx, operation)
	span.SetAttributes(toAttributes(fields)...)

	Debug(ctx, "Operation started", append([]any{"operation", operation}, fields...)...)

	return &OperationTimer{
		ctx:    ctx,
		span:   span,
		start:  time.Now(),
		fields: fields,
	}
}

// End completes the operation timer and logs the duration
func (ot *OperationTimer) End(additionalFields ...any) time.Duration {
	duration := time.Since(ot.start)

	ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
	ot.span.SetAttributes(toAttributes(additionalFields)...)
	ot.span.SetStatus(codes.Ok, "completed")
	ot.span.End()

	fields := append(append([]any{}, ot.fields...), "duration_ms", duration.Milliseconds())
	Debug(ot.ctx, "Operation completed", append(fields, additionalFields...)...)
	return duration
}

// EndWithError completes the operation timer with an error
func (ot *OperationTimer) EndWithError(err error, additionalFields ...any) time.Duration {
	duration := time.Since(ot.start)

	ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
	ot.span.RecordError(err)
	ot.span.SetStatus(codes.Error, err.Error())
	ot.span.End()

	fields := append(append([]any{}, ot.fields...), "duration_ms", duration.Milliseconds(), "error", err)
	Error(ot.ctx, "Operation failed", append(fields, additionalFields...)...)
	return duration
}

// GetContext returns the context with the span
func (ot *OperationTimer) GetContext() context.Context {
	return ot.ctx
}

func toAttributes(fields []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		}
	}
	return attrs
}

// Signal logs a fused trading signal (always logged regardless of level)
func Signal(ctx context.Context, symbol, signal string, predOpen, predClose int, fields ...any) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("trading_signal", trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("signal", signal),
			attribute.Int("pred_open", predOpen),
			attribute.Int("pred_close", predClose),
		))
	}

	allFields := append([]any{
		"type", "SIGNAL",
		"symbol", symbol,
		"signal", signal,
		"pred_open", predOpen,
		"pred_close", predClose,
	}, fields...)
	logWithTrace(ctx, slog.LevelInfo, "Trading signal", 2, allFields...)
}

// IsDebugEnabled returns whether debug logging is enabled
func IsDebugEnabled() bool {
	return detailedLogging
}

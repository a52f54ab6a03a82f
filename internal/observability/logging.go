package observability

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/avaproxy/internal/util"
)

// Logger is the structured logger shared by every proxy component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger

	// Named returns a child logger whose entries carry the component name.
	Named(name string) Logger

	// WithContext adds the request ID, trace IDs and matched route found in
	// ctx.
	WithContext(ctx context.Context) Logger
	Sync() error
}

// Field is a log field.
type Field = zap.Field

// Field constructors.
var (
	String     = zap.String
	Strings    = zap.Strings
	Int        = zap.Int
	Int64      = zap.Int64
	Float64    = zap.Float64
	Bool       = zap.Bool
	Error      = zap.Error
	Any        = zap.Any
	ByteString = zap.ByteString
	Duration   = zap.Duration
	Time       = zap.Time
)

// LogConfig selects the level, encoding and destination of log output.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string
	// Format is json (default) or console.
	Format string
	// Output is stdout (default) or stderr.
	Output string
}

type zapLogger struct {
	logger *zap.Logger
}

// NewLogger builds a zap-backed logger from cfg.
func NewLogger(cfg LogConfig) (Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "", "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format %q: expected json or console", cfg.Format)
	}

	out := zapcore.Lock(os.Stdout)
	if cfg.Output == "stderr" {
		out = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(encoder, out, level)
	return &zapLogger{
		logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)),
	}, nil
}

// NewLoggerFromZap wraps an existing zap logger. Tests use it with
// zaptest/observer to assert on emitted entries.
func NewLoggerFromZap(logger *zap.Logger) Logger {
	return &zapLogger{logger: logger}
}

// NopLogger returns a logger that discards all output.
func NopLogger() Logger {
	return &zapLogger{logger: zap.NewNop()}
}

// NewStdLog adapts logger for standard library components such as
// http.Server.ErrorLog and httputil.ReverseProxy.ErrorLog. Their messages
// are logged at Warn.
func NewStdLog(logger Logger) *log.Logger {
	zl, ok := logger.(*zapLogger)
	if !ok {
		return log.New(io.Discard, "", 0)
	}
	std, err := zap.NewStdLogAt(zl.logger.WithOptions(zap.AddCallerSkip(-1)), zapcore.WarnLevel)
	if err != nil {
		return zap.NewStdLog(zl.logger)
	}
	return std
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.logger.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.logger.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.logger.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.logger.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.logger.Fatal(msg, fields...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{logger: l.logger.With(fields...)}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{logger: l.logger.Named(name)}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

func (l *zapLogger) Sync() error {
	return l.logger.Sync()
}

type contextKey int

const (
	requestIDKey contextKey = iota
	traceIDKey
	spanIDKey
)

func contextFields(ctx context.Context) []Field {
	var fields []Field
	for _, f := range []struct {
		key  contextKey
		name string
	}{
		{requestIDKey, "request_id"},
		{traceIDKey, "trace_id"},
		{spanIDKey, "span_id"},
	} {
		if v, ok := ctx.Value(f.key).(string); ok && v != "" {
			fields = append(fields, String(f.name, v))
		}
	}

	// The proxy fills RequestInfo once a route matches.
	if info := util.RequestInfoFromContext(ctx); info != nil {
		if info.RouteID != "" {
			fields = append(fields, String("route_id", info.RouteID))
		}
		if info.ClusterID != "" {
			fields = append(fields, String("cluster_id", info.ClusterID))
		}
		if info.Destination != "" {
			fields = append(fields, String("destination", info.Destination))
		}
	}

	return fields
}

func stringFromContext(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDKey)
}

// ContextWithTraceID adds a trace ID to the context.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the trace ID in ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, traceIDKey)
}

// ContextWithSpanID adds a span ID to the context.
func ContextWithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

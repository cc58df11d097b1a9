package observability

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pitabwire/vesselwizard/internal/config"
	"github.com/pitabwire/vesselwizard/model"
)

// Context key for the logger.
type loggerKey struct{}

// NewLogger creates a zap.Logger configured for JSON output to stdout.
//
// Log level usage conventions:
//   - error: Infrastructure failures (session store down, unhandled panics), 5xx responses
//   - warn:  Failed registry lookups, circuit breaker open, session version conflicts
//   - info:  Session start and end, step transitions, eligibility verdicts
//   - debug: Rule evaluation, cache operations, redacted form values
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapCfg.Build()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger stored in the context, or the provided
// fallback if none is found.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// RequestLogger returns a logger enriched with RequestContext fields.
// If no logger is in the context, the fallback is used.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)

	rctx := model.RequestContextFrom(ctx)
	if rctx == nil {
		return logger
	}

	fields := []zap.Field{
		zap.String("actor_id", rctx.ActorID),
		zap.String("correlation_id", rctx.CorrelationID),
	}
	if rctx.Locale != "" {
		fields = append(fields, zap.String("locale", rctx.Locale))
	}

	// Include trace_id if present.
	if rctx.TraceID != "" {
		fields = append(fields, zap.String("trace_id", rctx.TraceID))
	}

	return logger.With(fields...)
}

// defaultSensitiveFields is the default set of form keys whose values are
// redacted in debug logging output.
var defaultSensitiveFields = map[string]bool{
	"password":         true,
	"password_confirm": true,
	"otp":              true,
	"token":            true,
	"national_id":      true,
	"passport_number":  true,
	"iban":             true,
	"card_number":      true,
	"pin":              true,
}

// RedactedValue replaces sensitive values.
const RedactedValue = "[REDACTED]"

// RedactValues returns the entries of data as a map with sensitive values
// replaced by RedactedValue. sensitiveFields extends the default set, for
// example with the IDs of password and OTP fields of the current step. This
// is intended for debug-level logging only.
func RedactValues(data model.FormData, sensitiveFields []string) map[string]string {
	redactSet := make(map[string]bool, len(defaultSensitiveFields)+len(sensitiveFields))
	for k, v := range defaultSensitiveFields {
		redactSet[k] = v
	}
	for _, f := range sensitiveFields {
		redactSet[f] = true
	}

	result := make(map[string]string, data.Len())
	for _, e := range data.Entries() {
		if redactSet[e.Key] {
			result[e.Key] = RedactedValue
		} else {
			result[e.Key] = e.Value
		}
	}
	return result
}

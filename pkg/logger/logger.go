package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger so callers don't import zap directly.
type Logger struct {
	*zap.Logger
}

// New creates a Logger with the given level ("debug", "info", ...) and
// encoding ("json" or "console").
func New(level, encoding string) (*Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if encoding == "" {
		encoding = "json"
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(zap.AddCallerSkip(0))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{l}, nil
}

// ErrorField builds a zap error field.
func ErrorField(err error) zap.Field {
	return zap.Error(err)
}

// StringField builds a zap string field.
func StringField(key, value string) zap.Field {
	return zap.String(key, value)
}

// IntField builds a zap int field.
func IntField(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// Int64Field builds a zap int64 field.
func Int64Field(key string, value int64) zap.Field {
	return zap.Int64(key, value)
}

// Float64Field builds a zap float64 field.
func Float64Field(key string, value float64) zap.Field {
	return zap.Float64(key, value)
}

// DurationField builds a zap duration field.
func DurationField(key string, value time.Duration) zap.Field {
	return zap.Duration(key, value)
}

// Field builds a zap field for an arbitrary value.
func Field(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}

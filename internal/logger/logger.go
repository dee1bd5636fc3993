package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lutefd/draftpoints-api/internal/config"
)

const serviceName = "draftpoints-api"

// New builds the process logger. Development builds default to the console
// encoder with colored levels; everything else logs JSON with ISO8601 times.
// Every entry carries the service name.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
	}

	encoding := strings.ToLower(cfg.Encoding)
	if encoding == "" {
		encoding = "json"
		if cfg.Development {
			encoding = "console"
		}
	}

	var enc zapcore.EncoderConfig
	switch encoding {
	case "json":
		enc = zap.NewProductionEncoderConfig()
	case "console":
		enc = zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("log encoding %q: want json or console", cfg.Encoding)
	}
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encoding,
		DisableCaller:     cfg.DisableCaller,
		DisableStacktrace: cfg.DisableStacktrace,
		EncoderConfig:     enc,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	if cfg.Sampling && !cfg.Development {
		zc.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}

	log, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("service", serviceName)), nil
}

// Package logging builds the process logger. Libraries in this module log
// through *slog.Logger; the binary backs it with zap.
package logging

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

var (
	validLevels    = []string{"debug", "info", "warn", "error"}
	validEncodings = []string{"json", "console"}
)

type Config struct {
	// Level is one of debug, info, warn, error.
	// default: "info"
	Level string `env:"LEVEL"`
	// Encoding is json or console.
	// default: "json"
	Encoding string `env:"ENCODING"`
	// default: []string{"stderr"}
	OutputPaths []string `env:"OUTPUT_PATHS" envSeparator:","`
}

func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Encoding:    "json",
		OutputPaths: []string{"stderr"},
	}
}

func (c Config) Validate() error {
	if !slices.Contains(validLevels, c.Level) {
		return ErrInvalidLevel(c.Level, fmt.Errorf("must be one of: %s", strings.Join(validLevels, ", ")))
	}
	if !slices.Contains(validEncodings, c.Encoding) {
		return ErrInvalidEncoding(c.Encoding)
	}
	return nil
}

func ErrBuildLogger(err error) error {
	return fmt.Errorf("logging: failed to build logger: %w", err)
}

func ErrInvalidLevel(level string, err error) error {
	return fmt.Errorf("logging: invalid level %q: %w", level, err)
}

func ErrInvalidEncoding(encoding string) error {
	return fmt.Errorf("logging: invalid encoding %q, must be 'json' or 'console'", encoding)
}

// New builds a zap logger from cfg. Empty fields take their defaults.
func New(cfg Config) (*zap.Logger, error) {
	defaults := DefaultConfig()
	if cfg.Level == "" {
		cfg.Level = defaults.Level
	}
	if cfg.Encoding == "" {
		cfg.Encoding = defaults.Encoding
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = defaults.OutputPaths
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, ErrInvalidLevel(cfg.Level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.SecondsDurationEncoder
	if cfg.Encoding == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Encoding == "console",
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.DPanicLevel))
	if err != nil {
		return nil, ErrBuildLogger(err)
	}
	return logger, nil
}

// Slog exposes logger as a *slog.Logger.
func Slog(logger *zap.Logger) *slog.Logger {
	return slog.New(zapslog.NewHandler(logger.Core()))
}

// Package logging builds the zap logger. The terminal belongs to the UI, so
// logs normally go to a file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Stderr as a path sends logs to standard error.
const Stderr = "-"

// Options select where and how much to log.
type Options struct {
	Path      string
	Level     string
	Verbose   bool
	SessionID string
}

// New builds a production logger writing to opts.Path. Verbose forces the
// debug level.
func New(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Sampling = nil
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	sink := strings.TrimSpace(opts.Path)
	switch sink {
	case "", Stderr:
		sink = "stderr"
	default:
		if err := os.MkdirAll(filepath.Dir(sink), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	config.OutputPaths = []string{sink}
	config.ErrorOutputPaths = []string{sink}

	if opts.SessionID != "" {
		config.InitialFields = map[string]interface{}{"session": opts.SessionID}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func parseLevel(value string) (zapcore.Level, error) {
	if strings.TrimSpace(value) == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(value)))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", value, err)
	}
	return level, nil
}

// Package logging provides the debug logger. cargo owns the terminal, so
// debug output only ever goes to a file the user asks for.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger appending JSON lines to logPath. An empty path
// returns a no-op logger. Parent directories are created as needed.
//
// Every logger carries an invocation id so that the interleaved lines of
// the many vargo processes cargo runs in parallel can be told apart.
func New(logPath, mode string) (*zap.Logger, error) {
	if logPath == "" {
		return zap.NewNop(), nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	config.OutputPaths = []string{logPath}
	config.ErrorOutputPaths = []string{logPath}
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Sampling = nil

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return logger.With(
		zap.String("invocation", uuid.NewString()),
		zap.String("mode", mode),
		zap.Int("pid", os.Getpid()),
	), nil
}

// NewOrNop is New that falls back to a no-op logger on error.
func NewOrNop(logPath, mode string) *zap.Logger {
	logger, err := New(logPath, mode)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

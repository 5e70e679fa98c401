// Package logging builds the service's zap loggers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	Level    string // debug, info, warn, error
	Encoding string // console or json
}

// New builds the root logger. Component loggers are derived from it with
// Named().
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	encoding := opts.Encoding
	if encoding == "" {
		encoding = "console"
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = encoding
	if encoding == "console" {
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// SetLevel changes the level of a logger built by New through its atomic
// level. Used by the config watcher for live log-level changes.
type LevelSetter struct {
	atom zap.AtomicLevel
}

// NewWithLevelSetter builds the root logger and returns a handle that can
// adjust its level at runtime.
func NewWithLevelSetter(opts Options) (*zap.Logger, *LevelSetter, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	encoding := opts.Encoding
	if encoding == "" {
		encoding = "console"
	}

	atom := zap.NewAtomicLevelAt(level)
	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	cfg.Encoding = encoding
	if encoding == "console" {
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, &LevelSetter{atom: atom}, nil
}

// Set applies a new level; invalid strings are ignored.
func (ls *LevelSetter) Set(level string) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return
	}
	ls.atom.SetLevel(parsed)
}

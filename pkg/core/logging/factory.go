// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     logging
// Description: Factory functions for creating loggers from configuration
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package logging

import (
	"io"
	"os"
	"path/filepath"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/pkg/core/config"
)

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	// Service name
	ServiceName string

	// Log level (trace, debug, info, warn, error)
	Level string

	// Output format: json, text, console or logfmt (default: text)
	Format string

	// File appends log output to this path instead of stderr
	File string

	// Additional outputs
	AdditionalOutputs []io.Writer
}

// DefaultLoggerConfig returns a default configuration
func DefaultLoggerConfig(serviceName string) LoggerConfig {
	return LoggerConfig{
		ServiceName: serviceName,
		Level:       "warn",
		Format:      "text",
	}
}

// FromConfig derives the logger configuration from the general section
func FromConfig(cfg *config.Config) LoggerConfig {
	return LoggerConfig{
		ServiceName: cfg.General.Name,
		Level:       cfg.General.LogLevel,
		Format:      cfg.General.LogFormat,
		File:        cfg.General.LogFile,
	}
}

// NewLogger creates a logger. The returned closer releases the log file and
// is never nil.
func NewLogger(cfg LoggerConfig) (*mdwlog.Logger, io.Closer, error) {
	var err error
	level := mdwlog.DefaultLevel()
	if cfg.Level != "" {
		if level, err = mdwlog.ParseLevel(cfg.Level); err != nil {
			return nil, nil, mdwerror.Wrap(err, "invalid log level").WithCode(mdwerror.CodeConfigError)
		}
	}

	format := mdwlog.FormatText
	if cfg.Format != "" {
		if format, err = mdwlog.ParseFormat(cfg.Format); err != nil {
			return nil, nil, mdwerror.Wrap(err, "invalid log format").WithCode(mdwerror.CodeConfigError)
		}
	}

	var (
		output io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, mdwerror.Wrap(err, "failed to create log directory").WithCode(mdwerror.CodeIOError)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, mdwerror.Wrap(err, "failed to open log file").WithCode(mdwerror.CodeIOError)
		}
		output, closer = f, f
	}

	if len(cfg.AdditionalOutputs) > 0 {
		writers := append([]io.Writer{output}, cfg.AdditionalOutputs...)
		output = io.MultiWriter(writers...)
	}

	logger := mdwlog.NewWithConfig(mdwlog.Config{
		Level:  level,
		Format: format,
		Output: output,
		Name:   cfg.ServiceName,
	})
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

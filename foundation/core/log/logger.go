// File: logger.go
// Title: Core Logger Implementation
// Description: Structured logger with immutable child loggers. Clones share
//              one output and one write lock, so entries from concurrent
//              workers never interleave.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with structured logging
// - 2026-10-19 v0.2.0: Session ids, shared write lock, async mode and
//   process-wide default removed

package log

import (
	"errors"
	"io"
	"os"
	"sync"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
)

// Logger represents a structured logger with contextual information
type Logger struct {
	level     Level
	formatter Formatter
	output    io.Writer
	name      string

	contextFields Fields
	sessionID     string
	requestID     string
	userID        string

	writeMu *sync.Mutex
	mutex   sync.RWMutex
}

// Config represents logger configuration
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
	Name   string
}

// NewWithConfig creates a new logger with the specified configuration
func NewWithConfig(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		level:         config.Level,
		formatter:     GetFormatter(config.Format),
		output:        out,
		name:          config.Name,
		contextFields: make(Fields),
		writeMu:       &sync.Mutex{},
	}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return NewWithConfig(Config{Level: LevelFatal, Output: io.Discard})
}

// WithField returns a child logger carrying an extra field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	c := l.clone()
	c.contextFields[key] = value
	return c
}

// WithFields returns a child logger carrying extra fields
func (l *Logger) WithFields(fields Fields) *Logger {
	c := l.clone()
	for k, v := range fields {
		c.contextFields[k] = v
	}
	return c
}

// WithSessionID tags entries with the interactive session
func (l *Logger) WithSessionID(sessionID string) *Logger {
	c := l.clone()
	c.sessionID = sessionID
	return c
}

// WithRequestID tags entries with a single dispatched command
func (l *Logger) WithRequestID(requestID string) *Logger {
	c := l.clone()
	c.requestID = requestID
	return c
}

// WithUserID tags entries with the acting principal
func (l *Logger) WithUserID(userID string) *Logger {
	c := l.clone()
	c.userID = userID
	return c
}

// Trace logs at trace level
func (l *Logger) Trace(message string, fields ...Fields) {
	l.log(LevelTrace, message, nil, fields...)
}

// Debug logs at debug level
func (l *Logger) Debug(message string, fields ...Fields) {
	l.log(LevelDebug, message, nil, fields...)
}

// Info logs at info level
func (l *Logger) Info(message string, fields ...Fields) {
	l.log(LevelInfo, message, nil, fields...)
}

// Warn logs at warn level
func (l *Logger) Warn(message string, fields ...Fields) {
	l.log(LevelWarn, message, nil, fields...)
}

// Audit records a mutation; written at every level setting
func (l *Logger) Audit(message string, fields ...Fields) {
	l.log(LevelAudit, message, nil, fields...)
}

// ErrorWithErr logs an error with an error object
func (l *Logger) ErrorWithErr(message string, err error, fields ...Fields) {
	l.log(LevelError, message, err, fields...)
}

// LogError logs err at a level derived from its severity
func (l *Logger) LogError(message string, err error, fields ...Fields) {
	if err == nil {
		return
	}

	var coded *mdwerror.Error
	if !errors.As(err, &coded) {
		l.log(LevelError, message, err, fields...)
		return
	}

	extra := Fields{
		"error_code":     coded.Code(),
		"error_severity": coded.Severity().String(),
	}
	if op := coded.Operation(); op != "" {
		extra["error_operation"] = op
	}
	fields = append(fields, extra)

	switch coded.Severity() {
	case mdwerror.SeverityLow:
		l.log(LevelInfo, message, err, fields...)
	case mdwerror.SeverityMedium:
		l.log(LevelWarn, message, err, fields...)
	default:
		l.log(LevelError, message, err, fields...)
	}
}

// IsLevelEnabled reports whether entries at level are written
func (l *Logger) IsLevelEnabled(level Level) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return level.ShouldLog(l.level)
}

func (l *Logger) log(level Level, message string, err error, fields ...Fields) {
	l.mutex.RLock()
	if !level.ShouldLog(l.level) {
		l.mutex.RUnlock()
		return
	}

	entry := NewEntry(level, message)
	entry.Logger = l.name
	entry.SessionID = l.sessionID
	entry.RequestID = l.requestID
	entry.UserID = l.userID
	entry.Error = err
	for k, v := range l.contextFields {
		entry.Fields[k] = v
	}
	formatter, output := l.formatter, l.output
	l.mutex.RUnlock()

	for _, set := range fields {
		for k, v := range set {
			entry.Fields[k] = v
		}
	}

	formatted, ferr := formatter.Format(entry)
	if ferr != nil {
		return
	}
	l.writeMu.Lock()
	_, _ = output.Write(formatted)
	l.writeMu.Unlock()
}

func (l *Logger) clone() *Logger {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	c := &Logger{
		level:         l.level,
		formatter:     l.formatter,
		output:        l.output,
		name:          l.name,
		sessionID:     l.sessionID,
		requestID:     l.requestID,
		userID:        l.userID,
		contextFields: make(Fields, len(l.contextFields)),
		writeMu:       l.writeMu,
	}
	for k, v := range l.contextFields {
		c.contextFields[k] = v
	}
	return c
}

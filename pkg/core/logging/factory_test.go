package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/pkg/core/config"
)

func TestNewLogger_WritesFileAndExtraOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "flatset.log")

	cfg := DefaultLoggerConfig("flatset-test")
	cfg.Level = "debug"
	cfg.File = path
	cfg.AdditionalOutputs = []io.Writer{&buf}

	logger, closer, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Debug("dispatch", mdwlog.Fields{"command": "show"})
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "dispatch") {
		t.Errorf("log file = %q, want dispatch entry", data)
	}
	if !strings.Contains(buf.String(), "{flatset-test}") {
		t.Errorf("extra output = %q, want logger name", buf.String())
	}
}

func TestNewLogger_InvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  LoggerConfig
	}{
		{"bad level", LoggerConfig{Level: "loud"}},
		{"bad format", LoggerConfig{Level: "info", Format: "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := NewLogger(tt.cfg); err == nil {
				t.Error("NewLogger() should fail")
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.General.LogLevel = "info"
	cfg.General.LogFormat = "json"

	lc := FromConfig(cfg)
	if lc.ServiceName != "flatset" || lc.Level != "info" || lc.Format != "json" {
		t.Errorf("FromConfig() = %+v", lc)
	}

	logger, closer, err := NewLogger(lc)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer closer.Close()
	if !logger.IsLevelEnabled(mdwlog.LevelInfo) || logger.IsLevelEnabled(mdwlog.LevelDebug) {
		t.Errorf("logger level is not info")
	}
}

func TestNewLogger_EmptyLevelUsesDefault(t *testing.T) {
	logger, closer, err := NewLogger(LoggerConfig{})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer closer.Close()
	if !logger.IsLevelEnabled(mdwlog.DefaultLevel()) || logger.IsLevelEnabled(mdwlog.LevelInfo) {
		t.Errorf("empty level should map to %v", mdwlog.DefaultLevel())
	}
}

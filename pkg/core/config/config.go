// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     config
// Description: Configuration loading: TOML or YAML file, FLATSET_* overrides
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
)

// EnvPrefix prefixes every environment override, e.g. FLATSET_STORE_BACKEND
const EnvPrefix = "FLATSET_"

// Config holds the complete application configuration
type Config struct {
	General    GeneralConfig    `toml:"general" yaml:"general" envPrefix:"GENERAL_"`
	Store      StoreConfig      `toml:"store" yaml:"store" envPrefix:"STORE_"`
	Dispatcher DispatcherConfig `toml:"dispatcher" yaml:"dispatcher" envPrefix:"DISPATCHER_"`
	Auth       AuthConfig       `toml:"auth" yaml:"auth" envPrefix:"AUTH_"`
	Metrics    MetricsConfig    `toml:"metrics" yaml:"metrics" envPrefix:"METRICS_"`
	Output     OutputConfig     `toml:"output" yaml:"output" envPrefix:"OUTPUT_"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name      string `toml:"name" yaml:"name" env:"NAME"`
	DataDir   string `toml:"data_dir" yaml:"data_dir" env:"DATA_DIR"`
	LogLevel  string `toml:"log_level" yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `toml:"log_format" yaml:"log_format" env:"LOG_FORMAT"`
	LogFile   string `toml:"log_file" yaml:"log_file" env:"LOG_FILE"`
}

// Store backends
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Backend  string `toml:"backend" yaml:"backend" env:"BACKEND"`
	Path     string `toml:"path" yaml:"path" env:"PATH"`
	DSN      string `toml:"dsn" yaml:"dsn" env:"DSN"`
	Autosave bool   `toml:"autosave" yaml:"autosave" env:"AUTOSAVE"`
}

// DispatcherConfig holds command engine settings
type DispatcherConfig struct {
	Workers        int    `toml:"workers" yaml:"workers" env:"WORKERS"`
	QueueSize      int    `toml:"queue_size" yaml:"queue_size" env:"QUEUE_SIZE"`
	OutputBuffer   int    `toml:"output_buffer" yaml:"output_buffer" env:"OUTPUT_BUFFER"`
	MaxScriptDepth int    `toml:"max_script_depth" yaml:"max_script_depth" env:"MAX_SCRIPT_DEPTH"`
	CommentPrefix  string `toml:"comment_prefix" yaml:"comment_prefix" env:"COMMENT_PREFIX"`
	Prompt         string `toml:"prompt" yaml:"prompt" env:"PROMPT"`
}

// AuthConfig holds access control settings
type AuthConfig struct {
	Enabled    bool `toml:"enabled" yaml:"enabled" env:"ENABLED"`
	BcryptCost int  `toml:"bcrypt_cost" yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

// MetricsConfig holds the metrics endpoint settings. An empty address
// disables the endpoint.
type MetricsConfig struct {
	Address         string   `toml:"address" yaml:"address" env:"ADDRESS"`
	ShutdownTimeout Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// OutputConfig controls terminal rendering
type OutputConfig struct {
	// Color is one of auto, always, never
	Color string `toml:"color" yaml:"color" env:"COLOR"`
}

// Duration wraps time.Duration for TOML, YAML and env parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a configuration with only defaults applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a TOML or YAML file, applies environment
// overrides and fills defaults.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, mdwerror.Newf("config file not found: %s", path).WithCode(mdwerror.CodeConfigError)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, mdwerror.Wrap(err, "failed to read config").WithCode(mdwerror.CodeConfigError)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, mdwerror.Wrap(err, "failed to parse config").WithCode(mdwerror.CodeConfigError)
		}
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, mdwerror.Wrap(err, "failed to parse config").WithCode(mdwerror.CodeConfigError)
		}
	}

	return finish(&cfg)
}

// LoadDefault resolves the configuration file: explicit path, then
// FLATSET_CONFIG, then the default locations. Without any file the defaults
// plus environment overrides are used. The returned path is empty in that case.
func LoadDefault(explicit string) (*Config, string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path == "" {
		for _, p := range DefaultPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		cfg, err := finish(&Config{})
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// DefaultPaths lists the locations searched when no path is given
func DefaultPaths() []string {
	paths := []string{
		"./configs/config.toml",
		"./config.toml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "flatset", "config.toml"))
	}
	return paths
}

func finish(cfg *Config) (*Config, error) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, mdwerror.Wrap(err, "invalid environment override").WithCode(mdwerror.CodeConfigError)
	}
	cfg.applyDefaults()
	cfg.expandEnvVars()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// General
	if c.General.Name == "" {
		c.General.Name = "flatset"
	}
	if c.General.DataDir == "" {
		c.General.DataDir = "./data"
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "warn"
	}
	if c.General.LogFormat == "" {
		c.General.LogFormat = "text"
	}

	// Store
	if c.Store.Backend == "" {
		c.Store.Backend = BackendFile
	}
	if c.Store.Path == "" {
		switch c.Store.Backend {
		case BackendSQLite:
			c.Store.Path = filepath.Join(c.General.DataDir, "flatset.db")
		default:
			c.Store.Path = filepath.Join(c.General.DataDir, "flats.json")
		}
	}

	// Dispatcher
	if c.Dispatcher.Workers == 0 {
		c.Dispatcher.Workers = 4
	}
	if c.Dispatcher.QueueSize == 0 {
		c.Dispatcher.QueueSize = 64
	}
	if c.Dispatcher.OutputBuffer == 0 {
		c.Dispatcher.OutputBuffer = 256
	}
	if c.Dispatcher.MaxScriptDepth == 0 {
		c.Dispatcher.MaxScriptDepth = 10
	}
	if c.Dispatcher.CommentPrefix == "" {
		c.Dispatcher.CommentPrefix = "#"
	}
	if c.Dispatcher.Prompt == "" {
		c.Dispatcher.Prompt = "> "
	}

	// Auth
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}

	// Metrics
	if c.Metrics.ShutdownTimeout.Duration == 0 {
		c.Metrics.ShutdownTimeout.Duration = 5 * time.Second
	}

	// Output
	if c.Output.Color == "" {
		c.Output.Color = "auto"
	}
}

// expandEnvVars expands environment variables in path-like values
func (c *Config) expandEnvVars() {
	c.General.DataDir = os.ExpandEnv(c.General.DataDir)
	c.General.LogFile = os.ExpandEnv(c.General.LogFile)
	c.Store.Path = os.ExpandEnv(c.Store.Path)
	c.Store.DSN = os.ExpandEnv(c.Store.DSN)
}

// Validate checks value ranges and cross-field requirements
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...interface{}) error {
		return mdwerror.Newf(format, args...).
			WithCode(mdwerror.CodeConfigError).
			WithDetail("field", field)
	}

	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.Store.DSN == "" {
			return invalid("store.dsn", "store.dsn is required for the postgres backend")
		}
	default:
		return invalid("store.backend", "unknown store backend %q", c.Store.Backend)
	}
	if c.Dispatcher.Workers < 1 {
		return invalid("dispatcher.workers", "dispatcher.workers must be at least 1, got %d", c.Dispatcher.Workers)
	}
	if c.Dispatcher.QueueSize < 1 {
		return invalid("dispatcher.queue_size", "dispatcher.queue_size must be at least 1, got %d", c.Dispatcher.QueueSize)
	}
	if c.Dispatcher.OutputBuffer < 1 {
		return invalid("dispatcher.output_buffer", "dispatcher.output_buffer must be at least 1, got %d", c.Dispatcher.OutputBuffer)
	}
	if c.Dispatcher.MaxScriptDepth < 1 {
		return invalid("dispatcher.max_script_depth", "dispatcher.max_script_depth must be at least 1, got %d", c.Dispatcher.MaxScriptDepth)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return invalid("auth.bcrypt_cost", "auth.bcrypt_cost must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}
	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		return invalid("output.color", "output.color must be auto, always or never, got %q", c.Output.Color)
	}
	return nil
}

// StoreTarget describes where data is persisted, for info output and logs
func (c *Config) StoreTarget() string {
	if c.Store.Backend == BackendPostgres {
		return fmt.Sprintf("%s (dsn configured)", c.Store.Backend)
	}
	return fmt.Sprintf("%s:%s", c.Store.Backend, c.Store.Path)
}

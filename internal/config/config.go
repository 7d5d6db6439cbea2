// Package config loads gittask settings from $GITTASK_HOME/.tasks/config.yaml
// with environment overrides. A missing file means defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// FileName is the config file inside the global store directory.
	FileName = "config.yaml"

	defaultLockTimeout      = 5 * time.Second
	defaultLogLevel         = "warn"
	defaultAggregateWorkers = 4
	defaultToolFormat       = "toon"
)

// Duration is a time.Duration written as a Go duration string ("750ms").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, node.Value)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds the user-tunable settings.
type Config struct {
	// Home is the directory holding the global .tasks store. It comes from
	// GITTASK_HOME or the user's home directory, never from the file.
	Home string `yaml:"-"`

	LockTimeout      Duration `yaml:"lock_timeout"`
	LogLevel         string   `yaml:"log_level"`
	AggregateWorkers int      `yaml:"aggregate_workers"`
	ToolFormat       string   `yaml:"tool_format"` // toon or json
	LogFile          string   `yaml:"log_file"`    // gittask-mcp only; empty disables
}

// GlobalDir returns the global .tasks directory.
func (c Config) GlobalDir() string {
	return filepath.Join(c.Home, ".tasks")
}

// Path returns the config file location.
func (c Config) Path() string {
	return filepath.Join(c.GlobalDir(), FileName)
}

func defaultConfig() Config {
	return Config{
		LockTimeout:      Duration(defaultLockTimeout),
		LogLevel:         defaultLogLevel,
		AggregateWorkers: defaultAggregateWorkers,
		ToolFormat:       defaultToolFormat,
	}
}

// HomeDir returns GITTASK_HOME when set, else the user's home directory.
func HomeDir() string {
	if override := os.Getenv("GITTASK_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return home
}

// Load reads the config for HomeDir().
func Load() (Config, error) {
	return LoadFrom(HomeDir())
}

// LoadFrom reads the config stored under home, applies environment
// overrides and fills in defaults for anything left unset.
func LoadFrom(home string) (Config, error) {
	cfg := defaultConfig()
	cfg.Home = home

	data, err := os.ReadFile(cfg.Path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", FileName, err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", FileName, err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", cfg.Path(), err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("GITTASK_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("GITTASK_LOCK_TIMEOUT"); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			cfg.LockTimeout = Duration(v)
		}
	}
	if raw := os.Getenv("GITTASK_AGGREGATE_WORKERS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.AggregateWorkers = v
		}
	}
}

func normalize(cfg *Config) {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = Duration(defaultLockTimeout)
	}
	if cfg.AggregateWorkers <= 0 {
		cfg.AggregateWorkers = defaultAggregateWorkers
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	cfg.ToolFormat = strings.ToLower(strings.TrimSpace(cfg.ToolFormat))
	if cfg.ToolFormat == "" {
		cfg.ToolFormat = defaultToolFormat
	}
	if cfg.LogFile != "" && !filepath.IsAbs(cfg.LogFile) {
		cfg.LogFile = filepath.Join(cfg.GlobalDir(), cfg.LogFile)
	}
}

func validate(cfg Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q (want debug, info, warn or error)", cfg.LogLevel)
	}
	switch cfg.ToolFormat {
	case "toon", "json":
	default:
		return fmt.Errorf("invalid tool_format %q (want toon or json)", cfg.ToolFormat)
	}
	return nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all configurable typetrace settings. Every key can also be
// set through a TYPETRACE_* environment variable.
type Config struct {
	PollIntervalMS    int    `json:"poll_interval_ms"    env:"TYPETRACE_POLL_INTERVAL_MS"`
	MaxChanges        int    `json:"max_changes"         env:"TYPETRACE_MAX_CHANGES"`
	RefreshIntervalMS int    `json:"refresh_interval_ms" env:"TYPETRACE_REFRESH_INTERVAL_MS"`
	DefaultFormat     string `json:"default_format"      env:"TYPETRACE_DEFAULT_FORMAT"` // "json" | "markdown"
	OutputDir         string `json:"output_dir"          env:"TYPETRACE_OUTPUT_DIR"`
	ListenAddr        string `json:"listen_addr"         env:"TYPETRACE_LISTEN_ADDR"`
	LogLevel          string `json:"log_level"           env:"TYPETRACE_LOG_LEVEL"`
	LogFile           string `json:"log_file"            env:"TYPETRACE_LOG_FILE"`
	LogJSON           bool   `json:"log_json"            env:"TYPETRACE_LOG_JSON"`
	// DegradeToEmpty reads a document whose every source fails as empty
	// text instead of skipping the cycle.
	DegradeToEmpty bool `json:"degrade_to_empty" env:"TYPETRACE_DEGRADE_TO_EMPTY"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		PollIntervalMS:    1000,
		MaxChanges:        50,
		RefreshIntervalMS: 2000,
		DefaultFormat:     "json",
		OutputDir:         ".",
		ListenAddr:        "127.0.0.1:7331",
		LogLevel:          "info",
	}
}

// PollInterval is the minimum spacing between document captures.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// RefreshInterval is how often displays re-read statistics.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.PollIntervalMS <= 0:
		return fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMS)
	case c.MaxChanges <= 0:
		return fmt.Errorf("max_changes must be positive, got %d", c.MaxChanges)
	case c.RefreshIntervalMS <= 0:
		return fmt.Errorf("refresh_interval_ms must be positive, got %d", c.RefreshIntervalMS)
	case c.DefaultFormat != "json" && c.DefaultFormat != "markdown":
		return fmt.Errorf("default_format must be json or markdown, got %q", c.DefaultFormat)
	}
	return nil
}

// LoadGlobal reads ~/.config/typetrace/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "typetrace", "config.json")
	return loadFile(path, true)
}

// LoadProject reads .typetraceconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".typetraceconfig", false)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	overlay(&result, global)
	overlay(&result, project)
	return result
}

// overlay copies every key set in src over dst.
func overlay(dst, src *Config) {
	if src == nil {
		return
	}
	if src.PollIntervalMS > 0 {
		dst.PollIntervalMS = src.PollIntervalMS
	}
	if src.MaxChanges > 0 {
		dst.MaxChanges = src.MaxChanges
	}
	if src.RefreshIntervalMS > 0 {
		dst.RefreshIntervalMS = src.RefreshIntervalMS
	}
	if src.DefaultFormat != "" {
		dst.DefaultFormat = src.DefaultFormat
	}
	if src.OutputDir != "" {
		dst.OutputDir = src.OutputDir
	}
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFile != "" {
		dst.LogFile = src.LogFile
	}
	if src.LogJSON {
		dst.LogJSON = true
	}
	if src.DegradeToEmpty {
		dst.DegradeToEmpty = true
	}
}

// ApplyEnv loads dotenv files (".env" when none are given) into the process
// environment, then overrides cfg with any TYPETRACE_* variables. Missing
// dotenv files are ignored; variables already set win over dotenv values.
func ApplyEnv(cfg *Config, dotenvFiles ...string) error {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading dotenv: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

// Load resolves the effective configuration:
// defaults < global file < project file < environment.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, fmt.Errorf("loading global config: %w", err)
	}
	project, err := LoadProject()
	if err != nil {
		return Config{}, fmt.Errorf("loading project config: %w", err)
	}
	cfg := Merge(global, project)
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

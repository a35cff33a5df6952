// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete forgeshell configuration.
type Config struct {
	// Scheduler settings
	Scheduler SchedulerConfig `toml:"scheduler"`

	// Provider (Ollama) settings
	Provider ProviderConfig `toml:"provider"`

	// Tool execution settings
	Tools ToolsConfig `toml:"tools"`

	// Run-history settings
	History HistoryConfig `toml:"history"`

	// Logging settings
	Log LogConfig `toml:"log"`
}

// SchedulerConfig controls background task execution.
type SchedulerConfig struct {
	// MaxConcurrent is how many background tasks may run at once
	MaxConcurrent int `toml:"max_concurrent"`
}

// ProviderConfig contains local model server settings.
type ProviderConfig struct {
	// BaseURL is the URL of the Ollama server
	BaseURL string `toml:"base_url"`
	// Model is the default model name
	Model string `toml:"model"`
	// ConnectTimeoutSecs bounds the initial health probe
	ConnectTimeoutSecs int `toml:"connect_timeout_secs"`
	// MaxRetries is how many times to retry the initial connection
	MaxRetries int `toml:"max_retries"`
	// RequestsPerSecond rate-limits generation calls (0 = unlimited)
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// ToolsConfig controls tool execution.
type ToolsConfig struct {
	// ApprovalRequired gates side-effecting tools behind confirmation
	ApprovalRequired bool `toml:"approval_required"`
}

// HistoryConfig controls run-history persistence.
type HistoryConfig struct {
	// Enabled turns run-history recording on or off
	Enabled bool `toml:"enabled"`
	// Path is the SQLite database path (empty = ~/.forgeshell/history.db)
	Path string `toml:"path"`
	// MaxEntries is how many finished runs to keep (0 = unlimited)
	MaxEntries int `toml:"max_entries"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `toml:"level"`
	// Path is the log file path (empty = ~/.forgeshell/forgeshell.log)
	Path string `toml:"path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxConcurrent: 3,
		},
		Provider: ProviderConfig{
			BaseURL:            "http://127.0.0.1:11434",
			Model:              "qwen2.5-coder:14b",
			ConnectTimeoutSecs: 5,
			MaxRetries:         3,
			RequestsPerSecond:  0,
		},
		Tools: ToolsConfig{
			ApprovalRequired: true,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 1000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the forgeshell configuration directory (~/.forgeshell).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".forgeshell"), nil
}

// ConfigPath returns the full path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates the configuration directory if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// =============================================================================
// LOADING
// =============================================================================

// Load loads configuration with the standard precedence: built-in
// defaults, then the TOML file if present, then environment overrides.
// A missing config file is not an error.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from an explicit file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the standard TOML path.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - FORGESHELL_MODEL: overrides provider.model
//   - FORGESHELL_OLLAMA_URL: overrides provider.base_url
//   - FORGESHELL_MAX_CONCURRENT: overrides scheduler.max_concurrent
//   - FORGESHELL_LOG_LEVEL: overrides log.level
//   - FORGESHELL_NO_HISTORY: set to "1" or "true" to disable run history
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("FORGESHELL_MODEL"); model != "" {
		c.Provider.Model = model
	}
	if url := os.Getenv("FORGESHELL_OLLAMA_URL"); url != "" {
		c.Provider.BaseURL = url
	}
	if raw := os.Getenv("FORGESHELL_MAX_CONCURRENT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.Scheduler.MaxConcurrent = n
		}
	}
	if level := os.Getenv("FORGESHELL_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if raw := os.Getenv("FORGESHELL_NO_HISTORY"); raw == "1" || strings.EqualFold(raw, "true") {
		c.History.Enabled = false
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects all validation failures.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Scheduler.MaxConcurrent < 1 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.max_concurrent",
			Message: "must be at least 1",
		})
	}

	if c.Provider.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "provider.base_url",
			Message: "must not be empty",
		})
	}
	if c.Provider.ConnectTimeoutSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "provider.connect_timeout_secs",
			Message: "must be at least 1",
		})
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "provider.max_retries",
			Message: "cannot be negative",
		})
	}
	if c.Provider.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "provider.requests_per_second",
			Message: "cannot be negative",
		})
	}

	if c.History.MaxEntries < 0 {
		errs = append(errs, ValidationError{
			Field:   "history.max_entries",
			Message: "cannot be negative",
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// HistoryPath returns the effective history database path.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

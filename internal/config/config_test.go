// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if cfg.Scheduler.MaxConcurrent != 3 {
		t.Errorf("default max_concurrent = %d, want 3", cfg.Scheduler.MaxConcurrent)
	}
	if cfg.Provider.BaseURL != "http://127.0.0.1:11434" {
		t.Errorf("default base_url = %q", cfg.Provider.BaseURL)
	}
}

func TestLoadFromPathMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Provider.Model != Default().Provider.Model {
		t.Errorf("model = %q, want default", cfg.Provider.Model)
	}
}

func TestLoadFromPathReadsTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `[scheduler]
max_concurrent = 5

[provider]
model = "llama3.2:3b"

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Scheduler.MaxConcurrent != 5 {
		t.Errorf("max_concurrent = %d, want 5", cfg.Scheduler.MaxConcurrent)
	}
	if cfg.Provider.Model != "llama3.2:3b" {
		t.Errorf("model = %q", cfg.Provider.Model)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Provider.BaseURL != "http://127.0.0.1:11434" {
		t.Errorf("base_url = %q, want default", cfg.Provider.BaseURL)
	}
}

func TestLoadFromPathRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `[scheduler]
max_concurrent = 0
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Error("max_concurrent = 0 should fail validation")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("FORGESHELL_MODEL", "codellama:7b")
	t.Setenv("FORGESHELL_MAX_CONCURRENT", "7")
	t.Setenv("FORGESHELL_NO_HISTORY", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Provider.Model != "codellama:7b" {
		t.Errorf("model = %q", cfg.Provider.Model)
	}
	if cfg.Scheduler.MaxConcurrent != 7 {
		t.Errorf("max_concurrent = %d", cfg.Scheduler.MaxConcurrent)
	}
	if cfg.History.Enabled {
		t.Error("FORGESHELL_NO_HISTORY should disable history")
	}
}

func TestEnvOverrideIgnoresBadNumber(t *testing.T) {
	t.Setenv("FORGESHELL_MAX_CONCURRENT", "banana")
	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.Scheduler.MaxConcurrent != 3 {
		t.Errorf("bad env value should keep default, got %d", cfg.Scheduler.MaxConcurrent)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.MaxConcurrent = 0
	cfg.Provider.BaseURL = ""
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	errs, ok := err.(ValidateErrors)
	if !ok {
		t.Fatalf("error type = %T, want ValidateErrors", err)
	}
	if len(errs) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(errs), errs)
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for forgeshell.
//
// Configuration lives in TOML at ~/.forgeshell/config.toml, with built-in
// defaults and FORGESHELL_* environment variable overrides layered on top.
//
// # Key Types
//
//   - Config: the complete configuration tree
//   - Watcher: reloads the config file on change
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sched := agent.NewScheduler(cfg.Scheduler.MaxConcurrent, logger)
package config

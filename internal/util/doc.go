// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the forgeshell application.
//
// This package contains small helpers shared across components: rune-aware
// string truncation, short identifier generation, and duration formatting.
package util

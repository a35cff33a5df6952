// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools provides the named-tool registry consumed by the plan
// engine's step runner.
//
// # Key Types
//
//   - Tool: a named operation with an approval flag and a handler
//   - Registry: name -> tool lookup with the builtin set pre-registered
//
// Tools marked RequiresApproval are gated by the UI layer before
// invocation; the registry itself performs no permission checks.
package tools

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plan provides AI-generated, approval-gated execution plans.
//
// A plan is an ordered sequence of typed steps produced from a single
// model response. Steps are individually approved (or skipped) by the
// user, then executed strictly one at a time: callers fetch the next
// approved step, run it, record the outcome, and repeat. The engine never
// auto-chains execution across steps.
//
// # Key Types
//
//   - Plan / PlanStep: the entities, with per-step approval state
//   - Engine: plan registry, generation, and state transitions
//   - Runner: executes a single selected step (tool, checkpoint, prompt)
//   - Session: caller-owned active-plan tracking
//
// # Step grammar
//
// Generation prompts the model for a constrained line format:
//
//	STEP 1: Inspect the failing test
//	TYPE: tool
//	TOOL: run_command
//	ARGS: {"command": "go test ./..."}
//
// The parser is total: any response, however malformed, yields at least
// one step (a fallback referencing the original goal).
package plan

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the interactive forgeshell REPL.
//
// The REPL drives the background task scheduler and the plan engine:
//
//	task spawn <goal>     Spawn a background task
//	task list             List tasks
//	task logs <id>        Show a task's activity log
//	task cancel <id>      Cancel a task
//	task clear            Remove finished tasks
//	plan <goal>           Generate a plan
//	plan status           Show the active plan
//	plan approve [n|all]  Approve steps
//	plan skip <n>         Skip a step
//	plan run              Execute the next approved step
//	plan cancel           Cancel the active plan
//	history               Show recent runs
//	quit                  Exit
package cli

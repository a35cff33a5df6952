// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the background task scheduler for AI-driven work.
//
// This package implements goal-driven background tasks executed against a
// streaming text-generation provider under bounded concurrency. Overflow
// tasks wait on an explicit FIFO queue and are promoted as running slots
// free up.
//
// # Key Types
//
//   - Task: a goal-driven unit of work with status, progress, and logs
//   - Scheduler: owns the task registry, the concurrency slots, and the
//     FIFO overflow queue
//   - Event: typed completion notification delivered on a buffered channel
//
// # Usage
//
// Spawn a task and watch it:
//
//	sched := agent.NewScheduler(3, logger)
//	task := sched.Spawn("summarize the build failures", client, registry)
//	for _, line := range sched.GetLogs(task.ID) {
//	    fmt.Println(line)
//	}
//
// # Cancellation
//
// Cancellation is cooperative: a running task observes it at the next
// chunk boundary of its generation stream. Cancel blocks until the task's
// goroutine has actually stopped, so a true return means the task no
// longer consumes a slot.
package agent

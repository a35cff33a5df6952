// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the background task scheduler for AI-driven work.
package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/jeranaias/forgeshell/internal/util"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// Status represents the current state of a background task.
type Status string

const (
	// StatusQueued indicates the task is waiting for a running slot
	StatusQueued Status = "Queued"

	// StatusRunning indicates the task is currently executing
	StatusRunning Status = "Running"

	// StatusCompleted indicates the task finished successfully
	StatusCompleted Status = "Completed"

	// StatusFailed indicates the task encountered an error
	StatusFailed Status = "Failed"

	// StatusCancelled indicates the task was cancelled by the user
	StatusCancelled Status = "Cancelled"
)

// String returns the string representation of the task status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true for Completed, Failed, and Cancelled.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// progressPerChunk is how much Progress advances per received stream chunk.
// This is a display heuristic, not a real completion percentage: progress
// holds at 0.9 until the stream actually ends.
const progressPerChunk = 0.05

// progressCeiling is where chunk-driven progress stops advancing.
const progressCeiling = 0.9

// =============================================================================
// TASK
// =============================================================================

// Task represents an AI-goal-driven background unit of work.
//
// Tasks are created and mutated only by the Scheduler; external callers
// read them through clones returned by the Scheduler's query methods.
type Task struct {
	// ID is a short unique identifier for this task
	ID string

	// Goal is what the task is trying to accomplish
	Goal string

	// Status is the current lifecycle state
	Status Status

	// Progress is in [0, 1]. Chunk-driven and capped at 0.9 while the
	// stream is open; see progressPerChunk.
	Progress float64

	// StartedAt is when execution began (zero if never started)
	StartedAt time.Time

	// CompletedAt is when the task reached a terminal state
	CompletedAt time.Time

	// Result is the accumulated generation output on success
	Result string

	// Error is the failure message when Status is Failed
	Error string

	// Logs is the append-only, timestamped activity log
	Logs []string

	// CurrentStep is a free-text label describing current activity
	CurrentStep string

	// mu protects concurrent access to the task
	mu sync.RWMutex
}

// NewTask creates a queued task for the given goal.
func NewTask(goal string) *Task {
	return &Task{
		ID:     util.ShortID(),
		Goal:   goal,
		Status: StatusQueued,
	}
}

// =============================================================================
// TASK METHODS
// =============================================================================

// Log appends a timestamped entry to the task's activity log.
func (t *Task) Log(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Logs = append(t.Logs, fmt.Sprintf("[%s] %s", util.Timestamp(), message))
}

// GetStatus returns the current task status (thread-safe).
func (t *Task) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// GetProgress returns the current progress (thread-safe).
func (t *Task) GetProgress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Progress
}

// SetCurrentStep updates the display label for current activity.
func (t *Task) SetCurrentStep(step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CurrentStep = step
}

// SetProgress sets progress, clamped to [0, 1].
func (t *Task) SetProgress(p float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	t.Progress = p
}

// AdvanceProgress bumps progress by one chunk increment, holding at the
// ceiling until the stream completes.
func (t *Task) AdvanceProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Progress += progressPerChunk
	if t.Progress > progressCeiling {
		t.Progress = progressCeiling
	}
}

// markStarted transitions the task to Running.
func (t *Task) markStarted() {
	t.mu.Lock()
	t.Status = StatusRunning
	t.StartedAt = time.Now()
	t.mu.Unlock()
	t.Log("Task started")
}

// markCompleted records the result and transitions to Completed.
func (t *Task) markCompleted(result string) {
	t.mu.Lock()
	t.Result = result
	t.Status = StatusCompleted
	t.Progress = 1.0
	t.CompletedAt = time.Now()
	t.mu.Unlock()
	t.Log("Task completed successfully")
}

// markFailed records the error and transitions to Failed.
func (t *Task) markFailed(err error) {
	t.mu.Lock()
	t.Error = err.Error()
	t.Status = StatusFailed
	t.CompletedAt = time.Now()
	t.mu.Unlock()
	t.Log(fmt.Sprintf("Task failed: %v", err))
}

// markCancelled transitions to Cancelled.
func (t *Task) markCancelled(message string) {
	t.mu.Lock()
	t.Status = StatusCancelled
	t.CompletedAt = time.Now()
	t.mu.Unlock()
	t.Log(message)
}

// Duration returns how long the task has been running or took to finish.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.StartedAt.IsZero() {
		return 0
	}
	if t.CompletedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

// Summary returns a one-line summary of the task.
func (t *Task) Summary() string {
	t.mu.RLock()
	goal := t.Goal
	status := t.Status
	t.mu.RUnlock()

	summary := fmt.Sprintf("[%s] %s - %s", t.ID, util.TruncateRunes(goal, 40), status)
	if d := t.Duration(); d > 0 {
		summary += fmt.Sprintf(" (%s)", util.FormatDuration(d))
	}
	return summary
}

// Clone creates a snapshot copy of the task for readers.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return &Task{
		ID:          t.ID,
		Goal:        t.Goal,
		Status:      t.Status,
		Progress:    t.Progress,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		Result:      t.Result,
		Error:       t.Error,
		Logs:        append([]string{}, t.Logs...),
		CurrentStep: t.CurrentStep,
	}
}

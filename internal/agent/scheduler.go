// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the background task scheduler for AI-driven work.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/forgeshell/internal/provider"
	"github.com/jeranaias/forgeshell/internal/tools"
)

// agentPrompt frames a task's goal for autonomous execution.
const agentPrompt = `You are an autonomous agent working on a background task.

Goal: %s

Work step by step to complete this goal. Be thorough but efficient.
Report what you're doing at each step.`

// =============================================================================
// EVENTS
// =============================================================================

// Event is a typed notification emitted when a task reaches a terminal
// state. Every terminal transition produces an event, so observer failures
// are visible on the channel even when no callback is registered.
type Event struct {
	TaskID   string
	Goal     string
	Status   Status
	Error    string
	Duration time.Duration
}

// CompletionFunc observes tasks that reach Completed. It runs on the
// finishing task's goroutine with a snapshot clone; a panic inside it is
// logged and never fails the task.
type CompletionFunc func(task *Task)

// =============================================================================
// SCHEDULER
// =============================================================================

// execution tracks one running task's cancellation handle.
type execution struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// pending is a queued task waiting for a running slot, together with the
// collaborators captured at Spawn time.
type pending struct {
	task     *Task
	provider provider.Provider
	tools    *tools.Registry
}

// Scheduler runs goal-driven tasks under bounded concurrency.
//
// The task registry and the FIFO overflow queue are guarded by one mutex;
// all query methods return clones so UI callers never observe partial
// mutation.
type Scheduler struct {
	mu sync.Mutex

	// maxConcurrent caps simultaneously Running tasks
	maxConcurrent int

	// tasks is the registry of every task ever spawned (until cleared)
	tasks map[string]*Task

	// queue is the FIFO of tasks waiting for a slot
	queue []pending

	// running tracks in-flight executions by task ID
	running map[string]*execution

	// callbacks observe successful completions
	callbacks []CompletionFunc

	// events delivers terminal-state notifications
	events chan Event

	log zerolog.Logger
}

// DefaultMaxConcurrent is used when NewScheduler is given a non-positive cap.
const DefaultMaxConcurrent = 3

// eventBuffer sizes the event channel; sends never block (overflow is
// dropped with a log line).
const eventBuffer = 100

// NewScheduler creates a scheduler with the given concurrency cap.
func NewScheduler(maxConcurrent int, log zerolog.Logger) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Scheduler{
		maxConcurrent: maxConcurrent,
		tasks:         make(map[string]*Task),
		running:       make(map[string]*execution),
		events:        make(chan Event, eventBuffer),
		log:           log,
	}
}

// MaxConcurrent returns the concurrency cap.
func (s *Scheduler) MaxConcurrent() int {
	return s.maxConcurrent
}

// =============================================================================
// SPAWNING
// =============================================================================

// Spawn creates a task for the goal and returns it immediately. If a
// running slot is free the task starts now; otherwise it joins the FIFO
// queue and starts when a slot opens. The registry parameter is carried for
// future tool-calling execution and not consulted by the current run loop.
func (s *Scheduler) Spawn(goal string, p provider.Provider, reg *tools.Registry) *Task {
	task := NewTask(goal)

	s.mu.Lock()
	s.tasks[task.ID] = task
	if len(s.running) < s.maxConcurrent {
		s.startLocked(task, p, reg)
	} else {
		task.Log("Task queued - waiting for available slot")
		s.queue = append(s.queue, pending{task: task, provider: p, tools: reg})
	}
	s.mu.Unlock()

	return task
}

// startLocked transitions a task to Running and launches its goroutine.
// Caller must hold s.mu.
func (s *Scheduler) startLocked(task *Task, p provider.Provider, reg *tools.Registry) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := &execution{cancel: cancel, done: make(chan struct{})}
	s.running[task.ID] = exec

	task.markStarted()
	s.log.Debug().Str("task", task.ID).Str("goal", task.Goal).Msg("task started")

	go s.run(ctx, task, p, reg, exec)
}

// run executes one task against the provider. It owns all mutation of the
// task from here to its terminal state.
func (s *Scheduler) run(ctx context.Context, task *Task, p provider.Provider, reg *tools.Registry, exec *execution) {
	defer func() {
		s.mu.Lock()
		delete(s.running, task.ID)
		s.promoteLocked()
		s.mu.Unlock()
		close(exec.done)
	}()

	task.SetCurrentStep("Analyzing goal...")
	task.SetProgress(0.1)
	task.Log("Analyzing goal")

	var response strings.Builder
	err := p.Generate(ctx, provider.Request{
		Prompt: fmt.Sprintf(agentPrompt, task.Goal),
	}, func(chunk string) {
		response.WriteString(chunk)
		task.AdvanceProgress()
	})

	switch {
	case err == nil:
		task.markCompleted(response.String())
		s.notifyCompleted(task)

	case errors.Is(err, context.Canceled):
		task.markCancelled("Task cancelled")
		s.emit(task)

	default:
		task.markFailed(err)
		s.log.Warn().Str("task", task.ID).Err(err).Msg("task failed")
		s.emit(task)
	}
}

// promoteLocked starts the first queued task still eligible to run, if a
// slot is free. Promotion is strictly FIFO. Caller must hold s.mu.
func (s *Scheduler) promoteLocked() {
	for len(s.queue) > 0 && len(s.running) < s.maxConcurrent {
		next := s.queue[0]
		s.queue = s.queue[1:]

		// Entries cancelled while queued are already terminal.
		if next.task.GetStatus() != StatusQueued {
			continue
		}

		s.startLocked(next.task, next.provider, next.tools)
		return
	}
}

// =============================================================================
// COMPLETION NOTIFICATION
// =============================================================================

// notifyCompleted invokes completion observers and emits the event.
// Observer panics are logged and discarded; they must never fail the task.
func (s *Scheduler) notifyCompleted(task *Task) {
	s.mu.Lock()
	callbacks := append([]CompletionFunc{}, s.callbacks...)
	s.mu.Unlock()

	for _, cb := range callbacks {
		s.invokeObserver(cb, task.Clone())
	}
	s.emit(task)
}

func (s *Scheduler) invokeObserver(cb CompletionFunc, task *Task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("task", task.ID).Interface("panic", r).
				Msg("completion observer panicked")
		}
	}()
	cb(task)
}

// emit delivers a terminal-state event without blocking.
func (s *Scheduler) emit(task *Task) {
	t := task.Clone()
	event := Event{
		TaskID:   t.ID,
		Goal:     t.Goal,
		Status:   t.Status,
		Error:    t.Error,
		Duration: t.CompletedAt.Sub(t.StartedAt),
	}
	if t.StartedAt.IsZero() {
		event.Duration = 0
	}

	select {
	case s.events <- event:
	default:
		s.log.Warn().Str("task", t.ID).Msg("event channel full, notification dropped")
	}
}

// OnComplete registers an observer invoked for every task that reaches
// Completed (not Failed or Cancelled).
func (s *Scheduler) OnComplete(cb CompletionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// Events returns the terminal-state notification channel.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// =============================================================================
// CANCELLATION
// =============================================================================

// Cancel stops a task. A queued task is cancelled immediately without its
// execution ever starting. For a running task, Cancel requests cooperative
// cancellation and blocks until the task's goroutine has terminated, so a
// true return guarantees the task no longer holds a slot. Returns false
// for unknown or already-terminal tasks.
func (s *Scheduler) Cancel(taskID string) bool {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return false
	}

	switch task.GetStatus() {
	case StatusQueued:
		s.removeFromQueueLocked(taskID)
		task.markCancelled("Task cancelled before starting")
		s.mu.Unlock()
		s.emit(task)
		return true

	case StatusRunning:
		exec := s.running[taskID]
		s.mu.Unlock()
		if exec == nil {
			// Finished between the status read and here.
			return false
		}
		exec.cancel()
		<-exec.done
		return true

	default:
		s.mu.Unlock()
		return false
	}
}

// removeFromQueueLocked drops a task from the FIFO. Caller must hold s.mu.
func (s *Scheduler) removeFromQueueLocked(taskID string) {
	for i, entry := range s.queue {
		if entry.task.ID == taskID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// DefaultListLimit bounds ListTasks when no limit is given.
const DefaultListLimit = 20

// ListTasks returns task snapshots, newest started first; tasks that never
// started sort last. An empty status matches everything. limit <= 0 uses
// DefaultListLimit.
func (s *Scheduler) ListTasks(status Status, limit int) []*Task {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.Lock()
	list := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		clone := task.Clone()
		if status != "" && clone.Status != status {
			continue
		}
		list = append(list, clone)
	}
	s.mu.Unlock()

	sort.SliceStable(list, func(i, j int) bool {
		si, sj := list[i].StartedAt, list[j].StartedAt
		if si.IsZero() {
			return false
		}
		if sj.IsZero() {
			return true
		}
		return si.After(sj)
	})

	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

// GetTask returns a snapshot of a task, or nil if unknown.
func (s *Scheduler) GetTask(taskID string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, ok := s.tasks[taskID]; ok {
		return task.Clone()
	}
	return nil
}

// GetLogs returns a copy of a task's log lines, or nil if unknown.
func (s *Scheduler) GetLogs(taskID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, ok := s.tasks[taskID]; ok {
		return task.Clone().Logs
	}
	return nil
}

// ActiveCount returns the number of Running tasks.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// QueuedCount returns the number of Queued tasks.
func (s *Scheduler) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, task := range s.tasks {
		if task.GetStatus() == StatusQueued {
			count++
		}
	}
	return count
}

// ClearCompleted removes every terminal task from the registry and returns
// how many were removed.
func (s *Scheduler) ClearCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, task := range s.tasks {
		if task.GetStatus().IsTerminal() {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}

// StatusSummary returns a short human-readable queue summary.
func (s *Scheduler) StatusSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[Status]int)
	for _, task := range s.tasks {
		counts[task.GetStatus()]++
	}

	parts := make([]string, 0, 4)
	for _, st := range []Status{StatusRunning, StatusQueued, StatusCompleted, StatusFailed} {
		if counts[st] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[st], strings.ToLower(st.String())))
		}
	}
	if len(parts) == 0 {
		return "No tasks"
	}
	return strings.Join(parts, ", ")
}

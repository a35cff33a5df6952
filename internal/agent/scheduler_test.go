// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/forgeshell/internal/provider"
)

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

// instantProvider streams the given chunks and returns.
func instantProvider(chunks ...string) provider.Func {
	return func(ctx context.Context, req provider.Request, fn provider.StreamFunc) error {
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			fn(c)
		}
		return nil
	}
}

// gatedProvider blocks until gate is closed (or the context cancelled),
// then streams its chunks.
func gatedProvider(gate <-chan struct{}, chunks ...string) provider.Func {
	return func(ctx context.Context, req provider.Request, fn provider.StreamFunc) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gate:
		}
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			fn(c)
		}
		return nil
	}
}

func newTestScheduler(maxConcurrent int) *Scheduler {
	return NewScheduler(maxConcurrent, zerolog.Nop())
}

func TestSpawnCompletes(t *testing.T) {
	s := newTestScheduler(2)
	task := s.Spawn("build the thing", instantProvider("hello ", "world"), nil)

	waitFor(t, func() bool { return s.GetTask(task.ID).Status == StatusCompleted })

	got := s.GetTask(task.ID)
	if got.Result != "hello world" {
		t.Errorf("Expected accumulated result, got '%s'", got.Result)
	}
	if got.Progress != 1.0 {
		t.Errorf("Expected progress 1.0, got %f", got.Progress)
	}

	logs := s.GetLogs(task.ID)
	var started, completed bool
	for _, line := range logs {
		if strings.Contains(line, "Task started") {
			started = true
		}
		if strings.Contains(line, "Task completed successfully") {
			completed = true
		}
	}
	if !started || !completed {
		t.Errorf("Expected start and completion log entries, got %v", logs)
	}
}

func TestConcurrencyBoundAndQueueing(t *testing.T) {
	// Scenario A: maxConcurrent=1, spawn A then B.
	s := newTestScheduler(1)
	gateA := make(chan struct{})

	a := s.Spawn("task A", gatedProvider(gateA, "a"), nil)
	b := s.Spawn("task B", instantProvider("b"), nil)

	waitFor(t, func() bool { return s.GetTask(a.ID).Status == StatusRunning })

	if got := s.GetTask(b.ID).Status; got != StatusQueued {
		t.Errorf("B should be queued while A runs, got %s", got)
	}
	if s.ActiveCount() != 1 {
		t.Errorf("ActiveCount should be 1, got %d", s.ActiveCount())
	}
	if s.QueuedCount() != 1 {
		t.Errorf("QueuedCount should be 1, got %d", s.QueuedCount())
	}

	// Completing A must promote B without any external call.
	close(gateA)
	waitFor(t, func() bool { return s.GetTask(b.ID).Status == StatusCompleted })

	if got := s.GetTask(a.ID).Status; got != StatusCompleted {
		t.Errorf("A should be completed, got %s", got)
	}
}

func TestFIFOPromotionOrder(t *testing.T) {
	s := newTestScheduler(1)
	gateA := make(chan struct{})
	gateB := make(chan struct{})

	a := s.Spawn("A", gatedProvider(gateA), nil)
	b := s.Spawn("B", gatedProvider(gateB), nil)
	c := s.Spawn("C", instantProvider("c"), nil)

	waitFor(t, func() bool { return s.GetTask(a.ID).Status == StatusRunning })
	close(gateA)

	// B was queued first; it must be promoted before C.
	waitFor(t, func() bool { return s.GetTask(b.ID).Status == StatusRunning })
	if got := s.GetTask(c.ID).Status; got != StatusQueued {
		t.Errorf("C should still be queued while B runs, got %s", got)
	}

	close(gateB)
	waitFor(t, func() bool { return s.GetTask(c.ID).Status == StatusCompleted })
}

func TestCancelQueuedNeverInvokesProvider(t *testing.T) {
	// Scenario C: cancelling a queued task must not start execution.
	s := newTestScheduler(1)
	gate := make(chan struct{})
	defer close(gate)

	var invoked atomic.Bool
	tracking := provider.Func(func(ctx context.Context, req provider.Request, fn provider.StreamFunc) error {
		invoked.Store(true)
		return nil
	})

	s.Spawn("blocker", gatedProvider(gate), nil)
	queued := s.Spawn("victim", tracking, nil)

	waitFor(t, func() bool { return s.GetTask(queued.ID).Status == StatusQueued })

	if !s.Cancel(queued.ID) {
		t.Fatal("Cancel of a queued task should return true")
	}

	got := s.GetTask(queued.ID)
	if got.Status != StatusCancelled {
		t.Errorf("Expected Cancelled, got %s", got.Status)
	}
	if got.CompletedAt.IsZero() {
		t.Error("CompletedAt should be set on cancellation")
	}
	if invoked.Load() {
		t.Error("Provider must never be invoked for a task cancelled while queued")
	}
}

func TestCancelRunningWaitsForTermination(t *testing.T) {
	s := newTestScheduler(1)
	gate := make(chan struct{}) // never closed: provider waits on ctx
	defer close(gate)

	task := s.Spawn("long job", gatedProvider(gate), nil)
	waitFor(t, func() bool { return s.GetTask(task.ID).Status == StatusRunning })

	if !s.Cancel(task.ID) {
		t.Fatal("Cancel of a running task should return true")
	}

	// Cancel blocks until the goroutine exits, so the state is already
	// terminal and the slot is free with no further waiting.
	got := s.GetTask(task.ID)
	if got.Status != StatusCancelled {
		t.Errorf("Expected Cancelled, got %s", got.Status)
	}
	if s.ActiveCount() != 0 {
		t.Errorf("Slot should be released, ActiveCount=%d", s.ActiveCount())
	}
}

func TestCancelTerminalIsIdempotent(t *testing.T) {
	s := newTestScheduler(1)
	task := s.Spawn("quick", instantProvider("x"), nil)
	waitFor(t, func() bool { return s.GetTask(task.ID).Status == StatusCompleted })

	before := s.GetTask(task.ID)
	if s.Cancel(task.ID) {
		t.Error("Cancel of a terminal task should return false")
	}
	after := s.GetTask(task.ID)

	if after.Status != before.Status || after.Result != before.Result ||
		len(after.Logs) != len(before.Logs) {
		t.Error("Cancel on a terminal task must not mutate it")
	}

	if s.Cancel("no-such-task") {
		t.Error("Cancel of an unknown task should return false")
	}
}

func TestCancelFreesSlotForQueued(t *testing.T) {
	s := newTestScheduler(1)
	gate := make(chan struct{})
	defer close(gate)

	blocker := s.Spawn("blocker", gatedProvider(gate), nil)
	next := s.Spawn("next", instantProvider("ok"), nil)

	waitFor(t, func() bool { return s.GetTask(blocker.ID).Status == StatusRunning })
	s.Cancel(blocker.ID)

	waitFor(t, func() bool { return s.GetTask(next.ID).Status == StatusCompleted })
}

func TestListTasksOrderingAndLimit(t *testing.T) {
	s := newTestScheduler(2)
	gate := make(chan struct{})
	defer close(gate)

	first := s.Spawn("first", gatedProvider(gate), nil)
	waitFor(t, func() bool { return s.GetTask(first.ID).Status == StatusRunning })
	time.Sleep(5 * time.Millisecond) // distinct start times

	second := s.Spawn("second", gatedProvider(gate), nil)
	waitFor(t, func() bool { return s.GetTask(second.ID).Status == StatusRunning })

	queued := s.Spawn("queued", instantProvider(), nil)

	list := s.ListTasks("", 0)
	if len(list) != 3 {
		t.Fatalf("Expected 3 tasks, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Error("Tasks should be ordered by start time descending")
	}
	if list[2].ID != queued.ID {
		t.Error("Unstarted tasks should sort last")
	}

	if got := s.ListTasks("", 2); len(got) != 2 {
		t.Errorf("Limit should truncate, got %d", len(got))
	}

	running := s.ListTasks(StatusRunning, 0)
	if len(running) != 2 {
		t.Errorf("Expected 2 running tasks, got %d", len(running))
	}
}

func TestClearCompleted(t *testing.T) {
	s := newTestScheduler(2)
	gate := make(chan struct{})
	defer close(gate)

	done := s.Spawn("done", instantProvider("x"), nil)
	failed := s.Spawn("failed", provider.Func(func(ctx context.Context, req provider.Request, fn provider.StreamFunc) error {
		return context.DeadlineExceeded
	}), nil)
	alive := s.Spawn("alive", gatedProvider(gate), nil)

	waitFor(t, func() bool { return s.GetTask(done.ID).Status == StatusCompleted })
	waitFor(t, func() bool { return s.GetTask(failed.ID).Status == StatusFailed })

	if removed := s.ClearCompleted(); removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}

	if s.GetTask(done.ID) != nil || s.GetTask(failed.ID) != nil {
		t.Error("Terminal tasks should be gone")
	}
	if s.GetTask(alive.ID) == nil {
		t.Error("Running task should survive ClearCompleted")
	}
}

func TestOnCompleteObservers(t *testing.T) {
	s := newTestScheduler(1)

	var observed atomic.Int32
	s.OnComplete(func(task *Task) {
		panic("observer bug") // must never fail the task
	})
	s.OnComplete(func(task *Task) {
		observed.Add(1)
	})

	task := s.Spawn("observed", instantProvider("ok"), nil)
	waitFor(t, func() bool { return s.GetTask(task.ID).Status == StatusCompleted })
	waitFor(t, func() bool { return observed.Load() == 1 })
}

func TestObserversSkippedOnFailure(t *testing.T) {
	s := newTestScheduler(1)

	var observed atomic.Int32
	s.OnComplete(func(task *Task) { observed.Add(1) })

	task := s.Spawn("doomed", provider.Func(func(ctx context.Context, req provider.Request, fn provider.StreamFunc) error {
		return context.DeadlineExceeded
	}), nil)
	waitFor(t, func() bool { return s.GetTask(task.ID).Status == StatusFailed })

	if observed.Load() != 0 {
		t.Error("Completion observers must not fire for failed tasks")
	}
}

func TestEventsEmittedForTerminalStates(t *testing.T) {
	s := newTestScheduler(1)

	task := s.Spawn("evented", instantProvider("ok"), nil)
	waitFor(t, func() bool { return s.GetTask(task.ID).Status == StatusCompleted })

	select {
	case ev := <-s.Events():
		if ev.TaskID != task.ID || ev.Status != StatusCompleted {
			t.Errorf("Unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a completion event")
	}
}

func TestGetLogsUnknownTask(t *testing.T) {
	s := newTestScheduler(1)
	if s.GetLogs("missing") != nil {
		t.Error("GetLogs on unknown task should return nil")
	}
	if s.GetTask("missing") != nil {
		t.Error("GetTask on unknown task should return nil")
	}
}

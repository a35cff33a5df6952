// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, maxEntries int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), maxEntries)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListTasks(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		err := store.RecordTask(ctx, TaskRecord{
			ID:         fmt.Sprintf("task-%d", i),
			Goal:       fmt.Sprintf("goal %d", i),
			Status:     "Completed",
			Result:     "done",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
		})
		if err != nil {
			t.Fatalf("RecordTask: %v", err)
		}
	}

	records, err := store.ListTasks(ctx, 10)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	// Most recently finished first.
	if records[0].ID != "task-2" || records[2].ID != "task-0" {
		t.Errorf("order = %s..%s, want task-2..task-0", records[0].ID, records[2].ID)
	}
	if records[0].Goal != "goal 2" || records[0].Status != "Completed" {
		t.Errorf("record fields = %+v", records[0])
	}
}

func TestListTasksLimit(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		store.RecordTask(ctx, TaskRecord{
			ID:         fmt.Sprintf("task-%d", i),
			Goal:       "g",
			Status:     "Failed",
			FinishedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
	}

	records, err := store.ListTasks(ctx, 2)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestTaskPruning(t *testing.T) {
	store := newTestStore(t, 3)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		err := store.RecordTask(ctx, TaskRecord{
			ID:         fmt.Sprintf("task-%d", i),
			Goal:       "g",
			Status:     "Completed",
			FinishedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("RecordTask: %v", err)
		}
	}

	records, err := store.ListTasks(ctx, 100)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records after prune, want 3", len(records))
	}
	// The newest three survive.
	if records[0].ID != "task-5" || records[2].ID != "task-3" {
		t.Errorf("kept %s..%s, want task-5..task-3", records[0].ID, records[2].ID)
	}
}

func TestRecordAndListPlans(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	err := store.RecordPlan(ctx, PlanRecord{
		ID:         "plan-1",
		Goal:       "migrate the database",
		Status:     "Completed",
		StepsTotal: 4,
		StepsDone:  4,
		CreatedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("RecordPlan: %v", err)
	}

	records, err := store.ListPlans(ctx, 10)
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Goal != "migrate the database" || rec.StepsTotal != 4 || rec.StepsDone != 4 {
		t.Errorf("record = %+v", rec)
	}
}

func TestRecordTaskReplaceByID(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	store.RecordTask(ctx, TaskRecord{ID: "t1", Goal: "g", Status: "Failed", FinishedAt: time.Now()})
	store.RecordTask(ctx, TaskRecord{ID: "t1", Goal: "g", Status: "Completed", FinishedAt: time.Now()})

	records, err := store.ListTasks(ctx, 10)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Status != "Completed" {
		t.Errorf("status = %q, want Completed", records[0].Status)
	}
}

func TestListEmptyStore(t *testing.T) {
	store := newTestStore(t, 0)
	records, err := store.ListTasks(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

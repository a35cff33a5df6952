// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history persists finished background tasks and plan runs to a
// local SQLite database so past work survives restarts.
//
// # Key Types
//
//   - Store: the SQLite-backed run-history store
//   - TaskRecord: one finished background task
//   - PlanRecord: one finished or cancelled plan
//
// # Usage
//
//	store, err := history.Open(path, 1000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//	store.RecordTask(ctx, rec)
package history

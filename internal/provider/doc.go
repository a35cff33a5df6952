// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the streaming text-generation interface consumed
// by the task scheduler and the plan engine, plus the Ollama-backed
// implementation.
//
// # Key Types
//
//   - Provider: the streaming generation interface
//   - Message: a single role/content turn of conversation history
//   - Client: HTTP client for a local Ollama server
//
// # Cancellation
//
// Generation is cancelled cooperatively: implementations check the context
// at every chunk boundary and return ctx.Err() once cancellation is
// observed. Callers abandon a stream simply by cancelling the context;
// there is no explicit close call.
package provider

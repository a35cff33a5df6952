// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the streaming text-generation interface.
package provider

import "context"

// =============================================================================
// MESSAGES
// =============================================================================

// Message represents a single turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system", "tool"
	Content string `json:"content"`
}

// =============================================================================
// PROVIDER INTERFACE
// =============================================================================

// StreamFunc receives one text chunk of a streaming response.
type StreamFunc func(chunk string)

// Request describes a single generation call.
type Request struct {
	// Prompt is the user-turn text for this call
	Prompt string

	// History is prior conversation context, oldest first (may be nil)
	History []Message

	// System is an optional system prompt
	System string
}

// Provider generates text as a stream of chunks.
//
// Generate blocks until the stream completes, the context is cancelled, or
// an error occurs. fn is invoked once per chunk, in order, from the calling
// goroutine's stream loop. On cancellation Generate returns an error
// satisfying errors.Is(err, context.Canceled).
type Provider interface {
	Generate(ctx context.Context, req Request, fn StreamFunc) error
}

// Func adapts an ordinary function to the Provider interface.
// It is primarily useful for tests and small adapters.
type Func func(ctx context.Context, req Request, fn StreamFunc) error

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request, fn StreamFunc) error {
	return f(ctx, req, fn)
}

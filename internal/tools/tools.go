// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools provides the named-tool registry for plan step execution.
package tools

import (
	"context"
	"sort"
	"sync"
)

// =============================================================================
// TOOL
// =============================================================================

// Handler executes a tool with the given arguments and returns its output.
type Handler func(ctx context.Context, args map[string]interface{}) (string, error)

// Tool represents a named operation the plan engine can invoke.
type Tool struct {
	// Name is the tool identifier (e.g., "run_command")
	Name string

	// Description explains what the tool does
	Description string

	// RequiresApproval indicates the UI layer must confirm with the user
	// before this tool is invoked. The registry does not enforce it.
	RequiresApproval bool

	// Handler performs the actual execution
	Handler Handler
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates a registry with the builtin tools pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		tools: make(map[string]*Tool),
	}
	r.RegisterBuiltins()
	return r
}

// NewEmptyRegistry creates a registry with no tools (useful for tests).
func NewEmptyRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry, replacing any tool with the same name.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get retrieves a tool by name. Returns nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

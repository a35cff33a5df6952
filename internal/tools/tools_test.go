// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	if r.Get("run_command") == nil {
		t.Error("run_command should be registered")
	}

	if r.Get("no_such_tool") != nil {
		t.Error("Unknown tool should return nil")
	}

	if r.Count() != 3 {
		t.Errorf("Expected 3 builtin tools, got %d", r.Count())
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewEmptyRegistry()

	called := false
	r.Register(&Tool{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			called = true
			return "done", nil
		},
	})

	tool := r.Get("echo")
	if tool == nil {
		t.Fatal("Registered tool should be retrievable")
	}

	out, err := tool.Handler(context.Background(), nil)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if out != "done" || !called {
		t.Error("Handler should have been invoked")
	}
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()

	names := r.Names()
	expected := []string{"read_file", "run_command", "write_file"}

	if len(names) != len(expected) {
		t.Fatalf("Expected %d names, got %d", len(expected), len(names))
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("Expected names[%d]=%s, got %s", i, name, names[i])
		}
	}
}

func TestReadWriteFileTools(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	_, err := writeFile(context.Background(), map[string]interface{}{
		"path":    path,
		"content": "hello",
	})
	if err != nil {
		t.Fatalf("write_file failed: %v", err)
	}

	got, err := readFile(context.Background(), map[string]interface{}{"path": path})
	if err != nil {
		t.Fatalf("read_file failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("Expected 'hello', got '%s'", got)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "hello" {
		t.Error("File content mismatch on disk")
	}
}

func TestReadFileMissingArgs(t *testing.T) {
	if _, err := readFile(context.Background(), nil); err == nil {
		t.Error("read_file without args should fail")
	}

	if _, err := runCommand(context.Background(), map[string]interface{}{}); err == nil {
		t.Error("run_command without command should fail")
	}
}

func TestBuiltinApprovalFlags(t *testing.T) {
	r := NewRegistry()

	if !r.Get("run_command").RequiresApproval {
		t.Error("run_command should require approval")
	}
	if r.Get("read_file").RequiresApproval {
		t.Error("read_file should not require approval")
	}
	if !r.Get("write_file").RequiresApproval {
		t.Error("write_file should require approval")
	}
}

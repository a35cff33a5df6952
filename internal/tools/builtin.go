// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools provides the named-tool registry for plan step execution.
package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/jeranaias/forgeshell/internal/util"
)

// maxCommandOutput caps run_command output to keep step results displayable.
const maxCommandOutput = 30000

// RegisterBuiltins registers the builtin tool set. These are the tools the
// plan generation prompt advertises to the model.
func (r *Registry) RegisterBuiltins() {
	r.Register(RunCommandTool)
	r.Register(ReadFileTool)
	r.Register(WriteFileTool)
}

// =============================================================================
// BUILTIN TOOLS
// =============================================================================

// RunCommandTool executes a shell command and returns its combined output.
var RunCommandTool = &Tool{
	Name:             "run_command",
	Description:      "Run a shell command and return its output",
	RequiresApproval: true,
	Handler:          runCommand,
}

// ReadFileTool reads a file and returns its contents.
var ReadFileTool = &Tool{
	Name:             "read_file",
	Description:      "Read a file and return its contents",
	RequiresApproval: false,
	Handler:          readFile,
}

// WriteFileTool writes content to a file, creating it if needed.
var WriteFileTool = &Tool{
	Name:             "write_file",
	Description:      "Write content to a file",
	RequiresApproval: true,
	Handler:          writeFile,
}

// =============================================================================
// HANDLERS
// =============================================================================

func runCommand(ctx context.Context, args map[string]interface{}) (string, error) {
	command, ok := stringArg(args, "command")
	if !ok || command == "" {
		return "", fmt.Errorf("run_command requires a 'command' argument")
	}

	shell, flag := findShell()
	cmd := exec.CommandContext(ctx, shell, flag, command)
	if dir, ok := stringArg(args, "working_dir"); ok && dir != "" {
		cmd.Dir = dir
	}

	out, err := cmd.CombinedOutput()
	output := util.TruncateRunesNoEllipsis(string(out), maxCommandOutput)
	if err != nil {
		if ctx.Err() != nil {
			return output, ctx.Err()
		}
		return output, fmt.Errorf("command failed: %w", err)
	}
	return output, nil
}

func readFile(ctx context.Context, args map[string]interface{}) (string, error) {
	path, ok := stringArg(args, "path")
	if !ok || path == "" {
		return "", fmt.Errorf("read_file requires a 'path' argument")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func writeFile(ctx context.Context, args map[string]interface{}) (string, error) {
	path, ok := stringArg(args, "path")
	if !ok || path == "" {
		return "", fmt.Errorf("write_file requires a 'path' argument")
	}
	content, _ := stringArg(args, "content")

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// =============================================================================
// HELPERS
// =============================================================================

// findShell determines which shell to use for run_command.
// Prefers bash, then powershell, then cmd (for Windows hosts without bash).
func findShell() (shell, flag string) {
	if _, err := exec.LookPath("bash"); err == nil {
		return "bash", "-c"
	}
	if _, err := exec.LookPath("powershell"); err == nil {
		return "powershell", "-Command"
	}
	return "cmd", "/c"
}

// stringArg extracts a string argument by key.
func stringArg(args map[string]interface{}, key string) (string, bool) {
	if args == nil {
		return "", false
	}
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

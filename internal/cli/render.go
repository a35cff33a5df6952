// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/forgeshell/internal/agent"
	"github.com/jeranaias/forgeshell/internal/plan"
	"github.com/jeranaias/forgeshell/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// Prompt style
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}).
			Bold(true)

	// Success style
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"})

	// Error style
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"})

	// Warning style
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"})

	// Info style
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})

	// Header style
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}).
			Bold(true)
)

// =============================================================================
// TASK RENDERING
// =============================================================================

// taskGlyph returns a colored single-character marker for a task status.
func taskGlyph(status agent.Status) string {
	switch status {
	case agent.StatusRunning:
		return warningStyle.Render("*")
	case agent.StatusQueued:
		return infoStyle.Render("~")
	case agent.StatusCompleted:
		return successStyle.Render("+")
	case agent.StatusFailed:
		return errorStyle.Render("x")
	case agent.StatusCancelled:
		return infoStyle.Render("-")
	default:
		return "?"
	}
}

// renderTaskList formats task snapshots into display lines.
func renderTaskList(tasks []*agent.Task) string {
	if len(tasks) == 0 {
		return infoStyle.Render("No tasks.")
	}
	var b strings.Builder
	for _, t := range tasks {
		line := fmt.Sprintf("%s [%s] %s - %s", taskGlyph(t.Status), t.ID,
			util.TruncateRunes(t.Goal, 50), t.Status)
		if t.Status == agent.StatusRunning {
			line += fmt.Sprintf(" (%d%%)", int(t.Progress*100))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// =============================================================================
// PLAN RENDERING
// =============================================================================

// stepGlyph returns a colored single-character marker for a step status.
func stepGlyph(status plan.StepStatus) string {
	switch status {
	case plan.StepPending:
		return infoStyle.Render("?")
	case plan.StepApproved:
		return warningStyle.Render("~")
	case plan.StepExecuting:
		return warningStyle.Render("*")
	case plan.StepCompleted:
		return successStyle.Render("+")
	case plan.StepFailed:
		return errorStyle.Render("x")
	case plan.StepSkipped:
		return infoStyle.Render("-")
	default:
		return "?"
	}
}

// renderPlan formats a plan snapshot for display.
func renderPlan(p *plan.Plan) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Plan [%s] %s", p.ID, p.Status)))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render("Goal: " + p.Goal))
	b.WriteString("\n")
	for _, step := range p.Steps {
		line := fmt.Sprintf("  %s %d. %s", stepGlyph(step.Status), step.Order,
			util.TruncateRunes(step.Description, 60))
		if step.Type == plan.StepTool && step.ToolName != "" {
			line += infoStyle.Render(" [" + step.ToolName + "]")
		}
		if step.Error != "" {
			line += "\n     " + errorStyle.Render(step.Error)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(infoStyle.Render(fmt.Sprintf("Progress: %d%%", int(p.Progress()*100))))
	return b.String()
}

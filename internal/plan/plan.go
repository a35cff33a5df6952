// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"time"

	"github.com/jeranaias/forgeshell/internal/util"
)

// =============================================================================
// PLAN STATUS
// =============================================================================

// PlanStatus represents the current state of a plan.
type PlanStatus int

const (
	// StatusDraft - Plan created but not yet executing
	StatusDraft PlanStatus = iota

	// StatusApproved - Every step approved, ready to execute
	StatusApproved

	// StatusExecuting - Plan is being stepped through
	StatusExecuting

	// StatusCompleted - Every step reached a terminal state
	StatusCompleted

	// StatusCancelled - Plan cancelled by user
	StatusCancelled
)

// String returns the string representation of a plan status.
func (s PlanStatus) String() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusApproved:
		return "Approved"
	case StatusExecuting:
		return "Executing"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// =============================================================================
// STEP STATUS
// =============================================================================

// StepStatus represents the current state of a plan step.
type StepStatus int

const (
	// StepPending - Step awaiting user approval
	StepPending StepStatus = iota

	// StepApproved - Step approved, eligible for execution
	StepApproved

	// StepSkipped - Step skipped by user choice
	StepSkipped

	// StepExecuting - Step currently executing
	StepExecuting

	// StepCompleted - Step finished successfully
	StepCompleted

	// StepFailed - Step failed
	StepFailed
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "Pending"
	case StepApproved:
		return "Approved"
	case StepSkipped:
		return "Skipped"
	case StepExecuting:
		return "Executing"
	case StepCompleted:
		return "Completed"
	case StepFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsTerminal returns true for Completed, Skipped, and Failed.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepSkipped || s == StepFailed
}

// =============================================================================
// STEP TYPE
// =============================================================================

// StepType determines how a step is executed.
type StepType int

const (
	// StepPrompt - The model reasons about the step description
	StepPrompt StepType = iota

	// StepTool - A named tool is invoked with arguments
	StepTool

	// StepCheckpoint - Pause for human review, no side effect
	StepCheckpoint
)

// String returns the string representation of a step type.
func (t StepType) String() string {
	switch t {
	case StepPrompt:
		return "prompt"
	case StepTool:
		return "tool"
	case StepCheckpoint:
		return "checkpoint"
	default:
		return "unknown"
	}
}

// =============================================================================
// PLAN STEP
// =============================================================================

// PlanStep represents a single approvable unit of a plan.
type PlanStep struct {
	// ID is a short unique identifier for this step
	ID string

	// Order is the 1-based position within the plan, unique per plan
	Order int

	// Description is what this step does
	Description string

	// Type determines how the step executes
	Type StepType

	// ToolName names the tool to invoke (meaningful for tool steps only)
	ToolName string

	// ToolArgs are the tool's arguments (nil when absent or unparseable)
	ToolArgs map[string]interface{}

	// Status is the current approval/execution state
	Status StepStatus

	// Result holds the step's output after successful completion
	Result string

	// Error holds the failure message after a failed completion
	Error string

	// Duration is how long execution took (0 = not executed)
	Duration time.Duration
}

// Clone returns a snapshot copy of the step.
func (s *PlanStep) Clone() *PlanStep {
	clone := *s
	if s.ToolArgs != nil {
		clone.ToolArgs = make(map[string]interface{}, len(s.ToolArgs))
		for k, v := range s.ToolArgs {
			clone.ToolArgs[k] = v
		}
	}
	return &clone
}

// =============================================================================
// PLAN
// =============================================================================

// Plan represents an ordered, approval-gated sequence of steps generated
// for a single goal. A plan exclusively owns its steps.
type Plan struct {
	// ID is a short unique identifier for this plan
	ID string

	// Goal is the user's original goal text
	Goal string

	// Steps are the plan's steps in ascending Order
	Steps []*PlanStep

	// Status is the plan-level state
	Status PlanStatus

	// Variables supports template substitution in step descriptions
	Variables map[string]string

	// CreatedAt is when the plan was generated
	CreatedAt time.Time
}

// NewPlan creates an empty draft plan for the goal.
func NewPlan(goal string) *Plan {
	return &Plan{
		ID:        util.ShortID(),
		Goal:      goal,
		Status:    StatusDraft,
		Variables: make(map[string]string),
		CreatedAt: time.Now(),
	}
}

// AddStep appends a step with the next order number.
func (p *Plan) AddStep(description string, stepType StepType, toolName string, toolArgs map[string]interface{}) *PlanStep {
	step := &PlanStep{
		ID:          util.ShortID(),
		Order:       len(p.Steps) + 1,
		Description: description,
		Type:        stepType,
		ToolName:    toolName,
		ToolArgs:    toolArgs,
		Status:      StepPending,
	}
	p.Steps = append(p.Steps, step)
	return step
}

// GetStep returns a step by ID, or nil.
func (p *Plan) GetStep(stepID string) *PlanStep {
	for _, step := range p.Steps {
		if step.ID == stepID {
			return step
		}
	}
	return nil
}

// ApproveStep transitions a step from Pending to Approved.
// Returns false, with no mutation, for any other current status.
func (p *Plan) ApproveStep(stepID string) bool {
	step := p.GetStep(stepID)
	if step != nil && step.Status == StepPending {
		step.Status = StepApproved
		return true
	}
	return false
}

// SkipStep transitions a step from Pending or Approved to Skipped.
func (p *Plan) SkipStep(stepID string) bool {
	step := p.GetStep(stepID)
	if step != nil && (step.Status == StepPending || step.Status == StepApproved) {
		step.Status = StepSkipped
		return true
	}
	return false
}

// ApproveAll approves every pending step and returns the count transitioned.
func (p *Plan) ApproveAll() int {
	count := 0
	for _, step := range p.Steps {
		if step.Status == StepPending {
			step.Status = StepApproved
			count++
		}
	}
	return count
}

// NextStep returns the lowest-order Approved step, or nil. Execution is
// one step at a time: callers run the returned step, record its outcome,
// and ask again.
func (p *Plan) NextStep() *PlanStep {
	for _, step := range p.Steps {
		if step.Status == StepApproved {
			return step
		}
	}
	return nil
}

// IsComplete reports whether every step is terminal. An empty plan is
// vacuously complete, but Generate never produces one.
func (p *Plan) IsComplete() bool {
	for _, step := range p.Steps {
		if !step.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// Progress returns the fraction of terminal steps, 0 when the plan is empty.
func (p *Plan) Progress() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	done := 0
	for _, step := range p.Steps {
		if step.Status.IsTerminal() {
			done++
		}
	}
	return float64(done) / float64(len(p.Steps))
}

// Clone returns a deep snapshot copy of the plan.
func (p *Plan) Clone() *Plan {
	clone := &Plan{
		ID:        p.ID,
		Goal:      p.Goal,
		Status:    p.Status,
		Variables: make(map[string]string, len(p.Variables)),
		CreatedAt: p.CreatedAt,
		Steps:     make([]*PlanStep, len(p.Steps)),
	}
	for k, v := range p.Variables {
		clone.Variables[k] = v
	}
	for i, step := range p.Steps {
		clone.Steps[i] = step.Clone()
	}
	return clone
}

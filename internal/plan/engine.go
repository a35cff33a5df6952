// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/forgeshell/internal/provider"
	"github.com/jeranaias/forgeshell/internal/util"
)

// =============================================================================
// PROMPTS
// =============================================================================

// planSystemPrompt pins the model to the line-oriented output format.
const planSystemPrompt = "You are a precise task planner. Output only the plan steps in the exact format specified."

// maxContextRunes bounds the project context injected into the
// generation prompt so the plan request stays small.
const maxContextRunes = 2000

const planPrompt = `You are a task planner. Create a step-by-step plan to achieve the user's goal.

IMPORTANT: Output ONLY the plan steps. Do NOT output any code, explanations, or other content.

Each step must follow this EXACT format:

STEP 1: Brief description of what to do
TYPE: prompt

STEP 2: Brief description of next action
TYPE: tool
TOOL: run_command
ARGS: {"command": "the shell command"}

Available step types:
- "prompt" = AI will think/reason about this step
- "tool" = Execute a tool (run_command, read_file, write_file)
- "checkpoint" = Pause for user review

Available tools for TYPE: tool:
- run_command: Run a shell command. ARGS: {"command": "..."}
- read_file: Read a file. ARGS: {"path": "..."}
- write_file: Write a file. ARGS: {"path": "...", "content": "..."}

Goal: %s

%s

Now output the plan steps (3-7 steps, nothing else):`

// =============================================================================
// ENGINE
// =============================================================================

// Engine generates plans from goals and owns the plan registry. All
// methods are safe for concurrent use; accessor methods return clones
// so callers never hold references into live plans.
type Engine struct {
	mu    sync.Mutex
	plans map[string]*Plan
	log   zerolog.Logger
}

// NewEngine creates an empty plan engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		plans: make(map[string]*Plan),
		log:   log.With().Str("component", "plan").Logger(),
	}
}

// Generate asks the provider for a plan and parses it into steps. The
// returned plan is in Draft status with every step Pending. Generation
// never produces an empty plan: if the response yields no parseable
// steps a single fallback step carrying the goal is added. The caller
// decides whether the new plan becomes the session's active plan.
func (e *Engine) Generate(ctx context.Context, goal string, p provider.Provider, contextText string) (*Plan, error) {
	plan := NewPlan(goal)

	ctxText := "No additional context."
	if contextText != "" {
		ctxText = util.TruncateRunesNoEllipsis(contextText, maxContextRunes)
	}
	prompt := fmt.Sprintf(planPrompt, goal, ctxText)

	var response strings.Builder
	err := p.Generate(ctx, provider.Request{
		Prompt: prompt,
		System: planSystemPrompt,
	}, func(chunk string) {
		response.WriteString(chunk)
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	parsePlanResponse(plan, response.String())

	e.mu.Lock()
	e.plans[plan.ID] = plan
	e.mu.Unlock()

	e.log.Info().
		Str("plan_id", plan.ID).
		Int("steps", len(plan.Steps)).
		Msg("plan generated")

	return plan.Clone(), nil
}

// ApproveStep approves one pending step. Returns false when the plan or
// step is unknown or the step is not Pending.
func (e *Engine) ApproveStep(planID, stepID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if plan, ok := e.plans[planID]; ok {
		return plan.ApproveStep(stepID)
	}
	return false
}

// SkipStep skips one pending or approved step.
func (e *Engine) SkipStep(planID, stepID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if plan, ok := e.plans[planID]; ok {
		return plan.SkipStep(stepID)
	}
	return false
}

// ApproveAll approves every pending step of the plan, returning the
// number of steps transitioned (0 for an unknown plan).
func (e *Engine) ApproveAll(planID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if plan, ok := e.plans[planID]; ok {
		return plan.ApproveAll()
	}
	return 0
}

// StartExecution moves a Draft or Approved plan into Executing.
func (e *Engine) StartExecution(planID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.plans[planID]
	if ok && (plan.Status == StatusDraft || plan.Status == StatusApproved) {
		plan.Status = StatusExecuting
		return true
	}
	return false
}

// BeginStep marks an Approved step Executing before it runs.
func (e *Engine) BeginStep(planID, stepID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.plans[planID]
	if !ok {
		return false
	}
	step := plan.GetStep(stepID)
	if step != nil && step.Status == StepApproved {
		step.Status = StepExecuting
		return true
	}
	return false
}

// CompleteStep records a step's outcome. A non-empty errMsg marks the
// step Failed, otherwise it is Completed with the result. When the last
// step reaches a terminal state the plan itself becomes Completed.
// Returns false only when the plan or step is unknown.
func (e *Engine) CompleteStep(planID, stepID, result, errMsg string, duration time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.plans[planID]
	if !ok {
		return false
	}
	step := plan.GetStep(stepID)
	if step == nil {
		return false
	}

	if errMsg != "" {
		step.Status = StepFailed
		step.Error = errMsg
	} else {
		step.Status = StepCompleted
		step.Result = result
	}
	step.Duration = duration

	if plan.IsComplete() {
		plan.Status = StatusCompleted
		e.log.Info().Str("plan_id", plan.ID).Msg("plan completed")
	}
	return true
}

// CancelPlan marks a plan Cancelled. Step statuses are left untouched so
// the record shows exactly how far execution got.
func (e *Engine) CancelPlan(planID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if plan, ok := e.plans[planID]; ok {
		plan.Status = StatusCancelled
		return true
	}
	return false
}

// GetPlan returns a snapshot of a plan, or nil.
func (e *Engine) GetPlan(planID string) *Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	if plan, ok := e.plans[planID]; ok {
		return plan.Clone()
	}
	return nil
}

// GetStep returns a snapshot of one step, or nil.
func (e *Engine) GetStep(planID, stepID string) *PlanStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.plans[planID]
	if !ok {
		return nil
	}
	if step := plan.GetStep(stepID); step != nil {
		return step.Clone()
	}
	return nil
}

// NextStep returns a snapshot of the lowest-order approved step of the
// plan, or nil when nothing is eligible.
func (e *Engine) NextStep(planID string) *PlanStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.plans[planID]
	if !ok {
		return nil
	}
	if step := plan.NextStep(); step != nil {
		return step.Clone()
	}
	return nil
}

// ListPlans returns snapshots of every plan, newest first.
func (e *Engine) ListPlans() []*Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	plans := make([]*Plan, 0, len(e.plans))
	for _, plan := range e.plans {
		plans = append(plans, plan.Clone())
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})
	return plans
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/forgeshell/internal/provider"
	"github.com/jeranaias/forgeshell/internal/tools"
	"github.com/jeranaias/forgeshell/internal/util"
)

// maxStepResultRunes caps a prompt step's stored result.
const maxStepResultRunes = 500

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes approved plan steps one at a time against a tool
// registry and an AI provider, recording each outcome on the engine.
type Runner struct {
	engine   *Engine
	registry *tools.Registry
	provider provider.Provider
	log      zerolog.Logger
}

// NewRunner creates a step runner. The provider may be nil, in which
// case prompt steps fail with an explanatory error.
func NewRunner(engine *Engine, registry *tools.Registry, p provider.Provider, log zerolog.Logger) *Runner {
	return &Runner{
		engine:   engine,
		registry: registry,
		provider: p,
		log:      log.With().Str("component", "plan-runner").Logger(),
	}
}

// ExecuteNext runs the next approved step of the plan and returns a
// snapshot of it with its recorded outcome. Returns nil when no step is
// eligible. A failed step does not stop the plan: subsequent approved
// steps remain eligible on the next call.
func (r *Runner) ExecuteNext(ctx context.Context, planID string) *PlanStep {
	step := r.engine.NextStep(planID)
	if step == nil {
		return nil
	}

	r.engine.StartExecution(planID)
	r.engine.BeginStep(planID, step.ID)

	r.log.Debug().
		Str("plan_id", planID).
		Int("order", step.Order).
		Str("type", step.Type.String()).
		Msg("executing step")

	start := time.Now()
	result, errMsg := r.executeStep(ctx, step)
	duration := time.Since(start)

	r.engine.CompleteStep(planID, step.ID, result, errMsg, duration)
	return r.engine.GetStep(planID, step.ID)
}

// executeStep dispatches on the step type. A tool step without a tool
// name degrades to the prompt path rather than failing.
func (r *Runner) executeStep(ctx context.Context, step *PlanStep) (result, errMsg string) {
	if step.Type == StepTool && step.ToolName != "" {
		tool := r.registry.Get(step.ToolName)
		if tool == nil {
			return "", "Tool not found: " + step.ToolName
		}
		out, err := tool.Handler(ctx, step.ToolArgs)
		if err != nil {
			return "", err.Error()
		}
		return out, ""
	}

	if step.Type == StepCheckpoint {
		return "Checkpoint reached", ""
	}

	if r.provider == nil {
		return "", "No AI provider"
	}
	var response strings.Builder
	err := r.provider.Generate(ctx, provider.Request{
		Prompt: step.Description,
	}, func(chunk string) {
		response.WriteString(chunk)
	})
	if err != nil {
		return "", err.Error()
	}
	return util.TruncateRunesNoEllipsis(response.String(), maxStepResultRunes), ""
}

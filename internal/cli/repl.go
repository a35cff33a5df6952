// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"github.com/jeranaias/forgeshell/internal/agent"
	"github.com/jeranaias/forgeshell/internal/config"
	"github.com/jeranaias/forgeshell/internal/history"
	"github.com/jeranaias/forgeshell/internal/plan"
	"github.com/jeranaias/forgeshell/internal/provider"
	"github.com/jeranaias/forgeshell/internal/tools"
	"github.com/jeranaias/forgeshell/internal/util"
)

// =============================================================================
// REPL
// =============================================================================

// REPL is the interactive command loop tying the scheduler, the plan
// engine, and the run-history store together.
type REPL struct {
	scheduler *agent.Scheduler
	engine    *plan.Engine
	runner    *plan.Runner
	session   *plan.Session
	registry  *tools.Registry
	provider  provider.Provider
	store     *history.Store // nil when history is disabled
	log       zerolog.Logger

	line        *liner.State
	historyFile string
}

// Options carries the REPL's collaborators.
type Options struct {
	Scheduler *agent.Scheduler
	Engine    *plan.Engine
	Runner    *plan.Runner
	Registry  *tools.Registry
	Provider  provider.Provider
	Store     *history.Store
	Log       zerolog.Logger
}

// New creates a REPL with line editing and persistent input history.
func New(opts Options) *REPL {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	historyFile := filepath.Join(configDir, "input_history")

	r := &REPL{
		scheduler:   opts.Scheduler,
		engine:      opts.Engine,
		runner:      opts.Runner,
		session:     plan.NewSession(),
		registry:    opts.Registry,
		provider:    opts.Provider,
		store:       opts.Store,
		log:         opts.Log.With().Str("component", "cli").Logger(),
		line:        line,
		historyFile: historyFile,
	}
	r.loadInputHistory()
	return r
}

// Run drives the command loop until the user exits. Terminal task events
// are drained in the background and recorded to run history.
func (r *REPL) Run(ctx context.Context) error {
	defer r.close()

	go r.drainEvents(ctx)

	fmt.Println(headerStyle.Render("forgeshell"))
	fmt.Println(infoStyle.Render("Type 'help' for commands."))

	for {
		input, err := r.line.Prompt(promptStyle.Render("> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if input == "quit" || input == "exit" {
			return nil
		}
		r.dispatch(ctx, input)
	}
}

func (r *REPL) close() {
	r.saveInputHistory()
	r.line.Close()
}

func (r *REPL) loadInputHistory() {
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

func (r *REPL) saveInputHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	r.line.WriteHistory(f)
}

// drainEvents records terminal task events into run history.
func (r *REPL) drainEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.scheduler.Events():
			if !ok {
				return
			}
			if r.store == nil {
				continue
			}
			task := r.scheduler.GetTask(ev.TaskID)
			if task == nil {
				continue
			}
			rec := history.TaskRecord{
				ID:         task.ID,
				Goal:       task.Goal,
				Status:     string(task.Status),
				Result:     task.Result,
				Error:      task.Error,
				StartedAt:  task.StartedAt,
				FinishedAt: task.CompletedAt,
			}
			if err := r.store.RecordTask(ctx, rec); err != nil {
				r.log.Warn().Err(err).Str("task_id", task.ID).Msg("failed to record task run")
			}
		}
	}
}

// =============================================================================
// COMMAND DISPATCH
// =============================================================================

func (r *REPL) dispatch(ctx context.Context, input string) {
	fields := strings.Fields(input)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help":
		r.printHelp()
	case "task":
		r.handleTask(args, input)
	case "plan":
		r.handlePlan(ctx, args, input)
	case "tools":
		r.handleTools()
	case "history":
		r.handleHistory(ctx)
	case "status":
		fmt.Println(infoStyle.Render(r.scheduler.StatusSummary()))
	default:
		fmt.Println(errorStyle.Render("Unknown command: " + cmd + " (try 'help')"))
	}
}

func (r *REPL) printHelp() {
	help := `Commands:
  task spawn <goal>      Spawn a background task
  task list [status]     List tasks (Running, Queued, Completed, Failed, Cancelled)
  task logs <id>         Show a task's activity log
  task cancel <id>       Cancel a task
  task clear             Remove finished tasks
  plan <goal>            Generate a plan for a goal
  plan status            Show the active plan
  plan approve [n|all]   Approve step n, or every pending step
  plan skip <n>          Skip step n
  plan run               Execute the next approved step
  plan cancel            Cancel the active plan
  plan list              List all plans
  tools                  List available tools
  history                Show recent task runs
  status                 Show scheduler status
  quit                   Exit`
	fmt.Println(infoStyle.Render(help))
}

// =============================================================================
// TASK COMMANDS
// =============================================================================

func (r *REPL) handleTask(args []string, input string) {
	if len(args) == 0 {
		fmt.Println(errorStyle.Render("Usage: task spawn|list|logs|cancel|clear"))
		return
	}

	switch args[0] {
	case "spawn":
		goal := strings.TrimSpace(strings.TrimPrefix(input, "task spawn"))
		if goal == "" {
			fmt.Println(errorStyle.Render("Usage: task spawn <goal>"))
			return
		}
		task := r.scheduler.Spawn(goal, r.provider, r.registry)
		switch task.GetStatus() {
		case agent.StatusRunning:
			fmt.Println(successStyle.Render("Started task " + task.ID))
		default:
			fmt.Println(warningStyle.Render("Queued task " + task.ID + " (waiting for a slot)"))
		}

	case "list":
		var status agent.Status
		if len(args) > 1 {
			status = agent.Status(args[1])
		}
		fmt.Println(renderTaskList(r.scheduler.ListTasks(status, 0)))

	case "logs":
		if len(args) < 2 {
			fmt.Println(errorStyle.Render("Usage: task logs <id>"))
			return
		}
		logs := r.scheduler.GetLogs(args[1])
		if logs == nil {
			fmt.Println(errorStyle.Render("No task with ID " + args[1]))
			return
		}
		for _, line := range logs {
			fmt.Println(infoStyle.Render("  " + line))
		}

	case "cancel":
		if len(args) < 2 {
			fmt.Println(errorStyle.Render("Usage: task cancel <id>"))
			return
		}
		if r.scheduler.Cancel(args[1]) {
			fmt.Println(successStyle.Render("Cancelled task " + args[1]))
		} else {
			fmt.Println(errorStyle.Render("Cannot cancel task " + args[1]))
		}

	case "clear":
		n := r.scheduler.ClearCompleted()
		fmt.Println(infoStyle.Render(fmt.Sprintf("Removed %d finished tasks", n)))

	default:
		fmt.Println(errorStyle.Render("Unknown task subcommand: " + args[0]))
	}
}

// =============================================================================
// PLAN COMMANDS
// =============================================================================

func (r *REPL) handlePlan(ctx context.Context, args []string, input string) {
	if len(args) == 0 {
		fmt.Println(errorStyle.Render("Usage: plan <goal> | status | approve | skip | run | cancel | list"))
		return
	}

	switch args[0] {
	case "status":
		p := r.activePlan()
		if p == nil {
			return
		}
		fmt.Println(renderPlan(p))

	case "approve":
		p := r.activePlan()
		if p == nil {
			return
		}
		if len(args) > 1 && args[1] != "all" {
			step := r.stepByOrder(p, args[1])
			if step == nil {
				return
			}
			if r.engine.ApproveStep(p.ID, step.ID) {
				fmt.Println(successStyle.Render(fmt.Sprintf("Approved step %d", step.Order)))
			} else {
				fmt.Println(errorStyle.Render(fmt.Sprintf("Step %d is not pending", step.Order)))
			}
			return
		}
		n := r.engine.ApproveAll(p.ID)
		fmt.Println(successStyle.Render(fmt.Sprintf("Approved %d steps", n)))

	case "skip":
		p := r.activePlan()
		if p == nil {
			return
		}
		if len(args) < 2 {
			fmt.Println(errorStyle.Render("Usage: plan skip <n>"))
			return
		}
		step := r.stepByOrder(p, args[1])
		if step == nil {
			return
		}
		if r.engine.SkipStep(p.ID, step.ID) {
			fmt.Println(infoStyle.Render(fmt.Sprintf("Skipped step %d", step.Order)))
		} else {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Step %d cannot be skipped", step.Order)))
		}

	case "run":
		p := r.activePlan()
		if p == nil {
			return
		}
		step := r.runner.ExecuteNext(ctx, p.ID)
		if step == nil {
			fmt.Println(infoStyle.Render("No approved steps to run."))
			return
		}
		if step.Status == plan.StepFailed {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Step %d failed: %s", step.Order, step.Error)))
		} else {
			fmt.Println(successStyle.Render(fmt.Sprintf("Step %d completed (%s)", step.Order, util.FormatDuration(step.Duration))))
			if step.Result != "" {
				fmt.Println(infoStyle.Render("  " + util.TruncateRunes(step.Result, 200)))
			}
		}
		r.recordPlanIfFinished(ctx, p.ID)

	case "cancel":
		p := r.activePlan()
		if p == nil {
			return
		}
		r.engine.CancelPlan(p.ID)
		r.session.Drop(p.ID)
		fmt.Println(infoStyle.Render("Cancelled plan " + p.ID))
		r.recordPlan(ctx, r.engine.GetPlan(p.ID))

	case "list":
		plans := r.engine.ListPlans()
		if len(plans) == 0 {
			fmt.Println(infoStyle.Render("No plans."))
			return
		}
		for _, p := range plans {
			fmt.Println(infoStyle.Render(fmt.Sprintf("[%s] %s - %s (%d%%)", p.ID,
				util.TruncateRunes(p.Goal, 50), p.Status, int(p.Progress()*100))))
		}

	default:
		// Everything else is a goal to plan for.
		goal := strings.TrimSpace(strings.TrimPrefix(input, "plan"))
		r.generatePlan(ctx, goal)
	}
}

func (r *REPL) generatePlan(ctx context.Context, goal string) {
	fmt.Println(infoStyle.Render("Generating plan..."))
	p, err := r.engine.Generate(ctx, goal, r.provider, "")
	if err != nil {
		fmt.Println(errorStyle.Render("Plan generation failed: " + err.Error()))
		return
	}
	r.session.SetActive(p.ID)
	fmt.Println(renderPlan(p))
	fmt.Println(infoStyle.Render("Approve steps with 'plan approve all' or 'plan approve <n>'."))
}

// activePlan returns a snapshot of the session's active plan, printing a
// hint when there is none.
func (r *REPL) activePlan() *plan.Plan {
	id := r.session.ActiveID()
	if id == "" {
		fmt.Println(errorStyle.Render("No active plan. Create one with 'plan <goal>'."))
		return nil
	}
	p := r.engine.GetPlan(id)
	if p == nil {
		r.session.Drop(id)
		fmt.Println(errorStyle.Render("Active plan no longer exists."))
		return nil
	}
	return p
}

// stepByOrder resolves a 1-based step number argument against a plan
// snapshot, printing the error on failure.
func (r *REPL) stepByOrder(p *plan.Plan, arg string) *plan.PlanStep {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(p.Steps) {
		fmt.Println(errorStyle.Render(fmt.Sprintf("No step %q (plan has %d steps)", arg, len(p.Steps))))
		return nil
	}
	return p.Steps[n-1]
}

func (r *REPL) recordPlanIfFinished(ctx context.Context, planID string) {
	p := r.engine.GetPlan(planID)
	if p == nil || p.Status != plan.StatusCompleted {
		return
	}
	r.session.Drop(planID)
	r.recordPlan(ctx, p)
	fmt.Println(successStyle.Render("Plan " + planID + " completed."))
}

func (r *REPL) recordPlan(ctx context.Context, p *plan.Plan) {
	if r.store == nil || p == nil {
		return
	}
	done := 0
	for _, s := range p.Steps {
		if s.Status.IsTerminal() {
			done++
		}
	}
	rec := history.PlanRecord{
		ID:         p.ID,
		Goal:       p.Goal,
		Status:     p.Status.String(),
		StepsTotal: len(p.Steps),
		StepsDone:  done,
		CreatedAt:  p.CreatedAt,
		FinishedAt: time.Now(),
	}
	if err := r.store.RecordPlan(ctx, rec); err != nil {
		r.log.Warn().Err(err).Str("plan_id", p.ID).Msg("failed to record plan run")
	}
}

// =============================================================================
// TOOLS AND HISTORY COMMANDS
// =============================================================================

func (r *REPL) handleTools() {
	for _, name := range r.registry.Names() {
		tool := r.registry.Get(name)
		marker := " "
		if tool.RequiresApproval {
			marker = warningStyle.Render("!")
		}
		fmt.Printf("  %s %s - %s\n", marker, name, tool.Description)
	}
}

func (r *REPL) handleHistory(ctx context.Context) {
	if r.store == nil {
		fmt.Println(infoStyle.Render("Run history is disabled."))
		return
	}
	records, err := r.store.ListTasks(ctx, 10)
	if err != nil {
		fmt.Println(errorStyle.Render("Failed to read history: " + err.Error()))
		return
	}
	if len(records) == 0 {
		fmt.Println(infoStyle.Render("No recorded runs."))
		return
	}
	for _, rec := range records {
		fmt.Println(infoStyle.Render(fmt.Sprintf("[%s] %s - %s (%s)", rec.ID,
			util.TruncateRunes(rec.Goal, 50), rec.Status,
			rec.FinishedAt.Format("2006-01-02 15:04"))))
	}
}

// Package executor runs validated query plans: dependency phases execute in
// order, steps inside a phase fan out with bounded parallelism, and per-step
// plus whole-plan deadlines keep one slow collaborator from stalling the
// pipeline. Step failures are contained; the merged evidence bundle reflects
// whatever the surviving steps produced.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hindsight-ai/hindsight/pkg/agent/actions"
	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

const (
	// MaxPlanTimeout caps one plan's wall clock. Checked at phase
	// boundaries; in-flight steps still finish under their own deadlines.
	MaxPlanTimeout = 30 * time.Second

	// maxWorkers caps concurrent steps within one phase.
	maxWorkers = 4
)

type Executor struct {
	logger   *log.Logger
	registry *actions.Registry
	deps     actions.Deps

	// planTimeout defaults to MaxPlanTimeout; tests shrink it.
	planTimeout time.Duration
}

func New(logger *log.Logger, registry *actions.Registry, deps actions.Deps) *Executor {
	return &Executor{
		logger:      logger,
		registry:    registry,
		deps:        deps,
		planTimeout: MaxPlanTimeout,
	}
}

// Execute runs one plan to completion and assembles the evidence bundle.
// It errors only on structurally invalid input; step failures are folded
// into the result.
func (e *Executor) Execute(ctx context.Context, plan *types.QueryPlan) (*types.ExecutionResult, error) {
	if plan == nil {
		return nil, errors.New("nil plan")
	}
	phases, err := plan.ExecutionOrder()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	deadline := start.Add(e.planTimeout)
	state := types.NewExecutionContext()

	e.logger.Info("Executing plan",
		"plan_id", plan.PlanID, "query_type", plan.QueryType,
		"steps", len(plan.Steps), "phases", len(phases))

	for i, phase := range phases {
		if time.Now().After(deadline) {
			e.logger.Warn("Plan deadline exceeded, skipping remaining phases",
				"plan_id", plan.PlanID, "completed_phases", i, "skipped_phases", len(phases)-i)
			break
		}
		e.runPhase(ctx, plan, phase, state)
	}

	result := e.assemble(plan, state, time.Since(start))
	e.logger.Info("Plan finished",
		"plan_id", plan.PlanID, "success", result.Success,
		"completed", result.StepsCompleted, "failed", result.StepsFailed,
		"notes", len(result.MergedNotes), "duration_ms", result.TotalExecutionTimeMs)
	return result, nil
}

// Outcome pairs an async execution's result with its terminal error.
type Outcome struct {
	Result *types.ExecutionResult
	Err    error
}

// ExecuteAsync offloads Execute onto a goroutine with identical semantics.
// The returned channel is buffered and receives exactly one Outcome.
func (e *Executor) ExecuteAsync(ctx context.Context, plan *types.QueryPlan) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		result, err := e.Execute(ctx, plan)
		out <- Outcome{Result: result, Err: err}
	}()
	return out
}

// runPhase executes one phase and applies its results to the context after
// the phase joins, in step-declaration order. Actions therefore only ever
// read a context that no goroutine is writing.
func (e *Executor) runPhase(ctx context.Context, plan *types.QueryPlan, phase []string, state *types.ExecutionContext) {
	if len(phase) == 1 {
		if step, ok := plan.Step(phase[0]); ok {
			state.AddResult(e.runStep(ctx, step, state))
		}
		return
	}

	results := make([]types.StepResult, len(phase))
	sem := make(chan struct{}, min(maxWorkers, len(phase)))
	var wg sync.WaitGroup
	for i, id := range phase {
		step, ok := plan.Step(id)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, step types.PlanStep) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.runStep(ctx, step, state)
		}(i, step)
	}
	wg.Wait()

	for _, res := range results {
		if res.StepID == "" && res.Action == "" {
			continue
		}
		state.AddResult(res)
	}
}

// runStep resolves and executes one step under its own deadline.
func (e *Executor) runStep(ctx context.Context, step types.PlanStep, state *types.ExecutionContext) types.StepResult {
	action := e.registry.Create(step.Action, e.deps)
	if action == nil {
		e.logger.Error("Unknown action", "step_id", step.StepID, "action", step.Action)
		return types.StepResult{
			StepID: step.StepID,
			Action: step.Action,
			Error:  fmt.Sprintf("Unknown action: %s", step.Action),
		}
	}

	params := make(map[string]any, len(step.Params)+1)
	for k, v := range step.Params {
		params[k] = v
	}
	params["step_id"] = step.StepID

	timeout := time.Duration(step.TimeoutSeconds * float64(time.Second))
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan types.StepResult, 1)
	go func() {
		resultCh <- actions.Execute(stepCtx, action, params, state)
	}()

	var res types.StepResult
	select {
	case res = <-resultCh:
	case <-stepCtx.Done():
		// The abandoned goroutine's eventual result is discarded; the
		// buffered channel lets it exit.
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			res = types.StepResult{
				StepID:          step.StepID,
				Action:          step.Action,
				Error:           "Execution timeout",
				ExecutionTimeMs: int64(step.TimeoutSeconds * 1000),
			}
		} else {
			res = types.StepResult{
				StepID: step.StepID,
				Action: step.Action,
				Error:  stepCtx.Err().Error(),
			}
		}
	}

	if !res.Success {
		if step.Required {
			e.logger.Warn("Required step failed, continuing",
				"step_id", step.StepID, "action", step.Action, "error", res.Error)
		} else {
			e.logger.Debug("Optional step failed",
				"step_id", step.StepID, "action", step.Action, "error", res.Error)
		}
	}
	return res
}

// assemble builds the evidence bundle from the accumulated context.
func (e *Executor) assemble(plan *types.QueryPlan, state *types.ExecutionContext, elapsed time.Duration) *types.ExecutionResult {
	stepResults := state.StepResults()

	result := &types.ExecutionResult{
		PlanID:               plan.PlanID,
		Query:                plan.Query,
		TotalExecutionTimeMs: elapsed.Milliseconds(),
		MergedNotes:          state.Notes(),
		MergedEntities:       state.Entities(),
		Aggregates:           state.Aggregates(),
		WebResults:           state.WebResults(),
		StepResults:          stepResults,
	}
	types.SortNotesDesc(result.MergedNotes)

	for _, id := range state.ResultOrder() {
		res := stepResults[id]
		if res.Success {
			result.StepsCompleted++
		} else {
			result.StepsFailed++
		}
		if res.Result == nil {
			continue
		}
		if patterns, ok := res.Result["patterns"].([]types.Pattern); ok {
			result.Patterns = append(result.Patterns, patterns...)
		}
		if result.Comparison == nil {
			if _, ok := res.Result["period_a_description"]; ok {
				result.Comparison = res.Result
			}
		}
	}

	result.Success = result.StepsCompleted > 0 || len(result.MergedNotes) > 0

	if plan.IsFallback() {
		result.FallbackUsed = true
		result.FallbackReason = plan.Reasoning
	}
	return result
}

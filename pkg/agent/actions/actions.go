// Package actions implements the atomic operations plan steps invoke:
// retrieval over the note store and vector index, entity-graph traversal,
// LLM-backed analysis, result merging, and external web search. Every action
// runs under the same contract: it never panics or errors across the step
// boundary, it measures its own wall clock, and it applies documented
// defaults for missing optional params.
package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

// Action is one atomic operation. Run returns the action-defined result
// mapping; keys the executor lifts into the shared context are "notes",
// "entities", "related_entities", "aggregates" and "web_results".
type Action interface {
	Name() types.ActionName
	Run(ctx context.Context, params map[string]any, state *types.ExecutionContext) (map[string]any, error)
}

// Execute runs one action under the uniform StepResult contract: wall-clock
// timing, panic recovery, and error folding. The executor injects "step_id"
// into params before calling.
func Execute(ctx context.Context, action Action, params map[string]any, state *types.ExecutionContext) types.StepResult {
	start := time.Now()
	res := types.StepResult{
		StepID: stringParam(params, "step_id", ""),
		Action: action.Name(),
	}

	out, err := runRecovering(ctx, action, params, state)
	res.ExecutionTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Result = out
	return res
}

func runRecovering(ctx context.Context, action Action, params map[string]any, state *types.ExecutionContext) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", action.Name(), r)
		}
	}()
	return action.Run(ctx, params, state)
}

// Package pipeline chains the classifier, planner and executor into the
// single entry point the server exposes: classify the query, pick the
// cheapest planning mode that fits, execute, and publish the evidence bundle.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/hindsight-ai/hindsight/pkg/agent/actions"
	"github.com/hindsight-ai/hindsight/pkg/agent/classifier"
	"github.com/hindsight-ai/hindsight/pkg/agent/executor"
	"github.com/hindsight-ai/hindsight/pkg/agent/planner"
	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

// ResultSubject carries every finished execution result as JSON.
const ResultSubject = "hindsight.query.result"

const (
	directMaxDays = 5
	directTimeout = 10 * time.Second

	dataSummary = "hourly and daily activity notes, an entity graph with typed edges, " +
		"and time-spent aggregates keyed by app, domain, topic, artist, track and category"
)

type Pipeline struct {
	logger     *log.Logger
	classifier *classifier.Classifier
	planner    *planner.Planner
	executor   *executor.Executor
	registry   *actions.Registry
	deps       actions.Deps
	nc         *nats.Conn
	now        func() time.Time
}

// New wires a pipeline. nc may be nil; results are then only returned, not
// published.
func New(logger *log.Logger, pln *planner.Planner, registry *actions.Registry, deps actions.Deps, nc *nats.Conn) *Pipeline {
	return &Pipeline{
		logger:     logger,
		classifier: classifier.NewClassifier(logger),
		planner:    pln,
		executor:   executor.New(logger, registry, deps),
		registry:   registry,
		deps:       deps,
		nc:         nc,
		now:        time.Now,
	}
}

// Process answers one query end to end. Simple queries short-circuit to a
// single retrieval; complex ones are planned and executed. The returned
// result is also published to ResultSubject when a NATS connection is wired.
func (p *Pipeline) Process(ctx context.Context, query string) (*types.ExecutionResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}

	cls := p.classifier.Classify(query)
	p.logger.Info("Classified query",
		"query_type", cls.QueryType, "is_complex", cls.IsComplex, "confidence", cls.Confidence)

	var result *types.ExecutionResult
	if cls.IsComplex {
		plan := p.planFor(ctx, cls, query)
		var err error
		result, err = p.executor.Execute(ctx, plan)
		if err != nil {
			return nil, err
		}
	} else {
		result = p.directAnswer(ctx, query)
	}

	p.publish(result)
	return result, nil
}

// planFor picks the planning mode: template topologies for the query types
// that have one, the LLM for everything else.
func (p *Pipeline) planFor(ctx context.Context, cls classifier.Classification, query string) *types.QueryPlan {
	switch cls.QueryType {
	case types.QueryTypeRelationship, types.QueryTypeMemoryRecall, types.QueryTypeComparison,
		types.QueryTypeCorrelation, types.QueryTypeWebAugmented:
		return p.planner.PlanForType(ctx, query, cls.QueryType, timeHint(query))
	default:
		return p.planner.Plan(ctx, query, p.timeContext(), dataSummary)
	}
}

// directAnswer is the simple-query bypass: one hierarchical search over
// recent days, no plan, wrapped into the same result shape executions
// produce.
func (p *Pipeline) directAnswer(ctx context.Context, query string) *types.ExecutionResult {
	start := time.Now()
	state := types.NewExecutionContext()

	var res types.StepResult
	if action := p.registry.Create(types.ActionHierarchicalSearch, p.deps); action != nil {
		stepCtx, cancel := context.WithTimeout(ctx, directTimeout)
		defer cancel()
		res = actions.Execute(stepCtx, action, map[string]any{
			"step_id":  "direct",
			"query":    query,
			"max_days": directMaxDays,
		}, state)
	} else {
		res = types.StepResult{
			StepID: "direct",
			Action: types.ActionHierarchicalSearch,
			Error:  fmt.Sprintf("Unknown action: %s", types.ActionHierarchicalSearch),
		}
	}
	state.AddResult(res)

	completed, failed := 1, 0
	if !res.Success {
		completed, failed = 0, 1
		p.logger.Warn("Direct retrieval failed", "error", res.Error)
	}

	notes := state.Notes()
	types.SortNotesDesc(notes)
	return &types.ExecutionResult{
		PlanID:               "simple-" + uuid.NewString()[:8],
		Query:                query,
		Success:              res.Success,
		StepsCompleted:       completed,
		StepsFailed:          failed,
		TotalExecutionTimeMs: time.Since(start).Milliseconds(),
		MergedNotes:          notes,
		MergedEntities:       state.Entities(),
		Aggregates:           state.Aggregates(),
		WebResults:           state.WebResults(),
		StepResults:          state.StepResults(),
	}
}

func (p *Pipeline) publish(result *types.ExecutionResult) {
	if p.nc == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		p.logger.Error("Failed to encode result for publishing", "error", err)
		return
	}
	if err := p.nc.Publish(ResultSubject, payload); err != nil {
		p.logger.Warn("Failed to publish result", "subject", ResultSubject, "error", err)
	}
}

func (p *Pipeline) timeContext() string {
	return p.now().Format("Monday, January 2, 2006 at 15:04")
}

// timeHint pulls the first relative time phrase out of a query so template
// plans can scope their retrieval steps. The phrase vocabulary matches what
// pkg/timeparse resolves.
var timeHintRe = regexp.MustCompile(`(?i)\b(today|yesterday|this week|last week|past week|this month|last month|past month|this year|(?:the )?(?:last|past) \d+ days?)\b`)

func timeHint(query string) string {
	return strings.ToLower(timeHintRe.FindString(query))
}

// Package planner turns complex queries into validated, acyclic query plans.
// Template plans cover the recurring query types; everything else goes
// through the LLM with a correction loop, and a static fallback guarantees
// callers always get a usable plan.
package planner

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/pkg/errors"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
	"github.com/hindsight-ai/hindsight/pkg/ai"
)

const (
	maxPlanAttempts     = 3
	planTemperature     = 0.2
	planMaxTokens       = 2000
	fallbackPlanMaxDays = 5
)

// CompletionService is the slice of the ai service the planner needs.
type CompletionService interface {
	CompletionJSON(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, model string, opts ...ai.CompletionOption) (string, error)
}

type Planner struct {
	logger *log.Logger
	ai     CompletionService
	model  string
}

func NewPlanner(logger *log.Logger, aiService CompletionService, model string) *Planner {
	return &Planner{logger: logger, ai: aiService, model: model}
}

// Plan asks the LLM for a plan and validates it, feeding parse or validation
// errors back as correction messages for up to three attempts. It never
// returns an error: exhausted attempts (or an unusable LLM) produce the
// static fallback plan.
func (p *Planner) Plan(ctx context.Context, query, timeContext, dataSummary string) *types.QueryPlan {
	if p.ai == nil {
		return p.fallbackPlan(query, "no completion service configured")
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt()),
		openai.UserMessage(userPrompt(query, timeContext, dataSummary)),
	}

	var lastErr error
	for attempt := 1; attempt <= maxPlanAttempts; attempt++ {
		if ctx.Err() != nil {
			return p.fallbackPlan(query, "planning canceled: "+ctx.Err().Error())
		}

		raw, err := p.ai.CompletionJSON(ctx, messages, p.model,
			ai.WithTemperature(planTemperature),
			ai.WithMaxTokens(planMaxTokens),
		)
		if err != nil {
			lastErr = err
			p.logger.Warn("Plan completion failed", "attempt", attempt, "error", err)
			continue
		}

		plan, err := p.parsePlan(query, raw)
		if err == nil {
			p.logger.Info("LLM plan accepted",
				"plan_id", plan.PlanID, "query_type", plan.QueryType,
				"steps", len(plan.Steps), "attempt", attempt)
			return plan
		}

		lastErr = err
		p.logger.Warn("Rejected LLM plan", "attempt", attempt, "error", err)
		// The correction round carries the rejected response verbatim so the
		// model can repair it instead of starting over.
		messages = append(messages,
			openai.AssistantMessage(raw),
			openai.UserMessage(correctionPrompt(err)),
		)
	}

	reason := "exhausted plan attempts"
	if lastErr != nil {
		reason = "exhausted plan attempts: " + lastErr.Error()
	}
	return p.fallbackPlan(query, reason)
}

// parsePlan decodes one LLM response into a normalized, validated QueryPlan.
func (p *Planner) parsePlan(query, raw string) (*types.QueryPlan, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var envelope planEnvelope
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return nil, errors.Wrap(err, "response is not valid JSON")
	}

	plan := &types.QueryPlan{
		PlanID:               uuid.NewString(),
		Query:                query,
		QueryType:            types.QueryType(envelope.QueryType),
		Reasoning:            envelope.Reasoning,
		Steps:                envelope.Steps,
		EstimatedTimeSeconds: envelope.EstimatedTimeSeconds,
		RequiresWebSearch:    envelope.RequiresWebSearch,
	}
	plan.Normalize()
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// fallbackPlan is the guaranteed-valid plan of last resort: one required
// hierarchical search over recent days.
func (p *Planner) fallbackPlan(query, reason string) *types.QueryPlan {
	p.logger.Warn("Using static fallback plan", "reason", reason)
	plan := &types.QueryPlan{
		PlanID:    "fallback-" + uuid.NewString()[:8],
		Query:     query,
		QueryType: types.QueryTypeSimple,
		Reasoning: "fallback plan: " + reason,
		Steps: []types.PlanStep{
			{
				StepID:         "s1",
				Action:         types.ActionHierarchicalSearch,
				Params:         map[string]any{"query": query, "max_days": fallbackPlanMaxDays},
				Required:       true,
				TimeoutSeconds: 10,
				Description:    "recent-days hierarchical retrieval",
			},
		},
		EstimatedTimeSeconds: 10,
	}
	return plan
}

package planner

import (
	"context"

	"github.com/google/uuid"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

// PlanForType returns the fixed topology for query types that do not need
// LLM planning. multi_entity and anything unrecognized delegate to Plan.
// timeFilterDescription, when non-empty, is embedded into the retrieval
// steps' params for the actions' own time parsing.
func (p *Planner) PlanForType(ctx context.Context, query string, queryType types.QueryType, timeFilterDescription string) *types.QueryPlan {
	var plan *types.QueryPlan
	switch queryType {
	case types.QueryTypeRelationship:
		plan = relationshipTemplate(query)
	case types.QueryTypeMemoryRecall:
		plan = memoryRecallTemplate(query)
	case types.QueryTypeComparison:
		plan = comparisonTemplate(query)
	case types.QueryTypeCorrelation:
		plan = correlationTemplate(query)
	case types.QueryTypeWebAugmented:
		plan = webAugmentedTemplate(query)
	default:
		return p.Plan(ctx, query, timeFilterDescription, "")
	}

	if timeFilterDescription != "" {
		embedTimeFilter(plan, timeFilterDescription)
	}
	plan.Normalize()
	p.logger.Debug("Built template plan",
		"plan_id", plan.PlanID, "query_type", plan.QueryType, "steps", len(plan.Steps))
	return plan
}

// timeFilterActions are the actions whose params accept a time_filter.
var timeFilterActions = map[types.ActionName]bool{
	types.ActionSemanticSearch:     true,
	types.ActionEntitySearch:       true,
	types.ActionHierarchicalSearch: true,
	types.ActionTimeRangeNotes:     true,
	types.ActionAggregatesQuery:    true,
}

func embedTimeFilter(plan *types.QueryPlan, description string) {
	for i := range plan.Steps {
		if timeFilterActions[plan.Steps[i].Action] {
			plan.Steps[i].Params["time_filter"] = description
		}
	}
}

func newTemplatePlan(query string, queryType types.QueryType, reasoning string, estimate float64, steps ...types.PlanStep) *types.QueryPlan {
	return &types.QueryPlan{
		PlanID:               uuid.NewString(),
		Query:                query,
		QueryType:            queryType,
		Reasoning:            reasoning,
		Steps:                steps,
		EstimatedTimeSeconds: estimate,
	}
}

func relationshipTemplate(query string) *types.QueryPlan {
	return newTemplatePlan(query, types.QueryTypeRelationship,
		"fixed relationship topology: broad semantic recall plus hierarchical context, merged", 8,
		types.PlanStep{
			StepID:         "s1",
			Action:         types.ActionSemanticSearch,
			Params:         map[string]any{"query": query, "limit": 10},
			Required:       true,
			TimeoutSeconds: 10,
			Description:    "semantic recall of related notes",
		},
		types.PlanStep{
			StepID:         "s2",
			Action:         types.ActionHierarchicalSearch,
			Params:         map[string]any{"query": query, "max_days": 5},
			TimeoutSeconds: 10,
			Description:    "day-then-hour context around the activity",
		},
		types.PlanStep{
			StepID:         "s3",
			Action:         types.ActionMergeResults,
			Params:         map[string]any{"result_refs": []string{"s1", "s2"}},
			DependsOn:      []string{"s1", "s2"},
			Required:       true,
			TimeoutSeconds: 10,
			Description:    "merge both retrieval passes",
		},
	)
}

func memoryRecallTemplate(query string) *types.QueryPlan {
	return newTemplatePlan(query, types.QueryTypeMemoryRecall,
		"fixed memory-recall topology: wide semantic recall plus a deeper hierarchical sweep, merged", 10,
		types.PlanStep{
			StepID:         "s1",
			Action:         types.ActionSemanticSearch,
			Params:         map[string]any{"query": query, "limit": 15},
			Required:       true,
			TimeoutSeconds: 10,
			Description:    "wide semantic recall for the half-remembered item",
		},
		types.PlanStep{
			StepID:         "s2",
			Action:         types.ActionHierarchicalSearch,
			Params:         map[string]any{"query": query, "max_days": 7},
			TimeoutSeconds: 10,
			Description:    "hierarchical sweep over more days",
		},
		types.PlanStep{
			StepID:         "s3",
			Action:         types.ActionMergeResults,
			Params:         map[string]any{"result_refs": []string{"s1", "s2"}},
			DependsOn:      []string{"s1", "s2"},
			Required:       true,
			TimeoutSeconds: 10,
			Description:    "merge both retrieval passes",
		},
	)
}

func comparisonTemplate(query string) *types.QueryPlan {
	return newTemplatePlan(query, types.QueryTypeComparison,
		"fixed comparison topology: notes plus app and category rollups, merged", 12,
		types.PlanStep{
			StepID:         "s1",
			Action:         types.ActionSemanticSearch,
			Params:         map[string]any{"query": query, "limit": 20},
			Required:       true,
			TimeoutSeconds: 10,
			Description:    "notes relevant to the comparison",
		},
		types.PlanStep{
			StepID:         "s2",
			Action:         types.ActionAggregatesQuery,
			Params:         map[string]any{"key_type": "app", "limit": 10},
			TimeoutSeconds: 10,
			Description:    "top apps by time spent",
		},
		types.PlanStep{
			StepID:         "s3",
			Action:         types.ActionAggregatesQuery,
			Params:         map[string]any{"key_type": "category", "limit": 10},
			TimeoutSeconds: 10,
			Description:    "top categories by time spent",
		},
		types.PlanStep{
			StepID:         "s4",
			Action:         types.ActionMergeResults,
			Params:         map[string]any{"result_refs": []string{"s1", "s2", "s3"}},
			DependsOn:      []string{"s1", "s2", "s3"},
			Required:       true,
			TimeoutSeconds: 10,
			Description:    "merge notes and rollups",
		},
	)
}

func correlationTemplate(query string) *types.QueryPlan {
	return newTemplatePlan(query, types.QueryTypeCorrelation,
		"fixed correlation topology: wide recall feeding LLM pattern extraction", 15,
		types.PlanStep{
			StepID:         "s1",
			Action:         types.ActionSemanticSearch,
			Params:         map[string]any{"query": query, "limit": 20},
			Required:       true,
			TimeoutSeconds: 10,
			Description:    "wide recall of candidate notes",
		},
		types.PlanStep{
			StepID:         "s2",
			Action:         types.ActionExtractPatterns,
			Params:         map[string]any{"pattern_type": "correlation", "notes_ref": "s1"},
			DependsOn:      []string{"s1"},
			TimeoutSeconds: 15,
			Description:    "mine behavioral patterns from the recalled notes",
		},
	)
}

func webAugmentedTemplate(query string) *types.QueryPlan {
	plan := newTemplatePlan(query, types.QueryTypeWebAugmented,
		"fixed web-augmented topology: personal recall plus current web results, merged", 12,
		types.PlanStep{
			StepID:         "s1",
			Action:         types.ActionSemanticSearch,
			Params:         map[string]any{"query": query, "limit": 10},
			Required:       true,
			TimeoutSeconds: 10,
			Description:    "personal notes on the topic",
		},
		types.PlanStep{
			StepID:         "s2",
			Action:         types.ActionWebSearch,
			Params:         map[string]any{"query": query, "max_results": 5},
			TimeoutSeconds: 15,
			Description:    "current information from the web",
		},
		types.PlanStep{
			StepID:         "s3",
			Action:         types.ActionMergeResults,
			Params:         map[string]any{"result_refs": []string{"s1", "s2"}},
			DependsOn:      []string{"s1", "s2"},
			Required:       true,
			TimeoutSeconds: 10,
			Description:    "merge personal and web evidence",
		},
	)
	plan.RequiresWebSearch = true
	return plan
}

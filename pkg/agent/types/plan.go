package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Structural limits enforced at plan-accept time.
const (
	MinStepTimeoutSeconds     = 1.0
	MaxStepTimeoutSeconds     = 30.0
	DefaultStepTimeoutSeconds = 10.0
	MaxPlanSteps              = 10
	MaxEstimatedTimeSeconds   = 30.0
)

// PlanStep is one atomic operation inside a plan. Params are action-specific
// and stay loosely typed so LLM-produced plans survive forward-compatible
// keys; each action applies its own documented defaults.
type PlanStep struct {
	StepID         string         `json:"step_id"`
	Action         ActionName     `json:"action"`
	Params         map[string]any `json:"params,omitempty"`
	DependsOn      []string       `json:"depends_on,omitempty"`
	Required       bool           `json:"required"`
	TimeoutSeconds float64        `json:"timeout_seconds"`
	Description    string         `json:"description,omitempty"`
}

// QueryPlan is an acyclic graph of steps plus planning metadata. Plans are
// immutable after Normalize/Validate and executed exactly once.
type QueryPlan struct {
	PlanID               string     `json:"plan_id"`
	Query                string     `json:"query"`
	QueryType            QueryType  `json:"query_type"`
	Reasoning            string     `json:"reasoning,omitempty"`
	Steps                []PlanStep `json:"steps"`
	EstimatedTimeSeconds float64    `json:"estimated_time_seconds"`
	RequiresWebSearch    bool       `json:"requires_web_search"`
}

// InvalidPlanError reports why a plan was rejected at accept time. The
// planner feeds Reason back to the LLM on retry.
type InvalidPlanError struct {
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return "invalid plan: " + e.Reason
}

func invalidPlanf(format string, args ...any) error {
	return &InvalidPlanError{Reason: fmt.Sprintf(format, args...)}
}

// Normalize assigns missing step ids and clamps per-step timeouts into
// [MinStepTimeoutSeconds, MaxStepTimeoutSeconds]. Auto-assigned ids are
// index-based (s1, s2, ...) with a random suffix on collision.
func (p *QueryPlan) Normalize() {
	taken := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.StepID != "" {
			taken[s.StepID] = true
		}
	}
	for i := range p.Steps {
		step := &p.Steps[i]
		if step.StepID == "" {
			id := fmt.Sprintf("s%d", i+1)
			for taken[id] {
				id = fmt.Sprintf("s%d-%s", i+1, uuid.NewString()[:8])
			}
			step.StepID = id
			taken[id] = true
		}
		switch {
		case step.TimeoutSeconds == 0:
			step.TimeoutSeconds = DefaultStepTimeoutSeconds
		case step.TimeoutSeconds < MinStepTimeoutSeconds:
			step.TimeoutSeconds = MinStepTimeoutSeconds
		case step.TimeoutSeconds > MaxStepTimeoutSeconds:
			step.TimeoutSeconds = MaxStepTimeoutSeconds
		}
	}
}

// Validate enforces the structural invariants: 1..MaxPlanSteps steps, unique
// non-empty step ids, dependencies that reference existing steps, timeouts
// and estimates in range, and an acyclic dependency graph. Action names are
// deliberately not checked here; unknown actions surface as step failures at
// execution time.
func (p *QueryPlan) Validate() error {
	if len(p.Steps) == 0 {
		return invalidPlanf("plan has no steps")
	}
	if len(p.Steps) > MaxPlanSteps {
		return invalidPlanf("plan has %d steps, maximum is %d", len(p.Steps), MaxPlanSteps)
	}
	if p.EstimatedTimeSeconds < 0 || p.EstimatedTimeSeconds > MaxEstimatedTimeSeconds {
		return invalidPlanf("estimated_time_seconds %.1f outside [0, %.0f]", p.EstimatedTimeSeconds, MaxEstimatedTimeSeconds)
	}
	ids := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.StepID == "" {
			return invalidPlanf("step with action %q has no step_id", s.Action)
		}
		if ids[s.StepID] {
			return invalidPlanf("duplicate step_id %q", s.StepID)
		}
		ids[s.StepID] = true
	}
	for _, s := range p.Steps {
		if s.Action == "" {
			return invalidPlanf("step %q has no action", s.StepID)
		}
		if s.TimeoutSeconds < MinStepTimeoutSeconds || s.TimeoutSeconds > MaxStepTimeoutSeconds {
			return invalidPlanf("step %q timeout %.1fs outside [%.0f, %.0f]",
				s.StepID, s.TimeoutSeconds, MinStepTimeoutSeconds, MaxStepTimeoutSeconds)
		}
		for _, dep := range s.DependsOn {
			if !ids[dep] {
				return invalidPlanf("step %q depends on unknown step %q", s.StepID, dep)
			}
			if dep == s.StepID {
				return invalidPlanf("step %q depends on itself", s.StepID)
			}
		}
	}
	if _, err := p.ExecutionOrder(); err != nil {
		return err
	}
	return nil
}

// ExecutionOrder groups steps into phases: each iteration collects every
// pending step whose dependencies are already completed. Steps within a phase
// carry no ordering between them. Returns InvalidPlanError when pending steps
// never become ready.
func (p *QueryPlan) ExecutionOrder() ([][]string, error) {
	completed := make(map[string]bool, len(p.Steps))
	pending := make([]PlanStep, len(p.Steps))
	copy(pending, p.Steps)

	var phases [][]string
	for len(pending) > 0 {
		var ready []string
		rest := pending[:0:0]
		for _, s := range pending {
			satisfied := true
			for _, dep := range s.DependsOn {
				if !completed[dep] {
					satisfied = false
					break
				}
			}
			if satisfied {
				ready = append(ready, s.StepID)
			} else {
				rest = append(rest, s)
			}
		}
		if len(ready) == 0 {
			stuck := make([]string, 0, len(rest))
			for _, s := range rest {
				stuck = append(stuck, s.StepID)
			}
			sort.Strings(stuck)
			return nil, invalidPlanf("circular dependency among steps: %s", strings.Join(stuck, ", "))
		}
		for _, id := range ready {
			completed[id] = true
		}
		phases = append(phases, ready)
		pending = rest
	}
	return phases, nil
}

// IsFallback reports whether this plan came from the planner's static
// fallback path. The executor surfaces this on the execution result.
func (p *QueryPlan) IsFallback() bool {
	return strings.HasPrefix(p.PlanID, "fallback-")
}

// Step returns the step with the given id.
func (p *QueryPlan) Step(id string) (PlanStep, bool) {
	for _, s := range p.Steps {
		if s.StepID == id {
			return s, true
		}
	}
	return PlanStep{}, false
}

package types

import (
	"sort"
	"sync"
)

// StepResult records the outcome of one executed plan step. Error is set iff
// Success is false. Result keys the executor understands ("notes",
// "entities", "related_entities", "aggregates", "web_results", "patterns",
// "period_a_description") get lifted into the shared context and the final
// bundle.
type StepResult struct {
	StepID          string         `json:"step_id"`
	Action          ActionName     `json:"action"`
	Success         bool           `json:"success"`
	Result          map[string]any `json:"result,omitempty"`
	Error           string         `json:"error,omitempty"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
}

// ExecutionContext accumulates step results and the typed artifacts lifted
// from them during one plan execution. The executor is the only writer and
// writes only between phases; actions read prior results concurrently within
// a phase, so reads never race writes. The mutex keeps the structure safe
// even under misuse.
type ExecutionContext struct {
	mu          sync.RWMutex
	stepResults map[string]StepResult
	order       []string

	notes      []Note
	noteIDs    map[string]struct{}
	entities   []Entity
	entityIDs  map[string]struct{}
	aggregates []Aggregate
	webResults []WebResult
}

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		stepResults: make(map[string]StepResult),
		noteIDs:     make(map[string]struct{}),
		entityIDs:   make(map[string]struct{}),
	}
}

// AddResult records a step outcome and, for successful steps, lifts notes,
// entities (from both "entities" and "related_entities"), aggregates and web
// results out of the result mapping. Notes dedup by note_id, entities by
// entity_id; aggregates and web results concatenate.
func (c *ExecutionContext) AddResult(res StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.stepResults[res.StepID]; !exists {
		c.order = append(c.order, res.StepID)
	}
	c.stepResults[res.StepID] = res

	if !res.Success || res.Result == nil {
		return
	}
	if notes, ok := res.Result["notes"].([]Note); ok {
		c.addNotesLocked(notes)
	}
	if ents, ok := res.Result["entities"].([]Entity); ok {
		c.addEntitiesLocked(ents)
	}
	if ents, ok := res.Result["related_entities"].([]Entity); ok {
		c.addEntitiesLocked(ents)
	}
	if aggs, ok := res.Result["aggregates"].([]Aggregate); ok {
		c.aggregates = append(c.aggregates, aggs...)
	}
	if web, ok := res.Result["web_results"].([]WebResult); ok {
		c.webResults = append(c.webResults, web...)
	}
}

func (c *ExecutionContext) addNotesLocked(notes []Note) {
	for _, n := range notes {
		if n.NoteID == "" {
			continue
		}
		if _, seen := c.noteIDs[n.NoteID]; seen {
			continue
		}
		c.noteIDs[n.NoteID] = struct{}{}
		c.notes = append(c.notes, n)
	}
}

func (c *ExecutionContext) addEntitiesLocked(ents []Entity) {
	for _, e := range ents {
		if e.EntityID == "" {
			continue
		}
		if _, seen := c.entityIDs[e.EntityID]; seen {
			continue
		}
		c.entityIDs[e.EntityID] = struct{}{}
		c.entities = append(c.entities, e)
	}
}

// Result returns the recorded outcome of a step.
func (c *ExecutionContext) Result(stepID string) (StepResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.stepResults[stepID]
	return res, ok
}

// StepResults returns a copy of the result map.
func (c *ExecutionContext) StepResults() map[string]StepResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]StepResult, len(c.stepResults))
	for id, res := range c.stepResults {
		out[id] = res
	}
	return out
}

// ResultOrder returns step ids in insertion order.
func (c *ExecutionContext) ResultOrder() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Notes returns a copy of the deduplicated accumulated notes in insertion
// order.
func (c *ExecutionContext) Notes() []Note {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Note, len(c.notes))
	copy(out, c.notes)
	return out
}

// Entities returns a copy of the deduplicated accumulated entities.
func (c *ExecutionContext) Entities() []Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entity, len(c.entities))
	copy(out, c.entities)
	return out
}

// Aggregates returns a copy of the accumulated aggregates.
func (c *ExecutionContext) Aggregates() []Aggregate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Aggregate, len(c.aggregates))
	copy(out, c.aggregates)
	return out
}

// WebResults returns a copy of the accumulated web results.
func (c *ExecutionContext) WebResults() []WebResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]WebResult, len(c.webResults))
	copy(out, c.webResults)
	return out
}

// ExecutionResult is the merged evidence bundle one plan execution produces
// for the downstream answer-synthesis layer.
type ExecutionResult struct {
	PlanID               string                `json:"plan_id"`
	Query                string                `json:"query"`
	Success              bool                  `json:"success"`
	StepsCompleted       int                   `json:"steps_completed"`
	StepsFailed          int                   `json:"steps_failed"`
	TotalExecutionTimeMs int64                 `json:"total_execution_time_ms"`
	MergedNotes          []Note                `json:"merged_notes"`
	MergedEntities       []Entity              `json:"merged_entities"`
	Aggregates           []Aggregate           `json:"aggregates"`
	WebResults           []WebResult           `json:"web_results"`
	Patterns             []Pattern             `json:"patterns,omitempty"`
	Comparison           map[string]any        `json:"comparison,omitempty"`
	FallbackUsed         bool                  `json:"fallback_used"`
	FallbackReason       string                `json:"fallback_reason,omitempty"`
	StepResults          map[string]StepResult `json:"step_results"`
}

// SortNotesDesc orders notes by start_ts descending, preserving insertion
// order between equal timestamps.
func SortNotesDesc(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].StartTS > notes[j].StartTS
	})
}

package actions

import (
	"context"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

type mergeResultsAction struct{ deps Deps }

func newMergeResults(deps Deps) Action { return &mergeResultsAction{deps} }

func (a *mergeResultsAction) Name() types.ActionName { return types.ActionMergeResults }

// Run merges the referenced steps' outputs: notes dedup by note_id, entities
// by entity_id (from both entities and related_entities), aggregates
// concatenate. The context's accumulated notes are drained into the merged
// set as well, so evidence gathered by unreferenced steps still surfaces.
// Notes come back sorted by start_ts descending.
func (a *mergeResultsAction) Run(_ context.Context, params map[string]any, state *types.ExecutionContext) (map[string]any, error) {
	refs := stringSliceParam(params, "result_refs")

	seenNotes := make(map[string]struct{})
	seenEntities := make(map[string]struct{})
	notes := []types.Note{}
	entities := []types.Entity{}
	aggregates := []types.Aggregate{}

	addNotes := func(in []types.Note) {
		for _, n := range in {
			if n.NoteID == "" {
				continue
			}
			if _, ok := seenNotes[n.NoteID]; ok {
				continue
			}
			seenNotes[n.NoteID] = struct{}{}
			notes = append(notes, n)
		}
	}
	addEntities := func(in []types.Entity) {
		for _, e := range in {
			if e.EntityID == "" {
				continue
			}
			if _, ok := seenEntities[e.EntityID]; ok {
				continue
			}
			seenEntities[e.EntityID] = struct{}{}
			entities = append(entities, e)
		}
	}

	for _, ref := range refs {
		res, ok := state.Result(ref)
		if !ok || !res.Success || res.Result == nil {
			continue
		}
		if n, ok := res.Result["notes"].([]types.Note); ok {
			addNotes(n)
		}
		if e, ok := res.Result["entities"].([]types.Entity); ok {
			addEntities(e)
		}
		if e, ok := res.Result["related_entities"].([]types.Entity); ok {
			addEntities(e)
		}
		if aggs, ok := res.Result["aggregates"].([]types.Aggregate); ok {
			aggregates = append(aggregates, aggs...)
		}
	}

	addNotes(state.Notes())
	types.SortNotesDesc(notes)

	return map[string]any{
		"notes":          notes,
		"entities":       entities,
		"aggregates":     aggregates,
		"total_notes":    len(notes),
		"total_entities": len(entities),
	}, nil
}

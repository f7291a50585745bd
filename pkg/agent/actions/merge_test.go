package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

func TestMergeDeduplicatesAndOrdersNotes(t *testing.T) {
	action := newMergeResults(newTestDeps(t))

	state := stateWithResults(
		successResult("s1", types.ActionSemanticSearch, map[string]any{
			"notes": []types.Note{
				{NoteID: "N1", StartTS: 100, Summary: "shared"},
				{NoteID: "N2", StartTS: 200, Summary: "only s1"},
			},
		}),
		successResult("s2", types.ActionHierarchicalSearch, map[string]any{
			"notes": []types.Note{
				{NoteID: "N1", StartTS: 100, Summary: "shared"},
				{NoteID: "N3", StartTS: 300, Summary: "only s2"},
			},
		}),
	)

	out, err := action.Run(context.Background(), map[string]any{
		"result_refs": []string{"s1", "s2"},
	}, state)
	require.NoError(t, err)

	notes, ok := out["notes"].([]types.Note)
	require.True(t, ok)
	require.Len(t, notes, 3)
	assert.Equal(t, "N3", notes[0].NoteID)
	assert.Equal(t, "N2", notes[1].NoteID)
	assert.Equal(t, "N1", notes[2].NoteID)
	assert.Equal(t, 3, out["total_notes"])
}

func TestMergeCollectsEntitiesAndAggregates(t *testing.T) {
	action := newMergeResults(newTestDeps(t))

	state := stateWithResults(
		successResult("s1", types.ActionEntitySearch, map[string]any{
			"entities": []types.Entity{{EntityID: "e1", CanonicalName: "Radiohead"}},
			"aggregates": []types.Aggregate{
				{KeyType: "app", Key: "Spotify", Minutes: 90},
			},
		}),
		successResult("s2", types.ActionGraphExpand, map[string]any{
			"related_entities": []types.Entity{
				{EntityID: "e1", CanonicalName: "Radiohead"},
				{EntityID: "e2", CanonicalName: "Spotify"},
			},
			"aggregates": []types.Aggregate{
				{KeyType: "app", Key: "VSCode", Minutes: 120},
			},
		}),
	)

	out, err := action.Run(context.Background(), map[string]any{
		"result_refs": []any{"s1", "s2"},
	}, state)
	require.NoError(t, err)

	entities, ok := out["entities"].([]types.Entity)
	require.True(t, ok)
	require.Len(t, entities, 2)
	assert.Equal(t, "e1", entities[0].EntityID)
	assert.Equal(t, "e2", entities[1].EntityID)
	assert.Equal(t, 2, out["total_entities"])

	aggregates, ok := out["aggregates"].([]types.Aggregate)
	require.True(t, ok)
	assert.Len(t, aggregates, 2)
}

func TestMergeSkipsFailedAndMissingRefs(t *testing.T) {
	action := newMergeResults(newTestDeps(t))

	state := stateWithResults(
		successResult("s1", types.ActionSemanticSearch, map[string]any{
			"notes": []types.Note{{NoteID: "N1", StartTS: 100, Summary: "good"}},
		}),
		types.StepResult{StepID: "s2", Action: types.ActionSemanticSearch, Error: "boom"},
	)

	out, err := action.Run(context.Background(), map[string]any{
		"result_refs": []string{"s1", "s2", "s9"},
	}, state)
	require.NoError(t, err)

	notes, ok := out["notes"].([]types.Note)
	require.True(t, ok)
	require.Len(t, notes, 1)
	assert.Equal(t, "N1", notes[0].NoteID)
}

func TestMergeDrainsContextNotes(t *testing.T) {
	action := newMergeResults(newTestDeps(t))

	// s2 is not referenced, but its notes were lifted into the context and
	// should still surface in the merged set.
	state := stateWithResults(
		successResult("s1", types.ActionSemanticSearch, map[string]any{
			"notes": []types.Note{{NoteID: "N1", StartTS: 100, Summary: "referenced"}},
		}),
		successResult("s2", types.ActionEntitySearch, map[string]any{
			"notes": []types.Note{{NoteID: "N2", StartTS: 200, Summary: "unreferenced"}},
		}),
	)

	out, err := action.Run(context.Background(), map[string]any{
		"result_refs": []string{"s1"},
	}, state)
	require.NoError(t, err)

	notes, ok := out["notes"].([]types.Note)
	require.True(t, ok)
	require.Len(t, notes, 2)
	assert.Equal(t, "N2", notes[0].NoteID)
	assert.Equal(t, "N1", notes[1].NoteID)
}

func TestMergeWithNoRefsStillDrainsContext(t *testing.T) {
	action := newMergeResults(newTestDeps(t))

	state := stateWithResults(successResult("s1", types.ActionSemanticSearch, map[string]any{
		"notes": []types.Note{{NoteID: "N1", StartTS: 100, Summary: "context note"}},
	}))

	out, err := action.Run(context.Background(), map[string]any{}, state)
	require.NoError(t, err)

	notes, ok := out["notes"].([]types.Note)
	require.True(t, ok)
	require.Len(t, notes, 1)
	assert.Empty(t, out["entities"])
	assert.Empty(t, out["aggregates"])
}

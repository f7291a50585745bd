package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

func TestSemanticSearchQueriesVectorIndex(t *testing.T) {
	deps := newTestDeps(t)
	vector := &stubVector{notes: []types.Note{
		{NoteID: "n1", StartTS: 100, Summary: "physics session"},
		{NoteID: "n2", StartTS: 200, Summary: "more physics"},
	}}
	deps.Vector = vector
	action := newSemanticSearch(deps)

	out, err := action.Run(context.Background(), map[string]any{
		"query":       "physics",
		"limit":       float64(7),
		"time_filter": "today",
	}, types.NewExecutionContext())
	require.NoError(t, err)

	assert.Equal(t, "physics", vector.lastQuery)
	assert.Equal(t, 7, vector.lastLimit)
	require.NotNil(t, vector.lastFilter)
	assert.Equal(t, "today", vector.lastFilter.Description)
	assert.Empty(t, vector.lastNoteType)

	assert.Equal(t, 2, out["total"])
	assert.Len(t, out["notes"], 2)
}

func TestSemanticSearchRequiresQuery(t *testing.T) {
	deps := newTestDeps(t)
	deps.Vector = &stubVector{}
	action := newSemanticSearch(deps)

	_, err := action.Run(context.Background(), map[string]any{}, types.NewExecutionContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a query")
}

func TestSemanticSearchWithoutVectorIndex(t *testing.T) {
	action := newSemanticSearch(newTestDeps(t))

	_, err := action.Run(context.Background(), map[string]any{"query": "physics"}, types.NewExecutionContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector index unavailable")
}

func TestEntitySearchResolvesAndLoadsNotes(t *testing.T) {
	deps := newTestDeps(t)
	seedActivityGraph(t, deps)
	action := newEntitySearch(deps)

	out, err := action.Run(context.Background(), map[string]any{"entity_name": "physics"}, types.NewExecutionContext())
	require.NoError(t, err)

	entities, ok := out["entities"].([]types.Entity)
	require.True(t, ok)
	require.Len(t, entities, 1)
	assert.Equal(t, "Quantum Physics", entities[0].CanonicalName)

	notes, ok := out["notes"].([]types.Note)
	require.True(t, ok)
	require.Len(t, notes, 1)
	assert.Equal(t, "n-study", notes[0].NoteID)
	assert.Equal(t, 1, out["total"])
}

func TestEntitySearchUnresolvedIsGraceful(t *testing.T) {
	deps := newTestDeps(t)
	seedActivityGraph(t, deps)
	action := newEntitySearch(deps)

	out, err := action.Run(context.Background(), map[string]any{"entity_name": "minecraft"}, types.NewExecutionContext())
	require.NoError(t, err)

	assert.Contains(t, out["message"], `no entity matching "minecraft"`)
	assert.Empty(t, out["notes"])
	assert.Empty(t, out["entities"])
}

func TestHierarchicalSearchFallsBackToStore(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	notes := []types.Note{
		{NoteID: "d1", NoteType: types.NoteTypeDaily, StartTS: 0, EndTS: 86400, Summary: "a physics-heavy day"},
		{NoteID: "h1", NoteType: types.NoteTypeHourly, StartTS: 1000, EndTS: 4600, Summary: "morning physics"},
		{NoteID: "h2", NoteType: types.NoteTypeHourly, StartTS: 5000, EndTS: 8600, Summary: "afternoon physics"},
		{NoteID: "h3", NoteType: types.NoteTypeHourly, StartTS: 90000, EndTS: 93600, Summary: "next day"},
	}
	for _, n := range notes {
		require.NoError(t, deps.Store.InsertNote(ctx, n))
	}
	action := newHierarchicalSearch(deps)

	out, err := action.Run(ctx, map[string]any{"query": "physics"}, types.NewExecutionContext())
	require.NoError(t, err)

	assert.Equal(t, 1, out["days_matched"])
	got, ok := out["notes"].([]types.Note)
	require.True(t, ok)
	require.Len(t, got, 3)
	// Daily note first, then its hourly notes newest first; h3 is outside
	// the day window.
	assert.Equal(t, "d1", got[0].NoteID)
	assert.Equal(t, "h2", got[1].NoteID)
	assert.Equal(t, "h1", got[2].NoteID)
}

func TestHierarchicalSearchUsesVectorForDailyStage(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	require.NoError(t, deps.Store.InsertNote(ctx, types.Note{
		NoteID: "h1", NoteType: types.NoteTypeHourly, StartTS: 1000, EndTS: 4600, Summary: "morning physics",
	}))
	vector := &stubVector{notes: []types.Note{
		{NoteID: "d1", NoteType: types.NoteTypeDaily, StartTS: 0, EndTS: 86400, Summary: "a physics-heavy day"},
	}}
	deps.Vector = vector
	action := newHierarchicalSearch(deps)

	out, err := action.Run(ctx, map[string]any{"query": "physics", "max_days": 2}, types.NewExecutionContext())
	require.NoError(t, err)

	assert.Equal(t, types.NoteTypeDaily, vector.lastNoteType)
	assert.Equal(t, 2, vector.lastLimit)

	got, ok := out["notes"].([]types.Note)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "d1", got[0].NoteID)
	assert.Equal(t, "h1", got[1].NoteID)
}

func TestTimeRangeNotesRequiresFilter(t *testing.T) {
	action := newTimeRangeNotes(newTestDeps(t))

	_, err := action.Run(context.Background(), map[string]any{}, types.NewExecutionContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a time_filter")
}

func TestTimeRangeNotesAppliesBoundsAndType(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	notes := []types.Note{
		{NoteID: "d1", NoteType: types.NoteTypeDaily, StartTS: 0, EndTS: 86400, Summary: "day"},
		{NoteID: "h1", NoteType: types.NoteTypeHourly, StartTS: 1000, EndTS: 4600, Summary: "morning"},
		{NoteID: "h2", NoteType: types.NoteTypeHourly, StartTS: 5000, EndTS: 8600, Summary: "afternoon"},
		{NoteID: "h3", NoteType: types.NoteTypeHourly, StartTS: 90000, EndTS: 93600, Summary: "next day"},
	}
	for _, n := range notes {
		require.NoError(t, deps.Store.InsertNote(ctx, n))
	}
	action := newTimeRangeNotes(deps)

	out, err := action.Run(ctx, map[string]any{
		"time_filter": map[string]any{"start": "1970-01-01T00:00:00Z", "end": "1970-01-02T00:00:00Z"},
		"note_type":   types.NoteTypeHourly,
	}, types.NewExecutionContext())
	require.NoError(t, err)

	got, ok := out["notes"].([]types.Note)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "h2", got[0].NoteID)
	assert.Equal(t, "h1", got[1].NoteID)
	assert.Equal(t, 2, out["total"])
}

func TestAggregatesQueryValidatesKeyType(t *testing.T) {
	action := newAggregatesQuery(newTestDeps(t))

	_, err := action.Run(context.Background(), map[string]any{"key_type": "bogus"}, types.NewExecutionContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_type must be one of")
}

func TestAggregatesQueryRanksByMinutes(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	rows := []struct {
		keyType string
		key     string
		minutes float64
	}{
		{"app", "VSCode", 120},
		{"app", "Spotify", 90},
		{"topic", "physics", 45},
	}
	for _, r := range rows {
		require.NoError(t, deps.Store.InsertAggregate(ctx, r.keyType, r.key, 1000, 4600, r.minutes))
	}
	action := newAggregatesQuery(deps)

	out, err := action.Run(ctx, map[string]any{"key_type": "app"}, types.NewExecutionContext())
	require.NoError(t, err)

	aggs, ok := out["aggregates"].([]types.Aggregate)
	require.True(t, ok)
	require.Len(t, aggs, 2)
	assert.Equal(t, "VSCode", aggs[0].Key)
	assert.Equal(t, "Spotify", aggs[1].Key)
	assert.Equal(t, "app", out["key_type"])
}

package store

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "hindsight_test.db")
	s, err := Open(context.Background(), log.New(io.Discard), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedGraph(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	entities := []types.Entity{
		{EntityID: "e-physics", CanonicalName: "Quantum Physics", EntityType: "topic"},
		{EntityID: "e-radiohead", CanonicalName: "Radiohead", EntityType: "artist"},
		{EntityID: "e-spotify", CanonicalName: "Spotify", EntityType: "app"},
		{EntityID: "e-arxiv", CanonicalName: "arxiv.org", EntityType: "domain"},
	}
	for _, e := range entities {
		require.NoError(t, s.UpsertEntity(ctx, e))
	}

	edges := []struct {
		src, dst, edgeType string
		weight             float64
	}{
		{"e-physics", "e-radiohead", types.EdgeStudiedWhile, 0.9},
		{"e-physics", "e-arxiv", types.EdgeVisitedDomain, 0.7},
		{"e-radiohead", "e-spotify", types.EdgeUsedApp, 0.8},
		{"e-physics", "e-spotify", types.EdgeCoOccurredWith, 0.4},
	}
	for _, e := range edges {
		require.NoError(t, s.UpsertEdge(ctx, e.src, e.dst, e.edgeType, e.weight, 1, 1700000000))
	}
}

func TestInsertAndQueryNotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	notes := []types.Note{
		{NoteID: "n1", NoteType: types.NoteTypeHourly, StartTS: 1000, EndTS: 4600, Summary: "studied quantum physics", Categories: []string{"learning"}},
		{NoteID: "n2", NoteType: types.NoteTypeHourly, StartTS: 5000, EndTS: 8600, Summary: "listened to Radiohead"},
		{NoteID: "n3", NoteType: types.NoteTypeDaily, StartTS: 0, EndTS: 86400, Summary: "a full day"},
	}
	for _, n := range notes {
		require.NoError(t, s.InsertNote(ctx, n))
	}

	all, err := s.NotesInRange(ctx, nil, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "n2", all[0].NoteID)
	assert.Equal(t, "n1", all[1].NoteID)
	assert.Equal(t, []string{"learning"}, all[1].Categories)

	hourly, err := s.NotesInRange(ctx, nil, types.NoteTypeHourly, 10)
	require.NoError(t, err)
	assert.Len(t, hourly, 2)

	start := time.Unix(2000, 0)
	end := time.Unix(6000, 0)
	ranged, err := s.NotesInRange(ctx, &types.TimeFilter{Start: &start, End: &end}, "", 10)
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "n2", ranged[0].NoteID)
}

func TestInsertNoteUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertNote(ctx, types.Note{NoteID: "n1", StartTS: 1, EndTS: 2, Summary: "first"}))
	require.NoError(t, s.InsertNote(ctx, types.Note{NoteID: "n1", StartTS: 1, EndTS: 2, Summary: "second"}))

	all, err := s.NotesInRange(ctx, nil, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "second", all[0].Summary)
}

func TestFindEntity(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	exact, err := s.FindEntity(ctx, "quantum physics", "")
	require.NoError(t, err)
	require.NotNil(t, exact)
	assert.Equal(t, "e-physics", exact.EntityID)

	substr, err := s.FindEntity(ctx, "physics", "topic")
	require.NoError(t, err)
	require.NotNil(t, substr)
	assert.Equal(t, "e-physics", substr.EntityID)

	typed, err := s.FindEntity(ctx, "Radiohead", "app")
	require.NoError(t, err)
	assert.Nil(t, typed)

	missing, err := s.FindEntity(ctx, "nonexistent", "")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNotesMentioningEntity(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	require.NoError(t, s.InsertNote(ctx, types.Note{NoteID: "n1", StartTS: 100, EndTS: 200, Summary: "physics session"}))
	require.NoError(t, s.InsertNote(ctx, types.Note{NoteID: "n2", StartTS: 300, EndTS: 400, Summary: "music session"}))
	require.NoError(t, s.LinkNoteEntity(ctx, "n1", "e-physics"))
	require.NoError(t, s.LinkNoteEntity(ctx, "n2", "e-radiohead"))
	// Duplicate link is ignored.
	require.NoError(t, s.LinkNoteEntity(ctx, "n1", "e-physics"))

	notes, err := s.NotesMentioningEntity(ctx, "e-physics", nil, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "n1", notes[0].NoteID)

	any, err := s.NotesMentioningAny(ctx, []string{"e-physics", "e-radiohead"}, nil, 10)
	require.NoError(t, err)
	assert.Len(t, any, 2)
}

func TestExpandFromEntities(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	oneHop, err := s.ExpandFromEntities(ctx, []string{"e-physics"}, 1, nil, nil, 0.3, 20)
	require.NoError(t, err)
	require.Len(t, oneHop, 3)
	// Strongest edge first.
	assert.Equal(t, "e-radiohead", oneHop[0].Entity.EntityID)
	assert.Equal(t, types.EdgeStudiedWhile, oneHop[0].EdgeType)

	filtered, err := s.ExpandFromEntities(ctx, []string{"e-physics"}, 1, nil, []string{types.EdgeVisitedDomain}, 0, 20)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "e-arxiv", filtered[0].Entity.EntityID)

	weighted, err := s.ExpandFromEntities(ctx, []string{"e-physics"}, 1, nil, nil, 0.6, 20)
	require.NoError(t, err)
	assert.Len(t, weighted, 2)

	capped, err := s.ExpandFromEntities(ctx, []string{"e-physics"}, 2, nil, nil, 0, 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestPathsBetween(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	paths, err := s.PathsBetween(ctx, "e-physics", "e-spotify", 3, 10)
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	// Direct CO_OCCURRED_WITH edge gives the shortest path.
	assert.Equal(t, []string{"Quantum Physics", "Spotify"}, paths[0])

	none, err := s.PathsBetween(ctx, "e-physics", "e-missing", 3, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCoOccurrences(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	hits, err := s.CoOccurrences(ctx, "e-physics", types.EdgeCoOccurredWith, nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "e-spotify", hits[0].Entity.EntityID)

	// Empty edge type defaults to CO_OCCURRED_WITH.
	defaulted, err := s.CoOccurrences(ctx, "e-physics", "", nil, 10)
	require.NoError(t, err)
	assert.Len(t, defaulted, 1)
}

func TestEntityAdjacency(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	groups, err := s.EntityAdjacency(ctx, "e-physics", nil)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	for _, g := range groups {
		assert.Equal(t, 1, g.Count)
		require.Len(t, g.Neighbors, 1)
	}
}

func TestTopAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := []struct {
		keyType string
		key     string
		bucket  int64
		minutes float64
	}{
		{"app", "VSCode", 1000, 120},
		{"app", "VSCode", 2000, 60},
		{"app", "Spotify", 1000, 90},
		{"app", "Slack", 9000, 30},
		{"topic", "physics", 1000, 45},
	}
	for _, r := range rows {
		require.NoError(t, s.InsertAggregate(ctx, r.keyType, r.key, r.bucket, r.bucket+3600, r.minutes))
	}

	top, err := s.TopAggregates(ctx, "app", nil, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "VSCode", top[0].Key)
	assert.InDelta(t, 180, top[0].Minutes, 0.001)
	assert.Equal(t, "Spotify", top[1].Key)

	// Range filter drops the late Slack bucket.
	start := time.Unix(500, 0)
	end := time.Unix(3000, 0)
	ranged, err := s.TopAggregates(ctx, "app", &types.TimeFilter{Start: &start, End: &end}, 10)
	require.NoError(t, err)
	require.Len(t, ranged, 2)

	limited, err := s.TopAggregates(ctx, "app", nil, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "VSCode", limited[0].Key)
}

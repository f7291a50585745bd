package actions

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
	"github.com/hindsight-ai/hindsight/pkg/ai"
	"github.com/hindsight-ai/hindsight/pkg/store"
	"github.com/hindsight-ai/hindsight/pkg/timeparse"
)

type stubVector struct {
	notes []types.Note
	err   error

	lastQuery    string
	lastLimit    int
	lastFilter   *types.TimeFilter
	lastNoteType string
}

func (s *stubVector) Search(_ context.Context, query string, limit int, tf *types.TimeFilter, noteType string) ([]types.Note, error) {
	s.lastQuery = query
	s.lastLimit = limit
	s.lastFilter = tf
	s.lastNoteType = noteType
	return s.notes, s.err
}

type stubLLM struct {
	response string
	err      error
	calls    [][]openai.ChatCompletionMessageParamUnion
}

func (s *stubLLM) CompletionJSON(_ context.Context, messages []openai.ChatCompletionMessageParamUnion, _ string, _ ...ai.CompletionOption) (string, error) {
	s.calls = append(s.calls, messages)
	return s.response, s.err
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "actions_test.db")
	s, err := store.Open(context.Background(), log.New(io.Discard), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return Deps{
		Logger: log.New(io.Discard),
		Store:  s,
		Time:   timeparse.NewParser(),
		Model:  "test-model",
	}
}

// seedActivityGraph loads a small fixture: four entities, edges between them,
// and notes linked to the physics entity.
func seedActivityGraph(t *testing.T, deps Deps) {
	t.Helper()
	ctx := context.Background()

	entities := []types.Entity{
		{EntityID: "e-physics", CanonicalName: "Quantum Physics", EntityType: "topic"},
		{EntityID: "e-radiohead", CanonicalName: "Radiohead", EntityType: "artist"},
		{EntityID: "e-spotify", CanonicalName: "Spotify", EntityType: "app"},
		{EntityID: "e-arxiv", CanonicalName: "arxiv.org", EntityType: "domain"},
	}
	for _, e := range entities {
		require.NoError(t, deps.Store.UpsertEntity(ctx, e))
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
		require.NoError(t, deps.Store.UpsertEdge(ctx, e.src, e.dst, e.edgeType, e.weight, 1, 1700000000))
	}

	notes := []types.Note{
		{NoteID: "n-study", NoteType: types.NoteTypeHourly, StartTS: 1000, EndTS: 4600, Summary: "read arxiv papers on quantum physics", Categories: []string{"learning"}},
		{NoteID: "n-music", NoteType: types.NoteTypeHourly, StartTS: 5000, EndTS: 8600, Summary: "listened to Radiohead on Spotify", Categories: []string{"music"}},
	}
	for _, n := range notes {
		require.NoError(t, deps.Store.InsertNote(ctx, n))
	}
	require.NoError(t, deps.Store.LinkNoteEntity(ctx, "n-study", "e-physics"))
	require.NoError(t, deps.Store.LinkNoteEntity(ctx, "n-study", "e-arxiv"))
	require.NoError(t, deps.Store.LinkNoteEntity(ctx, "n-music", "e-radiohead"))
	require.NoError(t, deps.Store.LinkNoteEntity(ctx, "n-music", "e-spotify"))
}

// stateWithResults builds an execution context preloaded with step results.
func stateWithResults(results ...types.StepResult) *types.ExecutionContext {
	state := types.NewExecutionContext()
	for _, res := range results {
		state.AddResult(res)
	}
	return state
}

func successResult(stepID string, action types.ActionName, result map[string]any) types.StepResult {
	return types.StepResult{StepID: stepID, Action: action, Success: true, Result: result}
}

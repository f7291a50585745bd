package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight/pkg/agent/actions"
	"github.com/hindsight-ai/hindsight/pkg/agent/planner"
	"github.com/hindsight-ai/hindsight/pkg/agent/types"
	"github.com/hindsight-ai/hindsight/pkg/ai"
)

type runFunc func(ctx context.Context, params map[string]any, state *types.ExecutionContext) (map[string]any, error)

type stubAction struct {
	name types.ActionName
	run  runFunc
}

func (s *stubAction) Name() types.ActionName { return s.name }

func (s *stubAction) Run(ctx context.Context, params map[string]any, state *types.ExecutionContext) (map[string]any, error) {
	return s.run(ctx, params, state)
}

func register(t *testing.T, r *actions.Registry, name types.ActionName, run runFunc) {
	t.Helper()
	require.NoError(t, r.Register(name, func(actions.Deps) actions.Action {
		return &stubAction{name: name, run: run}
	}))
}

type stubCompletions struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (s *stubCompletions) CompletionJSON(_ context.Context, _ []openai.ChatCompletionMessageParamUnion, _ string, _ ...ai.CompletionOption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.response, s.err
}

func newTestPipeline(registry *actions.Registry, svc planner.CompletionService, nc *nats.Conn) *Pipeline {
	logger := log.New(io.Discard)
	pln := planner.NewPlanner(logger, svc, "test-model")
	return New(logger, pln, registry, actions.Deps{Logger: logger}, nc)
}

func TestProcessRejectsEmptyQuery(t *testing.T) {
	p := newTestPipeline(actions.NewRegistry(), nil, nil)

	_, err := p.Process(context.Background(), "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query cannot be empty")
}

func TestSimpleQueryBypassesPlanning(t *testing.T) {
	registry := actions.NewRegistry()
	var gotParams map[string]any
	register(t, registry, types.ActionHierarchicalSearch, func(_ context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
		gotParams = params
		return map[string]any{"notes": []types.Note{{NoteID: "n1", StartTS: 100, Summary: "today recap"}}}, nil
	})
	p := newTestPipeline(registry, nil, nil)

	result, err := p.Process(context.Background(), "what did i do today?")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.PlanID, "simple-"), "plan id %q", result.PlanID)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.StepsCompleted)
	assert.False(t, result.FallbackUsed)
	require.Len(t, result.MergedNotes, 1)
	assert.Equal(t, "n1", result.MergedNotes[0].NoteID)

	require.NotNil(t, gotParams)
	assert.Equal(t, "what did i do today?", gotParams["query"])
	assert.Equal(t, directMaxDays, gotParams["max_days"])
	assert.Equal(t, "direct", gotParams["step_id"])
}

func TestSimpleQueryDirectFailureIsReported(t *testing.T) {
	registry := actions.NewRegistry() // hierarchical_search not registered
	p := newTestPipeline(registry, nil, nil)

	result, err := p.Process(context.Background(), "what did i do today?")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.StepsCompleted)
	assert.Equal(t, 1, result.StepsFailed)
	res := result.StepResults["direct"]
	assert.Contains(t, res.Error, "Unknown action")
}

func TestComparisonQueryRunsTemplatePlan(t *testing.T) {
	registry := actions.NewRegistry()
	var mu sync.Mutex
	filters := map[string]any{}

	register(t, registry, types.ActionSemanticSearch, func(_ context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
		mu.Lock()
		filters["semantic"] = params["time_filter"]
		mu.Unlock()
		return map[string]any{"notes": []types.Note{{NoteID: "n1", StartTS: 100, Summary: "coding session"}}}, nil
	})
	register(t, registry, types.ActionAggregatesQuery, func(_ context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
		keyType := params["key_type"].(string)
		mu.Lock()
		filters[keyType] = params["time_filter"]
		mu.Unlock()
		return map[string]any{"aggregates": []types.Aggregate{{KeyType: keyType, Key: "X", Minutes: 60}}}, nil
	})
	register(t, registry, types.ActionMergeResults, func(_ context.Context, _ map[string]any, state *types.ExecutionContext) (map[string]any, error) {
		return map[string]any{"notes": state.Notes()}, nil
	})
	p := newTestPipeline(registry, nil, nil)

	result, err := p.Process(context.Background(), "compare my coding last week vs this week")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 4, result.StepsCompleted)
	assert.Equal(t, 0, result.StepsFailed)
	assert.False(t, result.FallbackUsed)

	// The time phrase found in the query scopes every retrieval step.
	assert.Equal(t, "last week", filters["semantic"])
	assert.Equal(t, "last week", filters["app"])
	assert.Equal(t, "last week", filters["category"])

	require.Len(t, result.MergedNotes, 1)
	assert.Len(t, result.Aggregates, 2)
}

func TestMultiEntityQueryGoesThroughLLM(t *testing.T) {
	const llmPlan = `{
		"query_type": "multi_entity",
		"reasoning": "look up both entities, then merge",
		"steps": [
			{"step_id": "s1", "action": "entity_search", "params": {"entity_name": "physics"}, "required": true},
			{"step_id": "s2", "action": "entity_search", "params": {"entity_name": "radiohead"}},
			{"step_id": "s3", "action": "merge_results", "params": {"result_refs": ["s1", "s2"]}, "depends_on": ["s1", "s2"], "required": true}
		],
		"estimated_time_seconds": 8,
		"requires_web_search": false
	}`

	registry := actions.NewRegistry()
	register(t, registry, types.ActionEntitySearch, func(_ context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
		name := params["entity_name"].(string)
		return map[string]any{"entities": []types.Entity{{EntityID: "e-" + name, CanonicalName: name}}}, nil
	})
	register(t, registry, types.ActionMergeResults, func(_ context.Context, _ map[string]any, state *types.ExecutionContext) (map[string]any, error) {
		return map[string]any{"entities": state.Entities()}, nil
	})
	svc := &stubCompletions{response: llmPlan}
	p := newTestPipeline(registry, svc, nil)

	result, err := p.Process(context.Background(), "how are physics and radiohead related?")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, 3, result.StepsCompleted)
	assert.False(t, result.FallbackUsed)
	assert.False(t, strings.HasPrefix(result.PlanID, "simple-"))
	assert.Len(t, result.MergedEntities, 2)
}

func TestLLMOutageSurfacesFallback(t *testing.T) {
	registry := actions.NewRegistry()
	register(t, registry, types.ActionHierarchicalSearch, func(_ context.Context, _ map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
		return map[string]any{"notes": []types.Note{{NoteID: "n1", StartTS: 100, Summary: "recent"}}}, nil
	})
	// No completion service wired at all.
	p := newTestPipeline(registry, nil, nil)

	result, err := p.Process(context.Background(), "how are physics and radiohead related?")
	require.NoError(t, err)

	assert.True(t, result.FallbackUsed)
	assert.Contains(t, result.FallbackReason, "no completion service")
	assert.Equal(t, 1, result.StepsCompleted)
}

func TestProcessPublishesResultToNATS(t *testing.T) {
	ns, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second), "embedded NATS server did not start")
	defer ns.Shutdown()

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync(ResultSubject)
	require.NoError(t, err)

	registry := actions.NewRegistry()
	register(t, registry, types.ActionHierarchicalSearch, func(_ context.Context, _ map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
		return map[string]any{"notes": []types.Note{{NoteID: "n1", StartTS: 100, Summary: "recap"}}}, nil
	})
	p := newTestPipeline(registry, nil, nc)

	result, err := p.Process(context.Background(), "what did i do today?")
	require.NoError(t, err)

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)

	var published types.ExecutionResult
	require.NoError(t, json.Unmarshal(msg.Data, &published))
	assert.Equal(t, result.PlanID, published.PlanID)
	assert.Equal(t, "what did i do today?", published.Query)
	require.Len(t, published.MergedNotes, 1)
	assert.Equal(t, "n1", published.MergedNotes[0].NoteID)
}

func TestTimeHint(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"compare last week vs this week", "last week"},
		{"what happened in the LAST 3 DAYS compared to before", "the last 3 days"},
		{"did my habits change this month", "this month"},
		{"how are physics and radiohead related?", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, timeHint(tc.query), "query %q", tc.query)
	}
}

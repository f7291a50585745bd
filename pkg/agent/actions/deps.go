package actions

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
	"github.com/hindsight-ai/hindsight/pkg/ai"
	"github.com/hindsight-ai/hindsight/pkg/store"
	"github.com/hindsight-ai/hindsight/pkg/timeparse"
	"github.com/hindsight-ai/hindsight/pkg/websearch"
)

// LLM is the completion surface analysis actions consume.
type LLM interface {
	CompletionJSON(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, model string, opts ...ai.CompletionOption) (string, error)
}

// VectorSearcher is the vector-index surface retrieval actions consume.
type VectorSearcher interface {
	Search(ctx context.Context, query string, limit int, tf *types.TimeFilter, noteType string) ([]types.Note, error)
}

// Deps carries the shared handles actions are constructed with. Nil optional
// handles degrade per action: a nil Vector fails semantic search and drops
// hierarchical search to store-only retrieval, a nil WebSearch turns web
// searches into a configuration message, a nil LLM fails analysis calls.
type Deps struct {
	Logger    *log.Logger
	Store     *store.Store
	Vector    VectorSearcher
	LLM       LLM
	WebSearch *websearch.Client
	Time      *timeparse.Parser
	Model     string
}

// timeFilter resolves the loosely typed time_filter param forms.
func (d Deps) timeFilter(v any) (*types.TimeFilter, error) {
	if v == nil || d.Time == nil {
		return nil, nil
	}
	return d.Time.FromParam(v)
}

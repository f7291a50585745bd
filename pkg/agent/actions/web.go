package actions

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
	"github.com/hindsight-ai/hindsight/pkg/websearch"
)

type webSearchAction struct{ deps Deps }

func newWebSearch(deps Deps) Action { return &webSearchAction{deps} }

func (a *webSearchAction) Name() types.ActionName { return types.ActionWebSearch }

func (a *webSearchAction) Run(ctx context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
	query := stringParam(params, "query", "")
	if query == "" {
		return nil, errors.New("web_search requires a query")
	}
	if a.deps.WebSearch == nil {
		// Missing provider key is configuration, not failure.
		return map[string]any{
			"web_results":   []types.WebResult{},
			"web_citations": []string{},
			"query":         query,
			"results_count": 0,
			"message":       "web search is not configured; set WEB_SEARCH_API_KEY to enable it",
		}, nil
	}

	results, err := a.deps.WebSearch.Search(ctx, websearch.Request{
		Query:          query,
		MaxResults:     intParam(params, "max_results", 5),
		SearchDepth:    stringParam(params, "search_depth", websearch.DepthBasic),
		IncludeDomains: stringSliceParam(params, "include_domains"),
		ExcludeDomains: stringSliceParam(params, "exclude_domains"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "web search")
	}

	citations := lo.Map(results, func(r types.WebResult, _ int) string { return r.URL })
	return map[string]any{
		"web_results":   results,
		"web_citations": citations,
		"query":         query,
		"results_count": len(results),
	}, nil
}

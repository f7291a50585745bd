// Package websearch talks to the external web-search provider. The wire shape
// is Tavily-compatible: a JSON POST returning scored results.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

// Request carries one search call's options.
type Request struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results,omitempty"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

type response struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Client is the provider HTTP client. A nil *Client means the provider is not
// configured; the web_search action reports that instead of failing.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *log.Logger
}

// NewClient returns nil when apiKey is empty.
func NewClient(logger *log.Logger, baseURL, apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// Search runs one provider query.
func (c *Client) Search(ctx context.Context, r Request) ([]types.WebResult, error) {
	if r.MaxResults <= 0 {
		r.MaxResults = 5
	}
	if r.SearchDepth == "" {
		r.SearchDepth = DepthBasic
	}

	body, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "creating search request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "executing search request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("web search provider returned status %d", resp.StatusCode)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decoding search response")
	}

	results := make([]types.WebResult, 0, len(decoded.Results))
	for _, item := range decoded.Results {
		results = append(results, types.WebResult{
			Title:   item.Title,
			URL:     item.URL,
			Content: item.Content,
			Score:   item.Score,
		})
	}
	c.logger.Debug("Web search completed", "query", r.Query, "results", len(results))
	return results, nil
}

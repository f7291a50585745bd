package websearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresKey(t *testing.T) {
	assert.Nil(t, NewClient(log.New(io.Discard), "https://example.com", ""))
	assert.NotNil(t, NewClient(log.New(io.Discard), "https://example.com", "key"))
}

func TestSearchRoundTrip(t *testing.T) {
	var captured Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Quantum news", "url": "https://example.com/q", "content": "entangled", "score": 0.93},
				{"title": "Other", "url": "https://example.com/o", "content": "misc", "score": 0.41},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(log.New(io.Discard), srv.URL, "test-key")
	results, err := client.Search(context.Background(), Request{Query: "quantum computing news"})
	require.NoError(t, err)

	// Defaults applied before the wire call.
	assert.Equal(t, 5, captured.MaxResults)
	assert.Equal(t, DepthBasic, captured.SearchDepth)

	require.Len(t, results, 2)
	assert.Equal(t, "Quantum news", results[0].Title)
	assert.InDelta(t, 0.93, results[0].Score, 0.001)
}

func TestSearchNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(log.New(io.Discard), srv.URL, "test-key")
	_, err := client.Search(context.Background(), Request{Query: "anything"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

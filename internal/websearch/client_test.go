package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-intelligence/internal/common/config"
	"property-intelligence/internal/common/logger"
)

func testClient(t *testing.T, baseURL string) *Client {
	return New(config.WebSearchConfig{
		BaseURL:          baseURL,
		APIKey:           "search-key",
		EngineID:         "engine-1",
		MaxResults:       5,
		SnippetMaxLength: 300,
		Timeout:          5000,
	}, logger.NewTestLogger(t))
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "search-key", r.URL.Query().Get("key"))
		assert.Equal(t, "engine-1", r.URL.Query().Get("cx"))
		assert.Equal(t, "brisbane median price", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("num"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{
				{"title": "Brisbane Market Update", "link": "https://a.example/1", "snippet": "Prices rose."},
				{"title": "Duplicate", "link": "https://a.example/1", "snippet": "Same link."},
				{"title": "PDF report", "link": "https://a.example/report.pdf", "snippet": "ignore", "mime": "application/pdf"},
				{"title": "Second Source", "link": "https://b.example/2", "snippet": "More detail."},
			},
		})
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	results, err := c.Search(context.Background(), "brisbane median price")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "Brisbane Market Update", results[0].Title)
	assert.Equal(t, "Second Source", results[1].Title)
}

func TestSearch_SnippetTruncation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{
				{"title": "Long", "link": "https://a.example/1", "snippet": "0123456789"},
			},
		})
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	c.snippetMaxLength = 4

	results, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "0123...", results[0].Snippet)
}

func TestSearch_SnippetTruncationKeepsRuneBoundary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{
				{"title": "Tokyo", "link": "https://a.example/1", "snippet": "東京の不動産価格が上昇"},
			},
		})
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	c.snippetMaxLength = 4

	results, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "東京の不...", results[0].Snippet)
	assert.True(t, utf8.ValidString(results[0].Snippet))
}

func TestSearch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	_, err := c.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrSearchFailed)
}

func TestAvailable(t *testing.T) {
	c := testClient(t, "http://example.com")
	assert.True(t, c.Available())

	c.apiKey = ""
	assert.False(t, c.Available())

	c.apiKey = "k"
	c.engineID = ""
	assert.False(t, c.Available())

	_, err := c.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrSearchFailed)
}

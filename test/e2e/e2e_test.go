// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-intelligence/internal/analysis"
	"property-intelligence/internal/common/config"
	"property-intelligence/internal/common/database"
	"property-intelligence/internal/common/logger"
	"property-intelligence/internal/llm"
	"property-intelligence/internal/rss"
	"property-intelligence/internal/server"
	"property-intelligence/internal/store"
	"property-intelligence/internal/websearch"
)

const e2eFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Property News</title>
    <item>
      <title>Brisbane housing market gains pace</title>
      <link>https://example.com/brisbane</link>
      <description>Brisbane property values continue to rise.</description>
    </item>
  </channel>
</rss>`

// fakeClaude answers the probe, then routes to web_search, and can also
// serve as the synthesis fallback.
func fakeClaude(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		var req struct {
			MaxTokens int `json:"max_tokens"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		text := "ok"
		if req.MaxTokens > 1 {
			text = `{"action": "web_search", "query": "brisbane median house price"}`
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": text}},
			"usage":   map[string]int{"input_tokens": 20, "output_tokens": 10},
		})
	}))
}

func fakeGemini(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "Brisbane's median house price currently sits near $920,000."}},
				}},
			},
			"usageMetadata": map[string]int{"totalTokenCount": 180},
		})
	}))
}

func fakeSearch(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{
				{"title": "Brisbane Median Report", "link": "https://x.example/report", "snippet": "median near $920k"},
			},
		})
	}))
}

func fakeFeeds(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, e2eFeedXML)
	}))
}

func TestFullAnalysisPipelineOverHTTP(t *testing.T) {
	claudeSrv := fakeClaude(t)
	defer claudeSrv.Close()
	geminiSrv := fakeGemini(t)
	defer geminiSrv.Close()
	searchSrv := fakeSearch(t)
	defer searchSrv.Close()
	feedSrv := fakeFeeds(t)
	defer feedSrv.Close()

	log := logger.NewTestLogger(t)

	claude := llm.NewClaude(config.ProviderConfig{
		APIKey:  "k",
		BaseURL: claudeSrv.URL,
		Models:  []string{"claude-3-5-sonnet-20241022"},
		Timeout: 5000,
	}, log)
	require.True(t, claude.Available())

	gemini := llm.NewGemini(config.ProviderConfig{
		APIKey:  "k",
		BaseURL: geminiSrv.URL,
		Models:  []string{"gemini-1.5-flash"},
		Timeout: 5000,
	}, log)
	require.True(t, gemini.Available())

	search := websearch.New(config.WebSearchConfig{
		BaseURL:          searchSrv.URL,
		APIKey:           "sk",
		EngineID:         "cx",
		MaxResults:       3,
		SnippetMaxLength: 300,
		Timeout:          5000,
	}, log)

	news := rss.New(config.RSSConfig{
		Feeds:             []config.FeedConfig{{Name: "Property News", URL: feedSrv.URL}},
		TopArticles:       5,
		MaxEntriesPerFeed: 5,
		FetchTimeout:      5000,
		SummaryMaxLength:  300,
	}, nil, log)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	st := store.New(&database.PostgresDB{DB: db}, log)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(tokens_used), 0)`)).
		WithArgs("e2e-user").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(100))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO property_queries`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	svc := analysis.NewService(analysis.Options{
		BudgetLimit:        50000,
		DecisionMaxTokens:  300,
		SynthesisMaxTokens: 1000,
		StepTimeout:        5 * time.Second,
	}, claude, gemini, st, news, search, log, nil)

	cfg := config.Config{}
	cfg.App.Name = "property-intelligence"
	srv := server.New(cfg, svc, st, server.NewLogStream(), nil, log)

	body := bytes.NewBufferString(`{"question": "What is the median house price in Brisbane right now?", "user_id": "e2e-user"}`)
	req := httptest.NewRequest("POST", "/api/property/analyze", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success          bool    `json:"success"`
		FinalAnswer      string  `json:"final_answer"`
		LLMProvider      string  `json:"llm_provider"`
		TokenUsage       int     `json:"token_usage"`
		LocationDetected string  `json:"location_detected"`
		SearchPerformed  bool    `json:"search_performed"`
		Confidence       float64 `json:"confidence"`
		QueryID          int64   `json:"query_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "Brisbane", resp.LocationDetected)
	assert.True(t, resp.SearchPerformed)
	assert.Equal(t, "gemini", resp.LLMProvider)
	assert.True(t, strings.Contains(resp.FinalAnswer, "$920,000"))
	// Decision call (30) + synthesis call (180).
	assert.Equal(t, 210, resp.TokenUsage)
	assert.Equal(t, int64(1), resp.QueryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPipelineWithNoProvidersStillAnswers(t *testing.T) {
	log := logger.NewTestLogger(t)

	claude := llm.NewClaude(config.ProviderConfig{Timeout: 1000}, log)
	gemini := llm.NewGemini(config.ProviderConfig{Timeout: 1000}, log)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	st := store.New(&database.PostgresDB{DB: db}, log)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(tokens_used), 0)`)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO property_queries`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	svc := analysis.NewService(analysis.Options{
		BudgetLimit: 50000,
		StepTimeout: time.Second,
	}, claude, gemini, st, nil, nil, log, nil)

	srv := server.New(config.Config{}, svc, st, server.NewLogStream(), nil, log)

	body := bytes.NewBufferString(`{"question": "Is Darwin a good market?"}`)
	req := httptest.NewRequest("POST", "/api/property/analyze", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success     bool   `json:"success"`
		LLMProvider string `json:"llm_provider"`
		TokenUsage  int    `json:"token_usage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "fallback", resp.LLMProvider)
	assert.Zero(t, resp.TokenUsage)
}

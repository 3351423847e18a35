// Package websearch wraps the Google Custom Search JSON API for the
// conditional search step of the analysis pipeline.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"property-intelligence/internal/common/config"
	"property-intelligence/internal/common/logger"
	"property-intelligence/internal/common/metrics"
)

var (
	ErrSearchFailed  = errors.New("WEB_SEARCH_FAILED")
	ErrSearchTimeout = errors.New("WEB_SEARCH_TIMEOUT")
)

// Result is one cleaned search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Mime    string `json:"mime"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls the Custom Search endpoint.
type Client struct {
	baseURL          string
	apiKey           string
	engineID         string
	maxResults       int
	snippetMaxLength int
	client           *http.Client
	logger           logger.Logger
}

func New(cfg config.WebSearchConfig, log logger.Logger) *Client {
	return &Client{
		baseURL:          cfg.BaseURL,
		apiKey:           cfg.APIKey,
		engineID:         cfg.EngineID,
		maxResults:       cfg.MaxResults,
		snippetMaxLength: cfg.SnippetMaxLength,
		client: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
		logger: log.With(map[string]interface{}{
			"component": "websearch",
		}),
	}
}

// Available reports whether both credentials are configured. The pipeline
// skips the search step entirely when this is false.
func (c *Client) Available() bool {
	return c.apiKey != "" && c.engineID != ""
}

// Search runs one query and returns deduplicated, snippet-truncated hits.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if !c.Available() {
		return nil, fmt.Errorf("%w: credentials not configured", ErrSearchFailed)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(c.maxResults))

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ContextFetchesTotal.WithLabelValues("websearch", "error").Inc()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrSearchFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ContextFetchesTotal.WithLabelValues("websearch", "error").Inc()
		return nil, fmt.Errorf("%w: status %d: %s", ErrSearchFailed, resp.StatusCode, string(body))
	}

	var apiResp searchResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, apiResp.Error.Message)
	}

	metrics.ContextFetchesTotal.WithLabelValues("websearch", "success").Inc()

	seen := make(map[string]bool)
	results := make([]Result, 0, len(apiResp.Items))
	for _, item := range apiResp.Items {
		// Binary attachments occasionally show up in results.
		if item.Mime != "" && !strings.HasPrefix(item.Mime, "text/html") {
			continue
		}
		if item.Link == "" || seen[item.Link] {
			continue
		}
		seen[item.Link] = true

		results = append(results, Result{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: c.truncate(item.Snippet),
		})
	}

	c.logger.Debug("search complete", map[string]interface{}{
		"query":   query,
		"results": len(results),
	})
	return results, nil
}

// truncate limits a snippet to snippetMaxLength runes. Counting runes keeps
// the cut on a UTF-8 boundary.
func (c *Client) truncate(s string) string {
	if c.snippetMaxLength <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= c.snippetMaxLength {
		return s
	}
	return string(runes[:c.snippetMaxLength]) + "..."
}

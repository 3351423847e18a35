package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-intelligence/internal/common/config"
	"property-intelligence/internal/common/database"
	"property-intelligence/internal/common/logger"
	"property-intelligence/internal/location"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Property News</title>
    <item>
      <title>Brisbane property prices climb again</title>
      <link>https://example.com/brisbane-prices</link>
      <description>Median house values in Brisbane rose 2 per cent this quarter.</description>
      <pubDate>Mon, 24 Aug 2026 10:00:00 +1000</pubDate>
    </item>
    <item>
      <title>Sydney housing market cools</title>
      <link>https://example.com/sydney-cools</link>
      <description>Auction clearance rates in Sydney dipped below 60 per cent.</description>
      <pubDate>Sun, 23 Aug 2026 09:00:00 +1000</pubDate>
    </item>
    <item>
      <title>Football finals preview</title>
      <link>https://example.com/football</link>
      <description>Everything you need to know about the finals series.</description>
    </item>
    <item>
      <title>National real estate investment trends</title>
      <link>https://example.com/national-trends</link>
      <description>Investors are returning to the housing market nationwide.</description>
    </item>
  </channel>
</rss>`

func testProvider(t *testing.T, serverURL string, cache *database.RedisClient) *Provider {
	cfg := config.RSSConfig{
		Feeds: []config.FeedConfig{
			{Name: "Property News", URL: serverURL + "/feed"},
		},
		TopArticles:       5,
		MaxEntriesPerFeed: 20,
		CacheTTLMinutes:   30,
		FetchTimeout:      5000,
		SummaryMaxLength:  200,
	}
	return New(cfg, cache, logger.NewTestLogger(t))
}

func TestRelevantArticles_ScopeFiltering(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	defer server.Close()

	p := testProvider(t, server.URL, nil)

	brisbane := p.RelevantArticles(context.Background(), location.ScopeBrisbane)
	require.Len(t, brisbane, 1)
	assert.Equal(t, "Brisbane property prices climb again", brisbane[0].Title)
	assert.Equal(t, "Property News", brisbane[0].Source)
	assert.False(t, brisbane[0].Published.IsZero())

	national := p.RelevantArticles(context.Background(), location.ScopeNational)
	// Off-topic football item is dropped even at national scope.
	assert.Len(t, national, 3)
}

func TestRelevantArticles_FeedFailureIsSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := testProvider(t, server.URL, nil)
	articles := p.RelevantArticles(context.Background(), location.ScopeNational)
	assert.Empty(t, articles)
}

func TestRelevantArticles_TopNLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	defer server.Close()

	p := testProvider(t, server.URL, nil)
	p.topN = 1

	articles := p.RelevantArticles(context.Background(), location.ScopeNational)
	assert.Len(t, articles, 1)
}

func TestFeedBody_Cache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, feedXML)
	}))
	defer server.Close()

	p := testProvider(t, server.URL, cache)

	p.RelevantArticles(context.Background(), location.ScopeNational)
	p.RelevantArticles(context.Background(), location.ScopeBrisbane)

	// Second pass is served from the cache.
	assert.Equal(t, 1, hits)
	assert.True(t, mr.Exists("rss:feed:"+server.URL+"/feed"))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "plain text", stripTags("<p>plain <b>text</b></p>"))
	assert.Equal(t, "no markup", stripTags("no markup"))
}

func TestTruncate(t *testing.T) {
	p := &Provider{summaryMaxLength: 5}
	assert.Equal(t, "abcde...", p.truncate("abcdefgh"))
	assert.Equal(t, "abc", p.truncate("abc"))
}

func TestTruncate_MultibyteSummaryStaysValidUTF8(t *testing.T) {
	p := &Provider{summaryMaxLength: 5}
	got := p.truncate("日本の住宅市場は堅調")
	assert.Equal(t, "日本の住宅...", got)
	assert.True(t, utf8.ValidString(got))
}

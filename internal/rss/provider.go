// Package rss gathers recent property-news articles from configured feeds
// and filters them for relevance to a question's location scope.
package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"property-intelligence/internal/common/config"
	"property-intelligence/internal/common/database"
	stderrors "property-intelligence/internal/common/errors"
	"property-intelligence/internal/common/logger"
	"property-intelligence/internal/common/metrics"
	"property-intelligence/internal/location"
)

// topicKeywords gate articles to the property domain before any location
// filtering is applied.
var topicKeywords = []string{
	"property", "real estate", "housing", "market", "investment", "home",
}

// Article is one relevance-filtered feed entry.
type Article struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
	Published time.Time `json:"published"`
}

// Provider fetches, caches and filters the configured feeds.
type Provider struct {
	feeds            []config.FeedConfig
	cache            *database.RedisClient
	cacheTTL         time.Duration
	topN             int
	maxEntries       int
	summaryMaxLength int
	parser           *gofeed.Parser
	client           *http.Client
	logger           logger.Logger
}

// New builds a Provider. A nil cache disables caching; every request then
// hits the feeds directly.
func New(cfg config.RSSConfig, cache *database.RedisClient, log logger.Logger) *Provider {
	return &Provider{
		feeds:            cfg.Feeds,
		cache:            cache,
		cacheTTL:         time.Duration(cfg.CacheTTLMinutes) * time.Minute,
		topN:             cfg.TopArticles,
		maxEntries:       cfg.MaxEntriesPerFeed,
		summaryMaxLength: cfg.SummaryMaxLength,
		parser:           gofeed.NewParser(),
		client: &http.Client{
			Timeout: config.GetDuration(cfg.FetchTimeout),
		},
		logger: log.With(map[string]interface{}{
			"component": "rss",
		}),
	}
}

// RelevantArticles returns up to topN articles matching the property topic
// and the given scope. Feed failures are logged and skipped; the method
// never returns an error, only a possibly empty slice.
func (p *Provider) RelevantArticles(ctx context.Context, scope location.Scope) []Article {
	var articles []Article
	for _, feed := range p.feeds {
		entries, err := p.fetchFeed(ctx, feed)
		if err != nil {
			metrics.ContextFetchesTotal.WithLabelValues("rss", "error").Inc()
			p.logger.WithError(stderrors.NewRSSFetchFailedError(feed.Name, err)).
				Warn("feed fetch failed, skipping", nil)
			continue
		}
		metrics.ContextFetchesTotal.WithLabelValues("rss", "success").Inc()
		articles = append(articles, entries...)
	}

	var relevant []Article
	for _, a := range articles {
		if p.matches(a, scope) {
			relevant = append(relevant, a)
		}
		if len(relevant) >= p.topN {
			break
		}
	}

	p.logger.Debug("feed scan complete", map[string]interface{}{
		"scope":    string(scope),
		"fetched":  len(articles),
		"relevant": len(relevant),
	})
	return relevant
}

func (p *Provider) fetchFeed(ctx context.Context, feed config.FeedConfig) ([]Article, error) {
	body, err := p.feedBody(ctx, feed.URL)
	if err != nil {
		return nil, err
	}

	parsed, err := p.parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.Name, err)
	}

	items := parsed.Items
	if p.maxEntries > 0 && len(items) > p.maxEntries {
		items = items[:p.maxEntries]
	}

	articles := make([]Article, 0, len(items))
	for _, item := range items {
		a := Article{
			Title:   item.Title,
			Link:    item.Link,
			Summary: p.truncate(stripTags(item.Description)),
			Source:  feed.Name,
		}
		if item.PublishedParsed != nil {
			a.Published = *item.PublishedParsed
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// feedBody returns the raw feed XML, served from cache when possible.
func (p *Provider) feedBody(ctx context.Context, url string) (string, error) {
	key := "rss:feed:" + url

	if p.cache != nil {
		if cached, err := p.cache.Get(ctx, key); err == nil {
			metrics.RSSCacheEventsTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.RSSCacheEventsTotal.WithLabelValues("miss").Inc()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	body := string(raw)

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, body, p.cacheTTL); err != nil {
			p.logger.WithError(err).Warn("feed cache write failed", map[string]interface{}{
				"url": url,
			})
		}
	}
	return body, nil
}

// matches applies the topic gate and then the location predicate. National
// scope accepts every on-topic article.
func (p *Provider) matches(a Article, scope location.Scope) bool {
	text := strings.ToLower(a.Title + " " + a.Summary)

	onTopic := false
	for _, kw := range topicKeywords {
		if strings.Contains(text, kw) {
			onTopic = true
			break
		}
	}
	if !onTopic {
		return false
	}

	if scope == location.ScopeNational {
		return true
	}
	for _, kw := range location.Keywords(scope) {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// truncate limits a summary to summaryMaxLength runes. Counting runes keeps
// the cut on a UTF-8 boundary.
func (p *Provider) truncate(s string) string {
	if p.summaryMaxLength <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= p.summaryMaxLength {
		return s
	}
	return string(runes[:p.summaryMaxLength]) + "..."
}

// stripTags removes HTML markup that many feeds embed in descriptions.
func stripTags(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

package feeds

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"Briefcaster/internal/config"
	"Briefcaster/internal/domain"
	"Briefcaster/internal/provider"
)

const (
	// Bodies shorter than this are replaced by the extracted article text when extraction is on.
	minBodyRunes    = 280
	maxExtractions  = 10
	maxArticleBytes = 4 << 20
)

// RSSAdapter reads one RSS or Atom feed and keeps the entries that match the query.
type RSSAdapter struct {
	feed   config.FeedConfig
	opts   Options
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ provider.Adapter = (*RSSAdapter)(nil)

// NewRSSAdapter wires a feed; each configured feed becomes its own provider.
func NewRSSAdapter(feed config.FeedConfig, opts Options, logger *slog.Logger) *RSSAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RSSAdapter{
		feed:   feed,
		opts:   opts,
		parser: gofeed.NewParser(),
		logger: logger.With("component", "rss", "feed", feed.Name),
	}
}

// Name identifies the feed inside the registry.
func (a *RSSAdapter) Name() string {
	return "rss:" + a.feed.Name
}

// Fetch downloads the feed and returns entries mentioning any query term within the window.
func (a *RSSAdapter) Fetch(ctx context.Context, req provider.Request) ([]domain.ContentItem, error) {
	feed, err := a.download(ctx)
	if err != nil {
		return nil, fetchErr(a.Name(), err)
	}

	terms := provider.QueryTerms(req.Query)
	norm := newNormalizer(cmp.Or(feed.Title, a.feed.Name), a.opts.Ignore)
	items := make([]domain.ContentItem, 0, len(feed.Items))

	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		published := cmp.Or(entry.PublishedParsed, entry.UpdatedParsed)
		if published != nil && req.Window != nil && !req.Window.Contains(*published) {
			continue
		}
		body := cmp.Or(entry.Content, entry.Description)
		if !matchesTerms(terms, entry.Title, body) {
			continue
		}

		raw := rawItem{
			ID:     cmp.Or(entry.GUID, entry.Link),
			Title:  entry.Title,
			Body:   body,
			URL:    entry.Link,
			Source: cmp.Or(feed.Title, a.feed.Name),
		}
		if published != nil {
			raw.Published = published.UTC().Format(time.RFC3339)
		}
		items = norm.add(items, raw)
	}

	if a.feed.ExtractContent {
		a.extractBodies(ctx, items)
	}

	a.logger.Debug("feed fetched", "entries", len(feed.Items), "matched", len(items))
	return items, nil
}

func (a *RSSAdapter) download(ctx context.Context) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.opts.userAgent())

	resp, err := a.opts.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	feed, err := a.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// extractBodies replaces teaser bodies with the readable article text. Failures keep the teaser.
func (a *RSSAdapter) extractBodies(ctx context.Context, items []domain.ContentItem) {
	extracted := 0
	for i := range items {
		if extracted >= maxExtractions || ctx.Err() != nil {
			return
		}
		if items[i].URL == "" || len([]rune(items[i].Body)) >= minBodyRunes {
			continue
		}
		extracted++

		text, err := a.extract(ctx, items[i].URL)
		if err != nil {
			a.logger.Debug("content extraction failed", "url", items[i].URL, "error", err)
			continue
		}
		if text != "" {
			items[i].Body = text
		}
	}
}

func (a *RSSAdapter) extract(ctx context.Context, link string) (string, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.opts.userAgent())

	resp, err := a.opts.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("request article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article returned %s", resp.Status)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxArticleBytes), pageURL)
	if err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}
	return collapse(article.TextContent), nil
}

// matchesTerms reports whether title or body mentions any term. No terms matches everything.
func matchesTerms(terms []string, title, body string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(title + " " + body)
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

package domain

import (
	"regexp"
	"time"
	"unicode/utf8"
)

var tickerExpr = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// ContentItem is one normalized unit of fetched material.
type ContentItem struct {
	Title            string
	Body             string
	URL              string
	SourceName       string
	SourceProviderID string
	PublishedAt      *time.Time
	Tickers          []string

	// TopicSignature is filled once by the deduplicator and never recomputed.
	TopicSignature []string
	// AssignedSection is set once by the router; empty means unrouted.
	AssignedSection string
}

// ExtractTickers returns the distinct uppercase runs of one to five letters in title,
// in order of appearance.
func ExtractTickers(title string) []string {
	matches := tickerExpr.FindAllString(title, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	tickers := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		tickers = append(tickers, m)
	}
	return tickers
}

// CompanyKey identifies the entity an item is about for anti-repetition purposes.
func (c ContentItem) CompanyKey() string {
	if len(c.Tickers) > 0 {
		return c.Tickers[0]
	}
	return truncateRunes(c.Title, 30)
}

// Preview returns at most n runes of the body; the stored body is left untouched.
func (c ContentItem) Preview(n int) string {
	return truncateRunes(c.Body, n)
}

// SortTime is the publication time, or now for undated items.
func (c ContentItem) SortTime(now time.Time) time.Time {
	if c.PublishedAt == nil {
		return now
	}
	return *c.PublishedAt
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

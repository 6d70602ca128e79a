package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"Briefcaster/internal/domain"
)

const (
	defaultUserAgent = "Briefcaster/1.0"
	defaultTimeout   = 20 * time.Second
)

// Options are shared by every HTTP-backed adapter.
type Options struct {
	Client    *http.Client
	UserAgent string
	// Ignore lists source names or domains whose items are dropped.
	Ignore []string
}

func (o Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (o Options) userAgent() string {
	if o.UserAgent != "" {
		return o.UserAgent
	}
	return defaultUserAgent
}

// rawItem is a provider record before normalization.
type rawItem struct {
	ID        string
	Title     string
	Body      string
	URL       string
	Source    string
	Published string
}

// normalizer turns raw provider records into ContentItems, enforcing the adapter
// guarantees: titled items only, no repeated provider ids, ignored sources removed.
type normalizer struct {
	provider string
	ignore   []string
	seen     map[string]struct{}
}

func newNormalizer(provider string, ignore []string) *normalizer {
	lowered := make([]string, 0, len(ignore))
	for _, v := range ignore {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			lowered = append(lowered, v)
		}
	}
	return &normalizer{provider: provider, ignore: lowered, seen: map[string]struct{}{}}
}

func (n *normalizer) add(dst []domain.ContentItem, raw rawItem) []domain.ContentItem {
	title := collapse(plainText(raw.Title))
	if title == "" {
		return dst
	}
	if n.ignored(raw.Source, raw.URL) {
		return dst
	}

	id := raw.ID
	if id == "" {
		id = raw.URL
	}
	if id == "" {
		id = title
	}
	if _, dup := n.seen[id]; dup {
		return dst
	}
	n.seen[id] = struct{}{}

	source := strings.TrimSpace(raw.Source)
	if source == "" {
		source = n.provider
	}

	return append(dst, domain.ContentItem{
		Title:            title,
		Body:             collapse(plainText(raw.Body)),
		URL:              raw.URL,
		SourceName:       source,
		SourceProviderID: id,
		PublishedAt:      parseTime(raw.Published),
		Tickers:          domain.ExtractTickers(title),
	})
}

func (n *normalizer) ignored(source, link string) bool {
	if len(n.ignore) == 0 {
		return false
	}
	source = strings.ToLower(source)
	host := ""
	if u, err := url.Parse(link); err == nil {
		host = strings.ToLower(u.Hostname())
	}
	for _, blocked := range n.ignore {
		if strings.Contains(source, blocked) {
			return true
		}
		if host != "" && (host == blocked || strings.HasSuffix(host, "."+blocked)) {
			return true
		}
	}
	return false
}

// plainText strips markup from provider bodies; plain strings pass through untouched.
func plainText(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

// postJSON sends payload and decodes a 2xx JSON response into out.
func postJSON(ctx context.Context, opts Options, endpoint string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", opts.userAgent())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := opts.client().Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func fetchErr(provider string, err error) error {
	return &domain.FetchError{Provider: provider, Cause: err}
}

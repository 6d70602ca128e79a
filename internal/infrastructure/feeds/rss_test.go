package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Briefcaster/internal/config"
	"Briefcaster/internal/domain"
	"Briefcaster/internal/logging"
	"Briefcaster/internal/provider"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Market Wire</title>
  <item>
    <title>NVDA shares jump after earnings beat</title>
    <link>https://example.org/nvda</link>
    <guid>nvda-1</guid>
    <description><![CDATA[<p>Chipmaker <b>Nvidia</b> rallied.</p>]]></description>
    <pubDate>Mon, 13 Oct 2025 14:00:00 +0000</pubDate>
  </item>
  <item>
    <title>NVDA shares jump after earnings beat</title>
    <link>https://example.org/nvda</link>
    <guid>nvda-1</guid>
    <description>duplicate entry</description>
    <pubDate>Mon, 13 Oct 2025 14:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Local weather turns cold</title>
    <link>https://example.org/weather</link>
    <guid>weather-1</guid>
    <description>Nothing about markets.</description>
    <pubDate>Mon, 13 Oct 2025 15:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Old earnings story</title>
    <link>https://example.org/old</link>
    <guid>old-1</guid>
    <description>Earnings from last month.</description>
    <pubDate>Mon, 01 Sep 2025 15:00:00 +0000</pubDate>
  </item>
  <item>
    <title></title>
    <link>https://example.org/untitled</link>
    <description>earnings without a title</description>
  </item>
</channel>
</rss>`

func testWindow() *domain.Window {
	return &domain.Window{
		Start: time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestRSSAdapterFiltersAndNormalizes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	adapter := NewRSSAdapter(config.FeedConfig{Name: "wire", URL: srv.URL}, Options{Client: srv.Client(), UserAgent: "test-agent"}, logging.Discard())
	if adapter.Name() != "rss:wire" {
		t.Fatalf("unexpected name %s", adapter.Name())
	}

	items, err := adapter.Fetch(context.Background(), provider.Request{Query: "Earnings OR Nvidia", Window: testWindow()})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d: %+v", len(items), items)
	}

	got := items[0]
	if got.Body != "Chipmaker Nvidia rallied." {
		t.Fatalf("expected markup stripped, got %q", got.Body)
	}
	if got.SourceName != "Market Wire" || got.SourceProviderID != "nvda-1" {
		t.Fatalf("unexpected source fields %+v", got)
	}
	if got.PublishedAt == nil || got.PublishedAt.Hour() != 14 {
		t.Fatalf("unexpected publish time %v", got.PublishedAt)
	}
	if len(got.Tickers) != 1 || got.Tickers[0] != "NVDA" {
		t.Fatalf("unexpected tickers %v", got.Tickers)
	}
}

func TestRSSAdapterExtractsShortBodies(t *testing.T) {
	t.Parallel()

	article := `<html><head><title>Full story</title></head><body><article>` +
		strings.Repeat("<p>Revenue rose sharply across every data center segment this quarter. </p>", 20) +
		`</article></body></html>`

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		feed := strings.ReplaceAll(sampleFeed, "https://example.org/nvda", srv.URL+"/story")
		_, _ = w.Write([]byte(feed))
	})
	mux.HandleFunc("/story", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(article))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	feed := config.FeedConfig{Name: "wire", URL: srv.URL + "/feed", ExtractContent: true}
	adapter := NewRSSAdapter(feed, Options{Client: srv.Client()}, logging.Discard())

	items, err := adapter.Fetch(context.Background(), provider.Request{Query: "nvidia", Window: testWindow()})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if !strings.Contains(items[0].Body, "data center segment") {
		t.Fatalf("expected extracted body, got %q", items[0].Body)
	}
}

func TestRSSAdapterReportsFetchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := NewRSSAdapter(config.FeedConfig{Name: "broken", URL: srv.URL}, Options{Client: srv.Client()}, nil)
	_, err := adapter.Fetch(context.Background(), provider.Request{Query: "markets"})

	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Provider != "rss:broken" {
		t.Fatalf("unexpected provider %s", fetchErr.Provider)
	}
}

func TestFinlightAdapterRequestShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "secret" {
			t.Errorf("missing api key header")
		}
		var body finlightRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Query != "Tesla OR EV" || !body.IncludeContent || body.PageSize != 100 {
			t.Errorf("unexpected body %+v", body)
		}
		if body.From != "2025-10-12T00:00:00Z" || body.To != "2025-10-14T00:00:00Z" {
			t.Errorf("unexpected window %s..%s", body.From, body.To)
		}
		_, _ = w.Write([]byte(`{"articles":[
			{"link":"https://a.example/1","title":"TSLA deliveries rise","content":"","summary":"Deliveries beat.","publishDate":"2025-10-13T09:30:00Z","source":"reuters.com"},
			{"link":"https://timesofindia.indiatimes.com/x","title":"Tesla in India","content":"body","publishDate":"2025-10-13T10:00:00Z","source":"timesofindia.indiatimes.com"},
			{"link":"https://a.example/2","title":"","content":"no title"}
		]}`))
	}))
	defer srv.Close()

	cfg := config.FinlightConfig{Endpoint: srv.URL, APIKey: "secret"}
	adapter := NewFinlightAdapter(cfg, Options{Client: srv.Client(), Ignore: []string{"timesofindia"}}, logging.Discard())

	items, err := adapter.Fetch(context.Background(), provider.Request{Query: "Tesla OR EV", Window: testWindow()})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected ignored and untitled items dropped, got %d", len(items))
	}
	if items[0].Body != "Deliveries beat." || items[0].SourceName != "reuters.com" {
		t.Fatalf("unexpected item %+v", items[0])
	}
}

func TestFinlightAdapterWithoutKey(t *testing.T) {
	t.Parallel()

	adapter := NewFinlightAdapter(config.FinlightConfig{}, Options{}, nil)
	_, err := adapter.Fetch(context.Background(), provider.Request{Query: "markets"})
	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Provider != "finlight" {
		t.Fatalf("expected finlight FetchError, got %v", err)
	}
}

func TestNewsAPIAIAdapterSplitsKeywords(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body newsAPIAIRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body.Keyword) != 2 || body.Keyword[0] != "Tesla" || body.KeywordOper != "or" {
			t.Errorf("unexpected keywords %+v", body)
		}
		if body.DateStart != "2025-10-12" || body.DateEnd != "2025-10-14" || body.APIKey != "k" {
			t.Errorf("unexpected request %+v", body)
		}
		_, _ = w.Write([]byte(`{"articles":{"results":[
			{"uri":"8812","title":"EV makers rally","body":"Shares climbed.","url":"https://b.example/ev","dateTime":"2025-10-13T08:00:00Z","source":{"title":"Example Wire","uri":"b.example"}},
			{"uri":"8812","title":"EV makers rally","body":"dup","url":"https://b.example/ev","dateTime":"2025-10-13T08:00:00Z","source":{"title":"Example Wire"}}
		]}}`))
	}))
	defer srv.Close()

	cfg := config.NewsAPIAIConfig{Endpoint: srv.URL, APIKey: "k"}
	adapter := NewNewsAPIAIAdapter(cfg, Options{Client: srv.Client()}, logging.Discard())

	items, err := adapter.Fetch(context.Background(), provider.Request{Query: "Tesla OR EV", Window: testWindow()})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected duplicate uri removed, got %d", len(items))
	}
	if items[0].SourceProviderID != "8812" || items[0].SourceName != "Example Wire" {
		t.Fatalf("unexpected item %+v", items[0])
	}
}

func TestNewsAPIAIAdapterAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	adapter := NewNewsAPIAIAdapter(config.NewsAPIAIConfig{Endpoint: srv.URL, APIKey: "bad"}, Options{Client: srv.Client()}, nil)
	_, err := adapter.Fetch(context.Background(), provider.Request{Query: "markets"})
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"plain words":                          "plain words",
		"<p>Hello <em>world</em></p>":          "Hello world",
		"<div>a<script>var x=1</script>b</div>": "ab",
	}
	for in, want := range cases {
		if got := collapse(plainText(in)); got != want {
			t.Fatalf("plainText(%q) = %q, want %q", in, got, want)
		}
	}
}

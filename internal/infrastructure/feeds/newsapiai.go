package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"Briefcaster/internal/config"
	"Briefcaster/internal/domain"
	"Briefcaster/internal/provider"
)

const newsAPIAIName = "newsapi.ai"

// NewsAPIAIAdapter queries Event Registry's article search.
type NewsAPIAIAdapter struct {
	cfg    config.NewsAPIAIConfig
	opts   Options
	logger *slog.Logger
}

var _ provider.Adapter = (*NewsAPIAIAdapter)(nil)

// NewNewsAPIAIAdapter wires the adapter; MaxArticles defaults to 50 and is capped at 100.
func NewNewsAPIAIAdapter(cfg config.NewsAPIAIConfig, opts Options, logger *slog.Logger) *NewsAPIAIAdapter {
	if cfg.MaxArticles <= 0 {
		cfg.MaxArticles = 50
	}
	cfg.MaxArticles = min(cfg.MaxArticles, 100)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://eventregistry.org/api/v1/article/getArticles"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NewsAPIAIAdapter{cfg: cfg, opts: opts, logger: logger.With("component", "newsapiai")}
}

func (a *NewsAPIAIAdapter) Name() string {
	return newsAPIAIName
}

type newsAPIAIRequest struct {
	Action          string   `json:"action"`
	ResultType      string   `json:"resultType"`
	ArticlesSortBy  string   `json:"articlesSortBy"`
	ArticlesCount   int      `json:"articlesCount"`
	Lang            string   `json:"lang"`
	DataType        string   `json:"dataType"`
	Keyword         []string `json:"keyword,omitempty"`
	KeywordOper     string   `json:"keywordOper,omitempty"`
	KeywordsLoc     string   `json:"keywordsLoc,omitempty"`
	DateStart       string   `json:"dateStart,omitempty"`
	DateEnd         string   `json:"dateEnd,omitempty"`
	IgnoreSourceURI []string `json:"ignoreSourceUri,omitempty"`
	APIKey          string   `json:"apiKey"`
}

type newsAPIAIResponse struct {
	Error    json.RawMessage `json:"error"`
	Articles struct {
		Results []struct {
			URI      string `json:"uri"`
			Title    string `json:"title"`
			Body     string `json:"body"`
			URL      string `json:"url"`
			DateTime string `json:"dateTime"`
			Source   struct {
				Title string `json:"title"`
				URI   string `json:"uri"`
			} `json:"source"`
		} `json:"results"`
	} `json:"articles"`
}

// Fetch runs one keyword search. The OR expression is split into a keyword list.
func (a *NewsAPIAIAdapter) Fetch(ctx context.Context, req provider.Request) ([]domain.ContentItem, error) {
	if a.cfg.APIKey == "" {
		return nil, fetchErr(a.Name(), errors.New("api key is not configured"))
	}

	payload := newsAPIAIRequest{
		Action:          "getArticles",
		ResultType:      "articles",
		ArticlesSortBy:  "date",
		ArticlesCount:   a.cfg.MaxArticles,
		Lang:            "eng",
		DataType:        "news",
		IgnoreSourceURI: a.opts.Ignore,
		APIKey:          a.cfg.APIKey,
	}
	if keywords := provider.SplitQuery(req.Query); len(keywords) > 0 {
		payload.Keyword = keywords
		payload.KeywordOper = "or"
		payload.KeywordsLoc = "body,title"
	}
	if req.Window != nil {
		payload.DateStart = req.Window.Start.UTC().Format("2006-01-02")
		payload.DateEnd = req.Window.End.UTC().Format("2006-01-02")
	}

	var resp newsAPIAIResponse
	if err := postJSON(ctx, a.opts, a.cfg.Endpoint, nil, payload, &resp); err != nil {
		return nil, fetchErr(a.Name(), err)
	}
	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		return nil, fetchErr(a.Name(), fmt.Errorf("api error: %s", resp.Error))
	}

	norm := newNormalizer(a.Name(), a.opts.Ignore)
	results := resp.Articles.Results
	items := make([]domain.ContentItem, 0, len(results))
	for _, art := range results {
		source := art.Source.Title
		if source == "" {
			source = art.Source.URI
		}
		items = norm.add(items, rawItem{
			ID:        art.URI,
			Title:     art.Title,
			Body:      art.Body,
			URL:       art.URL,
			Source:    source,
			Published: art.DateTime,
		})
	}

	a.logger.Debug("newsapi.ai fetched", "query", req.Query, "returned", len(results), "kept", len(items))
	return items, nil
}

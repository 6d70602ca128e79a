package feeds

import (
	"context"
	"errors"
	"log/slog"

	"Briefcaster/internal/config"
	"Briefcaster/internal/domain"
	"Briefcaster/internal/provider"
)

const finlightName = "finlight"

// FinlightAdapter queries the Finlight financial news API.
type FinlightAdapter struct {
	cfg    config.FinlightConfig
	opts   Options
	logger *slog.Logger
}

var _ provider.Adapter = (*FinlightAdapter)(nil)

// NewFinlightAdapter wires the adapter; PageSize defaults to 100.
func NewFinlightAdapter(cfg config.FinlightConfig, opts Options, logger *slog.Logger) *FinlightAdapter {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.finlight.me/v2/articles"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FinlightAdapter{cfg: cfg, opts: opts, logger: logger.With("component", finlightName)}
}

func (a *FinlightAdapter) Name() string {
	return finlightName
}

type finlightRequest struct {
	Query               string `json:"query"`
	From                string `json:"from,omitempty"`
	To                  string `json:"to,omitempty"`
	IncludeContent      bool   `json:"includeContent"`
	ExcludeEmptyContent bool   `json:"excludeEmptyContent"`
	PageSize            int    `json:"pageSize"`
}

type finlightResponse struct {
	Articles []struct {
		Link        string `json:"link"`
		Title       string `json:"title"`
		Content     string `json:"content"`
		Summary     string `json:"summary"`
		PublishDate string `json:"publishDate"`
		Source      string `json:"source"`
	} `json:"articles"`
}

// Fetch runs one search. Finlight understands OR expressions natively.
func (a *FinlightAdapter) Fetch(ctx context.Context, req provider.Request) ([]domain.ContentItem, error) {
	if a.cfg.APIKey == "" {
		return nil, fetchErr(a.Name(), errors.New("api key is not configured"))
	}

	payload := finlightRequest{
		Query:               req.Query,
		IncludeContent:      true,
		ExcludeEmptyContent: true,
		PageSize:            a.cfg.PageSize,
	}
	if req.Window != nil {
		payload.From = req.Window.Start.UTC().Format("2006-01-02T15:04:05Z")
		payload.To = req.Window.End.UTC().Format("2006-01-02T15:04:05Z")
	}

	var resp finlightResponse
	headers := map[string]string{"X-API-KEY": a.cfg.APIKey}
	if err := postJSON(ctx, a.opts, a.cfg.Endpoint, headers, payload, &resp); err != nil {
		return nil, fetchErr(a.Name(), err)
	}

	norm := newNormalizer(a.Name(), a.opts.Ignore)
	items := make([]domain.ContentItem, 0, len(resp.Articles))
	for _, art := range resp.Articles {
		body := art.Content
		if body == "" {
			body = art.Summary
		}
		items = norm.add(items, rawItem{
			ID:        art.Link,
			Title:     art.Title,
			Body:      body,
			URL:       art.Link,
			Source:    art.Source,
			Published: art.PublishDate,
		})
	}

	a.logger.Debug("finlight fetched", "query", req.Query, "returned", len(resp.Articles), "kept", len(items))
	return items, nil
}

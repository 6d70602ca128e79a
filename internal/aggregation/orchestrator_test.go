package aggregation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"Briefcaster/internal/domain"
	"Briefcaster/internal/provider"
)

type funcAdapter struct {
	name string
	fn   func(ctx context.Context, req provider.Request) ([]domain.ContentItem, error)

	mu      sync.Mutex
	queries []string
}

func (f *funcAdapter) Name() string { return f.name }

func (f *funcAdapter) Fetch(ctx context.Context, req provider.Request) ([]domain.ContentItem, error) {
	f.mu.Lock()
	f.queries = append(f.queries, req.Query)
	f.mu.Unlock()
	return f.fn(ctx, req)
}

func (f *funcAdapter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func staticAdapter(name string, items []domain.ContentItem) *funcAdapter {
	return &funcAdapter{name: name, fn: func(context.Context, provider.Request) ([]domain.ContentItem, error) {
		return items, nil
	}}
}

func hangingAdapter(name string) *funcAdapter {
	return &funcAdapter{name: name, fn: func(ctx context.Context, _ provider.Request) ([]domain.ContentItem, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
}

func stockItems(source string, from, n int) []domain.ContentItem {
	items := make([]domain.ContentItem, 0, n)
	for i := from; i < from+n; i++ {
		items = append(items, domain.ContentItem{
			Title:            fmt.Sprintf("Company%02d stock earnings report beats estimates", i),
			Body:             "Shares moved after the quarterly update.",
			SourceName:       source,
			SourceProviderID: fmt.Sprintf("%s-%d", source, i),
		})
	}
	return items
}

func testConfig() Config {
	return Config{
		Catalog:            testCatalog(true),
		Tables:             testTables(),
		MinDurationMinutes: 5,
		MinItems:           5,
		Fallbacks:          []string{"stock market", "news"},
		AdapterTimeout:     50 * time.Millisecond,
	}
}

func TestRunToleratesTimedOutProvider(t *testing.T) {
	t.Parallel()

	slow := hangingAdapter("slow")
	orch := NewOrchestrator([]provider.Adapter{
		staticAdapter("finlight", stockItems("finlight", 0, 10)),
		slow,
		staticAdapter("newsapiai", stockItems("newsapiai", 10, 10)),
	}, testConfig(), nil)

	pkg, report, err := orch.Run(context.Background(), domain.BriefingRequest{Topic: "earnings", DurationMinutes: 10})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if pkg.StrategyTier != domain.TierComprehensive {
		t.Fatalf("expected comprehensive tier, got %s", pkg.StrategyTier)
	}
	if pkg.ItemCount() != 20 {
		t.Fatalf("expected 20 routed items, got %d", pkg.ItemCount())
	}
	if report.Entered(StateEscalating) {
		t.Fatalf("escalation should not happen: %v", report.Transitions)
	}
	if report.SourcesSummary() != "sources used: 2 of 3" {
		t.Fatalf("unexpected summary: %s", report.SourcesSummary())
	}
	if len(report.FetchErrors) != 1 || report.FetchErrors[0].Provider != "slow" {
		t.Fatalf("expected one fetch error from slow provider, got %+v", report.FetchErrors)
	}
	if !errors.Is(report.FetchErrors[0], context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", report.FetchErrors[0].Cause)
	}
	if report.Final() != StateDone {
		t.Fatalf("expected done, got %s", report.Final())
	}
	if pkg.TargetWords() != 1500 {
		t.Fatalf("expected 1500 planned words, got %d", pkg.TargetWords())
	}
}

func TestRunFewItemsUsesDeepAnalysis(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinItems = 1
	orch := NewOrchestrator([]provider.Adapter{
		staticAdapter("finlight", []domain.ContentItem{
			{Title: "AAPL stock slides on weak iPhone demand"},
			{Title: "Crude oil jumps as OPEC trims output"},
			{Title: "MSFT cloud revenue tops forecasts"},
		}),
	}, cfg, nil)

	pkg, _, err := orch.Run(context.Background(), domain.BriefingRequest{Topic: "markets", DurationMinutes: 10})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if pkg.StrategyTier != domain.TierDeepAnalysis {
		t.Fatalf("expected deep-analysis, got %s", pkg.StrategyTier)
	}
	if pkg.TargetWords() != 1500 {
		t.Fatalf("expected 1500 words, got %d", pkg.TargetWords())
	}
	for _, s := range pkg.Sections {
		if len(s.Items) == 0 {
			t.Fatalf("empty section %s in package", s.Name)
		}
	}
	if len(pkg.CoveredEntities) != 3 {
		t.Fatalf("expected 3 covered entities, got %v", pkg.CoveredEntities)
	}
}

func TestRunEscalatesUntilEnoughItems(t *testing.T) {
	t.Parallel()

	adapter := &funcAdapter{name: "finlight", fn: func(_ context.Context, req provider.Request) ([]domain.ContentItem, error) {
		switch req.Query {
		case "lithium":
			return stockItems("finlight", 0, 1), nil
		case "stock market":
			return stockItems("finlight", 1, 8), nil
		}
		return nil, nil
	}}

	orch := NewOrchestrator([]provider.Adapter{adapter}, testConfig(), nil)
	pkg, report, err := orch.Run(context.Background(), domain.BriefingRequest{Topic: "lithium", DurationMinutes: 6})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Escalations != 1 {
		t.Fatalf("expected 1 escalation, got %d", report.Escalations)
	}
	if strings.Join(report.Queries, ",") != "lithium,stock market" {
		t.Fatalf("unexpected queries %v", report.Queries)
	}
	if adapter.calls() != 2 {
		t.Fatalf("expected 2 provider calls, got %d", adapter.calls())
	}
	if pkg.ItemCount() != 9 || pkg.StrategyTier != domain.TierDetailed {
		t.Fatalf("expected 9 items in detailed tier, got %d in %s", pkg.ItemCount(), pkg.StrategyTier)
	}
}

func TestRunExhaustedLadderDegradesGracefully(t *testing.T) {
	t.Parallel()

	orch := NewOrchestrator([]provider.Adapter{
		staticAdapter("finlight", stockItems("finlight", 0, 2)),
	}, testConfig(), nil)

	pkg, report, err := orch.Run(context.Background(), domain.BriefingRequest{Topic: "lithium", DurationMinutes: 5})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Escalations != 2 || len(report.Queries) != 3 {
		t.Fatalf("expected full ladder, got %d escalations and queries %v", report.Escalations, report.Queries)
	}
	if pkg.ItemCount() != 2 {
		t.Fatalf("expected 2 items, got %d", pkg.ItemCount())
	}
}

func TestRunNoContentNamesQuery(t *testing.T) {
	t.Parallel()

	failing := &funcAdapter{name: "rss", fn: func(context.Context, provider.Request) ([]domain.ContentItem, error) {
		return nil, &domain.FetchError{Provider: "rss", Cause: errors.New("503 Service Unavailable")}
	}}
	orch := NewOrchestrator([]provider.Adapter{staticAdapter("finlight", nil), failing}, testConfig(), nil)

	window := domain.Window{
		Start: time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC),
	}
	_, report, err := orch.Run(context.Background(), domain.BriefingRequest{Topic: "quantum batteries", DurationMinutes: 5, Window: &window})

	var noContent *domain.NoContentError
	if !errors.As(err, &noContent) {
		t.Fatalf("expected NoContentError, got %v", err)
	}
	if noContent.Query != "quantum batteries" {
		t.Fatalf("unexpected query %q", noContent.Query)
	}
	if len(noContent.Attempts) != 3 {
		t.Fatalf("expected every rung to be tried, got %v", noContent.Attempts)
	}
	if !strings.Contains(err.Error(), `"quantum batteries"`) || !strings.Contains(err.Error(), "2026-10-18") {
		t.Fatalf("message should name topic and window: %s", err.Error())
	}
	if report.Final() != StateFailed {
		t.Fatalf("expected failed state, got %s", report.Final())
	}
	if len(report.FetchErrors) != 3 {
		t.Fatalf("expected one fetch error per level, got %d", len(report.FetchErrors))
	}
}

func TestRunRejectsShortDurationBeforeFetching(t *testing.T) {
	t.Parallel()

	adapter := staticAdapter("finlight", stockItems("finlight", 0, 20))
	orch := NewOrchestrator([]provider.Adapter{adapter}, testConfig(), nil)

	_, _, err := orch.Run(context.Background(), domain.BriefingRequest{Topic: "markets", DurationMinutes: 2})
	var budgetErr *domain.BudgetError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("expected BudgetError, got %v", err)
	}
	if adapter.calls() != 0 {
		t.Fatalf("providers should not be called, got %d calls", adapter.calls())
	}
}

func TestRunOverallDeadlineDiscardsPendingProviders(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	stuck := &funcAdapter{name: "stuck", fn: func(context.Context, provider.Request) ([]domain.ContentItem, error) {
		<-release
		return stockItems("stuck", 100, 5), nil
	}}

	cfg := testConfig()
	cfg.AdapterTimeout = 0
	orch := NewOrchestrator([]provider.Adapter{staticAdapter("finlight", stockItems("finlight", 0, 6)), stuck}, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	pkg, report, err := orch.Run(ctx, domain.BriefingRequest{Topic: "earnings", DurationMinutes: 5})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if pkg.ItemCount() != 6 {
		t.Fatalf("expected only the finished provider's items, got %d", pkg.ItemCount())
	}
	if report.SourcesUsed != 1 || len(report.FetchErrors) != 1 || report.FetchErrors[0].Provider != "stuck" {
		t.Fatalf("expected stuck provider to be recorded as failed, got %+v", report.FetchErrors)
	}
}

func TestRunWindowFilterKeepsUndatedItems(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	old := now.Add(-96 * time.Hour)
	fresh := now.Add(-2 * time.Hour)

	cfg := testConfig()
	cfg.MinItems = 1
	orch := NewOrchestrator([]provider.Adapter{staticAdapter("finlight", []domain.ContentItem{
		{Title: "Stale stock buyback story", PublishedAt: &old},
		{Title: "Fresh stock split announced", PublishedAt: &fresh},
		{Title: "Undated company earnings note"},
	})}, cfg, nil)
	orch.now = func() time.Time { return now }

	window := domain.LookbackWindow(now, 24, false)
	pkg, _, err := orch.Run(context.Background(), domain.BriefingRequest{Topic: "stocks", DurationMinutes: 5, Window: &window})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var titles []string
	for _, s := range pkg.Sections {
		for _, it := range s.Items {
			titles = append(titles, it.Title)
		}
	}
	if strings.Join(titles, "|") != "Undated company earnings note|Fresh stock split announced" {
		t.Fatalf("unexpected items %v", titles)
	}
}

func TestRunExpandsRelatedTerms(t *testing.T) {
	t.Parallel()

	adapter := staticAdapter("finlight", stockItems("finlight", 0, 6))
	cfg := testConfig()
	cfg.RelatedTerms = map[string][]string{"tesla": {"EV", "Elon Musk"}}
	orch := NewOrchestrator([]provider.Adapter{adapter}, cfg, nil)

	if _, _, err := orch.Run(context.Background(), domain.BriefingRequest{Topic: "Tesla", DurationMinutes: 5}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if adapter.queries[0] != "Tesla OR EV OR Elon Musk" {
		t.Fatalf("unexpected first query %q", adapter.queries[0])
	}
}

func TestRunRepeatedItemsDoNotStopLadderEarly(t *testing.T) {
	t.Parallel()

	// Two-word titles have weak signatures and always survive Deduplicate.
	adapter := staticAdapter("finlight", []domain.ContentItem{
		{Title: "Stocks slip", SourceName: "finlight", SourceProviderID: "a"},
		{Title: "Oil slides", SourceName: "finlight", SourceProviderID: "b"},
		{Title: "Gold dips", SourceName: "finlight", SourceProviderID: "c"},
	})
	orch := NewOrchestrator([]provider.Adapter{adapter}, testConfig(), nil)

	pkg, report, err := orch.Run(context.Background(), domain.BriefingRequest{Topic: "lithium", DurationMinutes: 5})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Queries) != 3 || report.Escalations != 2 || report.Rungs != 3 {
		t.Fatalf("expected the full ladder, got queries %v and %d escalations", report.Queries, report.Escalations)
	}
	if report.Unique != 3 || report.Skipped != 0 {
		t.Fatalf("expected 3 distinct items and no skips, got unique=%d skipped=%d", report.Unique, report.Skipped)
	}
	if pkg.ItemCount() != 3 {
		t.Fatalf("expected 3 routed items, got %d", pkg.ItemCount())
	}
}

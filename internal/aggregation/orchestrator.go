package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"Briefcaster/internal/domain"
	"Briefcaster/internal/provider"
)

// Config is the catalog and policy data an orchestrator runs with.
type Config struct {
	Catalog            []SectionSpec
	Tables             map[domain.Tier]TierTable
	Thresholds         VolumeThresholds
	MinDurationMinutes float64
	// MinItems below which the next ladder rung is tried.
	MinItems int
	// MaxItems caps deduplicated items handed to routing; 0 means no cap.
	MaxItems       int
	Fallbacks      []string
	RelatedTerms   map[string][]string
	AdapterTimeout time.Duration
}

// Orchestrator fans out to providers, escalates through the fallback ladder and
// drives dedup, routing, classification and budgeting for one request at a time.
type Orchestrator struct {
	adapters   []provider.Adapter
	cfg        Config
	router     *SectionRouter
	classifier *VolumeClassifier
	planner    *BudgetPlanner
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator wires adapters with the configured catalog and tables.
func NewOrchestrator(adapters []provider.Adapter, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.MinItems <= 0 {
		cfg.MinItems = 1
	}
	return &Orchestrator{
		adapters:   adapters,
		cfg:        cfg,
		router:     NewSectionRouter(cfg.Catalog),
		classifier: NewVolumeClassifier(cfg.Thresholds),
		planner:    NewBudgetPlanner(cfg.Tables, cfg.MinDurationMinutes),
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one aggregation. Fatal outcomes are *domain.BudgetError or
// *domain.NoContentError; provider failures only show up in the report.
func (o *Orchestrator) Run(ctx context.Context, req domain.BriefingRequest) (*domain.ContentPackage, RunReport, error) {
	report := RunReport{SourcesTotal: len(o.adapters)}
	o.enter(&report, StateIdle, 0)

	if err := o.planner.Validate(req.DurationMinutes); err != nil {
		o.enter(&report, StateFailed, 0)
		return nil, report, err
	}
	if len(o.adapters) == 0 {
		o.enter(&report, StateFailed, 0)
		return nil, report, fmt.Errorf("no content providers configured")
	}

	runStart := o.now()
	ladder := NewLadder(o.primaryQuery(req.Topic), o.cfg.Fallbacks)
	used := map[string]bool{}
	report.Rungs = ladder.Depth()

	seen := map[itemKey]struct{}{}
	var collected, unique []*domain.ContentItem
	for {
		query, ok := ladder.Next()
		if !ok {
			break
		}
		level := ladder.Level()
		if level > 0 {
			report.Escalations = level
			o.enter(&report, StateEscalating, level)
			o.info("escalating query", "level", level, "query", query, "unique", len(unique), "min_items", o.cfg.MinItems)
		}
		o.enter(&report, StateFetching, level)
		report.Queries = append(report.Queries, query)

		for _, res := range o.fetchAll(ctx, provider.Request{Query: query, Window: req.Window}) {
			if res.err != nil {
				report.FetchErrors = append(report.FetchErrors, res.err)
				o.warn("provider failed", "provider", res.name, "query", query, "error", res.err.Cause)
				continue
			}
			used[res.name] = true
			batch := filterWindow(toPointers(res.items), req.Window)
			report.Fetched += len(batch)
			fresh := dropSeen(batch, seen)
			o.debug("provider returned items", "provider", res.name, "query", query, "count", len(batch), "new", len(fresh))
			collected = append(collected, fresh...)
		}

		sortNewestFirst(collected, runStart)
		unique = Deduplicate(collected)
		if len(unique) >= o.cfg.MinItems || ctx.Err() != nil {
			break
		}
	}

	report.SourcesUsed = len(used)
	report.Unique = len(unique)

	if len(unique) == 0 {
		return nil, report, o.noContent(&report, req, ladder)
	}
	if o.cfg.MaxItems > 0 && len(unique) > o.cfg.MaxItems {
		unique = unique[:o.cfg.MaxItems]
	}

	o.enter(&report, StateRouting, 0)
	routing := o.router.Route(unique)
	report.Skipped = routing.Skipped
	report.Dropped = routing.Dropped

	n := routing.Routed()
	if n == 0 {
		return nil, report, o.noContent(&report, req, ladder)
	}
	tier, err := o.classifier.Classify(n)
	if err != nil {
		return nil, report, o.noContent(&report, req, ladder)
	}

	o.enter(&report, StateBudgeting, 0)
	sections := routing.NonEmpty()
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.Name
	}
	plan, err := o.planner.Plan(tier, req.DurationMinutes, names)
	if err != nil {
		o.enter(&report, StateFailed, 0)
		return nil, report, fmt.Errorf("plan budget: %w", err)
	}
	for i := range sections {
		sections[i].TargetWords = plan[i].Words
	}

	pkg := &domain.ContentPackage{
		Sections:        sections,
		StrategyTier:    tier,
		CoveredEntities: routing.Covered.Sorted(),
	}
	o.enter(&report, StateDone, 0)
	o.info("aggregation done",
		"tier", tier,
		"items", n,
		"sections", len(sections),
		"escalations", report.Escalations,
		"rungs", report.Rungs,
		"sources", report.SourcesSummary())

	return pkg, report, nil
}

func (o *Orchestrator) primaryQuery(topic string) string {
	if related, ok := o.cfg.RelatedTerms[strings.ToLower(strings.TrimSpace(topic))]; ok {
		return provider.ExpandKeywords(topic, related)
	}
	return topic
}

type itemKey struct {
	source string
	id     string
}

// dropSeen filters items already collected on an earlier rung. Items without a
// provider id cannot be matched and are always kept.
func dropSeen(batch []*domain.ContentItem, seen map[itemKey]struct{}) []*domain.ContentItem {
	out := batch[:0:0]
	for _, item := range batch {
		if item.SourceProviderID != "" {
			key := itemKey{source: item.SourceName, id: item.SourceProviderID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, item)
	}
	return out
}

func (o *Orchestrator) noContent(report *RunReport, req domain.BriefingRequest, ladder *Ladder) error {
	o.enter(report, StateFailed, 0)
	return &domain.NoContentError{
		Query:       req.Topic,
		Window:      req.Window,
		Attempts:    ladder.Tried(),
		FetchErrors: report.FetchErrors,
	}
}

type fetchResult struct {
	index int
	name  string
	items []domain.ContentItem
	err   *domain.FetchError
}

// fetchAll calls every adapter concurrently and waits for all of them, each bounded by
// the adapter timeout. When ctx ends first, adapters still pending count as failed.
// Results come back in adapter order regardless of completion order.
func (o *Orchestrator) fetchAll(ctx context.Context, req provider.Request) []fetchResult {
	results := make([]fetchResult, len(o.adapters))
	received := make([]bool, len(o.adapters))
	done := make(chan fetchResult, len(o.adapters))

	for i, adapter := range o.adapters {
		results[i] = fetchResult{index: i, name: adapter.Name()}
		go func(i int, adapter provider.Adapter) {
			done <- o.fetchOne(ctx, i, adapter, req)
		}(i, adapter)
	}

	pending := len(o.adapters)
wait:
	for pending > 0 {
		select {
		case res := <-done:
			results[res.index] = res
			received[res.index] = true
			pending--
		case <-ctx.Done():
			break wait
		}
	}

	for i := range results {
		if !received[i] {
			results[i].err = &domain.FetchError{Provider: results[i].name, Cause: ctx.Err()}
		}
	}
	return results
}

func (o *Orchestrator) fetchOne(ctx context.Context, index int, adapter provider.Adapter, req provider.Request) fetchResult {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if o.cfg.AdapterTimeout > 0 {
		actx, cancel = context.WithTimeout(ctx, o.cfg.AdapterTimeout)
	}
	defer cancel()

	res := fetchResult{index: index, name: adapter.Name()}
	inner := make(chan fetchResult, 1)
	go func() {
		items, err := adapter.Fetch(actx, req)
		inner <- fetchResult{index: index, name: res.name, items: items, err: asFetchError(res.name, err)}
	}()

	select {
	case r := <-inner:
		return r
	case <-actx.Done():
		res.err = &domain.FetchError{Provider: res.name, Cause: actx.Err()}
		return res
	}
}

func asFetchError(name string, err error) *domain.FetchError {
	if err == nil {
		return nil
	}
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &domain.FetchError{Provider: name, Cause: err}
}

func toPointers(items []domain.ContentItem) []*domain.ContentItem {
	out := make([]*domain.ContentItem, 0, len(items))
	for i := range items {
		if strings.TrimSpace(items[i].Title) == "" {
			continue
		}
		item := items[i]
		out = append(out, &item)
	}
	return out
}

// filterWindow removes dated items outside the window; undated items are kept.
func filterWindow(items []*domain.ContentItem, window *domain.Window) []*domain.ContentItem {
	if window == nil {
		return items
	}
	out := items[:0]
	for _, item := range items {
		if item.PublishedAt != nil && !window.Contains(*item.PublishedAt) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func sortNewestFirst(items []*domain.ContentItem, now time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortTime(now).After(items[j].SortTime(now))
	})
}

func (o *Orchestrator) enter(report *RunReport, state State, level int) {
	report.Transitions = append(report.Transitions, Transition{State: state, Level: level, At: o.now()})
	o.debug("state", "state", state, "level", level)
}

func (o *Orchestrator) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

func (o *Orchestrator) info(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

func (o *Orchestrator) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}

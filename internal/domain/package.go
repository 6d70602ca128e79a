package domain

import (
	"fmt"
	"time"
)

// Tier is the content strategy chosen from available item volume.
type Tier string

const (
	TierComprehensive Tier = "comprehensive"
	TierDetailed      Tier = "detailed"
	TierDeepAnalysis  Tier = "deep-analysis"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierComprehensive, TierDetailed, TierDeepAnalysis:
		return true
	}
	return false
}

// Window is an inclusive publication time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls within the window.
func (w Window) Contains(ts time.Time) bool {
	if !w.Start.IsZero() && ts.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && ts.After(w.End) {
		return false
	}
	return true
}

func (w Window) String() string {
	return fmt.Sprintf("%s to %s", w.Start.Format("2006-01-02 15:04"), w.End.Format("2006-01-02 15:04"))
}

// LookbackWindow ends at now and reaches back the given number of hours.
// With weekendAware set, a Monday reaches back at least 72 hours so Friday news is included.
func LookbackWindow(now time.Time, hours int, weekendAware bool) Window {
	if hours <= 0 {
		hours = 24
	}
	if weekendAware && now.Weekday() == time.Monday && hours < 72 {
		hours = 72
	}
	return Window{Start: now.Add(-time.Duration(hours) * time.Hour), End: now}
}

// Section is a named thematic bucket with its own word budget.
type Section struct {
	Name        string
	Items       []*ContentItem
	TargetWords int
}

// ContentPackage is the curated output of one aggregation run.
type ContentPackage struct {
	Sections        []Section
	StrategyTier    Tier
	CoveredEntities []string
}

// ItemCount returns the number of items across all sections.
func (p ContentPackage) ItemCount() int {
	total := 0
	for _, s := range p.Sections {
		total += len(s.Items)
	}
	return total
}

// TargetWords returns the planned word total.
func (p ContentPackage) TargetWords() int {
	total := 0
	for _, s := range p.Sections {
		total += s.TargetWords
	}
	return total
}

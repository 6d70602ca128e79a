package provider

import (
	"context"
	"strings"

	"Briefcaster/internal/domain"
)

// Request carries the parameters of a single provider call.
type Request struct {
	Query  string
	Window *domain.Window
}

// Adapter normalizes one external content provider into ContentItems.
// Implementations return only titled items, report failures as *domain.FetchError
// and never retry.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, req Request) ([]domain.ContentItem, error)
}

// Registry keeps adapters in registration order.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

// Register adds or replaces an adapter implementation.
func (r *Registry) Register(adapter Adapter) {
	if r.adapters == nil {
		r.adapters = map[string]Adapter{}
	}
	name := adapter.Name()
	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.adapters[name] = adapter
}

// All returns adapters in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// SplitQuery splits a keyword expression like "Tesla OR EV" into its terms, keeping case.
func SplitQuery(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" || query == "*" {
		return nil
	}

	parts := strings.Split(query, " OR ")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"()`)
		if p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}

// QueryTerms is SplitQuery lowercased, for client-side matching.
func QueryTerms(query string) []string {
	terms := SplitQuery(query)
	for i := range terms {
		terms[i] = strings.ToLower(terms[i])
	}
	return terms
}

// ExpandKeywords joins a topic and its related keywords into a provider OR expression.
func ExpandKeywords(topic string, related []string) string {
	terms := []string{strings.TrimSpace(topic)}
	for _, r := range related {
		r = strings.TrimSpace(r)
		if r == "" || strings.EqualFold(r, terms[0]) {
			continue
		}
		terms = append(terms, r)
	}
	return strings.Join(terms, " OR ")
}

package aggregation

import (
	"sort"
	"strings"

	"Briefcaster/internal/domain"
)

// SectionSpec describes one thematic bucket of the catalog.
type SectionSpec struct {
	Name     string
	Keywords []string
	// Overflow marks the bucket for items that match no keyword.
	Overflow bool
}

// EntitySet records company keys already covered in one briefing run.
// It is not safe for concurrent use; routing is sequential.
type EntitySet struct {
	keys map[string]struct{}
}

// NewEntitySet creates an empty set.
func NewEntitySet() *EntitySet {
	return &EntitySet{keys: map[string]struct{}{}}
}

// Claim inserts key if absent and reports whether this call inserted it.
func (s *EntitySet) Claim(key string) bool {
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Has reports whether key was already claimed.
func (s *EntitySet) Has(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Sorted returns the claimed keys in lexical order.
func (s *EntitySet) Sorted() []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Routing is the result of one router pass.
type Routing struct {
	Sections []domain.Section
	Covered  *EntitySet
	Skipped  int
	Dropped  int
}

// Routed returns the number of items placed in any section.
func (r Routing) Routed() int {
	n := 0
	for _, s := range r.Sections {
		n += len(s.Items)
	}
	return n
}

// NonEmpty returns only sections that received at least one item, in catalog order.
func (r Routing) NonEmpty() []domain.Section {
	out := make([]domain.Section, 0, len(r.Sections))
	for _, s := range r.Sections {
		if len(s.Items) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// SectionRouter assigns items to at most one section each and skips entities that
// an earlier item already covered.
type SectionRouter struct {
	catalog  []SectionSpec
	keywords [][]string
	overflow int
}

// NewSectionRouter prepares lowercase keyword tables for the catalog.
func NewSectionRouter(catalog []SectionSpec) *SectionRouter {
	r := &SectionRouter{catalog: catalog, overflow: -1}
	r.keywords = make([][]string, len(catalog))
	for i, spec := range catalog {
		for _, kw := range spec.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				r.keywords[i] = append(r.keywords[i], kw)
			}
		}
		if spec.Overflow && r.overflow < 0 {
			r.overflow = i
		}
	}
	return r
}

// Route walks items in order and fills the catalog's sections.
func (r *SectionRouter) Route(items []*domain.ContentItem) Routing {
	result := Routing{
		Sections: make([]domain.Section, len(r.catalog)),
		Covered:  NewEntitySet(),
	}
	for i, spec := range r.catalog {
		result.Sections[i].Name = spec.Name
	}

	for _, item := range items {
		if item.Tickers == nil {
			item.Tickers = domain.ExtractTickers(item.Title)
		}

		key := item.CompanyKey()
		if result.Covered.Has(key) {
			result.Skipped++
			continue
		}

		idx := r.indexOf(item.AssignedSection)
		if idx < 0 {
			idx = r.bestSection(item)
		}
		if idx < 0 {
			result.Dropped++
			continue
		}

		result.Covered.Claim(key)
		if item.AssignedSection == "" {
			item.AssignedSection = r.catalog[idx].Name
		}
		result.Sections[idx].Items = append(result.Sections[idx].Items, item)
	}

	return result
}

// Score counts how many of each section's keywords occur in the item's text.
func (r *SectionRouter) Score(item *domain.ContentItem) []int {
	text := strings.ToLower(item.Title + " " + item.Body)
	scores := make([]int, len(r.catalog))
	for i, kws := range r.keywords {
		for _, kw := range kws {
			if strings.Contains(text, kw) {
				scores[i]++
			}
		}
	}
	return scores
}

func (r *SectionRouter) bestSection(item *domain.ContentItem) int {
	best, bestScore := -1, 0
	for i, score := range r.Score(item) {
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return r.overflow
	}
	return best
}

func (r *SectionRouter) indexOf(name string) int {
	if name == "" {
		return -1
	}
	for i, spec := range r.catalog {
		if spec.Name == name {
			return i
		}
	}
	return -1
}

package aggregation

import (
	"fmt"
	"math"

	"Briefcaster/internal/domain"
)

// WordsPerMinute is the assumed narration pace.
const WordsPerMinute = 150

// TierTable is the base word allocation of one tier.
type TierTable struct {
	// Sections maps section name to base words; Order keeps the iteration stable.
	Sections map[string]int
	Order    []string
	// Default is used for sections absent from Sections.
	Default int
}

// Allocation is the planned budget of one section.
type Allocation struct {
	Section string
	Words   int
}

// BudgetPlanner turns a tier and a duration into per-section word targets.
type BudgetPlanner struct {
	tables     map[domain.Tier]TierTable
	minMinutes float64
}

// NewBudgetPlanner builds a planner. minMinutes below 1 falls back to 5.
func NewBudgetPlanner(tables map[domain.Tier]TierTable, minMinutes float64) *BudgetPlanner {
	if minMinutes < 1 {
		minMinutes = 5
	}
	return &BudgetPlanner{tables: tables, minMinutes: minMinutes}
}

// Validate rejects durations below the configured minimum.
func (p *BudgetPlanner) Validate(minutes float64) error {
	if math.IsNaN(minutes) || minutes < p.minMinutes {
		return &domain.BudgetError{DurationMinutes: minutes, MinimumMinutes: p.minMinutes}
	}
	return nil
}

// TargetWords is the total word count for a duration.
func TargetWords(minutes float64) int {
	return int(math.Round(minutes * WordsPerMinute))
}

// Plan allocates round(minutes*150) words across sections in proportion to the tier's
// base table. With no sections given, every section of the table is planned.
// The largest base entry absorbs the rounding residual so the sum is exact.
func (p *BudgetPlanner) Plan(tier domain.Tier, minutes float64, sections []string) ([]Allocation, error) {
	if err := p.Validate(minutes); err != nil {
		return nil, err
	}

	table, ok := p.tables[tier]
	if !ok {
		return nil, fmt.Errorf("no budget table for tier %s", tier)
	}
	if len(sections) == 0 {
		sections = table.Order
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("budget table for tier %s is empty", tier)
	}

	bases := make([]int, len(sections))
	sum, largest := 0, 0
	for i, name := range sections {
		base, found := table.Sections[name]
		if !found {
			base = table.Default
		}
		if base <= 0 {
			return nil, fmt.Errorf("no base words for section %s in tier %s", name, tier)
		}
		bases[i] = base
		sum += base
		if base > bases[largest] {
			largest = i
		}
	}

	target := TargetWords(minutes)
	scale := float64(target) / float64(sum)

	plan := make([]Allocation, len(sections))
	allocated := 0
	for i, name := range sections {
		words := int(math.Round(float64(bases[i]) * scale))
		plan[i] = Allocation{Section: name, Words: words}
		allocated += words
	}
	plan[largest].Words += target - allocated

	return plan, nil
}

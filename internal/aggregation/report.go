package aggregation

import (
	"fmt"
	"time"

	"Briefcaster/internal/domain"
)

// State is a step of the aggregation state machine.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateEscalating State = "escalating"
	StateRouting    State = "routing"
	StateBudgeting  State = "budgeting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Transition records entry into a state; Level is the ladder rung for fetch states.
type Transition struct {
	State State
	Level int
	At    time.Time
}

func (t Transition) String() string {
	if t.State == StateEscalating || (t.State == StateFetching && t.Level > 0) {
		return fmt.Sprintf("%s(%d)", t.State, t.Level)
	}
	return string(t.State)
}

// RunReport is the audit trail of one orchestrator run.
type RunReport struct {
	Transitions  []Transition
	Queries      []string
	Rungs        int
	Escalations  int
	SourcesTotal int
	SourcesUsed  int
	FetchErrors  []*domain.FetchError
	Fetched      int
	Unique       int
	Skipped      int
	Dropped      int
}

// Final returns the last state entered.
func (r RunReport) Final() State {
	if len(r.Transitions) == 0 {
		return StateIdle
	}
	return r.Transitions[len(r.Transitions)-1].State
}

// Entered reports whether the run ever entered s.
func (r RunReport) Entered(s State) bool {
	for _, t := range r.Transitions {
		if t.State == s {
			return true
		}
	}
	return false
}

// SourcesSummary renders the partial-result note, e.g. "sources used: 2 of 3".
func (r RunReport) SourcesSummary() string {
	return fmt.Sprintf("sources used: %d of %d", r.SourcesUsed, r.SourcesTotal)
}

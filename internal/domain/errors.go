package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBriefingNotFound is returned by repositories for unknown ids.
var ErrBriefingNotFound = errors.New("briefing not found")

// FetchError is a non-fatal failure of a single provider call.
type FetchError struct {
	Provider string
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Provider, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// NoContentError means no items survived any escalation level.
type NoContentError struct {
	Query       string
	Window      *Window
	Attempts    []string
	FetchErrors []*FetchError
}

func (e *NoContentError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no content available for %q", e.Query)
	if e.Window != nil {
		fmt.Fprintf(&b, " between %s", e.Window)
	}
	if len(e.Attempts) > 1 {
		fmt.Fprintf(&b, " (also tried %s)", strings.Join(quoteAll(e.Attempts[1:]), ", "))
	}
	if len(e.FetchErrors) > 0 {
		fmt.Fprintf(&b, "; %d provider call(s) failed", len(e.FetchErrors))
	}
	return b.String()
}

// BudgetError rejects a duration the planner cannot size sensibly.
type BudgetError struct {
	DurationMinutes float64
	MinimumMinutes  float64
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("duration %.1f min is below the minimum of %.1f min", e.DurationMinutes, e.MinimumMinutes)
}

// AssemblyError is raised when the main audio segment cannot be used.
type AssemblyError struct {
	Path  string
	Cause error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assemble audio %s: %v", e.Path, e.Cause)
}

func (e *AssemblyError) Unwrap() error { return e.Cause }

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}

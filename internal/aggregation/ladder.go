package aggregation

import "strings"

// Ladder is a bounded list of progressively broader queries with a cursor.
// Next never yields more than len(rungs) queries, which bounds escalation.
type Ladder struct {
	rungs  []string
	cursor int
}

// NewLadder builds a ladder with the primary query first followed by the fallbacks.
// Blank and repeated rungs are removed.
func NewLadder(primary string, fallbacks []string) *Ladder {
	l := &Ladder{}
	seen := map[string]struct{}{}
	for _, q := range append([]string{primary}, fallbacks...) {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		l.rungs = append(l.rungs, q)
	}
	return l
}

// Next returns the next query to try and false once the ladder is exhausted.
func (l *Ladder) Next() (string, bool) {
	if l.cursor >= len(l.rungs) {
		return "", false
	}
	q := l.rungs[l.cursor]
	l.cursor++
	return q, true
}

// Level is the zero-based index of the most recently returned rung.
func (l *Ladder) Level() int {
	return l.cursor - 1
}

// Depth is the total number of rungs.
func (l *Ladder) Depth() int {
	return len(l.rungs)
}

// Tried returns the rungs handed out so far.
func (l *Ladder) Tried() []string {
	out := make([]string, l.cursor)
	copy(out, l.rungs[:l.cursor])
	return out
}

package shkerr

import (
	"fmt"

	"shuriken/internal/pathid"
)

// Explanations collects human-readable "why is this dirty" strings
// keyed by node, for diagnostic output when a build does more work
// than a user expects (spec.md §4.5, §9). Grounded in the teacher's
// Explanations/OptionalExplanations pair (explanations.go), generalized
// from an interface{} key to pathid.ID and fixed to actually build the
// formatted string instead of discarding fmt.Sprintf's return value
// into an unused local.
type Explanations struct {
	byNode map[pathid.ID][]string
}

// NewExplanations returns an empty Explanations.
func NewExplanations() *Explanations {
	return &Explanations{byNode: make(map[pathid.ID][]string)}
}

// Record appends a formatted explanation for node. A nil *Explanations
// is valid and records nothing, mirroring the teacher's
// OptionalExplanations wrapper so callers need not branch on whether
// diagnostics were requested.
func (e *Explanations) Record(node pathid.ID, format string, args ...interface{}) {
	if e == nil {
		return
	}
	e.byNode[node] = append(e.byNode[node], fmt.Sprintf(format, args...))
}

// LookupAndAppend appends every explanation recorded for node onto out
// and returns the grown slice.
func (e *Explanations) LookupAndAppend(node pathid.ID, out []string) []string {
	if e == nil {
		return out
	}
	return append(out, e.byNode[node]...)
}

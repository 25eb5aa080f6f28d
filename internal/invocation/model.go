// Package invocation implements the invocation log: an append-only,
// recompactable on-disk record of every command Shuriken has run,
// together with content-addressed fingerprints of the files it
// touched (spec §3, §4.2-§4.4).
package invocation

import (
	"shuriken/internal/fingerprint"
	"shuriken/internal/hashx"
	"shuriken/internal/pathid"
)

// PathFingerprint pairs a path id with the Fingerprint recorded for it
// at the time a step ran.
type PathFingerprint struct {
	Path pathid.ID
	FP   fingerprint.Fingerprint
}

// Entry is one Invocation record: everything Shuriken knows about the
// last successful run of a particular command. Outputs come first,
// then inputs, matching the on-disk ordering invariant (spec §3).
type Entry struct {
	CommandHash hashx.Hash
	Outputs     []PathFingerprint
	Inputs      []PathFingerprint
}

// Invocations is the in-memory reconstruction of the invocation log:
// a dictionary from command hash to its Entry, plus the set of
// directories currently known to have been created by some step
// (spec §3 "Invocations").
type Invocations struct {
	Entries     map[hashx.Hash]*Entry
	CreatedDirs map[pathid.ID]struct{}
}

// New returns an empty Invocations.
func New() *Invocations {
	return &Invocations{
		Entries:     make(map[hashx.Hash]*Entry),
		CreatedDirs: make(map[pathid.ID]struct{}),
	}
}

// Lookup returns the live entry for commandHash, if any.
func (iv *Invocations) Lookup(commandHash hashx.Hash) (*Entry, bool) {
	e, ok := iv.Entries[commandHash]
	return e, ok
}

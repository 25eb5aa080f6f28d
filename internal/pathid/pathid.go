// Package pathid canonicalises path strings into stable, dense integer
// ids used by every other component of the engine (spec §2.1, §3).
package pathid

import (
	"path/filepath"
	"strings"
	"sync"
)

// ID is a dense integer assigned by an Interner. Two ids are equal iff
// the canonicalised path strings they were assigned from are equal.
// Ids are stable within a process only; they are never persisted.
type ID int32

// Invalid is the placeholder for "no id yet assigned".
const Invalid ID = -1

// Interner canonicalises paths and hands out dense ids for them. It is
// safe for concurrent use; the build's coordinator is the only writer
// in practice.
type Interner struct {
	mu      sync.Mutex
	byPath  map[string]ID
	byID    []string
}

// New returns an empty Interner.
func New() *Interner {
	return &Interner{byPath: make(map[string]ID)}
}

// Canonicalize normalises path separators (both '/' and '\\' become
// '/') and collapses "." / ".." segments the way Ninja's own path
// canonicalization does, without touching the file system.
func Canonicalize(path string) string {
	if path == "" {
		return path
	}
	p := filepath.ToSlash(filepath.Clean(strings.ReplaceAll(path, `\`, "/")))
	// A path that collapses to "." without itself starting with "."
	// (e.g. "foo/..") is returned unchanged.
	if p == "." && !strings.HasPrefix(path, ".") {
		return path
	}
	return p
}

// Intern returns the id for path, assigning a new one if this is the
// first time this canonical path has been seen.
func (in *Interner) Intern(path string) ID {
	canon := Canonicalize(path)
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.byPath[canon]; ok {
		return id
	}
	id := ID(len(in.byID))
	in.byID = append(in.byID, canon)
	in.byPath[canon] = id
	return id
}

// Lookup returns the id already assigned to path, if any.
func (in *Interner) Lookup(path string) (ID, bool) {
	canon := Canonicalize(path)
	in.mu.Lock()
	defer in.mu.Unlock()
	id, ok := in.byPath[canon]
	return id, ok
}

// Path returns the canonical path string for id. It panics if id was
// never assigned by this Interner, since that indicates a programming
// error (a dangling id crossing interner instances).
func (in *Interner) Path(id ID) string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if int(id) < 0 || int(id) >= len(in.byID) {
		panic("pathid: id not assigned by this interner")
	}
	return in.byID[id]
}

// Len returns the number of distinct paths interned so far.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.byID)
}

// Package fsx is the minimal file-system contract the build engine's
// core consumes (spec §6): stat, hash, mkdir, unlink, atomic write, and
// an optional stat cache enabled only during dirty analysis.
package fsx

import "shuriken/internal/hashx"

// StatSubset is the subset of a file's metadata the fingerprint engine
// cares about (spec §3). The device id is deliberately excluded: it is
// rewritten by network file systems and would make fingerprints from
// different mounts spuriously distinct.
type StatSubset struct {
	Size  int64
	Ino   uint64
	Mode  uint32
	Mtime int64 // seconds
	Ctime int64 // seconds

	// CouldAccess distinguishes "file absent" from any present state.
	CouldAccess bool
}

// IsDir reports whether Mode's directory bit is set.
func (s StatSubset) IsDir() bool {
	return s.Mode&modeDir != 0
}

// modeDir mirrors the POSIX S_IFDIR bit (0040000); kept local so fsx
// does not need to import syscall on platforms where StatSubset is
// built from a synthetic (in-memory) source.
const modeDir = 0o040000

// Equal compares the fields the fingerprint matcher inspects: presence,
// size, and the directory bit (spec §4.1 step 3).
func (s StatSubset) Equal(o StatSubset) bool {
	if s.CouldAccess != o.CouldAccess {
		return false
	}
	if !s.CouldAccess {
		return true
	}
	return s.Size == o.Size && s.IsDir() == o.IsDir()
}

// FileSystem is the contract the fingerprint engine, dirty analyser and
// invocation-log recompactor consume. All operations are fallible and
// report a *shkerr.Error of kind Io on failure.
type FileSystem interface {
	// Stat returns the current StatSubset of path. A missing file is
	// not an error: it is reported via StatSubset.CouldAccess == false.
	Stat(path string) (StatSubset, error)

	// HashFile returns the content hash of path.
	HashFile(path string) (hashx.Hash, error)

	// Mkdirs creates path and any missing parents. It is idempotent:
	// an already-existing directory is success, not EEXIST.
	Mkdirs(path string) error

	// Unlink removes path. Removing a file that does not exist is not
	// an error.
	Unlink(path string) error

	// WriteAtomic writes data to path via a temp file plus rename, so
	// a reader never observes a partial write.
	WriteAtomic(path string, data []byte) error

	// EnableStatCache turns on memoization of Stat results for the
	// remainder of the current phase; DisableStatCache clears it. The
	// dirty analyser enables it for its own pass and disables it
	// before any command runs, so restat steps observe fresh data
	// (spec §4.5).
	EnableStatCache()
	DisableStatCache()
}

// Package fingerprint implements Shuriken's git-racy-index-inspired
// dirtiness detector (spec §4.1). It blends a cheap stat comparison
// with content hashing so that a file modified within the same
// wall-clock second the build finished is still detected as dirty.
package fingerprint

import (
	"shuriken/internal/fsx"
	"shuriken/internal/hashx"
)

// Fingerprint is stored as-is in the invocation log; its layout is the
// on-disk layout (spec §3). Changing a field is a log format break.
type Fingerprint struct {
	Stat fsx.StatSubset
	// CapturedAt is wall-clock seconds when this Fingerprint was taken.
	CapturedAt int64
	Hash       hashx.Hash
}

// MatchResult reports whether path still matches a Fingerprint.
type MatchResult struct {
	Clean bool
	// ShouldUpdate is true when Match had to hash the file's contents
	// to decide cleanliness. The caller should persist a fresh
	// Fingerprint so the cheap stat-only path applies next time.
	ShouldUpdate bool
}

// Take stats and, if the file is present, hashes path, producing a
// fresh Fingerprint timestamped at now.
func Take(fs fsx.FileSystem, now int64, path string) (Fingerprint, error) {
	st, err := fs.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	if !st.CouldAccess {
		return Fingerprint{Stat: st, CapturedAt: now}, nil
	}
	h, err := fs.HashFile(path)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Stat: st, CapturedAt: now, Hash: h}, nil
}

// Retake is a cheaper alternative to Take: if old is clean and the
// match did not require hashing, it returns an exact copy of old
// rather than re-hashing the file's contents (spec §4.1).
func Retake(fs fsx.FileSystem, now int64, path string, old Fingerprint) (Fingerprint, error) {
	res, err := Match(fs, path, old)
	if err != nil {
		return Fingerprint{}, err
	}
	if res.Clean && !res.ShouldUpdate {
		return old, nil
	}
	return Take(fs, now, path)
}

// Match implements the five-step racy-git matching protocol from
// spec §4.1.
func Match(fs fsx.FileSystem, path string, fp Fingerprint) (MatchResult, error) {
	cur, err := fs.Stat(path)
	if err != nil {
		return MatchResult{}, err
	}

	// 1. Presence must agree.
	if cur.CouldAccess != fp.Stat.CouldAccess {
		return MatchResult{Clean: false}, nil
	}
	// 2. Both absent: trivially clean.
	if !cur.CouldAccess {
		return MatchResult{Clean: true}, nil
	}
	// 3. Size or directory-ness changed: dirty, no need to hash.
	if cur.Size != fp.Stat.Size || cur.IsDir() != fp.Stat.IsDir() {
		return MatchResult{Clean: false}, nil
	}
	// 4. Untouched since the fingerprint was captured.
	if cur.Mtime < fp.CapturedAt && cur.Ctime < fp.CapturedAt {
		return MatchResult{Clean: true}, nil
	}
	// 5. Ambiguous: the file may have changed within the same second
	// the fingerprint was captured. Hash to disambiguate.
	h, err := fs.HashFile(path)
	if err != nil {
		return MatchResult{}, err
	}
	if h == fp.Hash {
		return MatchResult{Clean: true, ShouldUpdate: true}, nil
	}
	return MatchResult{Clean: false}, nil
}

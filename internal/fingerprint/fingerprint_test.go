package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuriken/internal/fsx"
)

func TestTakeThenMatchIsClean(t *testing.T) {
	fs := fsx.NewInMemoryFileSystem()
	fs.SetClock(func() int64 { return 100 })
	fs.WriteFile("a.c", []byte("int main() {}"))

	// Captured in a later second than the write, so the stat-only fast
	// path (step 4) applies and no hash is needed.
	fp, err := Take(fs, 101, "a.c")
	require.NoError(t, err)

	fs.SetClock(func() int64 { return 200 })
	res, err := Match(fs, "a.c", fp)
	require.NoError(t, err)
	assert.True(t, res.Clean)
	assert.False(t, res.ShouldUpdate)
}

func TestMatchDetectsMissingFile(t *testing.T) {
	fs := fsx.NewInMemoryFileSystem()
	fp, err := Take(fs, 100, "missing.c")
	require.NoError(t, err)

	fs.WriteFile("missing.c", []byte("now exists"))
	res, err := Match(fs, "missing.c", fp)
	require.NoError(t, err)
	assert.False(t, res.Clean)
}

func TestMatchDetectsSizeChange(t *testing.T) {
	fs := fsx.NewInMemoryFileSystem()
	fs.SetClock(func() int64 { return 100 })
	fs.WriteFile("a.c", []byte("short"))
	fp, err := Take(fs, 100, "a.c")
	require.NoError(t, err)

	fs.SetClock(func() int64 { return 200 })
	fs.WriteFile("a.c", []byte("a much longer body than before"))
	res, err := Match(fs, "a.c", fp)
	require.NoError(t, err)
	assert.False(t, res.Clean)
}

// TestMatchSameSecondEdit exercises spec.md's racy-git scenario: a file
// edited within the same wall-clock second the fingerprint was taken,
// with an unchanged size, must be caught by the content hash rather
// than trusted on stat alone.
func TestMatchSameSecondEdit(t *testing.T) {
	fs := fsx.NewInMemoryFileSystem()
	fs.SetClock(func() int64 { return 100 })
	fs.WriteFile("a.c", []byte("original!"))
	fp, err := Take(fs, 100, "a.c")
	require.NoError(t, err)

	// Same wall-clock second, same size, different content.
	fs.WriteFile("a.c", []byte("mutated!!"))
	res, err := Match(fs, "a.c", fp)
	require.NoError(t, err)
	assert.False(t, res.Clean)
}

func TestMatchSameSecondNoChangeSetsShouldUpdate(t *testing.T) {
	fs := fsx.NewInMemoryFileSystem()
	fs.SetClock(func() int64 { return 100 })
	fs.WriteFile("a.c", []byte("stable"))
	fp, err := Take(fs, 100, "a.c")
	require.NoError(t, err)

	// Rewritten with identical content in the same second: still clean,
	// but the caller should refresh CapturedAt (ShouldUpdate).
	fs.WriteFile("a.c", []byte("stable"))
	res, err := Match(fs, "a.c", fp)
	require.NoError(t, err)
	assert.True(t, res.Clean)
	assert.True(t, res.ShouldUpdate)
}

func TestRetakeReusesOldWhenClean(t *testing.T) {
	fs := fsx.NewInMemoryFileSystem()
	fs.SetClock(func() int64 { return 100 })
	fs.WriteFile("a.c", []byte("stable"))
	// Captured after the write's second, so Match is clean without
	// ShouldUpdate and Retake may reuse it.
	fp, err := Take(fs, 101, "a.c")
	require.NoError(t, err)

	fs.SetClock(func() int64 { return 500 })
	again, err := Retake(fs, 500, "a.c", fp)
	require.NoError(t, err)
	assert.Equal(t, fp, again)
}

func TestRetakeRefreshesOnSameSecondRewrite(t *testing.T) {
	fs := fsx.NewInMemoryFileSystem()
	fs.SetClock(func() int64 { return 100 })
	fs.WriteFile("a.c", []byte("stable"))
	fp, err := Take(fs, 100, "a.c")
	require.NoError(t, err)

	fs.WriteFile("a.c", []byte("stable"))
	fresh, err := Retake(fs, 100, "a.c", fp)
	require.NoError(t, err)
	assert.Equal(t, fp.Hash, fresh.Hash)
	assert.Equal(t, int64(100), fresh.CapturedAt)
}

func TestBothAbsentIsClean(t *testing.T) {
	fs := fsx.NewInMemoryFileSystem()
	fp, err := Take(fs, 100, "never.c")
	require.NoError(t, err)

	res, err := Match(fs, "never.c", fp)
	require.NoError(t, err)
	assert.True(t, res.Clean)
}

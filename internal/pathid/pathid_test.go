package pathid

import "testing"

import "github.com/stretchr/testify/assert"

func TestInternIsIdempotent(t *testing.T) {
	in := New()
	a := in.Intern("foo/bar.c")
	b := in.Intern("foo/bar.c")
	assert.Equal(t, a, b)
	assert.Equal(t, 1, in.Len())
}

func TestCanonicalizeCollapsesPaths(t *testing.T) {
	in := New()
	a := in.Intern("foo/../foo/bar.c")
	b := in.Intern("foo/bar.c")
	assert.Equal(t, a, b)
}

func TestCanonicalizeNormalizesSlashes(t *testing.T) {
	assert.Equal(t, Canonicalize("foo/bar.c"), Canonicalize("foo\\bar.c"))
}

func TestLookupMissing(t *testing.T) {
	in := New()
	_, ok := in.Lookup("nope")
	assert.False(t, ok)
}

func TestPathPanicsOnForeignID(t *testing.T) {
	in := New()
	assert.Panics(t, func() { in.Path(ID(0)) })
}

func TestPathRoundTrips(t *testing.T) {
	in := New()
	id := in.Intern("a/b/c.o")
	assert.Equal(t, "a/b/c.o", in.Path(id))
}

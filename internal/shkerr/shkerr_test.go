package shkerr

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReturnsNilForNilError(t *testing.T) {
	assert.NoError(t, New(Io, nil))
}

func TestWrapIncludesPathInMessage(t *testing.T) {
	err := Wrap(Io, "a.c", errors.New("no such file"))
	assert.Contains(t, err.Error(), "a.c")
	assert.Contains(t, err.Error(), "io")
}

func TestIsMatchesWrappedKind(t *testing.T) {
	err := Wrap(Parse, "manifest.json", errors.New("bad header"))
	assert.True(t, Is(err, Parse))
	assert.False(t, Is(err, Io))
}

func TestIsWalksStandardUnwrapChain(t *testing.T) {
	inner := New(Build, errors.New("cycle detected"))
	wrapped := fmtErrorf(inner)
	assert.True(t, Is(wrapped, Build))
}

func fmtErrorf(err error) error {
	return &wrapper{err: err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }

func TestLoggerWritesToProvidedSink(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)
	logger.Printf("janitor: %s", "recompacted")
	assert.Contains(t, buf.String(), "recompacted")
}

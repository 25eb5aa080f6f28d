package hashx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashBytesDeterministic(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	assert.Equal(t, a, b)
}

func TestHashBytesDistinguishesContent(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("world"))
	assert.NotEqual(t, a, b)
}

func TestCommandDigestDeterministic(t *testing.T) {
	a := CommandDigest("gcc -c a.c -o a.o", nil)
	b := CommandDigest("gcc -c a.c -o a.o", nil)
	assert.Equal(t, a, b)
}

func TestCommandDigestDistinguishesCommand(t *testing.T) {
	a := CommandDigest("gcc -c a.c -o a.o", nil)
	b := CommandDigest("gcc -c b.c -o b.o", nil)
	assert.NotEqual(t, a, b)
}

func TestCommandDigestMixesInputHashes(t *testing.T) {
	h1 := HashBytes([]byte("input one"))
	h2 := HashBytes([]byte("input two"))

	withNone := CommandDigest("cmd", nil)
	withOne := CommandDigest("cmd", []Hash{h1})
	withTwo := CommandDigest("cmd", []Hash{h2})

	assert.NotEqual(t, withNone, withOne)
	assert.NotEqual(t, withOne, withTwo)
}

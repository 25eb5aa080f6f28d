// Package hashx provides the content-addressed Hash type used throughout
// the invocation log (spec §3 "Hash") and the mixing primitives used to
// derive a step's command-identity digest from its command line and
// input hashes (spec §3 "Invocation entry ... keyed by the step's
// command hash").
package hashx

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/segmentio/fasthash/fnv1a"
	"github.com/zeebo/blake3"
	"lukechampine.com/uint128"
)

// Size is the digest length in bytes. BLAKE3-256 satisfies the spec's
// "160-256 bit content digest, collision-resistant for practical
// inputs" requirement with headroom to spare.
const Size = 32

// Hash is a fixed-size content digest. Equal hashes are treated as
// meaning the underlying content is equal. It is POD: the on-disk
// layout of the invocation log stores it byte-for-byte (spec §3).
type Hash [Size]byte

// Zero is the all-zero Hash, the same value as the Hash a Fingerprint
// holds for a file that could not be accessed.
var Zero Hash

// HashBytes returns the BLAKE3 digest of data.
func HashBytes(data []byte) Hash {
	sum := blake3.Sum256(data)
	return Hash(sum)
}

// HashFile returns the BLAKE3 digest of the file at path's contents.
// Grounded in the teacher's own choice of github.com/zeebo/blake3 in
// dirhash.go, used here as the single content digest the spec calls
// for instead of the teacher's ad hoc SHA-256-then-FNV rollup.
func HashFile(path string) (Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return Hash{}, err
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return Hash{}, err
	}
	var out Hash
	h.Sum(out[:0])
	return out, nil
}

// rapidMix folds two 64-bit words the way the teacher's ported
// rapidhash.go does: a 64x64->128 multiply (via lukechampine.com/uint128,
// the teacher's own choice for that step) followed by a high/low xor.
// It is not cryptographic; it exists to cheaply combine an ordered
// sequence of input digests before the final BLAKE3 pass, the same
// role rapidhash plays as a fast pre-mixer in the teacher's port.
func rapidMix(a, b uint64) uint64 {
	p := uint128.From64(a).Mul(uint128.From64(b))
	return p.Lo ^ p.Hi
}

// CommandDigest computes a step's command-identity Hash: the digest
// that keys its Invocation entry (spec §3). It combines the evaluated
// command line with the ordered content hashes of its declared inputs,
// so that a step is considered "the same command" only if both its
// command line and its input set are unchanged.
//
// The command line is first folded through a 64-bit FNV-1a running
// hash (github.com/segmentio/fasthash, seeded by the teacher's own
// choice of that library in build_log.go's HashCommand) mixed against
// each input hash's leading word via rapidMix, and the final 64-bit
// accumulator together with the raw input hashes is fed into BLAKE3 to
// produce the returned digest.
func CommandDigest(command string, inputHashes []Hash) Hash {
	acc := fnv1a.HashString64(command)
	for _, in := range inputHashes {
		word := binary.LittleEndian.Uint64(in[:8])
		acc = rapidMix(acc, word)
	}

	h := blake3.New()
	h.Write([]byte(command))
	var accBytes [8]byte
	binary.LittleEndian.PutUint64(accBytes[:], acc)
	h.Write(accBytes[:])
	for _, in := range inputHashes {
		h.Write(in[:])
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

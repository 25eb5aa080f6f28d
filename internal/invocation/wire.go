package invocation

import (
	"encoding/binary"

	"shuriken/internal/fingerprint"
	"shuriken/internal/fsx"
	"shuriken/internal/hashx"
)

// This file defines the exact on-disk byte layout described in spec
// §6. All multi-byte integers are written little-endian whatever the
// host's byte order, matching the teacher's own deps/build log headers
// (build_log.go's kFileSignature, deps_log.go's
// kFileSignature_DepsLog).

var magic = [8]byte{'s', 'h', 'k', 'i', 'n', 'v', 'l', 'g'}

const formatVersion uint32 = 3

const headerSize = len(magic) + 4

// recordType occupies the two least significant bits of the u32
// length-and-type word that precedes every record's payload.
type recordType uint32

const (
	recordPath             recordType = 0
	recordCreatedDirectory recordType = 1
	recordInvocation       recordType = 2
	recordDeleted          recordType = 3

	typeMask = 0b11
)

// fingerprintWireSize is the fixed byte size of an encoded Fingerprint:
// 1 byte CouldAccess + 3 bytes padding, 8 Size, 8 Ino, 4 Mode, 8 Mtime,
// 8 Ctime, 8 CapturedAt, then a Size-byte Hash. Fingerprint is POD on
// disk (spec §3): this layout must never change without bumping
// formatVersion.
const fingerprintWireSize = 4 + 8 + 8 + 4 + 8 + 8 + 8 + hashx.Size

// pairWireSize is the size of one (path-id, fingerprint) pair inside
// an Invocation record's payload.
const pairWireSize = 4 + fingerprintWireSize

func encodeFingerprint(dst []byte, fp fingerprintWire) {
	if fp.CouldAccess {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
	dst[1], dst[2], dst[3] = 0, 0, 0
	off := 4
	binary.LittleEndian.PutUint64(dst[off:], uint64(fp.Size))
	off += 8
	binary.LittleEndian.PutUint64(dst[off:], fp.Ino)
	off += 8
	binary.LittleEndian.PutUint32(dst[off:], fp.Mode)
	off += 4
	binary.LittleEndian.PutUint64(dst[off:], uint64(fp.Mtime))
	off += 8
	binary.LittleEndian.PutUint64(dst[off:], uint64(fp.Ctime))
	off += 8
	binary.LittleEndian.PutUint64(dst[off:], uint64(fp.CapturedAt))
	off += 8
	copy(dst[off:], fp.Hash[:])
}

func decodeFingerprint(src []byte) fingerprintWire {
	var fp fingerprintWire
	fp.CouldAccess = src[0] != 0
	off := 4
	fp.Size = int64(binary.LittleEndian.Uint64(src[off:]))
	off += 8
	fp.Ino = binary.LittleEndian.Uint64(src[off:])
	off += 8
	fp.Mode = binary.LittleEndian.Uint32(src[off:])
	off += 4
	fp.Mtime = int64(binary.LittleEndian.Uint64(src[off:]))
	off += 8
	fp.Ctime = int64(binary.LittleEndian.Uint64(src[off:]))
	off += 8
	fp.CapturedAt = int64(binary.LittleEndian.Uint64(src[off:]))
	off += 8
	copy(fp.Hash[:], src[off:off+hashx.Size])
	return fp
}

// fingerprintWire is the flattened, on-disk shape of a
// fingerprint.Fingerprint; kept distinct from the in-memory type so
// the wire layout is documented independently of Go struct layout
// rules.
type fingerprintWire struct {
	CouldAccess bool
	Size        int64
	Ino         uint64
	Mode        uint32
	Mtime       int64
	Ctime       int64
	CapturedAt  int64
	Hash        hashx.Hash
}

func toWire(fp fingerprint.Fingerprint) fingerprintWire {
	return fingerprintWire{
		CouldAccess: fp.Stat.CouldAccess,
		Size:        fp.Stat.Size,
		Ino:         fp.Stat.Ino,
		Mode:        fp.Stat.Mode,
		Mtime:       fp.Stat.Mtime,
		Ctime:       fp.Stat.Ctime,
		CapturedAt:  fp.CapturedAt,
		Hash:        fp.Hash,
	}
}

func (w fingerprintWire) toFingerprint() fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		Stat: fsx.StatSubset{
			Size:        w.Size,
			Ino:         w.Ino,
			Mode:        w.Mode,
			Mtime:       w.Mtime,
			Ctime:       w.Ctime,
			CouldAccess: w.CouldAccess,
		},
		CapturedAt: w.CapturedAt,
		Hash:       w.Hash,
	}
}

// alignUp4 rounds n up to the next multiple of 4, matching the
// "payload alignment is 4 bytes" rule for Path records.
func alignUp4(n int) int {
	return (n + 3) &^ 3
}

func lengthAndType(payloadLen int, t recordType) uint32 {
	return uint32(payloadLen) | uint32(t)
}

func splitLengthAndType(word uint32) (payloadLen int, t recordType) {
	return int(word &^ typeMask), recordType(word & typeMask)
}

package invocation

import (
	"bytes"
	"encoding/binary"
	"os"

	"shuriken/internal/hashx"
	"shuriken/internal/pathid"
	"shuriken/internal/shkerr"
)

// PathIDs maps a canonical path string to the record number it was
// last written at in the on-disk log, so appends can avoid emitting a
// duplicate Path record for a path already present (spec §4.2).
type PathIDs map[string]uint32

// ParseResult is everything ParseFile produces from a log file.
type ParseResult struct {
	Invocations       *Invocations
	Warning           string
	NeedsRecompaction bool
	PathIDs           PathIDs
	EntryCount        int
	// NextRecordNumber is the global record counter to resume from when
	// appending further records to this same log file.
	NextRecordNumber uint32
}

// recompactionDeadBytesRatio and recompactionMinDeadBytes resolve the
// spec's open question about the exact needs_recompaction threshold
// (spec §4.2, §9): recompact once at least half the file is dead
// records and that dead fraction is at least 1 MiB, the default the
// spec itself suggests.
const (
	recompactionDeadBytesRatio = 0.5
	recompactionMinDeadBytes   = 1 << 20
)

// ParseFile reads the invocation log at logPath into an Invocations.
// A missing file is not an error: it yields an empty result. A
// truncated or forward-referencing record is recovered locally by
// truncating the file to the last valid prefix and setting Warning,
// never by failing the parse (spec §4.2, §7).
func ParseFile(interner *pathid.Interner, logPath string) (ParseResult, error) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ParseResult{Invocations: New(), PathIDs: PathIDs{}}, nil
		}
		return ParseResult{}, shkerr.Wrap(shkerr.Io, logPath, err)
	}

	result, truncateAt, err := parseBytes(interner, data)
	if err != nil {
		return ParseResult{}, shkerr.Wrap(shkerr.Parse, logPath, err)
	}
	if truncateAt >= 0 && truncateAt < len(data) {
		if err := os.Truncate(logPath, int64(truncateAt)); err != nil {
			return ParseResult{}, shkerr.Wrap(shkerr.Io, logPath, err)
		}
	}
	return result, nil
}

// parseBytes is the streaming, forward-only decoder (spec §4.2). It
// returns the offset to truncate the file to, or -1 if the whole
// buffer parsed cleanly.
func parseBytes(interner *pathid.Interner, data []byte) (ParseResult, int, error) {
	invocations := New()
	pathIDs := PathIDs{}
	// recordPathByNumber maps a record's global sequence number (every
	// record type shares one counter, spec §3 "Records are implicitly
	// numbered 0, 1, 2...") to the interned id it produced, for Path
	// records only. Other record types reference into this table.
	recordPathByNumber := map[uint32]pathid.ID{}
	var nextRecordNumber uint32
	// totalRecordBytes/deadRecordBytes drive the needs_recompaction
	// heuristic. totalRecordBytes accumulates every record's on-disk
	// size (length word plus payload) regardless of type; deadRecordBytes
	// accumulates a record's size once it is known to no longer
	// contribute to the live Invocations, which for an Invocation or
	// CreatedDirectory record only happens once its Deleted tombstone is
	// seen. liveInvocationBytes/liveDirBytes track the size of the
	// current live record for each command hash / directory id so that
	// size can be moved into the dead bucket when the tombstone arrives,
	// instead of only counting the tombstone's own tiny payload.
	var totalRecordBytes, deadRecordBytes int
	liveInvocationBytes := map[hashx.Hash]int{}
	liveDirBytes := map[pathid.ID]int{}
	entryCount := 0

	if len(data) < headerSize {
		if len(data) == 0 {
			return ParseResult{Invocations: invocations, PathIDs: pathIDs}, -1, nil
		}
		// Header itself is torn: treat the whole file as corrupt tail.
		return ParseResult{
			Invocations: invocations,
			PathIDs:     pathIDs,
			Warning:     "log contained a corrupt tail; truncated",
		}, 0, nil
	}
	if !bytes.Equal(data[:len(magic)], magic[:]) {
		return ParseResult{}, -1, errBadMagic
	}
	version := binary.LittleEndian.Uint32(data[len(magic):headerSize])
	if version != formatVersion {
		return ParseResult{}, -1, errVersionMismatch
	}

	off := headerSize
	for off < len(data) {
		// recordStart is where a torn or invalid record begins, and so
		// where the file is truncated to keep only the valid prefix.
		recordStart := off
		if off+4 > len(data) {
			break // torn length word
		}
		word := binary.LittleEndian.Uint32(data[off : off+4])
		payloadLen, typ := splitLengthAndType(word)
		off += 4
		if off+payloadLen > len(data) {
			off = recordStart
			break // torn payload
		}
		payload := data[off : off+payloadLen]
		recordNumber := nextRecordNumber

		ok := applyRecord(interner, invocations, recordPathByNumber, typ, payload, recordNumber)
		if !ok {
			// A record referencing an id it cannot see yet (a "future"
			// record) is treated the same as a torn record: truncate.
			off = recordStart
			break
		}

		recordBytes := 4 + payloadLen
		totalRecordBytes += recordBytes

		switch typ {
		case recordPath:
			pathIDs[decodePathPayload(payload)] = recordNumber

		case recordCreatedDirectory:
			// applyRecord already resolved this same reference
			// successfully (ok==true above), so it is safe to resolve
			// again here to learn which directory id this record's bytes
			// belong to.
			if id, ok := recordPathByNumber[binary.LittleEndian.Uint32(payload)]; ok {
				liveDirBytes[id] = recordBytes
			}

		case recordInvocation:
			entryCount++
			hash := decodeInvocationHash(payload)
			liveInvocationBytes[hash] = recordBytes

		case recordDeleted:
			deadRecordBytes += recordBytes
			switch len(payload) {
			case 4:
				if id, ok := recordPathByNumber[binary.LittleEndian.Uint32(payload)]; ok {
					deadRecordBytes += liveDirBytes[id]
					delete(liveDirBytes, id)
				}
			case hashx.Size:
				var hash hashx.Hash
				copy(hash[:], payload)
				deadRecordBytes += liveInvocationBytes[hash]
				delete(liveInvocationBytes, hash)
			}
		}
		off += payloadLen
		nextRecordNumber++
	}

	needsRecompaction := false
	if totalRecordBytes > 0 {
		ratio := float64(deadRecordBytes) / float64(totalRecordBytes)
		if ratio >= recompactionDeadBytesRatio && deadRecordBytes >= recompactionMinDeadBytes {
			needsRecompaction = true
		}
	}

	result := ParseResult{
		Invocations:       invocations,
		PathIDs:           pathIDs,
		NeedsRecompaction: needsRecompaction,
		EntryCount:        entryCount,
		NextRecordNumber:  nextRecordNumber,
	}
	if off < len(data) {
		result.Warning = "log contained a corrupt tail; truncated"
		return result, off, nil
	}
	return result, -1, nil
}

// applyRecord decodes one record's payload and folds it into
// invocations / recordPathByNumber. It returns false if the record is
// malformed in a way that should be treated as a corrupt tail (e.g. a
// forward reference).
func applyRecord(
	interner *pathid.Interner,
	invocations *Invocations,
	recordPathByNumber map[uint32]pathid.ID,
	typ recordType,
	payload []byte,
	recordNumber uint32,
) bool {
	// resolvePath looks up a backward reference to a Path record by its
	// global record number (spec §3: "must point backwards").
	resolvePath := func(ref uint32) (pathid.ID, bool) {
		if ref >= recordNumber {
			return 0, false
		}
		id, ok := recordPathByNumber[ref]
		return id, ok
	}

	switch typ {
	case recordPath:
		if len(payload) == 0 {
			return false
		}
		p := decodePathPayload(payload)
		recordPathByNumber[recordNumber] = interner.Intern(p)
		return true

	case recordCreatedDirectory:
		if len(payload) != 4 {
			return false
		}
		id, ok := resolvePath(binary.LittleEndian.Uint32(payload))
		if !ok {
			return false
		}
		invocations.CreatedDirs[id] = struct{}{}
		return true

	case recordInvocation:
		if len(payload) < hashx.Size+4 {
			return false
		}
		var hash hashx.Hash
		copy(hash[:], payload[:hashx.Size])
		off := hashx.Size
		outputCount := int(binary.LittleEndian.Uint32(payload[off:]))
		off += 4

		remaining := payload[off:]
		if len(remaining)%pairWireSize != 0 {
			return false
		}
		total := len(remaining) / pairWireSize
		if outputCount > total {
			return false
		}

		entry := &Entry{CommandHash: hash}
		for i := 0; i < total; i++ {
			pairOff := i * pairWireSize
			id, ok := resolvePath(binary.LittleEndian.Uint32(remaining[pairOff : pairOff+4]))
			if !ok {
				return false
			}
			fpBytes := remaining[pairOff+4 : pairOff+pairWireSize]
			fp := decodeFingerprint(fpBytes).toFingerprint()
			pf := PathFingerprint{Path: id, FP: fp}
			if i < outputCount {
				entry.Outputs = append(entry.Outputs, pf)
			} else {
				entry.Inputs = append(entry.Inputs, pf)
			}
		}
		invocations.Entries[hash] = entry
		return true

	case recordDeleted:
		switch len(payload) {
		case 4:
			id, ok := resolvePath(binary.LittleEndian.Uint32(payload))
			if !ok {
				return false
			}
			delete(invocations.CreatedDirs, id)
			return true
		case hashx.Size:
			var hash hashx.Hash
			copy(hash[:], payload)
			delete(invocations.Entries, hash)
			return true
		default:
			return false
		}

	default:
		return false
	}
}

// decodeInvocationHash reads just the leading command-hash field of an
// Invocation record's payload, without decoding its (path, fingerprint)
// pairs. Callers must have already validated payload's length via
// applyRecord.
func decodeInvocationHash(payload []byte) hashx.Hash {
	var hash hashx.Hash
	copy(hash[:], payload[:hashx.Size])
	return hash
}

func decodePathPayload(payload []byte) string {
	n := bytes.IndexByte(payload, 0)
	if n < 0 {
		n = len(payload)
	}
	return string(payload[:n])
}

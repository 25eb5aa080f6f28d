package invocation

import (
	"bufio"
	"encoding/binary"
	"os"

	"shuriken/internal/fingerprint"
	"shuriken/internal/hashx"
	"shuriken/internal/pathid"
	"shuriken/internal/shkerr"
)

// Appender is the sole writer interface the scheduler's bookkeeping
// uses to grow the invocation log (spec §4.3). It assumes exclusive
// access to logPath; concurrent multi-process writers are out of
// scope (spec §1 Non-goals).
type Appender struct {
	interner *pathid.Interner
	file     *os.File
	w        *bufio.Writer
	pathIDs  PathIDs
	// entries tracks the process's current view of live invocations so
	// RecordRanCommand knows whether to emit a tombstone for a prior
	// entry with the same command hash before writing the new one.
	entries map[hashx.Hash]struct{}
	// nextRecordNumber is the global record counter continuing from
	// wherever ParseFile left off, so freshly appended records number
	// consistently with the records already on disk.
	nextRecordNumber uint32
}

// Open opens (creating if necessary) the invocation log for append,
// writing a fresh header if the file did not already exist. result
// should come from a prior ParseFile call against the same path, so
// record numbering and duplicate-path suppression continue correctly.
func Open(interner *pathid.Interner, logPath string, result ParseResult) (*Appender, error) {
	_, statErr := os.Stat(logPath)
	existed := statErr == nil

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, shkerr.Wrap(shkerr.Io, logPath, err)
	}

	entries := make(map[hashx.Hash]struct{}, len(result.Invocations.Entries))
	for h := range result.Invocations.Entries {
		entries[h] = struct{}{}
	}

	ap := &Appender{
		interner:         interner,
		file:             f,
		w:                bufio.NewWriter(f),
		pathIDs:          copyPathIDs(result.PathIDs),
		entries:          entries,
		nextRecordNumber: result.NextRecordNumber,
	}

	if !existed {
		if err := ap.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return ap, nil
}

func copyPathIDs(in PathIDs) PathIDs {
	out := make(PathIDs, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (ap *Appender) writeHeader() error {
	var hdr [headerSize]byte
	copy(hdr[:len(magic)], magic[:])
	binary.LittleEndian.PutUint32(hdr[len(magic):], formatVersion)
	if _, err := ap.w.Write(hdr[:]); err != nil {
		return shkerr.New(shkerr.Io, err)
	}
	return ap.flush()
}

func (ap *Appender) flush() error {
	if err := ap.w.Flush(); err != nil {
		return shkerr.New(shkerr.Io, err)
	}
	if err := ap.file.Sync(); err != nil {
		return shkerr.New(shkerr.Io, err)
	}
	return nil
}

// ensurePathRecord writes a Path record for id if one has not already
// been written to this log, returning its record number either way.
func (ap *Appender) ensurePathRecord(id pathid.ID) (uint32, error) {
	p := ap.interner.Path(id)
	if num, ok := ap.pathIDs[p]; ok {
		return num, nil
	}
	num := ap.nextRecordNumber
	payload := []byte(p)
	padded := alignUp4(len(payload) + 1) // +1 for the terminating NUL
	buf := make([]byte, padded)
	copy(buf, payload)
	// buf[len(payload)] and any trailing bytes are already zero.

	if err := ap.writeRecord(recordPath, buf); err != nil {
		return 0, err
	}
	ap.pathIDs[p] = num
	ap.nextRecordNumber++
	return num, nil
}

func (ap *Appender) writeRecord(t recordType, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], lengthAndType(len(payload), t))
	if _, err := ap.w.Write(lenBuf[:]); err != nil {
		return shkerr.New(shkerr.Io, err)
	}
	if _, err := ap.w.Write(payload); err != nil {
		return shkerr.New(shkerr.Io, err)
	}
	return nil
}

// RecordCreatedDirectory appends a CreatedDirectory record the first
// time a build creates a directory that did not previously exist
// (spec §3 "Lifecycle").
func (ap *Appender) RecordCreatedDirectory(dir pathid.ID) error {
	num, err := ap.ensurePathRecord(dir)
	if err != nil {
		return err
	}
	var payload [4]byte
	binary.LittleEndian.PutUint32(payload[:], num)
	if err := ap.writeRecord(recordCreatedDirectory, payload[:]); err != nil {
		return err
	}
	ap.nextRecordNumber++
	return ap.flush()
}

// RecordRemovedDirectory tombstones a previously recorded created
// directory, e.g. as part of `clean` (spec §3 "Lifecycle").
func (ap *Appender) RecordRemovedDirectory(dir pathid.ID) error {
	num, ok := ap.pathIDs[ap.interner.Path(dir)]
	if !ok {
		return nil // never recorded; nothing to tombstone
	}
	var payload [4]byte
	binary.LittleEndian.PutUint32(payload[:], num)
	if err := ap.writeRecord(recordDeleted, payload[:]); err != nil {
		return err
	}
	ap.nextRecordNumber++
	return ap.flush()
}

// RecordRanCommand appends an Invocation record for a successfully
// completed step. If a prior entry shared entry.CommandHash, its
// tombstone is written first so a crash-recovery read reconstructs
// the same state as this process's in-memory view (spec §4.3).
func (ap *Appender) RecordRanCommand(entry *Entry) error {
	if _, live := ap.entries[entry.CommandHash]; live {
		if err := ap.tombstoneCommand(entry.CommandHash); err != nil {
			return err
		}
	}

	outputRefs := make([]uint32, len(entry.Outputs))
	for i, o := range entry.Outputs {
		num, err := ap.ensurePathRecord(o.Path)
		if err != nil {
			return err
		}
		outputRefs[i] = num
	}
	inputRefs := make([]uint32, len(entry.Inputs))
	for i, in := range entry.Inputs {
		num, err := ap.ensurePathRecord(in.Path)
		if err != nil {
			return err
		}
		inputRefs[i] = num
	}

	total := len(entry.Outputs) + len(entry.Inputs)
	payload := make([]byte, hashx.Size+4+total*pairWireSize)
	copy(payload, entry.CommandHash[:])
	binary.LittleEndian.PutUint32(payload[hashx.Size:], uint32(len(entry.Outputs)))

	off := hashx.Size + 4
	for i, o := range entry.Outputs {
		writePair(payload[off:], outputRefs[i], o.FP)
		off += pairWireSize
	}
	for i, in := range entry.Inputs {
		writePair(payload[off:], inputRefs[i], in.FP)
		off += pairWireSize
	}

	if err := ap.writeRecord(recordInvocation, payload); err != nil {
		return err
	}
	ap.nextRecordNumber++
	ap.entries[entry.CommandHash] = struct{}{}
	return ap.flush()
}

func writePair(dst []byte, pathRef uint32, fp fingerprint.Fingerprint) {
	binary.LittleEndian.PutUint32(dst, pathRef)
	encodeFingerprint(dst[4:4+fingerprintWireSize], toWire(fp))
}

// RecordCleanedCommand tombstones an existing invocation, e.g. when
// `clean` removes its outputs (spec §4.3).
func (ap *Appender) RecordCleanedCommand(commandHash hashx.Hash) error {
	if _, live := ap.entries[commandHash]; !live {
		return nil
	}
	if err := ap.tombstoneCommand(commandHash); err != nil {
		return err
	}
	delete(ap.entries, commandHash)
	return ap.flush()
}

func (ap *Appender) tombstoneCommand(commandHash hashx.Hash) error {
	if err := ap.writeRecord(recordDeleted, commandHash[:]); err != nil {
		return err
	}
	ap.nextRecordNumber++
	return nil
}

// Close flushes and closes the underlying file.
func (ap *Appender) Close() error {
	if err := ap.flush(); err != nil {
		ap.file.Close()
		return err
	}
	if err := ap.file.Close(); err != nil {
		return shkerr.New(shkerr.Io, err)
	}
	return nil
}

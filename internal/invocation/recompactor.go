package invocation

import (
	"bufio"
	"encoding/binary"
	"os"
	"path/filepath"

	"shuriken/internal/pathid"
	"shuriken/internal/shkerr"
)

// Recompact rewrites logPath from scratch, containing only the live
// records implied by invocations: no tombstones, and record numbering
// restarts from zero (spec §4.4). It writes to a sibling temp file,
// fsyncs, and atomically renames over the existing log; any Appender
// already open against the old file is invalidated and must be
// reopened by the caller.
func Recompact(interner *pathid.Interner, invocations *Invocations, logPath string) error {
	dir := filepath.Dir(logPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(logPath)+".recompact*")
	if err != nil {
		return shkerr.Wrap(shkerr.Io, logPath, err)
	}
	tmpPath := tmp.Name()

	if err := writeRecompacted(interner, invocations, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return shkerr.Wrap(shkerr.Io, logPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return shkerr.Wrap(shkerr.Io, logPath, err)
	}
	if err := os.Rename(tmpPath, logPath); err != nil {
		os.Remove(tmpPath)
		return shkerr.Wrap(shkerr.Io, logPath, err)
	}
	return nil
}

func writeRecompacted(interner *pathid.Interner, invocations *Invocations, f *os.File) error {
	w := bufio.NewWriter(f)

	var hdr [headerSize]byte
	copy(hdr[:len(magic)], magic[:])
	binary.LittleEndian.PutUint32(hdr[len(magic):], formatVersion)
	if _, err := w.Write(hdr[:]); err != nil {
		return shkerr.New(shkerr.Io, err)
	}

	pathNumbers := map[pathid.ID]uint32{}
	var nextRecord uint32

	writeRecord := func(t recordType, payload []byte) error {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], lengthAndType(len(payload), t))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return shkerr.New(shkerr.Io, err)
		}
		if _, err := w.Write(payload); err != nil {
			return shkerr.New(shkerr.Io, err)
		}
		nextRecord++
		return nil
	}

	ensurePath := func(id pathid.ID) (uint32, error) {
		if num, ok := pathNumbers[id]; ok {
			return num, nil
		}
		p := interner.Path(id)
		padded := alignUp4(len(p) + 1)
		buf := make([]byte, padded)
		copy(buf, p)
		num := nextRecord
		if err := writeRecord(recordPath, buf); err != nil {
			return 0, err
		}
		pathNumbers[id] = num
		return num, nil
	}

	for dir := range invocations.CreatedDirs {
		num, err := ensurePath(dir)
		if err != nil {
			return err
		}
		var payload [4]byte
		binary.LittleEndian.PutUint32(payload[:], num)
		if err := writeRecord(recordCreatedDirectory, payload[:]); err != nil {
			return err
		}
	}

	for _, entry := range invocations.Entries {
		total := len(entry.Outputs) + len(entry.Inputs)
		payload := make([]byte, 32+4+total*pairWireSize)
		copy(payload, entry.CommandHash[:])
		binary.LittleEndian.PutUint32(payload[32:], uint32(len(entry.Outputs)))

		off := 36
		writeAll := func(pfs []PathFingerprint) error {
			for _, pf := range pfs {
				num, err := ensurePath(pf.Path)
				if err != nil {
					return err
				}
				binary.LittleEndian.PutUint32(payload[off:], num)
				encodeFingerprint(payload[off+4:off+4+fingerprintWireSize], toWire(pf.FP))
				off += pairWireSize
			}
			return nil
		}
		if err := writeAll(entry.Outputs); err != nil {
			return err
		}
		if err := writeAll(entry.Inputs); err != nil {
			return err
		}

		if err := writeRecord(recordInvocation, payload); err != nil {
			return err
		}
	}

	return w.Flush()
}

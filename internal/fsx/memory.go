package fsx

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"shuriken/internal/hashx"
	"shuriken/internal/shkerr"
)

// InMemoryFileSystem is a FileSystem test double: it never touches the
// real disk. Grounded in the fake/dry-run file system pattern from
// _examples/original_source/src/shk/src/fs/dry_run_file_system.cpp,
// generalized here to actually hold file contents (the original dry
// run variant only stubs out mutation) since our tests need to observe
// writes and mtimes, not merely suppress them.
type InMemoryFileSystem struct {
	mu    sync.Mutex
	files map[string]*memFile
	// clock lets tests pin "now" deterministically instead of using
	// wall-clock time, mirroring how build_test.cpp in the original
	// source drives a fake clock through the build.
	clock func() int64
}

type memFile struct {
	data  []byte
	isDir bool
	mtime int64
	ctime int64
}

// NewInMemoryFileSystem returns an empty in-memory file system whose
// clock defaults to the wall clock.
func NewInMemoryFileSystem() *InMemoryFileSystem {
	return &InMemoryFileSystem{
		files: make(map[string]*memFile),
		clock: func() int64 { return time.Now().Unix() },
	}
}

// SetClock overrides the fake system clock, letting tests construct
// same-second races deterministically (spec §8 "racy detection").
func (fs *InMemoryFileSystem) SetClock(clock func() int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.clock = clock
}

// WriteFile creates or overwrites path's contents directly, bypassing
// WriteAtomic's temp-file dance, for test setup convenience.
func (fs *InMemoryFileSystem) WriteFile(path string, data []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	now := fs.clock()
	f, ok := fs.files[path]
	if !ok {
		f = &memFile{ctime: now}
		fs.files[path] = f
	}
	f.data = append([]byte(nil), data...)
	f.mtime = now
	f.ctime = now
}

func (fs *InMemoryFileSystem) Stat(path string) (StatSubset, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[path]
	if !ok {
		return StatSubset{CouldAccess: false}, nil
	}
	mode := uint32(0)
	if f.isDir {
		mode = modeDir
	}
	return StatSubset{
		Size:        int64(len(f.data)),
		Mode:        mode,
		Mtime:       f.mtime,
		Ctime:       f.ctime,
		CouldAccess: true,
	}, nil
}

func (fs *InMemoryFileSystem) HashFile(path string) (hashx.Hash, error) {
	fs.mu.Lock()
	f, ok := fs.files[path]
	fs.mu.Unlock()
	if !ok {
		return hashx.Hash{}, shkerr.Wrap(shkerr.Io, path, errNotExist)
	}
	return hashx.HashBytes(f.data), nil
}

func (fs *InMemoryFileSystem) Mkdirs(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	now := fs.clock()
	for p := path; p != "." && p != "/" && p != ""; p = filepath.Dir(p) {
		if _, ok := fs.files[p]; !ok {
			fs.files[p] = &memFile{isDir: true, mtime: now, ctime: now}
		}
		if filepath.Dir(p) == p {
			break
		}
	}
	return nil
}

func (fs *InMemoryFileSystem) Unlink(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.files, path)
	return nil
}

func (fs *InMemoryFileSystem) WriteAtomic(path string, data []byte) error {
	fs.WriteFile(path, data)
	return nil
}

func (fs *InMemoryFileSystem) EnableStatCache()  {}
func (fs *InMemoryFileSystem) DisableStatCache() {}

// Paths returns every known path in deterministic order, for tests
// that want to assert on the whole file set.
func (fs *InMemoryFileSystem) Paths() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]string, 0, len(fs.files))
	for p := range fs.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

var errNotExist = &pathNotExistError{}

type pathNotExistError struct{}

func (*pathNotExistError) Error() string { return "no such file" }

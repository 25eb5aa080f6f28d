package fsx

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"shuriken/internal/hashx"
	"shuriken/internal/shkerr"
)

// RealFileSystem talks to the actual operating system file system.
// Grounded in the teacher's RealDiskInterface (disk_interface.go,
// disk_interface_linux.go), generalized to the fuller contract spec §6
// requires and rewritten with syscall.Stat_t decoded directly instead
// of the teacher's Windows-only FILETIME path.
type RealFileSystem struct {
	mu        sync.Mutex
	cache     map[string]StatSubset
	useCache  bool
}

// NewRealFileSystem returns a FileSystem backed by the OS.
func NewRealFileSystem() *RealFileSystem {
	return &RealFileSystem{}
}

func (fs *RealFileSystem) EnableStatCache() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.useCache = true
	fs.cache = make(map[string]StatSubset)
}

func (fs *RealFileSystem) DisableStatCache() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.useCache = false
	fs.cache = nil
}

func (fs *RealFileSystem) Stat(path string) (StatSubset, error) {
	fs.mu.Lock()
	if fs.useCache {
		if s, ok := fs.cache[path]; ok {
			fs.mu.Unlock()
			return s, nil
		}
	}
	fs.mu.Unlock()

	s, err := statOnce(path)
	if err != nil {
		return StatSubset{}, err
	}

	fs.mu.Lock()
	if fs.useCache {
		fs.cache[path] = s
	}
	fs.mu.Unlock()
	return s, nil
}

func statOnce(path string) (StatSubset, error) {
	var st syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		if os.IsNotExist(err) {
			return StatSubset{CouldAccess: false}, nil
		}
		return StatSubset{}, shkerr.Wrap(shkerr.Io, path, err)
	}
	subset := StatSubset{
		Size:        st.Size,
		Ino:         st.Ino,
		Mode:        uint32(st.Mode),
		Mtime:       st.Mtim.Sec,
		Ctime:       st.Ctim.Sec,
		CouldAccess: true,
	}
	return subset, nil
}

func (fs *RealFileSystem) HashFile(path string) (hashx.Hash, error) {
	h, err := hashx.HashFile(path)
	if err != nil {
		return hashx.Hash{}, shkerr.Wrap(shkerr.Io, path, err)
	}
	return h, nil
}

func (fs *RealFileSystem) Mkdirs(path string) error {
	if err := os.MkdirAll(path, 0o777); err != nil {
		return shkerr.Wrap(shkerr.Io, path, err)
	}
	return nil
}

func (fs *RealFileSystem) Unlink(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return shkerr.Wrap(shkerr.Io, path, err)
	}
	return nil
}

func (fs *RealFileSystem) WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return shkerr.Wrap(shkerr.Io, path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return shkerr.Wrap(shkerr.Io, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return shkerr.Wrap(shkerr.Io, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return shkerr.Wrap(shkerr.Io, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return shkerr.Wrap(shkerr.Io, path, err)
	}
	return nil
}

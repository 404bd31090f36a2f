// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// NewMem returns an in-memory FS implementation. It is flat: every name is a
// direct child of the root, which is all the manifest package's single
// database directory ever needs.
func NewMem() FS {
	return &memFS{files: make(map[string]*memFile)}
}

type memFS struct {
	mu    sync.Mutex
	files map[string]*memFile
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (y *memFS) Create(name string) (File, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	f := &memFile{name: name}
	y.files[name] = f
	return &memFileHandle{f: f}, nil
}

func (y *memFS) Open(name string) (File, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	f, ok := y.files[name]
	if !ok {
		return nil, errors.Newf("vfs: no such file: %s", name)
	}
	return &memFileHandle{f: f}, nil
}

func (y *memFS) Remove(name string) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if _, ok := y.files[name]; !ok {
		return errors.Newf("vfs: no such file: %s", name)
	}
	delete(y.files, name)
	return nil
}

func (y *memFS) Rename(oldname, newname string) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	f, ok := y.files[oldname]
	if !ok {
		return errors.Newf("vfs: no such file: %s", oldname)
	}
	f.name = newname
	y.files[newname] = f
	delete(y.files, oldname)
	return nil
}

func (y *memFS) MkdirAll(dir string, perm os.FileMode) error { return nil }

func (y *memFS) Lock(name string) (io.Closer, error) {
	// A MemFS is private to one process, so there is no one else to exclude.
	return nopCloser{}, nil
}

func (y *memFS) List(dir string) ([]string, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	names := make([]string, 0, len(y.files))
	for name := range y.files {
		names = append(names, name)
	}
	return names, nil
}

func (y *memFS) Stat(name string) (fs.FileInfo, error) {
	y.mu.Lock()
	f, ok := y.files[name]
	y.mu.Unlock()
	if !ok {
		return nil, errors.Newf("vfs: no such file: %s", name)
	}
	return f, nil
}

// memFile is the shared, mutable backing store for a file in a MemFS.
type memFile struct {
	mu      sync.Mutex
	name    string
	data    []byte
	modTime time.Time
}

// memFileHandle is an open handle onto a memFile; ReadAt/Write operate
// directly against the shared memFile so that concurrent handles observe
// each other's writes, matching *os.File semantics.
type memFileHandle struct {
	f   *memFile
	off int64
}

func (h *memFileHandle) Close() error { return nil }

func (h *memFileHandle) Read(p []byte) (int, error) {
	n, err := h.ReadAt(p, h.off)
	h.off += int64(n)
	return n, err
}

func (h *memFileHandle) ReadAt(p []byte, off int64) (int, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if off >= int64(len(h.f.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (h *memFileHandle) Write(p []byte) (int, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	h.f.modTime = time.Now()
	h.f.data = append(h.f.data, p...)
	return len(p), nil
}

func (h *memFileHandle) Stat() (fs.FileInfo, error) { return h.f, nil }

func (h *memFileHandle) Sync() error { return nil }

func (f *memFile) Name() string       { return f.name }
func (f *memFile) Size() int64        { f.mu.Lock(); defer f.mu.Unlock(); return int64(len(f.data)) }
func (f *memFile) Mode() os.FileMode  { return 0644 }
func (f *memFile) ModTime() time.Time { f.mu.Lock(); defer f.mu.Unlock(); return f.modTime }
func (f *memFile) IsDir() bool        { return false }
func (f *memFile) Sys() interface{}   { return nil }

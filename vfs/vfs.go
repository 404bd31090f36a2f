// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vfs abstracts the filesystem operations the manifest package
// needs from its environment: creating and reading files, syncing,
// renaming, listing a directory. Tests substitute MemFS so that MANIFEST
// and CURRENT handling can be exercised without touching disk.
package vfs

import (
	"io"
	"io/fs"
	"os"
)

// File is a readable, writable, syncable sequence of bytes. Typically an
// *os.File, but MemFS substitutes an in-memory implementation.
type File interface {
	io.Closer
	io.Reader
	io.ReaderAt
	io.Writer
	Stat() (fs.FileInfo, error)
	Sync() error
}

// FS is a namespace of files, standing in for the operating system's
// filesystem so database directories can be opened, listed and locked
// without assuming a particular storage backend.
type FS interface {
	Create(name string) (File, error)
	Open(name string) (File, error)
	Remove(name string) error
	Rename(oldname, newname string) error
	MkdirAll(dir string, perm os.FileMode) error

	// Lock opens name for reading and writing, creating it if necessary,
	// and returns a Closer that closes it. Neither implementation here takes
	// an operating-system lock on the file or truncates it; the in-memory FS
	// returns a Closer that does nothing.
	Lock(name string) (io.Closer, error)

	// List returns the names of the entries in dir, relative to dir.
	List(dir string) ([]string, error)

	// Stat returns file metadata for name.
	Stat(name string) (fs.FileInfo, error)
}

// Default is the FS implementation backed by the operating system.
var Default FS = osFS{}

type osFS struct{}

func (osFS) Create(name string) (File, error) { return os.Create(name) }
func (osFS) Open(name string) (File, error)   { return os.Open(name) }
func (osFS) Remove(name string) error         { return os.Remove(name) }
func (osFS) Rename(oldname, newname string) error {
	return os.Rename(oldname, newname)
}
func (osFS) MkdirAll(dir string, perm os.FileMode) error { return os.MkdirAll(dir, perm) }

func (osFS) Lock(name string) (io.Closer, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (osFS) List(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}

func (osFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

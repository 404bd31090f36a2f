// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdlfs/pdlfs-common/base"
	"github.com/pdlfs/pdlfs-common/vfs"
)

const (
	fileTypeManifest = iota
	fileTypeCurrent
)

func dbFilename(dirname string, fileType int, fileNum uint64) string {
	switch fileType {
	case fileTypeManifest:
		return filepath.Join(dirname, fmt.Sprintf("MANIFEST-%06d", fileNum))
	case fileTypeCurrent:
		return filepath.Join(dirname, "CURRENT")
	}
	panic("manifest: unknown file type")
}

// manifestFileNum returns the file number encoded in a MANIFEST-NNNNNN
// filename, or 0 if filename is not a manifest file.
func manifestFileNum(filename string) uint64 {
	const prefix = "MANIFEST-"
	if !strings.HasPrefix(filename, prefix) {
		return 0
	}
	u, err := strconv.ParseUint(filename[len(prefix):], 10, 64)
	if err != nil {
		return 0
	}
	return u
}

// setCurrentFile atomically points CURRENT at the descriptor named by
// fileNum, using a write-to-temp-then-rename so a crash never leaves
// CURRENT referencing a half-written name.
func setCurrentFile(dirname string, fs vfs.FS, fileNum uint64) error {
	newFilename := dbFilename(dirname, fileTypeCurrent, fileNum)
	tmpFilename := fmt.Sprintf("%s.%06d.dbtmp", newFilename, fileNum)
	fs.Remove(tmpFilename)

	f, err := fs.Create(tmpFilename)
	if err != nil {
		return base.ErrIOError("create", tmpFilename, err)
	}
	if _, err := fmt.Fprintf(f, "MANIFEST-%06d\n", fileNum); err != nil {
		f.Close()
		return base.ErrIOError("write", tmpFilename, err)
	}
	if err := f.Close(); err != nil {
		return base.ErrIOError("close", tmpFilename, err)
	}
	if err := fs.Rename(tmpFilename, newFilename); err != nil {
		return base.ErrIOError("rename", newFilename, err)
	}
	return nil
}

// readCurrentFile returns the manifest file number CURRENT points at.
func readCurrentFile(dirname string, fs vfs.FS) (uint64, error) {
	name := dbFilename(dirname, fileTypeCurrent, 0)
	f, err := fs.Open(name)
	if err != nil {
		return 0, base.ErrIOError("open", name, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return 0, base.ErrIOError("stat", name, err)
	}
	buf := make([]byte, stat.Size())
	if _, err := f.ReadAt(buf, 0); err != nil {
		return 0, base.ErrIOError("read", name, err)
	}
	if !strings.HasSuffix(string(buf), "\n") {
		return 0, base.ErrCorruption("manifest: CURRENT file %s missing trailing newline", name)
	}
	s := strings.TrimSuffix(string(buf), "\n")
	n := manifestFileNum(s)
	if n == 0 {
		return 0, base.ErrCorruption("manifest: invalid CURRENT file contents %q", s)
	}
	return n, nil
}

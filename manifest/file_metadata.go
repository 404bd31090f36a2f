// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"github.com/cockroachdb/redact"
	"github.com/zhangyunhao116/skipmap"

	"github.com/pdlfs/pdlfs-common/base"
)

// FileMetaData describes a single table file belonging to some level of
// some Version. It is immutable once constructed, with the exception of
// Refs and of the seek-compaction bookkeeping fields, which
// Version.UpdateStats mutates under the VersionSet's mutex.
type FileMetaData struct {
	// Number uniquely identifies the table file within a database's
	// lifetime; it doubles as the table cache's lookup key.
	Number uint64

	// Size is the file's length on disk, in bytes.
	Size uint64

	// SeqOff is added to every sequence number stored in the table, used
	// when a file is adopted from a foreign database (see VersionSet's
	// ForeignApply) whose sequence numbers must not collide with this
	// database's own.
	SeqOff uint64

	// Smallest and Largest bound the internal keys the file contains,
	// inclusive.
	Smallest base.InternalKey
	Largest  base.InternalKey

	// AllowedSeeks counts down every time a Version.Get probe charges a
	// seek against this file without finding its answer there; reaching
	// zero schedules the file for a seek-triggered compaction.
	AllowedSeeks int64

	// Refs counts the Versions currently holding this file. A file is only
	// safe to delete from disk once Refs drops to zero.
	Refs int32

	// Updated marks a file carried forward by an edit with its Smallest
	// bound raised to the edit's truncate key without the file's on-disk
	// bytes changing (a sublevel compaction consumed the file's prefix).
	// Builder.SaveTo installs a corrected copy of the file rather than
	// mutating the original in place.
	Updated bool
}

// allowedSeeksFor seeds AllowedSeeks for a freshly written file: one seek
// is tolerated per 16KiB of file content before this file becomes eligible
// for a seek-triggered compaction, with a floor of 100 seeks so that small
// files are not compacted away almost immediately.
func allowedSeeksFor(size uint64) int64 {
	seeks := int64(size / 16384)
	if seeks < 100 {
		seeks = 100
	}
	return seeks
}

// String renders f for diagnostic logging.
func (f *FileMetaData) String() string {
	return redact.StringWithoutMarkers(f)
}

// SafeFormat implements redact.SafeFormatter: file numbers, sizes and seek
// budgets are operational metadata and print in the clear, while the key
// bounds are user data and stay redactable.
func (f *FileMetaData) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%06d(%dB seeks=%d)[%s-%s]",
		redact.Safe(f.Number), redact.Safe(f.Size), redact.Safe(f.AllowedSeeks),
		f.Smallest, f.Largest)
}

// fileRegistry maps file numbers to their FileMetaData, shared by every
// Version a VersionSet has ever produced. The registry itself is lock-free,
// so VersionSet.LookupFile can resolve a file number to its metadata
// without the VersionSet mutex: a file is registered by Builder.SaveTo and
// never mutated afterwards except for the seek-accounting fields, which
// such readers only ever read racily for an approximate answer.
type fileRegistry struct {
	m *skipmap.Uint64Map[*FileMetaData]
}

func newFileRegistry() *fileRegistry {
	return &fileRegistry{m: skipmap.NewUint64[*FileMetaData]()}
}

func (r *fileRegistry) add(f *FileMetaData) {
	r.m.Store(f.Number, f)
}

func (r *fileRegistry) get(fileNum uint64) (*FileMetaData, bool) {
	return r.m.Load(fileNum)
}

// removeIf drops the registry entry for f only if f is still the meta
// registered under its number. An updated (truncated) copy shares its
// original's number; releasing the original must not unregister the copy.
func (r *fileRegistry) removeIf(f *FileMetaData) bool {
	if cur, ok := r.m.Load(f.Number); ok && cur == f {
		r.m.Delete(f.Number)
		return true
	}
	return false
}

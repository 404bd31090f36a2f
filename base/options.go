// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package base

import "github.com/pdlfs/pdlfs-common/vfs"

// Options holds the tuning knobs and collaborators for the manifest
// package. The GetXxx accessors return a default when o is nil or the field
// is the zero value, mirroring the leveldb-go Options convention so that a
// caller can pass a sparsely populated struct literal.
type Options struct {
	// Comparer defines the ordering over user keys. It must not change across
	// the lifetime of a database: its Name is recorded in the MANIFEST and
	// checked on every reopen.
	Comparer Comparer

	// FS is the filesystem the MANIFEST, CURRENT and table files live on.
	FS vfs.FS

	// Logger receives diagnostic messages: MANIFEST write failures,
	// compaction-input expansions, recovery results.
	Logger Logger

	// EnableSublevel selects the sublevel-pool level organization in place
	// of the classic leveled strategy.
	EnableSublevel bool

	// RotatingManifest selects descriptor persistence by cycling between two
	// fixed descriptor numbers instead of writing a CURRENT pointer file.
	RotatingManifest bool

	// EnableShouldStopBefore enables output-file cutting based on grandparent
	// overlap (classic strategy only).
	EnableShouldStopBefore bool

	// ParanoidChecks, when true, is propagated to iterator options handed to
	// the table-cache collaborator.
	ParanoidChecks bool

	// LevelFactor is the per-level size growth factor (pebble/leveldb call
	// this 10, but the sublevel-pool experiment in this codebase uses a
	// smaller factor to keep sublevel counts observable in tests).
	LevelFactor int64

	// TableFileSize is the target size, in bytes, of a single table file.
	TableFileSize int64

	// L0CompactionTrigger is the number of level-0 files at which
	// compaction-score for level 0 reaches 1.
	L0CompactionTrigger int

	// L1CompactionTrigger is the number of table files' worth of bytes
	// level 1 may hold before its compaction score reaches 1: level 1's
	// byte budget is L1CompactionTrigger * TableFileSize, scaled by
	// LevelFactor for each level beyond it.
	L1CompactionTrigger int64
}

const (
	defaultLevelFactor         = 10
	defaultTableFileSize       = 2 * 1024 * 1024
	defaultL0CompactionTrigger = 4
	defaultL1CompactionTrigger = 5
)

func (o *Options) GetComparer() Comparer {
	if o == nil || o.Comparer == nil {
		return DefaultComparer
	}
	return o.Comparer
}

func (o *Options) GetFS() vfs.FS {
	if o == nil || o.FS == nil {
		return vfs.Default
	}
	return o.FS
}

func (o *Options) GetLogger() Logger {
	if o == nil || o.Logger == nil {
		return NewDefaultLogger()
	}
	return o.Logger
}

func (o *Options) GetLevelFactor() int64 {
	if o == nil || o.LevelFactor == 0 {
		return defaultLevelFactor
	}
	return o.LevelFactor
}

func (o *Options) GetTableFileSize() int64 {
	if o == nil || o.TableFileSize == 0 {
		return defaultTableFileSize
	}
	return o.TableFileSize
}

func (o *Options) GetL0CompactionTrigger() int {
	if o == nil || o.L0CompactionTrigger == 0 {
		return defaultL0CompactionTrigger
	}
	return o.L0CompactionTrigger
}

func (o *Options) GetL1CompactionTrigger() int64 {
	if o == nil || o.L1CompactionTrigger == 0 {
		return defaultL1CompactionTrigger
	}
	return o.L1CompactionTrigger
}


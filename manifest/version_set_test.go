// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdlfs/pdlfs-common/base"
	"github.com/pdlfs/pdlfs-common/record"
	"github.com/pdlfs/pdlfs-common/tablecache/memcache"
	"github.com/pdlfs/pdlfs-common/vfs"
)

func newMemVersionSet(opts *base.Options) *VersionSet {
	if opts == nil {
		opts = &base.Options{}
	}
	if opts.FS == nil {
		opts.FS = vfs.NewMem()
	}
	icmp := base.InternalKeyComparer{UserKeyComparer: opts.GetComparer()}
	cache := memcache.New(icmp)
	return NewVersionSet("/db", opts, cache)
}

func addFileEdit(level int, number uint64, smallest, largest string, smallestSeq, largestSeq uint64, size uint64, lastSeq uint64) *VersionEdit {
	e := &VersionEdit{LastSequence: lastSeq, HasLastSeq: true}
	e.AddFile(level, *newFile(number, smallest, largest, smallestSeq, largestSeq, size))
	return e
}

// TestLogAndApplyRecoverRoundTrip is the round-trip-MANIFEST scenario:
// starting from empty, apply edits adding files {10: [a,c], 20: [d,f]} at
// level 1, then delete file 10, log-and-apply each. Recover: the resulting
// Version contains only file 20 at level 1, and next_file_number > 20.
func TestLogAndApplyRecoverRoundTrip(t *testing.T) {
	opts := &base.Options{}
	vs := newMemVersionSet(opts)
	ctx := context.Background()

	// File numbers 10 and 20 are chosen by the test directly rather than
	// through NewFileNumber, so nextFileNumber is bumped past them by hand
	// to keep it a meaningful upper bound after recovery.
	vs.MarkFileNumberUsed(20)

	first := addFileEdit(1, 10, "a", "c", 1, 2, 1024, 2)
	first.LogNumber = 1
	require.NoError(t, vs.LogAndApply(ctx, first))
	require.NoError(t, vs.LogAndApply(ctx, addFileEdit(1, 20, "d", "f", 3, 4, 1024, 4)))

	var del VersionEdit
	del.DeleteFile(1, 10)
	del.LastSequence = 5
	del.HasLastSeq = true
	require.NoError(t, vs.LogAndApply(ctx, &del))

	v := vs.Current()
	defer vs.ReleaseVersion(v)
	require.Len(t, v.Files[1], 1)
	require.EqualValues(t, 20, v.Files[1][0].Number)

	// Recover a fresh VersionSet against the same filesystem and
	// directory, sharing the underlying MemFS.
	opts2 := &base.Options{FS: opts.FS}
	vs2 := newMemVersionSet(opts2)
	require.NoError(t, vs2.Recover(ctx))

	v2 := vs2.Current()
	defer vs2.ReleaseVersion(v2)
	require.Len(t, v2.Files[1], 1)
	require.EqualValues(t, 20, v2.Files[1][0].Number)
	require.Greater(t, vs2.nextFileNumber, uint64(20))
	require.EqualValues(t, 5, vs2.lastSequence)
	require.EqualValues(t, 1, vs2.logNumber)
}

// TestRecoverReplayEqualsInstalled is invariant 4: after a successful
// LogAndApply, replaying the MANIFEST from scratch yields a Version equal
// to the installed one.
func TestRecoverReplayEqualsInstalled(t *testing.T) {
	opts := &base.Options{}
	vs := newMemVersionSet(opts)
	ctx := context.Background()

	e1 := addFileEdit(0, 3, "d", "h", 1, 2, 512, 2)
	e1.LogNumber = 2
	require.NoError(t, vs.LogAndApply(ctx, e1))
	require.NoError(t, vs.LogAndApply(ctx, addFileEdit(1, 4, "a", "c", 3, 4, 2048, 4)))
	require.NoError(t, vs.LogAndApply(ctx, addFileEdit(2, 5, "m", "p", 5, 6, 4096, 6)))

	vs2 := newMemVersionSet(&base.Options{FS: opts.FS})
	require.NoError(t, vs2.Recover(ctx))

	v, v2 := vs.Current(), vs2.Current()
	defer vs.ReleaseVersion(v)
	defer vs2.ReleaseVersion(v2)
	require.Equal(t, len(v.Files), len(v2.Files))
	for level := range v.Files {
		require.Len(t, v2.Files[level], len(v.Files[level]), "level %d", level)
		for i, f := range v.Files[level] {
			g := v2.Files[level][i]
			require.Equal(t, f.Number, g.Number)
			require.Equal(t, f.Size, g.Size)
			require.Equal(t, f.Smallest, g.Smallest)
			require.Equal(t, f.Largest, g.Largest)
		}
	}
	require.Equal(t, v.CompactionLevel, v2.CompactionLevel)
	require.InDelta(t, v.CompactionScore, v2.CompactionScore, 1e-9)
}

// TestLogAndApplyComparatorMismatch checks that an edit naming a foreign
// comparator is rejected as invalid-argument before anything is written.
func TestLogAndApplyComparatorMismatch(t *testing.T) {
	vs := newMemVersionSet(nil)
	e := addFileEdit(1, 9, "a", "b", 1, 2, 512, 1)
	e.ComparatorName = "some.other.Comparator"
	err := vs.LogAndApply(context.Background(), e)
	require.Error(t, err)
	require.True(t, base.IsInvalidArgument(err))
}

// writeDescriptor hand-writes a MANIFEST descriptor so recovery tests can
// stage exact on-disk states without going through LogAndApply.
func writeDescriptor(t *testing.T, fs vfs.FS, dirname string, fileNum uint64, edits ...*VersionEdit) {
	t.Helper()
	f, err := fs.Create(dbFilename(dirname, fileTypeManifest, fileNum))
	require.NoError(t, err)
	w := record.NewWriter(f)
	for _, e := range edits {
		ww, err := w.Next()
		require.NoError(t, err)
		require.NoError(t, e.encode(ww))
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())
}

// TestRotatingDescriptorSelection is the rotating-descriptor-selection
// scenario: descriptors 1 and 2 exist with last_sequences 5 and 7;
// Recover selects descriptor 2 and sets manifest_file_number = 1 for the
// next write.
func TestRotatingDescriptorSelection(t *testing.T) {
	fs := vfs.NewMem()
	cmpName := base.DefaultComparer.Name()

	e1 := &VersionEdit{ComparatorName: cmpName, LogNumber: 3, NextFileNumber: 10, LastSequence: 5, HasLastSeq: true}
	e1.AddFile(1, *newFile(8, "a", "b", 1, 2, 1024))
	writeDescriptor(t, fs, "/db", 1, e1)

	e2 := &VersionEdit{ComparatorName: cmpName, LogNumber: 4, NextFileNumber: 11, LastSequence: 7, HasLastSeq: true}
	e2.AddFile(1, *newFile(9, "c", "d", 3, 4, 1024))
	writeDescriptor(t, fs, "/db", 2, e2)

	vs := newMemVersionSet(&base.Options{RotatingManifest: true, FS: fs})
	require.NoError(t, vs.Recover(context.Background()))

	require.EqualValues(t, 1, vs.manifestFileNum)
	require.EqualValues(t, 7, vs.lastSequence)
	require.EqualValues(t, 11, vs.nextFileNumber)

	v := vs.Current()
	defer vs.ReleaseVersion(v)
	require.Len(t, v.Files[1], 1)
	require.EqualValues(t, 9, v.Files[1][0].Number)
}

// TestRotatingManifestLifecycle drives the rotating mode end to end: the
// first LogAndApply writes slot 1 and deletes any CURRENT file, a forced
// snapshot rotates to slot 2 and deletes slot 1, and recovery lands on
// the surviving slot.
func TestRotatingManifestLifecycle(t *testing.T) {
	opts := &base.Options{RotatingManifest: true}
	vs := newMemVersionSet(opts)
	ctx := context.Background()

	e1 := &VersionEdit{LastSequence: 5, HasLastSeq: true, LogNumber: 1}
	e1.AddFile(1, *newFile(10, "a", "b", 1, 2, 1024))
	require.NoError(t, vs.LogAndApply(ctx, e1))
	require.EqualValues(t, 1, vs.manifestFileNum)

	require.NoError(t, vs.WriteSnapshot())
	require.EqualValues(t, 2, vs.manifestFileNum)
	_, err := opts.FS.Stat(dbFilename("/db", fileTypeManifest, 1))
	require.Error(t, err)

	e2 := &VersionEdit{LastSequence: 7, HasLastSeq: true}
	e2.AddFile(1, *newFile(11, "c", "d", 3, 4, 1024))
	require.NoError(t, vs.LogAndApply(ctx, e2))

	vs2 := newMemVersionSet(&base.Options{RotatingManifest: true, FS: opts.FS})
	require.NoError(t, vs2.Recover(ctx))

	require.EqualValues(t, 1, vs2.manifestFileNum)
	require.EqualValues(t, 7, vs2.lastSequence)

	v := vs2.Current()
	defer vs2.ReleaseVersion(v)
	require.Len(t, v.Files[1], 2)
}

// TestRecoverRejectsDescriptorMissingFields checks the validity rule: a
// descriptor yielding no log_number is rejected, and with no other
// candidate the recovery fails as corruption.
func TestRecoverRejectsDescriptorMissingFields(t *testing.T) {
	fs := vfs.NewMem()
	cmpName := base.DefaultComparer.Name()

	e := &VersionEdit{ComparatorName: cmpName, NextFileNumber: 5, LastSequence: 3, HasLastSeq: true}
	writeDescriptor(t, fs, "/db", 1, e)

	vs := newMemVersionSet(&base.Options{RotatingManifest: true, FS: fs})
	err := vs.Recover(context.Background())
	require.Error(t, err)
	require.True(t, base.IsCorruption(err))
}

// TestRecoverComparatorMismatch checks that a descriptor written under a
// different comparator never becomes a candidate, and surfaces as a
// recovery failure when it was the only one.
func TestRecoverComparatorMismatch(t *testing.T) {
	fs := vfs.NewMem()

	e := &VersionEdit{ComparatorName: "some.other.Comparator", LogNumber: 2, NextFileNumber: 5, LastSequence: 3, HasLastSeq: true}
	writeDescriptor(t, fs, "/db", 1, e)

	vs := newMemVersionSet(&base.Options{RotatingManifest: true, FS: fs})
	err := vs.Recover(context.Background())
	require.Error(t, err)
}

// TestCurrentFileRoundTrip checks the CURRENT file protocol: a
// non-rotating database leaves CURRENT naming the live descriptor, and a
// CURRENT without its trailing newline reads back as corruption.
func TestCurrentFileRoundTrip(t *testing.T) {
	opts := &base.Options{}
	vs := newMemVersionSet(opts)
	require.NoError(t, vs.LogAndApply(context.Background(), addFileEdit(1, 10, "a", "b", 1, 2, 512, 1)))

	n, err := readCurrentFile("/db", opts.FS)
	require.NoError(t, err)
	require.Equal(t, vs.manifestFileNum, n)

	f, err := opts.FS.Create(dbFilename("/db", fileTypeCurrent, 0))
	require.NoError(t, err)
	_, err = f.Write([]byte("MANIFEST-000007"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = readCurrentFile("/db", opts.FS)
	require.Error(t, err)
	require.True(t, base.IsCorruption(err))
}

// TestForeignApply checks that adopting an edit installs the files without
// touching the MANIFEST, moves counters only forward, and rejects a
// foreign comparator.
func TestForeignApply(t *testing.T) {
	opts := &base.Options{}
	vs := newMemVersionSet(opts)
	vs.lastSequence = 50

	e := addFileEdit(1, 30, "a", "c", 1, 2, 512, 10)
	e.NextFileNumber = 40
	require.NoError(t, vs.ForeignApply(e))

	v := vs.Current()
	defer vs.ReleaseVersion(v)
	require.Len(t, v.Files[1], 1)
	// 10 < 50: the adopted edit's lower sequence does not move time
	// backwards.
	require.EqualValues(t, 50, vs.lastSequence)
	require.EqualValues(t, 40, vs.nextFileNumber)

	// No MANIFEST was ever created.
	_, err := opts.FS.Stat(dbFilename("/db", fileTypeCurrent, 0))
	require.Error(t, err)

	bad := addFileEdit(1, 31, "d", "e", 3, 4, 512, 60)
	bad.ComparatorName = "some.other.Comparator"
	err = vs.ForeignApply(bad)
	require.Error(t, err)
	require.True(t, base.IsInvalidArgument(err))
}

// TestLiveFileNumbers checks that files pinned only by an older, still
// referenced Version remain live after being deleted from the current one.
func TestLiveFileNumbers(t *testing.T) {
	vs := newMemVersionSet(nil)
	ctx := context.Background()

	e := addFileEdit(1, 10, "a", "c", 1, 2, 512, 1)
	e.LogNumber = 1
	require.NoError(t, vs.LogAndApply(ctx, e))

	old := vs.Current() // pins the Version still holding file 10

	var del VersionEdit
	del.DeleteFile(1, 10)
	require.NoError(t, vs.LogAndApply(ctx, &del))

	live := vs.LiveFileNumbers()
	_, ok := live[10]
	require.True(t, ok)

	vs.ReleaseVersion(old)
	live = vs.LiveFileNumbers()
	_, ok = live[10]
	require.False(t, ok)
}

// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBuilderAddAndDelete checks that a Builder folds an add-then-delete
// sequence of edits into the expected final file set, and that every
// surviving file ends up strictly sorted and non-overlapping (invariant 1).
func TestBuilderAddAndDelete(t *testing.T) {
	icmp := testICMP()
	regs := newFileRegistry()
	baseV := newVersion(false)

	b := NewBuilder(icmp, baseV, regs, false)
	var e1 VersionEdit
	e1.AddFile(1, *newFile(10, "a", "c", 1, 2, 1024))
	e1.AddFile(1, *newFile(20, "d", "f", 3, 4, 1024))
	b.Apply(&e1)

	v1, err := b.SaveTo()
	require.NoError(t, err)
	require.Len(t, v1.Files[1], 2)
	require.EqualValues(t, 10, v1.Files[1][0].Number)
	require.EqualValues(t, 20, v1.Files[1][1].Number)
	require.EqualValues(t, 1, v1.Files[1][0].Refs)
	require.EqualValues(t, 1, v1.Files[1][1].Refs)

	b2 := NewBuilder(icmp, v1, regs, false)
	var e2 VersionEdit
	e2.DeleteFile(1, 10)
	b2.Apply(&e2)
	v2, err := b2.SaveTo()
	require.NoError(t, err)

	require.Len(t, v2.Files[1], 1)
	require.EqualValues(t, 20, v2.Files[1][0].Number)
	// File 20 is now shared by both v1 and v2.
	require.EqualValues(t, 2, v2.Files[1][0].Refs)
}

// TestBuilderSortsAddedFiles checks that files arrive in a new Version
// ordered by Smallest regardless of the order edits named them in.
func TestBuilderSortsAddedFiles(t *testing.T) {
	icmp := testICMP()
	regs := newFileRegistry()
	baseV := newVersion(false)

	b := NewBuilder(icmp, baseV, regs, false)
	var e VersionEdit
	e.AddFile(2, *newFile(30, "m", "n", 5, 6, 512))
	e.AddFile(2, *newFile(10, "a", "b", 1, 2, 512))
	e.AddFile(2, *newFile(20, "d", "e", 3, 4, 512))
	b.Apply(&e)

	v, err := b.SaveTo()
	require.NoError(t, err)
	require.Len(t, v.Files, 4)
	require.Len(t, v.Files[2], 3)
	require.EqualValues(t, 10, v.Files[2][0].Number)
	require.EqualValues(t, 20, v.Files[2][1].Number)
	require.EqualValues(t, 30, v.Files[2][2].Number)
}

// TestBuilderGrowsLevels checks that an edit naming a level deeper than
// the base Version grows the built Version's level vector to MaxLevel+2,
// keeping the reserved empty top row.
func TestBuilderGrowsLevels(t *testing.T) {
	icmp := testICMP()
	regs := newFileRegistry()
	baseV := newVersion(false)
	require.Len(t, baseV.Files, maxMemCompactLevel+1)

	b := NewBuilder(icmp, baseV, regs, false)
	var e VersionEdit
	e.AddFile(5, *newFile(10, "a", "b", 1, 2, 512))
	b.Apply(&e)

	v, err := b.SaveTo()
	require.NoError(t, err)
	require.Len(t, v.Files, 7)
	require.Len(t, v.Files[5], 1)
	require.Empty(t, v.Files[6])
}

// TestBuilderOverlapIsCorruption checks that an edit sequence leaving two
// files overlapping within a sorted level is rejected rather than
// installed.
func TestBuilderOverlapIsCorruption(t *testing.T) {
	icmp := testICMP()
	regs := newFileRegistry()

	b := NewBuilder(icmp, newVersion(false), regs, false)
	var e VersionEdit
	e.AddFile(1, *newFile(10, "a", "m", 1, 2, 512))
	e.AddFile(1, *newFile(11, "c", "z", 3, 4, 512))
	b.Apply(&e)

	_, err := b.SaveTo()
	require.Error(t, err)
}

// TestBuilderTruncatesUpdatedFile checks the sublevel update path: a file
// named by an updated-file entry is carried forward as a fresh
// FileMetaData whose Smallest is raised to the edit's truncate key.
func TestBuilderTruncatesUpdatedFile(t *testing.T) {
	icmp := testICMP()
	regs := newFileRegistry()

	baseV := newVersion(true)
	orig := newFile(7, "a", "f", 5, 2, 2048)
	baseV.Files[1] = []*FileMetaData{orig}

	b := NewBuilder(icmp, baseV, regs, true)
	var e VersionEdit
	e.UpdateFile(1, 7)
	e.TruncateKey = ikey("c", 3)
	b.Apply(&e)

	v, err := b.SaveTo()
	require.NoError(t, err)
	require.Len(t, v.Files[1], 1)
	got := v.Files[1][0]
	require.NotSame(t, orig, got)
	require.True(t, got.Updated)
	require.EqualValues(t, 7, got.Number)
	require.Equal(t, ikey("c", 3), got.Smallest)
	require.Equal(t, orig.Largest, got.Largest)
	// The original's bounds are untouched; older Versions still need them.
	require.Equal(t, ikey("a", 5), orig.Smallest)
}

// TestBuilderCloseReleasesUnpublishedFiles checks that an abandoned
// Builder unregisters the files it provisionally added, the scoped-helper
// contract that keeps a failed LogAndApply (or a losing Recover
// candidate) from leaking registry entries.
func TestBuilderCloseReleasesUnpublishedFiles(t *testing.T) {
	icmp := testICMP()
	regs := newFileRegistry()

	b := NewBuilder(icmp, newVersion(false), regs, false)
	var e VersionEdit
	e.AddFile(1, *newFile(42, "a", "b", 1, 2, 512))
	b.Apply(&e)
	_, ok := regs.get(42)
	require.True(t, ok)

	b.Close()
	_, ok = regs.get(42)
	require.False(t, ok)
}

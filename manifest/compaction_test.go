// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdlfs/pdlfs-common/base"
	"github.com/pdlfs/pdlfs-common/tablecache/memcache"
)

func newTestVersionSet(t *testing.T, opts *base.Options) *VersionSet {
	t.Helper()
	if opts == nil {
		opts = &base.Options{}
	}
	icmp := base.InternalKeyComparer{UserKeyComparer: opts.GetComparer()}
	cache := memcache.New(icmp)
	return NewVersionSet(t.TempDir(), opts, cache)
}

// TestTrivialMove is the trivial-move scenario: level 2 has one file
// [a,c], level 3 and level 4 are empty. PickCompaction returns a
// compaction with one input and IsTrivialMove() == true.
func TestTrivialMove(t *testing.T) {
	vs := newTestVersionSet(t, nil)
	v := newVersion(false)
	growFiles(v, 5)
	v.Files[2] = []*FileMetaData{newFile(1, "a", "c", 1, 2, 1024)}
	v.CompactionLevel = 2
	v.CompactionScore = 5
	vs.current = v

	c, err := vs.PickCompaction()
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, 2, c.Level)
	require.Len(t, c.Inputs[0], 1)
	require.Empty(t, c.Inputs[1])
	require.True(t, c.IsTrivialMove())
	require.EqualValues(t, 1, c.TheOnlyFile().Number)
}

// TestBoundaryExpansionRejected is the boundary-expansion-rejected
// scenario: if expanding inputs[0] would force inputs[1] to grow, the
// expansion is discarded and inputs[0] retains its original members.
func TestBoundaryExpansionRejected(t *testing.T) {
	icmp := testICMP()
	vs := newTestVersionSet(t, nil)

	v := newVersion(false)
	growFiles(v, 4)
	// Level 1 has two files; only the first overlaps level 2's first
	// file. Expanding inputs[0] to also cover the second level-1 file
	// would pull in a second level-2 file, so the expansion must be
	// rejected.
	l1a := newFile(1, "a", "c", 1, 2, 1024)
	l1b := newFile(2, "d", "h", 3, 4, 1024)
	l2 := newFile(3, "b", "d", 5, 6, 1024)
	l2other := newFile(4, "g", "i", 7, 8, 1024)
	v.Files[1] = []*FileMetaData{l1a, l1b}
	v.Files[2] = []*FileMetaData{l2, l2other}
	vs.current = v

	c := newCompaction(vs.opts, icmp, 1, v)
	c.Inputs[0] = []*FileMetaData{l1a}
	vs.setupOtherInputs(c)

	require.ElementsMatch(t, []*FileMetaData{l1a}, c.Inputs[0])
	require.ElementsMatch(t, []*FileMetaData{l2}, c.Inputs[1])
}

// TestBoundaryExpansionAccepted is the complementary case: when the wider
// level input set pulls in no additional level+1 files and stays under the
// byte limit, the expansion is adopted.
func TestBoundaryExpansionAccepted(t *testing.T) {
	icmp := testICMP()
	vs := newTestVersionSet(t, nil)

	v := newVersion(false)
	growFiles(v, 4)
	// Level 2's single file spans both level-1 files, so expanding
	// inputs[0] to {l1a, l1b} leaves inputs[1] unchanged.
	l1a := newFile(1, "a", "c", 1, 2, 1024)
	l1b := newFile(2, "d", "h", 3, 4, 1024)
	l2 := newFile(3, "b", "h", 5, 6, 1024)
	v.Files[1] = []*FileMetaData{l1a, l1b}
	v.Files[2] = []*FileMetaData{l2}
	vs.current = v

	c := newCompaction(vs.opts, icmp, 1, v)
	c.Inputs[0] = []*FileMetaData{l1a}
	vs.setupOtherInputs(c)

	require.ElementsMatch(t, []*FileMetaData{l1a, l1b}, c.Inputs[0])
	require.ElementsMatch(t, []*FileMetaData{l2}, c.Inputs[1])
}

// TestPickCompactionInputsWellFormed is invariant 5: inputs[0] is
// non-empty, and inputs[1] is exactly the level+1 files overlapping the
// user-key range of inputs[0].
func TestPickCompactionInputsWellFormed(t *testing.T) {
	icmp := testICMP()
	opts := &base.Options{L0CompactionTrigger: 1}
	vs := newTestVersionSet(t, opts)

	v := newVersion(false)
	v.Files[0] = []*FileMetaData{newFile(1, "a", "e", 1, 2, 1024)}
	v.Files[1] = []*FileMetaData{
		newFile(2, "a", "c", 3, 4, 1024),
		newFile(3, "z", "zz", 5, 6, 1024),
	}
	v.Finalize(vs.opts)
	vs.current = v

	c, err := vs.PickCompaction()
	require.NoError(t, err)
	require.NotNil(t, c)
	require.NotEmpty(t, c.Inputs[0])

	smallest, largest := getRange(icmp, c.Inputs[0])
	want := v.GetOverlappingInputs(icmp, c.Level+1, smallest, largest)
	require.ElementsMatch(t, want, c.Inputs[1])
}

// TestPickCompactionRoundRobin checks classic input selection: the first
// file past compact_pointer[level] is picked, wrapping to the level's
// first file once the cursor runs off the end, and the pointer lands on
// the chosen range's largest key both in the VersionSet and in the edit.
func TestPickCompactionRoundRobin(t *testing.T) {
	vs := newTestVersionSet(t, nil)
	v := newVersion(false)
	growFiles(v, 4)
	fa := newFile(1, "a", "c", 1, 2, 1024)
	fb := newFile(2, "e", "g", 3, 4, 1024)
	v.Files[1] = []*FileMetaData{fa, fb}
	v.CompactionLevel = 1
	v.CompactionScore = 2
	vs.current = v

	c, err := vs.PickCompaction()
	require.NoError(t, err)
	require.Equal(t, []*FileMetaData{fa}, c.Inputs[0])
	require.Equal(t, fa.Largest, vs.compactPointerAt(1))
	require.Len(t, c.Edit.CompactPointers, 1)

	c, err = vs.PickCompaction()
	require.NoError(t, err)
	require.Equal(t, []*FileMetaData{fb}, c.Inputs[0])

	// Cursor past the last file wraps back to the first.
	c, err = vs.PickCompaction()
	require.NoError(t, err)
	require.Equal(t, []*FileMetaData{fa}, c.Inputs[0])
}

// TestIsBaseLevelForKey checks that a key absent from every level beyond
// Level+1 is reported as base-level, and one present in such a level is
// not.
func TestIsBaseLevelForKey(t *testing.T) {
	icmp := testICMP()
	opts := &base.Options{}
	v := newVersion(false)
	growFiles(v, 5)
	v.Files[3] = []*FileMetaData{newFile(1, "m", "o", 1, 2, 1024)}

	c := newCompaction(opts, icmp, 0, v)
	require.True(t, c.IsBaseLevelForKey([]byte("a")))
	require.False(t, c.IsBaseLevelForKey([]byte("n")))
}

// TestShouldStopBefore checks output cutting on grandparent overlap: once
// the keys written have moved past more grandparent bytes than the budget
// allows, the current output is cut and the overlap counter resets.
func TestShouldStopBefore(t *testing.T) {
	icmp := testICMP()
	opts := &base.Options{
		EnableShouldStopBefore: true,
		TableFileSize:          1024,
		LevelFactor:            2, // budget: 2*1024 bytes of overlap
	}
	v := newVersion(false)
	growFiles(v, 4)

	c := newCompaction(opts, icmp, 0, v)
	c.grandparents = []*FileMetaData{
		newFile(1, "a", "b", 1, 2, 1500),
		newFile(2, "c", "d", 3, 4, 1500),
		newFile(3, "e", "f", 5, 6, 1500),
	}

	require.False(t, c.ShouldStopBefore(ikey("aa", 10)))
	require.False(t, c.ShouldStopBefore(ikey("cc", 10)))
	require.True(t, c.ShouldStopBefore(ikey("ee", 10)))
	// The counter reset with the cut.
	require.False(t, c.ShouldStopBefore(ikey("ee", 9)))
}

// TestShouldStopBeforeDisabled checks the option gate: with output
// cutting disabled no amount of grandparent overlap cuts a file.
func TestShouldStopBeforeDisabled(t *testing.T) {
	icmp := testICMP()
	opts := &base.Options{TableFileSize: 1024, LevelFactor: 2}
	v := newVersion(false)
	growFiles(v, 4)

	c := newCompaction(opts, icmp, 0, v)
	c.grandparents = []*FileMetaData{
		newFile(1, "a", "b", 1, 2, 1 << 20),
		newFile(2, "c", "d", 3, 4, 1 << 20),
	}
	require.False(t, c.ShouldStopBefore(ikey("aa", 10)))
	require.False(t, c.ShouldStopBefore(ikey("zz", 10)))
}

// TestAddInputDeletions checks the edit a finished classic compaction
// carries: every input file deleted at its own level.
func TestAddInputDeletions(t *testing.T) {
	icmp := testICMP()
	opts := &base.Options{}
	v := newVersion(false)
	growFiles(v, 4)

	c := newCompaction(opts, icmp, 1, v)
	c.Inputs[0] = []*FileMetaData{newFile(10, "a", "c", 1, 2, 1024)}
	c.Inputs[1] = []*FileMetaData{newFile(11, "b", "d", 3, 4, 1024)}
	c.AddInputDeletions()

	require.Len(t, c.Edit.DeletedFiles, 2)
	require.True(t, c.Edit.DeletedFiles[deletedFileEntry{1, 10}])
	require.True(t, c.Edit.DeletedFiles[deletedFileEntry{2, 11}])
}

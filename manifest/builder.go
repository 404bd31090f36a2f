// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/pdlfs/pdlfs-common/base"
)

// levelState tracks the deleted, added and updated files accumulated for
// one level while a sequence of VersionEdits is folded into a Builder.
// Added files are kept in a red-black tree ordered by (Smallest, file
// number) rather than a plain slice, so that SaveTo can merge them against
// the base Version's already-sorted slice in a single pass instead of
// re-sorting an append-only list on every edit.
type levelState struct {
	deleted map[uint64]bool
	added   *redblacktree.Tree
	updated map[uint64]bool
}

func newLevelState(icmp base.InternalKeyComparer) *levelState {
	return &levelState{
		deleted: make(map[uint64]bool),
		added: redblacktree.NewWith(func(a, b interface{}) int {
			fa, fb := a.(*FileMetaData), b.(*FileMetaData)
			if c := icmp.Compare(fa.Smallest, fb.Smallest); c != 0 {
				return c
			}
			switch {
			case fa.Number < fb.Number:
				return -1
			case fa.Number > fb.Number:
				return 1
			default:
				return 0
			}
		}),
		updated: make(map[uint64]bool),
	}
}

// Builder accumulates a sequence of VersionEdits against a base Version,
// producing a new Version once every edit has been applied. It exists
// because a compaction's VersionEdit only names the files that changed:
// reconstructing the full file set for every level on every edit would be
// wasteful when, in the common case, only one or two levels were touched.
type Builder struct {
	icmp      base.InternalKeyComparer
	base      *Version
	levels    []*levelState
	regs      *fileRegistry
	sublevels bool

	// compactPointers records the compaction-pointer overrides the applied
	// edits carried (classic strategy only), for the VersionSet to install
	// alongside the built Version.
	compactPointers []compactPointerEntry

	truncateKey base.InternalKey

	// saved is set once SaveTo has published this Builder's accumulated
	// files into a Version. Close checks it to tell a finished Builder
	// from one abandoned mid-Apply.
	saved bool
}

// NewBuilder returns a Builder that will fold edits on top of base. Callers
// must arrange for Close to run on every exit path (typically via defer),
// so a Builder abandoned before SaveTo never leaks file-registry entries
// for the files it provisionally added.
func NewBuilder(icmp base.InternalKeyComparer, base *Version, regs *fileRegistry, sublevels bool) *Builder {
	b := &Builder{
		icmp:      icmp,
		base:      base,
		levels:    make([]*levelState, len(base.Files)),
		regs:      regs,
		sublevels: sublevels,
	}
	for i := range b.levels {
		b.levels[i] = newLevelState(icmp)
	}
	return b
}

// Close releases any new FileMetaData this Builder registered but never
// published through SaveTo. It is a no-op once SaveTo has run, so it is
// always safe to defer immediately after NewBuilder.
func (b *Builder) Close() {
	if b.saved {
		return
	}
	for _, ls := range b.levels {
		for _, key := range ls.added.Keys() {
			b.regs.removeIf(key.(*FileMetaData))
		}
	}
}

// growLevels extends the per-level state out to n levels.
func (b *Builder) growLevels(n int) {
	for len(b.levels) < n {
		b.levels = append(b.levels, newLevelState(b.icmp))
	}
}

// Apply folds edit's deletions, additions and updates into b. In the
// classic strategy the level vector grows to edit.MaxLevel+2 so the built
// Version always keeps an empty top row as its growth slot; in sublevel
// mode rows grow only as far as the edit actually names, since the
// reorganiser owns the row layout.
func (b *Builder) Apply(edit *VersionEdit) {
	if !b.sublevels {
		b.growLevels(edit.MaxLevel + 2)
		b.compactPointers = append(b.compactPointers, edit.CompactPointers...)
	} else {
		b.growLevels(edit.MaxLevel + 1)
	}

	for entry := range edit.DeletedFiles {
		b.levels[entry.level].deleted[entry.fileNum] = true
	}
	for _, entry := range edit.NewFiles {
		f := entry.meta
		if f.AllowedSeeks == 0 {
			f.AllowedSeeks = allowedSeeksFor(f.Size)
		}
		meta := f
		b.maybeAddFile(entry.level, &meta)
	}
	for _, entry := range edit.UpdatedFiles {
		b.levels[entry.level].updated[entry.fileNum] = true
	}
	if edit.TruncateKey != nil {
		b.truncateKey = edit.TruncateKey
	}
}

func (b *Builder) maybeAddFile(level int, f *FileMetaData) {
	ls := b.levels[level]
	if ls.deleted[f.Number] {
		delete(ls.deleted, f.Number)
	}
	ls.added.Put(f, f)
	b.regs.add(f)
}

// SaveTo merges b's base Version with every accumulated deletion, addition
// and update, producing a freshly populated Version. The result still
// needs Finalize called on it (and, in sublevel mode,
// reorganizeSublevels) before it is fit to install. An edit sequence that
// would leave two files overlapping within a sorted row, or truncate a
// file whose bounds don't actually straddle the truncate key, is a
// corruption error.
func (b *Builder) SaveTo() (*Version, error) {
	v := newVersion(b.sublevels)
	for len(v.Files) < len(b.levels) || len(v.Files) < len(b.base.Files) {
		v.Files = append(v.Files, nil)
	}
	b.growLevels(len(v.Files))

	for level := 0; level < len(b.levels); level++ {
		ls := b.levels[level]
		var baseFiles []*FileMetaData
		if level < len(b.base.Files) {
			baseFiles = b.base.Files[level]
		}
		var added []*FileMetaData
		for _, key := range ls.added.Keys() {
			f := key.(*FileMetaData)
			if ls.deleted[f.Number] {
				// Added by one edit and deleted by a later one.
				b.regs.removeIf(f)
				continue
			}
			added = append(added, f)
		}

		merged := make([]*FileMetaData, 0, len(baseFiles)+len(added))
		ai := 0
		for _, f := range baseFiles {
			for ai < len(added) && b.less(added[ai], f) {
				merged = append(merged, added[ai])
				ai++
			}
			switch {
			case ls.deleted[f.Number]:
				// dropped
			case ls.updated[f.Number]:
				if b.truncateKey == nil ||
					b.icmp.Compare(f.Smallest, b.truncateKey) >= 0 ||
					b.icmp.Compare(f.Largest, b.truncateKey) < 0 {
					return nil, base.ErrCorruption("manifest: file %06d does not straddle truncate key", f.Number)
				}
				truncated := *f
				truncated.Smallest = b.truncateKey.Clone()
				truncated.Updated = true
				merged = append(merged, &truncated)
				b.regs.add(&truncated)
			default:
				merged = append(merged, f)
			}
		}
		for ; ai < len(added); ai++ {
			merged = append(merged, added[ai])
		}
		v.Files[level] = merged

		if level > 0 {
			for i := 1; i < len(merged); i++ {
				if b.icmp.Compare(merged[i-1].Largest, merged[i].Smallest) >= 0 {
					return nil, base.ErrCorruption(
						"manifest: overlapping ranges in level %d: %s vs %s",
						level, merged[i-1], merged[i])
				}
			}
		}
	}

	if !b.sublevels && len(v.Files[len(v.Files)-1]) > 0 {
		return nil, base.ErrCorruption("manifest: highest level is not empty")
	}

	if b.sublevels {
		v.InputPool = append([]sublevelRun(nil), b.base.InputPool...)
		v.OutputPool = append([]sublevelRun(nil), b.base.OutputPool...)
	}

	// Every file landing in v, whether carried over from the base Version
	// or newly added, gains one more holder: v itself. A file shared with
	// the base Version (not deleted, not replaced by a truncated copy)
	// ends up referenced by both Versions until whichever is released
	// first. Re-registering each file here also repairs any registry entry
	// a discarded sibling Builder (a losing Recover candidate) displaced
	// while it was still applying the same file numbers.
	for level := range v.Files {
		for _, f := range v.Files[level] {
			f.Refs++
			b.regs.add(f)
		}
	}
	b.saved = true
	return v, nil
}

func (b *Builder) less(a, c *FileMetaData) bool {
	if cmp := b.icmp.Compare(a.Smallest, c.Smallest); cmp != 0 {
		return cmp < 0
	}
	return a.Number < c.Number
}

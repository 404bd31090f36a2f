// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"container/list"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/pdlfs/pdlfs-common/base"
	"github.com/pdlfs/pdlfs-common/tablecache"
)

// maxMemCompactLevel is the deepest level a memtable flush may be pushed
// to. A classic-mode Version starts with maxMemCompactLevel+1 rows and
// grows whenever an edit names a deeper level, always keeping one empty
// row above the deepest populated one as the next growth slot.
const maxMemCompactLevel = 2

// sublevelRun is a contiguous range of rows, [Base, Base+Count), within a
// Version's Files. In sublevel mode, each level owns two such runs: an
// input pool still being fed by compactions out of the level above, and an
// output pool whose rows are being drained into the level below.
type sublevelRun struct {
	Base  int
	Count int
}

// Version is an immutable snapshot of the set of table files making up a
// database at some point in time. A VersionSet holds a chain of Versions;
// readers take a reference to one and see a consistent view even as
// compactions install newer Versions underneath them.
type Version struct {
	// Files holds one row of files per level (classic strategy) or per
	// sublevel (sublevel strategy). Rows above 0 are ordered by Smallest
	// and non-overlapping; the Builder keeps row 0 in the same (Smallest,
	// file number) order, but its files' ranges may overlap.
	Files [][]*FileMetaData

	// InputPool and OutputPool partition Files' rows into per-level pools
	// when the sublevel strategy is enabled; both are empty otherwise.
	// They are always the same length, their runs tile Files contiguously,
	// and level 0's two runs are the same single row (0, 1).
	InputPool  []sublevelRun
	OutputPool []sublevelRun

	CompactionScore float64
	CompactionLevel int

	FileToCompact      *FileMetaData
	FileToCompactLevel int

	refs int32
	elem *list.Element
}

// newVersion returns an empty Version. In sublevel mode it starts with two
// rows and the pool layout the reorganiser maintains from then on: level 0
// owns row 0 as both its input and output pool, and level 1 starts with
// row 1 as input and an empty output pool.
func newVersion(sublevelsEnabled bool) *Version {
	v := &Version{
		CompactionScore:    -1,
		CompactionLevel:    -1,
		FileToCompactLevel: -1,
	}
	if sublevelsEnabled {
		v.Files = make([][]*FileMetaData, 2)
		v.InputPool = []sublevelRun{{Base: 0, Count: 1}, {Base: 1, Count: 1}}
		v.OutputPool = []sublevelRun{{Base: 0, Count: 1}, {Base: 2, Count: 0}}
	} else {
		v.Files = make([][]*FileMetaData, maxMemCompactLevel+1)
	}
	return v
}

// NumLevels returns the number of rows in v: levels in the classic
// strategy, sublevels in the sublevel strategy.
func (v *Version) NumLevels() int { return len(v.Files) }

// Ref increments v's reference count, pinning every file it names against
// deletion.
func (v *Version) Ref() {
	atomic.AddInt32(&v.refs, 1)
}

// Unref decrements v's reference count and reports whether this was the
// final reference, in which case the caller is responsible for removing v
// from the live-version list and releasing every file it alone still
// pinned.
func (v *Version) Unref() bool {
	return atomic.AddInt32(&v.refs, -1) == 0
}

// FindFile returns the index of the first file at level whose Largest key
// is at least key, following the same binary search every row above 0
// relies on to bound a point lookup or range scan.
func FindFile(icmp base.InternalKeyComparer, files []*FileMetaData, key base.InternalKey) int {
	return sort.Search(len(files), func(i int) bool {
		return icmp.Compare(files[i].Largest, key) >= 0
	})
}

// GetStats reports which file a Get charged a wasted seek to, if any: the
// first file probed, whenever the probe had to continue past it. The
// caller applies it with UpdateStats under the VersionSet mutex.
type GetStats struct {
	SeekFile      *FileMetaData
	SeekFileLevel int
}

// Get resolves a point lookup for key against v: level 0 is probed
// newest-file-first (by file number) since its ranges may overlap, and
// every row above it is probed via a single binary search, since files
// there are disjoint and sorted. The first table reporting anything other
// than SaveNotFound ends the search.
func (v *Version) Get(icmp base.InternalKeyComparer, cache tablecache.Cache, ro tablecache.ReadOptions, key base.InternalKey) (found bool, value []byte, deleted bool, stats GetStats, err error) {
	ukey := key.UserKey()

	var lastFileRead *FileMetaData
	var lastFileReadLevel int

	result := tablecache.SaveNotFound
	var resultValue []byte

	saver := tablecache.SaverFunc(func(kind tablecache.SaveKind, k base.InternalKey, val []byte) {
		if icmp.UserKeyComparer.Compare(k.UserKey(), ukey) != 0 {
			return
		}
		result = kind
		if kind == tablecache.SaveFound {
			resultValue = append([]byte(nil), val...)
		}
	})

	probe := func(f *FileMetaData, level int) error {
		if lastFileRead != nil && stats.SeekFile == nil {
			// A charge to more than one file would double-bill a single
			// lookup; only the first file probed pays.
			stats.SeekFile = lastFileRead
			stats.SeekFileLevel = lastFileReadLevel
		}
		lastFileRead, lastFileReadLevel = f, level
		return cache.Get(ro, f.Number, f.Size, f.SeqOff, key, saver)
	}

	for level := 0; level < len(v.Files); level++ {
		files := v.Files[level]
		if len(files) == 0 {
			continue
		}
		if level == 0 {
			var overlapping []*FileMetaData
			for _, f := range files {
				if icmp.UserKeyComparer.Compare(f.Smallest.UserKey(), ukey) <= 0 &&
					icmp.UserKeyComparer.Compare(f.Largest.UserKey(), ukey) >= 0 {
					overlapping = append(overlapping, f)
				}
			}
			sort.Slice(overlapping, func(i, j int) bool {
				return overlapping[i].Number > overlapping[j].Number
			})
			for _, f := range overlapping {
				if err := probe(f, level); err != nil {
					return false, nil, false, stats, err
				}
				if result != tablecache.SaveNotFound {
					break
				}
			}
		} else {
			i := FindFile(icmp, files, key)
			if i < len(files) {
				f := files[i]
				if icmp.UserKeyComparer.Compare(ukey, f.Smallest.UserKey()) >= 0 {
					if err := probe(f, level); err != nil {
						return false, nil, false, stats, err
					}
				}
			}
		}
		if result != tablecache.SaveNotFound {
			break
		}
	}

	switch result {
	case tablecache.SaveFound:
		return true, resultValue, false, stats, nil
	case tablecache.SaveDeleted:
		return false, nil, true, stats, nil
	case tablecache.SaveCorrupt:
		return false, nil, false, stats, base.ErrCorruption("manifest: corrupt entry for key %q", ukey)
	default:
		return false, nil, false, stats, nil
	}
}

// UpdateStats charges the wasted seek recorded in stats, if any, against
// its file's AllowedSeeks budget, and reports whether that file just
// became the Version's seek-compaction candidate. Must be called with the
// VersionSet mutex held.
func (v *Version) UpdateStats(stats GetStats) bool {
	f := stats.SeekFile
	if f == nil {
		return false
	}
	f.AllowedSeeks--
	if f.AllowedSeeks <= 0 && v.FileToCompact == nil {
		v.FileToCompact = f
		v.FileToCompactLevel = stats.SeekFileLevel
		return true
	}
	return false
}

// GetOverlappingInputs returns every file at level overlapping
// [smallest, largest] in user-key space. For level 0, whose files may
// overlap each other, the search restarts from the beginning whenever
// matching a file widens the requested range, so that a file only
// partially covered by the original bounds is still picked up in full.
func (v *Version) GetOverlappingInputs(icmp base.InternalKeyComparer, level int, smallest, largest base.InternalKey) []*FileMetaData {
	if level >= len(v.Files) {
		return nil
	}
	var inputs []*FileMetaData
	files := v.Files[level]

	for i := 0; i < len(files); i++ {
		f := files[i]
		fstart, flimit := f.Smallest, f.Largest
		if smallest != nil && icmp.UserKeyComparer.Compare(flimit.UserKey(), smallest.UserKey()) < 0 {
			continue
		}
		if largest != nil && icmp.UserKeyComparer.Compare(fstart.UserKey(), largest.UserKey()) > 0 {
			continue
		}
		inputs = append(inputs, f)
		if level == 0 {
			if smallest != nil && icmp.UserKeyComparer.Compare(fstart.UserKey(), smallest.UserKey()) < 0 {
				smallest = fstart
				inputs = nil
				i = -1
				continue
			}
			if largest != nil && icmp.UserKeyComparer.Compare(flimit.UserKey(), largest.UserKey()) > 0 {
				largest = flimit
				inputs = nil
				i = -1
				continue
			}
		}
	}
	return inputs
}

// Finalize computes the level most in need of compaction and records it in
// CompactionLevel/CompactionScore.
//
// In classic mode, level 0's score is its file count over the configured
// trigger (file count, not byte size, bounds level 0's read amplification
// directly); every other level's score is its total byte size over its
// budget, and the loop stops one row short of the end since the last row
// is the reserved empty growth slot.
//
// In sublevel mode the loop runs over the input-pool slice instead,
// likewise stopping one level short of its end; a level's score there is
// its combined input-pool plus output-pool byte total over budget.
func (v *Version) Finalize(opts *base.Options) {
	bestLevel, bestScore := -1, -1.0

	if len(v.InputPool) > 0 {
		for level := 0; level < len(v.InputPool)-1; level++ {
			var score float64
			if level == 0 {
				score = float64(len(v.Files[0])) / float64(opts.GetL0CompactionTrigger())
			} else {
				bytes := poolBytes(v, v.InputPool[level]) + poolBytes(v, v.OutputPool[level])
				score = float64(bytes) / maxBytesForLevel(opts, level)
			}
			if score > bestScore {
				bestScore, bestLevel = score, level
			}
		}
	} else {
		for level := 0; level < len(v.Files)-1; level++ {
			var score float64
			if level == 0 {
				score = float64(len(v.Files[0])) / float64(opts.GetL0CompactionTrigger())
			} else {
				bytes := levelBytes(v.Files[level])
				score = float64(bytes) / maxBytesForLevel(opts, level)
			}
			if score > bestScore {
				bestScore, bestLevel = score, level
			}
		}
	}

	v.CompactionLevel = bestLevel
	v.CompactionScore = bestScore
}

func levelBytes(files []*FileMetaData) uint64 {
	var total uint64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// maxBytesForLevel returns level's byte budget:
// l1_compaction_trigger * table_file_size at level 1, scaled up by
// level_factor per level beyond it. Level 0's result is unused; level 0 is
// scored by file count.
func maxBytesForLevel(opts *base.Options, level int) float64 {
	result := float64(opts.GetL1CompactionTrigger() * opts.GetTableFileSize())
	for level > 1 {
		result *= float64(opts.GetLevelFactor())
		level--
	}
	return result
}

// DebugString renders the file counts and sizes of every non-empty row,
// for log lines and test failure messages.
func (v *Version) DebugString() string {
	s := ""
	for level, files := range v.Files {
		if len(files) == 0 {
			continue
		}
		s += fmt.Sprintf("level %d: %d files, %d bytes\n", level, len(files), levelBytes(files))
	}
	return s
}

// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"github.com/pdlfs/pdlfs-common/base"
)

// maxGrandParentOverlapBytes bounds how much grandparent (level+2) data a
// single output file may overlap before ShouldStopBefore cuts it, and how
// much a trivially moved file may overlap before the move is refused.
func maxGrandParentOverlapBytes(opts *base.Options) int64 {
	return opts.GetLevelFactor() * opts.GetTableFileSize()
}

// expandedCompactionByteSizeLimit bounds how far setupOtherInputs is
// willing to widen a compaction's input set before giving up and taking
// the unexpanded inputs instead, so a single compaction cannot balloon
// into one that rewrites the bulk of a level.
func expandedCompactionByteSizeLimit(opts *base.Options) int64 {
	return (2*(opts.GetLevelFactor()+2) + 1) * opts.GetTableFileSize()
}

// Compaction describes one merge of input files into a run of new files.
// It is built by PickCompaction and consumed by whatever code drives the
// actual key-merging; this package's job ends at deciding inputs and
// bookkeeping the resulting VersionEdit.
//
// In the classic strategy, Inputs has exactly two rows: the chosen files
// at Level and the overlapping files at Level+1. In the sublevel strategy,
// Inputs has one row per sublevel of Level's output pool, and
// BaseInputSublevel/OutputSublevel name the rows involved.
type Compaction struct {
	Level   int
	Inputs  [][]*FileMetaData
	Edit    VersionEdit
	Version *Version

	// BaseInputSublevel is the first row of Level's output pool, and
	// OutputSublevel the row new files land in (the top of Level+1's input
	// pool). Both are -1 in the classic strategy.
	BaseInputSublevel int
	OutputSublevel    int

	maxOutputFileSize int64
	maxGPOverlapBytes int64

	grandparents     []*FileMetaData
	grandparentIndex int
	seenKey          bool
	overlappedBytes  int64

	// levelPtrs holds one cursor per level, advanced by IsBaseLevelForKey.
	// Valid only when the caller feeds it keys in ascending order, since a
	// cursor only ever moves forward. Classic strategy only.
	levelPtrs []int

	opts *base.Options
	icmp base.InternalKeyComparer
}

func newCompaction(opts *base.Options, icmp base.InternalKeyComparer, level int, v *Version) *Compaction {
	c := &Compaction{
		Level:             level,
		Version:           v,
		BaseInputSublevel: -1,
		OutputSublevel:    -1,
		maxOutputFileSize: opts.GetTableFileSize(),
		maxGPOverlapBytes: maxGrandParentOverlapBytes(opts),
		opts:              opts,
		icmp:              icmp,
	}
	if opts.EnableSublevel {
		c.BaseInputSublevel = v.OutputPool[level].Base
		if level+1 < len(v.InputPool) {
			c.OutputSublevel = v.InputPool[level+1].Base
		}
		c.Inputs = make([][]*FileMetaData, v.OutputPool[level].Count)
	} else {
		c.Inputs = make([][]*FileMetaData, 2)
		c.levelPtrs = make([]int, len(v.Files))
	}
	return c
}

// MaxOutputFileSize returns the target size for files this compaction
// produces.
func (c *Compaction) MaxOutputFileSize() int64 { return c.maxOutputFileSize }

// IsBaseLevelForKey reports whether no level beyond Level+1 holds a file
// whose range contains userKey, classic-strategy only. A true result means
// the compaction may drop a tombstone for userKey outright, since nothing
// below will ever resurface an older value for it.
func (c *Compaction) IsBaseLevelForKey(userKey []byte) bool {
	if c.levelPtrs == nil {
		return true
	}
	ucmp := c.icmp.UserKeyComparer
	for level := c.Level + 2; level < len(c.Version.Files); level++ {
		files := c.Version.Files[level]
		for c.levelPtrs[level] < len(files) {
			f := files[c.levelPtrs[level]]
			if ucmp.Compare(userKey, f.Largest.UserKey()) <= 0 {
				if ucmp.Compare(userKey, f.Smallest.UserKey()) >= 0 {
					return false
				}
				break
			}
			c.levelPtrs[level]++
		}
	}
	return true
}

// IsTrivialMove reports whether c can be satisfied by re-pointing a single
// input file at the output level without rewriting any bytes: exactly one
// input file, no overlapping file at the output level, and (classic
// strategy, when output cutting is enabled) not so much grandparent
// overlap that the move would seed an expensive future merge.
func (c *Compaction) IsTrivialMove() bool {
	if c.opts.EnableSublevel {
		return c.TotalNumInputFiles() == 1
	}
	if len(c.Inputs[0]) != 1 || len(c.Inputs[1]) != 0 {
		return false
	}
	return !c.opts.EnableShouldStopBefore || c.grandparentBytes() <= c.maxGPOverlapBytes
}

func (c *Compaction) grandparentBytes() int64 {
	var total int64
	for _, f := range c.grandparents {
		total += int64(f.Size)
	}
	return total
}

// TotalNumInputFiles returns the number of files across every input row
// this compaction reads from.
func (c *Compaction) TotalNumInputFiles() int {
	n := 0
	for _, files := range c.Inputs {
		n += len(files)
	}
	return n
}

// TheOnlyFile returns the single input file of a trivial move.
func (c *Compaction) TheOnlyFile() *FileMetaData {
	for _, files := range c.Inputs {
		if len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

// AddInputDeletions records, in c.Edit, that every input file is removed
// from the file set once this compaction's output is installed.
func (c *Compaction) AddInputDeletions() {
	inputBase := c.Level
	if c.BaseInputSublevel >= 0 {
		inputBase = c.BaseInputSublevel
	}
	for which := range c.Inputs {
		for _, f := range c.Inputs[which] {
			c.Edit.DeleteFile(inputBase+which, f.Number)
		}
	}
}

// AddInputDeletionsOrUpdates is AddInputDeletions' counterpart for a
// sublevel compaction that stopped at truncateKey instead of consuming its
// whole input range: a file wholly below the key is deleted outright,
// while a file straddling it is marked updated, which carries it forward
// with its Smallest bound raised to the key. Rows above 0 are disjoint and
// sorted, so their scan stops at the first file not wholly consumed.
func (c *Compaction) AddInputDeletionsOrUpdates(truncateKey base.InternalKey) {
	c.Edit.TruncateKey = truncateKey
	for which := range c.Inputs {
		for _, f := range c.Inputs[which] {
			if c.icmp.Compare(f.Largest, truncateKey) < 0 {
				c.Edit.DeleteFile(c.BaseInputSublevel+which, f.Number)
				continue
			}
			if c.icmp.Compare(f.Smallest, truncateKey) < 0 {
				c.Edit.UpdateFile(c.BaseInputSublevel+which, f.Number)
			}
			if c.Level > 0 {
				break
			}
		}
	}
}

// ShouldStopBefore reports whether the output file currently being built
// should be cut before appending key, because key has moved past enough
// grandparent (Level+2) files that continuing would let their total
// overlap with the new output exceed the configured budget.
func (c *Compaction) ShouldStopBefore(key base.InternalKey) bool {
	if !c.opts.EnableShouldStopBefore || c.opts.EnableSublevel {
		return false
	}
	for c.grandparentIndex < len(c.grandparents) &&
		c.icmp.Compare(key, c.grandparents[c.grandparentIndex].Largest) > 0 {
		if c.seenKey {
			c.overlappedBytes += int64(c.grandparents[c.grandparentIndex].Size)
		}
		c.grandparentIndex++
	}
	c.seenKey = true

	if c.overlappedBytes > c.maxGPOverlapBytes {
		c.overlappedBytes = 0
		return true
	}
	return false
}

// PickCompaction chooses the next compaction to run against the current
// Version, or returns nil if nothing needs compacting. A level whose size
// (or level-0 file count) is over budget takes priority over a file whose
// seek budget ran out, since size compactions are what keep the shape of
// the tree bounded.
//
// Classic selection is round-robin within the chosen level: the first file
// past compact_pointer[level], wrapping to the first file of the level
// once the cursor runs off the end.
func (vs *VersionSet) PickCompaction() (*Compaction, error) {
	v := vs.current
	sizeCompaction := v.CompactionScore >= 1
	// In sublevel mode FileToCompactLevel is a row index, not a level;
	// only size compactions drive that strategy.
	seekCompaction := v.FileToCompact != nil && !vs.opts.EnableSublevel

	var c *Compaction
	switch {
	case sizeCompaction:
		level := v.CompactionLevel
		c = newCompaction(vs.opts, vs.icmp, level, v)

		if vs.opts.EnableSublevel {
			if err := vs.setupSublevelInputs(level, c); err != nil {
				return nil, err
			}
			return c, nil
		}

		for _, f := range v.Files[level] {
			if vs.compactPointerAt(level) == nil || vs.icmp.Compare(f.Largest, vs.compactPointerAt(level)) > 0 {
				c.Inputs[0] = []*FileMetaData{f}
				break
			}
		}
		if len(c.Inputs[0]) == 0 && len(v.Files[level]) > 0 {
			// Wrap around to the beginning of the key space.
			c.Inputs[0] = []*FileMetaData{v.Files[level][0]}
		}
	case seekCompaction:
		level := v.FileToCompactLevel
		c = newCompaction(vs.opts, vs.icmp, level, v)
		c.Inputs[0] = []*FileMetaData{v.FileToCompact}
	default:
		return nil, nil
	}

	// Files in level 0 may overlap each other, so pick up all of them
	// touching the chosen file's range; the widened set replaces the
	// original pick.
	if c.Level == 0 {
		smallest, largest := getRange(vs.icmp, c.Inputs[0])
		c.Inputs[0] = v.GetOverlappingInputs(vs.icmp, 0, smallest, largest)
	}

	vs.setupOtherInputs(c)
	return c, nil
}

// setupOtherInputs chooses c's level+1 inputs (every file overlapping the
// key range of c.Inputs[0]) and then tries to widen the level input set
// for free: if expanding it to cover every level file touching the
// level+1 input range doesn't also pull in more level+1 files, and the
// expanded total stays under budget, the wider input set is adopted, since
// a bigger compaction now is cheaper than a second compaction over the
// files left behind.
func (vs *VersionSet) setupOtherInputs(c *Compaction) {
	level := c.Level
	smallest, largest := getRange(vs.icmp, c.Inputs[0])
	c.Inputs[1] = c.Version.GetOverlappingInputs(vs.icmp, level+1, smallest, largest)

	allStart, allLimit := getRange2(vs.icmp, c.Inputs[0], c.Inputs[1])

	if len(c.Inputs[1]) > 0 {
		expanded0 := c.Version.GetOverlappingInputs(vs.icmp, level, allStart, allLimit)
		inputs0Size := inputBytes(c.Inputs[0])
		inputs1Size := inputBytes(c.Inputs[1])
		expanded0Size := inputBytes(expanded0)
		if len(expanded0) > len(c.Inputs[0]) &&
			inputs1Size+expanded0Size < expandedCompactionByteSizeLimit(vs.opts) {
			newStart, newLimit := getRange(vs.icmp, expanded0)
			expanded1 := c.Version.GetOverlappingInputs(vs.icmp, level+1, newStart, newLimit)
			if len(expanded1) == len(c.Inputs[1]) {
				vs.opts.GetLogger().Infof("manifest: expanding@%d %d+%d (%d+%d bytes) to %d+%d (%d+%d bytes)",
					level, len(c.Inputs[0]), len(c.Inputs[1]), inputs0Size, inputs1Size,
					len(expanded0), len(expanded1), expanded0Size, inputs1Size)
				smallest, largest = newStart, newLimit
				c.Inputs[0] = expanded0
				c.Inputs[1] = expanded1
				allStart, allLimit = getRange2(vs.icmp, c.Inputs[0], c.Inputs[1])
			}
		}
	}

	// Compute the set of grandparent (level+2) files overlapping this
	// compaction, for output-cutting decisions.
	if level+2 < len(c.Version.Files) {
		c.grandparents = c.Version.GetOverlappingInputs(vs.icmp, level+2, allStart, allLimit)
	}

	// compact_pointer advances here, before the caller ever appends the
	// resulting edit to the MANIFEST, so a failed compaction still leaves
	// the next PickCompaction starting past this key range.
	vs.setCompactPointer(level, largest.Clone())
	c.Edit.CompactPointers = append(c.Edit.CompactPointers, compactPointerEntry{level, largest.Clone()})
}

func getRange(icmp base.InternalKeyComparer, files []*FileMetaData) (smallest, largest base.InternalKey) {
	for i, f := range files {
		if i == 0 {
			smallest, largest = f.Smallest, f.Largest
			continue
		}
		if icmp.Compare(f.Smallest, smallest) < 0 {
			smallest = f.Smallest
		}
		if icmp.Compare(f.Largest, largest) > 0 {
			largest = f.Largest
		}
	}
	return smallest, largest
}

func getRange2(icmp base.InternalKeyComparer, a, b []*FileMetaData) (smallest, largest base.InternalKey) {
	all := make([]*FileMetaData, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return getRange(icmp, all)
}

func inputBytes(files []*FileMetaData) int64 {
	var total int64
	for _, f := range files {
		total += int64(f.Size)
	}
	return total
}

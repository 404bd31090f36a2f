// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import "github.com/pdlfs/pdlfs-common/base"

// setupSublevelInputs picks c's inputs for a sublevel compaction of level:
// the file with the smallest Smallest key across the level's output-pool
// rows anchors the range, the range is widened until no row extends it any
// further, and each row's files within the final bounds become that row's
// input list.
func (vs *VersionSet) setupSublevelInputs(level int, c *Compaction) error {
	v := c.Version
	out := v.OutputPool[level]
	if out.Count == 0 {
		return base.ErrCorruption("manifest: empty output pool at level %d", level)
	}
	if level+1 >= len(v.InputPool) || v.InputPool[level+1].Count == 0 {
		return base.ErrCorruption("manifest: no output sublevel below level %d", level)
	}

	// Anchor on the leftmost first file across the pool's rows.
	var anchor *FileMetaData
	anchorRow := -1
	for i := 0; i < out.Count; i++ {
		files := v.Files[out.Base+i]
		if len(files) > 0 && (anchor == nil || vs.icmp.Compare(files[0].Smallest, anchor.Smallest) < 0) {
			anchor = files[0]
			anchorRow = i
		}
	}
	if anchor == nil {
		return base.ErrCorruption("manifest: output pool at level %d has no files", level)
	}
	leftBound, rightBound := anchor.Smallest, anchor.Largest

	if level > 0 {
		// Widen rightBound across the pool until a full pass over every
		// row extends nothing. Rows are disjoint and sorted, so each row
		// keeps a forward-only cursor: files wholly below the current
		// right bound are skipped, and a file starting at or below it
		// drags the bound out to its Largest.
		ucmp := vs.icmp.UserKeyComparer
		nextVisit := make([]int, out.Count)
		nextVisit[anchorRow] = 1
		for changed := true; changed; {
			changed = false
			for i := range nextVisit {
				files := v.Files[out.Base+i]
				rightKey := rightBound.UserKey()
				for nextVisit[i] < len(files) &&
					ucmp.Compare(files[nextVisit[i]].Largest.UserKey(), rightKey) <= 0 {
					nextVisit[i]++
				}
				if nextVisit[i] == len(files) {
					continue
				}
				f := files[nextVisit[i]]
				if ucmp.Compare(f.Smallest.UserKey(), rightKey) <= 0 {
					rightBound = f.Largest
					changed = true
					nextVisit[i]++
				}
			}
		}
	}

	for i := range c.Inputs {
		c.Inputs[i] = v.GetOverlappingInputs(vs.icmp, out.Base+i, leftBound, rightBound)
	}
	return nil
}

// reorganizeSublevels rebuilds v's rows and pools after an edit has
// changed the file set, restoring the layout the sublevel planner relies
// on:
//
//   - Emptied rows are dropped, except an input pool always keeps at least
//     one row.
//   - A level whose output pool just drained, with work waiting in the
//     level below, gets a fresh empty row pushed onto the top of the
//     level below's input pool: one full round of this level's compaction
//     has completed.
//   - A level over its byte budget with an empty output pool moves every
//     input row but its top one into the output pool, duplicating a sole
//     input row first so both pools stay non-empty.
//   - A non-empty output pool at the last level grows a fresh level above
//     it to compact into.
//
// The layout being rebuilt from is v's own pools, inherited from the base
// Version by Builder.SaveTo. The originating implementation treats a
// violated pool-accounting invariant here as fatal and aborts the process;
// returning a corruption error instead lets a caller report the failure
// without taking the whole database down.
func (vs *VersionSet) reorganizeSublevels(v *Version, edit *VersionEdit) error {
	oldIn, oldOut := v.InputPool, v.OutputPool
	if len(oldIn) != len(oldOut) {
		return base.ErrCorruption("manifest: sublevel pools diverged: %d input levels, %d output levels", len(oldIn), len(oldOut))
	}
	if last := oldOut[len(oldOut)-1]; last.Base+last.Count != len(v.Files) {
		return base.ErrCorruption("manifest: sublevel pools cover %d of %d rows", last.Base+last.Count, len(v.Files))
	}
	files := v.Files

	newFiles := make([][]*FileMetaData, 0, len(files)+1)
	newIn := make([]sublevelRun, 0, len(oldIn)+1)
	newOut := make([]sublevelRun, 0, len(oldOut)+1)

	// Set when level i's output pool drains; consumed by level i+1, which
	// opens a fresh input row for the next round of level-i output.
	newInputSublevel := false

	for level := 0; level < len(oldIn); level++ {
		if level == 0 {
			newFiles = append(newFiles, files[0])
			newIn = append(newIn, sublevelRun{Base: 0, Count: 1})
			newOut = append(newOut, sublevelRun{Base: 0, Count: 1})
			if edit != nil {
				for df := range edit.DeletedFiles {
					if df.level == 0 {
						// The edit consumed level-0 files, so a round of
						// level-0 compaction just finished.
						newInputSublevel = true
						break
					}
				}
			}
			continue
		}

		rowBase := len(newFiles)
		var inputPoolBytes uint64
		first := true
		if newInputSublevel {
			newFiles = append(newFiles, nil)
			first = false
		}
		for i := 0; i < oldIn[level].Count; i++ {
			row := oldIn[level].Base + i
			if row >= len(files) {
				return base.ErrCorruption("manifest: input pool at level %d names row %d of %d", level, row, len(files))
			}
			if first || len(files[row]) > 0 {
				inputPoolBytes += levelBytes(files[row])
				newFiles = append(newFiles, files[row])
			}
			first = false
		}
		if first {
			return base.ErrCorruption("manifest: input pool at level %d has no rows", level)
		}
		newIn = append(newIn, sublevelRun{Base: rowBase, Count: len(newFiles) - rowBase})

		newInputSublevel = false
		rowBase = len(newFiles)
		for i := 0; i < oldOut[level].Count; i++ {
			row := oldOut[level].Base + i
			if row >= len(files) {
				return base.ErrCorruption("manifest: output pool at level %d names row %d of %d", level, row, len(files))
			}
			if len(files[row]) > 0 {
				newFiles = append(newFiles, files[row])
			}
		}
		length := len(newFiles) - rowBase
		if length == 0 && level+1 < len(oldIn) && oldIn[level+1].Count > 0 {
			newInputSublevel = true
		}

		if length == 0 && float64(inputPoolBytes) >= maxBytesForLevel(vs.opts, level)-1 {
			// Over budget with nothing draining: split the input pool so
			// everything but the top row becomes the new output pool.
			if newIn[level].Count == 1 {
				last := len(newFiles) - 1
				if newIn[level].Base != last {
					return base.ErrCorruption("manifest: sublevel row accounting diverged at level %d", level)
				}
				newFiles = append(newFiles, newFiles[last])
				newFiles[last] = nil
				newIn[level].Count = 2
			}
			length = newIn[level].Count - 1
			if length == 0 {
				return base.ErrCorruption("manifest: cannot split single-row input pool at level %d", level)
			}
			newIn[level].Count = 1
			newOut = append(newOut, sublevelRun{Base: newIn[level].Base + 1, Count: length})
		} else {
			newOut = append(newOut, sublevelRun{Base: rowBase, Count: length})
		}

		// A level still scoring >= 1 with an empty output pool would make
		// the next PickCompaction select it and find nothing to read.
		if newOut[level].Count == 0 {
			total := poolBytesIn(newFiles, newIn[level]) + poolBytesIn(newFiles, newOut[level])
			if float64(total)/maxBytesForLevel(vs.opts, level) >= 1 {
				return base.ErrCorruption("manifest: level %d over budget with an empty output pool", level)
			}
		}
	}

	if newOut[len(newOut)-1].Count > 0 {
		newFiles = append(newFiles, nil)
		newIn = append(newIn, sublevelRun{Base: len(newFiles) - 1, Count: 1})
		newOut = append(newOut, sublevelRun{Base: len(newFiles), Count: 0})
	}
	if last := newOut[len(newOut)-1]; last.Count != 0 || last.Base != len(newFiles) {
		return base.ErrCorruption("manifest: sublevel reorganisation left a malformed top level")
	}

	v.Files = newFiles
	v.InputPool = newIn
	v.OutputPool = newOut
	return nil
}

func poolBytes(v *Version, run sublevelRun) uint64 {
	return poolBytesIn(v.Files, run)
}

func poolBytesIn(files [][]*FileMetaData, run sublevelRun) uint64 {
	var total uint64
	for row := run.Base; row < run.Base+run.Count; row++ {
		if row < len(files) {
			total += levelBytes(files[row])
		}
	}
	return total
}

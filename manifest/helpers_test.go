// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"github.com/pdlfs/pdlfs-common/base"
)

func testICMP() base.InternalKeyComparer {
	return base.InternalKeyComparer{UserKeyComparer: base.DefaultComparer}
}

// ikey builds an internal key for s at the given sequence number, always a
// Set, since none of these tests exercise tombstones directly.
func ikey(s string, seqNum uint64) base.InternalKey {
	return base.MakeInternalKey(nil, []byte(s), base.InternalKeyKindSet, seqNum)
}

// growFiles appends empty rows until v holds at least rows of them, so a
// test can populate deeper levels than a fresh Version starts with.
func growFiles(v *Version, rows int) {
	for len(v.Files) < rows {
		v.Files = append(v.Files, nil)
	}
}

// newFile returns a FileMetaData spanning [smallest, largest] at the given
// sequence numbers, sized so AllowedSeeks lands at the 100-seek floor unless
// size is large enough to push it higher.
func newFile(number uint64, smallest, largest string, smallestSeq, largestSeq uint64, size uint64) *FileMetaData {
	return &FileMetaData{
		Number:       number,
		Size:         size,
		Smallest:     ikey(smallest, smallestSeq),
		Largest:      ikey(largest, largestSeq),
		AllowedSeeks: allowedSeeksFor(size),
	}
}

// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdlfs/pdlfs-common/tablecache/memcache"
)

// TestMakeInputIterator checks the compaction read path: overlapping
// level-0 inputs and a disjoint level-1 run merge into one ascending
// sequence covering every input entry.
func TestMakeInputIterator(t *testing.T) {
	icmp := testICMP()
	vs := newTestVersionSet(t, nil)
	cache := memcache.New(icmp)
	vs.cache = cache

	l0a := newFile(3, "a", "m", 5, 6, 1024)
	l0b := newFile(4, "c", "p", 7, 8, 1024)
	l1a := newFile(1, "a", "f", 1, 2, 1024)
	l1b := newFile(2, "g", "z", 3, 4, 1024)

	cache.AddFile(3, []memcache.Entry{
		{Key: ikey("a", 5), Value: []byte("a5")},
		{Key: ikey("m", 6), Value: []byte("m6")},
	})
	cache.AddFile(4, []memcache.Entry{
		{Key: ikey("c", 7), Value: []byte("c7")},
		{Key: ikey("p", 8), Value: []byte("p8")},
	})
	cache.AddFile(1, []memcache.Entry{
		{Key: ikey("a", 1), Value: []byte("a1")},
		{Key: ikey("f", 2), Value: []byte("f2")},
	})
	cache.AddFile(2, []memcache.Entry{
		{Key: ikey("g", 3), Value: []byte("g3")},
		{Key: ikey("z", 4), Value: []byte("z4")},
	})

	v := newVersion(false)
	v.Files[0] = []*FileMetaData{l0a, l0b}
	v.Files[1] = []*FileMetaData{l1a, l1b}

	c := newCompaction(vs.opts, icmp, 0, v)
	c.Inputs[0] = []*FileMetaData{l0a, l0b}
	c.Inputs[1] = []*FileMetaData{l1a, l1b}

	it := vs.MakeInputIterator(c)
	var users []string
	var prev []byte
	for it.Next() {
		k := it.Key()
		if prev != nil {
			require.LessOrEqual(t, icmp.Compare(prev, k), 0, "keys out of order")
		}
		prev = append(prev[:0], k...)
		users = append(users, string(k.UserKey()))
	}
	require.NoError(t, it.Close())

	// Every input entry appears exactly once; "a" twice (one per file),
	// newest first.
	require.Equal(t, []string{"a", "a", "c", "f", "g", "m", "p", "z"}, users)
}

// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memcache implements an in-memory tablecache.Cache test double.
// It has no notion of blocks, compression or an on-disk format: a "table"
// is just a sorted slice of internal key/value pairs registered directly by
// a test or by cmd/manifestdump when no real store is attached.
package memcache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/pdlfs/pdlfs-common/base"
	"github.com/pdlfs/pdlfs-common/tablecache"
)

// Entry is one internal key/value pair belonging to a registered table.
type Entry struct {
	Key   base.InternalKey
	Value []byte
}

type table struct {
	entries []Entry // sorted by icmp
	index   map[uint64]int
}

// Cache is an in-memory tablecache.Cache. The zero value is not usable; use
// New. Safe for concurrent use, matching the Cache interface's contract.
type Cache struct {
	icmp base.InternalKeyComparer

	mu     sync.RWMutex
	tables map[uint64]*table
}

// New returns an empty Cache ordering entries with icmp.
func New(icmp base.InternalKeyComparer) *Cache {
	return &Cache{icmp: icmp, tables: make(map[uint64]*table)}
}

// hashKey folds a file number and a user key into one bucket key for
// the table's point-lookup shortcut index.
func hashKey(fileNum uint64, ukey []byte) uint64 {
	d := xxhash.New()
	var b [8]byte
	for i := range b {
		b[i] = byte(fileNum >> (8 * i))
	}
	d.Write(b[:])
	d.Write(ukey)
	return d.Sum64()
}

// AddFile registers fileNum as a table containing entries, which need not
// arrive sorted: AddFile sorts and indexes them internally. Calling AddFile
// again for the same fileNum replaces its contents.
func (c *Cache) AddFile(fileNum uint64, entries []Entry) {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return c.icmp.Compare(sorted[i].Key, sorted[j].Key) < 0
	})
	idx := make(map[uint64]int, len(sorted))
	for i, e := range sorted {
		h := hashKey(fileNum, e.Key.UserKey())
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	c.mu.Lock()
	c.tables[fileNum] = &table{entries: sorted, index: idx}
	c.mu.Unlock()
}

// Get implements tablecache.Cache.
func (c *Cache) Get(ro tablecache.ReadOptions, fileNum uint64, fileSize uint64, seqOff uint64, key base.InternalKey, saver tablecache.Saver) error {
	c.mu.RLock()
	t, ok := c.tables[fileNum]
	c.mu.RUnlock()
	if !ok {
		return base.ErrIOError("get", "memcache", errNoSuchFile(fileNum))
	}

	ukey := key.UserKey()
	// The index maps a hashed user key to its newest entry. A miss proves
	// the user key is absent (a present key always claims its bucket, even
	// when a colliding key got there first and owns the stored position).
	i, hit := t.index[hashKey(fileNum, ukey)]
	switch {
	case !hit:
		saver.Save(tablecache.SaveNotFound, nil, nil)
		return nil
	case c.icmp.UserKeyComparer.Compare(t.entries[i].Key.UserKey(), ukey) != 0:
		// Bucket collision: the stored position belongs to another user
		// key. Fall back to a binary search for the first entry whose
		// internal key is >= the lookup key.
		i = sort.Search(len(t.entries), func(i int) bool {
			return c.icmp.Compare(t.entries[i].Key, key) >= 0
		})
	default:
		// Entries sort by increasing user key then decreasing (seq,kind):
		// skip forward past entries newer than the snapshot the lookup key
		// encodes.
		for i < len(t.entries) && c.icmp.Compare(t.entries[i].Key, key) < 0 {
			i++
		}
	}
	if i >= len(t.entries) || c.icmp.UserKeyComparer.Compare(t.entries[i].Key.UserKey(), ukey) != 0 {
		saver.Save(tablecache.SaveNotFound, nil, nil)
		return nil
	}
	found := t.entries[i]
	if !found.Key.Valid() {
		saver.Save(tablecache.SaveCorrupt, found.Key, nil)
		return nil
	}
	if found.Key.Kind() == base.InternalKeyKindDelete {
		saver.Save(tablecache.SaveDeleted, found.Key, nil)
		return nil
	}
	saver.Save(tablecache.SaveFound, found.Key, found.Value)
	return nil
}

// NewIterator implements tablecache.Cache.
func (c *Cache) NewIterator(ro tablecache.ReadOptions, fileNum uint64, fileSize uint64, seqOff uint64) (tablecache.Iterator, error) {
	c.mu.RLock()
	t, ok := c.tables[fileNum]
	c.mu.RUnlock()
	if !ok {
		return nil, base.ErrIOError("new_iterator", "memcache", errNoSuchFile(fileNum))
	}
	return &iterator{entries: t.entries, i: -1}, nil
}

// EstimateOffset implements tablecache.Cache. Since a memcache table has no
// real on-disk layout, the estimate is simply the index of the first entry
// at or past key, scaled as if every entry took one byte.
func (c *Cache) EstimateOffset(fileNum uint64, fileSize uint64, key base.InternalKey) (uint64, error) {
	c.mu.RLock()
	t, ok := c.tables[fileNum]
	c.mu.RUnlock()
	if !ok {
		return 0, base.ErrIOError("estimate_offset", "memcache", errNoSuchFile(fileNum))
	}
	i := sort.Search(len(t.entries), func(i int) bool {
		return c.icmp.Compare(t.entries[i].Key, key) >= 0
	})
	return uint64(i), nil
}

// Evict implements tablecache.Cache.
func (c *Cache) Evict(fileNum uint64) {
	c.mu.Lock()
	delete(c.tables, fileNum)
	c.mu.Unlock()
}

type iterator struct {
	entries []Entry
	i       int
}

func (it *iterator) Next() bool {
	it.i++
	return it.i < len(it.entries)
}

func (it *iterator) Key() base.InternalKey { return it.entries[it.i].Key }
func (it *iterator) Value() []byte         { return it.entries[it.i].Value }
func (it *iterator) Close() error          { return nil }

func errNoSuchFile(fileNum uint64) error {
	return fmt.Errorf("memcache: no such file %d", fileNum)
}

// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"container/heap"

	"github.com/pdlfs/pdlfs-common/base"
	"github.com/pdlfs/pdlfs-common/tablecache"
)

// concatIter iterates a disjoint, sorted run of table files as a single
// ascending sequence, opening each table through the cache only once the
// previous one is exhausted.
type concatIter struct {
	cache tablecache.Cache
	ro    tablecache.ReadOptions
	files []*FileMetaData

	i   int
	cur tablecache.Iterator
	err error
}

func (it *concatIter) Next() bool {
	for it.err == nil {
		if it.cur == nil {
			if it.i >= len(it.files) {
				return false
			}
			f := it.files[it.i]
			it.i++
			cur, err := it.cache.NewIterator(it.ro, f.Number, f.Size, f.SeqOff)
			if err != nil {
				it.err = err
				return false
			}
			it.cur = cur
		}
		if it.cur.Next() {
			return true
		}
		err := it.cur.Close()
		it.cur = nil
		it.err = err
	}
	return false
}

func (it *concatIter) Key() base.InternalKey { return it.cur.Key() }
func (it *concatIter) Value() []byte         { return it.cur.Value() }

func (it *concatIter) Close() error {
	if it.cur != nil {
		if err := it.cur.Close(); err != nil && it.err == nil {
			it.err = err
		}
		it.cur = nil
	}
	it.i = len(it.files)
	return it.err
}

// mergingIter merges its children into one ascending sequence by internal
// key, using a min-heap keyed on each child's current entry.
type mergingIter struct {
	icmp     base.InternalKeyComparer
	children []tablecache.Iterator

	h      iterHeap
	inited bool
	err    error
}

type iterHeap struct {
	icmp  base.InternalKeyComparer
	items []tablecache.Iterator
}

func (h *iterHeap) Len() int { return len(h.items) }
func (h *iterHeap) Less(i, j int) bool {
	return h.icmp.Compare(h.items[i].Key(), h.items[j].Key()) < 0
}
func (h *iterHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *iterHeap) Push(x interface{}) { h.items = append(h.items, x.(tablecache.Iterator)) }
func (h *iterHeap) Pop() interface{} {
	x := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return x
}

func (m *mergingIter) Next() bool {
	if m.err != nil {
		return false
	}
	if !m.inited {
		m.inited = true
		m.h.icmp = m.icmp
		for _, it := range m.children {
			if it.Next() {
				m.h.items = append(m.h.items, it)
			}
		}
		heap.Init(&m.h)
	} else if len(m.h.items) > 0 {
		if m.h.items[0].Next() {
			heap.Fix(&m.h, 0)
		} else {
			heap.Pop(&m.h)
		}
	}
	return len(m.h.items) > 0
}

func (m *mergingIter) Key() base.InternalKey { return m.h.items[0].Key() }
func (m *mergingIter) Value() []byte         { return m.h.items[0].Value() }

func (m *mergingIter) Close() error {
	for _, it := range m.children {
		if err := it.Close(); err != nil && m.err == nil {
			m.err = err
		}
	}
	m.children = nil
	m.h.items = nil
	return m.err
}

// MakeInputIterator returns an iterator yielding every entry of c's input
// files in ascending internal-key order, the sequence the compaction's
// key-merging loop consumes. Row 0's files may overlap each other and get
// one child iterator apiece; every other input row is disjoint and sorted,
// so its files share a concatenating child. Block checksum verification
// follows Options.ParanoidChecks, and compaction reads never populate the
// block cache.
func (vs *VersionSet) MakeInputIterator(c *Compaction) tablecache.Iterator {
	ro := tablecache.ReadOptions{
		VerifyChecksums: vs.opts.ParanoidChecks,
		FillCache:       false,
	}
	baseRow := c.Level
	if c.BaseInputSublevel >= 0 {
		baseRow = c.BaseInputSublevel
	}
	var children []tablecache.Iterator
	for which, files := range c.Inputs {
		if len(files) == 0 {
			continue
		}
		if baseRow+which == 0 {
			for _, f := range files {
				children = append(children, &concatIter{cache: vs.cache, ro: ro, files: []*FileMetaData{f}})
			}
		} else {
			children = append(children, &concatIter{cache: vs.cache, ro: ro, files: files})
		}
	}
	return &mergingIter{icmp: vs.icmp, children: children}
}

// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package base

import "bytes"

// Comparer defines a total ordering over the space of []byte user keys: a
// 'less than' relationship. Name identifies the ordering so that a MANIFEST
// written with one comparator cannot be silently reopened with another.
type Comparer interface {
	Compare(a, b []byte) int
	Name() string
}

// DefaultComparer orders keys lexicographically by byte value, the same
// ordering as bytes.Compare.
var DefaultComparer Comparer = bytewiseComparer{}

type bytewiseComparer struct{}

func (bytewiseComparer) Compare(a, b []byte) int { return bytes.Compare(a, b) }
func (bytewiseComparer) Name() string            { return "leveldb.BytewiseComparator" }

// InternalKeyComparer orders internal keys: increasing by user key, then
// decreasing by the (sequence number, kind) trailer, so that among internal
// keys sharing a user key, the most recent write sorts first.
type InternalKeyComparer struct {
	UserKeyComparer Comparer
}

// Name returns the name of the wrapped user-key comparator. It is this name,
// not a name describing the internal-key wrapping, that is recorded in the
// MANIFEST: the wrapping itself is an implementation detail shared by every
// database that speaks this format.
func (c InternalKeyComparer) Name() string {
	return c.UserKeyComparer.Name()
}

// Compare orders two encoded internal keys.
func (c InternalKeyComparer) Compare(a, b []byte) int {
	return InternalKey(a).Compare(c.UserKeyComparer, InternalKey(b))
}

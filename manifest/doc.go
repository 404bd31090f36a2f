// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package manifest implements the metadata layer of an LSM-tree storage
// engine: the set of table files that make up each level of a Version, the
// VersionEdit log that records how one Version became the next, and the
// compaction planner that decides which files to merge next.
//
// A VersionSet owns the chain of Versions a database has ever had live
// readers for. Version.Get resolves a point read against one immutable
// snapshot of the file set; LogAndApply installs a new Version by writing a
// VersionEdit to the MANIFEST and only then swapping it in; PickCompaction
// chooses the next set of input files to merge, either by the classic
// round-robin per-level strategy or by the sublevel-pool reorganiser,
// depending on Options.EnableSublevel.
package manifest

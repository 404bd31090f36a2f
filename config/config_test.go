// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdlfs/pdlfs-common/base"
)

func TestParse(t *testing.T) {
	doc := []byte(`
enable_sublevel: true
rotating_manifest: true
level_factor: 4
table_file_size: 1048576
l0_compaction_trigger: 8
l1_compaction_trigger: 2
`)
	opts, err := Parse(doc)
	require.NoError(t, err)
	require.True(t, opts.EnableSublevel)
	require.True(t, opts.RotatingManifest)
	require.EqualValues(t, 4, opts.GetLevelFactor())
	require.EqualValues(t, 1048576, opts.GetTableFileSize())
	require.Equal(t, 8, opts.GetL0CompactionTrigger())
	require.EqualValues(t, 2, opts.GetL1CompactionTrigger())
}

// TestParseDefaults checks that an empty document yields an Options whose
// accessors fall back to their built-in defaults.
func TestParseDefaults(t *testing.T) {
	opts, err := Parse([]byte("{}\n"))
	require.NoError(t, err)
	require.False(t, opts.EnableSublevel)
	require.EqualValues(t, 10, opts.GetLevelFactor())
}

// TestParseUnknownKey checks that a misspelled knob is corruption, not a
// silent fallback to a default.
func TestParseUnknownKey(t *testing.T) {
	_, err := Parse([]byte("levle_factor: 4\n"))
	require.Error(t, err)
	require.True(t, base.IsCorruption(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/no/such/config.yaml")
	require.Error(t, err)
	require.True(t, base.IsIOError(err))
}

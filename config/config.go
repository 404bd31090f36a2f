// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads base.Options from a YAML document, for operators who
// want to tune compaction knobs without recompiling.
package config

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/pdlfs/pdlfs-common/base"
)

// fileOptions mirrors the subset of base.Options that is safe to expose as
// a config file: collaborators (Comparer, FS, Logger) are wired up in code,
// never named in YAML.
type fileOptions struct {
	EnableSublevel         bool  `yaml:"enable_sublevel"`
	RotatingManifest       bool  `yaml:"rotating_manifest"`
	EnableShouldStopBefore bool  `yaml:"enable_should_stop_before"`
	ParanoidChecks         bool  `yaml:"paranoid_checks"`
	LevelFactor            int64 `yaml:"level_factor"`
	TableFileSize          int64 `yaml:"table_file_size"`
	L0CompactionTrigger    int   `yaml:"l0_compaction_trigger"`
	L1CompactionTrigger    int64 `yaml:"l1_compaction_trigger"`
}

// Load parses the YAML document at path into a base.Options. An unknown key
// is a corruption-kind error rather than a silently ignored typo: a
// misspelled compaction knob should never fall back to its default without
// the operator noticing.
func Load(path string) (*base.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, base.ErrIOError("read", path, err)
	}
	return Parse(data)
}

// Parse is Load's in-memory counterpart, used directly by tests that don't
// want to round-trip through the filesystem.
func Parse(data []byte) (*base.Options, error) {
	var fo fileOptions
	if err := yaml.UnmarshalWithOptions(data, &fo, yaml.Strict()); err != nil {
		return nil, base.ErrCorruption("config: %v", err)
	}
	return &base.Options{
		EnableSublevel:         fo.EnableSublevel,
		RotatingManifest:       fo.RotatingManifest,
		EnableShouldStopBefore: fo.EnableShouldStopBefore,
		ParanoidChecks:         fo.ParanoidChecks,
		LevelFactor:            fo.LevelFactor,
		TableFileSize:          fo.TableFileSize,
		L0CompactionTrigger:    fo.L0CompactionTrigger,
		L1CompactionTrigger:    fo.L1CompactionTrigger,
	}, nil
}

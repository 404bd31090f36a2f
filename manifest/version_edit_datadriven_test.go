// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

// TestVersionEditDecodeDriven feeds raw tag bytes (expressed as hex, one
// varint/length-prefixed field per test-file line) through decode, checks
// the result round-trips through encode, and prints the decoded edit. This
// pins the on-disk tag layout the way a change to tag assignment or field
// ordering would be caught by a diff in testdata/version_edit_decode.
func TestVersionEditDecodeDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/version_edit_decode",
		func(t *testing.T, d *datadriven.TestData) string {
			switch d.Cmd {
			case "decode":
				var raw bytes.Buffer
				for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
					line = strings.TrimSpace(line)
					if line == "" || strings.HasPrefix(line, "#") {
						continue
					}
					b, err := hex.DecodeString(line)
					require.NoError(t, err)
					raw.Write(b)
				}

				var e VersionEdit
				if err := e.decode(bytes.NewReader(raw.Bytes()), maxEditLevel); err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}

				var reencoded bytes.Buffer
				require.NoError(t, e.encode(&reencoded))
				require.True(t, bytes.Equal(raw.Bytes(), reencoded.Bytes()),
					"encode(decode(x)) != x:\norig: %x\nredone: %x", raw.Bytes(), reencoded.Bytes())

				var e2 VersionEdit
				require.NoError(t, e2.decode(bytes.NewReader(reencoded.Bytes()), maxEditLevel))
				require.Equal(t, e.String(), e2.String())

				return e.String()

			default:
				t.Fatalf("unknown command: %s", d.Cmd)
				return ""
			}
		})
}

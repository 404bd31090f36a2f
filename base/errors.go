// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrNotFound is the sentinel for a key with no live entry: none was found,
// or a deletion tombstone was. The point reads in this module do not return
// it: Version.Get and VersionSet.Get report both cases as found == false,
// with a separate deleted result set for a tombstone.
var ErrNotFound = errors.New("pdlfs: not found")

// errCorruption, errInvalidArgument and errIO are sentinels marked onto
// wrapped errors with errors.Mark, so callers can classify a failure with
// errors.Is(err, ErrCorruption) without caring how deep the error was
// wrapped.
var (
	errCorruption      = errors.New("pdlfs: corruption")
	errInvalidArgument = errors.New("pdlfs: invalid argument")
	errIO              = errors.New("pdlfs: io error")
)

// ErrCorruption reports that on-disk state (a MANIFEST record, the CURRENT
// file, or a table) could not be parsed or did not satisfy an invariant the
// format relies on.
func ErrCorruption(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), errCorruption)
}

// ErrInvalidArgument reports a caller error, such as opening an existing
// database with a different comparator than the one it was created with.
func ErrInvalidArgument(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), errInvalidArgument)
}

// IsCorruption reports whether err (or any error it wraps) was produced by
// ErrCorruption.
func IsCorruption(err error) bool {
	return errors.Is(err, errCorruption)
}

// IsInvalidArgument reports whether err (or any error it wraps) was produced
// by ErrInvalidArgument.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, errInvalidArgument)
}

// ErrIOError wraps err, an underlying environment/log/table-cache failure
// (typically an *os.PathError), attaching the operation and file name it
// occurred against without discarding the original error for errors.As.
func ErrIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "%s %s", op, path), errIO)
}

// IsIOError reports whether err (or any error it wraps) was produced by
// ErrIOError.
func IsIOError(err error) bool {
	return errors.Is(err, errIO)
}

// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/pdlfs/pdlfs-common/base"
)

// maxEditLevel bounds the level (or sublevel row) any single edit entry
// may name. Level vectors grow on demand, so there is no fixed level count
// to validate against; anything past this bound is a corrupt record, not a
// believable growth request.
const maxEditLevel = 512

// Tags for the VersionEdit disk format. Tag 8 is no longer used, carried
// over unchanged from the format this one descends from. Tags 10 and 11
// are additions this format needed that the original never did: a file
// carried forward with its key bounds narrowed by a sublevel-pool
// reorganisation without its on-disk bytes changing, and the truncate
// boundary that reorganisation applied.
const (
	tagComparator     = 1
	tagLogNumber      = 2
	tagNextFileNumber = 3
	tagLastSequence   = 4
	tagCompactPointer = 5
	tagDeletedFile    = 6
	tagNewFile        = 7
	tagPrevLogNumber  = 9
	tagUpdatedFile    = 10
	tagTruncateKey    = 11
)

type compactPointerEntry struct {
	level int
	key   base.InternalKey
}

type deletedFileEntry struct {
	level   int
	fileNum uint64
}

type newFileEntry struct {
	level int
	meta  FileMetaData
}

type updatedFileEntry struct {
	level   int
	fileNum uint64
}

// VersionEdit records a single mutation of the file set: files added,
// files removed, a level's compaction cursor moved, or (sublevel mode
// only) a file's answerable key range truncated in place. Applying a
// sequence of VersionEdits to an empty Builder, in order, reconstructs a
// Version.
type VersionEdit struct {
	ComparatorName string
	LogNumber      uint64
	PrevLogNumber  uint64
	NextFileNumber uint64
	LastSequence   uint64
	HasLastSeq     bool

	CompactPointers []compactPointerEntry
	DeletedFiles    map[deletedFileEntry]bool
	NewFiles        []newFileEntry
	UpdatedFiles    []updatedFileEntry

	// TruncateKey bounds every entry in UpdatedFiles: applying this edit
	// raises each updated file's Smallest to TruncateKey, recording that
	// the compaction consumed the file's keys below it. It is set at most
	// once per edit, because a single compaction stops at a single
	// boundary.
	TruncateKey base.InternalKey

	// MaxLevel is the highest level any entry in this edit touches. It is
	// not itself persisted; Decode recomputes it from the entries read so
	// a caller can size a newly grown Version's level slice.
	MaxLevel int
}

func (e *VersionEdit) bumpMaxLevel(level int) {
	if level > e.MaxLevel {
		e.MaxLevel = level
	}
}

// AddFile records that a compaction or flush produced a new table file at
// level.
func (e *VersionEdit) AddFile(level int, meta FileMetaData) {
	e.NewFiles = append(e.NewFiles, newFileEntry{level: level, meta: meta})
	e.bumpMaxLevel(level)
}

// DeleteFile records that fileNum, previously living at level, is no
// longer part of the file set.
func (e *VersionEdit) DeleteFile(level int, fileNum uint64) {
	if e.DeletedFiles == nil {
		e.DeletedFiles = make(map[deletedFileEntry]bool)
	}
	e.DeletedFiles[deletedFileEntry{level, fileNum}] = true
	e.bumpMaxLevel(level)
}

// UpdateFile records that fileNum, living at level, is carried forward
// with its Smallest bound raised to e.TruncateKey.
func (e *VersionEdit) UpdateFile(level int, fileNum uint64) {
	e.UpdatedFiles = append(e.UpdatedFiles, updatedFileEntry{level, fileNum})
	e.bumpMaxLevel(level)
}

func (e *VersionEdit) decode(r io.Reader, maxLevel int) error {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	d := versionEditDecoder{br, maxLevel}
	for {
		tag, err := binary.ReadUvarint(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch tag {
		case tagComparator:
			s, err := d.readBytes()
			if err != nil {
				return err
			}
			e.ComparatorName = string(s)

		case tagLogNumber:
			n, err := d.readUvarint()
			if err != nil {
				return err
			}
			e.LogNumber = n

		case tagNextFileNumber:
			n, err := d.readUvarint()
			if err != nil {
				return err
			}
			e.NextFileNumber = n

		case tagLastSequence:
			n, err := d.readUvarint()
			if err != nil {
				return err
			}
			e.LastSequence = n
			e.HasLastSeq = true

		case tagCompactPointer:
			level, err := d.readLevel()
			if err != nil {
				return err
			}
			key, err := d.readBytes()
			if err != nil {
				return err
			}
			e.CompactPointers = append(e.CompactPointers, compactPointerEntry{level, base.InternalKey(key)})
			e.bumpMaxLevel(level)

		case tagDeletedFile:
			level, err := d.readLevel()
			if err != nil {
				return err
			}
			fileNum, err := d.readUvarint()
			if err != nil {
				return err
			}
			if e.DeletedFiles == nil {
				e.DeletedFiles = make(map[deletedFileEntry]bool)
			}
			e.DeletedFiles[deletedFileEntry{level, fileNum}] = true
			e.bumpMaxLevel(level)

		case tagNewFile:
			level, err := d.readLevel()
			if err != nil {
				return err
			}
			fileNum, err := d.readUvarint()
			if err != nil {
				return err
			}
			size, err := d.readUvarint()
			if err != nil {
				return err
			}
			seqOff, err := d.readUvarint()
			if err != nil {
				return err
			}
			smallest, err := d.readBytes()
			if err != nil {
				return err
			}
			largest, err := d.readBytes()
			if err != nil {
				return err
			}
			e.NewFiles = append(e.NewFiles, newFileEntry{
				level: level,
				meta: FileMetaData{
					Number:       fileNum,
					Size:         size,
					SeqOff:       seqOff,
					Smallest:     base.InternalKey(smallest),
					Largest:      base.InternalKey(largest),
					AllowedSeeks: allowedSeeksFor(size),
				},
			})
			e.bumpMaxLevel(level)

		case tagPrevLogNumber:
			n, err := d.readUvarint()
			if err != nil {
				return err
			}
			e.PrevLogNumber = n

		case tagUpdatedFile:
			level, err := d.readLevel()
			if err != nil {
				return err
			}
			fileNum, err := d.readUvarint()
			if err != nil {
				return err
			}
			e.UpdatedFiles = append(e.UpdatedFiles, updatedFileEntry{level, fileNum})
			e.bumpMaxLevel(level)

		case tagTruncateKey:
			key, err := d.readBytes()
			if err != nil {
				return err
			}
			e.TruncateKey = base.InternalKey(key)

		default:
			return base.ErrCorruption("manifest: unknown version edit tag %d", tag)
		}
	}
	return nil
}

func (e *VersionEdit) encode(w io.Writer) error {
	enc := versionEditEncoder{new(bytes.Buffer)}
	if e.ComparatorName != "" {
		enc.writeUvarint(tagComparator)
		enc.writeString(e.ComparatorName)
	}
	if e.LogNumber != 0 {
		enc.writeUvarint(tagLogNumber)
		enc.writeUvarint(e.LogNumber)
	}
	if e.PrevLogNumber != 0 {
		enc.writeUvarint(tagPrevLogNumber)
		enc.writeUvarint(e.PrevLogNumber)
	}
	if e.NextFileNumber != 0 {
		enc.writeUvarint(tagNextFileNumber)
		enc.writeUvarint(e.NextFileNumber)
	}
	if e.HasLastSeq {
		enc.writeUvarint(tagLastSequence)
		enc.writeUvarint(e.LastSequence)
	}
	for _, x := range e.CompactPointers {
		enc.writeUvarint(tagCompactPointer)
		enc.writeUvarint(uint64(x.level))
		enc.writeBytes(x.key)
	}
	for x := range e.DeletedFiles {
		enc.writeUvarint(tagDeletedFile)
		enc.writeUvarint(uint64(x.level))
		enc.writeUvarint(x.fileNum)
	}
	for _, x := range e.NewFiles {
		enc.writeUvarint(tagNewFile)
		enc.writeUvarint(uint64(x.level))
		enc.writeUvarint(x.meta.Number)
		enc.writeUvarint(x.meta.Size)
		enc.writeUvarint(x.meta.SeqOff)
		enc.writeBytes(x.meta.Smallest)
		enc.writeBytes(x.meta.Largest)
	}
	for _, x := range e.UpdatedFiles {
		enc.writeUvarint(tagUpdatedFile)
		enc.writeUvarint(uint64(x.level))
		enc.writeUvarint(x.fileNum)
	}
	if e.TruncateKey != nil {
		enc.writeUvarint(tagTruncateKey)
		enc.writeBytes(e.TruncateKey)
	}
	_, err := w.Write(enc.Bytes())
	return err
}

// String renders the edit's set fields one per line, for log lines and
// data-driven test output.
func (e *VersionEdit) String() string {
	var b strings.Builder
	if e.ComparatorName != "" {
		fmt.Fprintf(&b, "comparator: %s\n", e.ComparatorName)
	}
	if e.LogNumber != 0 {
		fmt.Fprintf(&b, "log-number: %d\n", e.LogNumber)
	}
	if e.PrevLogNumber != 0 {
		fmt.Fprintf(&b, "prev-log-number: %d\n", e.PrevLogNumber)
	}
	if e.NextFileNumber != 0 {
		fmt.Fprintf(&b, "next-file-number: %d\n", e.NextFileNumber)
	}
	if e.HasLastSeq {
		fmt.Fprintf(&b, "last-sequence: %d\n", e.LastSequence)
	}
	for _, x := range e.CompactPointers {
		fmt.Fprintf(&b, "compact-pointer: L%d %q\n", x.level, x.key)
	}
	deleted := make([]deletedFileEntry, 0, len(e.DeletedFiles))
	for x := range e.DeletedFiles {
		deleted = append(deleted, x)
	}
	sortDeletedFileEntries(deleted)
	for _, x := range deleted {
		fmt.Fprintf(&b, "deleted-file: L%d #%d\n", x.level, x.fileNum)
	}
	for _, x := range e.NewFiles {
		fmt.Fprintf(&b, "added-file: L%d #%d size=%d seq-off=%d [%q,%q]\n",
			x.level, x.meta.Number, x.meta.Size, x.meta.SeqOff, x.meta.Smallest, x.meta.Largest)
	}
	for _, x := range e.UpdatedFiles {
		fmt.Fprintf(&b, "updated-file: L%d #%d\n", x.level, x.fileNum)
	}
	if e.TruncateKey != nil {
		fmt.Fprintf(&b, "truncate-key: %q\n", e.TruncateKey)
	}
	return b.String()
}

func sortDeletedFileEntries(d []deletedFileEntry) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && (d[j].level < d[j-1].level ||
			(d[j].level == d[j-1].level && d[j].fileNum < d[j-1].fileNum)); j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
}

type byteReader interface {
	io.ByteReader
	io.Reader
}

type versionEditDecoder struct {
	byteReader
	maxLevel int
}

func (d versionEditDecoder) readBytes() ([]byte, error) {
	n, err := d.readUvarint()
	if err != nil {
		return nil, err
	}
	s := make([]byte, n)
	if _, err := io.ReadFull(d, s); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, base.ErrCorruption("manifest: truncated version edit")
		}
		return nil, err
	}
	return s, nil
}

func (d versionEditDecoder) readLevel() (int, error) {
	u, err := d.readUvarint()
	if err != nil {
		return 0, err
	}
	if int(u) >= d.maxLevel {
		return 0, base.ErrCorruption("manifest: level %d out of range", u)
	}
	return int(u), nil
}

func (d versionEditDecoder) readUvarint() (uint64, error) {
	u, err := binary.ReadUvarint(d)
	if err != nil {
		if err == io.EOF {
			return 0, base.ErrCorruption("manifest: truncated version edit")
		}
		return 0, err
	}
	return u, nil
}

type versionEditEncoder struct {
	*bytes.Buffer
}

func (e versionEditEncoder) writeBytes(p []byte) {
	e.writeUvarint(uint64(len(p)))
	e.Write(p)
}

func (e versionEditEncoder) writeString(s string) {
	e.writeUvarint(uint64(len(s)))
	e.WriteString(s)
}

func (e versionEditEncoder) writeUvarint(u uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], u)
	e.Write(buf[:n])
}

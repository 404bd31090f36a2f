// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record reads and writes sequences of records, each wrapped in a
// CRC-checked frame. The MANIFEST is a sequence of such records, each
// holding one encoded VersionEdit.
//
// When writing, call Next to obtain an io.Writer for the next record;
// calling Next again, or Close, finishes the previous record. When reading,
// call Next to obtain an io.Reader for the next record; Next returns io.EOF
// once the underlying stream is exhausted.
//
// The wire format divides the stream into 32KiB blocks of tightly packed
// chunks. Chunks never cross block boundaries; the unused tail of a block,
// if too short to hold another header, is left zeroed. A record maps to one
// or more chunks:
//
//	+----------+-----------+-----------+--- ... ---+
//	| CRC (4B) | Size (2B) | Type (1B) | Payload   |
//	+----------+-----------+-----------+--- ... ---+
//
// CRC is a masked CRC-32C computed over the type byte and the payload. Type
// is one of full/first/middle/last, recording whether the chunk stands
// alone or is a fragment of a record split across multiple chunks.
package record

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/cockroachdb/errors"
)

const (
	fullChunkType   = 1
	firstChunkType  = 2
	middleChunkType = 3
	lastChunkType   = 4
)

const (
	blockSize  = 32 * 1024
	headerSize = 7 // 4 byte masked CRC + 2 byte little-endian length + 1 byte type
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// maskedChecksum guards against a CRC of zero, which a pre-allocated but
// never-written block would otherwise produce for any payload of the
// corresponding zero bytes.
func maskedChecksum(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoliTable)
	return c>>15 | c<<17 + 0xa282ead8
}

// ErrInvalidChunk reports that a chunk's header, length or checksum failed
// to parse. This is the expected shape of a torn write left by a crash
// mid-append, not necessarily a corrupt log.
var ErrInvalidChunk = errors.New("record: invalid chunk")

// Writer writes a sequence of records, each framed into one or more
// blockSize-bounded chunks, to an underlying io.Writer.
type Writer struct {
	w   io.Writer
	buf [blockSize]byte

	// pos is the end of the pending chunk in buf: its header is built in
	// buf[:headerSize] and its buffered payload is buf[headerSize:pos].
	pos int

	// blockOff is the number of bytes already written to w in the current
	// block; a chunk is cut so that blockOff+pos never exceeds blockSize.
	blockOff int

	// pending is true from Next until the record it opened is finished, so
	// that a record with no payload is still emitted, as an empty chunk.
	pending bool

	// started is true once at least one chunk has been emitted for the
	// current record; it distinguishes a full/first chunk from a last one.
	started bool

	err error
}

// NewWriter returns a new Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, pos: headerSize}
}

// Next finishes the previous record, if any, and returns an io.Writer for
// the next one. The returned writer is only valid until the following call
// to Next or Close.
func (w *Writer) Next() (io.Writer, error) {
	if w.err != nil {
		return nil, w.err
	}
	if err := w.finishRecord(); err != nil {
		return nil, err
	}
	w.started = false
	w.pending = true
	return recordWriter{w}, nil
}

// Flush finishes the in-progress record, if any, and pushes every buffered
// chunk to the underlying writer, so that a following fsync of the
// underlying file covers the record. The record is sealed: later writes
// through a stale Next writer are undefined.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.finishRecord(); err != nil {
		return err
	}
	w.started = false
	if f, ok := w.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close finishes the final record and, if the underlying writer exposes a
// Flush method, flushes it.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if err := w.finishRecord(); err != nil {
		return err
	}
	if f, ok := w.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// finishRecord emits whatever is buffered for the in-progress record as a
// full chunk (nothing emitted yet) or a last chunk (first/middle already
// emitted). It is a no-op if no record is open; a record opened by Next
// with no bytes written to it is emitted as an empty full chunk.
func (w *Writer) finishRecord() error {
	if !w.pending {
		return nil
	}
	w.pending = false
	ty := byte(fullChunkType)
	if w.started {
		ty = lastChunkType
	}
	return w.emit(ty)
}

// emit writes out buf[headerSize:pos] as a chunk of type ty and resets pos
// to the start of the payload area, ready for the next chunk. If the
// current block is then too short to hold another header, its tail is
// written as zeros and the next chunk starts a new block.
func (w *Writer) emit(ty byte) error {
	payload := w.buf[headerSize:w.pos]
	header := w.buf[:headerSize]
	header[4] = byte(len(payload))
	header[5] = byte(len(payload) >> 8)
	header[6] = ty
	binary.LittleEndian.PutUint32(header[:4], maskedChecksum(w.buf[6:w.pos]))
	if _, err := w.w.Write(w.buf[:w.pos]); err != nil {
		w.err = err
		return err
	}
	w.blockOff += w.pos
	w.pos = headerSize
	w.started = true
	if rest := blockSize - w.blockOff; rest < headerSize {
		var zeros [headerSize]byte
		if _, err := w.w.Write(zeros[:rest]); err != nil {
			w.err = err
			return err
		}
		w.blockOff = 0
	}
	return nil
}

type recordWriter struct {
	w *Writer
}

func (rw recordWriter) Write(p []byte) (int, error) {
	w := rw.w
	if w.err != nil {
		return 0, w.err
	}
	n0 := len(p)
	for len(p) > 0 {
		room := blockSize - w.blockOff - w.pos
		n := copy(w.buf[w.pos:], p[:min(room, len(p))])
		w.pos += n
		p = p[n:]
		if w.blockOff+w.pos < blockSize {
			continue
		}
		// The block is full: emit a first/middle chunk and start a new block.
		ty := byte(firstChunkType)
		if w.started {
			ty = middleChunkType
		}
		if err := w.emit(ty); err != nil {
			return n0 - len(p), err
		}
	}
	return n0, nil
}

// Reader reads a sequence of records previously written by a Writer.
//
// A record's chunks are assembled into a single in-memory payload as soon
// as Next is called, rather than streamed lazily: VersionEdit records are a
// few hundred bytes at most, so there is nothing to gain from a fragmented
// Read path, and assembling eagerly keeps chunk-boundary bookkeeping in one
// place.
type Reader struct {
	r   io.Reader
	buf [blockSize]byte
	n   int // buf[:n] holds the bytes of the most recently read block
	pos int // next unconsumed offset within buf[:n]

	err error
}

// NewReader returns a new Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next assembles and returns the next record as a *bytes.Reader, or io.EOF
// if the underlying stream holds no more complete records.
func (r *Reader) Next() (io.Reader, error) {
	if r.err != nil {
		return nil, r.err
	}
	record, err := r.readRecord()
	if err != nil {
		r.err = err
		return nil, err
	}
	return bytes.NewReader(record), nil
}

// fill refills buf when it is exhausted.
func (r *Reader) fill() error {
	n, err := io.ReadFull(r.r, r.buf[:])
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return io.EOF
		}
		return err
	}
	r.n, r.pos = n, 0
	if n == 0 {
		return io.EOF
	}
	return nil
}

// readRecord scans chunks, starting from one expected to open a record,
// until it consumes one whose type is full or last, returning the
// concatenated payload.
func (r *Reader) readRecord() ([]byte, error) {
	var record []byte
	first := true
	for {
		payload, ty, err := r.nextChunk(first)
		if err != nil {
			return nil, err
		}
		record = append(record, payload...)
		first = false
		if ty == fullChunkType || ty == lastChunkType {
			return record, nil
		}
	}
}

// nextChunk advances past one chunk header and returns a copy of its
// payload and its type. wantFirst requires the chunk to be of type full or
// first; a middle or last chunk found instead is the tail of a record torn
// by a crash and is skipped while the scan continues.
func (r *Reader) nextChunk(wantFirst bool) (payload []byte, ty byte, err error) {
	for {
		if r.pos+headerSize > r.n {
			// Too little room left in the block for another header: treat the
			// remainder as padding and move to the next block.
			if err := r.fill(); err != nil {
				return nil, 0, err
			}
			continue
		}
		header := r.buf[r.pos : r.pos+headerSize]
		checksum := binary.LittleEndian.Uint32(header[:4])
		length := int(header[4]) | int(header[5])<<8
		chunkType := header[6]
		if checksum == 0 && length == 0 && chunkType == 0 {
			// Zero padding reached before the block's nominal end.
			r.pos = r.n
			continue
		}
		start := r.pos + headerSize
		end := start + length
		if length > blockSize || end > r.n {
			return nil, 0, ErrInvalidChunk
		}
		if maskedChecksum(r.buf[r.pos+6:end]) != checksum {
			return nil, 0, ErrInvalidChunk
		}
		r.pos = end
		if wantFirst && chunkType != fullChunkType && chunkType != firstChunkType {
			continue
		}
		out := make([]byte, length)
		copy(out, r.buf[start:end])
		return out, chunkType, nil
	}
}

// Package stream implements the byte-level side of reading Storable images.
//
// A Cursor reads the primitive fields of the format from an in-memory buffer
// or an io.Reader:
//   - single bytes (tags, flags, short lengths)
//   - 32-bit network-order integers (counts, indexes, long lengths)
//   - flexible lengths (one byte, or 0x80 followed by a 32-bit length)
//   - exact-length byte strings
//
// Every read reports the absolute offset at which it failed, so callers can
// point at the broken record. Decompress unwraps gzip or zstd compressed
// input before it reaches a Cursor.
package stream

import (
	"errors"
	"fmt"
	"io"
)

// MaxLength is the default upper bound for a single length-prefixed read (256 MiB).
const MaxLength = 256 * 1024 * 1024

// ErrUnexpectedEOF is returned (wrapped in a ReadError) when the input ends
// before a field is complete.
var ErrUnexpectedEOF = io.ErrUnexpectedEOF

// ErrLength is the sentinel matched by every LengthError.
var ErrLength = errors.New("stream: bad length")

// ReadError reports a failed primitive read.
type ReadError struct {
	Op     string // "u8", "i32", "bytes", "length"
	Offset int64  // Offset where the read started
	Want   int    // Bytes requested
	Err    error  // ErrUnexpectedEOF or the underlying I/O error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("stream: read %s (%d bytes) at offset %d: %v", e.Op, e.Want, e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// LengthError is returned for negative lengths and lengths above the
// configured maximum.
type LengthError struct {
	Offset int64
	Length int64
	Max    int
}

func (e *LengthError) Error() string {
	if e.Length < 0 {
		return fmt.Sprintf("stream: negative length %d at offset %d", e.Length, e.Offset)
	}
	return fmt.Sprintf("stream: length %d exceeds limit %d at offset %d", e.Length, e.Max, e.Offset)
}

func (e *LengthError) Unwrap() error {
	return ErrLength
}

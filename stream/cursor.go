package stream

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// chunkSize bounds the allocation made up front for a single ReadBytes call
// on a streamed source; longer strings grow as their bytes arrive.
const chunkSize = 64 * 1024

// Cursor is a sequential reader over the primitive fields of a Storable image.
// It never looks further ahead than one byte and never backtracks.
//
// A Cursor is not safe for concurrent use.
type Cursor struct {
	r         *bufio.Reader // nil when reading from data
	data      []byte
	pos       int
	off       int64
	maxLength int
}

// CursorOption configures a Cursor.
type CursorOption func(*Cursor)

// WithMaxLength sets the maximum length accepted by ReadBytes (default: 256 MiB).
func WithMaxLength(max int) CursorOption {
	return func(c *Cursor) {
		c.maxLength = max
	}
}

// NewCursor creates a cursor over a streamed source.
func NewCursor(r io.Reader, opts ...CursorOption) *Cursor {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	c := &Cursor{
		r:         br,
		maxLength: MaxLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewBytesCursor creates a cursor over an in-memory buffer.
func NewBytesCursor(data []byte, opts ...CursorOption) *Cursor {
	c := &Cursor{
		data:      data,
		maxLength: MaxLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int64 {
	return c.off
}

// AtEnd reports whether the source is exhausted. It is used between images
// to tell a clean end of input from a truncated one.
func (c *Cursor) AtEnd() (bool, error) {
	if c.r == nil {
		return c.pos >= len(c.data), nil
	}
	_, err := c.r.Peek(1)
	if err == io.EOF {
		return true, nil
	}
	if err != nil {
		return false, &ReadError{Op: "peek", Offset: c.off, Want: 1, Err: err}
	}
	return false, nil
}

// ReadU8 reads one byte.
func (c *Cursor) ReadU8() (byte, error) {
	if c.r == nil {
		if c.pos >= len(c.data) {
			return 0, &ReadError{Op: "u8", Offset: c.off, Want: 1, Err: ErrUnexpectedEOF}
		}
		b := c.data[c.pos]
		c.pos++
		c.off++
		return b, nil
	}

	b, err := c.r.ReadByte()
	if err != nil {
		return 0, &ReadError{Op: "u8", Offset: c.off, Want: 1, Err: eofToUnexpected(err)}
	}
	c.off++
	return b, nil
}

// ReadBytes reads exactly n bytes. On failure nothing is returned.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > c.maxLength {
		return nil, &LengthError{Offset: c.off, Length: int64(n), Max: c.maxLength}
	}
	if n == 0 {
		return []byte{}, nil
	}

	if c.r == nil {
		if len(c.data)-c.pos < n {
			return nil, &ReadError{Op: "bytes", Offset: c.off, Want: n, Err: ErrUnexpectedEOF}
		}
		out := make([]byte, n)
		copy(out, c.data[c.pos:c.pos+n])
		c.pos += n
		c.off += int64(n)
		return out, nil
	}

	if n <= chunkSize {
		out := make([]byte, n)
		if _, err := io.ReadFull(c.r, out); err != nil {
			return nil, &ReadError{Op: "bytes", Offset: c.off, Want: n, Err: eofToUnexpected(err)}
		}
		c.off += int64(n)
		return out, nil
	}

	// Long strings: let the buffer grow with the data that actually arrives
	// so a corrupt length cannot force a huge allocation.
	var buf bytes.Buffer
	buf.Grow(chunkSize)
	got, err := io.CopyN(&buf, c.r, int64(n))
	if err != nil || got != int64(n) {
		if err == nil {
			err = ErrUnexpectedEOF
		}
		return nil, &ReadError{Op: "bytes", Offset: c.off, Want: n, Err: eofToUnexpected(err)}
	}
	c.off += int64(n)
	return buf.Bytes(), nil
}

// ReadI32 reads a 32-bit big-endian integer and reinterprets it as signed.
// Values above 2^31-1 wrap negative.
func (c *Cursor) ReadI32() (int32, error) {
	start := c.off
	var b []byte
	if c.r == nil {
		if len(c.data)-c.pos < 4 {
			return 0, &ReadError{Op: "i32", Offset: start, Want: 4, Err: ErrUnexpectedEOF}
		}
		b = c.data[c.pos : c.pos+4]
		c.pos += 4
	} else {
		var tmp [4]byte
		if _, err := io.ReadFull(c.r, tmp[:]); err != nil {
			return 0, &ReadError{Op: "i32", Offset: start, Want: 4, Err: eofToUnexpected(err)}
		}
		b = tmp[:]
	}
	c.off += 4
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ReadLength reads a flexible length: a single byte holds lengths up to 127;
// when its high bit is set the low bits are ignored and a 32-bit integer
// follows.
func (c *Cursor) ReadLength() (int, error) {
	b, err := c.ReadU8()
	if err != nil {
		return 0, err
	}
	if b&0x80 == 0 {
		return int(b), nil
	}
	n, err := c.ReadI32()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func eofToUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrUnexpectedEOF
	}
	return err
}

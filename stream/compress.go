package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies a compression wrapper around a Storable image.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// Detect identifies the compression format from the first bytes of a source.
func Detect(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// Decompress returns a reader yielding the uncompressed content of r.
// Gzip and zstd input is unwrapped; anything else is passed through with the
// sniffed bytes intact. The caller must Close the result.
func Decompress(r io.Reader) (io.ReadCloser, Compression, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, CompressionNone, fmt.Errorf("sniff input: %w", err)
	}

	switch kind := Detect(head); kind {
	case CompressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, kind, fmt.Errorf("open gzip: %w", err)
		}
		return zr, kind, nil

	case CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, kind, fmt.Errorf("open zstd: %w", err)
		}
		return zr.IOReadCloser(), kind, nil

	default:
		return io.NopCloser(br), kind, nil
	}
}

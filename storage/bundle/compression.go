package bundle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how the bundle tar stream is wrapped. Import detects
// it from the stream's magic bytes, so it is never recorded separately.
type Compression uint8

const (
	// CompressionNone writes a plain tar. Fragments are PNG and barely
	// shrink, so this is the default.
	CompressionNone Compression = iota
	// CompressionZstd wraps the tar in a zstd frame.
	CompressionZstd
	// CompressionLZ4 wraps the tar in an LZ4 frame.
	CompressionLZ4
)

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "zstd" or "lz4". The empty string is none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("bundle: unknown compression %q", name)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// compressWriter wraps w; closing the result flushes the compressor but
// leaves w open.
func compressWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("bundle: zstd: %w", err)
		}
		return enc, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("bundle: unsupported compression %s", c)
	}
}

// decompressReader sniffs the stream and returns a reader over the plain tar
// plus the compression that was found.
func decompressReader(r io.Reader) (io.Reader, Compression, func(), error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, 0, nil, err
	}
	switch {
	case bytes.Equal(head, zstdMagic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("bundle: zstd: %w", err)
		}
		return dec, CompressionZstd, dec.Close, nil
	case bytes.Equal(head, lz4Magic):
		return lz4.NewReader(br), CompressionLZ4, func() {}, nil
	default:
		return br, CompressionNone, func() {}, nil
	}
}

package command

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// Compression names the encoding of a payload.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionGzip
)

// String returns the encoding name as used in Content-Encoding headers.
func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionGzip:
		return "gzip"
	default:
		return "identity"
	}
}

// DetectCompression inspects the leading magic bytes of data.
func DetectCompression(data []byte) Compression {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(data, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

func (d *Decoder) decompress(data []byte) ([]byte, error) {
	limit := d.maxPayload()
	switch DetectCompression(data) {
	case CompressionZstd:
		dec, err := zstd.NewReader(bytes.NewReader(data),
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(uint64(limit)))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		return readLimited(dec, limit, "zstd")
	case CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return readLimited(zr, limit, "gzip")
	default:
		return data, nil
	}
}

func readLimited(r io.Reader, limit int64, name string) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%s: payload exceeds %d bytes", name, limit)
	}
	return out, nil
}

// unwrapBase64 returns the decoded bytes of s when s is base64 text that
// wraps a compressed payload.
func unwrapBase64(s string) ([]byte, bool) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	if DetectCompression(raw) == CompressionNone {
		return nil, false
	}
	return raw, true
}

// Compress encodes a payload with the given compression. It is the
// inverse of the decoder's transparent decompression and is used by
// producers and tests.
func Compress(data []byte, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	switch c {
	case CompressionZstd:
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	case CompressionGzip:
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	default:
		return data, nil
	}
	return buf.Bytes(), nil
}

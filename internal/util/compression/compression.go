// Package compression wraps the codecs used for stored draft content.
package compression

import (
	"bytes"
	"fmt"
)

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// NoneCompressor stores data as-is.
type NoneCompressor struct{}

func (NoneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NoneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

// ByName returns the compressor configured under name ("zstd", "gzip" or "none").
func ByName(name string) (Compressor, error) {
	switch name {
	case "", "zstd":
		return ZstdCompressor{}, nil
	case "gzip":
		return GzipCompressor{}, nil
	case "none":
		return NoneCompressor{}, nil
	}
	return nil, fmt.Errorf("unknown compression %q", name)
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// Detect returns the codec that produced data, going by its magic number.
// Data without a known header is taken as uncompressed.
func Detect(data []byte) Compressor {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return ZstdCompressor{}
	case bytes.HasPrefix(data, gzipMagic):
		return GzipCompressor{}
	}
	return NoneCompressor{}
}

// Detecting compresses with the embedded Compressor and decompresses data
// written by any of the known codecs, so the configured codec can change
// without rewriting stored content.
type Detecting struct {
	Compressor
}

func (d Detecting) Decompress(data []byte) ([]byte, error) {
	return Detect(data).Decompress(data)
}

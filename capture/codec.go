// Package capture persists decoded sensor batches as compressed binary
// capture files.
//
// A capture stream starts with a fixed header naming the format version,
// the payload compression codec and a random session id, followed by a
// sequence of frames. Each frame carries its compressed payload length, a
// sample count and an xxHash64 checksum of the compressed payload, so a
// truncated or corrupted file fails loudly on read instead of yielding a
// silently wrong timeline. All multi-byte fields are little-endian.
package capture

import (
	"fmt"

	"github.com/arloliu/mcusync/errs"
)

// CompressionType identifies the payload compression codec of a capture
// stream.
type CompressionType uint8

const (
	CompressionNone CompressionType = 0x1
	CompressionZstd CompressionType = 0x2
	CompressionS2   CompressionType = 0x3
	CompressionLZ4  CompressionType = 0x4
)

// IsValid reports whether c names a known codec.
func (c CompressionType) IsValid() bool {
	switch c {
	case CompressionNone, CompressionZstd, CompressionS2, CompressionLZ4:
		return true
	}

	return false
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionS2:
		return "s2"
	case CompressionLZ4:
		return "lz4"
	}

	return fmt.Sprintf("compression(%#x)", uint8(c))
}

// ParseCompression maps a codec name from configuration to its
// CompressionType.
func ParseCompression(name string) (CompressionType, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "s2":
		return CompressionS2, nil
	case "lz4":
		return CompressionLZ4, nil
	}

	return 0, fmt.Errorf("codec %q: %w", name, errs.ErrInvalidCompression)
}

// Compressor compresses one frame payload. The returned slice is owned by
// the caller; the input is not modified.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses Compressor. Implementations validate the input
// format and fail on data compressed with a different algorithm.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions; the frame writer and reader each use
// one side.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[CompressionType]Codec{
	CompressionNone: NewNoOpCompressor(),
	CompressionZstd: NewZstdCompressor(),
	CompressionS2:   NewS2Compressor(),
	CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves the built-in Codec for the given compression type.
func GetCodec(compression CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compression]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%s: %w", compression, errs.ErrInvalidCompression)
}

//go:build zstdcgo

package capture

import (
	"github.com/valyala/gozstd"
)

// Compress compresses the payload using the Zstandard cgo bindings.
func (ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, 3), nil
}

// Decompress decompresses a Zstandard payload using the cgo bindings.
func (ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.Decompress(nil, data)
}

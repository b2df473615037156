package capture

// ZstdCompressor compresses frame payloads with Zstandard. Best ratio of
// the built-in codecs; the right choice for archived captures.
//
// The default implementation is the pure-Go one in zstd_pure.go. Building
// with the "zstdcgo" tag swaps in the cgo bindings from zstd_cgo.go for
// higher throughput where cgo is acceptable.
type ZstdCompressor struct{}

var _ Codec = ZstdCompressor{}

// NewZstdCompressor creates a Zstd codec.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}

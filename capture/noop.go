package capture

// NoOpCompressor bypasses compression. Useful for debugging capture files
// with a hex dump and for measuring framing overhead in isolation.
type NoOpCompressor struct{}

var _ Codec = NoOpCompressor{}

// NewNoOpCompressor creates a pass-through codec.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns the input slice as-is without copying.
func (NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns the input slice as-is without copying.
func (NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

package pool

import "sync"

// FrameBufferDefaultSize is the default capacity of buffers obtained from
// the pool; one capture frame for a 100ms batch at 1600Hz fits comfortably.
const (
	FrameBufferDefaultSize  = 4 * 1024
	FrameBufferMaxThreshold = 256 * 1024
)

// ByteBuffer is a reusable byte slice wrapper used by the capture frame
// writer to assemble payloads without per-frame allocations.
type ByteBuffer struct {
	B []byte
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset empties the buffer while retaining allocated memory.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the current length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

var byteBufferPool = sync.Pool{
	New: func() any {
		return &ByteBuffer{B: make([]byte, 0, FrameBufferDefaultSize)}
	},
}

// GetByteBuffer retrieves an empty ByteBuffer from the pool.
func GetByteBuffer() *ByteBuffer {
	buf, _ := byteBufferPool.Get().(*ByteBuffer)
	buf.Reset()

	return buf
}

// PutByteBuffer returns a ByteBuffer to the pool. Oversized buffers are
// dropped so a single large frame does not pin memory forever.
func PutByteBuffer(buf *ByteBuffer) {
	if buf == nil || cap(buf.B) > FrameBufferMaxThreshold {
		return
	}
	byteBufferPool.Put(buf)
}

package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetByteBuffer_Empty(t *testing.T) {
	buf := GetByteBuffer()
	require.NotNil(t, buf)
	require.Equal(t, 0, buf.Len())
	require.GreaterOrEqual(t, cap(buf.B), FrameBufferDefaultSize)
	PutByteBuffer(buf)
}

func TestByteBuffer_ResetRetainsCapacity(t *testing.T) {
	buf := GetByteBuffer()
	defer PutByteBuffer(buf)

	buf.B = append(buf.B, make([]byte, 1024)...)
	c := cap(buf.B)
	buf.Reset()
	require.Equal(t, 0, buf.Len())
	require.Equal(t, c, cap(buf.B))
}

func TestPutByteBuffer_DropsOversized(t *testing.T) {
	buf := &ByteBuffer{B: make([]byte, 0, FrameBufferMaxThreshold*2)}
	// Must not panic; oversized buffers are silently discarded.
	PutByteBuffer(buf)
	PutByteBuffer(nil)
}

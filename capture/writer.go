package capture

import (
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"

	"github.com/arloliu/mcusync/endian"
	"github.com/arloliu/mcusync/internal/hash"
	"github.com/arloliu/mcusync/internal/pool"
	"github.com/arloliu/mcusync/lis2dw"
)

// Capture stream layout constants.
const (
	formatVersion = 1

	// headerSize is magic (4) + version (1) + compression (1) +
	// session id (16).
	headerSize = 22

	// frameHeaderSize is payload length (4) + sample count (4) +
	// payload checksum (8).
	frameHeaderSize = 16

	// sampleSize is one encoded sample: time, x, y, z as float64.
	sampleSize = 32

	// maxFramePayload bounds one compressed frame payload; anything
	// larger is a corrupt length field, not a real frame.
	maxFramePayload = 64 * 1024 * 1024
)

// captureMagic opens every capture stream.
var captureMagic = [4]byte{'M', 'C', 'P', 'T'}

// Writer streams decoded sample batches into a capture file, one frame
// per batch.
//
// Writer is not safe for concurrent use; captures are written from the
// single batch fan-out goroutine.
type Writer struct {
	w       io.Writer
	codec   Codec
	kind    CompressionType
	engine  endian.EndianEngine
	session uuid.UUID

	frames  int
	samples int64
}

// NewWriter creates a capture writer over w with the given payload
// compression and writes the stream header. A fresh random session id is
// generated per writer.
func NewWriter(w io.Writer, compression CompressionType) (*Writer, error) {
	codec, err := GetCodec(compression)
	if err != nil {
		return nil, err
	}

	cw := &Writer{
		w:       w,
		codec:   codec,
		kind:    compression,
		engine:  endian.GetLittleEndianEngine(),
		session: uuid.New(),
	}

	header := make([]byte, 0, headerSize)
	header = append(header, captureMagic[:]...)
	header = append(header, formatVersion, byte(compression))
	header = append(header, cw.session[:]...)
	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write capture header: %w", err)
	}

	return cw, nil
}

// WriteBatch appends one frame holding the given samples. Empty batches
// are skipped entirely rather than producing zero-length frames.
func (cw *Writer) WriteBatch(samples []lis2dw.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)

	for _, s := range samples {
		buf.B = cw.engine.AppendUint64(buf.B, math.Float64bits(s.Time))
		buf.B = cw.engine.AppendUint64(buf.B, math.Float64bits(s.X))
		buf.B = cw.engine.AppendUint64(buf.B, math.Float64bits(s.Y))
		buf.B = cw.engine.AppendUint64(buf.B, math.Float64bits(s.Z))
	}

	payload, err := cw.codec.Compress(buf.Bytes())
	if err != nil {
		return fmt.Errorf("compress capture frame: %w", err)
	}

	header := make([]byte, 0, frameHeaderSize)
	header = cw.engine.AppendUint32(header, uint32(len(payload)))
	header = cw.engine.AppendUint32(header, uint32(len(samples)))
	header = cw.engine.AppendUint64(header, hash.Sum(payload))
	if _, err := cw.w.Write(header); err != nil {
		return fmt.Errorf("write capture frame header: %w", err)
	}
	if _, err := cw.w.Write(payload); err != nil {
		return fmt.Errorf("write capture frame payload: %w", err)
	}

	cw.frames++
	cw.samples += int64(len(samples))

	return nil
}

// Session returns the stream's session id.
func (cw *Writer) Session() uuid.UUID {
	return cw.session
}

// Compression returns the stream's payload codec.
func (cw *Writer) Compression() CompressionType {
	return cw.kind
}

// Frames returns the number of frames written so far.
func (cw *Writer) Frames() int {
	return cw.frames
}

// Samples returns the number of samples written so far.
func (cw *Writer) Samples() int64 {
	return cw.samples
}

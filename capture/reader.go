package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"

	"github.com/arloliu/mcusync/endian"
	"github.com/arloliu/mcusync/errs"
	"github.com/arloliu/mcusync/internal/hash"
	"github.com/arloliu/mcusync/lis2dw"
)

// Reader replays a capture stream frame by frame.
type Reader struct {
	r       io.Reader
	codec   Codec
	kind    CompressionType
	engine  endian.EndianEngine
	session uuid.UUID
}

// NewReader opens a capture stream and validates its header.
func NewReader(r io.Reader) (*Reader, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read capture header: %w", errs.ErrInvalidFrame)
	}
	if !bytes.Equal(header[:4], captureMagic[:]) {
		return nil, errs.ErrInvalidMagic
	}
	if header[4] != formatVersion {
		return nil, fmt.Errorf("capture version %d: %w", header[4], errs.ErrInvalidFrame)
	}

	kind := CompressionType(header[5])
	codec, err := GetCodec(kind)
	if err != nil {
		return nil, err
	}

	cr := &Reader{
		r:      r,
		codec:  codec,
		kind:   kind,
		engine: endian.GetLittleEndianEngine(),
	}
	copy(cr.session[:], header[6:])

	return cr, nil
}

// Next reads and decodes the next frame. It returns io.EOF exactly at a
// frame boundary; a stream ending mid-frame fails with
// errs.ErrInvalidFrame instead.
func (cr *Reader) Next() ([]lis2dw.Sample, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(cr.r, header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		return nil, fmt.Errorf("read frame header: %w", errs.ErrInvalidFrame)
	}

	payloadLen := cr.engine.Uint32(header[0:4])
	count := cr.engine.Uint32(header[4:8])
	sum := cr.engine.Uint64(header[8:16])

	if payloadLen > maxFramePayload {
		return nil, fmt.Errorf("frame payload length %d: %w", payloadLen, errs.ErrInvalidFrame)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(cr.r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", errs.ErrInvalidFrame)
	}
	if hash.Sum(payload) != sum {
		return nil, errs.ErrChecksumMismatch
	}

	raw, err := cr.codec.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("decompress frame: %w", err)
	}
	if len(raw) != int(count)*sampleSize {
		return nil, fmt.Errorf("frame holds %d bytes for %d samples: %w",
			len(raw), count, errs.ErrInvalidFrame)
	}

	samples := make([]lis2dw.Sample, count)
	for i := range samples {
		off := i * sampleSize
		samples[i] = lis2dw.Sample{
			Time: math.Float64frombits(cr.engine.Uint64(raw[off : off+8])),
			X:    math.Float64frombits(cr.engine.Uint64(raw[off+8 : off+16])),
			Y:    math.Float64frombits(cr.engine.Uint64(raw[off+16 : off+24])),
			Z:    math.Float64frombits(cr.engine.Uint64(raw[off+24 : off+32])),
		}
	}

	return samples, nil
}

// ReadAll drains the stream and returns all samples in frame order.
func (cr *Reader) ReadAll() ([]lis2dw.Sample, error) {
	var all []lis2dw.Sample
	for {
		samples, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return all, nil
		}
		if err != nil {
			return all, err
		}
		all = append(all, samples...)
	}
}

// Session returns the stream's session id.
func (cr *Reader) Session() uuid.UUID {
	return cr.session
}

// Compression returns the stream's payload codec.
func (cr *Reader) Compression() CompressionType {
	return cr.kind
}

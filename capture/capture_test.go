package capture

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/mcusync/errs"
	"github.com/arloliu/mcusync/lis2dw"
)

func testSamples(base float64, n int) []lis2dw.Sample {
	samples := make([]lis2dw.Sample, n)
	for i := range samples {
		samples[i] = lis2dw.Sample{
			Time: base + float64(i)*0.000625,
			X:    float64(i) * 1.5,
			Y:    float64(-i) * 2.5,
			Z:    9806.65,
		}
	}

	return samples
}

func TestCodecs_RoundTrip(t *testing.T) {
	payload := []byte("sensor batches compress well because consecutive samples repeat structure")

	for _, kind := range []CompressionType{CompressionNone, CompressionZstd, CompressionS2, CompressionLZ4} {
		t.Run(kind.String(), func(t *testing.T) {
			codec, err := GetCodec(kind)
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)
			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, payload, restored)
		})
	}
}

func TestGetCodec_Unknown(t *testing.T) {
	_, err := GetCodec(CompressionType(0x7F))
	require.ErrorIs(t, err, errs.ErrInvalidCompression)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name string
		want CompressionType
	}{
		{"none", CompressionNone},
		{"", CompressionNone},
		{"zstd", CompressionZstd},
		{"s2", CompressionS2},
		{"lz4", CompressionLZ4},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.name)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	_, err := ParseCompression("brotli")
	require.ErrorIs(t, err, errs.ErrInvalidCompression)
}

func TestCapture_RoundTrip(t *testing.T) {
	for _, kind := range []CompressionType{CompressionNone, CompressionZstd, CompressionS2, CompressionLZ4} {
		t.Run(kind.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, kind)
			require.NoError(t, err)

			batches := [][]lis2dw.Sample{
				testSamples(1.0, 8),
				testSamples(1.005, 16),
				testSamples(1.015, 3),
			}
			for _, b := range batches {
				require.NoError(t, w.WriteBatch(b))
			}
			require.Equal(t, 3, w.Frames())
			require.Equal(t, int64(27), w.Samples())

			r, err := NewReader(&buf)
			require.NoError(t, err)
			require.Equal(t, w.Session(), r.Session())
			require.Equal(t, kind, r.Compression())

			for i, want := range batches {
				got, err := r.Next()
				require.NoError(t, err, "frame %d", i)
				require.Equal(t, want, got)
			}
			_, err = r.Next()
			require.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestCapture_ReadAll(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, CompressionS2)
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(testSamples(2.0, 5)))
	require.NoError(t, w.WriteBatch(testSamples(2.1, 7)))

	r, err := NewReader(&buf)
	require.NoError(t, err)
	all, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 12)
}

func TestWriter_SkipsEmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, CompressionNone)
	require.NoError(t, err)

	require.NoError(t, w.WriteBatch(nil))
	require.Equal(t, 0, w.Frames())
	require.Equal(t, headerSize, buf.Len())
}

func TestReader_InvalidMagic(t *testing.T) {
	data := make([]byte, headerSize)
	copy(data, "NOPE")
	data[4] = formatVersion
	data[5] = byte(CompressionNone)

	_, err := NewReader(bytes.NewReader(data))
	require.ErrorIs(t, err, errs.ErrInvalidMagic)
}

func TestReader_UnknownVersion(t *testing.T) {
	data := make([]byte, headerSize)
	copy(data, captureMagic[:])
	data[4] = 99
	data[5] = byte(CompressionNone)

	_, err := NewReader(bytes.NewReader(data))
	require.ErrorIs(t, err, errs.ErrInvalidFrame)
}

func TestReader_UnknownCompression(t *testing.T) {
	data := make([]byte, headerSize)
	copy(data, captureMagic[:])
	data[4] = formatVersion
	data[5] = 0x7F

	_, err := NewReader(bytes.NewReader(data))
	require.ErrorIs(t, err, errs.ErrInvalidCompression)
}

func TestReader_ChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, CompressionNone)
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(testSamples(3.0, 4)))

	// Flip one payload byte past the frame header.
	data := buf.Bytes()
	data[headerSize+frameHeaderSize] ^= 0xFF

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, errs.ErrChecksumMismatch)
}

func TestReader_TruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, CompressionNone)
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(testSamples(4.0, 4)))

	// Cut the stream in the middle of the payload.
	data := buf.Bytes()[:buf.Len()-10]

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, errs.ErrInvalidFrame)
	require.NotErrorIs(t, err, io.EOF)
}

func TestReader_TruncatedHeader(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("MC")))
	require.ErrorIs(t, err, errs.ErrInvalidFrame)
}

package lis2dw

import (
	"cmp"
	"slices"

	"github.com/arloliu/mcusync/counter"
)

// Packed sample wire format (canonical, the LIS2DW12 14-bit layout):
// each sample occupies 6 bytes: the three axis low bytes first with the
// bottom 2 status bits dropped, then the three high bytes. An axis value
// is low | high<<8 as a 16-bit two's-complement integer. The configured
// axis scale is divided by 4 to compensate for the 2 discarded low bits.
const lowBitsMask = 0xFC

// indexedBlock pairs a raw block with its re-derived absolute index.
type indexedBlock struct {
	index int64
	data  []byte
}

// extractSamples decodes the collected raw blocks into calibrated,
// time-ascending samples.
//
// Each block's absolute index is re-derived from its low-16 sequence value
// against the reconciled session counter, and blocks are resequenced by
// that index, not arrival order, so ordering holds across block boundaries
// even when pushes raced the status poll. Trailing partial sample units
// are dropped. Fails with errs.ErrClockNotSynced until the clock
// regression is ready.
func (s *Sensor) extractSamples(blocks []rawBlock) ([]Sample, error) {
	translation, err := s.sync.TimeTranslation()
	if err != nil {
		return nil, err
	}

	lastSeq := s.seq.Last()
	indexed := make([]indexedBlock, 0, len(blocks))
	for _, b := range blocks {
		indexed = append(indexed, indexedBlock{
			index: counter.ExtendFrom(lastSeq, b.sequence),
			data:  b.data,
		})
	}
	slices.SortStableFunc(indexed, func(a, b indexedBlock) int {
		return cmp.Compare(a.index, b.index)
	})

	xMap, yMap, zMap := s.axesMap[0], s.axesMap[1], s.axesMap[2]
	samples := make([]Sample, 0, len(blocks)*SamplesPerBlock)

	for _, blk := range indexed {
		blockSampleIndex := float64(blk.index) * SamplesPerBlock
		d := blk.data

		for i := 0; i+BytesPerSample <= len(d); i += BytesPerSample {
			rx := decodeAxis(d[i], d[i+3])
			ry := decodeAxis(d[i+1], d[i+4])
			rz := decodeAxis(d[i+2], d[i+5])
			raw := [3]int64{rx, ry, rz}

			offset := float64(i / BytesPerSample)
			samples = append(samples, Sample{
				Time: translation.TimeOf(blockSampleIndex + offset),
				X:    float64(raw[xMap.Index]) * xMap.Scale / 4.0,
				Y:    float64(raw[yMap.Index]) * yMap.Scale / 4.0,
				Z:    float64(raw[zMap.Index]) * zMap.Scale / 4.0,
			})
		}
	}

	return samples, nil
}

// decodeAxis assembles one signed 16-bit axis reading from its masked low
// byte and high byte.
func decodeAxis(low, high byte) int64 {
	v := int64(low&lowBitsMask) | int64(high)<<8
	if v >= 0x8000 {
		v -= 0x10000
	}

	return v
}

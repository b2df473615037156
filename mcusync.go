// Package mcusync reconstructs calibrated, host-timestamped telemetry from
// sensor MCUs that stream raw samples with no timestamps of their own.
//
// A sensor MCU drains its chip FIFO on its own schedule and pushes packed
// sample blocks over a shared command channel; the only timing information
// available is a periodic status report carrying the device's wrapping tick
// counter and sample count. This module rebuilds the timeline on the host:
//
//   - counter extends wrapping 16/32-bit device counters to monotonic
//     64-bit values and refuses to guess across ambiguous jumps
//   - clocksync fits device ticks against device sample counts so any
//     sample index translates to an estimated host time
//   - mcu provides the channel-facing machinery: the xxHash64-keyed
//     response registry, the single-slot command/response completion and
//     verified register I/O
//   - lis2dw drives a LIS2DW12 accelerometer bulk stream: status polling,
//     block decoding, batch fan-out
//   - cs1237 drives a CS1237 strain gauge: live scalar stream,
//     edge-triggered threshold bands and the armed startup self-check
//   - capture persists decoded batches as compressed, checksummed frames
//
// # Basic Usage
//
// Wiring up an accelerometer session:
//
//	registry := mcu.NewRegistry()
//	sensor, err := mcusync.NewAccelerometer(channel, registry, clock, bus, 1,
//	    lis2dw.WithRate(1600),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sensor.AddClient(func(batch lis2dw.Batch) {
//	    // batch.Samples are calibrated and strictly time-ascending
//	})
//	if err := sensor.StartMeasurement(); err != nil {
//	    log.Fatal(err)
//	}
//
// Capturing batches to disk:
//
//	w, err := mcusync.NewCaptureWriter(file, "zstd")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sensor.AddClient(func(batch lis2dw.Batch) {
//	    _ = w.WriteBatch(batch.Samples)
//	})
//
// The host connection that carries mcu.CommandChannel and feeds
// mcu.Registry.Dispatch is out of scope; any ordered transport works.
package mcusync

import (
	"io"

	"github.com/arloliu/mcusync/capture"
	"github.com/arloliu/mcusync/cs1237"
	"github.com/arloliu/mcusync/internal/hash"
	"github.com/arloliu/mcusync/lis2dw"
	"github.com/arloliu/mcusync/mcu"
)

// ResponseID returns the xxHash64 identifier the response registry uses
// for a response name. Useful for precomputing dispatch keys in a host
// connection reader.
func ResponseID(name string) uint64 {
	return hash.ID(name)
}

// NewAccelerometer creates a LIS2DW12 sensor on the given command channel
// and registers its response handlers.
func NewAccelerometer(channel mcu.CommandChannel, registry *mcu.Registry, clock mcu.Clock, bus mcu.Bus, oid uint8, opts ...lis2dw.Option) (*lis2dw.Sensor, error) {
	return lis2dw.New(channel, registry, clock, bus, oid, opts...)
}

// NewStrainGauge creates a CS1237 gauge on the given command channel and
// registers its response handlers.
func NewStrainGauge(channel mcu.CommandChannel, registry *mcu.Registry, clock mcu.Clock, oid uint8, opts ...cs1237.Option) (*cs1237.Gauge, error) {
	return cs1237.New(channel, registry, clock, oid, opts...)
}

// NewCaptureWriter creates a capture writer over w using a codec named in
// configuration: none, zstd, s2 or lz4.
func NewCaptureWriter(w io.Writer, compression string) (*capture.Writer, error) {
	kind, err := capture.ParseCompression(compression)
	if err != nil {
		return nil, err
	}

	return capture.NewWriter(w, kind)
}

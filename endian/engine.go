// Package endian provides byte order utilities for the sample wire format
// and the capture file format.
//
// The MCU reports packed sensor samples with low/high byte pairing per
// axis, and capture frames are written little-endian regardless of host
// architecture. This package combines the standard library ByteOrder and
// AppendByteOrder interfaces into a single EndianEngine so codecs can both
// read fixed offsets and append to buffers through one value.
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary.
// It is satisfied by binary.LittleEndian and binary.BigEndian.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Native determines the host's byte order at runtime.
func Native() binary.ByteOrder {
	// 0x0100 is 256. On a little-endian host the low byte (0x00) sits at
	// the lowest address; on a big-endian host the 0x01 does.
	var i uint16 = 0x0100
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// IsNativeLittleEndian reports whether the host is little-endian.
func IsNativeLittleEndian() bool {
	return Native() == binary.LittleEndian
}

// GetLittleEndianEngine returns the little-endian engine used by the
// sample decoder and capture codec.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

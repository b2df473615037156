package mcu

import (
	"fmt"

	"github.com/arloliu/mcusync/errs"
)

// Bus is the minimal register-access transport: a full-duplex transfer for
// reads and a fire-and-forget write that may be gated on a minimum device
// clock. Transport details (SPI mode, chip select, speed) live behind it.
type Bus interface {
	// Transfer sends tx and returns the bytes clocked back, one per byte
	// sent.
	Transfer(tx []byte) ([]byte, error)

	// Write sends data without reading a response. A non-zero minClock
	// defers the write until the device clock reaches it.
	Write(data []byte, minClock int64) error
}

// RegisterIO provides simple read-modify-verify access to device
// configuration registers during sensor bring-up.
//
// Writes are verified by reading the register back; a mismatch means the
// device is miswired or broken and surfaces as errs.ErrRegisterVerify.
type RegisterIO struct {
	bus Bus

	// readFlag is OR-ed into the register address to form a read request
	// (0x80 for LIS2DW12-style SPI register maps).
	readFlag uint8
}

// NewRegisterIO creates a register helper over the given bus.
func NewRegisterIO(bus Bus, readFlag uint8) *RegisterIO {
	return &RegisterIO{bus: bus, readFlag: readFlag}
}

// ReadReg reads one register.
func (r *RegisterIO) ReadReg(reg uint8) (uint8, error) {
	resp, err := r.bus.Transfer([]byte{reg | r.readFlag, 0x00})
	if err != nil {
		return 0, fmt.Errorf("read register %#02x: %w", reg, err)
	}
	if len(resp) < 2 {
		return 0, fmt.Errorf("read register %#02x: short response (%d bytes)", reg, len(resp))
	}

	return resp[1], nil
}

// SetReg writes one register and verifies the write by reading it back.
func (r *RegisterIO) SetReg(reg, val uint8) error {
	return r.SetRegAtClock(reg, val, 0)
}

// SetRegAtClock is SetReg with the write deferred to minClock.
func (r *RegisterIO) SetRegAtClock(reg, val uint8, minClock int64) error {
	if err := r.bus.Write([]byte{reg, val}, minClock); err != nil {
		return fmt.Errorf("write register %#02x: %w", reg, err)
	}

	stored, err := r.ReadReg(reg)
	if err != nil {
		return err
	}
	if stored != val {
		return fmt.Errorf("register %#02x: wrote %#02x, read back %#02x: %w",
			reg, val, stored, errs.ErrRegisterVerify)
	}

	return nil
}

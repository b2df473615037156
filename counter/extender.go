// Package counter extends narrow wrapping device counters into monotonic
// 64-bit values.
//
// MCU status responses report sample sequence numbers and error counts as
// their low 16 bits only, and the device clock as its low 32 bits. The host
// reconstructs full-width values by interpreting each report relative to
// the last reconstructed value. Reconstruction is unambiguous as long as no
// more than half the counter range elapses between observations; beyond
// that the session is desynchronized and must be restarted.
package counter

import (
	"fmt"

	"github.com/arloliu/mcusync/errs"
)

const (
	low16Mask = 0xFFFF
	low16Span = 0x10000
	signBit16 = 0x8000
)

// Extender reconstructs a monotonic non-decreasing int64 from a wrapping
// 16-bit counter. The zero value is ready to use and starts a session at 0.
//
// Extender tolerates duplicated status polls (same value reported twice)
// and missed polls of up to 32768 counts. An apparent backward movement of
// the reported value cannot be told apart from a forward wrap of more than
// 32768 counts, so it is surfaced as errs.ErrAmbiguousSequence instead of
// guessing; the extended value is left unchanged.
type Extender struct {
	last int64
}

// NewExtender creates an Extender starting at zero.
func NewExtender() *Extender {
	return &Extender{}
}

// Extend folds a reported low-16 counter value into the session counter
// and returns the reconstructed 64-bit value.
//
// The reported value is interpreted as a 16-bit two's-complement delta
// against the last reconstructed value. Deltas of 0..32768 counts advance
// the counter; anything that would require moving backwards is ambiguous.
func (e *Extender) Extend(reported uint16) (int64, error) {
	diff := (e.last - int64(reported)) & low16Mask
	if diff&signBit16 != 0 {
		diff -= low16Span
	}

	candidate := e.last - diff
	if candidate < e.last {
		// Clamping forward here would fabricate a jump of more than half
		// the counter range. That only happens when polls desynchronized
		// beyond recovery, so refuse rather than corrupt the timeline.
		return e.last, fmt.Errorf("reported %#04x against %#x: %w",
			reported, e.last, errs.ErrAmbiguousSequence)
	}

	e.last = candidate

	return candidate, nil
}

// Last returns the most recently reconstructed value.
func (e *Extender) Last() int64 {
	return e.last
}

// Reset restarts the session counter at zero. Must be called at every
// measurement-session start; stale values from a previous session would
// desynchronize the new one.
func (e *Extender) Reset() {
	e.last = 0
}

// ExtendFrom reconstructs the 64-bit value of a reported low-16 counter
// against an arbitrary base, without mutating any state. The sample block
// decoder uses this to re-derive each block's absolute index from the last
// reconciled session counter.
func ExtendFrom(base int64, reported uint16) int64 {
	diff := (base - int64(reported)) & low16Mask
	if diff&signBit16 != 0 {
		diff -= low16Span
	}

	return base - diff
}

// TickExtender reconstructs a 64-bit device tick count from its reported
// low 32 bits. Unlike Extender it picks the nearest interpretation in
// either direction: tick reports ride along status responses whose jitter
// can make them appear slightly behind the running estimate.
type TickExtender struct {
	last int64
}

// NewTickExtender creates a TickExtender starting at zero.
func NewTickExtender() *TickExtender {
	return &TickExtender{}
}

// Seed positions the extender at a known full-width tick value, typically
// the requested start clock of a measurement session.
func (e *TickExtender) Seed(tick int64) {
	e.last = tick
}

// Extend folds a reported low-32 tick value into the running count.
func (e *TickExtender) Extend(reported uint32) int64 {
	delta := int64(int32(reported - uint32(e.last)))
	e.last += delta

	return e.last
}

// Last returns the most recently reconstructed tick count.
func (e *TickExtender) Last() int64 {
	return e.last
}

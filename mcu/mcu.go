// Package mcu defines the host-side contracts for talking to a sensor
// microcontroller, plus the machinery built directly on top of them: the
// response registry, the single-slot command/response completion, and the
// register read-modify-verify helper.
//
// The transport itself (serial framing, SPI, retransmission) is out of
// scope; implementations of CommandChannel and Clock are provided by the
// host connection layer. The contracts are deliberately narrow:
//
//   - CommandChannel delivers opaque named commands with ordered integer
//     arguments, in order, at most once per call, with an optional minimum
//     device clock gating execution on the MCU.
//   - Registry delivers named, oid-scoped parameter maps asynchronously,
//     any time after registration, with no ordering guarantee against the
//     local call stack.
//   - Clock is the oracle converting between host monotonic time and the
//     device tick counter.
package mcu

// Params is one decoded response: field name to int64 or []byte value.
//
// A Params map is ephemeral; handlers that need its byte fields beyond the
// callback must copy them.
type Params map[string]any

// Int returns the named integer field, or 0 when absent.
func (p Params) Int(key string) int64 {
	return p.IntDefault(key, 0)
}

// IntDefault returns the named integer field, or def when absent or not
// an integer.
func (p Params) IntDefault(key string, def int64) int64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return def
	}
}

// Bytes returns the named byte-string field, or nil when absent.
func (p Params) Bytes(key string) []byte {
	v, ok := p[key]
	if !ok {
		return nil
	}
	b, _ := v.([]byte)

	return b
}

// Has reports whether the named field is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// CommandChannel is the single ordered command channel to the device.
type CommandChannel interface {
	// Send delivers the named command with its arguments. Ordered with
	// respect to other Send calls, at most once, no implicit retry.
	Send(name string, args []int64) error

	// SendAtClock is Send with a minimum device clock: the MCU defers
	// execution until its clock reaches minClock.
	SendAtClock(name string, args []int64, minClock int64) error
}

// Clock is the host clock oracle.
type Clock interface {
	// Monotonic returns host monotonic time in seconds.
	Monotonic() float64

	// SecondsToTicks converts a duration in seconds to device ticks.
	SecondsToTicks(seconds float64) int64

	// TimeToTicks converts an absolute host time to the estimated device
	// tick count at that time.
	TimeToTicks(t float64) int64

	// TicksToTime converts an absolute device tick count to estimated
	// host time in seconds. Satisfies clocksync.TickClock.
	TicksToTime(tick float64) float64
}

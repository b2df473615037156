// Package errs defines the sentinel errors shared across mcusync packages.
//
// Errors fall into three broad classes:
//
//   - Transient conditions that resolve on their own as more device status
//     polls accumulate (ErrClockNotSynced). Callers should retry on the
//     next batch.
//   - Session-fatal conditions that require restarting the measurement
//     session (ErrAmbiguousSequence, ErrDeviceUnresponsive after retry
//     exhaustion, ErrSelfCheckFailed).
//   - Caller-contract violations and expected asynchronous outcomes
//     (ErrAlreadyPending, ErrTimeout).
//
// All sentinels are plain errors suitable for errors.Is checks; callers
// wrap them with fmt.Errorf("...: %w", err) to add context.
package errs

import "errors"

var (
	// ErrClockNotSynced indicates the clock regression does not yet have
	// enough distinct status samples to produce a time translation.
	// Transient: retry once more polls have been observed.
	ErrClockNotSynced = errors.New("clock synchronization not ready")

	// ErrDeviceUnresponsive indicates a device status query failed after
	// exhausting the retry budget. Fatal for the current poll, not for
	// the process.
	ErrDeviceUnresponsive = errors.New("device unresponsive")

	// ErrAmbiguousSequence indicates the reported wrapping counter jumped
	// by more than half its range between polls, so the extended value
	// can no longer be recovered. The measurement session must be
	// restarted.
	ErrAmbiguousSequence = errors.New("ambiguous sequence counter wrap")

	// ErrAlreadyPending indicates Begin was called on a completion that
	// still holds an unconsumed pending slot. Callers must serialize
	// queries on one sensor instance.
	ErrAlreadyPending = errors.New("query already pending")

	// ErrTimeout indicates a completion wait deadline elapsed before the
	// response arrived.
	ErrTimeout = errors.New("wait deadline exceeded")

	// ErrNoPending indicates Wait was called on a completion with no
	// pending slot, i.e. without a matching Begin.
	ErrNoPending = errors.New("no pending query")

	// ErrRegisterVerify indicates a device register read-back did not
	// match the written value. Hard configuration or wiring fault.
	ErrRegisterVerify = errors.New("register read-back mismatch")

	// ErrSelfCheckFailed indicates the armed startup self-check ended in
	// the self-check fault band. Startup-fatal.
	ErrSelfCheckFailed = errors.New("sensor self-check failed")

	// ErrHashCollision indicates two distinct response names hash to the
	// same 64-bit identifier within one registry.
	ErrHashCollision = errors.New("response name hash collision")

	// ErrHandlerExists indicates a handler is already registered for the
	// same (response name, oid) pair.
	ErrHandlerExists = errors.New("response handler already registered")

	// ErrMeasurementActive indicates StartMeasurement was called while a
	// session is already running.
	ErrMeasurementActive = errors.New("measurement already active")

	// ErrNotMeasuring indicates an operation that requires an active
	// measurement session was called outside of one.
	ErrNotMeasuring = errors.New("no active measurement")

	// ErrInvalidAxesMap indicates an axes map entry does not name one of
	// x, y, z, -x, -y, -z.
	ErrInvalidAxesMap = errors.New("invalid axes map entry")

	// ErrInvalidRate indicates an unsupported sensor output data rate.
	ErrInvalidRate = errors.New("invalid sensor data rate")
)

// Capture file format errors.
var (
	// ErrInvalidMagic indicates a capture stream does not start with the
	// expected magic number.
	ErrInvalidMagic = errors.New("invalid capture magic number")

	// ErrInvalidFrame indicates a truncated or malformed capture frame.
	ErrInvalidFrame = errors.New("invalid capture frame")

	// ErrChecksumMismatch indicates a capture frame payload failed its
	// integrity check.
	ErrChecksumMismatch = errors.New("capture frame checksum mismatch")

	// ErrInvalidCompression indicates an unknown compression codec byte
	// in a capture header.
	ErrInvalidCompression = errors.New("invalid capture compression type")
)

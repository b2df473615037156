package lis2dw

import (
	"errors"
	"fmt"

	"github.com/arloliu/mcusync/errs"
	"github.com/arloliu/mcusync/mcu"
)

// fifoMask strips the FIFO threshold flag from the reported occupancy.
const fifoMask = 0x7F

// fifoSaneLimit is the highest occupancy accepted at face value; above it
// the chip FIFO is overflowing and the report is retried.
const fifoSaneLimit = 32

// queryStatus issues one status query through the single-slot completion,
// retrying transient failures up to the retry budget with no backoff.
// Exhausting the budget fails with errs.ErrDeviceUnresponsive naming the
// last underlying error.
func (s *Sensor) queryStatus() (mcu.Params, error) {
	var lastErr error

	for attempt := range statusRetries {
		if err := s.query.Begin(); err != nil {
			return nil, err
		}
		if err := s.channel.Send(cmdQueryStatus, []int64{int64(s.oid)}); err != nil {
			s.query.Cancel()
			lastErr = err
			continue
		}

		params, err := s.query.Wait(s.clock.Monotonic() + queryTimeout)
		if err != nil {
			lastErr = err
			s.logger.Debug("lis2dw12 status query retry",
				"oid", s.oid, "attempt", attempt+1, "error", err)
			continue
		}

		if fifo := params.Int("fifo") & fifoMask; fifo > fifoSaneLimit {
			lastErr = fmt.Errorf("fifo occupancy %d exceeds %d", fifo, fifoSaneLimit)
			continue
		}

		return params, nil
	}

	return nil, fmt.Errorf("unable to query lis2dw12 status (%v): %w",
		lastErr, errs.ErrDeviceUnresponsive)
}

// updateClock runs the status poll: it extends the wrapping counters and,
// when the query duration passes the adaptive filter, feeds the clock
// regression with the (tick midpoint, device sample count) pair.
//
// The duration filter is a heuristic, not a hard bound: a query that took
// longer than any recent one indicates scheduling noise, so its
// tick/sample-count pairing is unreliable and the point is skipped while
// the acceptance ceiling doubles. It may discard valid data after
// transient system load; the regression tolerates the gap.
func (s *Sensor) updateClock() error {
	params, err := s.queryStatus()
	if err != nil {
		return err
	}

	fifo := params.Int("fifo") & fifoMask
	clock64 := s.ticks.Extend(uint32(params.Int("clock")))

	seq, err := s.seq.Extend(uint16(params.Int("next_sequence")))
	if err != nil {
		return err
	}

	if _, err := s.overflow.Extend(uint16(params.Int("limit_count"))); err != nil {
		// An ambiguous overflow counter only skews statistics, not the
		// timeline; report it and keep the previous value.
		s.logger.Warn("lis2dw12 overflow counter desync",
			"oid", s.oid, "error", err)
		if !errors.Is(err, errs.ErrAmbiguousSequence) {
			return err
		}
	}

	duration := params.Int("query_ticks")
	if duration > s.maxQueryDuration {
		s.maxQueryDuration = max(2*s.maxQueryDuration, s.minQueryDuration)
		return nil
	}
	s.maxQueryDuration = 2 * duration

	buffered := params.Int("buffered")
	msgCount := seq*SamplesPerBlock + buffered/BytesPerSample + fifo
	chipClock := float64(msgCount + 1)

	s.sync.Update(float64(clock64)+float64(duration)/2, chipClock)
	s.sync.SetLastChipClock(chipClock)

	return nil
}

// Package clocksync reconstructs a host-time timeline for device samples.
//
// The device timestamps nothing: it only reports, at each status poll, its
// current tick count and how many samples it has produced so far. This
// package maintains a recency-weighted linear fit between the two so that
// any sample index can be translated into an estimated host time:
//
//	host_time = timeBase + (sampleIndex - chipBase) * invFreq
//
// The fit is undefined until at least two distinct status samples have been
// observed; translation fails explicitly with errs.ErrClockNotSynced until
// then rather than producing a bogus timeline.
package clocksync

import (
	"github.com/arloliu/mcusync/errs"
)

// defaultDecay is the exponential decay applied per update. Roughly the
// last twenty polls dominate the fit.
const defaultDecay = 1.0 / 20.0

// TickClock converts absolute device tick counts to host time in seconds.
// It is the narrow slice of the host clock oracle the regression needs.
type TickClock interface {
	TicksToTime(tick float64) float64
}

// Translation is a ready time translation in the host time domain.
type Translation struct {
	// TimeBase is the host time of the reference point.
	TimeBase float64
	// ChipBase is the device sample count at the reference point.
	ChipBase float64
	// InvFreq is host seconds per device sample. Always positive for a
	// ready translation.
	InvFreq float64
}

// TimeOf returns the estimated host time of the given device sample index.
func (t Translation) TimeOf(sampleIndex float64) float64 {
	return t.TimeBase + (sampleIndex-t.ChipBase)*t.InvFreq
}

// Regression maintains an exponentially weighted least-squares fit between
// device tick counts (x) and device sample counts (y).
//
// Regression is not safe for concurrent use; the status poller owns it and
// feeds it from serialized batch callbacks.
type Regression struct {
	clock TickClock

	// chipClockSmooth is the sample-count horizon used to converge the
	// published translation toward the raw fit without stepping
	// already-issued timestamps backwards.
	chipClockSmooth float64
	decay           float64

	tickAvg float64
	tickVar float64
	chipAvg float64
	chipCov float64

	lastChipClock   float64
	lastExpTick     float64
	points          int
	distinctSamples bool
	firstTick       float64
}

// NewRegression creates a regression smoothed over the given sample-count
// horizon. For a 1600Hz accelerometer stream a horizon of 640 samples
// (0.4s) matches the device poll cadence.
func NewRegression(clock TickClock, chipClockSmooth float64) *Regression {
	return &Regression{
		clock:           clock,
		chipClockSmooth: chipClockSmooth,
		decay:           defaultDecay,
	}
}

// Reset clears the fit and seeds it with a fresh reference point. It must
// be called exactly once per measurement-session start; reusing drift
// parameters across a stop/start boundary corrupts new timestamps.
func (r *Regression) Reset(tick, chipClock float64) {
	r.tickAvg = tick
	r.chipAvg = chipClock
	r.tickVar = 0
	r.chipCov = 0
	r.lastChipClock = 0
	r.lastExpTick = 0
	r.points = 1
	r.distinctSamples = false
	r.firstTick = tick
}

// Update feeds one accepted status sample into the fit. tick should be the
// midpoint tick of the status query and chipClock the device sample count
// it reported.
func (r *Regression) Update(tick, chipClock float64) {
	decay := r.decay
	diffTick := tick - r.tickAvg
	r.tickAvg += decay * diffTick
	r.tickVar = (1.0 - decay) * (r.tickVar + diffTick*diffTick*decay)
	diffChip := chipClock - r.chipAvg
	r.chipAvg += decay * diffChip
	r.chipCov = (1.0 - decay) * (r.chipCov + diffTick*diffChip*decay)

	r.points++
	if tick != r.firstTick {
		r.distinctSamples = true
	}
}

// SetLastChipClock records the device sample count the decoder most
// recently timestamped, anchoring the smoothed translation so consecutive
// batches stay time-ascending.
func (r *Regression) SetLastChipClock(chipClock float64) {
	baseTick, baseChip, invCFreq, err := r.clockTranslation()
	if err != nil {
		return
	}

	r.lastChipClock = chipClock
	r.lastExpTick = baseTick + (chipClock-baseChip)*invCFreq
}

// clockTranslation returns the fit in the device tick domain:
// (base tick, base sample count, ticks per sample).
func (r *Regression) clockTranslation() (float64, float64, float64, error) {
	if r.points < 2 || !r.distinctSamples || r.chipCov == 0 || r.tickVar <= 0 {
		return 0, 0, 0, errs.ErrClockNotSynced
	}

	invChipFreq := r.tickVar / r.chipCov
	if invChipFreq <= 0 {
		return 0, 0, 0, errs.ErrClockNotSynced
	}

	if r.lastChipClock == 0 {
		return r.tickAvg, r.chipAvg, invChipFreq, nil
	}

	// Project the raw fit one smoothing horizon past the last anchored
	// sample count, then pick the frequency that converges the anchored
	// estimate onto that point.
	sChipClock := r.lastChipClock + r.chipClockSmooth
	sTick := r.tickAvg + (sChipClock-r.chipAvg)*invChipFreq
	sInvChipFreq := (sTick - r.lastExpTick) / r.chipClockSmooth
	if sInvChipFreq <= 0 {
		return 0, 0, 0, errs.ErrClockNotSynced
	}

	return r.lastExpTick, r.lastChipClock, sInvChipFreq, nil
}

// TimeTranslation returns the current fit in the host time domain.
//
// It fails with errs.ErrClockNotSynced when fewer than two distinct status
// samples have been observed since Reset, or when the fit is degenerate
// (zero tick variance). This is a transient condition while polls
// accumulate, distinguishable from a runtime arithmetic fault.
func (r *Regression) TimeTranslation() (Translation, error) {
	baseTick, baseChip, invCFreq, err := r.clockTranslation()
	if err != nil {
		return Translation{}, err
	}

	baseTime := r.clock.TicksToTime(baseTick)
	invFreq := r.clock.TicksToTime(baseTick+invCFreq) - baseTime
	if invFreq <= 0 {
		return Translation{}, errs.ErrClockNotSynced
	}

	return Translation{TimeBase: baseTime, ChipBase: baseChip, InvFreq: invFreq}, nil
}

// Ready reports whether TimeTranslation would currently succeed.
func (r *Regression) Ready() bool {
	_, err := r.TimeTranslation()
	return err == nil
}

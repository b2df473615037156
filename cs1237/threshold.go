package cs1237

import (
	"fmt"
	"sort"
)

// Band is one named interval of the raw scalar.
type Band int

const (
	BandNormal Band = iota
	BandSelfCheckFault
	BandBlockFilament
	BandScratch
	BandHeadBlock
)

func (b Band) String() string {
	switch b {
	case BandNormal:
		return "normal"
	case BandSelfCheckFault:
		return "self-check-fault"
	case BandBlockFilament:
		return "block-filament"
	case BandScratch:
		return "scratch"
	case BandHeadBlock:
		return "head-block"
	}

	return fmt.Sprintf("band(%d)", int(b))
}

// Bands configures the lower bound of each non-normal band. Values at or
// above the highest bound are normal; each band covers the interval from
// its bound up to the next higher one. Every Gauge carries its own Bands
// value; instances never share threshold state.
type Bands struct {
	// SelfCheck is the self-check fault bound.
	SelfCheck int64
	// BlockFilament is the filament blockage bound.
	BlockFilament int64
	// Scratch is the surface scratch bound.
	Scratch int64
	// HeadBlock is the head blockage bound.
	HeadBlock int64
}

// DefaultBands returns the stock band bounds for the gauge hardware.
func DefaultBands() Bands {
	return Bands{
		SelfCheck:     -400,
		BlockFilament: -3000,
		Scratch:       -100000,
		HeadBlock:     -300000,
	}
}

type bandBound struct {
	band  Band
	bound int64
}

// Watcher classifies raw scalar readings into bands and detects band
// transitions. It is edge-triggered: Observe reports a crossing exactly
// once per transition and never while the signal stays inside one band.
//
// Watcher is not safe for concurrent use; the Gauge serializes access
// under its own lock.
type Watcher struct {
	// bounds sorted by bound descending; a reading below bounds[i].bound
	// but not below bounds[i+1].bound is in bounds[i].band.
	bounds []bandBound
	last   Band
}

// NewWatcher creates a watcher over the given bounds. The bounds must be
// pairwise distinct so the bands stay disjoint.
func NewWatcher(bands Bands) (*Watcher, error) {
	bounds := []bandBound{
		{BandSelfCheckFault, bands.SelfCheck},
		{BandBlockFilament, bands.BlockFilament},
		{BandScratch, bands.Scratch},
		{BandHeadBlock, bands.HeadBlock},
	}
	sort.Slice(bounds, func(i, j int) bool {
		return bounds[i].bound > bounds[j].bound
	})
	for i := 1; i < len(bounds); i++ {
		if bounds[i].bound == bounds[i-1].bound {
			return nil, fmt.Errorf("band bounds %s and %s are both %d",
				bounds[i-1].band, bounds[i].band, bounds[i].bound)
		}
	}

	return &Watcher{bounds: bounds, last: BandNormal}, nil
}

// Classify returns the band containing value without touching the edge
// detector.
func (w *Watcher) Classify(value int64) Band {
	band := BandNormal
	for _, b := range w.bounds {
		if value >= b.bound {
			break
		}
		band = b.band
	}

	return band
}

// Observe classifies value and reports whether a band transition
// occurred. Exactly one crossing is reported per transition.
func (w *Watcher) Observe(value int64) (Band, bool) {
	band := w.Classify(value)
	if band == w.last {
		return band, false
	}
	w.last = band

	return band, true
}

// Current returns the band of the most recent observation.
func (w *Watcher) Current() Band {
	return w.last
}

// Reset returns the edge detector to the normal band.
func (w *Watcher) Reset() {
	w.last = BandNormal
}

package cs1237

import (
	"fmt"

	"github.com/arloliu/mcusync/errs"
)

// Stimulus excites the gauge while a self-check watch is armed, e.g. by
// shaking the toolhead. It runs on the caller's goroutine.
type Stimulus func() error

// SelfCheck runs the armed startup self-check: it arms a band watch at
// the self-check sensitivity, fires the stimulus, waits the settle
// window, disarms the watch and inspects the resulting device state. A
// terminal self-check fault fails with errs.ErrSelfCheckFailed; callers
// treat that as a startup-fatal condition.
func (g *Gauge) SelfCheck(stimulus Stimulus) error {
	g.mu.Lock()
	sens := g.watcher.selfCheckBound()
	g.mu.Unlock()

	if err := g.checkStart(selfCheckPeriod, sens); err != nil {
		return fmt.Errorf("arm self-check watch: %w", err)
	}

	g.logger.Info("cs1237 self-check armed", "oid", g.oid, "sensitivity", sens)

	stimErr := stimulus()
	g.sleep(g.settle)

	if err := g.checkStop(); err != nil {
		return fmt.Errorf("disarm self-check watch: %w", err)
	}

	if stimErr != nil {
		return fmt.Errorf("self-check stimulus: %w", stimErr)
	}

	g.mu.Lock()
	state := g.state
	g.mu.Unlock()

	if state == StateSelfCheckErr {
		return fmt.Errorf("gauge state %#x: %w", state, errs.ErrSelfCheckFailed)
	}

	g.logger.Info("cs1237 self-check passed", "oid", g.oid, "state", state)

	return nil
}

// checkStart arms a band watch reporting every period seconds at the
// given sensitivity.
func (g *Gauge) checkStart(period float64, sensitivity int64) error {
	ticks := g.clock.SecondsToTicks(period)

	return g.channel.Send(cmdStartReport, []int64{int64(g.oid), 1, ticks, 0, sensitivity})
}

// checkStop disarms the band watch.
func (g *Gauge) checkStop() error {
	return g.channel.Send(cmdStartReport, []int64{int64(g.oid), 0, 0, 0, 0})
}

// selfCheckBound returns the self-check band bound.
func (w *Watcher) selfCheckBound() int64 {
	for _, b := range w.bounds {
		if b.band == BandSelfCheckFault {
			return b.bound
		}
	}

	return 0
}

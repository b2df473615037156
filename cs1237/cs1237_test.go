package cs1237

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/mcusync/errs"
	"github.com/arloliu/mcusync/mcu"
)

type simClock struct {
	now  float64
	freq float64
}

func (c *simClock) Monotonic() float64               { return c.now }
func (c *simClock) SecondsToTicks(s float64) int64   { return int64(s * c.freq) }
func (c *simClock) TimeToTicks(t float64) int64      { return int64(t * c.freq) }
func (c *simClock) TicksToTime(tick float64) float64 { return tick / c.freq }

type sentCmd struct {
	name string
	args []int64
}

// simChannel records sent commands and answers one-shot queries
// synchronously through the registry.
type simChannel struct {
	registry *mcu.Registry
	oid      uint8

	sent    []sentCmd
	sendErr error

	diffRaw   int64
	checkFlag int64
	mute      bool // suppress query responses
}

func (c *simChannel) Send(name string, args []int64) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, sentCmd{name: name, args: args})

	if c.mute {
		return nil
	}
	switch name {
	case cmdQueryDiff:
		c.registry.Dispatch(rspDiff, c.oid, mcu.Params{"raw": c.diffRaw})
	case cmdCheckSelf:
		c.registry.Dispatch(rspCheckFlag, c.oid, mcu.Params{"flag": c.checkFlag})
	}

	return nil
}

func (c *simChannel) SendAtClock(name string, args []int64, _ int64) error {
	return c.Send(name, args)
}

func (c *simChannel) lastSent(t *testing.T) sentCmd {
	t.Helper()
	require.NotEmpty(t, c.sent)

	return c.sent[len(c.sent)-1]
}

type fixture struct {
	clock    *simClock
	registry *mcu.Registry
	channel  *simChannel
	gauge    *Gauge
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	clock := &simClock{freq: 1e6}
	registry := mcu.NewRegistry()
	channel := &simChannel{registry: registry, oid: 7}

	gauge, err := New(channel, registry, clock, 7, opts...)
	require.NoError(t, err)

	// No real sleeping in tests; the settle window is asserted by value.
	gauge.sleep = func(time.Duration) {}

	return &fixture{clock: clock, registry: registry, channel: channel, gauge: gauge}
}

// report dispatches one live gauge report.
func (f *fixture) report(adc, raw, state int64) {
	f.registry.Dispatch(rspState, 7, mcu.Params{"adc": adc, "raw": raw, "state": state})
}

func TestGauge_ReportUpdatesStatus(t *testing.T) {
	f := newFixture(t)

	f.report(1234, -50, 0)

	st := f.gauge.Status()
	require.Equal(t, int64(1234), st.ADC)
	require.Equal(t, int64(-50), st.Raw)
	require.Equal(t, int64(0), st.State)
	require.Equal(t, BandNormal, st.Band)
}

func TestGauge_ThresholdEvents(t *testing.T) {
	f := newFixture(t)

	var events []ThresholdEvent
	f.gauge.OnThreshold(func(e ThresholdEvent) { events = append(events, e) })

	for _, raw := range []int64{0, -100, -5000, -5100, -20} {
		f.report(0, raw, 0)
	}

	// Edge-triggered: one event entering block-filament, one back out.
	require.Len(t, events, 2)
	require.Equal(t, BandBlockFilament, events[0].Band)
	require.Equal(t, int64(-5000), events[0].Value)
	require.Equal(t, BandNormal, events[1].Band)
	require.Equal(t, int64(-20), events[1].Value)
}

func TestGauge_ClientRefCounting(t *testing.T) {
	f := newFixture(t, WithSampleRate(10), WithSensitivity(-2500))

	var got []Reading
	id1, err := f.gauge.AddClient(func(r Reading) bool {
		got = append(got, r)
		return true
	})
	require.NoError(t, err)

	// First client arms reporting at 10 samples per second.
	cmd := f.channel.lastSent(t)
	require.Equal(t, cmdStartReport, cmd.name)
	require.Equal(t, []int64{7, 1, 100000, 0, -2500}, cmd.args)

	// Second client must not re-arm.
	sends := len(f.channel.sent)
	id2, err := f.gauge.AddClient(func(Reading) bool { return true })
	require.NoError(t, err)
	require.Len(t, f.channel.sent, sends)

	f.report(10, -30, 0)
	require.Len(t, got, 1)
	require.Equal(t, int64(-30), got[0].Raw)

	// Removing one client keeps reporting armed.
	f.gauge.RemoveClient(id2)
	require.Len(t, f.channel.sent, sends)

	// Removing the last client disarms it.
	f.gauge.RemoveClient(id1)
	cmd = f.channel.lastSent(t)
	require.Equal(t, cmdStartReport, cmd.name)
	require.Equal(t, int64(0), cmd.args[1])
}

func TestGauge_ClientAutoUnsubscribe(t *testing.T) {
	f := newFixture(t)

	calls := 0
	_, err := f.gauge.AddClient(func(Reading) bool {
		calls++
		return false
	})
	require.NoError(t, err)

	f.report(0, -10, 0)
	require.Equal(t, 1, calls)

	// The client removed itself; reporting was disarmed and further
	// reports do not reach it.
	cmd := f.channel.lastSent(t)
	require.Equal(t, cmdStartReport, cmd.name)
	require.Equal(t, int64(0), cmd.args[1])

	f.report(0, -20, 0)
	require.Equal(t, 1, calls)
}

func TestGauge_QueryDiff(t *testing.T) {
	f := newFixture(t)
	f.channel.diffRaw = -777

	raw, err := f.gauge.QueryDiff()
	require.NoError(t, err)
	require.Equal(t, int64(-777), raw)
	require.Equal(t, int64(-777), f.gauge.Status().Raw)
}

func TestGauge_QueryDiff_SendFailureClearsSlot(t *testing.T) {
	f := newFixture(t)

	f.channel.sendErr = errors.New("serial write failed")
	_, err := f.gauge.QueryDiff()
	require.ErrorContains(t, err, "serial write failed")

	// The slot was cancelled, so the next query begins cleanly.
	f.channel.sendErr = nil
	f.channel.diffRaw = 42
	raw, err := f.gauge.QueryDiff()
	require.NoError(t, err)
	require.Equal(t, int64(42), raw)
}

func TestGauge_QueryDiff_Timeout(t *testing.T) {
	f := newFixture(t)
	f.channel.mute = true

	// With the response suppressed the wait runs out the full query
	// timeout before failing.
	done := make(chan error, 1)
	go func() {
		_, err := f.gauge.QueryDiff()
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, errs.ErrTimeout)
	case <-time.After(5 * time.Second):
		t.Fatal("query did not time out")
	}
}

func TestGauge_CheckSelf(t *testing.T) {
	f := newFixture(t)
	f.channel.checkFlag = 3

	flag, err := f.gauge.CheckSelf(1)
	require.NoError(t, err)
	require.Equal(t, int64(3), flag)
	require.Equal(t, int64(3), f.gauge.Status().CheckFlag)

	cmd := f.channel.lastSent(t)
	require.Equal(t, cmdCheckSelf, cmd.name)
	require.Equal(t, []int64{7, 1}, cmd.args)
}

func TestGauge_CheckSelf_WriteRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.gauge.CheckSelf(-1)
	require.Error(t, err)
	_, err = f.gauge.CheckSelf(4)
	require.Error(t, err)
}

func TestGauge_EnableAndReset(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.gauge.Enable(true))
	cmd := f.channel.lastSent(t)
	require.Equal(t, cmdEnable, cmd.name)
	require.Equal(t, []int64{7, 1}, cmd.args)

	require.NoError(t, f.gauge.Enable(false))
	require.Equal(t, []int64{7, 0}, f.channel.lastSent(t).args)

	require.NoError(t, f.gauge.Reset(3))
	cmd = f.channel.lastSent(t)
	require.Equal(t, cmdReset, cmd.name)
	require.Equal(t, []int64{7, 3}, cmd.args)

	require.Error(t, f.gauge.Reset(0))
	require.Error(t, f.gauge.Reset(11))
}

func TestGauge_SelfCheckPasses(t *testing.T) {
	f := newFixture(t)

	var settled time.Duration
	f.gauge.sleep = func(d time.Duration) { settled = d }

	stimulated := false
	err := f.gauge.SelfCheck(func() error {
		stimulated = true
		// A transient self-check excursion during the stimulus that
		// recovers before the watch is disarmed.
		f.report(0, -900, StateSelfCheck)
		f.report(0, -10, 0)
		return nil
	})
	require.NoError(t, err)
	require.True(t, stimulated)
	require.Equal(t, defaultSettleTime, settled)

	// Armed with the self-check sensitivity, then disarmed.
	require.GreaterOrEqual(t, len(f.channel.sent), 2)
	arm := f.channel.sent[0]
	require.Equal(t, cmdStartReport, arm.name)
	require.Equal(t, []int64{7, 1, 1000000, 0, -400}, arm.args)
	disarm := f.channel.lastSent(t)
	require.Equal(t, []int64{7, 0, 0, 0, 0}, disarm.args)
}

func TestGauge_SelfCheckTerminalFault(t *testing.T) {
	f := newFixture(t)

	err := f.gauge.SelfCheck(func() error {
		f.report(0, -900, StateSelfCheckErr)
		return nil
	})
	require.ErrorIs(t, err, errs.ErrSelfCheckFailed)
}

func TestGauge_SelfCheckStimulusError(t *testing.T) {
	f := newFixture(t)

	stimErr := errors.New("resonance sweep failed")
	err := f.gauge.SelfCheck(func() error { return stimErr })
	require.ErrorIs(t, err, stimErr)

	// The watch is still disarmed on the way out.
	require.Equal(t, []int64{7, 0, 0, 0, 0}, f.channel.lastSent(t).args)
}

func TestGauge_CustomBands(t *testing.T) {
	f := newFixture(t, WithBands(Bands{
		SelfCheck:     -10,
		BlockFilament: -20,
		Scratch:       -30,
		HeadBlock:     -40,
	}))

	f.report(0, -25, 0)
	require.Equal(t, BandBlockFilament, f.gauge.Status().Band)
}

func TestNew_InvalidOptions(t *testing.T) {
	clock := &simClock{freq: 1e6}
	registry := mcu.NewRegistry()
	channel := &simChannel{registry: registry, oid: 7}

	_, err := New(channel, registry, clock, 7, WithSampleRate(0))
	require.Error(t, err)

	_, err = New(channel, registry, clock, 7, WithBands(Bands{}))
	require.Error(t, err)
}

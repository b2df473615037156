package mcu

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/mcusync/errs"
)

// testClock implements Clock over the real monotonic clock at a simulated
// 1MHz device frequency.
type testClock struct {
	start time.Time
	freq  float64
}

func newTestClock() *testClock {
	return &testClock{start: time.Now(), freq: 1e6}
}

func (c *testClock) Monotonic() float64 {
	return time.Since(c.start).Seconds()
}

func (c *testClock) SecondsToTicks(seconds float64) int64 {
	return int64(seconds * c.freq)
}

func (c *testClock) TimeToTicks(t float64) int64 {
	return int64(t * c.freq)
}

func (c *testClock) TicksToTime(tick float64) float64 {
	return tick / c.freq
}

func TestCompletion_CompleteBeforeWait(t *testing.T) {
	clock := newTestClock()
	c := NewCompletion(clock)

	require.NoError(t, c.Begin())
	c.Complete(Params{"flag": int64(1)})

	params, err := c.Wait(clock.Monotonic() + 1.0)
	require.NoError(t, err)
	require.Equal(t, int64(1), params.Int("flag"))
}

func TestCompletion_AsyncComplete(t *testing.T) {
	clock := newTestClock()
	c := NewCompletion(clock)

	require.NoError(t, c.Begin())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		c.Complete(Params{"raw": int64(-250)})
	}()

	params, err := c.Wait(clock.Monotonic() + 2.0)
	require.NoError(t, err)
	require.Equal(t, int64(-250), params.Int("raw"))
	wg.Wait()
}

func TestCompletion_Timeout(t *testing.T) {
	clock := newTestClock()
	c := NewCompletion(clock)

	require.NoError(t, c.Begin())

	start := clock.Monotonic()
	deadline := start + 0.02
	_, err := c.Wait(deadline)
	require.ErrorIs(t, err, errs.ErrTimeout)
	require.GreaterOrEqual(t, clock.Monotonic(), deadline)
}

func TestCompletion_BeginWhilePending(t *testing.T) {
	c := NewCompletion(newTestClock())

	require.NoError(t, c.Begin())
	require.ErrorIs(t, c.Begin(), errs.ErrAlreadyPending)
}

func TestCompletion_StaleCompleteDoesNotLeak(t *testing.T) {
	clock := newTestClock()
	c := NewCompletion(clock)

	// First query times out.
	require.NoError(t, c.Begin())
	_, err := c.Wait(clock.Monotonic() + 0.01)
	require.ErrorIs(t, err, errs.ErrTimeout)

	// The late response for the first query arrives now; it must be
	// dropped, not delivered to the next unrelated query.
	c.Complete(Params{"stale": int64(1)})

	require.NoError(t, c.Begin())
	_, err = c.Wait(clock.Monotonic() + 0.01)
	require.ErrorIs(t, err, errs.ErrTimeout)
}

func TestCompletion_CompleteWithoutBeginIsNoop(t *testing.T) {
	c := NewCompletion(newTestClock())
	c.Complete(Params{"unsolicited": int64(1)})

	require.NoError(t, c.Begin())
}

func TestCompletion_WaitWithoutBegin(t *testing.T) {
	c := NewCompletion(newTestClock())
	_, err := c.Wait(1.0)
	require.ErrorIs(t, err, errs.ErrNoPending)
}

func TestCompletion_ReusableAcrossQueries(t *testing.T) {
	clock := newTestClock()
	c := NewCompletion(clock)

	for i := range 3 {
		require.NoError(t, c.Begin())
		c.Complete(Params{"n": int64(i)})
		params, err := c.Wait(clock.Monotonic() + 1.0)
		require.NoError(t, err)
		require.Equal(t, int64(i), params.Int("n"))
	}
}

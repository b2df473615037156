package mcusync

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/mcusync/lis2dw"
	"github.com/arloliu/mcusync/mcu"
)

type stubClock struct{}

func (stubClock) Monotonic() float64               { return 0 }
func (stubClock) SecondsToTicks(s float64) int64   { return int64(s * 1e6) }
func (stubClock) TimeToTicks(t float64) int64      { return int64(t * 1e6) }
func (stubClock) TicksToTime(tick float64) float64 { return tick / 1e6 }

type stubChannel struct{}

func (stubChannel) Send(string, []int64) error             { return nil }
func (stubChannel) SendAtClock(string, []int64, int64) error { return nil }

type stubBus struct{}

func (stubBus) Transfer(tx []byte) ([]byte, error) { return make([]byte, len(tx)), nil }
func (stubBus) Write([]byte, int64) error          { return nil }

func TestResponseID(t *testing.T) {
	id := ResponseID("lis2dw12_status")
	require.NotZero(t, id)
	require.Equal(t, id, ResponseID("lis2dw12_status"))
	require.NotEqual(t, id, ResponseID("cs1237_state"))
}

func TestNewAccelerometer(t *testing.T) {
	registry := mcu.NewRegistry()
	sensor, err := NewAccelerometer(stubChannel{}, registry, stubClock{}, stubBus{}, 1,
		lis2dw.WithRate(800))
	require.NoError(t, err)
	require.NotNil(t, sensor)

	// The response handlers are registered under the sensor's oid.
	require.True(t, registry.Dispatch("lis2dw12_data", 1, mcu.Params{
		"sequence": int64(0), "data": []byte{},
	}))
	require.False(t, registry.Dispatch("lis2dw12_data", 2, mcu.Params{}))
}

func TestNewStrainGauge(t *testing.T) {
	registry := mcu.NewRegistry()
	gauge, err := NewStrainGauge(stubChannel{}, registry, stubClock{}, 2)
	require.NoError(t, err)
	require.NotNil(t, gauge)
	require.True(t, registry.Dispatch("cs1237_state", 2, mcu.Params{
		"adc": int64(1), "raw": int64(-5), "state": int64(0),
	}))
}

func TestNewCaptureWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCaptureWriter(&buf, "s2")
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch([]lis2dw.Sample{{Time: 1, X: 2, Y: 3, Z: 4}}))
	require.Equal(t, 1, w.Frames())

	_, err = NewCaptureWriter(&buf, "brotli")
	require.Error(t, err)
}

// Package lis2dw reads bulk acceleration data from a LIS2DW12 chip behind
// a sensor MCU.
//
// The MCU drains the chip FIFO on its own schedule and pushes packed
// sample blocks to the host asynchronously; nothing in the stream carries
// a timestamp. The host reconstructs the timeline by periodically querying
// the MCU's buffer state (Status Poller), extending the wrapping sequence
// and tick counters to full width (counter package), and fitting device
// ticks against the device sample count (clocksync package). Each decoded
// sample is then assigned a synthesized host timestamp.
//
// A measurement session is driven by a fixed-period batch timer: every
// interval the poller runs, pending raw blocks are swapped out and decoded
// into calibrated Sample values, and the resulting Batch is fanned out to
// registered clients. All session state is rebuilt from scratch on
// StartMeasurement.
package lis2dw

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arloliu/mcusync/clocksync"
	"github.com/arloliu/mcusync/counter"
	"github.com/arloliu/mcusync/errs"
	"github.com/arloliu/mcusync/internal/options"
	"github.com/arloliu/mcusync/mcu"
)

// LIS2DW12 register map (read requests OR the register with RegModRead).
const (
	RegDevID    = 0x0F
	RegCtrl1    = 0x20
	RegCtrl6    = 0x25
	RegFIFOCtrl = 0x2E
	RegModRead  = 0x80
)

// Device constants.
const (
	DevID           = 0x44
	PowerOff        = 0x00
	SetCtrl1Mode    = 0x04
	SetFIFOCtl      = 0xC0
	SetCtrl6ODRFS   = 0x04
	FreefallAccel   = 9.80665 * 1000.0
	ScaleXY         = 0.000244140625 * FreefallAccel
	ScaleZ          = 0.000244140625 * FreefallAccel
	BytesPerSample  = 6
	SamplesPerBlock = 8
)

// queryRates maps supported output data rates (Hz) to CTRL1 ODR bits.
var queryRates = map[int]int64{
	25: 0x3, 50: 0x4, 100: 0x5, 200: 0x6, 400: 0x7, 800: 0x8, 1600: 0x9,
}

const (
	// minMsgTime delays the start of bulk reading so the start command
	// never targets a device clock already in the past.
	minMsgTime = 0.100

	// batchInterval is the default batch timer period.
	batchInterval = 0.100

	// chipClockSmooth is the default clock regression smoothing horizon
	// in device sample counts.
	chipClockSmooth = 640

	// queryTimeout bounds one status query round trip.
	queryTimeout = 1.0

	// statusRetries is the per-poll status query retry budget.
	statusRetries = 5

	// minQueryDurationSecs floors the adaptive query duration filter.
	minQueryDurationSecs = 0.000005
)

// Command and response names in the device dictionary.
const (
	cmdQuery       = "query_lis2dw12"
	cmdQueryStatus = "query_lis2dw12_status"
	rspData        = "lis2dw12_data"
	rspStatus      = "lis2dw12_status"
)

// AxisMapping selects the raw axis and signed physical scale feeding one
// output axis.
type AxisMapping struct {
	// Index is the raw axis (0=x, 1=y, 2=z) feeding this output axis.
	Index int
	// Scale converts the raw reading to physical units (mm/s²); negative
	// to mirror the axis.
	Scale float64
}

// Sample is one calibrated acceleration reading.
type Sample struct {
	// Time is the synthesized host timestamp in seconds.
	Time float64
	// X, Y, Z are accelerations in mm/s² after axis remap and scaling.
	X, Y, Z float64
}

// Batch is the result of one batch flush.
type Batch struct {
	// Samples are time-ascending decoded readings.
	Samples []Sample
	// Errors counts decode failures since session start.
	Errors int64
	// Overflows is the monotonic device FIFO overflow counter.
	Overflows int64
}

// BatchHandler consumes one flushed batch. Handlers run on the batch timer
// goroutine and must not block.
type BatchHandler func(Batch)

// rawBlock is one pushed chunk of packed samples, held until the next
// batch flush.
type rawBlock struct {
	sequence uint16
	data     []byte
}

// Status is a point-in-time snapshot of the measurement session.
type Status struct {
	Running bool
	// Latest is the most recently decoded sample.
	Latest Sample
	// Sequence is the reconciled 64-bit block sequence counter.
	Sequence int64
	// Errors counts decode failures since session start.
	Errors int64
	// Overflows is the monotonic device FIFO overflow counter.
	Overflows int64
}

// Sensor is one LIS2DW12 instance on the MCU command channel.
type Sensor struct {
	channel  mcu.CommandChannel
	registry *mcu.Registry
	clock    mcu.Clock
	regs     *mcu.RegisterIO
	query    *mcu.Completion
	oid      uint8
	logger   *slog.Logger

	axesMap  [3]AxisMapping
	rate     int
	interval float64
	smooth   float64

	mu       sync.Mutex
	running  bool
	blocks   []rawBlock
	clients  []BatchHandler
	latest   Sample
	errCount int64
	stop     chan struct{}
	done     chan struct{}

	// Timeline state, touched only from the serialized batch path.
	seq      *counter.Extender
	overflow *counter.Extender
	ticks    *counter.TickExtender
	sync     *clocksync.Regression

	maxQueryDuration int64
	minQueryDuration int64
}

// Option configures a Sensor.
type Option = options.Option[*Sensor]

// WithAxesMap remaps output axes; each entry is one of x, y, z, -x, -y,
// -z, naming the raw axis (negated to mirror) feeding that output axis.
func WithAxesMap(x, y, z string) Option {
	return options.New(func(s *Sensor) error {
		names := [3]string{x, y, z}
		am := map[string]AxisMapping{
			"x": {0, ScaleXY}, "y": {1, ScaleXY}, "z": {2, ScaleZ},
			"-x": {0, -ScaleXY}, "-y": {1, -ScaleXY}, "-z": {2, -ScaleZ},
		}
		for i, n := range names {
			m, ok := am[n]
			if !ok {
				return fmt.Errorf("axes map entry %q: %w", n, errs.ErrInvalidAxesMap)
			}
			s.axesMap[i] = m
		}

		return nil
	})
}

// WithRate sets the output data rate in Hz (25..1600).
func WithRate(rate int) Option {
	return options.New(func(s *Sensor) error {
		if _, ok := queryRates[rate]; !ok {
			return fmt.Errorf("rate %d: %w", rate, errs.ErrInvalidRate)
		}
		s.rate = rate

		return nil
	})
}

// WithBatchInterval sets the batch timer period in seconds.
func WithBatchInterval(seconds float64) Option {
	return options.New(func(s *Sensor) error {
		if seconds <= 0 {
			return fmt.Errorf("batch interval %v must be positive", seconds)
		}
		s.interval = seconds

		return nil
	})
}

// WithSmoothing sets the clock regression smoothing horizon in device
// sample counts.
func WithSmoothing(sampleCounts float64) Option {
	return options.New(func(s *Sensor) error {
		if sampleCounts <= 0 {
			return fmt.Errorf("smoothing horizon %v must be positive", sampleCounts)
		}
		s.smooth = sampleCounts

		return nil
	})
}

// WithLogger sets the structured logger; defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(s *Sensor) {
		s.logger = logger
	})
}

// New creates a Sensor with the given collaborators and registers its
// response handlers with the registry.
func New(channel mcu.CommandChannel, registry *mcu.Registry, clock mcu.Clock, bus mcu.Bus, oid uint8, opts ...Option) (*Sensor, error) {
	s := &Sensor{
		channel:  channel,
		registry: registry,
		clock:    clock,
		regs:     mcu.NewRegisterIO(bus, RegModRead),
		query:    mcu.NewCompletion(clock),
		oid:      oid,
		logger:   slog.Default(),
		axesMap: [3]AxisMapping{
			{0, ScaleXY}, {1, ScaleXY}, {2, ScaleZ},
		},
		rate:     1600,
		interval: batchInterval,
		smooth:   chipClockSmooth,
		seq:      counter.NewExtender(),
		overflow: counter.NewExtender(),
		ticks:    counter.NewTickExtender(),
	}

	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	s.sync = clocksync.NewRegression(clock, s.smooth)
	s.minQueryDuration = clock.SecondsToTicks(minQueryDurationSecs)

	if err := registry.Register(rspData, oid, s.handleData); err != nil {
		return nil, err
	}
	if err := registry.Register(rspStatus, oid, s.query.Complete); err != nil {
		registry.Unregister(rspData, oid)
		return nil, err
	}

	return s, nil
}

// handleData buffers one pushed sample block until the next batch flush.
func (s *Sensor) handleData(params mcu.Params) {
	data := params.Bytes("data")
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.blocks = append(s.blocks, rawBlock{
		sequence: uint16(params.Int("sequence")),
		data:     buf,
	})
	s.mu.Unlock()
}

// AddClient subscribes a batch handler. Clients added while a session is
// running see batches from the next flush on.
func (s *Sensor) AddClient(h BatchHandler) {
	s.mu.Lock()
	s.clients = append(s.clients, h)
	s.mu.Unlock()
}

// StartMeasurement brings up the chip, arms bulk reading and resets all
// timeline state. It fails with errs.ErrMeasurementActive when a session
// is already running, and with a register or device identity error when
// the chip does not respond correctly.
func (s *Sensor) StartMeasurement() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errs.ErrMeasurementActive
	}
	s.mu.Unlock()

	devID, err := s.regs.ReadReg(RegDevID)
	if err != nil {
		return err
	}
	if devID != DevID {
		return fmt.Errorf("invalid lis2dw12 id (got %#x vs %#x)", devID, DevID)
	}

	ctrl1 := uint8(queryRates[s.rate]<<4) | SetCtrl1Mode
	if err := s.regs.SetReg(RegCtrl1, ctrl1); err != nil {
		return err
	}
	if err := s.regs.SetReg(RegFIFOCtrl, PowerOff); err != nil {
		return err
	}
	if err := s.regs.SetReg(RegCtrl6, SetCtrl6ODRFS); err != nil {
		return err
	}
	if err := s.regs.SetReg(RegFIFOCtrl, SetFIFOCtl); err != nil {
		return err
	}

	reqClock := s.clock.TimeToTicks(s.clock.Monotonic() + minMsgTime)
	restTicks := s.clock.SecondsToTicks(4.0 / float64(s.rate))
	if err := s.channel.Send(cmdQuery, []int64{int64(s.oid), reqClock, restTicks}); err != nil {
		return fmt.Errorf("start bulk reading: %w", err)
	}

	s.mu.Lock()
	s.blocks = nil
	s.latest = Sample{}
	s.errCount = 0
	s.seq.Reset()
	s.overflow.Reset()
	s.ticks.Seed(reqClock)
	s.sync.Reset(float64(reqClock), 0)
	s.maxQueryDuration = 1 << 31
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.batchLoop(s.stop, s.done)

	s.logger.Info("lis2dw12 measurement started",
		"oid", s.oid, "rate", s.rate, "req_clock", reqClock)

	return nil
}

// StopMeasurement stops bulk reading and tears down the session. The
// timeline state becomes invalid and is rebuilt on the next start.
func (s *Sensor) StopMeasurement() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errs.ErrNotMeasuring
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done

	if err := s.regs.SetReg(RegFIFOCtrl, PowerOff); err != nil {
		return err
	}
	if err := s.channel.Send(cmdQuery, []int64{int64(s.oid), 0, 0}); err != nil {
		return fmt.Errorf("stop bulk reading: %w", err)
	}
	if err := s.regs.SetReg(RegFIFOCtrl, PowerOff); err != nil {
		return err
	}

	s.logger.Info("lis2dw12 measurement stopped", "oid", s.oid)

	return nil
}

// Status returns a snapshot of the session.
func (s *Sensor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Running:   s.running,
		Latest:    s.latest,
		Sequence:  s.seq.Last(),
		Errors:    s.errCount,
		Overflows: s.overflow.Last(),
	}
}

// batchLoop drives the batch timer until stop is closed. Batch failures
// are reported and the loop keeps running; they are fatal for one poll,
// not for the session.
func (s *Sensor) batchLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Duration(s.interval * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			batch, err := s.ProcessBatch()
			if err != nil {
				s.logger.Warn("lis2dw12 batch failed", "oid", s.oid, "error", err)
				continue
			}
			if len(batch.Samples) == 0 {
				continue
			}
			s.mu.Lock()
			clients := s.clients
			s.mu.Unlock()
			for _, h := range clients {
				h(batch)
			}
		}
	}
}

// ProcessBatch runs one poll-and-flush cycle: it queries device status,
// feeds the timeline state, swaps out the pending raw blocks and decodes
// them. A failed batch discards the swapped blocks and returns the error;
// the session stays usable.
func (s *Sensor) ProcessBatch() (Batch, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return Batch{}, errs.ErrNotMeasuring
	}
	s.mu.Unlock()

	if err := s.updateClock(); err != nil {
		return Batch{}, err
	}

	// Swap the buffer in a single assignment so a concurrently arriving
	// block is never lost or double-counted.
	s.mu.Lock()
	blocks := s.blocks
	s.blocks = nil
	s.mu.Unlock()

	if len(blocks) == 0 {
		return Batch{Errors: s.errCount, Overflows: s.overflow.Last()}, nil
	}

	samples, err := s.extractSamples(blocks)
	if err != nil {
		s.mu.Lock()
		s.errCount++
		errCount := s.errCount
		s.mu.Unlock()

		return Batch{Errors: errCount, Overflows: s.overflow.Last()},
			fmt.Errorf("decode batch of %d blocks: %w", len(blocks), err)
	}

	s.mu.Lock()
	if len(samples) > 0 {
		s.latest = samples[len(samples)-1]
	}
	batch := Batch{
		Samples:   samples,
		Errors:    s.errCount,
		Overflows: s.overflow.Last(),
	}
	s.mu.Unlock()

	return batch, nil
}

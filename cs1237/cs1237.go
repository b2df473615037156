// Package cs1237 reads a CS1237 strain gauge ADC behind a sensor MCU.
//
// Unlike the bulk accelerometer stream, the gauge reports one scalar
// reading at a time on a fixed device-side period. The host subscribes
// clients to the live stream, classifies each reading into a named
// threshold band (threshold.go) and emits one event per band transition.
// One-shot raw-diff and self-check queries run over the same single-slot
// completion used for status polling elsewhere.
package cs1237

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arloliu/mcusync/internal/options"
	"github.com/arloliu/mcusync/mcu"
)

// Device state bits as reported in the "state" field of a report. The
// error flag marks a state the device considers terminal.
const (
	StateSelfCheck     = 1 << 0
	StateScratch       = 1 << 1
	StateBlockFilament = 1 << 2
	StateHeadBlock     = 1 << 3
	StateErrFlag       = 0x80

	StateSelfCheckErr     = StateSelfCheck | StateErrFlag
	StateScratchErr       = StateScratch | StateErrFlag
	StateBlockFilamentErr = StateBlockFilament | StateErrFlag
	StateHeadBlockErr     = StateHeadBlock | StateErrFlag
)

const (
	// defaultSensitivity is the device-side trigger threshold armed with
	// each report command.
	defaultSensitivity = -2500

	// defaultSampleRate is the live report rate in samples per second.
	defaultSampleRate = 10

	// defaultSettleTime is the self-check stimulus settle window.
	defaultSettleTime = 3 * time.Second

	// queryTimeout bounds one diff or self-check query round trip.
	queryTimeout = 2.0

	// selfCheckPeriod is the report period while a self-check watch is
	// armed.
	selfCheckPeriod = 1.0
)

// Command and response names in the device dictionary.
const (
	cmdStartReport = "start_cs1237_report"
	cmdEnable      = "enable_cs1237"
	cmdReset       = "reset_cs1237"
	cmdCheckSelf   = "checkself_cs1237"
	cmdQueryDiff   = "query_cs1237_diff"
	rspState       = "cs1237_state"
	rspDiff        = "cs1237_diff"
	rspCheckFlag   = "cs1237_checkself_flag"
)

// Reading is one live gauge report.
type Reading struct {
	// Time is the host monotonic time the report arrived.
	Time float64
	// ADC is the filtered ADC value.
	ADC int64
	// Raw is the raw scalar the threshold bands classify.
	Raw int64
	// State is the device-side state bit field.
	State int64
}

// ReadingHandler consumes one live reading. Handlers run on the dispatch
// goroutine and must not block. Returning false unsubscribes the client.
type ReadingHandler func(Reading) bool

// ThresholdEvent is one edge-triggered band transition.
type ThresholdEvent struct {
	// Time is the host monotonic time of the reading that crossed.
	Time float64
	// Band is the band just entered.
	Band Band
	// Value is the raw scalar that crossed.
	Value int64
}

// ThresholdHandler consumes one band transition event. Handlers run on
// the dispatch goroutine and must not block.
type ThresholdHandler func(ThresholdEvent)

// Status is a point-in-time snapshot of the gauge.
type Status struct {
	// ADC, Raw and State mirror the most recent report.
	ADC   int64
	Raw   int64
	State int64
	// CheckFlag is the most recent self-check flag response.
	CheckFlag int64
	// Band is the current threshold band.
	Band Band
}

// Gauge is one CS1237 instance on the MCU command channel.
type Gauge struct {
	channel  mcu.CommandChannel
	registry *mcu.Registry
	clock    mcu.Clock
	query    *mcu.Completion
	oid      uint8
	logger   *slog.Logger

	sensitivity int64
	sampleRate  int
	settle      time.Duration
	sleep       func(time.Duration)

	mu         sync.Mutex
	watcher    *Watcher
	onEdge     []ThresholdHandler
	clients    map[int]ReadingHandler
	nextClient int
	reporting  bool

	adc       int64
	raw       int64
	state     int64
	checkFlag int64
}

// Option configures a Gauge.
type Option = options.Option[*Gauge]

// WithSensitivity sets the device-side trigger threshold armed with each
// report command.
func WithSensitivity(sensitivity int64) Option {
	return options.NoError(func(g *Gauge) {
		g.sensitivity = sensitivity
	})
}

// WithSampleRate sets the live report rate in samples per second.
func WithSampleRate(rate int) Option {
	return options.New(func(g *Gauge) error {
		if rate <= 0 {
			return fmt.Errorf("sample rate %d must be positive", rate)
		}
		g.sampleRate = rate

		return nil
	})
}

// WithBands sets the threshold band bounds.
func WithBands(bands Bands) Option {
	return options.New(func(g *Gauge) error {
		w, err := NewWatcher(bands)
		if err != nil {
			return err
		}
		g.watcher = w

		return nil
	})
}

// WithSettleTime sets the self-check stimulus settle window.
func WithSettleTime(d time.Duration) Option {
	return options.New(func(g *Gauge) error {
		if d <= 0 {
			return fmt.Errorf("settle time %v must be positive", d)
		}
		g.settle = d

		return nil
	})
}

// WithLogger sets the structured logger; defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(g *Gauge) {
		g.logger = logger
	})
}

// New creates a Gauge with the given collaborators and registers its
// response handlers with the registry.
func New(channel mcu.CommandChannel, registry *mcu.Registry, clock mcu.Clock, oid uint8, opts ...Option) (*Gauge, error) {
	defaultWatcher, err := NewWatcher(DefaultBands())
	if err != nil {
		return nil, err
	}

	g := &Gauge{
		channel:     channel,
		registry:    registry,
		clock:       clock,
		query:       mcu.NewCompletion(clock),
		oid:         oid,
		logger:      slog.Default(),
		sensitivity: defaultSensitivity,
		sampleRate:  defaultSampleRate,
		settle:      defaultSettleTime,
		sleep:       time.Sleep,
		watcher:     defaultWatcher,
		clients:     make(map[int]ReadingHandler),
	}

	if err := options.Apply(g, opts...); err != nil {
		return nil, err
	}

	if err := registry.Register(rspState, oid, g.handleReport); err != nil {
		return nil, err
	}
	if err := registry.Register(rspDiff, oid, g.handleDiff); err != nil {
		registry.Unregister(rspState, oid)
		return nil, err
	}
	if err := registry.Register(rspCheckFlag, oid, g.handleCheckFlag); err != nil {
		registry.Unregister(rspState, oid)
		registry.Unregister(rspDiff, oid)
		return nil, err
	}

	return g, nil
}

// handleReport processes one live report: it updates the snapshot, runs
// the band classifier and fans the reading out to subscribed clients.
func (g *Gauge) handleReport(params mcu.Params) {
	reading := Reading{
		Time:  g.clock.Monotonic(),
		ADC:   params.Int("adc"),
		Raw:   params.Int("raw"),
		State: params.Int("state"),
	}

	g.mu.Lock()
	g.adc = reading.ADC
	g.raw = reading.Raw
	g.state = reading.State

	band, crossed := g.watcher.Observe(reading.Raw)
	edgeHandlers := g.onEdge

	clients := make([]int, 0, len(g.clients))
	for id := range g.clients {
		clients = append(clients, id)
	}
	g.mu.Unlock()

	if crossed {
		event := ThresholdEvent{Time: reading.Time, Band: band, Value: reading.Raw}
		g.logger.Info("cs1237 band transition",
			"oid", g.oid, "band", band.String(), "value", reading.Raw)
		for _, h := range edgeHandlers {
			h(event)
		}
	}

	for _, id := range clients {
		g.mu.Lock()
		h, ok := g.clients[id]
		g.mu.Unlock()
		if !ok {
			continue
		}
		if !h(reading) {
			g.RemoveClient(id)
		}
	}
}

// handleDiff resolves a pending raw-diff query.
func (g *Gauge) handleDiff(params mcu.Params) {
	g.mu.Lock()
	g.raw = params.Int("raw")
	g.mu.Unlock()

	g.query.Complete(params)
}

// handleCheckFlag resolves a pending self-check flag query.
func (g *Gauge) handleCheckFlag(params mcu.Params) {
	g.mu.Lock()
	g.checkFlag = params.Int("flag")
	g.mu.Unlock()

	g.query.Complete(params)
}

// OnThreshold subscribes a handler to band transition events.
func (g *Gauge) OnThreshold(h ThresholdHandler) {
	g.mu.Lock()
	g.onEdge = append(g.onEdge, h)
	g.mu.Unlock()
}

// AddClient subscribes a live reading handler and returns its client id.
// The first client starts device reporting.
func (g *Gauge) AddClient(h ReadingHandler) (int, error) {
	g.mu.Lock()
	id := g.nextClient
	g.nextClient++
	g.clients[id] = h
	first := len(g.clients) == 1
	g.mu.Unlock()

	if first {
		if err := g.startReporting(); err != nil {
			g.RemoveClient(id)
			return 0, err
		}
	}

	return id, nil
}

// RemoveClient unsubscribes a live reading handler. The last client
// stops device reporting.
func (g *Gauge) RemoveClient(id int) {
	g.mu.Lock()
	_, ok := g.clients[id]
	delete(g.clients, id)
	last := ok && len(g.clients) == 0
	g.mu.Unlock()

	if last {
		if err := g.stopReporting(); err != nil {
			g.logger.Warn("cs1237 stop reporting failed", "oid", g.oid, "error", err)
		}
	}
}

// startReporting arms the periodic device report at the configured rate.
func (g *Gauge) startReporting() error {
	g.mu.Lock()
	if g.reporting {
		g.mu.Unlock()
		return nil
	}
	g.reporting = true
	g.mu.Unlock()

	ticks := g.clock.SecondsToTicks(1.0 / float64(g.sampleRate))

	return g.channel.Send(cmdStartReport, []int64{int64(g.oid), 1, ticks, 0, g.sensitivity})
}

// stopReporting disarms the periodic device report.
func (g *Gauge) stopReporting() error {
	g.mu.Lock()
	if !g.reporting {
		g.mu.Unlock()
		return nil
	}
	g.reporting = false
	g.mu.Unlock()

	return g.channel.Send(cmdStartReport, []int64{int64(g.oid), 0, 0, 0, g.sensitivity})
}

// Enable powers the gauge front end on or off.
func (g *Gauge) Enable(on bool) error {
	state := int64(0)
	if on {
		state = 1
	}

	return g.channel.Send(cmdEnable, []int64{int64(g.oid), state})
}

// Reset pulses the gauge reset sequence count times (1..10).
func (g *Gauge) Reset(count int) error {
	if count < 1 || count > 10 {
		return fmt.Errorf("reset count %d out of range 1..10", count)
	}

	return g.channel.Send(cmdReset, []int64{int64(g.oid), int64(count)})
}

// QueryDiff requests the current raw differential reading and waits for
// the response.
func (g *Gauge) QueryDiff() (int64, error) {
	params, err := g.roundTrip(cmdQueryDiff, []int64{int64(g.oid)})
	if err != nil {
		return 0, fmt.Errorf("query cs1237 diff: %w", err)
	}

	return params.Int("raw"), nil
}

// CheckSelf issues one self-check write (0..3) and waits for the flag
// response.
func (g *Gauge) CheckSelf(write int) (int64, error) {
	if write < 0 || write > 3 {
		return 0, fmt.Errorf("self-check write %d out of range 0..3", write)
	}

	params, err := g.roundTrip(cmdCheckSelf, []int64{int64(g.oid), int64(write)})
	if err != nil {
		return 0, fmt.Errorf("cs1237 self-check query: %w", err)
	}

	return params.Int("flag"), nil
}

// roundTrip issues one command through the single-slot completion and
// waits for its response.
func (g *Gauge) roundTrip(name string, args []int64) (mcu.Params, error) {
	if err := g.query.Begin(); err != nil {
		return nil, err
	}
	if err := g.channel.Send(name, args); err != nil {
		g.query.Cancel()
		return nil, err
	}

	return g.query.Wait(g.clock.Monotonic() + queryTimeout)
}

// Status returns a snapshot of the gauge.
func (g *Gauge) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Status{
		ADC:       g.adc,
		Raw:       g.raw,
		State:     g.state,
		CheckFlag: g.checkFlag,
		Band:      g.watcher.Current(),
	}
}

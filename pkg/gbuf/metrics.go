package gbuf

import (
	"expvar"
	"sync/atomic"
	"time"
)

// Metrics collects viewer counters and exposes them through expvar at
// /debug/vars once RegisterExpvar has been called.
//
// Thread-safe for concurrent use.
//
//	metrics := gbuf.NewMetrics()
//	metrics.RegisterExpvar()
//	v, _ := gbuf.New(path, &gbuf.Options{Metrics: metrics})
type Metrics struct {
	starts        atomic.Int64
	stops         atomic.Int64
	restarts      atomic.Int64
	configReloads atomic.Int64
	errorsTotal   atomic.Int64
	eventsEmitted atomic.Int64

	frames          atomic.Int64
	commands        atomic.Int64
	textCommands    atomic.Int64
	unknownCommands atomic.Int64
	commandErrors   atomic.Int64
	decodeErrors    atomic.Int64
	resizes         atomic.Int64
	snapshots       atomic.Int64

	renderLatencyNs    atomic.Int64
	renderLatencyCount atomic.Int64

	currentlyRunning atomic.Int32
	feedConnected    atomic.Int32

	registered atomic.Bool
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RegisterExpvar publishes the metrics as gbuf_* expvar variables.
// Safe to call multiple times; subsequent calls are no-ops.
func (m *Metrics) RegisterExpvar() {
	if m.registered.Swap(true) {
		return
	}

	counters := map[string]*atomic.Int64{
		"gbuf_starts_total":           &m.starts,
		"gbuf_stops_total":            &m.stops,
		"gbuf_restarts_total":         &m.restarts,
		"gbuf_config_reloads_total":   &m.configReloads,
		"gbuf_errors_total":           &m.errorsTotal,
		"gbuf_events_emitted_total":   &m.eventsEmitted,
		"gbuf_frames_total":           &m.frames,
		"gbuf_commands_total":         &m.commands,
		"gbuf_text_commands_total":    &m.textCommands,
		"gbuf_unknown_commands_total": &m.unknownCommands,
		"gbuf_command_errors_total":   &m.commandErrors,
		"gbuf_decode_errors_total":    &m.decodeErrors,
		"gbuf_resizes_total":          &m.resizes,
		"gbuf_snapshots_total":        &m.snapshots,
	}
	for name, c := range counters {
		expvar.Publish(name, expvar.Func(func() any { return c.Load() }))
	}

	expvar.Publish("gbuf_running", expvar.Func(func() any { return m.currentlyRunning.Load() }))
	expvar.Publish("gbuf_feed_connected", expvar.Func(func() any { return m.feedConnected.Load() }))
	expvar.Publish("gbuf_render_latency_avg_ms", expvar.Func(func() any {
		count := m.renderLatencyCount.Load()
		if count == 0 {
			return float64(0)
		}
		return float64(m.renderLatencyNs.Load()) / float64(count) / 1e6
	}))
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Starts:        m.starts.Load(),
		Stops:         m.stops.Load(),
		Restarts:      m.restarts.Load(),
		ConfigReloads: m.configReloads.Load(),
		ErrorsTotal:   m.errorsTotal.Load(),
		EventsEmitted: m.eventsEmitted.Load(),

		Frames:          m.frames.Load(),
		Commands:        m.commands.Load(),
		TextCommands:    m.textCommands.Load(),
		UnknownCommands: m.unknownCommands.Load(),
		CommandErrors:   m.commandErrors.Load(),
		DecodeErrors:    m.decodeErrors.Load(),
		Resizes:         m.resizes.Load(),
		Snapshots:       m.snapshots.Load(),

		Running:       m.currentlyRunning.Load() > 0,
		FeedConnected: m.feedConnected.Load() > 0,

		RenderLatencyAvg: safeDivide(m.renderLatencyNs.Load(), m.renderLatencyCount.Load()),
	}
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Starts        int64
	Stops         int64
	Restarts      int64
	ConfigReloads int64
	ErrorsTotal   int64
	EventsEmitted int64

	// Frames counts render passes started by a payload, not replays.
	Frames          int64
	Commands        int64
	TextCommands    int64
	UnknownCommands int64
	CommandErrors   int64
	DecodeErrors    int64
	Resizes         int64
	Snapshots       int64

	Running       bool
	FeedConnected bool

	RenderLatencyAvg time.Duration
}

// IncrementStarts records a start operation.
func (m *Metrics) IncrementStarts() {
	m.starts.Add(1)
}

// IncrementStops records a stop operation.
func (m *Metrics) IncrementStops() {
	m.stops.Add(1)
}

// IncrementRestarts records a restart operation.
func (m *Metrics) IncrementRestarts() {
	m.restarts.Add(1)
}

// IncrementConfigReloads records a configuration reload.
func (m *Metrics) IncrementConfigReloads() {
	m.configReloads.Add(1)
}

// IncrementErrors records an error occurrence.
func (m *Metrics) IncrementErrors() {
	m.errorsTotal.Add(1)
}

// IncrementEventsEmitted records an event emission.
func (m *Metrics) IncrementEventsEmitted() {
	m.eventsEmitted.Add(1)
}

// IncrementDecodeErrors records a payload that could not be decoded.
func (m *Metrics) IncrementDecodeErrors() {
	m.decodeErrors.Add(1)
}

// IncrementResizes records a canvas resize.
func (m *Metrics) IncrementResizes() {
	m.resizes.Add(1)
}

// IncrementSnapshots records a PNG snapshot.
func (m *Metrics) IncrementSnapshots() {
	m.snapshots.Add(1)
}

// RecordFrame adds the figures of one render pass.
func (m *Metrics) RecordFrame(commands, text, unknown, errors int, latency time.Duration) {
	m.frames.Add(1)
	m.commands.Add(int64(commands))
	m.textCommands.Add(int64(text))
	m.unknownCommands.Add(int64(unknown))
	m.commandErrors.Add(int64(errors))
	m.renderLatencyNs.Add(latency.Nanoseconds())
	m.renderLatencyCount.Add(1)
}

// SetRunning updates the running state gauge.
func (m *Metrics) SetRunning(running bool) {
	m.currentlyRunning.Store(boolGauge(running))
}

// SetFeedConnected updates the dserv connection gauge.
func (m *Metrics) SetFeedConnected(connected bool) {
	m.feedConnected.Store(boolGauge(connected))
}

// Reset clears all metrics. Useful for testing.
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Int64{
		&m.starts, &m.stops, &m.restarts, &m.configReloads, &m.errorsTotal,
		&m.eventsEmitted, &m.frames, &m.commands, &m.textCommands,
		&m.unknownCommands, &m.commandErrors, &m.decodeErrors, &m.resizes,
		&m.snapshots, &m.renderLatencyNs, &m.renderLatencyCount,
	} {
		c.Store(0)
	}
	m.currentlyRunning.Store(0)
	m.feedConnected.Store(0)
}

func boolGauge(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// safeDivide performs safe division, returning 0 for divide by zero.
func safeDivide(total, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return time.Duration(total / count)
}

var defaultMetrics = NewMetrics()

// DefaultMetrics returns the global default Metrics instance.
func DefaultMetrics() *Metrics {
	return defaultMetrics
}

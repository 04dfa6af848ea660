package playback

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"demoflow/internal/clock"
)

// DefaultMetricTick is the quality readout refresh interval.
const DefaultMetricTick = time.Second

// DefaultMetricJitter is the full width of the per-tick perturbation.
const DefaultMetricJitter = 0.5

// BaseScores returns the starting quality readout per stream in dB.
func BaseScores() map[StreamID]float64 {
	return map[StreamID]float64{
		Primary: 42.3,
		CodecA:  38.7,
		CodecB:  41.2,
		CodecC:  43.8,
	}
}

// PollerOptions configures the metric simulation.
type PollerOptions struct {
	Tick   time.Duration
	Jitter float64
	// Base overrides BaseScores for the listed streams.
	Base map[StreamID]float64
	// Rand returns values in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
	// Active gates each tick; scores only move while it returns true.
	Active func() bool
}

// MetricPoller perturbs each stream's displayed quality score once per tick
// while Active holds. It reschedules itself until Close.
type MetricPoller struct {
	clock  clock.Clock
	tick   time.Duration
	jitter float64
	rand   func() float64
	active func() bool
	base   map[StreamID]float64

	mu         sync.Mutex
	scores     map[StreamID]float64
	timer      clock.Timer
	generation uint64
	running    bool
	closed     bool
	ticks      int
	listeners  []func(map[StreamID]float64)
}

// NewMetricPoller returns a stopped poller holding the base scores.
func NewMetricPoller(clk clock.Clock, opts PollerOptions) *MetricPoller {
	if opts.Tick <= 0 {
		opts.Tick = DefaultMetricTick
	}
	if opts.Jitter <= 0 {
		opts.Jitter = DefaultMetricJitter
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.Active == nil {
		opts.Active = func() bool { return true }
	}
	base := BaseScores()
	for id, v := range opts.Base {
		if id.Valid() {
			base[id] = v
		}
	}
	p := &MetricPoller{
		clock:  clock.OrReal(clk),
		tick:   opts.Tick,
		jitter: opts.Jitter,
		rand:   opts.Rand,
		active: opts.Active,
		base:   base,
	}
	p.scores = p.baseCopy()
	return p
}

// Subscribe registers fn for every score update.
func (p *MetricPoller) Subscribe(fn func(map[StreamID]float64)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Start begins ticking. Starting a running or closed poller does nothing.
func (p *MetricPoller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.closed {
		return
	}
	p.running = true
	p.generation++
	p.scheduleLocked()
}

// Stop halts ticking and keeps the current scores.
func (p *MetricPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Close stops the poller permanently.
func (p *MetricPoller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.closed = true
}

// Reset restores the base scores.
func (p *MetricPoller) Reset() {
	p.mu.Lock()
	p.scores = p.baseCopy()
	scores := p.copyLocked()
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(scores)
	}
}

// Scores returns a copy of the current readout.
func (p *MetricPoller) Scores() map[StreamID]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyLocked()
}

// Ticks counts ticks that moved the scores.
func (p *MetricPoller) Ticks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticks
}

func (p *MetricPoller) scheduleLocked() {
	gen := p.generation
	p.timer = p.clock.AfterFunc(p.tick, func() { p.onTick(gen) })
}

func (p *MetricPoller) onTick(gen uint64) {
	active := p.active()

	p.mu.Lock()
	if !p.running || gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.scheduleLocked()
	if !active {
		p.mu.Unlock()
		return
	}
	for _, id := range streamOrder {
		p.scores[id] += (p.rand() - 0.5) * p.jitter
	}
	p.ticks++
	scores := p.copyLocked()
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(scores)
	}
}

func (p *MetricPoller) stopLocked() {
	if !p.running {
		return
	}
	p.running = false
	p.generation++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *MetricPoller) baseCopy() map[StreamID]float64 {
	out := make(map[StreamID]float64, len(p.base))
	for id, v := range p.base {
		out[id] = v
	}
	return out
}

func (p *MetricPoller) copyLocked() map[StreamID]float64 {
	out := make(map[StreamID]float64, len(p.scores))
	for id, v := range p.scores {
		out[id] = v
	}
	return out
}

package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"demoflow/internal/logging"
)

// ErrNotReady is returned for transport commands issued before every stream
// is ready.
var ErrNotReady = errors.New("streams not ready")

// DefaultDuration is assumed until the primary stream reports metadata.
const DefaultDuration = 60.0

// DefaultSkip is the skip step in seconds.
const DefaultSkip = 10.0

// Direction selects the skip direction.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// ParseDirection accepts "forward" or "backward".
func ParseDirection(value string) (Direction, error) {
	switch value {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	default:
		return 0, fmt.Errorf("skip direction %q: want forward or backward", value)
	}
}

// ControllerOptions configures the transport.
type ControllerOptions struct {
	SkipSeconds     float64
	DefaultDuration float64
	Logger          *slog.Logger
	// OnCommand, when set, is called once per transport operation that reaches
	// the handles ("play", "pause", "seek", "reset").
	OnCommand func(op string)
	// OnStallPause, when set, is called each time a stall pauses playback.
	OnStallPause func()
}

// TransportState is the controller's view-facing state.
type TransportState struct {
	Playing     bool    `json:"playing"`
	Stalled     bool    `json:"stalled"`
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	AllReady    bool    `json:"allReady"`
}

// Controller applies transport commands to all four handles together.
type Controller struct {
	tracker *Tracker
	handles map[StreamID]Handle
	logger  *slog.Logger
	opts    ControllerOptions

	// stallMu orders stall decisions with the handle commands they issue.
	stallMu sync.Mutex

	mu            sync.Mutex
	playing       bool
	pausedByStall bool
	currentTime   float64
	duration      float64
	listeners     []func(TransportState)
}

// NewController binds handles to tracker. Every stream id must have a handle.
func NewController(tracker *Tracker, handles map[StreamID]Handle, opts ControllerOptions) (*Controller, error) {
	if tracker == nil {
		return nil, errors.New("controller requires a tracker")
	}
	owned := make(map[StreamID]Handle, len(streamOrder))
	for _, id := range streamOrder {
		h, ok := handles[id]
		if !ok || h == nil {
			return nil, fmt.Errorf("controller: missing handle for %s", id)
		}
		owned[id] = h
	}
	if opts.SkipSeconds <= 0 {
		opts.SkipSeconds = DefaultSkip
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = DefaultDuration
	}
	c := &Controller{
		tracker:  tracker,
		handles:  owned,
		logger:   logging.NewComponentLogger(opts.Logger, "playback.transport"),
		opts:     opts,
		duration: opts.DefaultDuration,
	}
	tracker.Subscribe(c.onTrackerChange)
	return c, nil
}

// Subscribe registers fn for transport state changes.
func (c *Controller) Subscribe(fn func(TransportState)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// PlayPause toggles playback on every handle. Per-handle failures are logged
// and do not roll back the toggle.
func (c *Controller) PlayPause(ctx context.Context) error {
	if !c.tracker.AllReady() {
		return fmt.Errorf("play/pause: %w", ErrNotReady)
	}
	c.mu.Lock()
	c.playing = !c.playing
	c.pausedByStall = false
	playing := c.playing
	c.mu.Unlock()

	if playing {
		c.playAll(ctx)
	} else {
		c.pauseAll()
	}
	c.notify()
	return nil
}

// Skip moves every handle by the skip step, clamped to [0, duration].
func (c *Controller) Skip(dir Direction) error {
	if dir != Forward && dir != Backward {
		return fmt.Errorf("skip: invalid direction %d", dir)
	}
	if !c.tracker.AllReady() {
		return fmt.Errorf("skip: %w", ErrNotReady)
	}
	c.mu.Lock()
	target := clamp(c.currentTime+float64(dir)*c.opts.SkipSeconds, 0, c.duration)
	c.currentTime = target
	c.mu.Unlock()

	c.seekAll(target)
	c.notify()
	return nil
}

// Scrub seeks every handle to seconds, clamped to [0, duration].
func (c *Controller) Scrub(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("scrub: invalid position %v", seconds)
	}
	if !c.tracker.AllReady() {
		return fmt.Errorf("scrub: %w", ErrNotReady)
	}
	c.mu.Lock()
	target := clamp(seconds, 0, c.duration)
	c.currentTime = target
	c.mu.Unlock()

	c.seekAll(target)
	c.notify()
	return nil
}

// Reset pauses and rewinds every handle and resets the tracker, regardless
// of readiness. Duration is kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.playing = false
	c.pausedByStall = false
	c.currentTime = 0
	c.mu.Unlock()

	c.pauseAll()
	c.seekAll(0)
	c.command("reset")
	c.tracker.Reset()
	c.notify()
}

// HandleTimeUpdate accepts playback position reports. Only the primary stream
// drives transport time.
func (c *Controller) HandleTimeUpdate(id StreamID, seconds float64) bool {
	if !id.IsPrimary() || math.IsNaN(seconds) || seconds < 0 {
		return false
	}
	c.mu.Lock()
	c.currentTime = seconds
	c.mu.Unlock()
	c.notify()
	return true
}

// HandleLoadedMetadata accepts duration reports from the primary stream.
func (c *Controller) HandleLoadedMetadata(id StreamID, duration float64) bool {
	if !id.IsPrimary() || math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return false
	}
	c.mu.Lock()
	c.duration = duration
	if c.currentTime > duration {
		c.currentTime = duration
	}
	c.mu.Unlock()
	c.notify()
	return true
}

// State returns the current transport state.
func (c *Controller) State() TransportState {
	allReady := c.tracker.AllReady()
	c.mu.Lock()
	defer c.mu.Unlock()
	return TransportState{
		Playing:     c.playing,
		Stalled:     c.pausedByStall,
		CurrentTime: c.currentTime,
		Duration:    c.duration,
		AllReady:    allReady,
	}
}

// Playing reports the user's play intent. It stays true during a stall.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Active reports whether streams are actually advancing.
func (c *Controller) Active() bool {
	allReady := c.tracker.AllReady()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && !c.pausedByStall && allReady
}

func (c *Controller) onTrackerChange(change Change) {
	if change.Kind != ChangeBuffering || change.Stream.IsPrimary() {
		if change.Kind != ChangeBuffering {
			c.notify()
		}
		return
	}

	// Tracker listeners run outside the tracker lock, so changes can arrive
	// out of order. Decide from the tracker's current state, not the change.
	c.stallMu.Lock()
	stalled := c.tracker.Stalled()
	allReady := c.tracker.AllReady()
	var pause, resume bool
	c.mu.Lock()
	switch {
	case stalled && c.playing && !c.pausedByStall:
		c.pausedByStall = true
		pause = true
	case !stalled && c.playing && c.pausedByStall && allReady:
		c.pausedByStall = false
		resume = true
	}
	c.mu.Unlock()

	switch {
	case pause:
		c.logger.Info("playback paused by stall",
			logging.String(logging.FieldStream, string(change.Stream)),
			logging.String(logging.FieldEventType, "stall_pause"),
		)
		if c.opts.OnStallPause != nil {
			c.opts.OnStallPause()
		}
		c.pauseAll()
	case resume:
		c.logger.Info("playback resumed after stall",
			logging.String(logging.FieldStream, string(change.Stream)),
			logging.String(logging.FieldEventType, "stall_resume"),
		)
		c.playAll(context.Background())
	}
	c.stallMu.Unlock()
	c.notify()
}

func (c *Controller) playAll(ctx context.Context) {
	c.command("play")
	for _, id := range streamOrder {
		if err := c.handles[id].Play(ctx); err != nil {
			c.handleFailure("play", id, err)
		}
	}
}

func (c *Controller) pauseAll() {
	c.command("pause")
	for _, id := range streamOrder {
		if err := c.handles[id].Pause(); err != nil {
			c.handleFailure("pause", id, err)
		}
	}
}

func (c *Controller) seekAll(seconds float64) {
	c.command("seek")
	for _, id := range streamOrder {
		if err := c.handles[id].Seek(seconds); err != nil {
			c.handleFailure("seek", id, err)
		}
	}
}

func (c *Controller) handleFailure(op string, id StreamID, err error) {
	c.logger.Debug("transport command failed",
		logging.String("op", op),
		logging.String(logging.FieldStream, string(id)),
		logging.Error(err),
	)
}

func (c *Controller) command(op string) {
	if c.opts.OnCommand != nil {
		c.opts.OnCommand(op)
	}
}

func (c *Controller) notify() {
	state := c.State()
	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

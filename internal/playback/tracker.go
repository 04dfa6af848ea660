package playback

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"demoflow/internal/clock"
	"demoflow/internal/logging"
)

// Default fallback windows.
const (
	DefaultPrimaryFallback = 3000 * time.Millisecond
	DefaultStreamFallback  = 2000 * time.Millisecond
)

// StreamState is the readiness record for one stream. Loading is always the
// negation of Ready.
type StreamState struct {
	Loading   bool   `json:"loading"`
	Ready     bool   `json:"ready"`
	Buffering bool   `json:"buffering"`
	Error     string `json:"error,omitempty"`
	// Synthetic is set when readiness came from the fallback timer.
	Synthetic bool `json:"synthetic,omitempty"`
}

func initialState() StreamState {
	return StreamState{Loading: true}
}

// ChangeKind classifies a tracker notification.
type ChangeKind int

const (
	ChangeReady ChangeKind = iota
	ChangeBuffering
	ChangeError
	ChangeReset
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeReady:
		return "ready"
	case ChangeBuffering:
		return "buffering"
	case ChangeError:
		return "error"
	case ChangeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers after every state transition.
type Change struct {
	Kind   ChangeKind
	Stream StreamID
	// AllReady and Stalled are evaluated after the transition.
	AllReady bool
	Stalled  bool
}

// TrackerOptions configures fallback behaviour.
type TrackerOptions struct {
	PrimaryFallback time.Duration
	StreamFallback  time.Duration
	// Sources maps each non-primary stream to its URL. Streams without a URL
	// get no fallback timer.
	Sources map[StreamID]string
	Logger  *slog.Logger
	// OnFallback, when set, is called each time a fallback synthesizes readiness.
	OnFallback func(StreamID)
}

// Tracker holds per-stream readiness and derives the AllReady gate.
type Tracker struct {
	clock      clock.Clock
	logger     *slog.Logger
	primaryWin time.Duration
	streamWin  time.Duration
	onFallback func(StreamID)

	mu          sync.Mutex
	sources     map[StreamID]string
	states      map[StreamID]StreamState
	timers      map[StreamID]clock.Timer
	transitions map[StreamID]int
	generation  uint64
	closed      bool
	listeners   []func(Change)
}

// NewTracker creates a tracker with every stream loading and arms the
// fallback timers relative to now.
func NewTracker(clk clock.Clock, opts TrackerOptions) *Tracker {
	if opts.PrimaryFallback <= 0 {
		opts.PrimaryFallback = DefaultPrimaryFallback
	}
	if opts.StreamFallback <= 0 {
		opts.StreamFallback = DefaultStreamFallback
	}
	t := &Tracker{
		clock:      clock.OrReal(clk),
		logger:     logging.NewComponentLogger(opts.Logger, "playback.tracker"),
		primaryWin: opts.PrimaryFallback,
		streamWin:  opts.StreamFallback,
		onFallback: opts.OnFallback,
		sources:    make(map[StreamID]string),
	}
	for id, url := range opts.Sources {
		if id.Valid() {
			t.sources[id] = strings.TrimSpace(url)
		}
	}
	t.mu.Lock()
	t.resetLocked()
	t.mu.Unlock()
	return t
}

// Subscribe registers fn for every subsequent change.
func (t *Tracker) Subscribe(fn func(Change)) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// OnReady records a genuine ready signal. A repeated signal, a signal for an
// errored stream, or a signal after Close is ignored.
func (t *Tracker) OnReady(id StreamID) error {
	if !id.Valid() {
		return fmt.Errorf("ready %q: %w", id, ErrUnknownStream)
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.stopTimerLocked(id)
	if !t.markReadyLocked(id, false) {
		t.mu.Unlock()
		return nil
	}
	change := t.changeLocked(ChangeReady, id)
	t.mu.Unlock()
	t.notify(change)
	return nil
}

// OnBuffering records a buffering flag. Unchanged values do not notify.
func (t *Tracker) OnBuffering(id StreamID, buffering bool) error {
	if !id.Valid() {
		return fmt.Errorf("buffering %q: %w", id, ErrUnknownStream)
	}
	t.mu.Lock()
	state := t.states[id]
	if t.closed || state.Buffering == buffering {
		t.mu.Unlock()
		return nil
	}
	state.Buffering = buffering
	t.states[id] = state
	change := t.changeLocked(ChangeBuffering, id)
	t.mu.Unlock()
	t.notify(change)
	return nil
}

// OnError records a load failure. The stream's fallback is cancelled and it
// drops out of the ready set until Reset, even if it was ready before.
func (t *Tracker) OnError(id StreamID, message string) error {
	if !id.Valid() {
		return fmt.Errorf("error %q: %w", id, ErrUnknownStream)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "stream failed to load"
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.stopTimerLocked(id)
	state := t.states[id]
	state.Error = message
	state.Ready = false
	state.Loading = true
	state.Synthetic = false
	t.states[id] = state
	change := t.changeLocked(ChangeError, id)
	t.mu.Unlock()

	logging.WarnWithContext(t.logger, "stream failed to load", "stream_error",
		logging.String(logging.FieldStream, string(id)),
		logging.String("message", message),
		logging.String(logging.FieldImpact, "comparison playback stays disabled"),
		logging.String(logging.FieldErrorHint, "reset the comparison to retry"),
	)
	t.notify(change)
	return nil
}

// SetSource records a stream URL. A stream that had no URL, is still loading
// and has no pending fallback gets one armed from now.
func (t *Tracker) SetSource(id StreamID, url string) error {
	if !id.Valid() {
		return fmt.Errorf("source %q: %w", id, ErrUnknownStream)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources[id] = strings.TrimSpace(url)
	if t.closed {
		return nil
	}
	if _, pending := t.timers[id]; !pending {
		t.armLocked(id)
	}
	return nil
}

// State returns the record for id.
func (t *Tracker) State(id StreamID) StreamState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[id]
}

// States returns a copy of every record.
func (t *Tracker) States() map[StreamID]StreamState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[StreamID]StreamState, len(t.states))
	for id, s := range t.states {
		out[id] = s
	}
	return out
}

// AllReady reports whether all four streams are ready and no comparison stream
// is buffering. The primary stream's buffering flag is not consulted.
func (t *Tracker) AllReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allReadyLocked()
}

// Stalled reports whether any comparison stream is buffering.
func (t *Tracker) Stalled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stalledLocked()
}

// Errors returns the error message for each failed stream.
func (t *Tracker) Errors() map[StreamID]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := map[StreamID]string{}
	for id, s := range t.states {
		if s.Error != "" {
			out[id] = s.Error
		}
	}
	return out
}

// ReadyTransitions counts how many times id went from not ready to ready
// since the last Reset.
func (t *Tracker) ReadyTransitions(id StreamID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitions[id]
}

// Reset returns every stream to loading, cancels pending fallbacks and arms
// fresh ones. Callbacks from the previous generation become no-ops.
func (t *Tracker) Reset() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.resetLocked()
	change := t.changeLocked(ChangeReset, "")
	t.mu.Unlock()
	t.notify(change)
}

// Close cancels all timers. Later signals are ignored.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.generation++
	for id := range t.timers {
		t.stopTimerLocked(id)
	}
}

func (t *Tracker) resetLocked() {
	t.generation++
	for id := range t.timers {
		t.stopTimerLocked(id)
	}
	t.states = make(map[StreamID]StreamState, len(streamOrder))
	t.timers = make(map[StreamID]clock.Timer, len(streamOrder))
	t.transitions = make(map[StreamID]int, len(streamOrder))
	for _, id := range streamOrder {
		t.states[id] = initialState()
		t.armLocked(id)
	}
}

func (t *Tracker) armLocked(id StreamID) {
	state := t.states[id]
	if state.Ready || state.Error != "" {
		return
	}
	window := t.streamWin
	if id.IsPrimary() {
		window = t.primaryWin
	} else if t.sources[id] == "" {
		return
	}
	gen := t.generation
	t.timers[id] = t.clock.AfterFunc(window, func() { t.fallback(id, gen) })
}

func (t *Tracker) fallback(id StreamID, gen uint64) {
	t.mu.Lock()
	if t.closed || gen != t.generation {
		t.mu.Unlock()
		return
	}
	delete(t.timers, id)
	if !t.markReadyLocked(id, true) {
		t.mu.Unlock()
		return
	}
	change := t.changeLocked(ChangeReady, id)
	onFallback := t.onFallback
	t.mu.Unlock()

	t.logger.Info("stream readiness synthesized",
		logging.String(logging.FieldStream, string(id)),
		logging.String(logging.FieldEventType, "fallback_ready"),
	)
	if onFallback != nil {
		onFallback(id)
	}
	t.notify(change)
}

// markReadyLocked reports whether the stream transitioned.
func (t *Tracker) markReadyLocked(id StreamID, synthetic bool) bool {
	state := t.states[id]
	if state.Ready || state.Error != "" {
		return false
	}
	state.Ready = true
	state.Loading = false
	state.Synthetic = synthetic
	t.states[id] = state
	t.transitions[id]++
	return true
}

func (t *Tracker) stopTimerLocked(id StreamID) {
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
}

func (t *Tracker) allReadyLocked() bool {
	for _, id := range streamOrder {
		if !t.states[id].Ready {
			return false
		}
	}
	return !t.stalledLocked()
}

func (t *Tracker) stalledLocked() bool {
	for _, id := range streamOrder {
		if !id.IsPrimary() && t.states[id].Buffering {
			return true
		}
	}
	return false
}

func (t *Tracker) changeLocked(kind ChangeKind, id StreamID) Change {
	return Change{Kind: kind, Stream: id, AllReady: t.allReadyLocked(), Stalled: t.stalledLocked()}
}

func (t *Tracker) notify(change Change) {
	t.mu.Lock()
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(change)
	}
}

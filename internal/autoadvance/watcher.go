// Package autoadvance moves a session to the live preview step shortly after
// decoding is observed to be under way.
package autoadvance

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"demoflow/internal/clock"
	"demoflow/internal/logging"
	"demoflow/internal/summary"
)

// StateDecoding is the telemetry state that can arm the watcher.
const StateDecoding = "decoding"

// Options controls when the watcher arms and where it jumps.
type Options struct {
	// ArmBelow is the exclusive upper bound on the current step for arming.
	ArmBelow int
	// Target is the step index forced when the timer fires.
	Target int
	// Delay between arming and firing.
	Delay time.Duration
	// OnFire, when set, is called after the jump with the step the user was on.
	OnFire func(from, to int)
}

// DefaultOptions arms below step 4, jumps to step 4 after five seconds.
func DefaultOptions() Options {
	return Options{ArmBelow: 4, Target: 4, Delay: 5 * time.Second}
}

// Store is the narrow slice of the progress store the watcher needs.
type Store interface {
	Current() int
	ForceCurrent(index int) error
}

// Watcher latches on the first qualifying telemetry sample and schedules one
// forced jump. It never re-arms.
type Watcher struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
	opts   Options

	mu     sync.Mutex
	armed  bool
	fired  bool
	closed bool
	timer  clock.Timer
}

// New builds a watcher. A nil clock uses wall time; a nil logger discards.
func New(store Store, clk clock.Clock, logger *slog.Logger, opts Options) *Watcher {
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	return &Watcher{
		store:  store,
		clock:  clock.OrReal(clk),
		logger: logging.NewComponentLogger(logger, "autoadvance"),
		opts:   opts,
	}
}

// Observe feeds one decode telemetry sample. It reports whether this sample
// armed the watcher.
func (w *Watcher) Observe(sample summary.DecodeProgress) bool {
	if sample.State != StateDecoding || strings.TrimSpace(sample.ETA) == "" {
		return false
	}
	current := w.store.Current()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.armed || current >= w.opts.ArmBelow {
		return false
	}
	w.armed = true
	w.timer = w.clock.AfterFunc(w.opts.Delay, w.fire)
	w.logger.Debug("auto-advance armed",
		logging.Int("from_step", current),
		logging.Int("target_step", w.opts.Target),
		logging.Duration("delay", w.opts.Delay),
	)
	return true
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.closed || w.fired || !w.armed {
		w.mu.Unlock()
		return
	}
	w.fired = true
	w.timer = nil
	target := w.opts.Target
	onFire := w.opts.OnFire
	w.mu.Unlock()

	from := w.store.Current()
	if from > target {
		// The jump ignores navigation made after arming.
		logging.WarnWithContext(w.logger, "auto-advance moved session backwards", "auto_advance_backwards",
			logging.Int("from_step", from),
			logging.Int("target_step", target),
			logging.String(logging.FieldImpact, "user is returned to the live preview step"),
			logging.String(logging.FieldErrorHint, "navigate forward again once decoding finishes"),
		)
	}
	if err := w.store.ForceCurrent(target); err != nil {
		logging.ErrorWithContext(w.logger, "auto-advance target rejected", "auto_advance_failed",
			logging.Int("target_step", target),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check workflow.auto_advance_target against the step catalog"),
		)
		return
	}
	w.logger.Info("auto-advanced", logging.Int("from_step", from), logging.Int("target_step", target))
	if onFire != nil {
		onFire(from, target)
	}
}

// Close cancels a pending jump. Observe is a no-op afterwards.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Armed reports whether the latch has been set.
func (w *Watcher) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// Fired reports whether the jump happened.
func (w *Watcher) Fired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"demoflow/internal/api"
	"demoflow/internal/autoadvance"
	"demoflow/internal/clock"
	"demoflow/internal/logging"
	"demoflow/internal/metrics"
	"demoflow/internal/playback"
	"demoflow/internal/progress"
	"demoflow/internal/services"
	"demoflow/internal/steps"
	"demoflow/internal/summary"
)

var (
	// ErrNotFound reports an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrStepLocked reports a forward move past an incomplete step.
	ErrStepLocked = errors.New("step locked")
	// ErrClosed reports an operation on a closed session.
	ErrClosed = errors.New("session closed")
)

// completionRule marks steps complete once the summary of the source step
// reports finished.
type completionRule struct {
	source steps.Kind
	marks  []steps.Kind
}

var completionRules = []completionRule{
	{source: steps.FileUpload, marks: []steps.Kind{steps.FileUpload}},
	{source: steps.EncodingFinished, marks: []steps.Kind{steps.EncodingStarted, steps.EncodingFinished}},
	{source: steps.DecodingFinished, marks: []steps.Kind{steps.DecodingStarted, steps.DecodedVideo, steps.DecodingFinished}},
	{source: steps.ComparePSNR, marks: []steps.Kind{steps.ComparePSNR}},
	{source: steps.ShowTimestamps, marks: []steps.Kind{steps.UploadScreenshots, steps.ProcessImages}},
}

// Session is one demo walkthrough.
type Session struct {
	id        string
	createdAt time.Time
	catalog   *steps.Catalog
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Recorder

	store      *progress.Store
	projector  *summary.Projector
	watcher    *autoadvance.Watcher
	tracker    *playback.Tracker
	controller *playback.Controller
	poller     *playback.MetricPoller
	handles    map[playback.StreamID]*playback.RecordingHandle

	pollInterval time.Duration

	mu         sync.Mutex
	inputs     summary.Inputs
	decode     *summary.DecodeProgress
	closed     bool
	listeners  map[int]func(api.SessionView)
	nextListen int
	pump       *decodePump
	pumpGen    uint64
	done       chan struct{}
}

// New builds a session and starts its readiness timers and metric poller.
func New(id string, opts Options) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, services.Wrap(services.ErrValidation, "session", "create", "id is required", nil)
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = steps.Default()
	}
	clk := clock.OrReal(opts.Clock)
	logger := logging.NewComponentLogger(opts.Logger, "session").With(logging.String(logging.FieldSessionID, id))
	rec := opts.Metrics

	s := &Session{
		id:           id,
		createdAt:    clk.Now(),
		catalog:      catalog,
		clock:        clk,
		logger:       logger,
		metrics:      rec,
		store:        progress.NewStore(catalog),
		projector:    summary.NewProjector(catalog),
		handles:      make(map[playback.StreamID]*playback.RecordingHandle),
		pollInterval: opts.PollInterval,
		listeners:    make(map[int]func(api.SessionView)),
		done:         make(chan struct{}),
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}

	trackerOpts := opts.Tracker
	trackerOpts.Logger = logger
	trackerOpts.Sources = copySources(opts.Tracker.Sources)
	trackerOpts.OnFallback = func(sid playback.StreamID) { rec.FallbackReady(string(sid)) }
	s.tracker = playback.NewTracker(clk, trackerOpts)

	handles := make(map[playback.StreamID]playback.Handle, 4)
	for _, sid := range playback.StreamIDs() {
		h := playback.NewRecordingHandle()
		s.handles[sid] = h
		handles[sid] = h
	}
	ctrlOpts := opts.Controller
	ctrlOpts.Logger = logger
	ctrlOpts.OnCommand = rec.TransportCommand
	ctrlOpts.OnStallPause = rec.StallPause
	controller, err := playback.NewController(s.tracker, handles, ctrlOpts)
	if err != nil {
		s.tracker.Close()
		return nil, services.Wrap(services.ErrConfiguration, "session", "create", "build transport", err)
	}
	s.controller = controller

	pollerOpts := opts.Poller
	pollerOpts.Active = controller.Active
	s.poller = playback.NewMetricPoller(clk, pollerOpts)

	advance := opts.AutoAdvance
	advance.OnFire = func(from, to int) { rec.AutoAdvanceFired() }
	s.watcher = autoadvance.New(s.store, clk, logger, advance)

	s.store.Subscribe(func(progress.Snapshot) { s.changed() })
	s.tracker.Subscribe(func(playback.Change) { s.changed() })
	s.controller.Subscribe(func(playback.TransportState) { s.changed() })
	s.poller.Subscribe(func(map[playback.StreamID]float64) { s.changed() })
	s.poller.Start()
	return s, nil
}

func copySources(in map[playback.StreamID]string) map[playback.StreamID]string {
	out := make(map[playback.StreamID]string, len(in))
	for id, url := range in {
		out[id] = url
	}
	return out
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was built.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Catalog returns the step catalog.
func (s *Session) Catalog() *steps.Catalog { return s.catalog }

// Subscribe registers fn to receive a fresh view after every change. The
// returned function removes the subscription.
func (s *Session) Subscribe(fn func(api.SessionView)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	key := s.nextListen
	s.nextListen++
	s.listeners[key] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, key)
		s.mu.Unlock()
	}
}

// View renders the full session state.
func (s *Session) View() api.SessionView {
	s.mu.Lock()
	var decode *summary.DecodeProgress
	if s.decode != nil {
		d := *s.decode
		decode = &d
	}
	s.mu.Unlock()

	handleStates := make(map[playback.StreamID]playback.HandleState, len(s.handles))
	for id, h := range s.handles {
		handleStates[id] = h.State()
	}
	return api.BuildSessionView(api.ViewParts{
		ID:         s.id,
		Catalog:    s.catalog,
		Progress:   s.store.Snapshot(),
		CanReach:   s.store.CanReach,
		Projection: s.Projection(),
		Transport:  s.controller.State(),
		Streams:    s.tracker.States(),
		Handles:    handleStates,
		Scores:     s.poller.Scores(),
		Decode:     decode,
	})
}

// Projection returns the summaries for the current inputs.
func (s *Session) Projection() *summary.Projection {
	return s.projector.Project(s.currentInputs())
}

func (s *Session) currentInputs() summary.Inputs {
	completed := s.store.CompletedSet()
	s.mu.Lock()
	in := s.inputs
	s.mu.Unlock()
	in.Completed = completed
	return in
}

// Progress exposes the workflow store for read access.
func (s *Session) Progress() *progress.Store { return s.store }

// Tracker exposes the readiness tracker for read access.
func (s *Session) Tracker() *playback.Tracker { return s.tracker }

// Controller exposes the transport controller for read access.
func (s *Session) Controller() *playback.Controller { return s.controller }

// Watcher exposes the auto-advance watcher for read access.
func (s *Session) Watcher() *autoadvance.Watcher { return s.watcher }

// Workflow operations.

// GoTo moves to index when the user may reach it.
func (s *Session) GoTo(index int) error {
	if !s.catalog.Contains(index) {
		return services.Wrap(services.ErrValidation, "session", "goto", fmt.Sprintf("step %d", index), progress.ErrOutOfRange)
	}
	if !s.store.CanReach(index) {
		return services.Wrap(services.ErrConflict, "session", "goto", fmt.Sprintf("step %d", index), ErrStepLocked)
	}
	return s.store.GoTo(index)
}

// Next marks the current step done and advances one step; it reports
// whether the position moved. Walking past a step keeps it reachable.
func (s *Session) Next() bool {
	if err := s.store.MarkCompleted(s.store.Current()); err != nil {
		s.logger.Debug("next: mark current completed", logging.Error(err))
	}
	return s.store.Next()
}

// Previous moves back one step; it reports whether the position moved.
func (s *Session) Previous() bool { return s.store.Previous() }

// Complete marks index as done.
func (s *Session) Complete(index int) error {
	if err := s.store.MarkCompleted(index); err != nil {
		return services.Wrap(services.ErrValidation, "session", "complete", "", err)
	}
	return nil
}

// ResetGroup rewinds group g.
func (s *Session) ResetGroup(g int) error {
	if err := s.store.ResetGroup(g); err != nil {
		return services.Wrap(services.ErrValidation, "session", "reset group", "", err)
	}
	return nil
}

// Transport operations.

func (s *Session) PlayPause(ctx context.Context) error {
	return transportErr("play/pause", s.controller.PlayPause(ctx))
}

func (s *Session) Skip(dir playback.Direction) error {
	return transportErr("skip", s.controller.Skip(dir))
}

func (s *Session) Scrub(seconds float64) error {
	return transportErr("scrub", s.controller.Scrub(seconds))
}

// ResetComparison restarts the comparison: transport and readiness go back
// to their initial state and the quality readouts return to base values.
func (s *Session) ResetComparison() {
	s.controller.Reset()
	s.poller.Reset()
	s.logger.Info("comparison reset", logging.String(logging.FieldEventType, "comparison_reset"))
}

func transportErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playback.ErrNotReady):
		return services.Wrap(services.ErrConflict, "session", op, "", err)
	default:
		return services.Wrap(services.ErrValidation, "session", op, "", err)
	}
}

// Stream signals.

func (s *Session) StreamReady(id playback.StreamID) error {
	return streamErr("ready", s.tracker.OnReady(id))
}

func (s *Session) StreamBuffering(id playback.StreamID, buffering bool) error {
	return streamErr("buffering", s.tracker.OnBuffering(id, buffering))
}

// StreamError records a load failure. The tracker logs it.
func (s *Session) StreamError(id playback.StreamID, message string) error {
	return streamErr("error", s.tracker.OnError(id, message))
}

// TimeUpdate reports whether the position was accepted.
func (s *Session) TimeUpdate(id playback.StreamID, seconds float64) bool {
	return s.controller.HandleTimeUpdate(id, seconds)
}

// LoadedMetadata reports whether the duration was accepted.
func (s *Session) LoadedMetadata(id playback.StreamID, duration float64) bool {
	return s.controller.HandleLoadedMetadata(id, duration)
}

// SetStreamSource configures the URL of a stream.
func (s *Session) SetStreamSource(id playback.StreamID, url string) error {
	return streamErr("source", s.tracker.SetSource(id, url))
}

func streamErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return services.Wrap(services.ErrValidation, "session", "stream "+op, "", err)
}

// Upstream results.

// SetUpload records the upload result. It counts as finished only once
// resolution and duration are known.
func (s *Session) SetUpload(u summary.Upload) {
	u.Finished = u.Width > 0 && u.Height > 0 && u.Duration > 0
	s.updateInputs(func(in *summary.Inputs) { in.Upload = &u })
}

func (s *Session) SetEncode(e summary.Encode) {
	s.updateInputs(func(in *summary.Inputs) { in.Encode = &e })
}

func (s *Session) SetDecode(d summary.Decode) {
	s.updateInputs(func(in *summary.Inputs) { in.Decode = &d })
}

// SetComparison records per-codec metrics. Reported video URLs become the
// sources of the matching comparison streams.
func (s *Session) SetComparison(codecs map[string]summary.CodecMetric) {
	copied := make(map[string]summary.CodecMetric, len(codecs))
	for codec, m := range codecs {
		copied[codec] = m
		id, ok := playback.StreamForCodec(strings.ToLower(codec))
		if !ok || id.IsPrimary() || strings.TrimSpace(m.VideoURL) == "" {
			continue
		}
		if err := s.tracker.SetSource(id, m.VideoURL); err != nil {
			s.logger.Debug("stream source rejected", logging.String(logging.FieldStream, string(id)), logging.Error(err))
		}
	}
	s.updateInputs(func(in *summary.Inputs) { in.Comparison = copied })
}

func (s *Session) SetSearch(result summary.Search) {
	s.updateInputs(func(in *summary.Inputs) { in.Search = &result })
}

// ObserveDecodeProgress records a decode telemetry sample and feeds it to
// the auto-advance watcher.
func (s *Session) ObserveDecodeProgress(sample summary.DecodeProgress) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.decode = &sample
	s.mu.Unlock()

	if s.watcher.Observe(sample) {
		s.logger.Info("decode telemetry armed auto-advance",
			logging.String(logging.FieldEventType, "auto_advance_armed"),
			logging.String("eta", sample.ETA),
		)
	}
	s.changed()
}

// DecodeProgress returns the last telemetry sample, if any.
func (s *Session) DecodeProgress() (summary.DecodeProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decode == nil {
		return summary.DecodeProgress{}, false
	}
	return *s.decode, true
}

func (s *Session) updateInputs(apply func(*summary.Inputs)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	apply(&s.inputs)
	s.mu.Unlock()

	s.autoComplete(s.Projection())
	s.changed()
}

func (s *Session) autoComplete(proj *summary.Projection) {
	for _, rule := range completionRules {
		src, ok := s.catalog.IndexOf(rule.source)
		if !ok {
			continue
		}
		sum := proj.Summary(src)
		if sum == nil || !sum.Finished {
			continue
		}
		for _, kind := range rule.marks {
			idx, ok := s.catalog.IndexOf(kind)
			if !ok || s.store.IsCompleted(idx) {
				continue
			}
			if err := s.store.MarkCompleted(idx); err == nil {
				s.logger.Debug("step completed from upstream result",
					logging.String(logging.FieldStep, kind.Slug()),
				)
			}
		}
	}
}

func (s *Session) changed() {
	s.mu.Lock()
	if s.closed || len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	listeners := make([]func(api.SessionView), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	view := s.View()
	for _, fn := range listeners {
		fn(view)
	}
}

// Close cancels every timer the session owns and drops its subscribers.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pump := s.pump
	s.pump = nil
	s.pumpGen++
	s.listeners = map[int]func(api.SessionView){}
	close(s.done)
	s.mu.Unlock()

	if pump != nil {
		pump.stop()
	}
	s.watcher.Close()
	s.poller.Close()
	s.tracker.Close()
	s.logger.Debug("session closed")
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.done }

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

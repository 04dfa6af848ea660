package session_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demoflow/internal/api"
	"demoflow/internal/autoadvance"
	"demoflow/internal/clock"
	"demoflow/internal/playback"
	"demoflow/internal/progress"
	"demoflow/internal/services"
	"demoflow/internal/session"
	"demoflow/internal/summary"
)

func newSession(t *testing.T, mutate func(*session.Options)) (*session.Session, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Unix(0, 0))
	opts := session.Options{
		Clock:       clk,
		AutoAdvance: autoadvance.DefaultOptions(),
		Tracker: playback.TrackerOptions{Sources: map[playback.StreamID]string{
			playback.CodecA: "http://media/h264.mp4",
			playback.CodecB: "http://media/h265.mp4",
			playback.CodecC: "http://media/av1.mp4",
		}},
		Poller:       playback.PollerOptions{Rand: func() float64 { return 1 }},
		PollInterval: 500 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := session.New("sess-1", opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, clk
}

func TestNewRequiresID(t *testing.T) {
	_, err := session.New(" ", session.Options{})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestUpstreamResultsCompleteSteps(t *testing.T) {
	s, _ := newSession(t, nil)
	store := s.Progress()

	s.SetUpload(summary.Upload{Name: "clip.mp4", Size: 1 << 20})
	assert.False(t, store.IsCompleted(0), "upload without metadata is not finished")

	s.SetUpload(summary.Upload{Name: "clip.mp4", Size: 1 << 20, Width: 1920, Height: 1080, Duration: 30})
	assert.True(t, store.IsCompleted(0))

	s.SetEncode(summary.Encode{InputSize: 10, OutputSize: 4, PSNR: 40})
	assert.False(t, store.IsCompleted(1))
	s.SetEncode(summary.Encode{InputSize: 10, OutputSize: 4, PSNR: 40, Finished: true})
	assert.True(t, store.IsCompleted(1))
	assert.True(t, store.IsCompleted(2))

	s.SetDecode(summary.Decode{PSNR: 39, FrameCount: 900, Finished: true})
	for _, idx := range []int{3, 4, 5} {
		assert.True(t, store.IsCompleted(idx), "step %d", idx)
	}

	s.SetComparison(map[string]summary.CodecMetric{
		"h264": {PSNR: 38.7, Status: "done"},
		"av1":  {PSNR: 43.8, Status: "pending"},
	})
	assert.False(t, store.IsCompleted(6))
	s.SetComparison(map[string]summary.CodecMetric{
		"h264": {PSNR: 38.7, Status: "done"},
		"av1":  {PSNR: 43.8, Status: "ok"},
	})
	assert.True(t, store.IsCompleted(6))

	s.SetSearch(summary.Search{Finished: true, Results: []summary.SearchResult{{Query: "a.png"}}})
	assert.True(t, store.IsCompleted(7))
	assert.True(t, store.IsCompleted(8))
	assert.False(t, store.IsCompleted(9), "the last step is never auto-completed")

	view := s.View()
	step, ok := view.Step(6)
	require.True(t, ok)
	require.NotNil(t, step.Summary)
	assert.Equal(t, "AV1", step.Summary.Value("Best Codec"))
	assert.NotEmpty(t, step.Badge)
}

func TestGoToHonorsGating(t *testing.T) {
	s, _ := newSession(t, nil)

	err := s.GoTo(2)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConflict)
	assert.ErrorIs(t, err, session.ErrStepLocked)
	assert.Equal(t, 0, s.Progress().Current())

	err = s.GoTo(42)
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.ErrorIs(t, err, progress.ErrOutOfRange)

	require.NoError(t, s.Complete(0))
	require.NoError(t, s.GoTo(5))
	assert.Equal(t, 5, s.Progress().Current())
	require.NoError(t, s.GoTo(1), "backward moves are always allowed")

	require.NoError(t, s.ResetGroup(2))
	assert.Equal(t, 3, s.Progress().Current())
	assert.ErrorIs(t, s.ResetGroup(9), services.ErrValidation)
}

func TestNextKeepsWalkedStepsReachable(t *testing.T) {
	s, _ := newSession(t, nil)
	store := s.Progress()

	require.True(t, s.Next())
	require.True(t, s.Next())
	assert.True(t, store.IsCompleted(0))
	assert.True(t, store.IsCompleted(1))
	assert.False(t, store.IsCompleted(2))

	require.True(t, s.Previous())
	require.NoError(t, s.GoTo(2))
	assert.Equal(t, 2, store.Current())
}

func TestTransportRejectedUntilReady(t *testing.T) {
	s, clk := newSession(t, nil)
	ctx := context.Background()

	err := s.PlayPause(ctx)
	assert.ErrorIs(t, err, services.ErrConflict)
	assert.ErrorIs(t, err, playback.ErrNotReady)

	clk.Advance(3 * time.Second)
	require.NoError(t, s.PlayPause(ctx))
	assert.True(t, s.View().Playback.Transport.Playing)
	require.NoError(t, s.Skip(playback.Forward))
	require.NoError(t, s.Scrub(30))
	assert.ErrorIs(t, s.Skip(playback.Direction(3)), services.ErrValidation)
}

func TestMetricsMoveOnlyWhilePlaying(t *testing.T) {
	s, clk := newSession(t, nil)
	clk.Advance(3 * time.Second)

	view := s.View()
	assert.InDelta(t, 42.3, view.Playback.Streams[0].Score, 1e-9)

	require.NoError(t, s.PlayPause(context.Background()))
	clk.Advance(2 * time.Second)
	assert.InDelta(t, 42.3+0.5, s.View().Playback.Streams[0].Score, 1e-9)

	require.NoError(t, s.StreamBuffering(playback.CodecA, true))
	clk.Advance(2 * time.Second)
	assert.InDelta(t, 42.3+0.5, s.View().Playback.Streams[0].Score, 1e-9, "stalled playback freezes readouts")

	s.ResetComparison()
	assert.InDelta(t, 42.3, s.View().Playback.Streams[0].Score, 1e-9)
	assert.False(t, s.View().Playback.Transport.AllReady)
}

func TestStreamErrorBlocksReadiness(t *testing.T) {
	s, clk := newSession(t, nil)
	require.NoError(t, s.StreamError(playback.CodecC, "404"))
	clk.Advance(5 * time.Second)
	assert.False(t, s.Tracker().AllReady())
	assert.Equal(t, "404", s.Tracker().State(playback.CodecC).Error)

	s.ResetComparison()
	clk.Advance(3 * time.Second)
	assert.True(t, s.Tracker().AllReady())
}

func TestStreamErrorLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, _ := newSession(t, func(opts *session.Options) { opts.Logger = logger })

	require.NoError(t, s.StreamError(playback.CodecA, "404"))
	assert.Equal(t, 1, strings.Count(buf.String(), `"event_type":"stream_error"`), buf.String())
}

func TestComparisonURLsArmStreamFallbacks(t *testing.T) {
	s, clk := newSession(t, func(o *session.Options) { o.Tracker = playback.TrackerOptions{} })

	clk.Advance(3 * time.Second)
	assert.True(t, s.Tracker().State(playback.Primary).Ready)
	assert.False(t, s.Tracker().State(playback.CodecA).Ready)

	s.SetComparison(map[string]summary.CodecMetric{
		"h264": {VideoURL: "http://backend/stream/a.mp4", Status: "ok"},
		"h265": {VideoURL: "http://backend/stream/b.mp4", Status: "ok"},
		"av1":  {VideoURL: "http://backend/stream/c.mp4", Status: "ok"},
	})
	clk.Advance(2 * time.Second)
	assert.True(t, s.Tracker().AllReady())
}

func TestDecodeTelemetryAutoAdvances(t *testing.T) {
	s, clk := newSession(t, nil)

	s.ObserveDecodeProgress(summary.DecodeProgress{State: "decoding", Progress: 10, ETA: "12s"})
	assert.True(t, s.Watcher().Armed())
	sample, ok := s.DecodeProgress()
	require.True(t, ok)
	assert.Equal(t, "12s", sample.ETA)

	clk.Advance(5 * time.Second)
	assert.True(t, s.Watcher().Fired())
	assert.Equal(t, 4, s.Progress().Current())
}

func TestSubscribeDeliversViews(t *testing.T) {
	s, _ := newSession(t, nil)
	var views []api.SessionView
	unsubscribe := s.Subscribe(func(v api.SessionView) { views = append(views, v) })

	require.NoError(t, s.Complete(0))
	require.NotEmpty(t, views)
	assert.Equal(t, []int{0}, views[len(views)-1].Workflow.Completed)

	unsubscribe()
	count := len(views)
	s.Next()
	assert.Len(t, views, count)
}

func TestCloseCancelsTimers(t *testing.T) {
	s, clk := newSession(t, nil)
	s.ObserveDecodeProgress(summary.DecodeProgress{State: "decoding", ETA: "3s"})
	require.Positive(t, clk.Pending())

	s.Close()
	assert.True(t, s.Closed())
	assert.Zero(t, clk.Pending())
	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done to be closed")
	}

	clk.Advance(10 * time.Second)
	assert.Equal(t, 0, s.Progress().Current())
	s.Close()
}

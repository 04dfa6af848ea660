package playback_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demoflow/internal/clock"
	"demoflow/internal/playback"
)

var allSources = map[playback.StreamID]string{
	playback.CodecA: "https://cdn.example.com/h264.mp4",
	playback.CodecB: "https://cdn.example.com/h265.mp4",
	playback.CodecC: "https://cdn.example.com/av1.mp4",
}

func newTracker(t *testing.T, sources map[playback.StreamID]string) (*playback.Tracker, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Unix(0, 0))
	tr := playback.NewTracker(clk, playback.TrackerOptions{Sources: sources})
	t.Cleanup(tr.Close)
	return tr, clk
}

func TestTrackerStartsLoading(t *testing.T) {
	tr, _ := newTracker(t, allSources)
	for _, id := range playback.StreamIDs() {
		s := tr.State(id)
		assert.True(t, s.Loading, "%s", id)
		assert.False(t, s.Ready, "%s", id)
	}
	assert.False(t, tr.AllReady())
}

func TestFallbackScenario(t *testing.T) {
	tr, clk := newTracker(t, allSources)

	clk.Advance(500 * time.Millisecond)
	require.NoError(t, tr.OnReady(playback.CodecB))

	clk.Advance(1499 * time.Millisecond)
	assert.False(t, tr.State(playback.CodecA).Ready)
	assert.False(t, tr.State(playback.CodecC).Ready)

	clk.Advance(time.Millisecond)
	assert.True(t, tr.State(playback.CodecA).Ready)
	assert.True(t, tr.State(playback.CodecC).Ready)
	assert.True(t, tr.State(playback.CodecA).Synthetic)
	assert.False(t, tr.State(playback.CodecB).Synthetic)
	assert.False(t, tr.State(playback.Primary).Ready)

	clk.Advance(999 * time.Millisecond)
	assert.False(t, tr.AllReady())

	clk.Advance(time.Millisecond)
	assert.True(t, tr.State(playback.Primary).Ready)
	assert.True(t, tr.AllReady(), "gate opens exactly at the slowest fallback")
}

func TestGenuineReadyBeatsFallback(t *testing.T) {
	tr, clk := newTracker(t, allSources)
	var readyEvents int
	tr.Subscribe(func(c playback.Change) {
		if c.Kind == playback.ChangeReady && c.Stream == playback.CodecA {
			readyEvents++
		}
	})

	clk.Advance(1500 * time.Millisecond)
	require.NoError(t, tr.OnReady(playback.CodecA))
	clk.Advance(time.Second)

	assert.Equal(t, 1, tr.ReadyTransitions(playback.CodecA))
	assert.Equal(t, 1, readyEvents)
	assert.False(t, tr.State(playback.CodecA).Synthetic)
}

func TestReadinessIsMonotone(t *testing.T) {
	tr, clk := newTracker(t, allSources)
	require.NoError(t, tr.OnReady(playback.CodecA))

	require.NoError(t, tr.OnReady(playback.CodecA))
	require.NoError(t, tr.OnBuffering(playback.CodecA, true))
	require.NoError(t, tr.OnBuffering(playback.CodecA, false))
	clk.Advance(5 * time.Second)

	s := tr.State(playback.CodecA)
	assert.True(t, s.Ready)
	assert.False(t, s.Loading)
	assert.Equal(t, 1, tr.ReadyTransitions(playback.CodecA))
}

func TestAllReadyIgnoresPrimaryBuffering(t *testing.T) {
	tr, _ := newTracker(t, allSources)
	for _, id := range playback.StreamIDs() {
		require.NoError(t, tr.OnReady(id))
	}
	require.True(t, tr.AllReady())

	require.NoError(t, tr.OnBuffering(playback.Primary, true))
	assert.True(t, tr.AllReady())

	for _, id := range []playback.StreamID{playback.CodecA, playback.CodecB, playback.CodecC} {
		require.NoError(t, tr.OnBuffering(id, true))
		assert.False(t, tr.AllReady(), "%s buffering closes the gate", id)
		assert.True(t, tr.Stalled())
		require.NoError(t, tr.OnBuffering(id, false))
		assert.True(t, tr.AllReady())
	}
}

func TestStreamWithoutSourceHasNoFallback(t *testing.T) {
	tr, clk := newTracker(t, map[playback.StreamID]string{playback.CodecA: "a.mp4"})
	clk.Advance(10 * time.Second)

	assert.True(t, tr.State(playback.Primary).Ready, "primary fallback is unconditional")
	assert.True(t, tr.State(playback.CodecA).Ready)
	assert.False(t, tr.State(playback.CodecB).Ready)
	assert.False(t, tr.State(playback.CodecC).Ready)

	require.NoError(t, tr.SetSource(playback.CodecB, "b.mp4"))
	clk.Advance(2 * time.Second)
	assert.True(t, tr.State(playback.CodecB).Ready)
}

func TestErroredStreamBlocksUntilReset(t *testing.T) {
	tr, clk := newTracker(t, allSources)
	require.NoError(t, tr.OnError(playback.CodecC, "404"))

	clk.Advance(5 * time.Second)
	require.NoError(t, tr.OnReady(playback.CodecC))
	assert.False(t, tr.State(playback.CodecC).Ready)
	assert.Equal(t, "404", tr.State(playback.CodecC).Error)
	assert.Equal(t, map[playback.StreamID]string{playback.CodecC: "404"}, tr.Errors())
	assert.False(t, tr.AllReady())

	tr.Reset()
	assert.Empty(t, tr.State(playback.CodecC).Error)
	clk.Advance(3 * time.Second)
	assert.True(t, tr.AllReady())
}

func TestErrorAfterReadyLeavesReadySet(t *testing.T) {
	tr, _ := newTracker(t, allSources)
	for _, id := range playback.StreamIDs() {
		require.NoError(t, tr.OnReady(id))
	}
	require.True(t, tr.AllReady())

	require.NoError(t, tr.OnError(playback.CodecB, "decode error"))
	state := tr.State(playback.CodecB)
	assert.False(t, state.Ready)
	assert.True(t, state.Loading)
	assert.Equal(t, "decode error", state.Error)
	assert.False(t, tr.AllReady())

	require.NoError(t, tr.OnReady(playback.CodecB))
	assert.False(t, tr.AllReady())
}

func TestResetDiscardsStaleFallbacks(t *testing.T) {
	tr, clk := newTracker(t, allSources)
	clk.Advance(1900 * time.Millisecond)

	tr.Reset()
	clk.Advance(200 * time.Millisecond)
	assert.False(t, tr.State(playback.CodecA).Ready, "timer from before the reset must not fire")

	clk.Advance(1800 * time.Millisecond)
	assert.True(t, tr.State(playback.CodecA).Ready, "fresh fallback runs from the reset")
	assert.Equal(t, 1, tr.ReadyTransitions(playback.CodecA))
}

func TestCloseCancelsFallbacks(t *testing.T) {
	tr, clk := newTracker(t, allSources)
	tr.Close()
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(10 * time.Second)
	require.NoError(t, tr.OnReady(playback.CodecA))
	for _, id := range playback.StreamIDs() {
		assert.False(t, tr.State(id).Ready, "%s", id)
	}
}

func TestUnknownStreamRejected(t *testing.T) {
	tr, _ := newTracker(t, nil)
	assert.ErrorIs(t, tr.OnReady("codecZ"), playback.ErrUnknownStream)
	assert.ErrorIs(t, tr.OnBuffering("", true), playback.ErrUnknownStream)
	assert.ErrorIs(t, tr.OnError("x", "boom"), playback.ErrUnknownStream)
}

func TestOnFallbackHook(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	var fired []playback.StreamID
	tr := playback.NewTracker(clk, playback.TrackerOptions{
		PrimaryFallback: time.Second,
		StreamFallback:  time.Second,
		Sources:         map[playback.StreamID]string{playback.CodecA: "a"},
		OnFallback:      func(id playback.StreamID) { fired = append(fired, id) },
	})
	defer tr.Close()

	clk.Advance(time.Second)
	assert.ElementsMatch(t, []playback.StreamID{playback.Primary, playback.CodecA}, fired)
}

func TestParseStreamID(t *testing.T) {
	id, err := playback.ParseStreamID("h265")
	require.NoError(t, err)
	assert.Equal(t, playback.CodecB, id)

	id, err = playback.ParseStreamID("Primary")
	require.NoError(t, err)
	assert.Equal(t, playback.Primary, id)
	assert.Equal(t, "Our Codec", id.DisplayName())

	_, err = playback.ParseStreamID("vp9")
	assert.ErrorIs(t, err, playback.ErrUnknownStream)
}

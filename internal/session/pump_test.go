package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demoflow/internal/services"
	"demoflow/internal/summary"
)

type scriptedSource struct {
	mu      sync.Mutex
	samples []summary.DecodeProgress
	errs    []error
	polls   int
	meta    summary.Decode
	metaErr error
}

func (s *scriptedSource) PollDecode(ctx context.Context, key string) (summary.DecodeProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.polls
	s.polls++
	if i < len(s.errs) && s.errs[i] != nil {
		return summary.DecodeProgress{}, s.errs[i]
	}
	if i >= len(s.samples) {
		return s.samples[len(s.samples)-1], nil
	}
	return s.samples[i], nil
}

func (s *scriptedSource) DecodeMetadata(ctx context.Context, key string) (summary.Decode, error) {
	return s.meta, s.metaErr
}

func (s *scriptedSource) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func TestDecodePumpRunsUntilDone(t *testing.T) {
	s, clk := newSession(t, nil)
	src := &scriptedSource{
		samples: []summary.DecodeProgress{
			{State: "decoding", Progress: 20, ETA: "8s"},
			{},
			{State: "done", Progress: 100},
		},
		errs: []error{nil, errors.New("connection refused"), nil},
		meta: summary.Decode{PSNR: 41.5, Duration: 30, FrameCount: 900},
	}

	require.NoError(t, s.StartDecodePump(context.Background(), src, "key-1"))
	assert.True(t, s.DecodePumpRunning())

	clk.Advance(0)
	assert.Equal(t, 1, src.pollCount())
	assert.True(t, s.Watcher().Armed())

	clk.Advance(500 * time.Millisecond)
	assert.Equal(t, 2, src.pollCount(), "a failed poll is retried on the next tick")

	clk.Advance(500 * time.Millisecond)
	assert.Equal(t, 3, src.pollCount())
	assert.False(t, s.DecodePumpRunning())
	for _, idx := range []int{3, 4, 5} {
		assert.True(t, s.Progress().IsCompleted(idx), "step %d", idx)
	}

	clk.Advance(2 * time.Second)
	assert.Equal(t, 3, src.pollCount(), "no polls after a terminal state")
}

func TestDecodePumpStopsOnCancel(t *testing.T) {
	s, clk := newSession(t, nil)
	src := &scriptedSource{samples: []summary.DecodeProgress{{State: "decoding", ETA: "5s"}}}
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.StartDecodePump(ctx, src, "key-1"))
	clk.Advance(0)
	cancel()
	clk.Advance(time.Second)
	assert.Equal(t, 1, src.pollCount())
	assert.False(t, s.DecodePumpRunning())
}

func TestDecodePumpValidation(t *testing.T) {
	s, _ := newSession(t, nil)
	assert.ErrorIs(t, s.StartDecodePump(context.Background(), nil, "k"), services.ErrValidation)
	assert.ErrorIs(t, s.StartDecodePump(context.Background(), &scriptedSource{}, " "), services.ErrValidation)

	s.Close()
	assert.ErrorIs(t, s.StartDecodePump(context.Background(), &scriptedSource{}, "k"), services.ErrConflict)
}

func TestClosingSessionStopsPump(t *testing.T) {
	s, clk := newSession(t, nil)
	src := &scriptedSource{samples: []summary.DecodeProgress{{State: "decoding", ETA: "5s"}}}
	require.NoError(t, s.StartDecodePump(context.Background(), src, "key-1"))
	clk.Advance(0)

	s.Close()
	clk.Advance(3 * time.Second)
	assert.Equal(t, 1, src.pollCount())
}

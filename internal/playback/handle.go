package playback

import (
	"context"
	"sync"
)

// Handle is a controllable media element.
type Handle interface {
	Play(ctx context.Context) error
	Pause() error
	Seek(seconds float64) error
}

// HandleState is what a RecordingHandle was last told to do.
type HandleState struct {
	Playing  bool    `json:"playing"`
	Position float64 `json:"position"`
	Plays    int     `json:"plays"`
	Pauses   int     `json:"pauses"`
	Seeks    int     `json:"seeks"`
}

// RecordingHandle remembers the commands it receives so a remote view can
// mirror them. Failures can be injected per command.
type RecordingHandle struct {
	mu       sync.Mutex
	state    HandleState
	playErr  error
	pauseErr error
	seekErr  error
}

// NewRecordingHandle returns a paused handle at position 0.
func NewRecordingHandle() *RecordingHandle {
	return &RecordingHandle{}
}

func (h *RecordingHandle) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Plays++
	if h.playErr != nil {
		return h.playErr
	}
	h.state.Playing = true
	return nil
}

func (h *RecordingHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Pauses++
	if h.pauseErr != nil {
		return h.pauseErr
	}
	h.state.Playing = false
	return nil
}

func (h *RecordingHandle) Seek(seconds float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Seeks++
	if h.seekErr != nil {
		return h.seekErr
	}
	h.state.Position = seconds
	return nil
}

// FailWith makes subsequent commands return the given errors. Nil clears.
func (h *RecordingHandle) FailWith(play, pause, seek error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playErr, h.pauseErr, h.seekErr = play, pause, seek
}

// State returns a copy of the recorded state.
func (h *RecordingHandle) State() HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

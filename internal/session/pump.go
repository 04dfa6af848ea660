package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"demoflow/internal/clock"
	"demoflow/internal/logging"
	"demoflow/internal/services"
	"demoflow/internal/summary"
)

// DecodeSource is the slice of the backend client the telemetry pump needs.
type DecodeSource interface {
	PollDecode(ctx context.Context, key string) (summary.DecodeProgress, error)
	DecodeMetadata(ctx context.Context, key string) (summary.Decode, error)
}

type decodePump struct {
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   clock.Timer
	stopped bool
}

func (p *decodePump) schedule(clk clock.Clock, d time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.timer = clk.AfterFunc(d, fn)
}

func (p *decodePump) stop() {
	p.cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// StartDecodePump polls decode telemetry for key until the backend reports a
// terminal state, ctx is cancelled or the session closes. The first poll is
// scheduled immediately. Starting a pump replaces any running one.
func (s *Session) StartDecodePump(ctx context.Context, src DecodeSource, key string) error {
	key = strings.TrimSpace(key)
	if src == nil || key == "" {
		return services.Wrap(services.ErrValidation, "session", "decode pump", "source and key are required", nil)
	}
	pumpCtx, cancel := context.WithCancel(ctx)
	pump := &decodePump{cancel: cancel}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return services.Wrap(services.ErrConflict, "session", "decode pump", "", ErrClosed)
	}
	previous := s.pump
	s.pumpGen++
	gen := s.pumpGen
	s.pump = pump
	s.mu.Unlock()

	if previous != nil {
		previous.stop()
	}
	s.logger.Info("decode telemetry polling started",
		logging.String("key", key),
		logging.Duration("interval", s.pollInterval),
	)
	var tick func()
	tick = func() { s.pumpTick(pumpCtx, gen, pump, src, key, tick) }
	pump.schedule(s.clock, 0, tick)
	return nil
}

// StopDecodePump cancels a running pump.
func (s *Session) StopDecodePump() {
	s.mu.Lock()
	pump := s.pump
	s.pump = nil
	s.pumpGen++
	s.mu.Unlock()
	if pump != nil {
		pump.stop()
	}
}

// DecodePumpRunning reports whether a pump is active.
func (s *Session) DecodePumpRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pump != nil
}

func (s *Session) pumpTick(ctx context.Context, gen uint64, pump *decodePump, src DecodeSource, key string, next func()) {
	if ctx.Err() != nil {
		s.endPump(gen, pump)
		return
	}
	sample, err := src.PollDecode(ctx, key)
	switch {
	case err != nil && ctx.Err() != nil:
		s.endPump(gen, pump)
		return
	case err != nil:
		logging.WarnWithContext(s.logger, "decode telemetry poll failed", "decode_poll_failed",
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldImpact, "decode progress is stale until the next poll"),
			logging.String(logging.FieldErrorHint, "check that the processing backend is reachable"),
		)
	default:
		s.ObserveDecodeProgress(sample)
		if terminalDecodeState(sample.State) {
			s.finishDecode(ctx, src, key, sample)
			s.endPump(gen, pump)
			return
		}
	}

	s.mu.Lock()
	live := !s.closed && s.pumpGen == gen
	s.mu.Unlock()
	if live {
		pump.schedule(s.clock, s.pollInterval, next)
	}
}

func (s *Session) finishDecode(ctx context.Context, src DecodeSource, key string, sample summary.DecodeProgress) {
	if !strings.EqualFold(sample.State, "done") && !strings.EqualFold(sample.State, "finished") {
		logging.WarnWithContext(s.logger, "decode ended without finishing", "decode_failed",
			logging.String("key", key),
			logging.String("state", sample.State),
			logging.String(logging.FieldImpact, "decoding steps stay incomplete"),
			logging.String(logging.FieldErrorHint, "inspect the processing backend logs"),
		)
		return
	}
	meta, err := src.DecodeMetadata(ctx, key)
	if err != nil {
		logging.WarnWithContext(s.logger, "decode metadata fetch failed", "decode_metadata_failed",
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldImpact, "decode summary stays empty"),
			logging.String(logging.FieldErrorHint, "post the decode result to the upstream endpoint"),
		)
		return
	}
	meta.Finished = true
	s.SetDecode(meta)
	s.logger.Info("decode finished", logging.String("key", key), logging.Int("frames", meta.FrameCount))
}

func (s *Session) endPump(gen uint64, pump *decodePump) {
	s.mu.Lock()
	if s.pumpGen == gen && s.pump == pump {
		s.pump = nil
	}
	s.mu.Unlock()
	pump.stop()
}

func terminalDecodeState(state string) bool {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "done", "finished", "error", "failed":
		return true
	default:
		return false
	}
}

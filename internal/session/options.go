package session

import (
	"log/slog"
	"time"

	"demoflow/internal/autoadvance"
	"demoflow/internal/clock"
	"demoflow/internal/config"
	"demoflow/internal/metrics"
	"demoflow/internal/playback"
	"demoflow/internal/steps"
)

// DefaultPollInterval is the decode telemetry polling period.
const DefaultPollInterval = 500 * time.Millisecond

// Options configures every session a registry creates.
type Options struct {
	Catalog      *steps.Catalog
	Clock        clock.Clock
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
	AutoAdvance  autoadvance.Options
	Tracker      playback.TrackerOptions
	Controller   playback.ControllerOptions
	Poller       playback.PollerOptions
	PollInterval time.Duration
}

// OptionsFromConfig maps configuration onto session options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{AutoAdvance: autoadvance.DefaultOptions(), PollInterval: DefaultPollInterval}
	if cfg == nil {
		return opts
	}
	opts.AutoAdvance.ArmBelow = cfg.Workflow.AutoAdvanceArmBelow
	opts.AutoAdvance.Target = cfg.Workflow.AutoAdvanceTarget
	opts.AutoAdvance.Delay = cfg.AutoAdvanceDelay()
	opts.Tracker = playback.TrackerOptions{
		PrimaryFallback: cfg.PrimaryFallback(),
		StreamFallback:  cfg.StreamFallback(),
		Sources: map[playback.StreamID]string{
			playback.Primary: cfg.Playback.Streams.Primary,
			playback.CodecA:  cfg.Playback.Streams.CodecA,
			playback.CodecB:  cfg.Playback.Streams.CodecB,
			playback.CodecC:  cfg.Playback.Streams.CodecC,
		},
	}
	opts.Controller = playback.ControllerOptions{
		SkipSeconds:     cfg.Playback.SkipSeconds,
		DefaultDuration: cfg.Playback.DefaultDuration,
	}
	opts.Poller = playback.PollerOptions{
		Tick:   cfg.MetricTick(),
		Jitter: cfg.Playback.MetricJitter,
	}
	opts.PollInterval = cfg.PollInterval()
	return opts
}

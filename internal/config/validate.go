package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validatePlayback(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBackend() error {
	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.RequestTimeout <= 0 {
		return errors.New("backend.request_timeout must be positive")
	}
	if c.Backend.PollIntervalMS <= 0 {
		return errors.New("backend.poll_interval_ms must be positive")
	}
	switch c.Backend.Quality {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("backend.quality must be one of low, medium, high, got %q", c.Backend.Quality)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.AutoAdvanceDelayMS < 0 {
		return errors.New("workflow.auto_advance_delay_ms must be zero or positive")
	}
	if c.Workflow.AutoAdvanceTarget < 0 {
		return errors.New("workflow.auto_advance_target must be zero or positive")
	}
	if c.Workflow.AutoAdvanceArmBelow < 0 {
		return errors.New("workflow.auto_advance_arm_below must be zero or positive")
	}
	return nil
}

func (c *Config) validatePlayback() error {
	p := c.Playback
	if p.PrimaryFallbackMS <= 0 || p.StreamFallbackMS <= 0 {
		return errors.New("playback fallback windows must be positive")
	}
	if p.SkipSeconds <= 0 {
		return errors.New("playback.skip_seconds must be positive")
	}
	if p.DefaultDuration <= 0 {
		return errors.New("playback.default_duration must be positive")
	}
	if p.MetricTickMS <= 0 {
		return errors.New("playback.metric_tick_ms must be positive")
	}
	if p.MetricJitter < 0 {
		return errors.New("playback.metric_jitter must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

package testsupport

import (
	"testing"
	"time"

	"demoflow/internal/clock"
	"demoflow/internal/config"
	"demoflow/internal/metrics"
	"demoflow/internal/session"
)

// Registry bundles a session registry with the fake clock and recorder that
// drive it.
type Registry struct {
	*session.Registry
	Clock   *clock.Fake
	Metrics *metrics.Recorder
}

// NewRegistry builds a registry from cfg whose sessions run on a fake clock.
// Every session is closed when the test ends.
func NewRegistry(t testing.TB, cfg *config.Config) *Registry {
	t.Helper()

	clk := clock.NewFake(time.Unix(0, 0))
	rec := metrics.New()
	opts := session.OptionsFromConfig(cfg)
	opts.Clock = clk
	opts.Metrics = rec
	reg := session.NewRegistry(opts)
	t.Cleanup(reg.CloseAll)
	return &Registry{Registry: reg, Clock: clk, Metrics: rec}
}

package preflight

import (
	"context"

	"demoflow/internal/config"
	"demoflow/internal/services/backend"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger is the slice of the backend client used for the reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
	BaseURL() string
}

// RunAll executes every preflight check for cfg. A nil pinger builds a
// backend client from the config.
func RunAll(ctx context.Context, cfg *config.Config, pinger Pinger) []Result {
	if cfg == nil {
		return nil
	}
	if pinger == nil {
		pinger = backend.NewFromConfig(cfg)
	}
	return []Result{
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckBackend(ctx, pinger),
	}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Package config loads, normalizes, and validates demoflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DEMOFLOW_BACKEND_URL. The Config type centralizes every knob the daemon and
// CLI need: backend endpoints, workflow timers, playback fallbacks and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

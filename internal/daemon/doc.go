// Package daemon coordinates the long-running demoflow process.
//
// It wires configuration, the session registry, the processing backend
// client and the metrics recorder into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon serves the JSON session
// API, a websocket feed of session views and the Prometheus endpoint.
//
// Keep orchestration logic here: workflow and playback behaviour lives in the
// core packages while the daemon focuses on startup, shutdown and translating
// HTTP requests into session operations.
package daemon

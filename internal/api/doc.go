// Package api defines the wire-format types shared by the daemon HTTP surface
// and the CLI. It translates session state (workflow position, step
// summaries, stream readiness, transport) into transport-friendly DTOs that a
// browser view or the status command can render without importing the core
// packages.
//
// # Key Types
//
// SessionView: the full sidebar + comparison view of one session.
//
// StepView/GroupView: catalog entries annotated with current, completed,
// visited and reachable flags plus any summary and badge.
//
// PlaybackView: transport state, per-stream readiness and quality readouts.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Step kinds and stream ids are exposed as their
// lowercase slugs. Request payloads for upstream results reuse the summary
// input types directly.
package api

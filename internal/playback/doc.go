// Package playback keeps four comparison streams in lockstep.
//
// Tracker records per-stream loading, readiness and buffering and derives the
// AllReady gate, synthesizing readiness after a fallback window for streams
// that never report it. Controller owns the stream handles and applies
// play/pause/seek uniformly, pausing on a comparison-stream stall and resuming
// once it clears. MetricPoller simulates the per-stream quality readout shown
// while the streams play.
package playback

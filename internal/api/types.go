package api

import (
	"demoflow/internal/playback"
	"demoflow/internal/summary"
)

// SessionView is the complete rendered state of one session.
type SessionView struct {
	ID       string                  `json:"id"`
	Workflow WorkflowView            `json:"workflow"`
	Groups   []GroupView             `json:"groups"`
	Playback PlaybackView            `json:"playback"`
	Decode   *summary.DecodeProgress `json:"decodeProgress,omitempty"`
}

// WorkflowView mirrors the progress store snapshot.
type WorkflowView struct {
	Current      int    `json:"current"`
	Total        int    `json:"total"`
	CurrentGroup int    `json:"currentGroup"`
	CurrentLabel string `json:"currentLabel"`
	Completed    []int  `json:"completed"`
	Visited      []int  `json:"visited"`
	IsFirst      bool   `json:"isFirst"`
	IsLast       bool   `json:"isLast"`
}

// GroupView is one sidebar group.
type GroupView struct {
	Index int        `json:"index"`
	Label string     `json:"label"`
	Start int        `json:"start"`
	Steps []StepView `json:"steps"`
}

// StepView is one sidebar entry.
type StepView struct {
	Index     int                  `json:"index"`
	Kind      string               `json:"kind"`
	Label     string               `json:"label"`
	Current   bool                 `json:"current"`
	Completed bool                 `json:"completed"`
	Visited   bool                 `json:"visited"`
	Reachable bool                 `json:"reachable"`
	Summary   *summary.StepSummary `json:"summary,omitempty"`
	Badge     []summary.Field      `json:"badge,omitempty"`
}

// PlaybackView groups the comparison player state.
type PlaybackView struct {
	Transport playback.TransportState `json:"transport"`
	Streams   []StreamView            `json:"streams"`
}

// StreamView is the readiness and quality readout of one stream.
type StreamView struct {
	ID    string  `json:"id"`
	Codec string  `json:"codec"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	playback.StreamState
	Handle playback.HandleState `json:"handle"`
}

// SessionListResponse wraps the ids of live sessions.
type SessionListResponse struct {
	Sessions []string `json:"sessions"`
}

// SessionResponse wraps a single session view.
type SessionResponse struct {
	Session SessionView `json:"session"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IndexRequest carries a flattened step index.
type IndexRequest struct {
	Index int `json:"index"`
}

// GroupRequest carries a group index.
type GroupRequest struct {
	Group int `json:"group"`
}

// SkipRequest carries "forward" or "backward".
type SkipRequest struct {
	Direction string `json:"direction"`
}

// ScrubRequest carries an absolute position in seconds.
type ScrubRequest struct {
	Seconds float64 `json:"seconds"`
}

// BufferingRequest carries a buffering flag.
type BufferingRequest struct {
	Buffering bool `json:"buffering"`
}

// StreamErrorRequest carries a stream failure message.
type StreamErrorRequest struct {
	Message string `json:"message"`
}

// TimeRequest carries a playback position or duration in seconds.
type TimeRequest struct {
	Seconds float64 `json:"seconds"`
}

// ComparisonRequest carries per-codec metrics keyed by codec name.
type ComparisonRequest struct {
	Codecs map[string]summary.CodecMetric `json:"codecs"`
}

// GoToResponse reports whether a navigation request was honored.
type GoToResponse struct {
	Moved   bool `json:"moved"`
	Current int  `json:"current"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	LockFilePath string `json:"lockFilePath"`
	APIAddress   string `json:"apiAddress,omitempty"`
	Sessions     int    `json:"sessions"`
}

// DecodePumpRequest starts decode telemetry polling for a backend key.
type DecodePumpRequest struct {
	Key string `json:"key"`
}

// CompareRequest asks the backend for per-codec comparison metrics.
type CompareRequest struct {
	Key     string `json:"key"`
	Quality string `json:"quality,omitempty"`
}

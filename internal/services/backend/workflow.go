package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"demoflow/internal/services"
	"demoflow/internal/summary"
)

// KeyInfo identifies an uploaded video on the backend.
type KeyInfo struct {
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
}

// EncodeStatus is one encode poll result.
type EncodeStatus struct {
	Finished bool
	Progress float64
}

// GetOrCreateKey registers an already present video and returns its key.
// An unknown filename yields services.ErrNotFound.
func (c *Client) GetOrCreateKey(ctx context.Context, filename string) (KeyInfo, error) {
	const endpoint = "get_or_create_key"
	if strings.TrimSpace(filename) == "" {
		return KeyInfo{}, services.Wrap(services.ErrValidation, "backend", endpoint, "filename is required", nil)
	}
	env, err := c.call(ctx, http.MethodPost, endpoint, nil, map[string]string{"filename": filename})
	if err != nil {
		return KeyInfo{}, err
	}
	if env.status() == "not_found" {
		return KeyInfo{}, services.Wrap(services.ErrNotFound, "backend", endpoint, filename, nil)
	}
	var info KeyInfo
	if err := json.Unmarshal(env.raw, &info); err != nil {
		return KeyInfo{}, services.Wrap(services.ErrExternalTool, "backend", endpoint, "decode key info", err)
	}
	return info, nil
}

// StartEncode begins encoding filename under key.
func (c *Client) StartEncode(ctx context.Context, key, filename string) error {
	const endpoint = "start_encode"
	if err := requireKey(endpoint, key); err != nil {
		return err
	}
	_, err := c.call(ctx, http.MethodPost, endpoint, nil, map[string]string{"key": key, "filename": filename})
	return err
}

type pollResult struct {
	EndTime  *float64        `json:"end_time"`
	ETA      json.RawMessage `json:"eta"`
	Progress json.RawMessage `json:"progress"`
}

// PollEncode reports whether the encode finished.
func (c *Client) PollEncode(ctx context.Context, key string) (EncodeStatus, error) {
	const endpoint = "poll_encode"
	if err := requireKey(endpoint, key); err != nil {
		return EncodeStatus{}, err
	}
	env, err := c.call(ctx, http.MethodGet, endpoint, keyQuery(key), nil)
	if err != nil {
		return EncodeStatus{}, err
	}
	var res pollResult
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return EncodeStatus{}, services.Wrap(services.ErrExternalTool, "backend", endpoint, "decode poll result", err)
	}
	status := EncodeStatus{Finished: res.EndTime != nil}
	if p, ok := number(res.Progress); ok {
		status.Progress = p
	}
	if status.Finished {
		status.Progress = 100
	}
	return status, nil
}

// EncodeMetadata fetches the encode result once it finished.
func (c *Client) EncodeMetadata(ctx context.Context, key string) (summary.Encode, error) {
	const endpoint = "metadata_encode"
	meta, err := c.metadata(ctx, endpoint, key)
	if err != nil {
		return summary.Encode{}, err
	}
	enc := summary.Encode{
		InputSize:        bytesToMB(field(meta, "target_size")),
		OutputSize:       bytesToMB(field(meta, "reconstruction_size")),
		Duration:         field(meta, "duration_s"),
		CompressionRatio: field(meta, "compression_ratio"),
		PSNR:             field(meta, "low_rank_approximation_psnr"),
	}
	_, hasEnd := number(meta["end_time"])
	enc.Finished = hasEnd
	return enc, nil
}

// StartDecode begins decoding the encoded video for key.
func (c *Client) StartDecode(ctx context.Context, key string) error {
	const endpoint = "start_decode"
	if err := requireKey(endpoint, key); err != nil {
		return err
	}
	_, err := c.call(ctx, http.MethodGet, endpoint, keyQuery(key), nil)
	return err
}

// PollDecode returns the decode telemetry sample. The state is "done" once
// the backend reports an end time and "decoding" before that.
func (c *Client) PollDecode(ctx context.Context, key string) (summary.DecodeProgress, error) {
	const endpoint = "poll_decode"
	if err := requireKey(endpoint, key); err != nil {
		return summary.DecodeProgress{}, err
	}
	env, err := c.call(ctx, http.MethodGet, endpoint, keyQuery(key), nil)
	if err != nil {
		return summary.DecodeProgress{}, err
	}
	var res pollResult
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return summary.DecodeProgress{}, services.Wrap(services.ErrExternalTool, "backend", endpoint, "decode poll result", err)
	}
	sample := summary.DecodeProgress{State: "decoding"}
	if p, ok := number(res.Progress); ok {
		sample.Progress = p
	}
	if eta, ok := number(res.ETA); ok {
		sample.ETA = FormatETA(eta)
	}
	if res.EndTime != nil {
		sample.State = "done"
		sample.Progress = 100
		sample.ETA = FormatETA(0)
	}
	return sample, nil
}

// DecodeMetadata fetches the decode result.
func (c *Client) DecodeMetadata(ctx context.Context, key string) (summary.Decode, error) {
	meta, err := c.metadata(ctx, "metadata_decode", key)
	if err != nil {
		return summary.Decode{}, err
	}
	dec := summary.Decode{
		PSNR:       firstField(meta, "psnr", "actual_psnr"),
		Duration:   firstField(meta, "duration_s", "duration"),
		FrameCount: int(firstField(meta, "video_frames", "frame_count", "total_frames")),
	}
	_, hasEnd := number(meta["end_time"])
	dec.Finished = hasEnd
	return dec, nil
}

func (c *Client) metadata(ctx context.Context, endpoint, key string) (map[string]json.RawMessage, error) {
	if err := requireKey(endpoint, key); err != nil {
		return nil, err
	}
	env, err := c.call(ctx, http.MethodGet, endpoint, keyQuery(key), nil)
	if err != nil {
		return nil, err
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(env.Result, &meta); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "backend", endpoint, "decode metadata", err)
	}
	if meta == nil {
		return nil, services.Wrap(services.ErrTransient, "backend", endpoint, "metadata not available yet", nil)
	}
	return meta, nil
}

// FormatETA renders seconds the way decode telemetry displays them ("12s").
func FormatETA(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	return fmt.Sprintf("%ds", int(math.Round(seconds)))
}

func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return 0, false
	}
	return *v, true
}

func field(meta map[string]json.RawMessage, key string) float64 {
	v, _ := number(meta[key])
	return v
}

func firstField(meta map[string]json.RawMessage, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := number(meta[key]); ok {
			return v
		}
	}
	return 0
}

func bytesToMB(n float64) float64 {
	if n <= 0 {
		return 0
	}
	return n / (1024 * 1024)
}

// Ping checks that the service root answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodGet, "", nil, nil)
	return err
}

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"demoflow/internal/services"
	"demoflow/internal/summary"
)

// ComparisonCodecs are the reference codecs encoded for the comparison.
var ComparisonCodecs = []string{"av1", "h264", "h265"}

type codecPayload struct {
	PSNR             *float64 `json:"psnr"`
	EncodedPath      string   `json:"encoded_path"`
	Path             string   `json:"path"`
	FileSize         int64    `json:"file_size"`
	CompressionRatio float64  `json:"compression_ratio"`
	Status           string   `json:"status"`
}

type comparePayload struct {
	codecPayload
	Codecs map[string]codecPayload `json:"codecs"`
}

// CompareCodecs encodes the uploaded video with every reference codec
// concurrently and returns one metric per codec. The first failure cancels
// the remaining requests. An empty quality uses the configured preset.
func (c *Client) CompareCodecs(ctx context.Context, key, quality string) (map[string]summary.CodecMetric, error) {
	const endpoint = "encode_and_psnr"
	if err := requireKey(endpoint, key); err != nil {
		return nil, err
	}
	if strings.TrimSpace(quality) == "" {
		quality = c.quality
	}

	var mu sync.Mutex
	out := make(map[string]summary.CodecMetric, len(ComparisonCodecs))
	g, gctx := errgroup.WithContext(ctx)
	for _, codec := range ComparisonCodecs {
		g.Go(func() error {
			metric, err := c.compareOne(gctx, endpoint, key, codec, quality)
			if err != nil {
				return err
			}
			mu.Lock()
			out[codec] = metric
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) compareOne(ctx context.Context, endpoint, key, codec, quality string) (summary.CodecMetric, error) {
	env, err := c.call(ctx, http.MethodPost, endpoint, nil, map[string]string{
		"key":     key,
		"codec":   codec,
		"quality": quality,
	})
	if err != nil {
		return summary.CodecMetric{}, err
	}
	var data comparePayload
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return summary.CodecMetric{}, services.Wrap(services.ErrExternalTool, "backend", endpoint, "decode "+codec+" result", err)
	}
	payload := data.codecPayload
	if entry, ok := data.Codecs[codec]; ok {
		payload = entry
	}
	if payload.PSNR == nil {
		return summary.CodecMetric{}, services.Wrap(services.ErrExternalTool, "backend", endpoint, codec+" result has no psnr", ErrRemote)
	}
	path := payload.EncodedPath
	if path == "" {
		path = payload.Path
	}
	return summary.CodecMetric{
		PSNR:             *payload.PSNR,
		VideoURL:         c.StreamURL(path),
		FileSize:         payload.FileSize,
		CompressionRatio: payload.CompressionRatio,
		Status:           normalizeStatus(payload.Status),
	}, nil
}

// normalizeStatus maps the backend's per-codec status onto the summary's
// "done" convention. A missing status means the encode succeeded.
func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", "ok", "success", "done":
		return "done"
	default:
		return strings.ToLower(strings.TrimSpace(status))
	}
}

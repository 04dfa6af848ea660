package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"demoflow/internal/config"
	"demoflow/internal/logging"
	"demoflow/internal/metrics"
	"demoflow/internal/services"
)

// ErrRemote reports a failure the backend described in its reply.
var ErrRemote = errors.New("backend reported failure")

// DefaultQuality is the comparison encode preset.
const DefaultQuality = "medium"

const defaultTimeout = 30 * time.Second

// HTTPDoer describes the HTTP client used by the backend client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the processing backend.
type Client struct {
	baseURL string
	client  HTTPDoer
	timeout time.Duration
	quality string
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.client = doer
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithQuality(quality string) Option {
	return func(c *Client) {
		if q := strings.TrimSpace(quality); q != "" {
			c.quality = q
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.NewComponentLogger(logger, "backend") }
}

func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = rec }
}

// New builds a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  http.DefaultClient,
		timeout: defaultTimeout,
		quality: DefaultQuality,
		logger:  logging.NewComponentLogger(nil, "backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the [backend] section.
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		return New("", opts...)
	}
	base := []Option{WithTimeout(cfg.RequestTimeout()), WithQuality(cfg.Backend.Quality)}
	return New(cfg.Backend.BaseURL, append(base, opts...)...)
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string { return c.baseURL }

// StreamURL returns the playable URL of a backend-relative media path.
func (c *Client) StreamURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return c.baseURL + "/stream/" + strings.TrimPrefix(path, "/")
}

type envelope struct {
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	raw     []byte
}

// status returns the result field when it is a string.
func (e envelope) status() string {
	var s string
	if err := json.Unmarshal(e.Result, &s); err != nil {
		return ""
	}
	return s
}

func (c *Client) call(ctx context.Context, method, endpoint string, query url.Values, body any) (envelope, error) {
	if c.baseURL == "" {
		return envelope{}, services.Wrap(services.ErrConfiguration, "backend", endpoint, "base_url is not configured", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + "/" + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return envelope{}, services.Wrap(services.ErrValidation, "backend", endpoint, "encode request", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return envelope{}, services.Wrap(services.ErrValidation, "backend", endpoint, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	env, err := c.exchange(req, endpoint)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.BackendRequest(endpoint, status)
	c.logger.Debug("backend call",
		logging.String("endpoint", endpoint),
		logging.String("status", status),
		logging.Duration("elapsed", time.Since(started)),
	)
	return env, err
}

func (c *Client) exchange(req *http.Request, endpoint string) (envelope, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return envelope{}, services.Wrap(services.ErrTimeout, "backend", endpoint, "request timed out", err)
		}
		return envelope{}, services.Wrap(services.ErrTransient, "backend", endpoint, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return envelope{}, services.Wrap(services.ErrTransient, "backend", endpoint, "read response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if detail := strings.TrimSpace(string(data)); detail != "" {
			msg += ": " + truncate(detail, 200)
		}
		return envelope{}, services.Wrap(services.ErrExternalTool, "backend", endpoint, msg, ErrRemote)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, services.Wrap(services.ErrExternalTool, "backend", endpoint, "decode response", err)
	}
	env.raw = data
	if env.status() == "error" {
		message := strings.TrimSpace(env.Message)
		if message == "" {
			message = "unspecified error"
		}
		return envelope{}, services.Wrap(services.ErrExternalTool, "backend", endpoint, message, ErrRemote)
	}
	return env, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func keyQuery(key string) url.Values {
	return url.Values{"key": []string{key}}
}

func requireKey(endpoint, key string) error {
	if strings.TrimSpace(key) == "" {
		return services.Wrap(services.ErrValidation, "backend", endpoint, "key is required", nil)
	}
	return nil
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Backend describes the external processing service.
type Backend struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	Quality        string `toml:"quality"`
}

// Workflow contains the auto-advance timing knobs.
type Workflow struct {
	AutoAdvanceDelayMS  int `toml:"auto_advance_delay_ms"`
	AutoAdvanceTarget   int `toml:"auto_advance_target"`
	AutoAdvanceArmBelow int `toml:"auto_advance_arm_below"`
}

// Streams holds the source URL for each comparison stream. An empty URL
// disables the readiness fallback for that stream.
type Streams struct {
	Primary string `toml:"primary"`
	CodecA  string `toml:"codec_a"`
	CodecB  string `toml:"codec_b"`
	CodecC  string `toml:"codec_c"`
}

// Playback contains the synchronized player settings.
type Playback struct {
	PrimaryFallbackMS int     `toml:"primary_fallback_ms"`
	StreamFallbackMS  int     `toml:"stream_fallback_ms"`
	SkipSeconds       float64 `toml:"skip_seconds"`
	DefaultDuration   float64 `toml:"default_duration"`
	MetricTickMS      int     `toml:"metric_tick_ms"`
	MetricJitter      float64 `toml:"metric_jitter"`
	Streams           Streams `toml:"streams"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for demoflow.
//
// Configuration sections by subsystem:
//   - Paths: log directory and API bind address
//   - Backend: processing service endpoint and polling
//   - Workflow: auto-advance timer
//   - Playback: readiness fallbacks, transport and metric simulation
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Backend  Backend  `toml:"backend"`
	Workflow Workflow `toml:"workflow"`
	Playback Playback `toml:"playback"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/demoflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("demoflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// LockPath is the single-instance lock file held by the daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "demoflow.lock")
}

// LogPath is the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "demoflow.log")
}

// RequestTimeout returns the per-request backend timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeout) * time.Second
}

// PollInterval returns the decode telemetry poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Backend.PollIntervalMS) * time.Millisecond
}

// AutoAdvanceDelay returns the auto-advance one-shot delay.
func (c *Config) AutoAdvanceDelay() time.Duration {
	return time.Duration(c.Workflow.AutoAdvanceDelayMS) * time.Millisecond
}

// PrimaryFallback returns the readiness fallback window for the adaptive stream.
func (c *Config) PrimaryFallback() time.Duration {
	return time.Duration(c.Playback.PrimaryFallbackMS) * time.Millisecond
}

// StreamFallback returns the readiness fallback window for progressive streams.
func (c *Config) StreamFallback() time.Duration {
	return time.Duration(c.Playback.StreamFallbackMS) * time.Millisecond
}

// MetricTick returns the quality score simulation interval.
func (c *Config) MetricTick() time.Duration {
	return time.Duration(c.Playback.MetricTickMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

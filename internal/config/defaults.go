package config

const (
	defaultLogDir              = "~/.local/share/demoflow/logs"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultBackendURL          = "http://localhost:9000"
	defaultRequestTimeout      = 30
	defaultPollIntervalMS      = 500
	defaultQuality             = "medium"
	defaultAutoAdvanceDelayMS  = 5000
	defaultAutoAdvanceTarget   = 4
	defaultAutoAdvanceArmBelow = 4
	defaultPrimaryFallbackMS   = 3000
	defaultStreamFallbackMS    = 2000
	defaultSkipSeconds         = 10
	defaultDuration            = 60
	defaultMetricTickMS        = 1000
	defaultMetricJitter        = 0.5
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Backend: Backend{
			BaseURL:        defaultBackendURL,
			RequestTimeout: defaultRequestTimeout,
			PollIntervalMS: defaultPollIntervalMS,
			Quality:        defaultQuality,
		},
		Workflow: Workflow{
			AutoAdvanceDelayMS:  defaultAutoAdvanceDelayMS,
			AutoAdvanceTarget:   defaultAutoAdvanceTarget,
			AutoAdvanceArmBelow: defaultAutoAdvanceArmBelow,
		},
		Playback: Playback{
			PrimaryFallbackMS: defaultPrimaryFallbackMS,
			StreamFallbackMS:  defaultStreamFallbackMS,
			SkipSeconds:       defaultSkipSeconds,
			DefaultDuration:   defaultDuration,
			MetricTickMS:      defaultMetricTickMS,
			MetricJitter:      defaultMetricJitter,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

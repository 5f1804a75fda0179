package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// DisplayConfig holds the waiting-room display client configuration.
// Command-line flags override these values.
type DisplayConfig struct {
	ServerURL    string        `env:"DISPLAY_SERVER_URL" envDefault:"http://localhost:8080"`
	PollInterval time.Duration `env:"DISPLAY_POLL_INTERVAL" envDefault:"3s"`
	SegmentPause time.Duration `env:"DISPLAY_SEGMENT_PAUSE" envDefault:"50ms"`
	UseWebSocket bool          `env:"DISPLAY_WEBSOCKET" envDefault:"true"`

	// SegmentsDir plays recordings from a local directory instead of
	// fetching them from the server.
	SegmentsDir string `env:"DISPLAY_SEGMENTS_DIR"`
	CacheDir    string `env:"DISPLAY_CACHE_DIR"`
	StateFile   string `env:"DISPLAY_STATE_FILE"`

	SampleRate int `env:"DISPLAY_SAMPLE_RATE" envDefault:"44100"`
	Channels   int `env:"DISPLAY_CHANNELS" envDefault:"1"`

	LogLevel  string `env:"DISPLAY_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"DISPLAY_LOG_FORMAT" envDefault:"pretty"`
}

// LoadDisplay loads display configuration from environment variables.
// It does not validate; call Validate after applying flags.
func LoadDisplay() (*DisplayConfig, error) {
	loadDotEnv()

	cfg, err := env.ParseAs[DisplayConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// Validate validates the display configuration
func (c *DisplayConfig) Validate() error {
	var errs []string

	if u, err := url.Parse(c.ServerURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "server URL must be an absolute http(s) URL")
	}
	if c.PollInterval < 100*time.Millisecond {
		errs = append(errs, "poll interval must be at least 100ms")
	}
	if c.SegmentPause < 0 {
		errs = append(errs, "segment pause cannot be negative")
	}
	if c.SampleRate != 44100 && c.SampleRate != 48000 {
		errs = append(errs, "sample rate must be 44100 or 48000")
	}
	if c.Channels != 1 && c.Channels != 2 {
		errs = append(errs, "channels must be 1 or 2")
	}

	errs = append(errs, validateLogging(c.LogLevel, c.LogFormat)...)

	return joinErrors(errs)
}

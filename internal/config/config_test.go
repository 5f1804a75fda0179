package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "clinic-queue.db", cfg.SQLite.Path)
	assert.Equal(t, 64, cfg.Queue.PersistBuffer)
	assert.Equal(t, 5*time.Second, cfg.Queue.PersistTimeout)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "clinic-queue", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://user:secret@db:5432/queue")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://kiosk.local,http://desk.local")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, []string{"http://kiosk.local", "http://desk.local"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.NotContains(t, cfg.String(), "secret")
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("SERVER_READ_TIMEOUT", "soon")

	_, err := Load()

	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		Store:     StoreConfig{Driver: StoreDriverMemory},
		Queue:     QueueConfig{PersistBuffer: 1},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerSecond: 1, BurstSize: 1},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		App:       AppConfig{Environment: "development"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }, "STORE_DRIVER"},
		{"postgres without url", func(c *Config) { c.Store.Driver = StoreDriverPostgres }, "DATABASE_URL"},
		{"sqlite without path", func(c *Config) { c.Store.Driver = StoreDriverSQLite }, "SQLITE_PATH"},
		{"empty persist buffer", func(c *Config) { c.Queue.PersistBuffer = 0 }, "QUEUE_PERSIST_BUFFER"},
		{"bad rate limit", func(c *Config) { c.RateLimit.BurstSize = 0 }, "RATE_LIMIT"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
		{"production without origins", func(c *Config) { c.App.Environment = "production" }, "WS_ALLOWED_ORIGINS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAccumulatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "redis"
	cfg.Logging.Level = "loud"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
	assert.Contains(t, err.Error(), "log level")
}

func TestDisplayConfig(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		cfg, err := LoadDisplay()
		require.NoError(t, err)

		assert.Equal(t, 3*time.Second, cfg.PollInterval)
		assert.Equal(t, 50*time.Millisecond, cfg.SegmentPause)
		assert.Equal(t, 44100, cfg.SampleRate)
		assert.Equal(t, "pretty", cfg.LogFormat)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("DISPLAY_SERVER_URL", "localhost:8080")
		t.Setenv("DISPLAY_SAMPLE_RATE", "22050")
		t.Setenv("DISPLAY_CHANNELS", "6")

		cfg, err := LoadDisplay()
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server URL")
		assert.Contains(t, err.Error(), "sample rate")
		assert.Contains(t, err.Error(), "channels")
	})
}

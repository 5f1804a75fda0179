package config

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

var (
	storeDrivers = []string{StoreDriverPostgres, StoreDriverSQLite, StoreDriverMemory}
	logLevels    = []string{"debug", "info", "warn", "error"}
	logFormats   = []string{"json", "text", "pretty"}
)

// Config holds all server configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	SQLite    SQLiteConfig
	Queue     QueueConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	WebSocket WebSocketConfig
	Logging   LoggingConfig
	App       AppConfig
	Audio     AudioConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// StoreConfig selects the counter store backend
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"sqlite"`
}

// DatabaseConfig holds postgres configuration
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"2"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// SQLiteConfig holds sqlite configuration
type SQLiteConfig struct {
	Path     string `env:"SQLITE_PATH" envDefault:"clinic-queue.db"`
	PoolSize int    `env:"SQLITE_POOL_SIZE" envDefault:"4"`
}

// QueueConfig tunes the persistence writer behind the queue service
type QueueConfig struct {
	PersistBuffer  int           `env:"QUEUE_PERSIST_BUFFER" envDefault:"64"`
	PersistTimeout time.Duration `env:"QUEUE_PERSIST_TIMEOUT" envDefault:"5s"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool    `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	BurstSize         int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

// CORSConfig lists the browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	AllowedOrigins  []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
	ReadBufferSize  int      `env:"WS_READ_BUFFER_SIZE" envDefault:"1024"`
	WriteBufferSize int      `env:"WS_WRITE_BUFFER_SIZE" envDefault:"1024"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"clinic-queue"`
	Version     string `env:"APP_VERSION" envDefault:"dev"`
	Environment string `env:"APP_ENV" envDefault:"development"`
}

// AudioConfig locates the announcement recordings served under /audio.
// An empty directory disables the route.
type AudioConfig struct {
	SegmentsDir string `env:"AUDIO_SEGMENTS_DIR" envDefault:"assets/audio"`
}

// loadDotEnv loads a .env file if it exists (for local development)
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
}

// Load loads server configuration from environment variables
func Load() (*Config, error) {
	loadDotEnv()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(storeDrivers, c.Store.Driver) {
		errs = append(errs, fmt.Sprintf("STORE_DRIVER must be one of %s", strings.Join(storeDrivers, ", ")))
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when STORE_DRIVER=postgres")
		}
		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			errs = append(errs, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
		}
	case StoreDriverSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, "SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	}

	if c.Queue.PersistBuffer < 1 {
		errs = append(errs, "QUEUE_PERSIST_BUFFER must be at least 1")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.BurstSize < 1) {
		errs = append(errs, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	errs = append(errs, validateLogging(c.Logging.Level, c.Logging.Format)...)

	// Security validations
	if c.IsProduction() && len(c.WebSocket.AllowedOrigins) == 0 {
		errs = append(errs, "WS_ALLOWED_ORIGINS must be set in production")
	}

	return joinErrors(errs)
}

func validateLogging(level, format string) []string {
	var errs []string
	if !slices.Contains(logLevels, level) {
		errs = append(errs, fmt.Sprintf("log level must be one of %s", strings.Join(logLevels, ", ")))
	}
	if !slices.Contains(logFormats, format) {
		errs = append(errs, fmt.Sprintf("log format must be one of %s", strings.Join(logFormats, ", ")))
	}
	return errs
}

func joinErrors(errs []string) error {
	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, Store: %s, DB: %s, RateLimit: %v, Environment: %s}",
		c.Server.Port,
		c.Store.Driver,
		redactURL(c.Database.URL),
		c.RateLimit.Enabled,
		c.App.Environment,
	)
}

// redactURL redacts sensitive parts of a database URL
func redactURL(url string) string {
	if url == "" {
		return ""
	}
	if idx := strings.Index(url, "@"); idx > 0 {
		return "[REDACTED]" + url[idx:]
	}
	return "[REDACTED]"
}

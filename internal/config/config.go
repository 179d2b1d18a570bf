package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"tour-counter-go/internal/models"
)

// ErrInvalidConfig is returned by Validate for settings that cannot run
var ErrInvalidConfig = errors.New("invalid configuration")

// Backpressure modes for the per-gate tick queue
const (
	BackpressureDropOldest = "drop_oldest"
	BackpressureBlock      = "block"
)

// BoundaryConfig is the gate line, in the tracker's coordinate space
type BoundaryConfig struct {
	Y    float64 `env:"Y" envDefault:"800"`
	XMin float64 `env:"X_MIN" envDefault:"600"`
	XMax float64 `env:"X_MAX" envDefault:"1500"`
}

type Config struct {
	// Application
	Version     string `env:"VERSION" envDefault:"1.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	WorkerID    string `env:"WORKER_ID" envDefault:"worker-1"`
	Port        int    `env:"PORT" envDefault:"8000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool   `env:"LOGDY_ENABLED" envDefault:"false"`
	LogdyHost    string `env:"LOGDY_HOST" envDefault:"localhost"`
	LogdyPort    int    `env:"LOGDY_PORT" envDefault:"8080"`

	// NATS (status and alert fan-out)
	// Default: nats://localhost:4222, or nats://nats:4222 inside Docker
	NatsEnabled        bool          `env:"NATS_ENABLED" envDefault:"true"`
	NatsURL            string        `env:"NATS_URL"`
	NatsConnectTimeout time.Duration `env:"NATS_CONNECT_TIMEOUT" envDefault:"10s"`
	NatsReconnectWait  time.Duration `env:"NATS_RECONNECT_WAIT" envDefault:"2s"`
	NatsMaxReconnects  int           `env:"NATS_MAX_RECONNECTS" envDefault:"-1"` // -1 = unlimited
	NatsDrainTimeout   time.Duration `env:"NATS_DRAIN_TIMEOUT" envDefault:"5s"`
	StatusSubject      string        `env:"STATUS_SUBJECT" envDefault:"tour.status"`
	AlertsSubject      string        `env:"ALERTS_SUBJECT" envDefault:"tour.alerts"`

	// Status and warning log
	StoreEnabled bool   `env:"STORE_ENABLED" envDefault:"true"`
	StorePath    string `env:"STORE_PATH" envDefault:"smart_tour.db"`

	// gRPC tick ingestion
	GRPCEnabled bool `env:"GRPC_ENABLED" envDefault:"true"`
	GRPCPort    int  `env:"GRPC_PORT" envDefault:"50051"`

	// Gate
	GateID                string         `env:"GATE_ID" envDefault:"main"`
	Boundary              BoundaryConfig `envPrefix:"BOUNDARY_"`
	CrossingCooldown      time.Duration  `env:"CROSSING_COOLDOWN" envDefault:"2s"`
	IdleTimeout           time.Duration  `env:"IDLE_TIMEOUT" envDefault:"5s"`
	FinishedSettle        time.Duration  `env:"FINISHED_SETTLE" envDefault:"1s"`
	CapacityThreshold     int            `env:"CAPACITY_THRESHOLD" envDefault:"22"`
	AlertCooldown         time.Duration  `env:"ALERT_COOLDOWN" envDefault:"10s"`
	HistoryEvictionFactor int            `env:"HISTORY_EVICTION_FACTOR" envDefault:"12"` // 0 disables idle eviction

	// Tick queue
	TickQueueSize int           `env:"TICK_QUEUE_SIZE" envDefault:"64"`
	Backpressure  string        `env:"BACKPRESSURE" envDefault:"drop_oldest"`
	SubmitTimeout time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"2s"`

	// Publishing
	PublishBuffer  int           `env:"PUBLISH_BUFFER" envDefault:"128"`
	PublishWorkers int           `env:"PUBLISH_WORKERS" envDefault:"2"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"3s"`

	// Swagger Configuration
	SwaggerHost string `env:"SWAGGER_HOST" envDefault:"localhost"`

	// Graceful Shutdown
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load reads .env (if present) and the environment, then validates the result
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.NatsURL == "" {
		cfg.NatsURL = getNatsURL()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings the tick loop could not honor
func (c *Config) Validate() error {
	if err := c.Gate().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch {
	case c.HistoryEvictionFactor < 0:
		return fmt.Errorf("%w: HISTORY_EVICTION_FACTOR must not be negative", ErrInvalidConfig)
	case c.TickQueueSize <= 0:
		return fmt.Errorf("%w: TICK_QUEUE_SIZE must be positive", ErrInvalidConfig)
	case c.Backpressure != BackpressureDropOldest && c.Backpressure != BackpressureBlock:
		return fmt.Errorf("%w: BACKPRESSURE must be %q or %q, got %q", ErrInvalidConfig, BackpressureDropOldest, BackpressureBlock, c.Backpressure)
	case c.PublishBuffer <= 0:
		return fmt.Errorf("%w: PUBLISH_BUFFER must be positive", ErrInvalidConfig)
	case c.PublishWorkers <= 0:
		return fmt.Errorf("%w: PUBLISH_WORKERS must be positive", ErrInvalidConfig)
	case c.Port <= 0:
		return fmt.Errorf("%w: PORT must be positive", ErrInvalidConfig)
	case c.GRPCEnabled && c.GRPCPort <= 0:
		return fmt.Errorf("%w: GRPC_PORT must be positive", ErrInvalidConfig)
	}
	return nil
}

// Gate derives the configuration of the default gate
func (c *Config) Gate() models.GateConfig {
	return models.GateConfig{
		ID: c.GateID,
		Line: models.Boundary{
			Y:    c.Boundary.Y,
			XMin: c.Boundary.XMin,
			XMax: c.Boundary.XMax,
		},
		CrossingCooldown:  c.CrossingCooldown,
		IdleTimeout:       c.IdleTimeout,
		FinishedSettle:    c.FinishedSettle,
		CapacityThreshold: c.CapacityThreshold,
		AlertCooldown:     c.AlertCooldown,
		HistoryTTL:        c.IdleTimeout * time.Duration(c.HistoryEvictionFactor),
	}
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	// If running in Docker, use service name; otherwise use localhost
	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}

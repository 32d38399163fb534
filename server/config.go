package server

import (
	"time"

	"github.com/kbukum/queuekit/server/middleware"
	"github.com/kbukum/queuekit/validation"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`

	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	// WriteTimeout bounds a whole response. Zero leaves run streams unbounded.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gte=0"`
	// ShutdownTimeout is the grace period open streams get on Stop.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gte=0"`

	MaxBodySize string                `yaml:"max_body_size" mapstructure:"max_body_size"` // e.g. "64KB"
	CORS        middleware.CORSConfig `yaml:"cors" mapstructure:"cors"`

	// MaxConcurrentRuns caps streams open on /v1/runs. RunWait is how long a
	// request may wait for a slot before it is turned away with 503.
	MaxConcurrentRuns int           `yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs" validate:"gte=0"`
	RunWait           time.Duration `yaml:"run_wait" mapstructure:"run_wait" validate:"gte=0"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "64KB"
	}
	if c.MaxConcurrentRuns == 0 {
		c.MaxConcurrentRuns = 16
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", middleware.HeaderRequestID}
	}
	if len(c.CORS.ExposedHeaders) == 0 {
		c.CORS.ExposedHeaders = []string{middleware.HeaderRequestID, "X-Run-Id"}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

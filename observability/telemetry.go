package observability

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/queuekit/component"
	"github.com/kbukum/queuekit/logger"
)

// Config controls OTLP export for a binary.
type Config struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
}

// ApplyDefaults fills unset export settings.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
}

// Validate checks the export settings.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0,1] (got: %v)", c.SampleRate)
	}
	return nil
}

// Telemetry is a component owning the tracer and meter providers.
type Telemetry struct {
	cfg Config
	id  Identity

	mu      sync.Mutex
	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
	started bool
}

var _ component.Component = (*Telemetry)(nil)

// NewTelemetry creates the telemetry component.
func NewTelemetry(cfg Config, service, version, environment string) *Telemetry {
	cfg.ApplyDefaults()
	return &Telemetry{cfg: cfg, id: Identity{Service: service, Version: version, Environment: environment}}
}

// Name implements component.Component.
func (t *Telemetry) Name() string { return "telemetry" }

// Start installs the OTLP providers when export is enabled.
func (t *Telemetry) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.cfg.Enabled {
		logger.Debug("telemetry export disabled")
		t.started = true
		return nil
	}

	tp, err := InitTracer(ctx, t.cfg, t.id)
	if err != nil {
		return err
	}
	mp, err := InitMeter(ctx, t.cfg, t.id)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}

	t.tp, t.mp, t.started = tp, mp, true
	return nil
}

// Stop flushes and shuts down the providers.
func (t *Telemetry) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	t.tp, t.mp, t.started = nil, nil, false
	return stderrors.Join(errs...)
}

// Health implements component.Component.
func (t *Telemetry) Health(_ context.Context) component.Health {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := component.Health{Name: t.Name(), Status: component.StatusHealthy}
	switch {
	case !t.started:
		h.Status = component.StatusUnhealthy
		h.Message = "not started"
	case !t.cfg.Enabled:
		h.Message = "export disabled"
	}
	return h
}

// Describe implements component.Describable.
func (t *Telemetry) Describe() component.Description {
	details := "disabled"
	if t.cfg.Enabled {
		details = fmt.Sprintf("otlp/http %s sample=%.2f", t.cfg.Endpoint, t.cfg.SampleRate)
	}
	return component.Description{Name: "Telemetry", Type: "telemetry", Details: details}
}

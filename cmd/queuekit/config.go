package main

import (
	"fmt"

	"github.com/kbukum/queuekit/config"
	"github.com/kbukum/queuekit/observability"
	"github.com/kbukum/queuekit/pipeline"
	"github.com/kbukum/queuekit/server"
	"github.com/kbukum/queuekit/version"
)

const serviceName = "queuekit"

// AppConfig is the full configuration of the queuekit binary.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Pipeline  pipeline.Config      `yaml:"pipeline" mapstructure:"pipeline"`
	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// ApplyDefaults fills every section.
func (c *AppConfig) ApplyDefaults() {
	if c.Version == "" {
		c.Version = version.GetShortVersion()
	}
	c.ServiceConfig.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("config.pipeline: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config.server: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("config.telemetry: %w", err)
	}
	return nil
}

// defaults seed the loader so a missing config file still yields the
// classic three-word demo plus one counter.
var defaults = map[string]any{
	"pipeline.dataset":             []string{"abc", "xyz", "foo"},
	"pipeline.counts":              []int{3},
	"pipeline.failure_probability": pipeline.DefaultFailureProbability,
	"pipeline.break_probability":   pipeline.DefaultBreakProbability,
	"pipeline.cancel_probability":  pipeline.DefaultCancelProbability,
}

func loadConfig(opts *rootOptions, overrides map[string]any) (*AppConfig, error) {
	loaderOpts := []config.LoaderOption{
		config.WithDefaults(defaults),
		config.WithOverrides(overrides),
	}
	if opts.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(opts.configFile))
	}
	if opts.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(opts.envFile))
	}

	cfg := &AppConfig{}
	if err := config.LoadConfig(serviceName, cfg, loaderOpts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

package bootstrap

import (
	"github.com/kbukum/queuekit/config"
)

// Config is the constraint for application configuration types.
// Any struct embedding config.ServiceConfig satisfies it through promoted
// methods:
//
//	type AppConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Pipeline pipeline.Config `yaml:"pipeline" mapstructure:"pipeline"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}

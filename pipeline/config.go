package pipeline

import (
	"time"

	"github.com/kbukum/queuekit/validation"
)

// Default probabilities for the randomized behaviour of a run.
const (
	DefaultFailureProbability = 0.3
	DefaultBreakProbability   = 0.1
	DefaultCancelProbability  = 0.05
	DefaultMultiplier         = 2
)

// Built-in transform names.
const (
	TransformScale = "scale"
	TransformUpper = "upper"
)

// Config describes one pipeline run.
type Config struct {
	// Dataset holds one text source per character producer.
	Dataset []string `yaml:"dataset" mapstructure:"dataset" json:"dataset"`
	// Counts holds one count per integer producer.
	Counts []int `yaml:"counts" mapstructure:"counts" json:"counts" validate:"dive,gte=0"`
	// Timeout ends the stream when no item arrives within it.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout" validate:"gt=0"`
	// Transform names the built-in transform: "scale" repeats and multiplies
	// by Multiplier, "upper" only upper-cases characters.
	Transform string `yaml:"transform" mapstructure:"transform" json:"transform" validate:"oneof=scale upper"`
	// Multiplier scales the "scale" transform.
	Multiplier int `yaml:"multiplier" mapstructure:"multiplier" json:"multiplier" validate:"gte=1"`
	// TimeUnit bounds the random per-item generation delay.
	TimeUnit time.Duration `yaml:"time_unit" mapstructure:"time_unit" json:"time_unit" validate:"gte=0"`
	// BreakPause is how long the consumer rests after a break marker.
	BreakPause time.Duration `yaml:"break_pause" mapstructure:"break_pause" json:"break_pause" validate:"gte=0"`

	FailureProbability float64 `yaml:"failure_probability" mapstructure:"failure_probability" json:"failure_probability" validate:"gte=0,lte=1"`
	BreakProbability   float64 `yaml:"break_probability" mapstructure:"break_probability" json:"break_probability" validate:"gte=0,lte=1"`
	CancelProbability  float64 `yaml:"cancel_probability" mapstructure:"cancel_probability" json:"cancel_probability" validate:"gte=0,lte=1"`

	// Seed makes every random roll reproducible. Zero uses the process-wide source.
	Seed uint64 `yaml:"seed" mapstructure:"seed" json:"seed"`
}

// DefaultConfig returns a config carrying the default probabilities.
// Durations and multiplier are filled by ApplyDefaults.
func DefaultConfig() Config {
	return Config{
		FailureProbability: DefaultFailureProbability,
		BreakProbability:   DefaultBreakProbability,
		CancelProbability:  DefaultCancelProbability,
	}
}

// ApplyDefaults fills zero durations, transform and multiplier. Probabilities are left
// as given so an explicit zero disables the behaviour.
func (c *Config) ApplyDefaults() {
	if c.TimeUnit == 0 {
		c.TimeUnit = time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * c.TimeUnit
	}
	if c.BreakPause == 0 {
		c.BreakPause = c.TimeUnit
	}
	if c.Transform == "" {
		c.Transform = TransformScale
	}
	if c.Multiplier == 0 {
		c.Multiplier = DefaultMultiplier
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// ProducerCount returns how many producers the config alone spawns.
func (c *Config) ProducerCount() int {
	return len(c.Dataset) + len(c.Counts)
}

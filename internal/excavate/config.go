package excavate

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/channel.builder/internal/config"
)

// ErrInvalidConfig is wrapped by every engine configuration failure.
var ErrInvalidConfig = errors.New("invalid excavation config")

// Config holds the engine parameters.
type Config struct {
	// MaxDepth is the depth limit above the bed the side slopes may reach.
	// It also sets the lateral footprint: bedWidth/2 + MaxDepth*slope.
	MaxDepth float64 `json:"max_depth"`

	// FillNoData controls nodata cells inside a footprint. When true they
	// take the first proposed target and are then min-merged; when false
	// they are left untouched.
	FillNoData bool `json:"fill_nodata"`

	// Workers bounds the compute phase. Zero or negative means one per CPU.
	Workers int `json:"workers"`
}

// DefaultConfig returns a Config built from the repository defaults file.
func DefaultConfig() *Config {
	return ConfigFromFile(config.MustLoadDefaultConfig())
}

// ConfigFromFile builds a Config from a loaded ExcavationConfig.
func ConfigFromFile(cfg *config.ExcavationConfig) *Config {
	return &Config{
		MaxDepth:   cfg.GetMaxDepth(),
		FillNoData: cfg.GetFillNoData(),
		Workers:    cfg.GetWorkers(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !(c.MaxDepth > 0) || math.IsInf(c.MaxDepth, 0) {
		return fmt.Errorf("%w: MaxDepth must be positive and finite, got %v", ErrInvalidConfig, c.MaxDepth)
	}
	return nil
}

// WithMaxDepth sets the depth limit.
func (c *Config) WithMaxDepth(d float64) *Config {
	c.MaxDepth = d
	return c
}

// WithFillNoData sets the nodata policy.
func (c *Config) WithFillNoData(enabled bool) *Config {
	c.FillNoData = enabled
	return c
}

// WithWorkers sets the compute-phase parallelism.
func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical excavation defaults file.
const DefaultConfigPath = "config/excavation.defaults.json"

// ExcavationConfig is the on-disk configuration of an excavation run.
// Every field is optional; the Get* methods supply defaults for omitted
// fields so partial files are safe.
type ExcavationConfig struct {
	// Engine params
	MaxDepth   *float64 `json:"max_depth,omitempty"`   // metres of cut above the bed the side slopes may reach
	FillNoData *bool    `json:"fill_nodata,omitempty"` // excavate nodata cells inside a footprint
	Workers    *int     `json:"workers,omitempty"`     // 0 means one per CPU

	// Run ledger params
	StoreGridSnapshot *bool `json:"store_grid_snapshot,omitempty"`

	// Report params
	ProfileStep *float64 `json:"profile_step,omitempty"` // sample spacing along channels; 0 means one cell
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyExcavationConfig returns an ExcavationConfig with all fields unset.
func EmptyExcavationConfig() *ExcavationConfig {
	return &ExcavationConfig{}
}

// DefaultExcavationConfig returns a config with every field set to its default.
func DefaultExcavationConfig() *ExcavationConfig {
	return &ExcavationConfig{
		MaxDepth:          ptrFloat64(DefaultMaxDepth),
		FillNoData:        ptrBool(true),
		Workers:           ptrInt(0),
		StoreGridSnapshot: ptrBool(true),
		ProfileStep:       ptrFloat64(0),
	}
}

// DefaultMaxDepth is the depth limit used when max_depth is omitted.
const DefaultMaxDepth = 5.0

// LoadExcavationConfig loads an ExcavationConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadExcavationConfig(path string) (*ExcavationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyExcavationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for tests and binaries run from the repository.
func MustLoadDefaultConfig() *ExcavationConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/excavate
		"../../" + DefaultConfigPath,    // from internal/config
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadExcavationConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the set values are in range.
func (c *ExcavationConfig) Validate() error {
	if c.MaxDepth != nil && !(*c.MaxDepth > 0) {
		return fmt.Errorf("max_depth must be positive, got %v", *c.MaxDepth)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.ProfileStep != nil && *c.ProfileStep < 0 {
		return fmt.Errorf("profile_step must be non-negative, got %v", *c.ProfileStep)
	}
	return nil
}

// GetMaxDepth returns the max_depth value or the default.
func (c *ExcavationConfig) GetMaxDepth() float64 {
	if c.MaxDepth == nil {
		return DefaultMaxDepth
	}
	return *c.MaxDepth
}

// GetFillNoData returns the fill_nodata value or the default.
func (c *ExcavationConfig) GetFillNoData() bool {
	if c.FillNoData == nil {
		return true // default: nodata inside a footprint is excavated
	}
	return *c.FillNoData
}

// GetWorkers returns the workers value or the default.
func (c *ExcavationConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetStoreGridSnapshot returns the store_grid_snapshot value or the default.
func (c *ExcavationConfig) GetStoreGridSnapshot() bool {
	if c.StoreGridSnapshot == nil {
		return true
	}
	return *c.StoreGridSnapshot
}

// GetProfileStep returns the profile_step value or the default.
func (c *ExcavationConfig) GetProfileStep() float64 {
	if c.ProfileStep == nil {
		return 0
	}
	return *c.ProfileStep
}

// JSON returns the config as compact JSON, for recording alongside a run.
func (c *ExcavationConfig) JSON() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}

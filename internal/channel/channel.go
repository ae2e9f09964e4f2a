// Package channel models a channel centreline with a trapezoidal
// cross-section that varies linearly from its upstream to its downstream end.
package channel

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/channel.builder/internal/geom"
)

// Configuration errors reported by New. Use errors.Is on a *ConfigError.
var (
	ErrNonPositiveSlope = errors.New("side slope must be positive")
	ErrNegativeWidth    = errors.New("bed width must be non-negative")
	ErrNonFinite        = errors.New("attribute is missing or not finite")
)

// Attributes are the trapezoid parameters at the upstream (Up) and
// downstream (Down) ends of a channel. Slopes are horizontal run per unit
// of vertical rise.
type Attributes struct {
	BedLevelUp   float64 `json:"bed_level_up"`
	BedLevelDown float64 `json:"bed_level_down"`
	BedWidthUp   float64 `json:"bed_width_up"`
	BedWidthDown float64 `json:"bed_width_down"`
	SlopeUp      float64 `json:"slope_up"`
	SlopeDown    float64 `json:"slope_down"`
}

// Section is the cross-section at one position along a channel.
type Section struct {
	BedLevel float64
	BedWidth float64
	Slope    float64
}

// Spec is the decoded, unvalidated description of one channel as it comes
// from the network reader.
type Spec struct {
	ID       string
	Vertices []r2.Vec
	Attributes
}

// Channel is a validated, immutable channel.
type Channel struct {
	id    string
	line  *geom.Polyline
	attrs Attributes
}

// ConfigError reports why a channel was rejected.
type ConfigError struct {
	ChannelID string
	Reason    string
	Err       error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("channel %q: %s", e.ChannelID, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// New validates s and builds a Channel. Any failure is a *ConfigError.
func New(s Spec) (*Channel, error) {
	line, err := geom.NewPolyline(s.Vertices)
	if err != nil {
		return nil, &ConfigError{ChannelID: s.ID, Reason: err.Error(), Err: err}
	}
	if err := s.Attributes.Validate(); err != nil {
		return nil, &ConfigError{ChannelID: s.ID, Reason: err.Error(), Err: err}
	}
	return &Channel{id: s.ID, line: line, attrs: s.Attributes}, nil
}

// Validate checks the six attributes.
func (a Attributes) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"bed_level_up", a.BedLevelUp},
		{"bed_level_down", a.BedLevelDown},
		{"bed_width_up", a.BedWidthUp},
		{"bed_width_down", a.BedWidthDown},
		{"slope_up", a.SlopeUp},
		{"slope_down", a.SlopeDown},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s: %w", f.name, ErrNonFinite)
		}
	}
	if a.BedWidthUp < 0 {
		return fmt.Errorf("bed_width_up %v: %w", a.BedWidthUp, ErrNegativeWidth)
	}
	if a.BedWidthDown < 0 {
		return fmt.Errorf("bed_width_down %v: %w", a.BedWidthDown, ErrNegativeWidth)
	}
	if a.SlopeUp <= 0 {
		return fmt.Errorf("slope_up %v: %w", a.SlopeUp, ErrNonPositiveSlope)
	}
	if a.SlopeDown <= 0 {
		return fmt.Errorf("slope_down %v: %w", a.SlopeDown, ErrNonPositiveSlope)
	}
	return nil
}

// At linearly interpolates the cross-section at arc-length position t.
// t is not clamped.
func (a Attributes) At(t float64) Section {
	return Section{
		BedLevel: a.BedLevelUp + t*(a.BedLevelDown-a.BedLevelUp),
		BedWidth: a.BedWidthUp + t*(a.BedWidthDown-a.BedWidthUp),
		Slope:    a.SlopeUp + t*(a.SlopeDown-a.SlopeUp),
	}
}

// Reach is the lateral half-width of the excavation footprint: the flat
// bed plus the horizontal run needed to climb maxDepth.
func (s Section) Reach(maxDepth float64) float64 {
	return s.BedWidth/2 + maxDepth*s.Slope
}

// ID returns the channel identifier.
func (c *Channel) ID() string { return c.id }

// Line returns the centreline.
func (c *Channel) Line() *geom.Polyline { return c.line }

// Attributes returns the end-point cross-section parameters.
func (c *Channel) Attributes() Attributes { return c.attrs }

// SectionAt returns the interpolated cross-section at t.
func (c *Channel) SectionAt(t float64) Section { return c.attrs.At(t) }

// CorridorRadius bounds the footprint reach over the whole channel. Reach
// is linear in t, so its maximum is at one of the two ends.
func (c *Channel) CorridorRadius(maxDepth float64) float64 {
	return math.Max(c.attrs.At(0).Reach(maxDepth), c.attrs.At(1).Reach(maxDepth))
}

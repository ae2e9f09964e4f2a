package excavate

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/channel.builder/internal/channel"
)

// Result is the outcome of evaluating one cell centre against one channel.
type Result struct {
	BedLevel float64
	BedWidth float64
	Slope    float64
	Distance float64 // distance from the centreline
	T        float64 // arc-length position, 0 upstream and 1 downstream
	Target   float64
}

// Evaluate computes the design elevation at p for channel ch. The second
// return value is false when p lies outside the channel footprint, in
// which case the cell must be left alone.
func Evaluate(p r2.Vec, ch *channel.Channel, maxDepth float64) (Result, bool) {
	loc := ch.Line().Locate(p)
	sec := ch.SectionAt(loc.T)

	res := Result{
		BedLevel: sec.BedLevel,
		BedWidth: sec.BedWidth,
		Slope:    sec.Slope,
		Distance: loc.Distance,
		T:        loc.T,
	}
	if loc.Distance > sec.Reach(maxDepth) {
		return res, false
	}
	res.Target = TrapezoidTarget(sec, loc.Distance, maxDepth)
	return res, true
}

// TrapezoidTarget is the design surface of a section at lateral distance d:
// flat at the bed level across the bed width, rising 1/slope per unit of
// distance beyond it, capped at bedLevel + maxDepth.
func TrapezoidTarget(sec channel.Section, d, maxDepth float64) float64 {
	excess := math.Max(0, d-sec.BedWidth/2)
	return math.Min(sec.BedLevel+excess/sec.Slope, sec.BedLevel+maxDepth)
}

package excavate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/channel.builder/internal/channel"
	"github.com/banshee-data/channel.builder/internal/testutil"
)

func mustChannel(t *testing.T, s channel.Spec) *channel.Channel {
	t.Helper()
	ch, err := channel.New(s)
	require.NoError(t, err)
	return ch
}

func TestTrapezoidTarget(t *testing.T) {
	sec := channel.Section{BedLevel: 3, BedWidth: 4, Slope: 2}
	tests := []struct {
		d    float64
		want float64
	}{
		{0, 3},
		{1.5, 3},
		{2, 3},    // bed edge
		{3, 3.5},  // one unit up the bank
		{4, 4},    // k = 2, B + k/S
		{100, 8},  // capped at B + maxDepth
		{12, 8},   // exactly at the cap
		{11.9, 7.95},
	}
	for _, tt := range tests {
		got := TrapezoidTarget(sec, tt.d, 5)
		assert.InDelta(t, tt.want, got, 1e-12, "d=%v", tt.d)
	}
}

func TestEvaluate_Footprint(t *testing.T) {
	ch := mustChannel(t, testutil.Straight("c", 0, 0, 10, 0, testutil.Uniform(3, 4, 2)))

	// Reach = 4/2 + 1*2 = 4.
	res, ok := Evaluate(r2.Vec{X: 5, Y: 4}, ch, 1)
	require.True(t, ok, "distance equal to the reach is inside the footprint")
	assert.InDelta(t, 4.0, res.Target, 1e-12)
	assert.InDelta(t, 4.0, res.Distance, 1e-12)
	assert.InDelta(t, 0.5, res.T, 1e-12)

	_, ok = Evaluate(r2.Vec{X: 5, Y: 4.0001}, ch, 1)
	assert.False(t, ok, "beyond the reach must be skipped")
}

func TestEvaluate_Interpolates(t *testing.T) {
	attrs := channel.Attributes{
		BedLevelUp: 10, BedLevelDown: 0,
		BedWidthUp: 2, BedWidthDown: 6,
		SlopeUp: 1, SlopeDown: 3,
	}
	ch := mustChannel(t, channel.Spec{
		ID:         "v",
		Vertices:   []r2.Vec{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 6}},
		Attributes: attrs,
	})

	// Total length 10; (4, 1) projects 5 units along.
	res, ok := Evaluate(r2.Vec{X: 4, Y: 1}, ch, 5)
	require.True(t, ok)
	assert.InDelta(t, 0.5, res.T, 1e-12)
	assert.InDelta(t, 5.0, res.BedLevel, 1e-12)
	assert.InDelta(t, 4.0, res.BedWidth, 1e-12)
	assert.InDelta(t, 2.0, res.Slope, 1e-12)
	assert.InDelta(t, 0.0, res.Distance, 1e-12)
	assert.InDelta(t, 5.0, res.Target, 1e-12)

	// Upstream end, 3 units off the line: W/2 = 1, excess 2, slope 1.
	res, ok = Evaluate(r2.Vec{X: 0, Y: -3}, ch, 5)
	require.True(t, ok)
	assert.InDelta(t, 0.0, res.T, 1e-12)
	assert.InDelta(t, 12.0, res.Target, 1e-12)
}

func TestEvaluate_DegenerateLineUsesUpstream(t *testing.T) {
	attrs := channel.Attributes{
		BedLevelUp: 7, BedLevelDown: 1,
		BedWidthUp: 2, BedWidthDown: 2,
		SlopeUp: 1, SlopeDown: 1,
	}
	p := r2.Vec{X: 3, Y: 3}
	ch := mustChannel(t, channel.Spec{ID: "dot", Vertices: []r2.Vec{p, p}, Attributes: attrs})

	res, ok := Evaluate(r2.Vec{X: 3, Y: 3.5}, ch, 5)
	require.True(t, ok)
	assert.Equal(t, 0.0, res.T)
	assert.Equal(t, 7.0, res.Target)
}

func TestEvaluate_TargetNeverBelowBed(t *testing.T) {
	ch := mustChannel(t, testutil.Straight("c", 0, 0, 10, 0, testutil.Uniform(-2, 1, 0.5)))
	for y := 0.0; y <= 3; y += 0.125 {
		res, ok := Evaluate(r2.Vec{X: 3, Y: y}, ch, 5)
		if !ok {
			continue
		}
		if res.Target < res.BedLevel || res.Target > res.BedLevel+5 || math.IsNaN(res.Target) {
			t.Fatalf("y=%v: target %v outside [bed, bed+maxDepth]", y, res.Target)
		}
	}
}

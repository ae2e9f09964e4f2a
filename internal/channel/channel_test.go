package channel

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/channel.builder/internal/geom"
)

func validSpec() Spec {
	return Spec{
		ID:       "c1",
		Vertices: []r2.Vec{{X: 0, Y: 0}, {X: 100, Y: 0}},
		Attributes: Attributes{
			BedLevelUp: 10, BedLevelDown: 8,
			BedWidthUp: 4, BedWidthDown: 8,
			SlopeUp: 1, SlopeDown: 3,
		},
	}
}

func TestNew_Valid(t *testing.T) {
	ch, err := New(validSpec())
	require.NoError(t, err)
	assert.Equal(t, "c1", ch.ID())
	assert.Equal(t, 2, ch.Line().NumVertices())
	assert.Equal(t, 4.0, ch.Attributes().BedWidthUp)
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
		want   error
	}{
		{"one vertex", func(s *Spec) { s.Vertices = s.Vertices[:1] }, geom.ErrTooFewVertices},
		{"zero slope up", func(s *Spec) { s.SlopeUp = 0 }, ErrNonPositiveSlope},
		{"negative slope down", func(s *Spec) { s.SlopeDown = -1 }, ErrNonPositiveSlope},
		{"negative width", func(s *Spec) { s.BedWidthDown = -0.5 }, ErrNegativeWidth},
		{"missing bed level", func(s *Spec) { s.BedLevelUp = math.NaN() }, ErrNonFinite},
		{"infinite slope", func(s *Spec) { s.SlopeUp = math.Inf(1) }, ErrNonFinite},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := validSpec()
			tc.mutate(&s)
			_, err := New(s)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if cfgErr.ChannelID != "c1" {
				t.Errorf("ChannelID = %q, want c1", cfgErr.ChannelID)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want errors.Is %v", err, tc.want)
			}
		})
	}
}

func TestAttributes_At(t *testing.T) {
	a := validSpec().Attributes
	tests := []struct {
		t    float64
		want Section
	}{
		{0, Section{BedLevel: 10, BedWidth: 4, Slope: 1}},
		{1, Section{BedLevel: 8, BedWidth: 8, Slope: 3}},
		{0.25, Section{BedLevel: 9.5, BedWidth: 5, Slope: 1.5}},
	}
	for _, tc := range tests {
		got := a.At(tc.t)
		if got != tc.want {
			t.Errorf("At(%v) = %+v, want %+v", tc.t, got, tc.want)
		}
	}
}

func TestSection_Reach(t *testing.T) {
	s := Section{BedLevel: 0, BedWidth: 4, Slope: 2}
	if got := s.Reach(3); got != 8 {
		t.Fatalf("Reach(3) = %v, want 8", got)
	}
}

func TestCorridorRadius_CoversBothEnds(t *testing.T) {
	ch, err := New(validSpec())
	require.NoError(t, err)
	// Up: 2 + 5*1 = 7, Down: 4 + 5*3 = 19.
	assert.Equal(t, 19.0, ch.CorridorRadius(5))

	s := validSpec()
	s.BedWidthDown, s.SlopeDown = 1, 0.5
	ch, err = New(s)
	require.NoError(t, err)
	// Up dominates: 2 + 5 = 7 vs 0.5 + 2.5 = 3.
	assert.Equal(t, 7.0, ch.CorridorRadius(5))
}

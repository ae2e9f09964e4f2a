// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the grids and channels used across the
// excavation, store and report tests.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/channel.builder/internal/channel"
	"github.com/banshee-data/channel.builder/internal/raster"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// FlatGrid returns a north-up grid of unit-less cells of size cell whose
// top-left corner is at (0, rows*cell), so world y increases upwards and
// cell (row, col) has its centre at ((col+0.5)*cell, (rows-row-0.5)*cell).
func FlatGrid(rows, cols int, cell, z float64) *raster.Grid {
	return raster.NewGrid(rows, cols, raster.NorthUp(0, float64(rows)*cell, cell), z)
}

// Uniform returns attributes with the same section at both ends.
func Uniform(bedLevel, bedWidth, slope float64) channel.Attributes {
	return channel.Attributes{
		BedLevelUp: bedLevel, BedLevelDown: bedLevel,
		BedWidthUp: bedWidth, BedWidthDown: bedWidth,
		SlopeUp: slope, SlopeDown: slope,
	}
}

// Straight returns a two-vertex channel spec from (x0, y0) to (x1, y1).
func Straight(id string, x0, y0, x1, y1 float64, attrs channel.Attributes) channel.Spec {
	return channel.Spec{
		ID:         id,
		Vertices:   []r2.Vec{{X: x0, Y: y0}, {X: x1, Y: y1}},
		Attributes: attrs,
	}
}

// AssertNeverRaised fails the test if any cell of after is higher than
// the same cell of before. Nodata cells of before are ignored.
func AssertNeverRaised(t testing.TB, before, after *raster.Grid) {
	t.Helper()
	if len(before.Data) != len(after.Data) {
		t.Fatalf("grid sizes differ: %d vs %d", len(before.Data), len(after.Data))
	}
	for i, v := range before.Data {
		if before.IsNoData(v) {
			continue
		}
		if after.Data[i] > v {
			t.Fatalf("cell %d raised from %v to %v", i, v, after.Data[i])
		}
	}
}

// AssertGridsClose fails the test if any pair of cells differs by more
// than tol. NaN matches NaN.
func AssertGridsClose(t testing.TB, want, got *raster.Grid, tol float64) {
	t.Helper()
	if want.Rows != got.Rows || want.Cols != got.Cols {
		t.Fatalf("shape = %dx%d, want %dx%d", got.Rows, got.Cols, want.Rows, want.Cols)
	}
	for i := range want.Data {
		w, g := want.Data[i], got.Data[i]
		if math.IsNaN(w) && math.IsNaN(g) {
			continue
		}
		if math.Abs(w-g) > tol || math.IsNaN(w) != math.IsNaN(g) {
			t.Errorf("cell (%d,%d) = %v, want %v", i/want.Cols, i%want.Cols, g, w)
		}
	}
}

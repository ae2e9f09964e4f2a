package raster

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrSingularTransform is returned when an affine transform cannot be inverted.
var ErrSingularTransform = errors.New("affine transform is singular")

// Affine maps (col, row) pixel coordinates to world coordinates using the
// GDAL/rasterio coefficient order:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// NorthUp returns the usual transform for a grid whose upper-left corner is
// at (originX, originY) with square cells of the given size.
func NorthUp(originX, originY, cellSize float64) Affine {
	return Affine{A: cellSize, C: originX, E: -cellSize, F: originY}
}

// Apply maps fractional pixel coordinates to world coordinates.
func (a Affine) Apply(col, row float64) r2.Vec {
	return r2.Vec{
		X: a.A*col + a.B*row + a.C,
		Y: a.D*col + a.E*row + a.F,
	}
}

// CellCenter returns the world coordinates of the centre of cell (row, col).
func (a Affine) CellCenter(row, col int) r2.Vec {
	return a.Apply(float64(col)+0.5, float64(row)+0.5)
}

// Determinant returns A*E - B*D; its magnitude is the area of one cell.
func (a Affine) Determinant() float64 {
	return a.A*a.E - a.B*a.D
}

// CellArea returns the world-unit area covered by one cell.
func (a Affine) CellArea() float64 {
	return math.Abs(a.Determinant())
}

// Invert returns the transform mapping world coordinates back to
// fractional (col, row) pixel coordinates.
func (a Affine) Invert() (Affine, error) {
	det := a.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Affine{}, fmt.Errorf("%w: determinant %v", ErrSingularTransform, det)
	}
	inv := Affine{
		A: a.E / det,
		B: -a.B / det,
		D: -a.D / det,
		E: a.A / det,
	}
	inv.C = -(inv.A*a.C + inv.B*a.F)
	inv.F = -(inv.D*a.C + inv.E*a.F)
	return inv, nil
}

// IsNorthUp reports whether the transform has no rotation terms and rows
// run from north to south.
func (a Affine) IsNorthUp() bool {
	return a.B == 0 && a.D == 0 && a.A > 0 && a.E < 0
}

package raster

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrShapeMismatch is returned when a grid's data length does not match Rows*Cols.
var ErrShapeMismatch = errors.New("grid data length does not match shape")

// Geometry is the shape and placement of a grid without its values.
type Geometry struct {
	Rows, Cols int
	Transform  Affine
}

// Contains reports whether (row, col) is a valid cell index.
func (g Geometry) Contains(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// Idx returns the row-major index of cell (row, col).
func (g Geometry) Idx(row, col int) int {
	return row*g.Cols + col
}

// CellOf returns the cell containing world point p. ok is false when p is
// outside the grid or the transform is singular.
func (g Geometry) CellOf(p r2.Vec) (row, col int, ok bool) {
	inv, err := g.Transform.Invert()
	if err != nil {
		return 0, 0, false
	}
	px := inv.Apply(p.X, p.Y)
	col, row = int(math.Floor(px.X)), int(math.Floor(px.Y))
	if !g.Contains(row, col) {
		return 0, 0, false
	}
	return row, col, true
}

// Grid is a row-major elevation matrix with its world placement.
// The caller owns the grid; the engine receives it as a mutable view.
type Grid struct {
	Geometry
	Data      []float64
	NoData    float64 // sentinel; only meaningful when HasNoData is set
	HasNoData bool
}

// NewGrid allocates a grid filled with fill.
func NewGrid(rows, cols int, transform Affine, fill float64) *Grid {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = fill
	}
	return &Grid{
		Geometry: Geometry{Rows: rows, Cols: cols, Transform: transform},
		Data:     data,
	}
}

// WithNoData sets the nodata sentinel and returns the grid.
func (g *Grid) WithNoData(v float64) *Grid {
	g.NoData = v
	g.HasNoData = true
	return g
}

// Validate checks that the data slice matches the declared shape.
func (g *Grid) Validate() error {
	if g.Rows < 0 || g.Cols < 0 {
		return fmt.Errorf("negative grid shape %dx%d", g.Rows, g.Cols)
	}
	if len(g.Data) != g.Rows*g.Cols {
		return fmt.Errorf("%w: %d values for %dx%d", ErrShapeMismatch, len(g.Data), g.Rows, g.Cols)
	}
	return nil
}

// At returns the value of cell (row, col).
func (g *Grid) At(row, col int) float64 {
	return g.Data[g.Idx(row, col)]
}

// Set writes the value of cell (row, col).
func (g *Grid) Set(row, col int, v float64) {
	g.Data[g.Idx(row, col)] = v
}

// IsNoData reports whether v is the grid's nodata sentinel. A NaN sentinel
// matches any NaN.
func (g *Grid) IsNoData(v float64) bool {
	if !g.HasNoData {
		return false
	}
	if math.IsNaN(g.NoData) {
		return math.IsNaN(v)
	}
	return v == g.NoData
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Data = append([]float64(nil), g.Data...)
	return &c
}

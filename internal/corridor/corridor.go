// Package corridor enumerates the grid cells a channel could excavate: the
// cells whose centres lie within a radius of the channel centreline.
//
// The test is exact (point-to-polyline distance against the radius), so no
// cell inside the buffered corridor is ever missed. Segment bounding boxes,
// mapped into pixel space, bound the cells that need testing. Cells outside
// the grid are silently dropped.
package corridor

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/channel.builder/internal/geom"
	"github.com/banshee-data/channel.builder/internal/raster"
)

// Cell is a grid index.
type Cell struct {
	Row, Col int
}

// Index answers candidate queries for one grid geometry. It is safe for
// concurrent use.
type Index struct {
	geo raster.Geometry
	inv raster.Affine
}

// NewIndex prepares an index for grids with the given geometry.
func NewIndex(geo raster.Geometry) (*Index, error) {
	inv, err := geo.Transform.Invert()
	if err != nil {
		return nil, err
	}
	return &Index{geo: geo, inv: inv}, nil
}

// Candidates is a one-shot form of Index.Candidates.
func Candidates(line *geom.Polyline, radius float64, geo raster.Geometry) ([]Cell, error) {
	idx, err := NewIndex(geo)
	if err != nil {
		return nil, err
	}
	return idx.Candidates(line, radius), nil
}

// window is an inclusive range of rows and columns.
type window struct {
	r0, r1, c0, c1 int
}

func (w window) empty() bool { return w.r0 > w.r1 || w.c0 > w.c1 }

// pixelWindow returns the cells whose centres may fall inside the
// world-space box b, clipped to the grid.
func (ix *Index) pixelWindow(b r2.Box) window {
	minC, minR := math.Inf(1), math.Inf(1)
	maxC, maxR := math.Inf(-1), math.Inf(-1)
	for _, v := range []r2.Vec{b.Min, {X: b.Max.X, Y: b.Min.Y}, b.Max, {X: b.Min.X, Y: b.Max.Y}} {
		p := ix.inv.Apply(v.X, v.Y)
		minC, maxC = math.Min(minC, p.X), math.Max(maxC, p.X)
		minR, maxR = math.Min(minR, p.Y), math.Max(maxR, p.Y)
	}
	// Cell centres sit at +0.5; the slack keeps centres lying exactly on
	// the box edge.
	const slack = 1e-9
	w := window{
		r0: int(math.Ceil(minR - 0.5 - slack)),
		r1: int(math.Floor(maxR - 0.5 + slack)),
		c0: int(math.Ceil(minC - 0.5 - slack)),
		c1: int(math.Floor(maxC - 0.5 + slack)),
	}
	w.r0, w.c0 = max(w.r0, 0), max(w.c0, 0)
	w.r1, w.c1 = min(w.r1, ix.geo.Rows-1), min(w.c1, ix.geo.Cols-1)
	return w
}

func expand(b r2.Box, d float64) r2.Box {
	return r2.Box{
		Min: r2.Vec{X: b.Min.X - d, Y: b.Min.Y - d},
		Max: r2.Vec{X: b.Max.X + d, Y: b.Max.Y + d},
	}
}

// Candidates returns, in row-major order and without duplicates, every
// cell whose centre is within radius of line.
func (ix *Index) Candidates(line *geom.Polyline, radius float64) []Cell {
	if radius < 0 || math.IsNaN(radius) || ix.geo.Rows == 0 || ix.geo.Cols == 0 {
		return nil
	}
	outer := ix.pixelWindow(expand(line.Bounds(), radius))
	if outer.empty() {
		return nil
	}
	width := outer.c1 - outer.c0 + 1
	inside := make([]bool, (outer.r1-outer.r0+1)*width)
	n := 0

	for s := 0; s < line.NumSegments(); s++ {
		a, b := line.Segment(s)
		segBox := r2.NewBox(a.X, a.Y, b.X, b.Y)
		w := ix.pixelWindow(expand(segBox, radius))
		if w.empty() {
			continue
		}
		for row := w.r0; row <= w.r1; row++ {
			for col := w.c0; col <= w.c1; col++ {
				k := (row-outer.r0)*width + (col - outer.c0)
				if inside[k] {
					continue
				}
				p := ix.geo.Transform.CellCenter(row, col)
				if _, d := geom.ProjectOnSegment(p, a, b); d <= radius {
					inside[k] = true
					n++
				}
			}
		}
	}

	cells := make([]Cell, 0, n)
	for k, ok := range inside {
		if ok {
			cells = append(cells, Cell{Row: outer.r0 + k/width, Col: outer.c0 + k%width})
		}
	}
	return cells
}

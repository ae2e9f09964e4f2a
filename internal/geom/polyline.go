package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrTooFewVertices is returned when a polyline has fewer than two vertices.
var ErrTooFewVertices = errors.New("polyline needs at least 2 vertices")

// Polyline is an ordered, immutable sequence of vertices.
// Cumulative segment lengths are computed once at construction.
type Polyline struct {
	vertices []r2.Vec
	cumLen   []float64 // cumLen[i] = length of segments [0, i)
	total    float64
}

// Location describes where a point projects onto a polyline.
type Location struct {
	Segment  int     // index of the nearest segment
	Fraction float64 // position within that segment, 0 = start, 1 = end
	Distance float64 // Euclidean distance from the point to the projection
	T        float64 // normalised arc-length position along the whole line
	Point    r2.Vec  // the projected point
}

// NewPolyline copies vertices into a new Polyline.
func NewPolyline(vertices []r2.Vec) (*Polyline, error) {
	if len(vertices) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewVertices, len(vertices))
	}
	for i, v := range vertices {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
			return nil, fmt.Errorf("vertex %d is not finite: (%v, %v)", i, v.X, v.Y)
		}
	}
	pl := &Polyline{
		vertices: append([]r2.Vec(nil), vertices...),
		cumLen:   make([]float64, len(vertices)),
	}
	for i := 1; i < len(vertices); i++ {
		pl.cumLen[i] = pl.cumLen[i-1] + r2.Norm(r2.Sub(vertices[i], vertices[i-1]))
	}
	pl.total = pl.cumLen[len(vertices)-1]
	return pl, nil
}

// NumVertices returns the number of vertices.
func (pl *Polyline) NumVertices() int { return len(pl.vertices) }

// NumSegments returns the number of consecutive vertex pairs.
func (pl *Polyline) NumSegments() int { return len(pl.vertices) - 1 }

// Vertex returns vertex i.
func (pl *Polyline) Vertex(i int) r2.Vec { return pl.vertices[i] }

// Segment returns the endpoints of segment i.
func (pl *Polyline) Segment(i int) (a, b r2.Vec) {
	return pl.vertices[i], pl.vertices[i+1]
}

// Length returns the total length of the polyline.
func (pl *Polyline) Length() float64 { return pl.total }

// Bounds returns the axis-aligned bounding box of the vertices.
// The box may have zero width or height.
func (pl *Polyline) Bounds() r2.Box {
	b := r2.Box{Min: pl.vertices[0], Max: pl.vertices[0]}
	for _, v := range pl.vertices[1:] {
		b.Min.X = math.Min(b.Min.X, v.X)
		b.Min.Y = math.Min(b.Min.Y, v.Y)
		b.Max.X = math.Max(b.Max.X, v.X)
		b.Max.Y = math.Max(b.Max.Y, v.Y)
	}
	return b
}

// ProjectOnSegment clamps the orthogonal projection of p onto segment ab.
// It returns the projection's position within the segment and the distance
// from p to it. A zero-length segment projects to its start.
func ProjectOnSegment(p, a, b r2.Vec) (fraction, distance float64) {
	ab := r2.Sub(b, a)
	den := r2.Norm2(ab)
	if den > 0 {
		fraction = r2.Dot(r2.Sub(p, a), ab) / den
		fraction = math.Max(0, math.Min(1, fraction))
	}
	q := r2.Add(a, r2.Scale(fraction, ab))
	return fraction, r2.Norm(r2.Sub(p, q))
}

// NearestSegment scans every segment and returns the one closest to p.
// Ties go to the lowest segment index.
func (pl *Polyline) NearestSegment(p r2.Vec) (segment int, fraction, distance float64) {
	distance = math.Inf(1)
	for i := 0; i < len(pl.vertices)-1; i++ {
		f, d := ProjectOnSegment(p, pl.vertices[i], pl.vertices[i+1])
		if d < distance {
			segment, fraction, distance = i, f, d
		}
	}
	return segment, fraction, distance
}

// ArcLengthFraction converts a position within a segment into the
// normalised position along the whole polyline. A polyline of zero
// total length maps everything to 0.
func (pl *Polyline) ArcLengthFraction(segment int, fraction float64) float64 {
	if pl.total == 0 {
		return 0
	}
	segLen := pl.cumLen[segment+1] - pl.cumLen[segment]
	return (pl.cumLen[segment] + fraction*segLen) / pl.total
}

// Locate projects p onto the polyline.
func (pl *Polyline) Locate(p r2.Vec) Location {
	seg, f, d := pl.NearestSegment(p)
	a, b := pl.Segment(seg)
	return Location{
		Segment:  seg,
		Fraction: f,
		Distance: d,
		T:        pl.ArcLengthFraction(seg, f),
		Point:    r2.Add(a, r2.Scale(f, r2.Sub(b, a))),
	}
}

// Distance returns the distance from p to the nearest point on the polyline.
func (pl *Polyline) Distance(p r2.Vec) float64 {
	_, _, d := pl.NearestSegment(p)
	return d
}

// PointAt returns the point at normalised arc-length position t, clamped to [0, 1].
func (pl *Polyline) PointAt(t float64) r2.Vec {
	if t <= 0 || pl.total == 0 {
		return pl.vertices[0]
	}
	if t >= 1 {
		return pl.vertices[len(pl.vertices)-1]
	}
	target := t * pl.total
	for i := 1; i < len(pl.vertices); i++ {
		if pl.cumLen[i] < target {
			continue
		}
		segLen := pl.cumLen[i] - pl.cumLen[i-1]
		if segLen == 0 {
			return pl.vertices[i]
		}
		f := (target - pl.cumLen[i-1]) / segLen
		return r2.Add(pl.vertices[i-1], r2.Scale(f, r2.Sub(pl.vertices[i], pl.vertices[i-1])))
	}
	return pl.vertices[len(pl.vertices)-1]
}

package raster

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrUnsupportedTransform is returned when a grid cannot be expressed in the
// ESRI ASCII header (rotated or south-up transforms).
var ErrUnsupportedTransform = errors.New("transform not representable as an ESRI ASCII header")

type ascHeader struct {
	ncols, nrows int
	xll, yll     float64
	center       bool
	dx, dy       float64
	nodata       float64
	hasNoData    bool
	seen         map[string]bool
}

// ReadASC decodes an ESRI ASCII grid (AAIGrid). Header keys are matched
// case-insensitively; both the *corner and *center origin forms and the
// non-square dx/dy extension are accepted.
func ReadASC(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	h := ascHeader{seen: make(map[string]bool)}
	var pending string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			pending = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("asc header: missing value for %q", key)
		}
		if err := h.set(key, sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("asc header: %w", err)
	}
	if err := h.validate(); err != nil {
		return nil, err
	}

	g := &Grid{
		Geometry: Geometry{Rows: h.nrows, Cols: h.ncols, Transform: h.transform()},
		Data:     make([]float64, 0, h.nrows*h.ncols),
	}
	if h.hasNoData {
		g.WithNoData(h.nodata)
	}

	parse := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("asc value %d: %w", len(g.Data), err)
		}
		g.Data = append(g.Data, v)
		return nil
	}
	if pending != "" {
		if err := parse(pending); err != nil {
			return nil, err
		}
	}
	for len(g.Data) < cap(g.Data) && sc.Scan() {
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("asc data: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("asc data: %w", err)
	}
	return g, nil
}

func (h *ascHeader) set(key, val string) error {
	var err error
	switch key {
	case "ncols":
		h.ncols, err = strconv.Atoi(val)
	case "nrows":
		h.nrows, err = strconv.Atoi(val)
	case "xllcorner", "xllcenter":
		h.center = key == "xllcenter"
		h.xll, err = strconv.ParseFloat(val, 64)
	case "yllcorner", "yllcenter":
		h.yll, err = strconv.ParseFloat(val, 64)
	case "cellsize":
		h.dx, err = strconv.ParseFloat(val, 64)
		h.dy = h.dx
	case "dx":
		h.dx, err = strconv.ParseFloat(val, 64)
	case "dy":
		h.dy, err = strconv.ParseFloat(val, 64)
	case "nodata_value":
		h.nodata, err = strconv.ParseFloat(val, 64)
		h.hasNoData = true
	default:
		return fmt.Errorf("asc header: unknown key %q", key)
	}
	if err != nil {
		return fmt.Errorf("asc header %s: %w", key, err)
	}
	h.seen[key] = true
	return nil
}

func (h *ascHeader) validate() error {
	for _, k := range []string{"ncols", "nrows"} {
		if !h.seen[k] {
			return fmt.Errorf("asc header: missing %s", k)
		}
	}
	if h.ncols <= 0 || h.nrows <= 0 {
		return fmt.Errorf("asc header: invalid shape %dx%d", h.nrows, h.ncols)
	}
	if h.dx <= 0 || h.dy <= 0 {
		return fmt.Errorf("asc header: cell size must be positive, got dx=%v dy=%v", h.dx, h.dy)
	}
	return nil
}

func (h *ascHeader) transform() Affine {
	x0, y0 := h.xll, h.yll
	if h.center {
		x0 -= h.dx / 2
		y0 -= h.dy / 2
	}
	return Affine{A: h.dx, C: x0, E: -h.dy, F: y0 + float64(h.nrows)*h.dy}
}

// WriteASC encodes g as an ESRI ASCII grid with corner-registered origin.
// Values are written with full float64 precision.
func WriteASC(w io.Writer, g *Grid) error {
	if err := g.Validate(); err != nil {
		return err
	}
	t := g.Transform
	if !t.IsNorthUp() {
		return fmt.Errorf("%w: %+v", ErrUnsupportedTransform, t)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols        %d\n", g.Cols)
	fmt.Fprintf(bw, "nrows        %d\n", g.Rows)
	fmt.Fprintf(bw, "xllcorner    %s\n", formatFloat(t.C))
	fmt.Fprintf(bw, "yllcorner    %s\n", formatFloat(t.F+t.E*float64(g.Rows)))
	if t.A == -t.E {
		fmt.Fprintf(bw, "cellsize     %s\n", formatFloat(t.A))
	} else {
		fmt.Fprintf(bw, "dx           %s\n", formatFloat(t.A))
		fmt.Fprintf(bw, "dy           %s\n", formatFloat(-t.E))
	}
	if g.HasNoData {
		fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(g.NoData))
	}
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(formatFloat(g.At(row, col)))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

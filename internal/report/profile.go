package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/channel.builder/internal/channel"
	"github.com/banshee-data/channel.builder/internal/raster"
)

// ProfileSample is one station along a channel centreline. Before and
// After are NaN where the station falls outside the grid or on nodata.
type ProfileSample struct {
	Station float64 // distance from the upstream end
	Design  float64 // interpolated bed level
	Before  float64
	After   float64
}

// SampleProfile walks ch from upstream to downstream every step world
// units, reading the grids at each station. A non-positive step uses the
// grid's cell size. The downstream end is always included.
func SampleProfile(ch *channel.Channel, before, after *raster.Grid, step float64) ([]ProfileSample, error) {
	if err := sameShape(before, after); err != nil {
		return nil, err
	}
	if step <= 0 {
		step = math.Sqrt(before.Transform.CellArea())
	}
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("invalid profile step %v", step)
	}

	line := ch.Line()
	length := line.Length()
	n := int(math.Floor(length/step)) + 1
	samples := make([]ProfileSample, 0, n+1)
	add := func(station float64) {
		t := 0.0
		if length > 0 {
			t = station / length
		}
		p := line.PointAt(t)
		s := ProfileSample{
			Station: station,
			Design:  ch.SectionAt(t).BedLevel,
			Before:  math.NaN(),
			After:   math.NaN(),
		}
		if row, col, ok := before.CellOf(p); ok {
			if v := before.At(row, col); !before.IsNoData(v) {
				s.Before = v
			}
			if v := after.At(row, col); !after.IsNoData(v) {
				s.After = v
			}
		}
		samples = append(samples, s)
	}
	for i := 0; i < n; i++ {
		add(float64(i) * step)
	}
	if last := samples[len(samples)-1].Station; last < length {
		add(length)
	}
	return samples, nil
}

// profileXYs extracts one series, dropping NaN stations which plotter
// rejects.
func profileXYs(samples []ProfileSample, y func(ProfileSample) float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		v := y(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: s.Station, Y: v})
	}
	return pts
}

// WriteProfilePNG renders samples as a longitudinal profile: design bed,
// original surface and excavated surface.
func WriteProfilePNG(w io.Writer, title string, samples []ProfileSample) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Station (m)"
	p.Y.Label.Text = "Elevation (m)"

	series := []struct {
		name  string
		y     func(ProfileSample) float64
		color color.RGBA
		dash  bool
	}{
		{"design bed", func(s ProfileSample) float64 { return s.Design }, color.RGBA{R: 31, G: 119, B: 180, A: 255}, true},
		{"original", func(s ProfileSample) float64 { return s.Before }, color.RGBA{R: 127, G: 127, B: 127, A: 255}, false},
		{"excavated", func(s ProfileSample) float64 { return s.After }, color.RGBA{R: 214, G: 39, B: 40, A: 255}, false},
	}
	for _, sr := range series {
		pts := profileXYs(samples, sr.y)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to create %s line: %w", sr.name, err)
		}
		line.Color = sr.color
		line.Width = vg.Points(1)
		if sr.dash {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(sr.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render profile: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

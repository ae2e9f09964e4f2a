// Package report summarises and visualises an excavation: depth
// statistics and removed volume, longitudinal channel profiles (PNG via
// gonum/plot) and an excavation-depth heatmap (HTML via go-echarts).
package report

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/channel.builder/internal/raster"
)

// Summary describes how far a grid was lowered.
type Summary struct {
	CellsChanged int // valid cells whose value decreased
	CellsFilled  int // nodata cells that received a value

	// Depth statistics over the changed cells, in elevation units.
	MeanDepth   float64
	StdDevDepth float64
	MaxDepth    float64
	P95Depth    float64

	// VolumeRemoved is the sum of depths times the cell area.
	VolumeRemoved float64
}

// Summarize compares a grid before and after excavation.
func Summarize(before, after *raster.Grid) (Summary, error) {
	if err := sameShape(before, after); err != nil {
		return Summary{}, err
	}

	var s Summary
	var depths []float64
	for i, b := range before.Data {
		a := after.Data[i]
		if before.IsNoData(b) || math.IsNaN(b) {
			if !after.IsNoData(a) && !math.IsNaN(a) {
				s.CellsFilled++
			}
			continue
		}
		if a < b {
			depths = append(depths, b-a)
		}
	}

	s.CellsChanged = len(depths)
	if len(depths) == 0 {
		return s, nil
	}
	s.MeanDepth, s.StdDevDepth = stat.MeanStdDev(depths, nil)
	if len(depths) == 1 {
		s.StdDevDepth = 0
	}
	s.MaxDepth = floats.Max(depths)
	sort.Float64s(depths)
	s.P95Depth = stat.Quantile(0.95, stat.Empirical, depths, nil)
	s.VolumeRemoved = floats.Sum(depths) * before.Transform.CellArea()
	return s, nil
}

func sameShape(before, after *raster.Grid) error {
	if err := before.Validate(); err != nil {
		return err
	}
	if err := after.Validate(); err != nil {
		return err
	}
	if before.Rows != after.Rows || before.Cols != after.Cols {
		return fmt.Errorf("%w: %dx%d vs %dx%d", raster.ErrShapeMismatch,
			before.Rows, before.Cols, after.Rows, after.Cols)
	}
	return nil
}

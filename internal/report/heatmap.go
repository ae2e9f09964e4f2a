package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/channel.builder/internal/raster"
)

// maxHeatmapSide caps the rendered grid; larger grids are decimated by
// taking the deepest cut in each block.
const maxHeatmapSide = 200

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// DepthCells returns the excavation depth per block of stride x stride
// cells as heatmap points {col, row, depth}, skipping untouched blocks,
// together with the block grid size and the largest depth.
func DepthCells(before, after *raster.Grid, stride int) (data []opts.HeatMapData, rows, cols int, maxDepth float64, err error) {
	if err := sameShape(before, after); err != nil {
		return nil, 0, 0, 0, err
	}
	if stride < 1 {
		stride = 1
	}
	rows = (before.Rows + stride - 1) / stride
	cols = (before.Cols + stride - 1) / stride
	depth := make([]float64, rows*cols)
	for r := 0; r < before.Rows; r++ {
		for c := 0; c < before.Cols; c++ {
			b, a := before.At(r, c), after.At(r, c)
			if before.IsNoData(b) || after.IsNoData(a) || !(a < b) {
				continue
			}
			k := (r/stride)*cols + c/stride
			depth[k] = math.Max(depth[k], b-a)
		}
	}
	for k, d := range depth {
		if d <= 0 {
			continue
		}
		data = append(data, opts.HeatMapData{Value: [3]interface{}{k % cols, k / cols, d}})
		maxDepth = math.Max(maxDepth, d)
	}
	return data, rows, cols, maxDepth, nil
}

// WriteDepthHeatmap renders an HTML heatmap of how deep each cell was cut.
func WriteDepthHeatmap(w io.Writer, title string, before, after *raster.Grid) error {
	stride := 1
	if side := max(before.Rows, before.Cols); side > maxHeatmapSide {
		stride = (side + maxHeatmapSide - 1) / maxHeatmapSide
	}
	data, rows, cols, maxDepth, err := DepthCells(before, after, stride)
	if err != nil {
		return err
	}

	xLabels := make([]string, cols)
	for c := range xLabels {
		xLabels[c] = strconv.Itoa(c * stride)
	}
	yLabels := make([]string, rows)
	for r := range yLabels {
		yLabels[r] = strconv.Itoa(r * stride)
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("cells=%d stride=%d max depth=%.3f", len(data), stride, maxDepth)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels, Name: "Column", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels, Name: "Row", NameLocation: "middle", NameGap: 30, Inverse: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxDepth),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(xLabels).AddSeries("depth", data)

	if err := hm.Render(w); err != nil {
		return fmt.Errorf("failed to render heatmap: %w", err)
	}
	return nil
}

package batch

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/channel.builder/internal/excavate"
	"github.com/banshee-data/channel.builder/internal/fsutil"
	"github.com/banshee-data/channel.builder/internal/raster"
	"github.com/banshee-data/channel.builder/internal/store"
)

const demASC = `ncols        5
nrows        5
xllcorner    0
yllcorner    0
cellsize     1
NODATA_value -9999
10 10 10 10 10
10 10 10 10 10
10 10 -9999 10 10
10 10 10 10 10
10 10 10 10 10
`

const channelsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "mid",
     "geometry": {"type": "LineString", "coordinates": [[0, 2.5], [5, 2.5]]},
     "properties": {"BEDLEVELUP": 5, "BEDLEVELDN": 5, "BEDWIDTHUP": 0, "BEDWIDTHDN": 0, "SLOPEUP": 1, "SLOPEDN": 1}},
    {"type": "Feature", "id": "bad/slope",
     "geometry": {"type": "LineString", "coordinates": [[0, 0], [5, 5]]},
     "properties": {"BEDLEVELUP": 5, "BEDLEVELDN": 5, "BEDWIDTHUP": 0, "BEDWIDTHDN": 0, "SLOPEUP": 0, "SLOPEDN": 1}}
  ]
}`

func newFS() *fsutil.MemoryFileSystem {
	m := fsutil.NewMemoryFileSystem()
	m.Put("in/dem.asc", []byte(demASC))
	m.Put("in/channels.geojson", []byte(channelsJSON))
	return m
}

func baseOptions() Options {
	return Options{
		DEMPath:      "in/dem.asc",
		ChannelsPath: "in/channels.geojson",
		OutPath:      "out/dem.asc",
		Engine:       excavate.Config{MaxDepth: 5, FillNoData: true, Workers: 2},
	}
}

func readOutput(t *testing.T, m *fsutil.MemoryFileSystem, path string) *raster.Grid {
	t.Helper()
	data, ok := m.Bytes(path)
	require.True(t, ok, "%s not written", path)
	g, err := raster.ReadASC(bytes.NewReader(data))
	require.NoError(t, err)
	return g
}

func TestRunner_Run(t *testing.T) {
	m := newFS()
	opts := baseOptions()
	opts.PlotsDir = "out/plots"
	opts.HeatmapPath = "out/depth.html"

	res, err := NewRunner(m, nil).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Empty(t, res.RunID)
	assert.Equal(t, 2, res.Report.ChannelsTotal)
	require.Len(t, res.Report.Errors, 1)
	assert.Equal(t, "bad/slope", res.Report.Errors[0].ChannelID)
	assert.Equal(t, 1, res.Report.CellsFilled)
	assert.Equal(t, 24, res.Report.CellsLowered)
	assert.Equal(t, 24, res.Summary.CellsChanged)
	assert.Equal(t, 1, res.Summary.CellsFilled)

	out := readOutput(t, m, "out/dem.asc")
	assert.Equal(t, 5.0, out.At(2, 2))
	assert.Equal(t, 6.0, out.At(1, 0))
	assert.Equal(t, 7.0, out.At(4, 4))

	assert.Equal(t, []string{"out/plots/000_mid.png", "out/depth.html"}, res.Artifacts)
	png, ok := m.Bytes("out/plots/000_mid.png")
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	html, ok := m.Bytes("out/depth.html")
	require.True(t, ok)
	assert.True(t, strings.Contains(string(html), "dem.asc"))
}

func TestRunner_RecordsRun(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer st.Close()

	m := newFS()
	opts := baseOptions()
	opts.StoreGridSnapshot = true

	res, err := NewRunner(m, st).Run(context.Background(), opts)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := st.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "in/dem.asc", run.DEMPath)
	assert.Equal(t, 5, run.Rows)
	assert.Equal(t, 2, run.ChannelsTotal)
	assert.Equal(t, 1, run.ChannelsFailed)
	assert.Equal(t, 24, run.CellsLowered)
	assert.Equal(t, 1, run.CellsFilled)
	assert.JSONEq(t, `{"max_depth":5,"fill_nodata":true,"workers":2}`, run.ParamsJSON)
	assert.Greater(t, run.VolumeRemoved, 0.0)

	errs, err := st.ChannelErrors(res.RunID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Index)

	snap, err := st.LoadRunGrid(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, readOutput(t, m, "out/dem.asc").Data, snap.Data)
}

func TestRunner_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"missing dem path", func(o *Options) { o.DEMPath = "" }},
		{"missing channels path", func(o *Options) { o.ChannelsPath = "" }},
		{"missing output path", func(o *Options) { o.OutPath = "" }},
		{"dem not found", func(o *Options) { o.DEMPath = "in/none.asc" }},
		{"network is not geojson", func(o *Options) { o.ChannelsPath = "in/dem.asc" }},
		{"invalid depth", func(o *Options) { o.Engine.MaxDepth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFS()
			opts := baseOptions()
			tt.mutate(&opts)
			_, err := NewRunner(m, nil).Run(context.Background(), opts)
			assert.Error(t, err)
			assert.False(t, m.Exists("out/dem.asc"), "no output on failure")
		})
	}
}

func TestProfileName(t *testing.T) {
	assert.Equal(t, "007_a_b.png", profileName(7, "a/b"))
	assert.Equal(t, "012_main_0.png", profileName(12, "main#0"))
	assert.Equal(t, "001_x_y.z.png", profileName(1, "x y.z"))
}

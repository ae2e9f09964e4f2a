// Package batch runs one excavation job end to end: read the elevation
// grid and the channel network, excavate, write the result and its
// artifacts, and record the run in the ledger.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"time"

	"github.com/banshee-data/channel.builder/internal/channel"
	"github.com/banshee-data/channel.builder/internal/excavate"
	"github.com/banshee-data/channel.builder/internal/fsutil"
	"github.com/banshee-data/channel.builder/internal/network"
	"github.com/banshee-data/channel.builder/internal/raster"
	"github.com/banshee-data/channel.builder/internal/report"
	"github.com/banshee-data/channel.builder/internal/store"
)

// Options describe one job. DEMPath, ChannelsPath and OutPath are
// required; the artifact paths are optional.
type Options struct {
	DEMPath      string
	ChannelsPath string
	OutPath      string

	PlotsDir    string  // one profile PNG per applied channel
	HeatmapPath string  // excavation depth heatmap HTML
	ProfileStep float64 // station spacing for profiles; 0 means one cell

	Engine excavate.Config

	// StoreGridSnapshot keeps a compressed copy of the excavated grid in
	// the ledger.
	StoreGridSnapshot bool
}

// Validate checks that the required paths are set.
func (o Options) Validate() error {
	switch {
	case o.DEMPath == "":
		return errors.New("elevation grid path is required")
	case o.ChannelsPath == "":
		return errors.New("channel network path is required")
	case o.OutPath == "":
		return errors.New("output path is required")
	}
	return nil
}

// Result is the outcome of a job.
type Result struct {
	RunID     string // empty when no ledger is attached
	Report    *excavate.Report
	Summary   report.Summary
	Artifacts []string // files written besides OutPath
}

// Runner executes jobs against a filesystem and an optional ledger.
type Runner struct {
	fs    fsutil.FileSystem
	store *store.Store
	now   func() time.Time
}

// NewRunner returns a Runner. st may be nil to skip the ledger.
func NewRunner(fsys fsutil.FileSystem, st *store.Store) *Runner {
	return &Runner{fs: fsys, store: st, now: time.Now}
}

// Run executes one job. Rejected channels do not fail the job; they are
// listed in the result's report and recorded in the ledger.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	engine, err := excavate.NewEngine(opts.Engine)
	if err != nil {
		return nil, err
	}
	started := r.now()

	grid, err := r.readGrid(opts.DEMPath)
	if err != nil {
		return nil, err
	}
	specs, err := r.readNetwork(opts.ChannelsPath)
	if err != nil {
		return nil, err
	}

	before := grid.Clone()
	rep, err := engine.Run(ctx, grid, specs)
	if err != nil {
		return nil, fmt.Errorf("excavation failed: %w", err)
	}

	if err := fsutil.WriteFile(r.fs, opts.OutPath, func(w io.Writer) error {
		return raster.WriteASC(w, grid)
	}); err != nil {
		return nil, err
	}

	summary, err := report.Summarize(before, grid)
	if err != nil {
		return nil, err
	}
	res := &Result{Report: rep, Summary: summary}

	if opts.PlotsDir != "" {
		paths, err := r.writeProfiles(opts, specs, rep, before, grid)
		if err != nil {
			return nil, err
		}
		res.Artifacts = append(res.Artifacts, paths...)
	}
	if opts.HeatmapPath != "" {
		title := fmt.Sprintf("Excavation depth: %s", filepath.Base(opts.DEMPath))
		if err := fsutil.WriteFile(r.fs, opts.HeatmapPath, func(w io.Writer) error {
			return report.WriteDepthHeatmap(w, title, before, grid)
		}); err != nil {
			return nil, err
		}
		res.Artifacts = append(res.Artifacts, opts.HeatmapPath)
	}

	if r.store != nil {
		id, err := r.record(opts, started, grid, rep, summary)
		if err != nil {
			return nil, err
		}
		res.RunID = id
	}
	return res, nil
}

func (r *Runner) readGrid(path string) (*raster.Grid, error) {
	f, err := r.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open elevation grid: %w", err)
	}
	defer f.Close()
	g, err := raster.ReadASC(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read elevation grid %s: %w", path, err)
	}
	return g, nil
}

func (r *Runner) readNetwork(path string) ([]channel.Spec, error) {
	f, err := r.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel network: %w", err)
	}
	defer f.Close()
	specs, err := network.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel network %s: %w", path, err)
	}
	return specs, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// profileName is the file name of a channel's profile plot. The input
// index keeps names unique when IDs repeat or sanitise to the same text.
func profileName(index int, id string) string {
	return fmt.Sprintf("%03d_%s.png", index, unsafeName.ReplaceAllString(id, "_"))
}

func (r *Runner) writeProfiles(opts Options, specs []channel.Spec, rep *excavate.Report, before, after *raster.Grid) ([]string, error) {
	rejected := make(map[int]bool, len(rep.Errors))
	for _, ce := range rep.Errors {
		rejected[ce.Index] = true
	}

	var paths []string
	for i, s := range specs {
		if rejected[i] {
			continue
		}
		ch, err := channel.New(s)
		if err != nil {
			continue
		}
		samples, err := report.SampleProfile(ch, before, after, opts.ProfileStep)
		if err != nil {
			return nil, fmt.Errorf("channel %q profile: %w", s.ID, err)
		}
		path := filepath.Join(opts.PlotsDir, profileName(i, s.ID))
		if err := fsutil.WriteFile(r.fs, path, func(w io.Writer) error {
			return report.WriteProfilePNG(w, s.ID, samples)
		}); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (r *Runner) record(opts Options, started time.Time, grid *raster.Grid, rep *excavate.Report, summary report.Summary) (string, error) {
	params, err := json.Marshal(opts.Engine)
	if err != nil {
		return "", fmt.Errorf("failed to encode run parameters: %w", err)
	}
	run := &store.Run{
		StartedAt:      started,
		FinishedAt:     r.now(),
		DEMPath:        opts.DEMPath,
		ChannelsPath:   opts.ChannelsPath,
		ParamsJSON:     string(params),
		Rows:           grid.Rows,
		Cols:           grid.Cols,
		ChannelsTotal:  rep.ChannelsTotal,
		ChannelsFailed: rep.Failed(),
		CellsLowered:   rep.CellsLowered,
		CellsFilled:    rep.CellsFilled,
		VolumeRemoved:  summary.VolumeRemoved,
	}
	if opts.StoreGridSnapshot {
		run.Grid = grid
	}
	for _, ce := range rep.Errors {
		run.Errors = append(run.Errors, store.ChannelError{Index: ce.Index, ChannelID: ce.ChannelID, Reason: ce.Reason})
	}
	return r.store.InsertRun(run)
}

package excavate

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/channel.builder/internal/channel"
	"github.com/banshee-data/channel.builder/internal/corridor"
	"github.com/banshee-data/channel.builder/internal/raster"
)

// ctxCheckInterval is how many candidate cells a worker evaluates between
// context checks.
const ctxCheckInterval = 4096

// Proposal is a target elevation for one cell, keyed by row-major index.
type Proposal struct {
	Index  int
	Target float64
}

// Engine applies channel excavation to grids. An Engine holds no grid
// state and may be reused for many runs.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) workers() int {
	if e.cfg.Workers <= 0 {
		return runtime.NumCPU()
	}
	return e.cfg.Workers
}

// Run excavates every channel in specs into g.
//
// Channels that fail validation are recorded in the report and skipped;
// the rest are still applied. Targets are computed concurrently against
// the unmodified grid and then merged in input order by a single writer
// with cell = min(cell, target). If ctx is cancelled before the merge
// starts, g is left untouched.
//
// The returned error is non-nil only when ctx is done, when g's data does
// not match its shape, or when g's transform cannot be inverted.
func (e *Engine) Run(ctx context.Context, g *raster.Grid, specs []channel.Spec) (*Report, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ix, err := corridor.NewIndex(g.Geometry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	start := time.Now()
	report := &Report{ChannelsTotal: len(specs)}

	channels := make([]*channel.Channel, len(specs))
	for i, s := range specs {
		ch, err := channel.New(s)
		if err != nil {
			ce := ChannelError{Index: i, ChannelID: s.ID, Reason: err.Error(), Err: err}
			report.Errors = append(report.Errors, ce)
			opsf("skipping channel %d (%q): %v", i, s.ID, err)
			continue
		}
		channels[i] = ch
	}

	// Compute phase: read-only against g.
	proposals := make([][]Proposal, len(specs))
	stats := make([]ChannelStats, len(specs))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers())
	for i, ch := range channels {
		if ch == nil {
			continue
		}
		eg.Go(func() error {
			props, st, err := e.propose(gctx, ix, g, ch)
			if err != nil {
				return err
			}
			proposals[i], stats[i] = props, st
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		opsf("run aborted before merge: %v", err)
		return nil, err
	}
	// errgroup only reports errors returned by workers; a cancellation
	// racing the last worker is still honoured here.
	if err := ctx.Err(); err != nil {
		opsf("run aborted before merge: %v", err)
		return nil, err
	}

	// Merge phase: single writer, input order.
	e.merge(g, channels, proposals, stats, report)

	for i, ch := range channels {
		if ch == nil {
			continue
		}
		report.Channels = append(report.Channels, stats[i])
		diagf("channel %d (%q): candidates=%d footprint=%d lowered=%d",
			i, ch.ID(), stats[i].Candidates, stats[i].Footprint, stats[i].Lowered)
	}
	report.Duration = time.Since(start)
	diagf("run complete: channels=%d failed=%d lowered=%d filled=%d in %v",
		report.ChannelsTotal, len(report.Errors), report.CellsLowered, report.CellsFilled, report.Duration)
	return report, nil
}

// propose evaluates every candidate cell of ch. Proposals that cannot
// lower the cell are dropped: merging only ever lowers values, so a target
// at or above the original value can never win.
func (e *Engine) propose(ctx context.Context, ix *corridor.Index, g *raster.Grid, ch *channel.Channel) ([]Proposal, ChannelStats, error) {
	st := ChannelStats{ChannelID: ch.ID()}
	cells := ix.Candidates(ch.Line(), ch.CorridorRadius(e.cfg.MaxDepth))
	st.Candidates = len(cells)
	tracef("channel %q: %d candidate cells (radius %.3f)", ch.ID(), len(cells), ch.CorridorRadius(e.cfg.MaxDepth))

	var props []Proposal
	for k, c := range cells {
		if k%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, st, err
			}
		}
		res, ok := Evaluate(g.Transform.CellCenter(c.Row, c.Col), ch, e.cfg.MaxDepth)
		if !ok {
			continue
		}
		st.Footprint++
		idx := g.Idx(c.Row, c.Col)
		v := g.Data[idx]
		if g.IsNoData(v) {
			if e.cfg.FillNoData {
				props = append(props, Proposal{Index: idx, Target: res.Target})
			}
			continue
		}
		if res.Target < v {
			props = append(props, Proposal{Index: idx, Target: res.Target})
		}
	}
	return props, st, nil
}

// Cell outcomes tracked during the merge.
const (
	cellUntouched uint8 = iota
	cellLowered
	cellFilled
)

func (e *Engine) merge(g *raster.Grid, channels []*channel.Channel, proposals [][]Proposal, stats []ChannelStats, report *Report) {
	var state []uint8
	for i := range channels {
		if len(proposals[i]) == 0 {
			continue
		}
		if state == nil {
			state = make([]uint8, len(g.Data))
		}
		for _, p := range proposals[i] {
			switch state[p.Index] {
			case cellUntouched:
				v := g.Data[p.Index]
				if g.IsNoData(v) {
					// Nodata proposals only exist when FillNoData is set.
					g.Data[p.Index] = p.Target
					state[p.Index] = cellFilled
					report.CellsFilled++
					stats[i].Lowered++
					continue
				}
				if p.Target < v {
					g.Data[p.Index] = p.Target
					state[p.Index] = cellLowered
					report.CellsLowered++
					stats[i].Lowered++
				}
			default:
				if p.Target < g.Data[p.Index] {
					g.Data[p.Index] = p.Target
					stats[i].Lowered++
				}
			}
		}
	}
}

// Command excavate cuts trapezoidal channels into an elevation grid.
//
// It reads an ESRI ASCII grid and a GeoJSON channel network, lowers every
// cell inside each channel's footprint to the channel's design surface
// (lowest wins where channels overlap) and writes the result. Optional
// outputs: per-channel profile plots, a depth heatmap and a run ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/channel.builder/internal/batch"
	"github.com/banshee-data/channel.builder/internal/config"
	"github.com/banshee-data/channel.builder/internal/excavate"
	"github.com/banshee-data/channel.builder/internal/fsutil"
	"github.com/banshee-data/channel.builder/internal/store"
	"github.com/banshee-data/channel.builder/internal/version"
)

var (
	demPath      = flag.String("dem", "", "Input elevation grid (ESRI ASCII)")
	channelsPath = flag.String("channels", "", "Channel network (GeoJSON)")
	outPath      = flag.String("out", "", "Output elevation grid (ESRI ASCII)")
	configPath   = flag.String("config", "", "Excavation config JSON (default: "+config.DefaultConfigPath+" if present)")
	maxDepth     = flag.Float64("max-depth", config.DefaultMaxDepth, "Depth limit above the bed for the side slopes (overrides config)")
	fillNoData   = flag.Bool("fill-nodata", true, "Excavate nodata cells inside a channel footprint (overrides config)")
	workers      = flag.Int("workers", 0, "Parallel channel workers, 0 = one per CPU (overrides config)")
	dbPath       = flag.String("db", "", "Run ledger SQLite database (optional)")
	plotsDir     = flag.String("plots", "", "Directory for per-channel profile PNGs (optional)")
	heatmapPath  = flag.String("heatmap", "", "Excavation depth heatmap HTML (optional)")
	logLevel     = flag.String("log-level", "ops", "Log detail: ops, diag or trace")
	history      = flag.Int("history", 0, "List the N most recent runs from -db and exit")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("excavate", version.String())
		return
	}

	if err := setLogLevel(*logLevel, os.Stderr); err != nil {
		log.Fatalf("Invalid -log-level: %v", err)
	}

	var st *store.Store
	if *dbPath != "" {
		var err error
		st, err = store.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open run ledger: %v", err)
		}
		defer st.Close()
	}

	if *history > 0 {
		if st == nil {
			log.Fatal("-history requires -db")
		}
		if err := printHistory(os.Stdout, st, *history); err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		return
	}

	fileCfg, err := loadConfig(*configPath, fsutil.OSFileSystem{})
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	opts := buildOptions(fileCfg, set)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := batch.NewRunner(fsutil.OSFileSystem{}, st).Run(ctx, opts)
	if err != nil {
		log.Fatalf("Excavation failed: %v", err)
	}
	printResult(os.Stdout, opts, res)
}

// loadConfig loads path, or the repository defaults file when path is
// empty and the file exists, or the built-in defaults.
func loadConfig(path string, fsys fsutil.FileSystem) (*config.ExcavationConfig, error) {
	if path != "" {
		return config.LoadExcavationConfig(path)
	}
	if fsys.Exists(config.DefaultConfigPath) {
		return config.LoadExcavationConfig(config.DefaultConfigPath)
	}
	return config.DefaultExcavationConfig(), nil
}

// buildOptions merges the config file with the flags the user set.
func buildOptions(cfg *config.ExcavationConfig, set map[string]bool) batch.Options {
	engine := excavate.ConfigFromFile(cfg)
	if set["max-depth"] {
		engine.WithMaxDepth(*maxDepth)
	}
	if set["fill-nodata"] {
		engine.WithFillNoData(*fillNoData)
	}
	if set["workers"] {
		engine.WithWorkers(*workers)
	}
	return batch.Options{
		DEMPath:           *demPath,
		ChannelsPath:      *channelsPath,
		OutPath:           *outPath,
		PlotsDir:          *plotsDir,
		HeatmapPath:       *heatmapPath,
		ProfileStep:       cfg.GetProfileStep(),
		Engine:            *engine,
		StoreGridSnapshot: cfg.GetStoreGridSnapshot(),
	}
}

// setLogLevel routes the package log streams to w. ops enables
// operational messages only, diag adds summaries, trace adds per-channel
// detail.
func setLogLevel(level string, w io.Writer) error {
	var ops, diag, trace io.Writer
	switch level {
	case "trace":
		trace = w
		fallthrough
	case "diag":
		diag = w
		fallthrough
	case "ops":
		ops = w
	default:
		return fmt.Errorf("unknown level %q (want ops, diag or trace)", level)
	}
	excavate.SetLogWriters(ops, diag, trace)
	store.SetLogWriters(ops, diag, trace)
	return nil
}

func printResult(w io.Writer, opts batch.Options, res *batch.Result) {
	rep, sum := res.Report, res.Summary
	fmt.Fprintf(w, "Excavated %s -> %s\n", opts.DEMPath, opts.OutPath)
	fmt.Fprintf(w, "  channels: %d applied, %d rejected\n", rep.Applied(), rep.Failed())
	fmt.Fprintf(w, "  cells: %d lowered, %d filled\n", rep.CellsLowered, rep.CellsFilled)
	fmt.Fprintf(w, "  depth: mean %.3f, p95 %.3f, max %.3f\n", sum.MeanDepth, sum.P95Depth, sum.MaxDepth)
	fmt.Fprintf(w, "  volume removed: %.3f\n", sum.VolumeRemoved)
	for _, ce := range rep.Errors {
		fmt.Fprintf(w, "  rejected #%d %q: %s\n", ce.Index, ce.ChannelID, ce.Reason)
	}
	for _, a := range res.Artifacts {
		fmt.Fprintf(w, "  wrote %s\n", a)
	}
	if res.RunID != "" {
		fmt.Fprintf(w, "  run id: %s\n", res.RunID)
	}
}

func printHistory(w io.Writer, st *store.Store, limit int) error {
	runs, err := st.ListRuns(limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %s  channels=%d failed=%d lowered=%d filled=%d volume=%.3f\n",
			r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.DEMPath,
			r.ChannelsTotal, r.ChannelsFailed, r.CellsLowered, r.CellsFilled, r.VolumeRemoved)
	}
	return nil
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/channel.builder/internal/batch"
	"github.com/banshee-data/channel.builder/internal/config"
	"github.com/banshee-data/channel.builder/internal/excavate"
	"github.com/banshee-data/channel.builder/internal/fsutil"
	"github.com/banshee-data/channel.builder/internal/store"
)

// TestFlagDefaults verifies the engine flags default to the config defaults.
func TestFlagDefaults(t *testing.T) {
	if *maxDepth != config.DefaultMaxDepth {
		t.Errorf("max-depth default = %v, want %v", *maxDepth, config.DefaultMaxDepth)
	}
	if !*fillNoData {
		t.Errorf("fill-nodata default = %v, want true", *fillNoData)
	}
	if *workers != 0 {
		t.Errorf("workers default = %d, want 0", *workers)
	}
	if *logLevel != "ops" {
		t.Errorf("log-level default = %q, want ops", *logLevel)
	}
}

func TestBuildOptions(t *testing.T) {
	cfg := config.DefaultExcavationConfig()
	depth, fill := 2.5, false
	cfg.MaxDepth = &depth
	cfg.FillNoData = &fill

	t.Run("config only", func(t *testing.T) {
		opts := buildOptions(cfg, map[string]bool{})
		want := excavate.Config{MaxDepth: 2.5, FillNoData: false, Workers: 0}
		if opts.Engine != want {
			t.Errorf("Engine = %+v, want %+v", opts.Engine, want)
		}
		if !opts.StoreGridSnapshot {
			t.Error("expected grid snapshot by default")
		}
	})

	t.Run("flags override", func(t *testing.T) {
		old := *maxDepth
		*maxDepth = 1.25
		defer func() { *maxDepth = old }()

		opts := buildOptions(cfg, map[string]bool{"max-depth": true, "fill-nodata": true})
		want := excavate.Config{MaxDepth: 1.25, FillNoData: true, Workers: 0}
		if opts.Engine != want {
			t.Errorf("Engine = %+v, want %+v", opts.Engine, want)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cfg.json")
		if err := os.WriteFile(path, []byte(`{"max_depth": 3}`), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := loadConfig(path, fsutil.NewMemoryFileSystem())
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.GetMaxDepth() != 3 {
			t.Errorf("GetMaxDepth() = %v, want 3", cfg.GetMaxDepth())
		}
	})

	t.Run("built-in defaults", func(t *testing.T) {
		cfg, err := loadConfig("", fsutil.NewMemoryFileSystem())
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.GetMaxDepth() != config.DefaultMaxDepth {
			t.Errorf("GetMaxDepth() = %v", cfg.GetMaxDepth())
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := loadConfig("/nonexistent/cfg.json", fsutil.NewMemoryFileSystem()); err == nil {
			t.Error("expected error for missing config")
		}
	})
}

func TestSetLogLevel(t *testing.T) {
	defer setLogLevel("ops", nil)

	for _, level := range []string{"ops", "diag", "trace"} {
		if err := setLogLevel(level, &bytes.Buffer{}); err != nil {
			t.Errorf("setLogLevel(%q): %v", level, err)
		}
	}
	if err := setLogLevel("verbose", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	res := &batch.Result{
		RunID: "abc",
		Report: &excavate.Report{
			ChannelsTotal: 2,
			Channels:      []excavate.ChannelStats{{ChannelID: "a"}},
			Errors:        []excavate.ChannelError{{Index: 1, ChannelID: "b", Reason: "side slope must be positive"}},
			CellsLowered:  12,
		},
	}
	printResult(&buf, batch.Options{DEMPath: "in.asc", OutPath: "out.asc"}, res)
	out := buf.String()
	for _, want := range []string{"in.asc -> out.asc", "1 applied, 1 rejected", "12 lowered", `rejected #1 "b"`, "run id: abc"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintHistory(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := st.InsertRun(&store.Run{RunID: "r1", StartedAt: time.Unix(1700000000, 0), DEMPath: "dem.asc", Rows: 1, Cols: 1}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := printHistory(&buf, st, 10); err != nil {
		t.Fatalf("printHistory: %v", err)
	}
	if !strings.Contains(buf.String(), "r1") || !strings.Contains(buf.String(), "dem.asc") {
		t.Errorf("unexpected history:\n%s", buf.String())
	}
}

package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultExcavationConfig(t *testing.T) {
	cfg := DefaultExcavationConfig()

	if cfg.MaxDepth == nil || *cfg.MaxDepth != 5.0 {
		t.Errorf("Expected MaxDepth 5.0, got %v", cfg.MaxDepth)
	}
	if cfg.FillNoData == nil || *cfg.FillNoData != true {
		t.Errorf("Expected FillNoData true, got %v", cfg.FillNoData)
	}
	if cfg.Workers == nil || *cfg.Workers != 0 {
		t.Errorf("Expected Workers 0, got %v", cfg.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestMustLoadDefaultConfig_MatchesDefaults(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	want := DefaultExcavationConfig()

	if cfg.GetMaxDepth() != want.GetMaxDepth() {
		t.Errorf("GetMaxDepth() = %v, want %v", cfg.GetMaxDepth(), want.GetMaxDepth())
	}
	if cfg.GetFillNoData() != want.GetFillNoData() {
		t.Errorf("GetFillNoData() = %v, want %v", cfg.GetFillNoData(), want.GetFillNoData())
	}
	if cfg.GetWorkers() != want.GetWorkers() {
		t.Errorf("GetWorkers() = %d, want %d", cfg.GetWorkers(), want.GetWorkers())
	}
	if cfg.GetStoreGridSnapshot() != want.GetStoreGridSnapshot() {
		t.Errorf("GetStoreGridSnapshot() = %v, want %v", cfg.GetStoreGridSnapshot(), want.GetStoreGridSnapshot())
	}
}

func TestLoadExcavationConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "excavation.json")

	testJSON := `{
  "max_depth": 2.5,
  "fill_nodata": false,
  "workers": 3
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadExcavationConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetMaxDepth() != 2.5 {
		t.Errorf("GetMaxDepth() = %v, want 2.5", cfg.GetMaxDepth())
	}
	if cfg.GetFillNoData() != false {
		t.Errorf("GetFillNoData() = %v, want false", cfg.GetFillNoData())
	}
	if cfg.GetWorkers() != 3 {
		t.Errorf("GetWorkers() = %d, want 3", cfg.GetWorkers())
	}
	// Omitted fields fall back to defaults.
	if cfg.StoreGridSnapshot != nil {
		t.Errorf("Expected StoreGridSnapshot unset, got %v", *cfg.StoreGridSnapshot)
	}
	if cfg.GetStoreGridSnapshot() != true {
		t.Errorf("GetStoreGridSnapshot() = %v, want true", cfg.GetStoreGridSnapshot())
	}
}

func TestLoadExcavationConfigMissing(t *testing.T) {
	_, err := LoadExcavationConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadExcavationConfigWrongExtension(t *testing.T) {
	_, err := LoadExcavationConfig("config.yaml")
	if err == nil {
		t.Error("Expected error for non-json extension, got nil")
	}
}

func TestLoadExcavationConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	cases := map[string]string{
		"bad json":       `{"max_depth": "deep"`,
		"zero max depth": `{"max_depth": 0}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(tmpDir, name+".json")
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			if _, err := LoadExcavationConfig(path); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ExcavationConfig
		wantErr bool
	}{
		{name: "valid config", cfg: DefaultExcavationConfig()},
		{name: "empty config is valid", cfg: &ExcavationConfig{}},
		{name: "negative max depth", cfg: &ExcavationConfig{MaxDepth: ptrFloat64(-1)}, wantErr: true},
		{name: "NaN max depth", cfg: &ExcavationConfig{MaxDepth: ptrFloat64(math.NaN())}, wantErr: true},
		{name: "negative workers", cfg: &ExcavationConfig{Workers: ptrInt(-2)}, wantErr: true},
		{name: "negative profile step", cfg: &ExcavationConfig{ProfileStep: ptrFloat64(-0.5)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJSON(t *testing.T) {
	cfg := &ExcavationConfig{MaxDepth: ptrFloat64(3)}
	if got := cfg.JSON(); got != `{"max_depth":3}` {
		t.Errorf("JSON() = %s", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("SINOGEN_CONFIG", filepath.Join(t.TempDir(), "nope.json"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Processing.ParallelJobs != defaultParallel {
		t.Errorf("parallel_jobs = %d, want %d", cfg.Processing.ParallelJobs, defaultParallel)
	}
	if cfg.Assembly.Shape != "gaussian" || cfg.Assembly.FitWidth != 2 {
		t.Errorf("assembly defaults = %+v", cfg.Assembly)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"assembly": {"input_set": "counts", "dark_set": "baseline", "shape": "delta", "fit_width": 3}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SINOGEN_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Assembly.InputSet != "counts" || cfg.Assembly.DarkSet != "baseline" {
		t.Errorf("dataset names = %q/%q", cfg.Assembly.InputSet, cfg.Assembly.DarkSet)
	}
	if cfg.Assembly.Shape != "delta" || cfg.Assembly.FitWidth != 3 {
		t.Errorf("shape/fit_width = %q/%g", cfg.Assembly.Shape, cfg.Assembly.FitWidth)
	}
	// Untouched sections keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Assembly.Shape = "lorentzian"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown shape accepted")
	}
	cfg = defaultConfig()
	cfg.Assembly.FitWidth = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero fit_width accepted")
	}
	cfg = defaultConfig()
	cfg.Assembly.FitErrorPolicy = "retry"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown policy accepted")
	}
}

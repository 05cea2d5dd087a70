package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	defaultConfigPath = "~/.config/sinogen/config.json"
	defaultParallel   = 4
)

// Config holds user-editable settings for the assembly pipeline.
type Config struct {
	Processing Processing `json:"processing"`
	Logging    Logging    `json:"logging"`
	Paths      Paths      `json:"paths"`
	Assembly   Assembly   `json:"assembly"`
	Server     Server     `json:"server"`
}

// Processing captures execution preferences.
type Processing struct {
	ParallelJobs int `json:"parallel_jobs"` // pipeline workers
	FitWorkers   int `json:"fit_workers"`   // concurrent line fitters per peak
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // text, json
	FileOutput bool   `json:"file_output"` // Enable file logging
	LogDir     string `json:"log_dir"`     // Directory for log files
}

// Paths configures default input/output locations.
type Paths struct {
	DefaultInput string `json:"default_input"`
	DatabasePath string `json:"database_path"`
}

// Assembly holds the default peak-fit and correction settings. Every field
// can be overridden per invocation from the command line.
type Assembly struct {
	InputSet       string  `json:"input_set"` // signal dataset name
	DarkSet        string  `json:"dark_set"`  // dark-current dataset name
	Shape          string  `json:"shape"`     // gaussian, delta
	FitWidth       float64 `json:"fit_width"` // window half-width in fwhm units
	Flip           bool    `json:"flip"`
	RemoveBragg    bool    `json:"remove_bragg_spots"`
	Deinterlace    bool    `json:"deinterlace"`
	Center         bool    `json:"center"`
	FitErrorPolicy string  `json:"fit_error_policy"` // fail, skip
}

// Server configures the monitoring HTTP endpoint.
type Server struct {
	Addr string `json:"addr"`
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("SINOGEN_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := expandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", expanded, err)
	}

	return cfg, nil
}

// Validate rejects settings that would only fail deep inside a run.
func (c *Config) Validate() error {
	if c.Processing.ParallelJobs < 1 {
		return fmt.Errorf("processing.parallel_jobs must be positive, got %d", c.Processing.ParallelJobs)
	}
	if c.Assembly.FitWidth <= 0 {
		return fmt.Errorf("assembly.fit_width must be positive, got %g", c.Assembly.FitWidth)
	}
	switch c.Assembly.Shape {
	case "gaussian", "gauss", "delta":
	default:
		return fmt.Errorf("assembly.shape %q is not supported", c.Assembly.Shape)
	}
	switch c.Assembly.FitErrorPolicy {
	case "", "fail", "skip":
	default:
		return fmt.Errorf("assembly.fit_error_policy %q is not supported", c.Assembly.FitErrorPolicy)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Processing: Processing{
			ParallelJobs: defaultParallel,
			FitWorkers:   defaultParallel,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			LogDir: "./logs",
		},
		Paths: Paths{
			DefaultInput: ".",
			DatabasePath: "./sinograms.db",
		},
		Assembly: Assembly{
			InputSet:       "signal",
			DarkSet:        "dark",
			Shape:          "gaussian",
			FitWidth:       2,
			FitErrorPolicy: "fail",
		},
		Server: Server{
			Addr: "127.0.0.1:8617",
		},
	}
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}

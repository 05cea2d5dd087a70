package cli

import (
	"fmt"
	"os"
	"runtime"
)

func (r *Root) configShow() error {
	fmt.Printf("Current configuration:\n")
	cfgPath := os.Getenv("SINOGEN_CONFIG")
	if cfgPath == "" {
		cfgPath = "(default) ~/.config/sinogen/config.json"
	}
	fmt.Printf("Config file: %s\n", cfgPath)
	fmt.Printf("\nProcessing:\n")
	fmt.Printf("  Parallel jobs: %d\n", r.cfg.Processing.ParallelJobs)
	fmt.Printf("  Fit workers: %d\n", r.cfg.Processing.FitWorkers)
	fmt.Printf("\nAssembly:\n")
	fmt.Printf("  Signal dataset: %s\n", r.cfg.Assembly.InputSet)
	fmt.Printf("  Dark dataset: %s\n", r.cfg.Assembly.DarkSet)
	fmt.Printf("  Peak shape: %s\n", r.cfg.Assembly.Shape)
	fmt.Printf("  Fit width: %g FWHM\n", r.cfg.Assembly.FitWidth)
	fmt.Printf("  Flip odd lines: %t\n", r.cfg.Assembly.Flip)
	fmt.Printf("  Remove bragg spots: %t\n", r.cfg.Assembly.RemoveBragg)
	fmt.Printf("  Deinterlace: %t\n", r.cfg.Assembly.Deinterlace)
	fmt.Printf("  Center rotation axis: %t\n", r.cfg.Assembly.Center)
	fmt.Printf("\nPaths:\n")
	fmt.Printf("  Default input: %s\n", r.cfg.Paths.DefaultInput)
	fmt.Printf("  Database: %s\n", r.cfg.Paths.DatabasePath)
	fmt.Printf("\nLogging:\n")
	fmt.Printf("  Level: %s\n", r.cfg.Logging.Level)
	fmt.Printf("  Format: %s\n", r.cfg.Logging.Format)
	fmt.Printf("  Directory: %s\n", r.cfg.Logging.LogDir)
	return nil
}

func (r *Root) cmdVersion() {
	fmt.Printf("Sinogen v1.0.0-dev\n")
	fmt.Printf("Built with Go %s\n", runtime.Version())
}

package cli

import (
	"fmt"
	"log/slog"
	"time"

	"sinogen/internal/config"
	"sinogen/internal/pipeline"
	"sinogen/internal/storage"
	"sinogen/internal/watch"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root Cobra command
func NewRootCmd(cfg *config.Config, log *slog.Logger, store *storage.Store, pipe *pipeline.Pipeline) *cobra.Command {
	root := NewRoot(pipe, cfg, log, store)

	rootCmd := &cobra.Command{
		Use:   "sinogen",
		Short: "Sinogen assembles diffraction sinograms from scan-line artifacts",
		Long: `Sinogen fits peak models to radial diffraction profiles and assembles
the fitted amplitudes into sinograms ready for tomographic reconstruction.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newAssembleCmd(root))
	rootCmd.AddCommand(newPeaksCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

// assembleFlags are the fit and correction options shared between the
// assemble and watch commands.
type assembleFlags struct {
	position       float64
	fwhm           float64
	shape          string
	fitWidth       float64
	peakFile       string
	inputSet       string
	darkSet        string
	flip           bool
	removeBragg    bool
	deinterlace    bool
	center         bool
	fitErrorPolicy string
	workers        int
}

func registerAssembleFlags(cmd *cobra.Command, root *Root, f *assembleFlags) {
	cmd.Flags().Float64Var(&f.position, "position", 0, "peak center in radial channels")
	cmd.Flags().Float64Var(&f.fwhm, "fwhm", 0, "peak full width at half maximum in channels")
	cmd.Flags().StringVar(&f.shape, "shape", root.cfg.Assembly.Shape, "peak shape (gaussian|delta)")
	cmd.Flags().Float64Var(&f.fitWidth, "fit-width", root.cfg.Assembly.FitWidth, "fit window half-width in FWHM units")
	cmd.Flags().StringVar(&f.peakFile, "peak-file", "", "peak specification file (overrides --position/--fwhm)")
	cmd.Flags().StringVar(&f.inputSet, "input-set", root.cfg.Assembly.InputSet, "signal dataset name inside each artifact")
	cmd.Flags().StringVar(&f.darkSet, "dark-set", root.cfg.Assembly.DarkSet, "dark current dataset name")
	cmd.Flags().BoolVar(&f.flip, "flip", root.cfg.Assembly.Flip, "reverse every odd scan line")
	cmd.Flags().BoolVar(&f.removeBragg, "remove-bragg-spots", root.cfg.Assembly.RemoveBragg, "replace crystallite highlights and shadows by local medians")
	cmd.Flags().BoolVar(&f.deinterlace, "deinterlace", root.cfg.Assembly.Deinterlace, "reorder interlaced scan lines")
	cmd.Flags().BoolVar(&f.center, "center", root.cfg.Assembly.Center, "shift the rotation axis to the sinogram center")
	cmd.Flags().StringVar(&f.fitErrorPolicy, "fit-error-policy", root.cfg.Assembly.FitErrorPolicy, "on fit failure: fail|skip")
	cmd.Flags().IntVar(&f.workers, "workers", root.cfg.Processing.FitWorkers, "concurrent line fitters per peak")
}

// options serializes the flags into the option map the job router reads.
// position and fwhm are mandatory in direct mode, so they are only sent
// when their flags were set; the router rejects direct-mode jobs that
// arrive without them.
func (f *assembleFlags) options(cmd *cobra.Command) map[string]any {
	opts := map[string]any{
		"shape":              f.shape,
		"fit_width":          f.fitWidth,
		"input_set":          f.inputSet,
		"dark_set":           f.darkSet,
		"flip":               f.flip,
		"remove_bragg_spots": f.removeBragg,
		"deinterlace":        f.deinterlace,
		"center":             f.center,
		"workers":            f.workers,
		"source":             "cli",
	}
	if f.peakFile != "" {
		opts["peak_file"] = f.peakFile
	} else {
		if cmd.Flags().Changed("position") {
			opts["position"] = f.position
		}
		if cmd.Flags().Changed("fwhm") {
			opts["fwhm"] = f.fwhm
		}
	}
	if f.fitErrorPolicy != "" {
		opts["fit_error_policy"] = f.fitErrorPolicy
	}
	return opts
}

func newAssembleCmd(root *Root) *cobra.Command {
	var flags assembleFlags

	cmd := &cobra.Command{
		Use:   "assemble <input_directory>",
		Short: "Fit peaks across a scan directory and store the sinograms",
		Long: `Load every scan-line artifact under the input directory, fit the requested
peaks against each frame, and write the resulting sinograms to the database.

Examples:
  # Single peak from the command line
  sinogen assemble /data/scan042/ --position 182.4 --fwhm 5.1

  # Several peaks from a specification file, with line corrections
  sinogen assemble /data/scan042/ --peak-file peaks.txt --flip --center`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]

			root.log.Info("assemble command parsed",
				"input", input,
				"peak_file", flags.peakFile,
				"position", flags.position,
				"fwhm", flags.fwhm,
				"shape", flags.shape,
				"flip", flags.flip,
				"deinterlace", flags.deinterlace,
				"center", flags.center,
			)

			job := pipeline.Job{
				ID:        newID("asm"),
				Type:      pipeline.JobAssemble,
				InputPath: input,
				Options:   flags.options(cmd),
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}

	registerAssembleFlags(cmd, root, &flags)
	return cmd
}

func newPeaksCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "peaks <file>",
		Short: "Parse a peak specification file and report its contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("pks"),
				Type:      pipeline.JobInspect,
				InputPath: args[0],
				Options:   map[string]any{"source": "cli"},
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
}

func newWatchCmd(root *Root) *cobra.Command {
	var (
		flags  assembleFlags
		settle time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory and assemble once new artifacts settle",
		Long: `Monitor a directory for incoming scan-line artifacts. When writes go quiet
for the settle period, a single assembly job covering the directory is queued.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]

			w, err := watch.New(dir, settle, root.pipeline.Submit, flags.options(cmd), root.log)
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			if err := w.Start(); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			defer w.Stop()

			root.log.Info("watching directory", "dir", dir, "settle", settle)
			<-cmd.Context().Done()
			return nil
		},
	}

	registerAssembleFlags(cmd, root, &flags)
	cmd.Flags().DurationVar(&settle, "settle", watch.DefaultSettle, "quiet period before a batch is assembled")
	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring HTTP server",
		Long: `Start an HTTP server exposing job status, live result streams, and the
assembled sinograms.

Examples:
  sinogen serve --addr :8617`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root.log.Info("starting server",
				"addr", addr,
				"endpoints", []string{"/healthz", "/jobs", "/stream", "/ws", "/sinograms"},
			)
			return root.serveFn(cmd.Context(), addr, root.store, root.pipeline, root.log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", root.cfg.Server.Addr, "server address (host:port)")
	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long:  "Show or validate the sinogen configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configShow()
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.cfg.Validate(); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			root.log.Info("configuration validation", "status", "valid")
			fmt.Println("Configuration is valid")
			return nil
		},
	}

	cmd.AddCommand(showCmd, validateCmd)
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			root.cmdVersion()
		},
	}
}

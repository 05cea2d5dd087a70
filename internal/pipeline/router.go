package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"sinogen/internal/assemble"
	"sinogen/internal/config"
	"sinogen/internal/fsutil"
	"sinogen/internal/peaks"
	"sinogen/internal/stack"
	"sinogen/internal/storage"
)

// router implements Processor and routes jobs to their concrete handlers.
type router struct {
	log    *slog.Logger
	store  *storage.Store
	asmCfg *config.Assembly
}

func newRouter(logger *slog.Logger, store *storage.Store, asmCfg *config.Assembly) Processor {
	if asmCfg == nil {
		asmCfg = &config.Assembly{InputSet: "signal", DarkSet: "dark", Shape: "gaussian", FitWidth: peaks.DefaultFitWidth}
	}
	return &router{log: logger, store: store, asmCfg: asmCfg}
}

func (r *router) Process(ctx context.Context, job Job) Result {
	switch job.Type {
	case JobAssemble:
		return r.handleAssemble(ctx, job)
	case JobInspect:
		return r.handleInspect(ctx, job)
	default:
		return Result{Job: job, Error: fmt.Errorf("unknown job type: %s", job.Type)}
	}
}

func (r *router) handleAssemble(ctx context.Context, job Job) Result {
	paths, _ := job.Options["inputs"].([]string)
	if len(paths) == 0 {
		var err error
		paths, err = fsutil.ListArtifacts(job.InputPath)
		if err != nil {
			return Result{Job: job, Error: fmt.Errorf("scanning %s: %w", job.InputPath, err)}
		}
	}
	if len(paths) == 0 {
		return Result{Job: job, Error: fmt.Errorf("no input artifacts under %s", job.InputPath)}
	}

	signalSet := stringOption(job.Options, "input_set", r.asmCfg.InputSet)
	darkSet := stringOption(job.Options, "dark_set", r.asmCfg.DarkSet)
	stk, err := stack.Load(paths, signalSet, darkSet)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	specs, err := r.peakSpecs(job.Options)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	policy, err := assemble.ParsePolicy(stringOption(job.Options, "fit_error_policy", r.asmCfg.FitErrorPolicy))
	if err != nil {
		return Result{Job: job, Error: err}
	}
	opts := assemble.Options{
		Flip:        boolOption(job.Options, "flip", r.asmCfg.Flip),
		RemoveBragg: boolOption(job.Options, "remove_bragg_spots", r.asmCfg.RemoveBragg),
		Deinterlace: boolOption(job.Options, "deinterlace", r.asmCfg.Deinterlace),
		Center:      boolOption(job.Options, "center", r.asmCfg.Center),
		OnFitError:  policy,
		Workers:     intOption(job.Options, "workers", 1),
	}

	asm := assemble.New(r.store, r.log, opts)
	reports, err := asm.Run(ctx, stk, specs)

	assembled, skipped, flagged, despeckled := 0, 0, 0, 0
	peakMeta := make([]map[string]any, 0, len(reports))
	for _, rep := range reports {
		switch rep.Status {
		case assemble.StatusDone:
			assembled++
		case assemble.StatusSkipped:
			skipped++
		}
		flagged += rep.Flagged
		despeckled += rep.Despeckled
		peakMeta = append(peakMeta, map[string]any{
			"key":     rep.Key,
			"status":  string(rep.Status),
			"flagged": rep.Flagged,
		})
	}
	meta := map[string]any{
		"lines":      stk.Lines(),
		"frames":     stk.Frames(),
		"channels":   stk.Channels(),
		"assembled":  assembled,
		"skipped":    skipped,
		"flagged":    flagged,
		"despeckled": despeckled,
		"peaks":      peakMeta,
	}
	return Result{Job: job, Error: err, Meta: meta}
}

func (r *router) handleInspect(ctx context.Context, job Job) Result {
	specs, err := peaks.LoadFile(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = s.Key()
	}
	return Result{Job: job, Meta: map[string]any{"count": len(specs), "keys": keys}}
}

// peakSpecs resolves the peak list: a peak file when given, otherwise a
// single specification from the direct parameters.
func (r *router) peakSpecs(options map[string]any) ([]peaks.Spec, error) {
	if file := stringOption(options, "peak_file", ""); file != "" {
		return peaks.LoadFile(file)
	}
	spec, err := peaks.FromOptions(
		floatOption(options, "position", math.NaN()),
		floatOption(options, "fwhm", math.NaN()),
		stringOption(options, "shape", r.asmCfg.Shape),
		floatOption(options, "fit_width", r.asmCfg.FitWidth),
	)
	if err != nil {
		return nil, err
	}
	return []peaks.Spec{spec}, nil
}

func stringOption(options map[string]any, key, fallback string) string {
	if val, ok := options[key].(string); ok && val != "" {
		return val
	}
	return fallback
}

func boolOption(options map[string]any, key string, fallback bool) bool {
	if val, ok := options[key].(bool); ok {
		return val
	}
	return fallback
}

func floatOption(options map[string]any, key string, fallback float64) float64 {
	if val, ok := options[key].(float64); ok {
		return val
	}
	return fallback
}

func intOption(options map[string]any, key string, fallback int) int {
	if val, ok := options[key].(int); ok {
		return val
	}
	return fallback
}

// Package assemble drives the sinogram assembly loop: for every peak
// specification it fits the weighted least-squares model at each scan
// coordinate, collects the amplitudes into a sinogram buffer, applies the
// configured corrections and flushes the result to the output store.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"log/slog"

	"sinogen/internal/fit"
	"sinogen/internal/peaks"
	"sinogen/internal/sino"
	"sinogen/internal/stack"
	"sinogen/internal/storage"
)

// Status is the per-peak assembly outcome.
type Status string

const (
	StatusSkipped Status = "skipped"
	StatusDone    Status = "done"
)

// Policy selects how a failed per-coordinate fit is handled.
type Policy string

const (
	// PolicyFail aborts the whole assembly on the first fit error.
	PolicyFail Policy = "fail"
	// PolicySkip records NaN for the coordinate, flags it in the
	// diagnostics dataset and keeps going.
	PolicySkip Policy = "skip"
)

// ParsePolicy maps a configuration string to a Policy. The empty string
// selects PolicyFail.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", string(PolicyFail):
		return PolicyFail, nil
	case string(PolicySkip):
		return PolicySkip, nil
	}
	return "", fmt.Errorf("unknown fit-error policy %q", s)
}

// Options controls the optional sinogram corrections and the fit-error
// policy.
type Options struct {
	Flip        bool
	RemoveBragg bool
	Deinterlace bool
	Center      bool
	OnFitError  Policy
	Workers     int
}

// Report summarizes the assembly of one peak.
type Report struct {
	Key        string
	Status     Status
	Flagged    int     // coordinates skipped under PolicySkip
	Despeckled int     // bragg-spot pixels replaced, when enabled
	Shift      float64 // deinterlace shift, when enabled
	Axis       float64 // rotation-axis shift, when enabled
}

// Assembler owns the in-memory buffers for the peak currently being
// processed and is the only writer to the output store.
type Assembler struct {
	store *storage.Store
	log   *slog.Logger
	opts  Options
}

// New creates an Assembler writing to store.
func New(store *storage.Store, logger *slog.Logger, opts Options) *Assembler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.OnFitError == "" {
		opts.OnFitError = PolicyFail
	}
	return &Assembler{store: store, log: logger, opts: opts}
}

// Run assembles one sinogram per peak specification. Peaks whose display
// key already exists in the output store are skipped, which makes reruns
// after partial completion safe.
func (a *Assembler) Run(ctx context.Context, stk *stack.Stack, specs []peaks.Spec) ([]Report, error) {
	reports := make([]Report, 0, len(specs))
	for _, spec := range specs {
		key := spec.Key()
		exists, err := a.store.HasSinogram(key)
		if err != nil {
			return reports, fmt.Errorf("checking output for %s: %w", key, err)
		}
		if exists {
			a.log.Info("sinogram present, skipping", "peak", key)
			reports = append(reports, Report{Key: key, Status: StatusSkipped})
			continue
		}

		rep, err := a.assemblePeak(ctx, stk, spec)
		if err != nil {
			return reports, fmt.Errorf("assembling %s: %w", key, err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (a *Assembler) assemblePeak(ctx context.Context, stk *stack.Stack, spec peaks.Spec) (Report, error) {
	key := spec.Key()
	design, err := fit.NewDesign(spec, stk.Channels())
	if err != nil {
		return Report{}, err
	}

	lines, frames := stk.Lines(), stk.Frames()
	w := design.Width()
	sgram := stack.NewArray(lines, frames)
	diag := stack.NewArray(lines, frames, 2, w)

	a.log.Info("assembling sinogram",
		"peak", key, "lines", lines, "frames", frames,
		"window", fmt.Sprintf("[%d,%d)", design.RMin, design.RMax))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		flagged  int
	)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	for i := 0; i < a.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for line := range jobs {
				n, err := a.fitLine(stk, design, sgram, diag, line)
				mu.Lock()
				flagged += n
				if err != nil && firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for line := 0; line < lines; line++ {
		select {
		case jobs <- line:
		case <-runCtx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return Report{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	rep := Report{Key: key, Status: StatusDone, Flagged: flagged}
	if a.opts.Flip {
		sino.Flip(sgram)
	}
	// Spots must go before the correlation-based corrections or they bias
	// the shift estimates.
	if a.opts.RemoveBragg {
		rep.Despeckled = sino.RemoveBraggSpots(sgram)
		a.log.Info("removed bragg spots", "peak", key, "replaced", rep.Despeckled)
	}
	if a.opts.Deinterlace {
		rep.Shift, err = sino.Deinterlace(sgram)
		if err != nil {
			return Report{}, err
		}
		a.log.Info("deinterlaced", "peak", key, "shift", rep.Shift)
	}
	if a.opts.Center {
		rep.Axis, err = sino.Center(sgram)
		if err != nil {
			return Report{}, err
		}
		a.log.Info("centered", "peak", key, "shift", rep.Axis)
	}

	if err := a.store.WriteSinogram(key, sgram); err != nil {
		return Report{}, err
	}
	if err := a.store.WriteDiagnostics(key, diag); err != nil {
		return Report{}, err
	}
	return rep, nil
}

// fitLine fits every frame of one scan line. Each coordinate writes to a
// disjoint region of the shared buffers, so no locking is needed. The
// returned count is the number of coordinates flagged under PolicySkip.
func (a *Assembler) fitLine(stk *stack.Stack, design *fit.Design, sgram, diag *stack.Array, line int) (int, error) {
	frames := stk.Frames()
	rMin, rMax := design.RMin, design.RMax
	w := design.Width()
	flagged := 0
	for frame := 0; frame < frames; frame++ {
		signal := stk.Signal.Row(line, frame)[rMin:rMax]
		dark := stk.Dark.Profile(line, frame)[rMin:rMax]

		raw := diag.Row(line, frame, 0)
		fitted := diag.Row(line, frame, 1)
		copy(raw, signal)

		coeffs, curve, err := design.Solve(signal, dark)
		if err != nil {
			if a.opts.OnFitError != PolicySkip || !isFitError(err) {
				return flagged, fmt.Errorf("line %d frame %d: %w", line, frame, err)
			}
			a.log.Warn("fit failed, flagging coordinate",
				"line", line, "frame", frame, "error", err)
			sgram.Set(math.NaN(), line, frame)
			for i := 0; i < w; i++ {
				fitted[i] = math.NaN()
			}
			flagged++
			continue
		}
		sgram.Set(coeffs.Amplitude, line, frame)
		copy(fitted, curve)
	}
	return flagged, nil
}

func isFitError(err error) bool {
	return errors.Is(err, fit.ErrSingular) || errors.Is(err, fit.ErrBadWeight)
}

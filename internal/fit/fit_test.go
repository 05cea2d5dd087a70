package fit

import (
	"errors"
	"math"
	"testing"

	"sinogen/internal/peaks"
)

func TestExactRecovery(t *testing.T) {
	spec := peaks.Spec{Position: 100, FWHM: 4, Shape: peaks.ShapeGaussian, FitWidth: 2}
	design, err := NewDesign(spec, 512)
	if err != nil {
		t.Fatalf("NewDesign: %v", err)
	}
	if design.RMin != 92 || design.RMax != 108 {
		t.Fatalf("window [%d,%d), want [92,108)", design.RMin, design.RMax)
	}

	const (
		offset    = 50.0
		slope     = 0.5
		amplitude = 200.0
	)
	w := design.Width()
	basis := spec.Basis(design.RMin, design.RMax)
	signal := make([]float64, w)
	dark := make([]float64, w)
	for i := 0; i < w; i++ {
		r := float64(design.RMin + i)
		signal[i] = offset + slope*r + amplitude*basis[i]
		dark[i] = 3
	}

	coeffs, curve, err := design.Solve(signal, dark)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	const tol = 1e-8
	if math.Abs(coeffs.Offset-offset) > tol {
		t.Errorf("offset = %g, want %g", coeffs.Offset, offset)
	}
	if math.Abs(coeffs.Slope-slope) > tol {
		t.Errorf("slope = %g, want %g", coeffs.Slope, slope)
	}
	if math.Abs(coeffs.Amplitude-amplitude) > tol {
		t.Errorf("amplitude = %g, want %g", coeffs.Amplitude, amplitude)
	}
	for i := range curve {
		if math.Abs(curve[i]-signal[i]) > 1e-6 {
			t.Fatalf("curve[%d] = %g, want %g", i, curve[i], signal[i])
		}
	}
}

func TestSolveRejectsNonPositiveWeight(t *testing.T) {
	spec := peaks.Spec{Position: 10, FWHM: 2, Shape: peaks.ShapeGaussian, FitWidth: 2}
	design, err := NewDesign(spec, 64)
	if err != nil {
		t.Fatalf("NewDesign: %v", err)
	}
	w := design.Width()
	signal := make([]float64, w)
	dark := make([]float64, w)
	for i := range signal {
		signal[i] = 10
		dark[i] = 1
	}
	signal[2] = -1
	dark[2] = 0.5

	_, _, err = design.Solve(signal, dark)
	if !errors.Is(err, ErrBadWeight) {
		t.Fatalf("expected ErrBadWeight, got %v", err)
	}
}

func TestSolveSingularBasis(t *testing.T) {
	// A gaussian far wider than its window is constant over the window to
	// machine precision, so the basis row is collinear with the constant
	// row and the normal equations degenerate.
	spec := peaks.Spec{Position: 10, FWHM: 1e9, Shape: peaks.ShapeGaussian, FitWidth: 3e-9}
	design, err := NewDesign(spec, 64)
	if err != nil {
		t.Fatalf("NewDesign: %v", err)
	}
	w := design.Width()
	if w < 3 {
		t.Fatalf("degenerate test window too short: %d", w)
	}
	signal := make([]float64, w)
	dark := make([]float64, w)
	for i := range signal {
		signal[i] = 5
		dark[i] = 1
	}
	_, _, err = design.Solve(signal, dark)
	if !errors.Is(err, ErrSingular) {
		t.Fatalf("expected ErrSingular, got %v", err)
	}
}

func TestSolveWindowLengthMismatch(t *testing.T) {
	spec := peaks.Spec{Position: 10, FWHM: 2, Shape: peaks.ShapeGaussian, FitWidth: 2}
	design, err := NewDesign(spec, 64)
	if err != nil {
		t.Fatalf("NewDesign: %v", err)
	}
	if _, _, err := design.Solve(make([]float64, 2), make([]float64, 2)); err == nil {
		t.Fatal("expected error for short window")
	}
}

package peaks

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peaks.dat")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileRoundTrip(t *testing.T) {
	path := writeList(t, "# position fwhm shape\n10.0 2.0 gaussian\n")
	specs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected 1 spec, got %d", len(specs))
	}
	s := specs[0]
	if s.Position != 10.0 || s.FWHM != 2.0 || s.Shape != ShapeGaussian {
		t.Fatalf("unexpected spec %+v", s)
	}
	if s.FitWidth != DefaultFitWidth {
		t.Fatalf("expected default fit width, got %g", s.FitWidth)
	}
}

func TestLoadFileDropsRowMissingFWHM(t *testing.T) {
	path := writeList(t, "# position fwhm\n10.0\n20.0 3.0\n")
	specs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(specs) != 1 || specs[0].Position != 20.0 {
		t.Fatalf("expected only the complete row, got %+v", specs)
	}
}

func TestLoadFileHeaderRequired(t *testing.T) {
	path := writeList(t, "position fwhm\n10.0 2.0\n")
	if _, err := LoadFile(path); !errors.Is(err, ErrNoHeader) {
		t.Fatalf("expected ErrNoHeader, got %v", err)
	}
}

func TestLoadFileMalformedRowAborts(t *testing.T) {
	path := writeList(t, "# position fwhm\n10.0 2.0\nbogus 3.0\n")
	_, err := LoadFile(path)
	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("expected RowError, got %v", err)
	}
	if rowErr.Line != 3 {
		t.Fatalf("expected failure on line 3, got %d", rowErr.Line)
	}
}

func TestLoadFileInlineCommentAndCommaDecimal(t *testing.T) {
	path := writeList(t, "# Position FWHM Shape\n12,5 2,0 delta # calibration peak\n")
	specs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected 1 spec, got %d", len(specs))
	}
	if specs[0].Position != 12.5 || specs[0].FWHM != 2.0 || specs[0].Shape != ShapeDelta {
		t.Fatalf("unexpected spec %+v", specs[0])
	}
}

func TestFromOptionsRequiresPositionAndFWHM(t *testing.T) {
	if _, err := FromOptions(math.NaN(), 2.0, "gaussian", 2); err == nil {
		t.Fatal("expected error for unset position")
	}
	if _, err := FromOptions(10.0, math.NaN(), "gaussian", 2); err == nil {
		t.Fatal("expected error for unset fwhm")
	}
	spec, err := FromOptions(10.0, 2.0, "", 0)
	if err != nil {
		t.Fatalf("FromOptions: %v", err)
	}
	if spec.Shape != ShapeGaussian || spec.FitWidth != DefaultFitWidth {
		t.Fatalf("unexpected defaults %+v", spec)
	}
}

func TestParseShapeUnknown(t *testing.T) {
	if _, err := ParseShape("lorentzian"); err == nil {
		t.Fatal("expected error for unknown shape")
	}
}

func TestWindowBounds(t *testing.T) {
	spec := Spec{Position: 100, FWHM: 4, Shape: ShapeGaussian, FitWidth: 2}
	rMin, rMax, err := spec.Window(512)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if rMin != 92 || rMax != 108 {
		t.Fatalf("expected [92,108), got [%d,%d)", rMin, rMax)
	}

	if _, _, err := spec.Window(100); err == nil {
		t.Fatal("expected error for window outside radial extent")
	}
}

func TestGaussianBasis(t *testing.T) {
	spec := Spec{Position: 8, FWHM: 2, Shape: ShapeGaussian, FitWidth: 2}
	basis := spec.Basis(4, 12)
	if len(basis) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(basis))
	}
	if math.Abs(basis[4]-1) > 1e-12 {
		t.Fatalf("expected unit height at the peak position, got %g", basis[4])
	}
	// Half maximum one half-width away from the center.
	if math.Abs(basis[3]-0.5) > 1e-12 || math.Abs(basis[5]-0.5) > 1e-12 {
		t.Fatalf("expected half maximum at +-fwhm/2, got %g and %g", basis[3], basis[5])
	}
}

func TestDeltaBasis(t *testing.T) {
	spec := Spec{Position: 6, FWHM: 1, Shape: ShapeDelta, FitWidth: 3}
	basis := spec.Basis(3, 9)
	for i, v := range basis {
		want := 0.0
		if i == 3 {
			want = 1.0
		}
		if v != want {
			t.Fatalf("basis[%d] = %g, want %g", i, v, want)
		}
	}
}

func TestKeyDeterministic(t *testing.T) {
	a := Spec{Position: 10, FWHM: 2, Shape: ShapeGaussian}
	b := Spec{Position: 10, FWHM: 2, Shape: ShapeGaussian, FitWidth: 4}
	if a.Key() != b.Key() {
		t.Fatalf("key must depend only on shape, position and fwhm: %s vs %s", a.Key(), b.Key())
	}
	c := Spec{Position: 10, FWHM: 2, Shape: ShapeDelta}
	if a.Key() == c.Key() {
		t.Fatal("different shapes must yield different keys")
	}
}

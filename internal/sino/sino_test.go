package sino

import (
	"math"
	"testing"

	"sinogen/internal/stack"
)

func TestFlipReversesOddLines(t *testing.T) {
	s := stack.NewArray(3, 4)
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			s.Set(float64(10*i+j), i, j)
		}
	}
	Flip(s)
	// Even lines untouched.
	for j := 0; j < 4; j++ {
		if s.At(0, j) != float64(j) {
			t.Fatalf("even line changed: %v", s.Row(0))
		}
	}
	// Odd line reversed.
	for j := 0; j < 4; j++ {
		if s.At(1, j) != float64(10+3-j) {
			t.Fatalf("odd line not reversed: %v", s.Row(1))
		}
	}
}

func TestFlipInvolution(t *testing.T) {
	s := stack.NewArray(4, 7)
	for i := range s.Data {
		s.Data[i] = float64(i * i % 13)
	}
	orig := append([]float64(nil), s.Data...)
	Flip(s)
	Flip(s)
	for i := range orig {
		if s.Data[i] != orig[i] {
			t.Fatalf("flip is not an involution at %d: %g != %g", i, s.Data[i], orig[i])
		}
	}
}

func bump(row []float64, center float64) {
	for i := range row {
		d := float64(i) - center
		row[i] = 100 * math.Exp(-d*d/18)
	}
}

func TestCorrelateShiftRecoversDisplacement(t *testing.T) {
	const n = 128
	a := make([]float64, n)
	b := make([]float64, n)
	bump(a, 40)
	bump(b, 44) // b is a shifted right by 4
	got := correlateShift(a, b)
	if math.Abs(got+4) > 0.1 {
		t.Fatalf("correlateShift = %g, want -4", got)
	}
}

func TestDeinterlaceAlignsOddLines(t *testing.T) {
	const n = 96
	s := stack.NewArray(6, n)
	for i := 0; i < 6; i++ {
		c := 30.0
		if i%2 == 1 {
			c = 33.0
		}
		bump(s.Row(i), c)
	}
	shift, err := Deinterlace(s)
	if err != nil {
		t.Fatalf("Deinterlace: %v", err)
	}
	if math.Abs(shift+3) > 0.1 {
		t.Fatalf("shift = %g, want -3", shift)
	}
	for i := 1; i < 6; i += 2 {
		if got := argmax(s.Row(i)); got != 30 {
			t.Fatalf("odd line %d peak at %d after deinterlace, want 30", i, got)
		}
	}
}

func TestCenterShiftsProjections(t *testing.T) {
	const n = 128
	s := stack.NewArray(2, n)
	bump(s.Row(0), 30)
	// A projection 180 degrees apart, mirrored, with the axis 2 channels off
	// center: its reversal matches the first projection shifted by 4.
	bump(s.Row(1), float64(n-1)-34)
	shift, err := Center(s)
	if err != nil {
		t.Fatalf("Center: %v", err)
	}
	if math.Abs(shift+4) > 0.1 {
		t.Fatalf("shift = %g, want -4", shift)
	}
}

func TestRemoveBraggSpotsReplacesOutliers(t *testing.T) {
	// Smooth ramp along the radial axis; local medians match the cell
	// value exactly on the flanks, so only the planted defects stand out.
	s := stack.NewArray(8, 32)
	for i := 0; i < 8; i++ {
		for j := 0; j < 32; j++ {
			s.Set(100+float64(j), i, j)
		}
	}
	s.Set(4000, 2, 5) // highlight
	s.Set(0, 5, 20)   // shadow

	replaced := RemoveBraggSpots(s)
	if replaced != 2 {
		t.Fatalf("replaced = %d, want 2", replaced)
	}
	// The footprint median over the neighboring lines restores the ramp.
	if got := s.At(2, 5); got != 105 {
		t.Errorf("highlight replaced with %g, want 105", got)
	}
	if got := s.At(5, 20); got != 120 {
		t.Errorf("shadow replaced with %g, want 120", got)
	}
	// Healthy neighbors untouched.
	if got := s.At(2, 6); got != 106 {
		t.Errorf("neighbor changed to %g", got)
	}
}

func TestRemoveBraggSpotsLeavesUniformData(t *testing.T) {
	s := stack.NewArray(6, 12)
	for i := range s.Data {
		s.Data[i] = 42
	}
	if replaced := RemoveBraggSpots(s); replaced != 0 {
		t.Fatalf("replaced = %d on uniform data, want 0", replaced)
	}
	for i, v := range s.Data {
		if v != 42 {
			t.Fatalf("pixel %d changed to %g", i, v)
		}
	}
}

func argmax(s []float64) int {
	best := 0
	for i, v := range s {
		if v > s[best] {
			best = i
		}
	}
	return best
}

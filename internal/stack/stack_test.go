package stack

import (
	"strings"
	"testing"
)

func TestArrayIndexing(t *testing.T) {
	a := NewArray(2, 3, 4)
	a.Set(7.5, 1, 2, 3)
	if got := a.At(1, 2, 3); got != 7.5 {
		t.Fatalf("At = %g, want 7.5", got)
	}
	row := a.Row(1, 2)
	if len(row) != 4 || row[3] != 7.5 {
		t.Fatalf("Row(1,2) = %v", row)
	}
	// Row aliases the storage.
	row[0] = -1
	if a.At(1, 2, 0) != -1 {
		t.Fatal("Row must alias the array storage")
	}
}

func TestDarkIndexerDirectLookup(t *testing.T) {
	dark := NewArray(2, 3, 4)
	for i := range dark.Data {
		dark.Data[i] = float64(i)
	}
	idx, err := NewDarkIndexer(dark, 2, 3)
	if err != nil {
		t.Fatalf("NewDarkIndexer: %v", err)
	}
	got := idx.Profile(1, 2)
	want := dark.Row(1, 2)
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("Profile(1,2)[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestDarkIndexerBroadcast(t *testing.T) {
	const f = 3
	dark := NewArray(1, f, 2)
	for i := 0; i < f; i++ {
		dark.Set(float64(i), 0, i, 0)
	}
	idx, err := NewDarkIndexer(dark, 5, 4*f)
	if err != nil {
		t.Fatalf("NewDarkIndexer: %v", err)
	}
	for k := 0; k < 4*f; k++ {
		if got := idx.Profile(2, k)[0]; got != float64(k%f) {
			t.Fatalf("frame %d mapped to dark %g, want %d", k, got, k%f)
		}
	}
}

func TestDarkIndexerFrameMismatchFatal(t *testing.T) {
	dark := NewArray(4, 3, 8)
	_, err := NewDarkIndexer(dark, 4, 5)
	if err == nil {
		t.Fatal("expected fatal mismatch for per-frame dark with wrong frame count")
	}
	if !strings.Contains(err.Error(), "frames") {
		t.Fatalf("error should name the frame mismatch: %v", err)
	}
}

func TestNewStackGeometry(t *testing.T) {
	signal := NewArray(2, 3, 16)
	dark := NewArray(1, 3, 16)
	st, err := New(signal, dark)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if st.Lines() != 2 || st.Frames() != 3 || st.Channels() != 16 {
		t.Fatalf("unexpected geometry %d %d %d", st.Lines(), st.Frames(), st.Channels())
	}
}

package tiffio

import (
	"errors"
	"path/filepath"
	"testing"

	"gopkg.in/gographics/imagick.v3/imagick"

	"sinogen/internal/stack"
)

func writeTestTIFF(t *testing.T) string {
	t.Helper()
	imagick.Initialize()
	defer imagick.Terminate()

	mw := imagick.NewMagickWand()
	defer mw.Destroy()
	pw := imagick.NewPixelWand()
	defer pw.Destroy()
	pw.SetColor("gray50")
	if err := mw.NewImage(8, 4, pw); err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	path := filepath.Join(t.TempDir(), "frames.tif")
	if err := mw.WriteImage(path); err != nil {
		t.Fatalf("WriteImage: %v", err)
	}
	return path
}

func TestOpenSurvivesRepeatedLifecycles(t *testing.T) {
	path := writeTestTIFF(t)

	// Open pairs Initialize with Terminate; a second Open must come up
	// cleanly after the first teardown.
	for i := 0; i < 2; i++ {
		r, err := Open(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		img, err := r.GetImage("signal")
		if err != nil {
			t.Fatalf("GetImage %d: %v", i, err)
		}
		if img.Dim(0) != 4 || img.Dim(1) != 8 {
			t.Fatalf("shape = %v, want [4 8]", img.Shape)
		}
		if _, err := r.GetImage("dark"); !errors.Is(err, stack.ErrNoDataset) {
			t.Fatalf("single-scene dark lookup = %v, want ErrNoDataset", err)
		}
		r.Close()
	}
}

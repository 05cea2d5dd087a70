// Package tiffio reads TIFF frame stacks through the ImageMagick bindings.
// Scene 0 carries the signal frames, scene 1 (when present) the dark frames;
// TIFF has no named datasets, so the scene order is the contract.
package tiffio

import (
	"fmt"
	"strings"

	"gopkg.in/gographics/imagick.v3/imagick"

	"sinogen/internal/stack"
)

func init() {
	for _, ext := range []string{".tif", ".tiff"} {
		stack.RegisterFormat(ext, func(path string) (stack.Reader, error) {
			return Open(path)
		})
	}
}

// Reader exposes the scenes of one TIFF file as datasets.
type Reader struct {
	scenes []*stack.Array
}

// Open reads every scene of a TIFF file into grayscale float arrays, rows
// as frames and columns as radial channels.
func Open(path string) (*Reader, error) {
	imagick.Initialize()
	defer imagick.Terminate()
	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.ReadImage(path); err != nil {
		return nil, fmt.Errorf("tiff %s: %w", path, err)
	}

	r := &Reader{}
	mw.ResetIterator()
	for mw.NextImage() {
		width := int(mw.GetImageWidth())
		height := int(mw.GetImageHeight())
		pixels, err := mw.ExportImagePixels(0, 0, uint(width), uint(height), "I", imagick.PIXEL_FLOAT)
		if err != nil {
			return nil, fmt.Errorf("tiff %s: scene %d: %w", path, len(r.scenes), err)
		}
		data := make([]float64, width*height)
		switch v := pixels.(type) {
		case []float64:
			copy(data, v)
		case []float32:
			for i, p := range v {
				data[i] = float64(p)
			}
		default:
			return nil, fmt.Errorf("tiff %s: unexpected pixel type %T", path, pixels)
		}
		r.scenes = append(r.scenes, &stack.Array{Shape: []int{height, width}, Data: data})
	}
	if len(r.scenes) == 0 {
		return nil, fmt.Errorf("tiff %s: no scenes", path)
	}
	return r, nil
}

// GetImage maps dataset names onto scenes: the signal dataset is scene 0,
// the dark dataset scene 1.
func (r *Reader) GetImage(name string) (*stack.Array, error) {
	idx := 0
	if strings.Contains(strings.ToLower(name), "dark") {
		idx = 1
	}
	if idx >= len(r.scenes) {
		return nil, stack.ErrNoDataset
	}
	return r.scenes[idx], nil
}

// Close implements stack.Reader.
func (r *Reader) Close() error { return nil }

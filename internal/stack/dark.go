package stack

import "fmt"

// DarkIndexer resolves the dark-current profile for any scan coordinate.
// Two layouts are supported: a full per-coordinate dark stack (direct
// lookup) and a single shared dark stack whose frame axis is broadcast by
// modulo indexing.
type DarkIndexer struct {
	dark   *Array
	shared bool
}

// NewDarkIndexer validates the dark stack against the signal geometry
// (lines scan lines, frames frames per line). A per-coordinate dark stack
// whose frame count disagrees with the data is a fatal configuration error,
// caught here before any fitting starts.
func NewDarkIndexer(dark *Array, lines, frames int) (*DarkIndexer, error) {
	if len(dark.Shape) != 3 {
		return nil, fmt.Errorf("dark stack must be 3-dimensional (lines, frames, channels), got shape %v", dark.Shape)
	}
	dLines, dFrames := dark.Dim(0), dark.Dim(1)
	switch {
	case dLines == lines:
		if dFrames != frames {
			return nil, fmt.Errorf("dark stack has %d frames per line, data has %d", dFrames, frames)
		}
		return &DarkIndexer{dark: dark}, nil
	case dLines == 1:
		if dFrames == 0 {
			return nil, fmt.Errorf("shared dark stack has no frames")
		}
		return &DarkIndexer{dark: dark, shared: true}, nil
	default:
		return nil, fmt.Errorf("dark stack has %d lines, data has %d", dLines, lines)
	}
}

// Profile returns the full-length dark profile for a scan coordinate. The
// returned slice aliases the dark stack.
func (d *DarkIndexer) Profile(line, frame int) []float64 {
	if d.shared {
		return d.dark.Row(0, frame%d.dark.Dim(1))
	}
	return d.dark.Row(line, frame)
}

package stack

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Reader exposes the named datasets of one input artifact. Each artifact
// holds the frames acquired along one scan line.
type Reader interface {
	// GetImage returns one named dataset as a dense array, shaped
	// (frames, channels) or (channels) for a single frame.
	GetImage(name string) (*Array, error)
	Close() error
}

// ErrNoDataset is returned by readers when an artifact does not carry the
// requested dataset.
var ErrNoDataset = errors.New("dataset not present")

// OpenFunc opens one input artifact. Registered per file extension.
type OpenFunc func(path string) (Reader, error)

var openers = map[string]OpenFunc{}

// RegisterFormat associates a file extension (".edf", ".tif") with a reader
// constructor. Called from format packages at init time.
func RegisterFormat(ext string, open OpenFunc) {
	openers[strings.ToLower(ext)] = open
}

// Extensions returns the registered artifact extensions, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(openers))
	for ext := range openers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Open picks a reader for path by extension.
func Open(path string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	open, ok := openers[ext]
	if !ok {
		return nil, fmt.Errorf("no reader registered for %q files", ext)
	}
	return open(path)
}

// Stack is the fully materialized input for one assembly run. It stays
// resident for the duration of the run; the assembler is its sole owner.
type Stack struct {
	Signal *Array // (lines, frames, channels)
	Dark   *DarkIndexer
}

// Lines, Frames and Channels report the signal geometry.
func (s *Stack) Lines() int    { return s.Signal.Dim(0) }
func (s *Stack) Frames() int   { return s.Signal.Dim(1) }
func (s *Stack) Channels() int { return s.Signal.Dim(2) }

// Load reads an ordered sequence of input artifacts into a Stack. Every
// artifact must expose the signal dataset; the dark dataset may be present
// in every artifact (per-coordinate dark stack) or only in the first
// (shared dark profile, broadcast over the remaining lines).
func Load(paths []string, signalSet, darkSet string) (*Stack, error) {
	if len(paths) == 0 {
		return nil, errors.New("no input artifacts")
	}
	var (
		signal    *Array
		dark      *Array
		darkLines int
	)
	for i, path := range paths {
		r, err := Open(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		sig, err := r.GetImage(signalSet)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%s: dataset %q: %w", path, signalSet, err)
		}
		sig, err = asFrames(sig)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%s: dataset %q: %w", path, signalSet, err)
		}
		if signal == nil {
			signal = NewArray(len(paths), sig.Dim(0), sig.Dim(1))
		} else if sig.Dim(0) != signal.Dim(1) || sig.Dim(1) != signal.Dim(2) {
			r.Close()
			return nil, fmt.Errorf("%s: frame geometry %v does not match first artifact (%d, %d)",
				path, sig.Shape, signal.Dim(1), signal.Dim(2))
		}
		copy(signal.Data[i*sig.Len():], sig.Data)

		dk, err := r.GetImage(darkSet)
		switch {
		case err == nil:
			dk, err = asFrames(dk)
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("%s: dataset %q: %w", path, darkSet, err)
			}
			if dark == nil {
				dark = NewArray(len(paths), dk.Dim(0), dk.Dim(1))
			}
			if dk.Dim(0) != dark.Dim(1) || dk.Dim(1) != dark.Dim(2) {
				r.Close()
				return nil, fmt.Errorf("%s: dark geometry %v does not match first artifact", path, dk.Shape)
			}
			copy(dark.Data[i*dk.Len():], dk.Data)
			darkLines++
		case errors.Is(err, ErrNoDataset) && i > 0 && darkLines == 1:
			// Shared dark profile from the first artifact.
		default:
			r.Close()
			return nil, fmt.Errorf("%s: dataset %q: %w", path, darkSet, err)
		}
		r.Close()
	}

	if darkLines == 0 {
		return nil, fmt.Errorf("no artifact carries the dark dataset %q", darkSet)
	}
	if darkLines == 1 && len(paths) > 1 {
		dark = &Array{Shape: []int{1, dark.Dim(1), dark.Dim(2)}, Data: dark.Data[:dark.Dim(1)*dark.Dim(2)]}
	} else if darkLines != len(paths) {
		return nil, fmt.Errorf("dark dataset present in %d of %d artifacts; need one or all", darkLines, len(paths))
	}

	indexer, err := NewDarkIndexer(dark, signal.Dim(0), signal.Dim(1))
	if err != nil {
		return nil, err
	}
	return &Stack{Signal: signal, Dark: indexer}, nil
}

// asFrames normalizes a dataset to (frames, channels).
func asFrames(a *Array) (*Array, error) {
	switch len(a.Shape) {
	case 1:
		return &Array{Shape: []int{1, a.Dim(0)}, Data: a.Data}, nil
	case 2:
		return a, nil
	default:
		return nil, fmt.Errorf("dataset must be 1- or 2-dimensional, got shape %v", a.Shape)
	}
}

// New builds a Stack directly from in-memory arrays. Used by tests and by
// callers that source data outside the file readers.
func New(signal, dark *Array) (*Stack, error) {
	if len(signal.Shape) != 3 {
		return nil, fmt.Errorf("signal stack must be 3-dimensional, got shape %v", signal.Shape)
	}
	indexer, err := NewDarkIndexer(dark, signal.Dim(0), signal.Dim(1))
	if err != nil {
		return nil, err
	}
	return &Stack{Signal: signal, Dark: indexer}, nil
}

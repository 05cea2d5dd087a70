package stack

import "fmt"

// Array is a dense row-major float64 array with an explicit shape. It is the
// in-memory form of every dataset the assembler touches: input frames, dark
// profiles, sinogram buffers and diagnostics.
type Array struct {
	Shape []int
	Data  []float64
}

// NewArray allocates a zeroed array of the given shape.
func NewArray(shape ...int) *Array {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Array{Shape: append([]int(nil), shape...), Data: make([]float64, n)}
}

// Len returns the total number of elements.
func (a *Array) Len() int { return len(a.Data) }

// Dim returns the extent of axis i.
func (a *Array) Dim(i int) int { return a.Shape[i] }

// Offset computes the flat index of a multi-dimensional coordinate.
func (a *Array) Offset(idx ...int) int {
	if len(idx) != len(a.Shape) {
		panic(fmt.Sprintf("stack: %d indices for %d-dimensional array", len(idx), len(a.Shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.Shape[i] {
			panic(fmt.Sprintf("stack: index %d out of range for axis %d (extent %d)", v, i, a.Shape[i]))
		}
		off = off*a.Shape[i] + v
	}
	return off
}

// At returns the element at a multi-dimensional coordinate.
func (a *Array) At(idx ...int) float64 { return a.Data[a.Offset(idx...)] }

// Set stores v at a multi-dimensional coordinate.
func (a *Array) Set(v float64, idx ...int) { a.Data[a.Offset(idx...)] = v }

// Row returns the contiguous slice spanning the last axis at the given
// leading coordinate. The slice aliases the array's storage.
func (a *Array) Row(idx ...int) []float64 {
	if len(idx) != len(a.Shape)-1 {
		panic(fmt.Sprintf("stack: Row needs %d indices, got %d", len(a.Shape)-1, len(idx)))
	}
	w := a.Shape[len(a.Shape)-1]
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.Shape[i] {
			panic(fmt.Sprintf("stack: index %d out of range for axis %d (extent %d)", v, i, a.Shape[i]))
		}
		off = off*a.Shape[i] + v
	}
	off *= w
	return a.Data[off : off+w]
}

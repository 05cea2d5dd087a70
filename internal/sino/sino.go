// Package sino holds corrections applied to an assembled sinogram buffer
// before it is flushed: the interleaved-scan line flip, bragg-spot removal,
// even/odd deinterlacing and rotation-axis centering.
package sino

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"

	"sinogen/internal/stack"
)

// Flip reverses every odd-indexed scan line in place. Interleaved raster
// scans traverse alternating lines in opposite directions, which inverts
// the radial direction of those lines. Applying Flip twice restores the
// buffer.
func Flip(s *stack.Array) {
	lines := s.Dim(0)
	for i := 1; i < lines; i += 2 {
		row := s.Row(i)
		for a, b := 0, len(row)-1; a < b; a, b = a+1, b-1 {
			row[a], row[b] = row[b], row[a]
		}
	}
}

// Center estimates the rotation axis offset from the first and last
// projections, assumed 180 degrees apart, and shifts the sinogram so the
// axis sits in the middle. Returns the estimated shift in channels.
func Center(s *stack.Array) (float64, error) {
	if s.Dim(0) < 2 {
		return 0, fmt.Errorf("centering needs at least 2 projections, got %d", s.Dim(0))
	}
	first := s.Row(0)
	last := reversed(s.Row(s.Dim(0) - 1))
	shift := correlateShift(first, last)
	for i := 0; i < s.Dim(0); i++ {
		shiftRow(s.Row(i), -shift)
	}
	return shift, nil
}

// Deinterlace estimates the systematic offset between even and odd scan
// lines and shifts the odd lines to match.
func Deinterlace(s *stack.Array) (float64, error) {
	lines, w := s.Dim(0), s.Dim(1)
	if lines < 2 {
		return 0, fmt.Errorf("deinterlacing needs at least 2 lines, got %d", lines)
	}
	even := make([]float64, w)
	odd := make([]float64, w)
	nEven, nOdd := 0, 0
	for i := 0; i < lines; i++ {
		row := s.Row(i)
		if i%2 == 0 {
			accumulate(even, row)
			nEven++
		} else {
			accumulate(odd, row)
			nOdd++
		}
	}
	scale(even, 1/float64(nEven))
	scale(odd, 1/float64(nOdd))

	shift := correlateShift(even, odd)
	for i := 1; i < lines; i += 2 {
		shiftRow(s.Row(i), shift)
	}
	return shift, nil
}

const (
	braggBlock     = 5    // side of the local-median window
	braggTolerance = 0.05 // a mask covering more than this fraction is structure, not spots
	braggSenseLow  = 1.5  // shadow sensitivity
	braggSenseHigh = 0.2  // highlight sensitivity
)

// braggFootprint samples the replacement median from the lines above and
// below, skipping the pixel's own line: a spot is usually contained to one
// projection.
var braggFootprint = [][2]int{
	{-2, 0},
	{-1, -1}, {-1, 0}, {-1, 1},
	{1, -1}, {1, 0}, {1, 1},
	{2, 0},
}

// RemoveBraggSpots replaces pixels that stand out against their local
// median with the median of the neighboring lines. Large crystallites in
// diffracting orientations leave isolated highlights and shadows in the
// sinogram; both are detected against thresholds derived from the global
// value distribution. Returns the number of pixels replaced.
func RemoveBraggSpots(s *stack.Array) int {
	lines, w := s.Dim(0), s.Dim(1)
	n := lines * w

	m := median(s.Data)
	var above, below []float64
	for _, v := range s.Data {
		switch {
		case v > m:
			above = append(above, v)
		case v < m:
			below = append(below, v)
		}
	}
	offHigh, offLow := m, m
	if len(above) > 0 {
		offHigh = median(above)
	}
	if len(below) > 0 {
		offLow = median(below)
	}

	maskHigh := make([]bool, n)
	maskLow := make([]bool, n)
	nHigh, nLow := 0, 0
	for i := 0; i < lines; i++ {
		for j := 0; j < w; j++ {
			idx := i*w + j
			local := blockMedian(s, i, j)
			v := s.At(i, j)
			if v > local+braggSenseHigh*(offHigh-m) {
				maskHigh[idx] = true
				nHigh++
			}
			if v <= local+braggSenseLow*(offLow-m) {
				maskLow[idx] = true
				nLow++
			}
		}
	}
	if float64(nHigh) > braggTolerance*float64(n) {
		maskHigh = make([]bool, n)
	}
	if float64(nLow) > braggTolerance*float64(n) {
		maskLow = make([]bool, n)
	}

	// Replacement values come from the unmodified buffer.
	type repl struct {
		idx int
		val float64
	}
	var repls []repl
	for i := 0; i < lines; i++ {
		for j := 0; j < w; j++ {
			idx := i*w + j
			if maskHigh[idx] || maskLow[idx] {
				repls = append(repls, repl{idx, footprintMedian(s, i, j)})
			}
		}
	}
	for _, r := range repls {
		s.Data[r.idx] = r.val
	}
	return len(repls)
}

// blockMedian is the median over the braggBlock square around (line, ch),
// truncated at the array edges.
func blockMedian(s *stack.Array, line, ch int) float64 {
	const half = braggBlock / 2
	lines, w := s.Dim(0), s.Dim(1)
	vals := make([]float64, 0, braggBlock*braggBlock)
	for di := -half; di <= half; di++ {
		i := line + di
		if i < 0 || i >= lines {
			continue
		}
		for dj := -half; dj <= half; dj++ {
			j := ch + dj
			if j < 0 || j >= w {
				continue
			}
			vals = append(vals, s.At(i, j))
		}
	}
	return median(vals)
}

func footprintMedian(s *stack.Array, line, ch int) float64 {
	lines, w := s.Dim(0), s.Dim(1)
	vals := make([]float64, 0, len(braggFootprint))
	for _, d := range braggFootprint {
		i, j := line+d[0], ch+d[1]
		if i < 0 || i >= lines || j < 0 || j >= w {
			continue
		}
		vals = append(vals, s.At(i, j))
	}
	if len(vals) == 0 {
		return s.At(line, ch)
	}
	return median(vals)
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	c := append([]float64(nil), vals...)
	sort.Float64s(c)
	if len(c)%2 == 1 {
		return c[len(c)/2]
	}
	return 0.5 * (c[len(c)/2-1] + c[len(c)/2])
}

// correlateShift finds the sub-channel displacement of b relative to a by
// FFT cross-correlation with parabolic refinement around the peak. The DC
// component is suppressed so constant offsets do not bias the estimate.
func correlateShift(a, b []float64) float64 {
	n := len(a)
	fft := fourier.NewFFT(n)
	ca := fft.Coefficients(nil, a)
	cb := fft.Coefficients(nil, b)
	prod := make([]complex128, len(ca))
	for i := range ca {
		prod[i] = ca[i] * cmplx.Conj(cb[i])
	}
	prod[0] = 0
	ir := fft.Sequence(nil, prod)

	best := 0
	for i := 1; i < n; i++ {
		if ir[i] > ir[best] {
			best = i
		}
	}

	// Parabolic sub-sample refinement on the correlation peak.
	ym := ir[(best-1+n)%n]
	y0 := ir[best]
	yp := ir[(best+1)%n]
	var frac float64
	if den := ym - 2*y0 + yp; den != 0 {
		frac = 0.5 * (ym - yp) / den
	}

	t := float64(best)
	if best >= n/2 {
		t -= float64(n)
	}
	return t + frac
}

// shiftRow displaces row by shift channels with linear interpolation,
// filling vacated samples with the edge value.
func shiftRow(row []float64, shift float64) {
	if shift == 0 {
		return
	}
	n := len(row)
	src := make([]float64, n)
	copy(src, row)
	for i := 0; i < n; i++ {
		pos := float64(i) - shift
		lo := int(math.Floor(pos))
		f := pos - float64(lo)
		v0 := edgeAt(src, lo)
		v1 := edgeAt(src, lo+1)
		row[i] = v0*(1-f) + v1*f
	}
}

func edgeAt(s []float64, i int) float64 {
	if i < 0 {
		return s[0]
	}
	if i >= len(s) {
		return s[len(s)-1]
	}
	return s[i]
}

func reversed(s []float64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

func accumulate(dst, src []float64) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func scale(s []float64, f float64) {
	for i := range s {
		s[i] *= f
	}
}

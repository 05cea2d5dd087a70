// Package fit implements the per-coordinate weighted least-squares peak
// fit: a 3-parameter model (offset, slope, peak amplitude) solved against a
// radial signal window with inverse-variance weights under Poisson
// counting statistics.
package fit

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"sinogen/internal/peaks"
)

// ErrSingular reports a degenerate normal-equations matrix, e.g. a constant
// peak basis over the window.
var ErrSingular = errors.New("singular normal equations")

// ErrBadWeight reports a non-positive signal+dark sum, which breaks the
// Poisson variance proxy.
var ErrBadWeight = errors.New("non-positive weight denominator")

// Coefficients is the solved 3-parameter model. Amplitude is the sinogram
// sample.
type Coefficients struct {
	Offset    float64
	Slope     float64
	Amplitude float64
}

// Design is the 3xW design matrix for one peak specification: a constant
// row, the radial channel index, and the peak basis function. It is built
// once per peak and shared read-only across all scan coordinates.
type Design struct {
	RMin, RMax int
	matrix     *mat.Dense
}

// NewDesign validates the fit window of spec against the radial extent and
// builds the design matrix.
func NewDesign(spec peaks.Spec, channels int) (*Design, error) {
	rMin, rMax, err := spec.Window(channels)
	if err != nil {
		return nil, err
	}
	w := rMax - rMin
	basis := spec.Basis(rMin, rMax)
	data := make([]float64, 3*w)
	for i := 0; i < w; i++ {
		data[i] = 1
		data[w+i] = float64(rMin + i)
		data[2*w+i] = basis[i]
	}
	return &Design{RMin: rMin, RMax: rMax, matrix: mat.NewDense(3, w, data)}, nil
}

// Width returns the window length W.
func (d *Design) Width() int { return d.RMax - d.RMin }

// Solve fits the model to one signal window given its dark baseline.
// Both slices must have length W. The returned curve is the model evaluated
// at the solved coefficients, for diagnostics. Solve allocates its own
// scratch and is safe for concurrent use on a shared Design.
func (d *Design) Solve(signal, dark []float64) (Coefficients, []float64, error) {
	w := d.Width()
	if len(signal) != w || len(dark) != w {
		return Coefficients{}, nil, fmt.Errorf("window length %d/%d, want %d", len(signal), len(dark), w)
	}

	// Weighted design: each row scaled by 1/(signal+dark).
	weighted := mat.NewDense(3, w, nil)
	for i := 0; i < w; i++ {
		den := signal[i] + dark[i]
		if den <= 0 {
			return Coefficients{}, nil, fmt.Errorf("%w: signal+dark = %g at channel %d", ErrBadWeight, den, d.RMin+i)
		}
		wi := 1 / den
		for r := 0; r < 3; r++ {
			weighted.Set(r, i, d.matrix.At(r, i)*wi)
		}
	}

	var m mat.Dense
	m.Mul(weighted, d.matrix.T())
	var inv mat.Dense
	if err := inv.Inverse(&m); err != nil {
		return Coefficients{}, nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	y := mat.NewVecDense(w, signal)
	var wy, c mat.VecDense
	wy.MulVec(weighted, y)
	c.MulVec(&inv, &wy)

	var curve mat.VecDense
	curve.MulVec(d.matrix.T(), &c)

	coeffs := Coefficients{Offset: c.AtVec(0), Slope: c.AtVec(1), Amplitude: c.AtVec(2)}
	out := make([]float64, w)
	copy(out, curve.RawVector().Data)
	return coeffs, out, nil
}

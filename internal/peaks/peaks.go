package peaks

import (
	"fmt"
	"math"
	"strings"
)

// Shape identifies the peak model used as the third basis row of the fit.
type Shape int

const (
	ShapeGaussian Shape = iota
	ShapeDelta
)

// ParseShape maps a shape name to its Shape value. Unknown names are a
// configuration error and must be rejected before any fitting starts.
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gaussian", "gauss":
		return ShapeGaussian, nil
	case "delta":
		return ShapeDelta, nil
	default:
		return 0, fmt.Errorf("unknown peak shape %q (want gaussian or delta)", name)
	}
}

func (s Shape) String() string {
	switch s {
	case ShapeGaussian:
		return "gaussian"
	case ShapeDelta:
		return "delta"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// DefaultFitWidth is the half-width of the fit window in multiples of fwhm.
const DefaultFitWidth = 2.0

// Spec describes one peak to extract from every radial profile. Specs are
// built once at startup and immutable afterwards.
type Spec struct {
	Position float64
	FWHM     float64
	Shape    Shape
	FitWidth float64
}

// Validate checks the numeric fields. Position and FWHM are mandatory and a
// zero fit width falls back to the default.
func (p *Spec) Validate() error {
	if p.FWHM <= 0 {
		return fmt.Errorf("peak %s: fwhm must be positive, got %g", p.Key(), p.FWHM)
	}
	if p.Position < 0 || math.IsNaN(p.Position) {
		return fmt.Errorf("peak %s: invalid position %g", p.Key(), p.Position)
	}
	if p.FitWidth == 0 {
		p.FitWidth = DefaultFitWidth
	}
	if p.FitWidth < 0 {
		return fmt.Errorf("peak %s: fit width must be positive, got %g", p.Key(), p.FitWidth)
	}
	return nil
}

// Key returns the deterministic display key identifying this spec. It names
// the output datasets and drives the skip-if-present resume check.
func (p Spec) Key() string {
	return fmt.Sprintf("%s_p%g_w%g", p.Shape, p.Position, p.FWHM)
}

// Window computes the integer channel range [rMin, rMax) covered by the fit,
// fitWidth multiples of fwhm on each side of the peak position. channels is
// the valid extent of the radial axis.
func (p Spec) Window(channels int) (rMin, rMax int, err error) {
	half := p.FitWidth * p.FWHM
	rMin = int(math.Round(p.Position - half))
	rMax = int(math.Round(p.Position + half))
	if rMin < 0 || rMax > channels {
		return 0, 0, fmt.Errorf("peak %s: window [%d,%d) outside radial extent %d", p.Key(), rMin, rMax, channels)
	}
	if rMax-rMin < 3 {
		return 0, 0, fmt.Errorf("peak %s: window [%d,%d) too narrow for a 3-parameter fit", p.Key(), rMin, rMax)
	}
	return rMin, rMax, nil
}

// Basis evaluates the peak model on the integer channels [rMin, rMax).
func (p Spec) Basis(rMin, rMax int) []float64 {
	w := rMax - rMin
	out := make([]float64, w)
	switch p.Shape {
	case ShapeDelta:
		i := int(math.Round(p.Position)) - rMin
		if i >= 0 && i < w {
			out[i] = 1
		}
	default:
		// Unit-height gaussian with the requested fwhm.
		k := 4 * math.Ln2 / (p.FWHM * p.FWHM)
		for i := 0; i < w; i++ {
			d := float64(rMin+i) - p.Position
			out[i] = math.Exp(-k * d * d)
		}
	}
	return out
}

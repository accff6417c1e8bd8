package genopheno

import "fmt"

// Transform maps candidate vectors between genotype space, where the search
// distribution lives, and phenotype space, where objectives are evaluated.
// Implementations are value types; the zero value must behave as a usable
// default.
type Transform interface {
	Pheno(x []float64) []float64
	Geno(y []float64) []float64
}

// Identity leaves candidates untouched in both directions.
type Identity struct{}

func (Identity) Pheno(x []float64) []float64 {
	return append([]float64(nil), x...)
}

func (Identity) Geno(y []float64) []float64 {
	return append([]float64(nil), y...)
}

// Scaled applies a per-coordinate linear map y = Shift[i] + Scale[i]*x[i].
// Missing coordinates fall back to scale 1 and shift 0, so the zero value is
// the identity.
type Scaled struct {
	Scale []float64
	Shift []float64
}

// ScaledFromBounds builds a scaling that maps the unit box onto [min, max].
func ScaledFromBounds(min, max []float64) (Scaled, error) {
	if len(min) != len(max) {
		return Scaled{}, fmt.Errorf("scaling bounds length mismatch: min=%d max=%d", len(min), len(max))
	}
	scale := make([]float64, len(min))
	shift := make([]float64, len(min))
	for i := range min {
		if min[i] > max[i] {
			return Scaled{}, fmt.Errorf("scaling bounds inverted at coordinate %d: min=%g max=%g", i, min[i], max[i])
		}
		scale[i] = max[i] - min[i]
		shift[i] = min[i]
	}
	return Scaled{Scale: scale, Shift: shift}, nil
}

func (t Scaled) Pheno(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		scale, shift := t.coeff(i)
		out[i] = shift + scale*x[i]
	}
	return out
}

func (t Scaled) Geno(y []float64) []float64 {
	out := make([]float64, len(y))
	for i := range y {
		scale, shift := t.coeff(i)
		if scale == 0 {
			// Degenerate coordinate, every phenotype collapses to the shift.
			out[i] = 0
			continue
		}
		out[i] = (y[i] - shift) / scale
	}
	return out
}

func (t Scaled) coeff(i int) (float64, float64) {
	scale, shift := 1.0, 0.0
	if i < len(t.Scale) {
		scale = t.Scale[i]
	}
	if i < len(t.Shift) {
		shift = t.Shift[i]
	}
	return scale, shift
}

// Clamped projects candidates onto a box. Coordinates beyond the configured
// bounds pass through unchanged, so the zero value is the identity.
type Clamped struct {
	Min []float64
	Max []float64
}

// ClampedToBox builds a projection onto [min, max].
func ClampedToBox(min, max []float64) (Clamped, error) {
	if len(min) != len(max) {
		return Clamped{}, fmt.Errorf("clamp bounds length mismatch: min=%d max=%d", len(min), len(max))
	}
	for i := range min {
		if min[i] > max[i] {
			return Clamped{}, fmt.Errorf("clamp bounds inverted at coordinate %d: min=%g max=%g", i, min[i], max[i])
		}
	}
	return Clamped{
		Min: append([]float64(nil), min...),
		Max: append([]float64(nil), max...),
	}, nil
}

func (t Clamped) Pheno(x []float64) []float64 {
	return t.project(x)
}

// Geno projects as well: the clamp is not invertible, and a projected
// phenotype is already a feasible genotype.
func (t Clamped) Geno(y []float64) []float64 {
	return t.project(y)
}

func (t Clamped) project(x []float64) []float64 {
	out := append([]float64(nil), x...)
	for i := range out {
		if i < len(t.Min) && out[i] < t.Min[i] {
			out[i] = t.Min[i]
		}
		if i < len(t.Max) && out[i] > t.Max[i] {
			out[i] = t.Max[i]
		}
	}
	return out
}

// Public domain.

package correct

import (
	"fmt"
	"math"

	"github.com/jpssrocha/gaiaget/internal/table"
)

// FluxExcessCorrection returns the colour dependent term subtracted from
// phot_bp_rp_excess_factor (Riello et al. 2021), 0 for undefined colour.
func FluxExcessCorrection(bpRp float64) float64 {
	c := bpRp
	switch {
	case math.IsNaN(c):
		return 0
	case c < .5:
		return 1.154360 + .033772*c + .032277*c*c
	case c < 4:
		return 1.162004 + .011464*c + .049255*c*c - .005879*c*c*c
	}
	return 1.057572 + .140537*c
}

// CorrectFluxExcess returns the corrected flux excess factor for each
// source.  The result is zero for "normal" stars.
//
// Slices must be of equal length, else ErrShapeMismatch is returned and
// nothing is computed.  Applying the correction to an already corrected
// value subtracts the term again.
func CorrectFluxExcess(bpRp, excess []float64) ([]float64, error) {
	if len(bpRp) != len(excess) {
		return nil, fmt.Errorf("%w: bp_rp has %d values, excess factor %d",
			ErrShapeMismatch, len(bpRp), len(excess))
	}
	c := make([]float64, len(excess))
	for i, e := range excess {
		c[i] = e - FluxExcessCorrection(bpRp[i])
	}
	return c, nil
}

// FluxExcess overwrites phot_bp_rp_excess_factor with its corrected value.
func FluxExcess(t *table.Table) (*table.Table, error) {
	bpRp, err := t.Floats(ColBpRp)
	if err != nil {
		return nil, err
	}
	excess, err := t.Floats(ColExcess)
	if err != nil {
		return nil, err
	}
	c, err := CorrectFluxExcess(bpRp, excess)
	if err != nil {
		return nil, err
	}
	if err := t.SetFloats(ColExcess, c); err != nil {
		return nil, err
	}
	return t, nil
}

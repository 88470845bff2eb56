// Public domain.

package correct

import (
	"math"

	"github.com/jpssrocha/gaiaget/internal/table"
)

// Hot star template temperature threshold, K.
const hotTeff = 8500

// RVMask classifies sources for the radial velocity correction.
//
// noInfo marks sources missing rv_template_teff or grvs_mag.  outsideRange
// marks hot sources with grvs_mag outside the 6..12 range of the Blomme et
// al. (2022) calibration.  A source is corrected only if neither is set.
func RVMask(teff, grvsMag []float64) (noInfo, outsideRange []bool) {
	noInfo = make([]bool, len(teff))
	outsideRange = make([]bool, len(teff))
	for i, t := range teff {
		g := grvsMag[i]
		noInfo[i] = math.IsNaN(t) || math.IsNaN(g)
		outsideRange[i] = (g > 12 || g < 6) && t >= hotTeff
	}
	return
}

// CorrectRV corrects one radial velocity: Blomme et al. (2022) for hot
// stars, Katz et al. (2022) for cold stars fainter than grvs_mag 11.
func CorrectRV(teff, grvsMag, rv float64) float64 {
	g := grvsMag
	if teff >= hotTeff {
		return rv - 7.98 + 1.135*g
	}
	if g < 11 {
		return rv
	}
	return rv - (.02755*g*g - .55863*g + 2.81129)
}

// RVCorrection writes corrected_radial_velocity for valid sources and NaN
// for all others.
func RVCorrection(t *table.Table) (*table.Table, error) {
	teff, err := t.Floats(ColTeff)
	if err != nil {
		return nil, err
	}
	g, err := t.Floats(ColGrvsMag)
	if err != nil {
		return nil, err
	}
	rv, err := t.Floats(ColRV)
	if err != nil {
		return nil, err
	}
	out := make([]float64, t.Len())
	for i := range out {
		out[i] = math.NaN()
	}
	noInfo, outsideRange := RVMask(teff, g)
	for i := range out {
		if noInfo[i] || outsideRange[i] {
			continue
		}
		out[i] = CorrectRV(teff[i], g[i], rv[i])
	}
	if err := t.SetFloats(ColCorrectedRV, out); err != nil {
		return nil, err
	}
	return t, nil
}

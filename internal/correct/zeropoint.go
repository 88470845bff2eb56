// Public domain.

package correct

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/soniakeys/unit"

	"github.com/jpssrocha/gaiaget/internal/astro"
	"github.com/jpssrocha/gaiaget/internal/table"
	"github.com/jpssrocha/gaiaget/internal/zpt"
)

// ZeroPoint computes the parallax zero-point (Lindegren et al. 2021) into
// column zpt.
//
// Only rows with astrometric_params_solved > 3 are eligible; all rows are
// kept and ineligible rows get NaN.  A row whose attributes fall outside the
// provider's domain also gets NaN and is reported to OnRowError; the other
// rows are still corrected.
type ZeroPoint struct {
	// Provider computes zero-points.  If nil, the process-wide tables
	// loaded by zpt.Load are used.
	Provider zpt.Provider
	// OnRowError is called for each row outside the provider's domain.
	// If nil, such rows are counted and logged once per table.
	OnRowError func(row int, err error)
	Log        *log.Logger
}

// Apply implements Func.
func (z *ZeroPoint) Apply(t *table.Table) (*table.Table, error) {
	p := z.Provider
	if p == nil {
		var err error
		if p, err = zpt.Default(); err != nil {
			return nil, err
		}
	}
	solved, err := t.Floats(ColSolved)
	if err != nil {
		return nil, err
	}
	gMag, err := t.Floats(ColGMag)
	if err != nil {
		return nil, err
	}
	nuEff, err := t.Floats(ColNuEff)
	if err != nil {
		return nil, err
	}
	pseudo, err := t.Floats(ColPseudocolour)
	if err != nil {
		return nil, err
	}
	eclLat, err := eclLatitudes(t)
	if err != nil {
		return nil, err
	}

	out := make([]float64, t.Len())
	var outside int
	for r := range out {
		out[r] = math.NaN()
		// NaN fails the gate too
		if !(solved[r] > 3) {
			continue
		}
		v, err := p.Zpt(zpt.Source{
			GMag:         gMag[r],
			NuEff:        nuEff[r],
			Pseudocolour: pseudo[r],
			EclLat:       unit.AngleFromDeg(eclLat[r]),
			Solved:       int(solved[r]),
		})
		switch {
		case err == nil:
			out[r] = v
		case errors.Is(err, zpt.ErrOutOfDomain):
			outside++
			if z.OnRowError != nil {
				z.OnRowError(r, err)
			}
		default:
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
	}
	if outside > 0 && z.OnRowError == nil {
		logger(z.Log).Printf("zero point: %d of %d rows outside coefficient domain",
			outside, t.Len())
	}
	if err := t.SetFloats(ColZpt, out); err != nil {
		return nil, err
	}
	return t, nil
}

// ecl_lat in degrees, from the table or computed from ra and dec.
func eclLatitudes(t *table.Table) ([]float64, error) {
	if t.Has(ColEclLat) {
		return t.Floats(ColEclLat)
	}
	ra, err := t.Floats(ColRA)
	if err != nil {
		return nil, err
	}
	dec, err := t.Floats(ColDec)
	if err != nil {
		return nil, err
	}
	β := make([]float64, len(ra))
	for i := range ra {
		β[i] = astro.EclLatDeg(ra[i], dec[i])
	}
	return β, nil
}

func logger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}

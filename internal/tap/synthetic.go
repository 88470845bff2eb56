// Public domain.

package tap

import (
	"context"
	"errors"
	"math"

	"github.com/soniakeys/meeus/v3/angle"
	"github.com/soniakeys/unit"
	xrand "golang.org/x/exp/rand"

	"github.com/jpssrocha/gaiaget/internal/astro"
	"github.com/jpssrocha/gaiaget/internal/table"
)

// Synthetic is a Service generating plausible Gaia DR3 fields without a
// network connection.  Results are repeatable: the same Seed and Region
// always give the same table.
type Synthetic struct {
	N    int // sources per field
	Seed uint64
}

// Query generates s.N sources inside r.
func (s Synthetic) Query(ctx context.Context, r Region) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Size <= 0 {
		return nil, errors.New("synthetic: invalid field size")
	}
	rnd := xrand.New(&xrand.PCGSource{})
	rnd.Seed(s.Seed ^ math.Float64bits(r.Center.RA.Rad()) ^
		math.Float64bits(r.Center.Dec.Rad())<<1 ^ uint64(r.Geometry))

	ra, dec, err := s.positions(rnd, r)
	if err != nil {
		return nil, err
	}
	c := newColumns(s.N)
	for i := 0; i < s.N; i++ {
		c.source(i, rnd, ra[i], dec[i])
	}
	return c.table()
}

// positions draws points uniformly in ra and dec over the region's bounding
// box, keeping those inside the region.
func (s Synthetic) positions(rnd *xrand.Rand, r Region) (ra, dec []float64, err error) {
	ra0, dec0 := r.Center.RA.Deg(), r.Center.Dec.Deg()
	half := r.Size.Deg() / 2
	// ra half width grows toward the poles
	raHalf := math.Min(180, half/math.Max(math.Cos(r.Center.Dec.Rad()), 1e-3))
	for tries := 0; len(ra) < s.N; tries++ {
		if tries > 1000*s.N {
			return nil, nil, errors.New("synthetic: region too small to fill")
		}
		a := math.Mod(ra0+(2*rnd.Float64()-1)*raHalf+360, 360)
		d := dec0 + (2*rnd.Float64()-1)*half
		if d > 90 || d < -90 {
			continue
		}
		if r.Geometry == Cone {
			sep := angle.Sep(unit.AngleFromDeg(a), unit.AngleFromDeg(d),
				unit.AngleFromDeg(ra0), unit.AngleFromDeg(dec0))
			if sep.Deg() > half {
				continue
			}
		}
		ra = append(ra, a)
		dec = append(dec, d)
	}
	return ra, dec, nil
}

type columns struct {
	sourceID, solved                  []int64
	ra, dec, eclLat                   []float64
	gMag, bpRp, excess, nuEff, pseudo []float64
	teff, grvsMag, rv                 []float64
}

func newColumns(n int) *columns {
	f := func() []float64 { return make([]float64, n) }
	return &columns{
		sourceID: make([]int64, n), solved: make([]int64, n),
		ra: f(), dec: f(), eclLat: f(),
		gMag: f(), bpRp: f(), excess: f(), nuEff: f(), pseudo: f(),
		teff: f(), grvsMag: f(), rv: f(),
	}
}

func (c *columns) source(i int, rnd *xrand.Rand, ra, dec float64) {
	nan := math.NaN()
	c.sourceID[i] = int64(rnd.Uint64() >> 4)
	c.ra[i], c.dec[i] = ra, dec
	c.eclLat[i] = astro.EclLatDeg(ra, dec)
	c.gMag[i] = 6 + 15*math.Sqrt(rnd.Float64()) // more faint than bright

	// colour missing for about one source in ten
	c.bpRp[i] = nan
	if rnd.Float64() > .1 {
		c.bpRp[i] = -.3 + 4.8*rnd.Float64()
	}
	c.excess[i] = 1.2 + .05*rnd.NormFloat64()
	if !math.IsNaN(c.bpRp[i]) {
		c.excess[i] += .06 * c.bpRp[i]
	}

	c.nuEff[i], c.pseudo[i] = nan, nan
	switch p := rnd.Float64(); {
	case p < .15:
		c.solved[i] = 3
	case p < .65:
		c.solved[i] = 31
		c.nuEff[i] = 1.3 + .5*rnd.Float64()
	default:
		c.solved[i] = 95
		c.pseudo[i] = 1.3 + .4*rnd.Float64()
	}

	// radial velocities only for the brighter sources
	c.teff[i], c.grvsMag[i], c.rv[i] = nan, nan, nan
	if c.gMag[i] < 15 {
		c.teff[i] = 3500 + 9000*rnd.Float64()
		c.grvsMag[i] = c.gMag[i] - 1 + .5*rnd.Float64()
		c.rv[i] = 40 * rnd.NormFloat64()
	}
}

func (c *columns) table() (*table.Table, error) {
	t := table.New(len(c.ra))
	if err := t.SetInts("source_id", c.sourceID); err != nil {
		return nil, err
	}
	for _, col := range []struct {
		name string
		v    []float64
	}{
		{"ra", c.ra},
		{"dec", c.dec},
		{"ecl_lat", c.eclLat},
		{"phot_g_mean_mag", c.gMag},
		{"bp_rp", c.bpRp},
		{"phot_bp_rp_excess_factor", c.excess},
		{"nu_eff_used_in_astrometry", c.nuEff},
		{"pseudocolour", c.pseudo},
		{"rv_template_teff", c.teff},
		{"grvs_mag", c.grvsMag},
		{"radial_velocity", c.rv},
	} {
		if err := t.SetFloats(col.name, col.v); err != nil {
			return nil, err
		}
	}
	if err := t.SetInts("astrometric_params_solved", c.solved); err != nil {
		return nil, err
	}
	return t, nil
}

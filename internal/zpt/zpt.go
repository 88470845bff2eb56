// Public domain.

// Package zpt computes the Gaia DR3 parallax zero-point of Lindegren et al.
// (2021) from published coefficient tables.
//
// Coefficient tables are loaded once per process with Load or LoadFiles and
// then read concurrently through Default.  A Tables value can also be used
// directly as a Provider without touching the process-wide state.
package zpt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/soniakeys/unit"
)

var (
	// ErrUnavailable is returned when coefficients are used before loading.
	ErrUnavailable = errors.New("zero-point coefficients not loaded")
	// ErrOutOfDomain is returned for a source outside the calibrated range.
	ErrOutOfDomain = errors.New("source outside zero-point domain")
)

// Values of astrometric_params_solved for the solution types the
// coefficients cover.
const (
	Solved5p = 31
	Solved6p = 95
)

// Source holds the astrometric attributes a zero-point depends on.
type Source struct {
	GMag         float64 // phot_g_mean_mag
	NuEff        float64 // nu_eff_used_in_astrometry, 5p solutions
	Pseudocolour float64 // pseudocolour, 6p solutions
	EclLat       unit.Angle
	Solved       int // astrometric_params_solved
}

// Provider computes a zero-point in mas for one source.
type Provider interface {
	Zpt(s Source) (float64, error)
}

// Coefficients is one coefficient table, for either 5p or 6p solutions.
//
// Column m of Q applies to colour basis function J[m] and latitude basis
// function K[m].  Rows of Q correspond to G magnitude knots G, in
// increasing order.  Values are in µas.
type Coefficients struct {
	J, K []int
	G    []float64
	Q    [][]float64
}

// Tables holds the coefficient tables for both solution types.
type Tables struct {
	Five, Six *Coefficients
}

// ReadCoefficients parses a coefficient file in the gaiadr3_zeropoint layout.
//
// The first two lines list j and k indices, the first field of each being a
// label that is ignored.  Remaining lines are a G knot followed by one
// coefficient per (j, k) pair.  Blank lines are ignored.
func ReadCoefficients(r io.Reader) (*Coefficients, error) {
	var c Coefficients
	var line int
	for s := bufio.NewScanner(r); s.Scan(); {
		ls := strings.TrimSpace(s.Text())
		if ls == "" {
			continue
		}
		line++
		f := strings.Split(ls, ",")
		switch line {
		case 1, 2:
			ix, err := parseIndexes(f[1:])
			if err != nil {
				return nil, fmt.Errorf("ReadCoefficients: line %d: %v", line, err)
			}
			if line == 1 {
				c.J = ix
			} else {
				c.K = ix
			}
			continue
		}
		if len(f) != len(c.J)+1 {
			return nil, fmt.Errorf("ReadCoefficients: line %d: %d fields, want %d",
				line, len(f), len(c.J)+1)
		}
		row := make([]float64, len(f))
		for i, fs := range f {
			v, err := strconv.ParseFloat(strings.TrimSpace(fs), 64)
			if err != nil {
				return nil, fmt.Errorf("ReadCoefficients: line %d: %v", line, err)
			}
			row[i] = v
		}
		if n := len(c.G); n > 0 && row[0] <= c.G[n-1] {
			return nil, fmt.Errorf("ReadCoefficients: line %d: G knots not increasing", line)
		}
		c.G = append(c.G, row[0])
		c.Q = append(c.Q, row[1:])
	}
	switch {
	case len(c.J) != len(c.K):
		return nil, errors.New("ReadCoefficients: j and k index counts differ")
	case len(c.G) < 2:
		return nil, errors.New("ReadCoefficients: need at least two G knots")
	}
	for m := range c.J {
		if c.J[m] < 0 || c.J[m] > 4 || c.K[m] < 0 || c.K[m] > 2 {
			return nil, fmt.Errorf("ReadCoefficients: basis index (%d, %d) out of range",
				c.J[m], c.K[m])
		}
	}
	return &c, nil
}

func parseIndexes(f []string) ([]int, error) {
	ix := make([]int, len(f))
	for i, s := range f {
		// indexes may be written as floats, "0.0"
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		ix[i] = int(v)
	}
	return ix, nil
}

// Zpt computes the zero-point of s in mas.
func (t *Tables) Zpt(s Source) (float64, error) {
	if math.IsNaN(s.GMag) || s.GMag <= 6 || s.GMag >= 21 {
		return math.NaN(), fmt.Errorf("%w: G = %g, valid range 6 < G < 21",
			ErrOutOfDomain, s.GMag)
	}
	if math.IsNaN(s.EclLat.Rad()) {
		return math.NaN(), fmt.Errorf("%w: undefined ecliptic latitude", ErrOutOfDomain)
	}
	var c *Coefficients
	var nu float64
	switch s.Solved {
	case Solved5p:
		c, nu = t.Five, s.NuEff
		if math.IsNaN(nu) || nu <= 1.1 || nu >= 1.9 {
			return math.NaN(), fmt.Errorf("%w: nu_eff = %g, valid range 1.1 < nu_eff < 1.9",
				ErrOutOfDomain, nu)
		}
	case Solved6p:
		c, nu = t.Six, s.Pseudocolour
		if math.IsNaN(nu) || nu <= 1.24 || nu >= 1.72 {
			return math.NaN(), fmt.Errorf("%w: pseudocolour = %g, valid range 1.24 < pseudocolour < 1.72",
				ErrOutOfDomain, nu)
		}
	default:
		return math.NaN(), fmt.Errorf("%w: astrometric_params_solved = %d",
			ErrOutOfDomain, s.Solved)
	}
	if c == nil {
		return math.NaN(), ErrUnavailable
	}
	return c.zpt(s.GMag, nu, math.Sin(s.EclLat.Rad())), nil
}

// colour and latitude basis functions, then coefficients interpolated in G.
func (c *Coefficients) zpt(g, nu, sinBeta float64) float64 {
	cb := [5]float64{
		1,
		math.Max(-.24, math.Min(.24, nu-1.48)),
		math.Pow(math.Min(.24, math.Max(0, 1.48-nu)), 3),
		math.Min(0, nu-1.24),
		math.Max(0, nu-1.72),
	}
	bb := [3]float64{1, sinBeta, sinBeta*sinBeta - 1./3}

	// left knot of the bracketing interval, held to an interior interval
	ig := 0
	for ig < len(c.G)-2 && g >= c.G[ig+1] {
		ig++
	}
	h := (g - c.G[ig]) / (c.G[ig+1] - c.G[ig])
	h = math.Max(0, math.Min(1, h))

	var z float64
	q0, q1 := c.Q[ig], c.Q[ig+1]
	for m := range c.J {
		z += ((1-h)*q0[m] + h*q1[m]) * cb[c.J[m]] * bb[c.K[m]]
	}
	return z / 1000
}

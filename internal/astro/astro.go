// Public domain.

// Package astro, coordinate helpers for catalog positions.
package astro

import (
	"math"

	"github.com/soniakeys/unit"
)

// ObliquityJ2000 is the obliquity of the ecliptic at J2000, IAU 1976 value
// 23° 26′ 21.448″.
var ObliquityJ2000 = unit.AngleFromDeg(23.4392911)

var sε, cε = math.Sincos(ObliquityJ2000.Rad())

// EclLat computes ecliptic latitude from equatorial coordinates referred to
// the J2000 equinox.
func EclLat(ra unit.RA, dec unit.Angle) unit.Angle {
	sα := math.Sin(ra.Rad())
	sδ, cδ := math.Sincos(dec.Rad())
	sβ := sδ*cε - cδ*sε*sα
	// clamp against rounding just outside [-1, 1]
	return unit.Angle(math.Asin(math.Max(-1, math.Min(1, sβ))))
}

// EclLatDeg is EclLat for angles in degrees, as catalog columns hold them.
func EclLatDeg(ra, dec float64) float64 {
	return EclLat(unit.RAFromDeg(ra), unit.AngleFromDeg(dec)).Deg()
}

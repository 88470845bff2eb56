// Public domain.

package tap

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
)

// Geometry is the shape of a queried sky region.
type Geometry int

const (
	// Cone is a circle of diameter Region.Size.
	Cone Geometry = iota
	// Square is a box of side Region.Size.
	Square
)

func (g Geometry) String() string {
	switch g {
	case Cone:
		return "cone"
	case Square:
		return "square"
	}
	return "Geometry(" + strconv.Itoa(int(g)) + ")"
}

// ParseGeometry parses "cone" or "square", ignoring case.
func ParseGeometry(s string) (Geometry, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cone":
		return Cone, nil
	case "square":
		return Square, nil
	}
	return 0, fmt.Errorf("unknown geometry %q, want cone or square", s)
}

// Region is a sky field centered on Center.
type Region struct {
	Center   coord.Equa
	Size     unit.Angle
	Geometry Geometry
}

// ADQL returns the query selecting all sources of table in r, nearest to
// the center first.  A positive limit caps the number of rows.
func (r Region) ADQL(table string, limit int) (string, error) {
	if r.Size <= 0 {
		return "", fmt.Errorf("invalid field size %g°", r.Size.Deg())
	}
	ra := deg(r.Center.RA.Deg())
	dec := deg(r.Center.Dec.Deg())
	var shape string
	switch r.Geometry {
	case Cone:
		shape = fmt.Sprintf("CIRCLE('ICRS', %s, %s, %s)", ra, dec, deg(r.Size.Deg()/2))
	case Square:
		s := deg(r.Size.Deg())
		shape = fmt.Sprintf("BOX('ICRS', %s, %s, %s, %s)", ra, dec, s, s)
	default:
		return "", fmt.Errorf("invalid geometry %s", r.Geometry)
	}
	top := ""
	if limit > 0 {
		top = "TOP " + strconv.Itoa(limit) + " "
	}
	return fmt.Sprintf("SELECT %s*, DISTANCE(POINT('ICRS', ra, dec), POINT('ICRS', %s, %s)) AS dist "+
		"FROM %s WHERE 1 = CONTAINS(POINT('ICRS', ra, dec), %s) ORDER BY dist ASC",
		top, ra, dec, table, shape), nil
}

// degrees to 1e-10, dropping radian round trip noise
func deg(d float64) string {
	return strconv.FormatFloat(math.Round(d*1e10)/1e10, 'f', -1, 64)
}

// Public domain.

package tap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/soniakeys/unit"
)

// ParseAngle parses an angle in degrees, or with a unit suffix: "d" or "°"
// for degrees, "m" or "′" for arc minutes, "s" or "″" for arc seconds.
// "1.5", "1.5d", "90m" and "5400s" are the same angle.
func ParseAngle(s string) (unit.Angle, error) {
	ts := strings.TrimSpace(s)
	from := unit.AngleFromDeg
	for _, u := range []struct {
		suffix string
		from   func(float64) unit.Angle
	}{
		{"d", unit.AngleFromDeg},
		{"°", unit.AngleFromDeg},
		{"m", unit.AngleFromMin},
		{"′", unit.AngleFromMin},
		{"s", unit.AngleFromSec},
		{"″", unit.AngleFromSec},
	} {
		if strings.HasSuffix(ts, u.suffix) {
			ts, from = strings.TrimSuffix(ts, u.suffix), u.from
			break
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(ts), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid angle %q", s)
	}
	return from(v), nil
}

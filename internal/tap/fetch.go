// Public domain.

package tap

import (
	"context"
	"log"

	sexa "github.com/soniakeys/sexagesimal"
	"golang.org/x/sync/errgroup"

	"github.com/jpssrocha/gaiaget/internal/table"
)

// Fetch logs the request and queries svc for region r.
// Errors from svc are returned unchanged.
func Fetch(ctx context.Context, svc Service, r Region, l *log.Logger) (*table.Table, error) {
	if l == nil {
		l = log.Default()
	}
	l.Printf("Downloading data - %s - Field size = %g° - RA = %.1s - DEC = %.1s",
		r.Geometry, r.Size.Deg(), sexa.FmtRA(r.Center.RA), sexa.FmtAngle(r.Center.Dec))
	return svc.Query(ctx, r)
}

// FetchAll fetches regions concurrently.  Tables are returned in the order
// of regions.  The first error cancels the remaining queries and is
// returned.
func FetchAll(ctx context.Context, svc Service, regions []Region, l *log.Logger) ([]*table.Table, error) {
	g, ctx := errgroup.WithContext(ctx)
	out := make([]*table.Table, len(regions))
	for i, r := range regions {
		i, r := i, r
		g.Go(func() error {
			t, err := Fetch(ctx, svc, r, l)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

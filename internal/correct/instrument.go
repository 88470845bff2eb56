// Public domain.

package correct

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jpssrocha/gaiaget/internal/table"
)

// Instrument wraps s so that each call logs the stage name, elapsed time in
// minutes, and the shape of the input table.
//
// The record is written whether or not s fails.  Results and errors of s
// are returned unchanged.  A nil table is not passed to s; the wrapped
// stage logs and returns ErrNilTable.
func Instrument(s Stage, l *log.Logger, runID uuid.UUID) Stage {
	l = logger(l)
	apply := s.Apply
	return Stage{
		Name: s.Name,
		Apply: func(t *table.Table) (*table.Table, error) {
			if t == nil {
				l.Printf("run %s | Applied: %s | Failed: %v", runID, s.Name, ErrNilTable)
				return nil, ErrNilTable
			}
			rows, cols := t.Shape()
			start := time.Now()
			out, err := apply(t)
			took := time.Since(start).Minutes()
			if err != nil {
				l.Printf("run %s | Applied: %s | Took: %.2f mins | Shape: (%d, %d) | Failed: %v",
					runID, s.Name, took, rows, cols, err)
			} else {
				l.Printf("run %s | Applied: %s | Took: %.2f mins | Shape: (%d, %d)",
					runID, s.Name, took, rows, cols)
			}
			return out, err
		},
	}
}

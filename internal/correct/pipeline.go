// Public domain.

package correct

import (
	"log"

	"github.com/google/uuid"

	"github.com/jpssrocha/gaiaget/internal/table"
	"github.com/jpssrocha/gaiaget/internal/zpt"
)

// Stage names, in pipeline order.
const (
	StageZeroPoint  = "zero_point"
	StageFluxExcess = "flux_excess"
	StageRV         = "rv_correction"
	StageProcess    = "process"
)

// Pipeline applies the zero-point, flux excess, and radial velocity
// corrections in that order.  A Pipeline represents one run; its RunID tags
// every log record it writes.
type Pipeline struct {
	RunID  uuid.UUID
	log    *log.Logger
	stages []Stage
}

// New assembles a pipeline.
//
// Provider p may be nil to use the process-wide zero-point tables.  Rows
// outside the zero-point domain are reported to onRowError if it is not nil.
// Logger l may be nil for the standard logger.
func New(p zpt.Provider, onRowError func(row int, err error), l *log.Logger) *Pipeline {
	pl := &Pipeline{RunID: uuid.New(), log: logger(l)}
	zp := &ZeroPoint{Provider: p, OnRowError: onRowError, Log: pl.log}
	for _, s := range []Stage{
		{StageZeroPoint, zp.Apply},
		{StageFluxExcess, FluxExcess},
		{StageRV, RVCorrection},
	} {
		pl.stages = append(pl.stages, Instrument(s, pl.log, pl.RunID))
	}
	return pl
}

// Stages returns stage names in the order they are applied.
func (p *Pipeline) Stages() []string {
	n := make([]string, len(p.stages))
	for i, s := range p.stages {
		n[i] = s.Name
	}
	return n
}

// Process returns a corrected copy of t.  The table passed in is not
// modified.
//
// Stages run in order, each receiving the previous stage's output.  The
// first failing stage stops the run; Process then returns nil and a
// *StageError.
func (p *Pipeline) Process(t *table.Table) (*table.Table, error) {
	return Instrument(Stage{StageProcess, p.process}, p.log, p.RunID).Apply(t)
}

func (p *Pipeline) process(t *table.Table) (*table.Table, error) {
	t = t.Clone()
	for _, s := range p.stages {
		var err error
		if t, err = s.Apply(t); err != nil {
			return nil, &StageError{Stage: s.Name, Err: err}
		}
	}
	return t, nil
}

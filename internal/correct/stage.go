// Public domain.

// Package correct implements the corrections applied to Gaia DR3 catalog
// tables: parallax zero-point, BP-RP flux excess factor, and radial velocity.
//
// Each correction is a stage taking a table and returning it with its output
// column written.  Rows are never added or removed.  Rows a stage does not
// apply to hold NaN in the stage's output column, with the exception of the
// flux excess stage which corrects its input column in place and leaves rows
// of undefined colour unchanged.
package correct

import (
	"errors"

	"github.com/jpssrocha/gaiaget/internal/table"
	"github.com/jpssrocha/gaiaget/internal/zpt"
)

// Column names read or written by the stages.
const (
	ColRA           = "ra"
	ColDec          = "dec"
	ColBpRp         = "bp_rp"
	ColExcess       = "phot_bp_rp_excess_factor"
	ColSolved       = "astrometric_params_solved"
	ColGMag         = "phot_g_mean_mag"
	ColNuEff        = "nu_eff_used_in_astrometry"
	ColPseudocolour = "pseudocolour"
	ColEclLat       = "ecl_lat"
	ColTeff         = "rv_template_teff"
	ColGrvsMag      = "grvs_mag"
	ColRV           = "radial_velocity"

	ColZpt         = "zpt"
	ColCorrectedRV = "corrected_radial_velocity"
)

// Error conditions surfaced by the stages.
var (
	ErrShapeMismatch       = table.ErrShapeMismatch
	ErrMissingColumn       = table.ErrMissingColumn
	ErrProviderUnavailable = zpt.ErrUnavailable
	ErrOutOfDomain         = zpt.ErrOutOfDomain
	ErrNilTable            = errors.New("nil table")
)

// Func is the shape of a correction: a table in, the same rows out.
type Func func(t *table.Table) (*table.Table, error)

// Stage is a named Func.
type Stage struct {
	Name  string
	Apply Func
}

// StageError identifies the stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return "stage " + e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

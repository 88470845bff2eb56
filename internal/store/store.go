// Public domain.

// Package store writes corrected tables to Postgres.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jpssrocha/gaiaget/internal/table"
)

// Table is the Postgres table receiving corrected sources.
const Table = "gaia_corrected"

const createTable = `CREATE TABLE IF NOT EXISTS gaia_corrected (
    run_id uuid NOT NULL,
    source_id bigint,
    ra double precision,
    dec double precision,
    zpt double precision,
    phot_bp_rp_excess_factor double precision,
    corrected_radial_velocity double precision,
    stored_at timestamptz NOT NULL DEFAULT NOW()
)`

// Columns copied from a corrected table, after run_id.
var Columns = []string{
	"source_id",
	"ra",
	"dec",
	"zpt",
	"phot_bp_rp_excess_factor",
	"corrected_radial_velocity",
}

// Conn is the subset of *pgxpool.Pool used by Save.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Rows converts t to copy rows, one per source, each starting with runID.
// Undefined values and columns absent from t become NULL.
func Rows(runID uuid.UUID, t *table.Table) ([][]any, error) {
	rows := make([][]any, t.Len())
	for r := range rows {
		row := make([]any, 0, len(Columns)+1)
		row = append(row, runID)
		for _, name := range Columns {
			if !t.Has(name) {
				row = append(row, nil)
				continue
			}
			v, err := t.Value(name, r)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		rows[r] = row
	}
	return rows, nil
}

// Save creates the target table if needed and copies t into it.
// It returns the number of rows written.
func Save(ctx context.Context, conn Conn, runID uuid.UUID, t *table.Table) (int64, error) {
	rows, err := Rows(runID, t)
	if err != nil {
		return 0, err
	}
	if _, err := conn.Exec(ctx, createTable); err != nil {
		return 0, fmt.Errorf("create %s: %w", Table, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := conn.CopyFrom(ctx, pgx.Identifier{Table},
		append([]string{"run_id"}, Columns...), pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", Table, err)
	}
	return n, nil
}

// Public domain.

// Package table implements the record table that flows from the catalog
// fetcher through the correction stages.
//
// A Table has a fixed number of rows and an ordered set of named, nullable
// Arrow columns.  Float columns present undefined values as NaN.  Stages
// may add columns or replace column contents but the row count never
// changes.
package table

import (
	"errors"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrMissingColumn = errors.New("missing column")
	ErrColumnKind    = errors.New("wrong column kind")
)

// Pool is the allocator for column storage.  Tables leave released memory
// to the garbage collector and don't release replaced columns.
var Pool memory.Allocator = memory.NewGoAllocator()

// Kind identifies the storage type of a column.
type Kind int

const (
	Float Kind = iota
	Int
	String
	// Null is a column with no defined values, as read from an all-empty
	// CSV column.  It reads as NaN floats or empty strings and combines
	// with any kind in Concat.
	Null
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Int:
		return "int"
	case String:
		return "string"
	case Null:
		return "null"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) dataType() arrow.DataType {
	switch k {
	case Float:
		return arrow.PrimitiveTypes.Float64
	case Int:
		return arrow.PrimitiveTypes.Int64
	case String:
		return arrow.BinaryTypes.String
	}
	return arrow.Null
}

func kindOf(a arrow.Array) Kind {
	switch a.DataType().ID() {
	case arrow.FLOAT64:
		return Float
	case arrow.INT64:
		return Int
	case arrow.STRING:
		return String
	}
	return Null
}

// Table is an ordered set of equal length named columns.  Columns are
// immutable Arrow arrays; Set methods replace a whole column.
type Table struct {
	n      int
	fields []arrow.Field
	cols   map[string]arrow.Array
}

// New allocates a table of n rows and no columns.
func New(n int) *Table {
	return &Table{n: n, cols: make(map[string]arrow.Array)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.n }

// Names returns column names in column order.
func (t *Table) Names() []string {
	n := make([]string, len(t.fields))
	for i, f := range t.fields {
		n[i] = f.Name
	}
	return n
}

// Shape returns row and column counts.
func (t *Table) Shape() (rows, cols int) { return t.n, len(t.fields) }

// Has reports whether column name exists.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Schema returns the Arrow schema of t.  All fields are nullable.
func (t *Table) Schema() *arrow.Schema {
	return arrow.NewSchema(append([]arrow.Field(nil), t.fields...), nil)
}

// Kind returns the kind of column name.
func (t *Table) Kind(name string) (Kind, error) {
	c, ok := t.cols[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return kindOf(c), nil
}

func (t *Table) get(name string) (arrow.Array, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return c, nil
}

// Floats returns the values of a numeric column as a new float64 slice.
// Null values are NaN.
func (t *Table) Floats(name string) ([]float64, error) {
	c, err := t.get(name)
	if err != nil {
		return nil, err
	}
	f := make([]float64, c.Len())
	switch a := c.(type) {
	case *array.Float64:
		copy(f, a.Float64Values())
	case *array.Int64:
		for i, v := range a.Int64Values() {
			f[i] = float64(v)
		}
	case *array.Null:
		for i := range f {
			f[i] = math.NaN()
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %s is %s, not numeric", ErrColumnKind, name, kindOf(c))
	}
	for i := range f {
		if c.IsNull(i) {
			f[i] = math.NaN()
		}
	}
	return f, nil
}

// Ints returns the values of an int column.  Null values are 0.
func (t *Table) Ints(name string) ([]int64, error) {
	c, err := t.get(name)
	if err != nil {
		return nil, err
	}
	a, ok := c.(*array.Int64)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, not int", ErrColumnKind, name, kindOf(c))
	}
	iv := make([]int64, a.Len())
	for i := range iv {
		if a.IsValid(i) {
			iv[i] = a.Value(i)
		}
	}
	return iv, nil
}

// Strings returns the values of a string column.  Null values are empty.
func (t *Table) Strings(name string) ([]string, error) {
	c, err := t.get(name)
	if err != nil {
		return nil, err
	}
	s := make([]string, c.Len())
	switch a := c.(type) {
	case *array.String:
		for i := range s {
			if a.IsValid(i) {
				s[i] = a.Value(i)
			}
		}
	case *array.Null:
	default:
		return nil, fmt.Errorf("%w: %s is %s, not string", ErrColumnKind, name, kindOf(c))
	}
	return s, nil
}

// Value returns the value at row r of column name as float64, int64 or
// string.  Null values, NaN included, are returned as nil.
func (t *Table) Value(name string, r int) (interface{}, error) {
	c, err := t.get(name)
	if err != nil {
		return nil, err
	}
	if r < 0 || r >= c.Len() {
		return nil, fmt.Errorf("%w: row %d of %d", ErrShapeMismatch, r, c.Len())
	}
	if kindOf(c) == Null || c.IsNull(r) {
		return nil, nil
	}
	switch a := c.(type) {
	case *array.Float64:
		return a.Value(r), nil
	case *array.Int64:
		return a.Value(r), nil
	case *array.String:
		return a.Value(r), nil
	}
	return nil, nil
}

// Set stores a as column name, replacing any existing column of that name
// in place.
func (t *Table) Set(name string, a arrow.Array) error {
	if a.Len() != t.n {
		return fmt.Errorf("%w: column %s has %d rows, table has %d",
			ErrShapeMismatch, name, a.Len(), t.n)
	}
	f := arrow.Field{Name: name, Type: a.DataType(), Nullable: true}
	if _, ok := t.cols[name]; ok {
		for i := range t.fields {
			if t.fields[i].Name == name {
				t.fields[i] = f
			}
		}
	} else {
		t.fields = append(t.fields, f)
	}
	t.cols[name] = a
	return nil
}

// SetFloats stores vals as float column name.  NaN values are stored as
// null.
func (t *Table) SetFloats(name string, vals []float64) error {
	if len(vals) != t.n {
		return fmt.Errorf("%w: column %s has %d rows, table has %d",
			ErrShapeMismatch, name, len(vals), t.n)
	}
	return t.Set(name, floatArray(vals))
}

// SetInts stores vals as int column name.
func (t *Table) SetInts(name string, vals []int64) error {
	if len(vals) != t.n {
		return fmt.Errorf("%w: column %s has %d rows, table has %d",
			ErrShapeMismatch, name, len(vals), t.n)
	}
	b := array.NewInt64Builder(Pool)
	defer b.Release()
	b.AppendValues(vals, nil)
	return t.Set(name, b.NewArray())
}

// SetStrings stores vals as string column name.
func (t *Table) SetStrings(name string, vals []string) error {
	if len(vals) != t.n {
		return fmt.Errorf("%w: column %s has %d rows, table has %d",
			ErrShapeMismatch, name, len(vals), t.n)
	}
	b := array.NewStringBuilder(Pool)
	defer b.Release()
	b.AppendValues(vals, nil)
	return t.Set(name, b.NewArray())
}

func floatArray(vals []float64) arrow.Array {
	b := array.NewFloat64Builder(Pool)
	defer b.Release()
	b.Reserve(len(vals))
	for _, v := range vals {
		if math.IsNaN(v) {
			b.AppendNull()
		} else {
			b.Append(v)
		}
	}
	return b.NewArray()
}

// Clone returns a copy of t.  Column arrays are immutable and shared.
func (t *Table) Clone() *Table {
	c := &Table{
		n:      t.n,
		fields: append([]arrow.Field(nil), t.fields...),
		cols:   make(map[string]arrow.Array, len(t.cols)),
	}
	for k, v := range t.cols {
		c.cols[k] = v
	}
	return c
}

// Record returns t as an Arrow record.  The caller must release it.
func (t *Table) Record() arrow.Record {
	cols := make([]arrow.Array, len(t.fields))
	for i, f := range t.fields {
		cols[i] = t.cols[f.Name]
	}
	return array.NewRecord(t.Schema(), cols, int64(t.n))
}

// Concat returns a new table holding the rows of ts in order.  All tables
// must have the same column names; the result uses the column order of the
// first.
//
// Int and float columns of the same name combine as float.  Null columns,
// and columns of tables with no rows, combine with any kind.
func Concat(ts ...*Table) (*Table, error) {
	if len(ts) == 0 {
		return New(0), nil
	}
	first := ts[0]
	n := 0
	for _, t := range ts {
		if len(t.fields) != len(first.fields) {
			return nil, fmt.Errorf("%w: %d columns, want %d",
				ErrShapeMismatch, len(t.fields), len(first.fields))
		}
		for _, f := range first.fields {
			if !t.Has(f.Name) {
				return nil, fmt.Errorf("%w: %s", ErrMissingColumn, f.Name)
			}
		}
		n += t.n
	}
	out := New(n)
	for _, f := range first.fields {
		kind, err := concatKind(f.Name, ts)
		if err != nil {
			return nil, err
		}
		parts := make([]arrow.Array, 0, len(ts))
		for _, t := range ts {
			p, err := t.as(f.Name, kind)
			if err != nil {
				return nil, err
			}
			defer p.Release()
			parts = append(parts, p)
		}
		c, err := array.Concatenate(parts, Pool)
		if err != nil {
			return nil, fmt.Errorf("concat %s: %w", f.Name, err)
		}
		if err := out.Set(f.Name, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func concatKind(name string, ts []*Table) (Kind, error) {
	kind := Null
	for _, t := range ts {
		if t.n == 0 {
			continue
		}
		k := kindOf(t.cols[name])
		switch {
		case k == Null || k == kind:
		case kind == Null:
			kind = k
		case k != String && kind != String:
			kind = Float
		default:
			return 0, fmt.Errorf("%w: %s is both %s and %s", ErrColumnKind, name, kind, k)
		}
	}
	return kind, nil
}

// as returns column name converted to kind k.  The caller must release the
// result.
func (t *Table) as(name string, k Kind) (arrow.Array, error) {
	c := t.cols[name]
	switch {
	case kindOf(c) == k:
		c.Retain()
		return c, nil
	case t.n == 0 || kindOf(c) == Null:
		return nullArray(k, t.n), nil
	case k == Float:
		f, err := t.Floats(name)
		if err != nil {
			return nil, err
		}
		return floatArray(f), nil
	}
	return nil, fmt.Errorf("%w: %s is %s, not %s", ErrColumnKind, name, kindOf(c), k)
}

func nullArray(k Kind, n int) arrow.Array {
	if k == Null {
		return array.NewNull(n)
	}
	b := array.NewBuilder(Pool, k.dataType())
	defer b.Release()
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
	return b.NewArray()
}

// Public domain.

package table

import (
	"bufio"
	encsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
)

// ReadCSV reads a table from comma separated values with a header line.
// Empty fields are null.
//
// Fields are read as nullable strings and each column is then typed from
// its non-null values: all integers is an int column, all numbers a float
// column, anything else a string column.  A column with no values at all
// is a Null column, which Concat combines with any kind.
func ReadCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	header, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	fields := make([]arrow.Field, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if seen[h] {
			return nil, fmt.Errorf("ReadCSV: duplicate column %s", h)
		}
		seen[h] = true
		fields[i] = arrow.Field{Name: h, Type: arrow.BinaryTypes.String, Nullable: true}
	}

	cr := csv.NewReader(br, arrow.NewSchema(fields, nil),
		csv.WithChunk(-1),
		csv.WithNullReader(true, ""),
		csv.WithAllocator(Pool))
	defer cr.Release()
	raw := make([][]string, len(header))
	valid := make([][]bool, len(header))
	for cr.Next() {
		rec := cr.Record()
		for i := range header {
			col := rec.Column(i).(*array.String)
			for r := 0; r < col.Len(); r++ {
				ok := col.IsValid(r)
				v := ""
				if ok {
					v = strings.TrimSpace(col.Value(r))
					ok = v != ""
				}
				raw[i] = append(raw[i], v)
				valid[i] = append(valid[i], ok)
			}
		}
	}
	if err := cr.Err(); err != nil {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}

	n := 0
	if len(raw) > 0 {
		n = len(raw[0])
	}
	t := New(n)
	for i, name := range header {
		if err := t.Set(name, inferColumn(raw[i], valid[i])); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func readHeader(br *bufio.Reader) ([]string, error) {
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}
	line = strings.TrimPrefix(strings.TrimRight(line, "\r\n"), "\ufeff")
	if strings.TrimSpace(line) == "" {
		return nil, errors.New("ReadCSV: missing header")
	}
	header, err := encsv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}
	return header, nil
}

// inferColumn builds the narrowest column holding vals.  Entries not valid
// are null and don't take part in the choice.
func inferColumn(vals []string, valid []bool) arrow.Array {
	isInt, isFloat, defined := true, true, false
	for i, v := range vals {
		if !valid[i] {
			continue
		}
		defined = true
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if !isInt {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
				break
			}
		}
	}
	switch {
	case !defined:
		return array.NewNull(len(vals))
	case isInt:
		b := array.NewInt64Builder(Pool)
		defer b.Release()
		for i, v := range vals {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			x, _ := strconv.ParseInt(v, 10, 64)
			b.Append(x)
		}
		return b.NewArray()
	case isFloat:
		b := array.NewFloat64Builder(Pool)
		defer b.Release()
		for i, v := range vals {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			x, _ := strconv.ParseFloat(v, 64)
			b.Append(x)
		}
		return b.NewArray()
	}
	b := array.NewStringBuilder(Pool)
	defer b.Release()
	b.AppendValues(vals, valid)
	return b.NewArray()
}

// WriteCSV writes t as comma separated values with a header line.
// Null values are written as empty fields.
func (t *Table) WriteCSV(w io.Writer) error {
	out := t
	for _, f := range t.fields {
		if kindOf(t.cols[f.Name]) == Null {
			if out == t {
				out = t.Clone()
			}
			// the csv writer has no null type; write as an all-null string
			if err := out.Set(f.Name, nullArray(String, t.n)); err != nil {
				return err
			}
		}
	}
	rec := out.Record()
	defer rec.Release()
	cw := csv.NewWriter(w, rec.Schema(),
		csv.WithHeader(true),
		csv.WithNullWriter(""))
	if err := cw.Write(rec); err != nil {
		return err
	}
	if err := cw.Flush(); err != nil {
		return err
	}
	return cw.Error()
}

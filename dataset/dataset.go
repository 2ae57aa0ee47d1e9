// Package dataset holds the in-memory tabular model passed between pipeline phases.
//
// A Dataset is an ordered list of rows sharing a named column list. Every
// transform in this package returns a new Dataset and leaves its receiver
// untouched; rows are copied shallowly, so values must be treated as immutable.
package dataset

import (
	"fmt"
)

// Row maps column name to value.
type Row map[string]interface{}

// Copy returns a shallow copy of the row.
func (r Row) Copy() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Values returns the row values in cols order; absent columns yield nil.
func (r Row) Values(cols []string) []interface{} {
	vals := make([]interface{}, len(cols))
	for i, c := range cols {
		vals[i] = r[c]
	}
	return vals
}

// Dataset is an ordered sequence of rows with a shared schema.
type Dataset struct {
	name    string
	columns []string
	index   map[string]int
	rows    []Row
}

// New creates a dataset named name with the given columns. Rows are copied.
func New(name string, columns []string, rows ...Row) *Dataset {
	ds := &Dataset{
		name:    name,
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		rows:    make([]Row, 0, len(rows)),
	}
	for i, c := range ds.columns {
		ds.index[c] = i
	}
	for _, r := range rows {
		ds.rows = append(ds.rows, r.Copy())
	}
	return ds
}

// FromRecords builds a dataset from positional records aligned with columns.
func FromRecords(name string, columns []string, records [][]interface{}) (*Dataset, error) {
	ds := New(name, columns)
	for i, rec := range records {
		if len(rec) != len(columns) {
			return nil, fmt.Errorf("dataset %s: record %d has %d values, want %d", name, i, len(rec), len(columns))
		}
		row := make(Row, len(columns))
		for j, c := range columns {
			row[c] = rec[j]
		}
		ds.rows = append(ds.rows, row)
	}
	return ds, nil
}

func (ds *Dataset) Name() string {
	return ds.name
}

// Len returns the row count.
func (ds *Dataset) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.rows)
}

// Columns returns a copy of the column list.
func (ds *Dataset) Columns() []string {
	return append([]string(nil), ds.columns...)
}

func (ds *Dataset) HasColumn(col string) bool {
	_, ok := ds.index[col]
	return ok
}

// Require returns a *SchemaError for the first column in cols missing from ds.
func (ds *Dataset) Require(cols ...string) error {
	for _, c := range cols {
		if !ds.HasColumn(c) {
			return &SchemaError{Dataset: ds.name, Column: c, Available: ds.Columns()}
		}
	}
	return nil
}

// Row returns the i-th row. The returned row must not be modified.
func (ds *Dataset) Row(i int) Row {
	return ds.rows[i]
}

// Rows returns copies of all rows.
func (ds *Dataset) Rows() []Row {
	out := make([]Row, len(ds.rows))
	for i, r := range ds.rows {
		out[i] = r.Copy()
	}
	return out
}

// Each calls fn for every row in order until fn returns false.
func (ds *Dataset) Each(fn func(i int, r Row) bool) {
	for i, r := range ds.rows {
		if !fn(i, r) {
			return
		}
	}
}

// Append adds a copy of rows to ds. It is meant for building a dataset,
// not for transforming one that other code already holds.
func (ds *Dataset) Append(rows ...Row) {
	for _, r := range rows {
		ds.rows = append(ds.rows, r.Copy())
	}
}

// Slice returns rows [start, end) as a new dataset.
func (ds *Dataset) Slice(start, end int) *Dataset {
	if start < 0 {
		start = 0
	}
	if end > len(ds.rows) {
		end = len(ds.rows)
	}
	out := ds.derive(ds.columns)
	if start < end {
		out.rows = append(out.rows, ds.rows[start:end]...)
	}
	return out
}

// WithName returns a copy of ds carrying a different name.
func (ds *Dataset) WithName(name string) *Dataset {
	out := ds.derive(ds.columns)
	out.name = name
	out.rows = append(out.rows, ds.rows...)
	return out
}

// Select projects ds onto cols, in cols order.
func (ds *Dataset) Select(cols ...string) (*Dataset, error) {
	if err := ds.Require(cols...); err != nil {
		return nil, err
	}
	out := ds.derive(cols)
	for _, r := range ds.rows {
		nr := make(Row, len(cols))
		for _, c := range cols {
			nr[c] = r[c]
		}
		out.rows = append(out.rows, nr)
	}
	return out, nil
}

// Rename returns ds with columns renamed according to mapping (old -> new).
func (ds *Dataset) Rename(mapping map[string]string) (*Dataset, error) {
	for old := range mapping {
		if err := ds.Require(old); err != nil {
			return nil, err
		}
	}
	cols := make([]string, len(ds.columns))
	for i, c := range ds.columns {
		if n, ok := mapping[c]; ok {
			cols[i] = n
		} else {
			cols[i] = c
		}
	}
	out := ds.derive(cols)
	for _, r := range ds.rows {
		nr := make(Row, len(r))
		for k, v := range r {
			if n, ok := mapping[k]; ok {
				nr[n] = v
			} else {
				nr[k] = v
			}
		}
		out.rows = append(out.rows, nr)
	}
	return out, nil
}

// Filter keeps the rows for which keep returns true.
func (ds *Dataset) Filter(keep func(Row) bool) *Dataset {
	out := ds.derive(ds.columns)
	for _, r := range ds.rows {
		if keep(r) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Map applies fn to a copy of every row and returns a dataset with the given
// output columns. A nil row from fn drops the row; an error aborts the map.
func (ds *Dataset) Map(cols []string, fn func(Row) (Row, error)) (*Dataset, error) {
	out := ds.derive(cols)
	for i, r := range ds.rows {
		nr, err := fn(r.Copy())
		if err != nil {
			return nil, fmt.Errorf("dataset %s: row %d: %w", ds.name, i, err)
		}
		if nr != nil {
			out.rows = append(out.rows, nr)
		}
	}
	return out, nil
}

// DropNull drops rows where any of cols is null (see IsNull). With no cols
// every column is checked.
func (ds *Dataset) DropNull(cols ...string) *Dataset {
	if len(cols) == 0 {
		cols = ds.columns
	}
	return ds.Filter(func(r Row) bool {
		for _, c := range cols {
			if IsNull(r[c]) {
				return false
			}
		}
		return true
	})
}

func (ds *Dataset) derive(cols []string) *Dataset {
	out := New(ds.name, cols)
	out.rows = make([]Row, 0, len(ds.rows))
	return out
}

package store

import (
	"fmt"
	"strings"
)

// Dialect renders backend specific SQL for table descriptors.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the i-th (1-based) parameter.
	Placeholder(i int) string
	Quote(ident string) string
	// MaxParams is the number of bind parameters one statement may carry.
	MaxParams() int
	// MaxRows caps the rows of one VALUES list; 0 means no limit.
	MaxRows() int
	// WriteSQL renders the write of nrows rows into t.
	WriteSQL(t *TableDescriptor, nrows int) string
	CreateTableSQL(t *TableDescriptor) string
	// Bind converts a value before it is passed to the driver.
	Bind(v interface{}) interface{}
}

// Statement is a parameterized multi-row write for one table. A Conn may
// split a batch into several executions of at most ChunkRows rows.
type Statement struct {
	Table   *TableDescriptor
	dialect Dialect
	chunk   int
}

// NewStatement prepares the write of t for d.
func NewStatement(d Dialect, t *TableDescriptor) *Statement {
	chunk := d.MaxParams() / len(t.Columns)
	if chunk < 1 {
		chunk = 1
	}
	if m := d.MaxRows(); m > 0 && chunk > m {
		chunk = m
	}
	return &Statement{Table: t, dialect: d, chunk: chunk}
}

// SQL renders the statement for nrows rows.
func (s *Statement) SQL(nrows int) string {
	return s.dialect.WriteSQL(s.Table, nrows)
}

// ChunkRows is the largest row count one execution may carry.
func (s *Statement) ChunkRows() int {
	return s.chunk
}

// Args flattens rows into bind arguments, converting each value with the dialect.
func (s *Statement) Args(rows [][]interface{}) ([]interface{}, error) {
	width := len(s.Table.Columns)
	args := make([]interface{}, 0, len(rows)*width)
	for i, r := range rows {
		if len(r) != width {
			return nil, fmt.Errorf("%s: row %d has %d values, want %d", s.Table.Name, i, len(r), width)
		}
		for _, v := range r {
			args = append(args, s.dialect.Bind(v))
		}
	}
	return args, nil
}

// ValuesList renders "(p1, p2), (p3, p4)" for nrows rows of ncols columns.
func ValuesList(d Dialect, ncols, nrows int) string {
	var sb strings.Builder
	n := 1
	for r := 0; r < nrows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < ncols; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Placeholder(n))
			n++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// QuoteAll quotes every identifier and joins them with ", ".
func QuoteAll(d Dialect, idents []string) string {
	q := make([]string, len(idents))
	for i, id := range idents {
		q[i] = d.Quote(id)
	}
	return strings.Join(q, ", ")
}

// InsertSQL renders a plain multi-row INSERT.
func InsertSQL(d Dialect, t *TableDescriptor, nrows int) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.Quote(t.Name), QuoteAll(d, t.ColumnNames()), ValuesList(d, len(t.Columns), nrows))
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS with typeOf mapping column
// types. The conflict keys become the primary key.
func CreateTableSQL(d Dialect, t *TableDescriptor, typeOf func(Column) string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (\n", d.Quote(t.Name))
	for i, c := range t.Columns {
		if i > 0 {
			sb.WriteString(",\n")
		}
		fmt.Fprintf(&sb, "  %s %s", d.Quote(c.Name), typeOf(c))
		if isKey(t, c.Name) {
			sb.WriteString(" NOT NULL")
		}
	}
	if len(t.ConflictKeys) > 0 && !t.InsertOnly {
		fmt.Fprintf(&sb, ",\n  PRIMARY KEY (%s)", QuoteAll(d, t.ConflictKeys))
	}
	sb.WriteString("\n)")
	return sb.String()
}

func isKey(t *TableDescriptor, col string) bool {
	for _, k := range t.ConflictKeys {
		if k == col {
			return true
		}
	}
	return false
}

// OnConflictSQL renders INSERT ... ON CONFLICT (keys) DO UPDATE SET c = excluded.c,
// or DO NOTHING when no column is updated.
func OnConflictSQL(d Dialect, t *TableDescriptor, nrows int) string {
	insert := InsertSQL(d, t, nrows)
	if !t.Upsert() {
		return insert
	}
	update := t.UpdateColumns()
	if len(update) == 0 {
		return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", insert, QuoteAll(d, t.ConflictKeys))
	}
	sets := make([]string, len(update))
	for i, c := range update {
		q := d.Quote(c)
		sets[i] = fmt.Sprintf("%s = excluded.%s", q, q)
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", insert, QuoteAll(d, t.ConflictKeys), strings.Join(sets, ", "))
}

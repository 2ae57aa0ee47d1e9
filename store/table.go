package store

// ColumnType is the portable type of a table column; dialects map it to SQL.
type ColumnType int

const (
	String ColumnType = iota
	Int
	Decimal
	Date
)

func (t ColumnType) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Decimal:
		return "decimal"
	case Date:
		return "date"
	}
	return "unknown"
}

type Column struct {
	Name string
	Type ColumnType
	// Size is the VARCHAR length for String columns.
	Size int
}

// TableDescriptor describes a load target: column order, conflict keys and
// write mode. InsertOnly tables are appended to without conflict handling.
// KeepExisting tables ignore rows whose key already exists.
type TableDescriptor struct {
	Name         string
	Columns      []Column
	ConflictKeys []string
	InsertOnly   bool
	KeepExisting bool
}

// ColumnNames returns the column names in load order.
func (t *TableDescriptor) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// UpdateColumns returns the columns overwritten when a row conflicts on its key.
func (t *TableDescriptor) UpdateColumns() []string {
	if t.InsertOnly || t.KeepExisting {
		return nil
	}
	keys := make(map[string]bool, len(t.ConflictKeys))
	for _, k := range t.ConflictKeys {
		keys[k] = true
	}
	var cols []string
	for _, c := range t.Columns {
		if !keys[c.Name] {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// Upsert reports whether writes resolve key conflicts.
func (t *TableDescriptor) Upsert() bool {
	return !t.InsertOnly && len(t.ConflictKeys) > 0
}

package dataset

import (
	"fmt"
	"strings"
)

// SchemaError reports a column that a caller required but the dataset lacks.
type SchemaError struct {
	Dataset   string
	Column    string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset %q has no column %q (columns: %s)", e.Dataset, e.Column, strings.Join(e.Available, ", "))
}

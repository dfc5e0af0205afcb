package core

import "fmt"

// ValidationKind is the class of a validation finding.
type ValidationKind string

const (
	KindTypeMismatch  ValidationKind = "type-mismatch"
	KindEnumInvalid   ValidationKind = "enum-invalid"
	KindNullViolation ValidationKind = "null-violation"
	KindFormatInvalid ValidationKind = "format-invalid"
)

// ValidationError is one value that does not satisfy its column's declared
// type. RowIndex is the position of the offending change in the batch.
type ValidationError struct {
	RowIndex   int            `json:"rowIndex"`
	RowID      int64          `json:"rowId"`
	ColumnName string         `json:"columnName"`
	Kind       ValidationKind `json:"kind"`
	Message    string         `json:"message"`
	// ElementIndex is set for array-element violations, -1 otherwise.
	ElementIndex int `json:"elementIndex"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("row %d, column %q: %s: %s", e.RowIndex, e.ColumnName, e.Kind, e.Message)
}

// IsArrayElement reports whether the finding concerns one element of an array value.
func (e ValidationError) IsArrayElement() bool {
	return e.ElementIndex >= 0
}

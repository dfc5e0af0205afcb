package core

// ChangeKind is the type of mutation a Change performs.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ColumnValue is one column/value pair. Changes keep their data as ordered
// pairs so that generated column lists follow a stable order.
type ColumnValue struct {
	Column string `json:"column"`
	Value  Value  `json:"value"`
}

// Change is one unit of intended mutation derived from a row state.
// Insert carries Data, Update carries Data and Where, Delete carries Where.
type Change struct {
	Kind  ChangeKind    `json:"kind"`
	RowID int64         `json:"rowId"`
	Data  []ColumnValue `json:"data,omitempty"`
	Where []ColumnValue `json:"where,omitempty"`
}

// DataColumns returns the column names of Data in order.
func (c *Change) DataColumns() []string {
	cols := make([]string, 0, len(c.Data))
	for _, cv := range c.Data {
		cols = append(cols, cv.Column)
	}
	return cols
}

// DataRecord returns Data as a record.
func (c *Change) DataRecord() Record {
	r := make(Record, len(c.Data))
	for _, cv := range c.Data {
		r[cv.Column] = cv.Value
	}
	return r
}

// HasData reports whether the change carries a value for column.
func (c *Change) HasData(column string) bool {
	for _, cv := range c.Data {
		if cv.Column == column {
			return true
		}
	}
	return false
}

// Package diff compares two reads of one table's metadata. A session uses it
// on refresh to report columns that appeared, disappeared or changed type
// while edits were pending.
package diff

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gridedit/internal/core"
)

// TableDiff represents the differences between two reads of a table.
type TableDiff struct {
	Schema            string                   `json:"schema"`
	Table             string                   `json:"table"`
	AddedColumns      []*core.ColumnDescriptor `json:"addedColumns,omitempty"`
	RemovedColumns    []*core.ColumnDescriptor `json:"removedColumns,omitempty"`
	ModifiedColumns   []*ColumnChange          `json:"modifiedColumns,omitempty"`
	PrimaryKeyChanged *FieldChange             `json:"primaryKeyChanged,omitempty"`
}

// ColumnChange represents the differences between two columns.
type ColumnChange struct {
	Name    string                 `json:"name"`
	Old     *core.ColumnDescriptor `json:"-"`
	New     *core.ColumnDescriptor `json:"-"`
	Changes []*FieldChange         `json:"changes"`
}

// FieldChange represents the differences between two fields.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Tables compares two reads of the same table. It returns nil when nothing
// changed or either side is missing.
func Tables(oldT, newT *core.TableMeta) *TableDiff {
	if oldT == nil || newT == nil {
		return nil
	}
	td := &TableDiff{Schema: newT.Schema, Table: newT.Table}

	oldCols := columnsByName(oldT.Columns)
	newCols := columnsByName(newT.Columns)
	for name, nc := range newCols {
		oc, ok := oldCols[name]
		if !ok {
			td.AddedColumns = append(td.AddedColumns, nc)
			continue
		}
		if changes := columnFieldChanges(oc, nc); len(changes) > 0 {
			td.ModifiedColumns = append(td.ModifiedColumns, &ColumnChange{Name: name, Old: oc, New: nc, Changes: changes})
		}
	}
	for name, oc := range oldCols {
		if _, ok := newCols[name]; !ok {
			td.RemovedColumns = append(td.RemovedColumns, oc)
		}
	}

	if !slices.Equal(oldT.PrimaryKey, newT.PrimaryKey) {
		td.PrimaryKeyChanged = &FieldChange{
			Field: "primary_key",
			Old:   strings.Join(oldT.PrimaryKey, ","),
			New:   strings.Join(newT.PrimaryKey, ","),
		}
	}

	if td.IsEmpty() {
		return nil
	}
	td.sort()
	return td
}

// IsEmpty reports whether the two reads were equivalent.
func (td *TableDiff) IsEmpty() bool {
	return td == nil || (len(td.AddedColumns) == 0 &&
		len(td.RemovedColumns) == 0 &&
		len(td.ModifiedColumns) == 0 &&
		td.PrimaryKeyChanged == nil)
}

// RemovedNames lists the names of removed columns.
func (td *TableDiff) RemovedNames() []string {
	if td == nil {
		return nil
	}
	out := make([]string, 0, len(td.RemovedColumns))
	for _, c := range td.RemovedColumns {
		out = append(out, c.Name)
	}
	return out
}

// String is a one-line description such as "+1 cols, -1 cols, ~2 cols".
func (td *TableDiff) String() string {
	if td.IsEmpty() {
		return "no changes"
	}
	var parts []string
	if n := len(td.AddedColumns); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d cols", n))
	}
	if n := len(td.RemovedColumns); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d cols", n))
	}
	if n := len(td.ModifiedColumns); n > 0 {
		parts = append(parts, fmt.Sprintf("~%d cols", n))
	}
	if td.PrimaryKeyChanged != nil {
		parts = append(parts, "primary key changed")
	}
	return strings.Join(parts, ", ")
}

func (td *TableDiff) sort() {
	sort.Slice(td.AddedColumns, func(i, j int) bool { return td.AddedColumns[i].Name < td.AddedColumns[j].Name })
	sort.Slice(td.RemovedColumns, func(i, j int) bool { return td.RemovedColumns[i].Name < td.RemovedColumns[j].Name })
	sort.Slice(td.ModifiedColumns, func(i, j int) bool { return td.ModifiedColumns[i].Name < td.ModifiedColumns[j].Name })
}

func columnsByName(cols []core.ColumnDescriptor) map[string]*core.ColumnDescriptor {
	m := make(map[string]*core.ColumnDescriptor, len(cols))
	for i := range cols {
		m[cols[i].Name] = &cols[i]
	}
	return m
}

type fieldChangeCollector struct {
	Changes []*FieldChange
}

func (c *fieldChangeCollector) Add(field, oldV, newV string) {
	if oldV == newV {
		return
	}
	c.Changes = append(c.Changes, &FieldChange{Field: field, Old: oldV, New: newV})
}

func columnFieldChanges(oldC, newC *core.ColumnDescriptor) []*FieldChange {
	c := &fieldChangeCollector{}

	if !strings.EqualFold(oldC.DeclaredType, newC.DeclaredType) {
		c.Add("type", oldC.DeclaredType, newC.DeclaredType)
	}
	c.Add("nullable", strconv.FormatBool(oldC.Nullable), strconv.FormatBool(newC.Nullable))
	c.Add("default", strconv.FormatBool(oldC.HasDefault), strconv.FormatBool(newC.HasDefault))
	c.Add("primary_key", strconv.FormatBool(oldC.PrimaryKey), strconv.FormatBool(newC.PrimaryKey))
	c.Add("enum_labels", strings.Join(oldC.EnumLabels, ","), strings.Join(newC.EnumLabels, ","))
	c.Add("references", refString(oldC.References), refString(newC.References))

	return c.Changes
}

func refString(r *core.ForeignKeyRef) string {
	if r == nil {
		return ""
	}
	return core.QualifiedName(r.Schema, r.Table) + "." + r.Column
}

// Package core contains the single source of truth for the grid editing pipeline.
// It provides a structured representation of table metadata, row values, changes
// and validation findings shared by the tracker, synthesizer, validator and executor.
package core

import (
	"strings"
)

// Dialect identifies a supported SQL dialect.
type Dialect string

const (
	DialectPostgreSQL Dialect = "postgresql"
	DialectMySQL      Dialect = "mysql"
	DialectSQLite     Dialect = "sqlite"
)

// SupportedDialects returns a slice of all supported dialect values.
func SupportedDialects() []Dialect {
	return []Dialect{
		DialectPostgreSQL,
		DialectMySQL,
		DialectSQLite,
	}
}

// IsValidDialect reports whether d is a recognized dialect string.
func IsValidDialect(d string) bool {
	for _, supported := range SupportedDialects() {
		if strings.EqualFold(string(supported), d) {
			return true
		}
	}
	return false
}

// ForeignKeyRef points a column at the column it references.
type ForeignKeyRef struct {
	Schema string `json:"schema,omitempty"`
	Table  string `json:"table"`
	Column string `json:"column"`
}

// ColumnDescriptor describes one column of the edited table. It is immutable
// once loaded for a session and only refreshed by explicit cache invalidation.
type ColumnDescriptor struct {
	Name         string         `json:"name"`
	DeclaredType string         `json:"declaredType"`
	Nullable     bool           `json:"nullable"`
	HasDefault   bool           `json:"hasDefault,omitempty"`
	PrimaryKey   bool           `json:"primaryKey,omitempty"`
	EnumLabels   []string       `json:"enumLabels,omitempty"`
	References   *ForeignKeyRef `json:"references,omitempty"`
}

// Category classifies the declared type of the column.
func (c *ColumnDescriptor) Category() TypeCategory {
	return ClassifyType(c.DeclaredType, len(c.EnumLabels) > 0)
}

// HasLabel reports whether label is one of the enum labels. Matching is
// case-sensitive.
func (c *ColumnDescriptor) HasLabel(label string) bool {
	for _, l := range c.EnumLabels {
		if l == label {
			return true
		}
	}
	return false
}

// TableMeta is the metadata of one table as read from the database.
type TableMeta struct {
	Schema     string             `json:"schema"`
	Table      string             `json:"table"`
	Columns    []ColumnDescriptor `json:"columns"`
	PrimaryKey []string           `json:"primaryKey,omitempty"`
}

// Column returns the descriptor with the given name, or nil.
func (t *TableMeta) Column(name string) *ColumnDescriptor {
	if t == nil {
		return nil
	}
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the column names in declared order.
func (t *TableMeta) ColumnNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// QualifiedName returns "schema.table", or just the table when no schema is set.
func (t *TableMeta) QualifiedName() string {
	return QualifiedName(t.Schema, t.Table)
}

// QualifiedName joins schema and table with a dot, omitting an empty schema.
func QualifiedName(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

// SplitQualifiedName splits "schema.table" into its parts. A name without a
// dot is returned as the table with the default schema.
func SplitQualifiedName(name, defaultSchema string) (schema, table string) {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return defaultSchema, name
}

// Package sqlgen turns tracked row changes into parameterized INSERT, UPDATE
// and DELETE statements. Identifiers are double-quoted and every value flows
// through a numbered positional placeholder ($1, $2, ...); no value is ever
// written into the statement text. Dialects that use other placeholder or
// quoting styles rebind the output at execution time.
package sqlgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gridedit/internal/core"
)

var (
	ErrEmptyTable  = errors.New("table name is empty")
	ErrEmptyUpdate = errors.New("update has no modified columns")
	ErrEmptyWhere  = errors.New("change has no row identity to match")
	ErrUnknownKind = errors.New("unknown change kind")
)

// Statement is one synthesized statement with its positional values.
type Statement struct {
	SQL    string          `json:"statement"`
	Values []any           `json:"values"`
	Kind   core.ChangeKind `json:"kind"`
	// ChangeIndex is the position of the source change in the computed change list.
	ChangeIndex int   `json:"changeIndex"`
	RowID       int64 `json:"rowId"`
}

// SynthesisError reports a change that could not be turned into a statement.
type SynthesisError struct {
	ChangeIndex int
	RowID       int64
	Kind        core.ChangeKind
	Err         error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("change %d (%s): %v", e.ChangeIndex, e.Kind, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// QuoteIdentifier wraps name in double quotes, doubling embedded quotes.
// The name is escaped exactly once.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString renders a single-quoted SQL string literal, doubling embedded quotes.
func QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// QualifiedTable renders "schema"."table", or just "table" without a schema.
func QualifiedTable(schema, table string) string {
	if schema == "" {
		return QuoteIdentifier(table)
	}
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}

// Synthesize renders one change as a statement for schema.table.
func Synthesize(schema, table string, change core.Change) (Statement, error) {
	if strings.TrimSpace(table) == "" {
		return Statement{}, ErrEmptyTable
	}
	target := QualifiedTable(schema, table)

	var (
		sql    string
		values []any
		err    error
	)
	switch change.Kind {
	case core.ChangeInsert:
		sql, values = insertStatement(target, change.Data)
	case core.ChangeUpdate:
		sql, values, err = updateStatement(target, change.Data, change.Where)
	case core.ChangeDelete:
		sql, values, err = deleteStatement(target, change.Where)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownKind, change.Kind)
	}
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sql, Values: values, Kind: change.Kind, RowID: change.RowID}, nil
}

// SynthesizeBatch renders every change. Malformed changes are skipped and
// reported next to the statements instead of failing the whole batch.
func SynthesizeBatch(schema, table string, changes []core.Change) ([]Statement, []*SynthesisError) {
	stmts := make([]Statement, 0, len(changes))
	var skipped []*SynthesisError
	for i, ch := range changes {
		st, err := Synthesize(schema, table, ch)
		if err != nil {
			skipped = append(skipped, &SynthesisError{ChangeIndex: i, RowID: ch.RowID, Kind: ch.Kind, Err: err})
			continue
		}
		st.ChangeIndex = i
		stmts = append(stmts, st)
	}
	return stmts, skipped
}

// insertStatement lists the data columns in order with one placeholder
// each. Empty data still yields a valid statement.
func insertStatement(target string, data []core.ColumnValue) (string, []any) {
	if len(data) == 0 {
		return "INSERT INTO " + target + " DEFAULT VALUES", []any{}
	}

	cols := make([]string, 0, len(data))
	placeholders := make([]string, 0, len(data))
	values := make([]any, 0, len(data))
	for i, cv := range data {
		cols = append(cols, QuoteIdentifier(cv.Column))
		placeholders = append(placeholders, placeholder(i+1))
		values = append(values, cv.Value)
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(target)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(placeholders, ", "))
	sb.WriteString(")")
	return sb.String(), values
}

func updateStatement(target string, data, where []core.ColumnValue) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, ErrEmptyUpdate
	}
	if len(where) == 0 {
		return "", nil, ErrEmptyWhere
	}

	values := make([]any, 0, len(data)+len(where))
	sets := make([]string, 0, len(data))
	for _, cv := range data {
		values = append(values, cv.Value)
		sets = append(sets, QuoteIdentifier(cv.Column)+" = "+placeholder(len(values)))
	}
	cond, values := whereClause(where, values)

	return "UPDATE " + target + " SET " + strings.Join(sets, ", ") + " WHERE " + cond, values, nil
}

func deleteStatement(target string, where []core.ColumnValue) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, ErrEmptyWhere
	}
	cond, values := whereClause(where, make([]any, 0, len(where)))
	return "DELETE FROM " + target + " WHERE " + cond, values, nil
}

// whereClause ANDs each condition, continuing the placeholder numbering
// after the values already collected. A nil value matches with IS NULL and
// consumes no placeholder.
func whereClause(where []core.ColumnValue, values []any) (string, []any) {
	conds := make([]string, 0, len(where))
	for _, cv := range where {
		if cv.Value == nil {
			conds = append(conds, QuoteIdentifier(cv.Column)+" IS NULL")
			continue
		}
		values = append(values, cv.Value)
		conds = append(conds, QuoteIdentifier(cv.Column)+" = "+placeholder(len(values)))
	}
	return strings.Join(conds, " AND "), values
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

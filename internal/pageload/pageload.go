// Package pageload fetches one page of server rows for the editor. Pages are
// ordered by primary key so that paging is stable between reloads.
package pageload

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gridedit/internal/core"
	"gridedit/internal/dialect"
	"gridedit/internal/sqlgen"
)

// ErrNoColumns is returned for metadata without columns.
var ErrNoColumns = errors.New("table has no columns")

// Queryer runs a read query; *sql.DB and *sql.Tx satisfy it.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Page selects a window of rows.
type Page struct {
	Limit  int
	Offset int
}

// Loader reads pages through one dialect.
type Loader struct {
	db      Queryer
	dialect dialect.Dialect
}

func New(db Queryer, d dialect.Dialect) *Loader {
	return &Loader{db: db, dialect: d}
}

// Query renders the neutral SELECT for a page. Without a primary key the rows
// are ordered by every column.
func Query(meta *core.TableMeta, page Page) (string, []any, error) {
	if len(meta.Columns) == 0 {
		return "", nil, ErrNoColumns
	}

	cols := make([]string, 0, len(meta.Columns))
	for _, c := range meta.Columns {
		cols = append(cols, sqlgen.QuoteIdentifier(c.Name))
	}
	order := cols
	if len(meta.PrimaryKey) > 0 {
		order = make([]string, 0, len(meta.PrimaryKey))
		for _, name := range meta.PrimaryKey {
			order = append(order, sqlgen.QuoteIdentifier(name))
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(sqlgen.QualifiedTable(meta.Schema, meta.Table))
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(order, ", "))

	var args []any
	if page.Limit > 0 {
		args = append(args, page.Limit, max(page.Offset, 0))
		sb.WriteString(" LIMIT $1 OFFSET $2")
	}
	return sb.String(), args, nil
}

// Load fetches one page and returns the rows keyed by column name. JSON
// objects and arrays in document columns are decoded so they compare by
// content with edited values.
func (l *Loader) Load(ctx context.Context, meta *core.TableMeta, page Page) ([]core.Record, error) {
	query, args, err := Query(meta, page)
	if err != nil {
		return nil, err
	}
	query, args = l.dialect.Rebind(query, args)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load page of %s: %w", meta.QualifiedName(), err)
	}
	defer rows.Close()

	names := meta.ColumnNames()
	documents := make([]bool, len(names))
	for i := range meta.Columns {
		documents[i] = core.IsDocumentType(meta.Columns[i].DeclaredType)
	}

	var out []core.Record
	for rows.Next() {
		dest := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(core.Record, len(names))
		for i, name := range names {
			if documents[i] {
				rec[name] = decodeDocument(dest[i])
				continue
			}
			rec[name] = scanValue(dest[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// scanValue turns driver byte slices into strings so edits compare and
// render as text.
func scanValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// decodeDocument decodes JSON object and array text. Scalars and text that
// does not parse are returned like any other scanned value.
func decodeDocument(v any) any {
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		return v
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return scanValue(v)
	}
	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return scanValue(v)
	}
	return doc
}

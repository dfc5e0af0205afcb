// Package sqlite contains the introspect implementation for SQLite. Column and
// key information comes from the table-valued pragma functions.
package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"gridedit/internal/core"
	"gridedit/internal/introspect"
)

func init() {
	introspect.Register(core.DialectSQLite, New)
}

type sqliteIntrospecter struct{}

func New() introspect.Introspecter {
	return &sqliteIntrospecter{}
}

func (i *sqliteIntrospecter) Introspect(ctx context.Context, db *sql.DB, schema, table string) (*core.TableMeta, error) {
	if schema == "" {
		schema = "main"
	}
	meta := &core.TableMeta{Schema: schema, Table: table}

	pk, err := introspectColumns(ctx, db, meta)
	if err != nil {
		return nil, err
	}
	if len(meta.Columns) == 0 {
		return nil, introspect.NotFound(schema, table)
	}
	introspect.MarkPrimaryKey(meta, pk)

	// A single INTEGER PRIMARY KEY aliases the rowid and is filled on insert.
	if len(pk) == 1 {
		if c := meta.Column(pk[0]); c != nil && strings.EqualFold(strings.TrimSpace(c.DeclaredType), "integer") {
			c.HasDefault = true
		}
	}

	if err := introspectForeignKeys(ctx, db, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func introspectColumns(ctx context.Context, db *sql.DB, meta *core.TableMeta) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?, ?)
		ORDER BY cid
	`, meta.Table, meta.Schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type keyPart struct {
		name string
		pos  int
	}
	var keys []keyPart
	for rows.Next() {
		var (
			name, declared string
			notNull, pkPos int
			defaultVal     sql.NullString
		)
		if err := rows.Scan(&name, &declared, &notNull, &defaultVal, &pkPos); err != nil {
			return nil, err
		}
		meta.Columns = append(meta.Columns, core.ColumnDescriptor{
			Name:         name,
			DeclaredType: declared,
			Nullable:     notNull == 0,
			HasDefault:   defaultVal.Valid,
		})
		if pkPos > 0 {
			keys = append(keys, keyPart{name: name, pos: pkPos})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(keys, func(a, b int) bool { return keys[a].pos < keys[b].pos })
	var pk []string
	for _, k := range keys {
		pk = append(pk, k.name)
	}
	return pk, nil
}

func introspectForeignKeys(ctx context.Context, db *sql.DB, meta *core.TableMeta) error {
	rows, err := db.QueryContext(ctx, `
		SELECT "from", "table", "to"
		FROM pragma_foreign_key_list(?, ?)
		ORDER BY id, seq
	`, meta.Table, meta.Schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var from, refTable string
		var refColumn sql.NullString
		if err := rows.Scan(&from, &refTable, &refColumn); err != nil {
			return err
		}
		c := meta.Column(from)
		if c == nil || c.References != nil {
			continue
		}
		// A NULL target column means the parent's primary key.
		c.References = &core.ForeignKeyRef{Table: refTable, Column: refColumn.String}
	}
	return rows.Err()
}

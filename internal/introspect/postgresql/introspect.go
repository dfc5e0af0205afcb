// Package postgresql contains the introspect implementation for PostgreSQL. It
// reads the system catalogs so enum labels, including those of enum arrays,
// come back with the column.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gridedit/internal/core"
	"gridedit/internal/introspect"
)

func init() {
	introspect.Register(core.DialectPostgreSQL, New)
}

type introspecter struct{}

func New() introspect.Introspecter {
	return &introspecter{}
}

// schemaExpr resolves an empty schema argument to the current schema.
const schemaExpr = "COALESCE(NULLIF($1, ''), current_schema())"

const columnsQuery = `
	SELECT
		a.attname,
		format_type(a.atttypid, a.atttypmod),
		NOT a.attnotnull,
		a.atthasdef OR a.attidentity <> '' OR a.attgenerated <> '',
		COALESCE((
			SELECT json_agg(e.enumlabel ORDER BY e.enumsortorder)
			FROM pg_enum e
			WHERE e.enumtypid = CASE WHEN t.typcategory = 'A' THEN t.typelem ELSE t.oid END
		)::text, '[]')
	FROM pg_attribute a
	JOIN pg_class c ON c.oid = a.attrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_type t ON t.oid = a.atttypid
	WHERE n.nspname = ` + schemaExpr + `
		AND c.relname = $2
		AND a.attnum > 0
		AND NOT a.attisdropped
	ORDER BY a.attnum`

const primaryKeyQuery = `
	SELECT a.attname
	FROM pg_index i
	JOIN pg_class c ON c.oid = i.indrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
	WHERE i.indisprimary
		AND n.nspname = ` + schemaExpr + `
		AND c.relname = $2
	ORDER BY array_position(i.indkey::int2[], a.attnum)`

const foreignKeysQuery = `
	SELECT a.attname, fn.nspname, fc.relname, fa.attname
	FROM pg_constraint con
	JOIN pg_class c ON c.oid = con.conrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_class fc ON fc.oid = con.confrelid
	JOIN pg_namespace fn ON fn.oid = fc.relnamespace
	CROSS JOIN LATERAL unnest(con.conkey, con.confkey) AS k(col, refcol)
	JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.col
	JOIN pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.refcol
	WHERE con.contype = 'f'
		AND n.nspname = ` + schemaExpr + `
		AND c.relname = $2
	ORDER BY con.conname`

func (i *introspecter) Introspect(ctx context.Context, db *sql.DB, schema, table string) (*core.TableMeta, error) {
	meta := &core.TableMeta{Schema: schema, Table: table}

	if err := introspectColumns(ctx, db, meta); err != nil {
		return nil, err
	}
	if len(meta.Columns) == 0 {
		return nil, introspect.NotFound(schema, table)
	}

	pk, err := introspectPrimaryKey(ctx, db, schema, table)
	if err != nil {
		return nil, err
	}
	introspect.MarkPrimaryKey(meta, pk)

	if err := introspectForeignKeys(ctx, db, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func introspectColumns(ctx context.Context, db *sql.DB, meta *core.TableMeta) error {
	rows, err := db.QueryContext(ctx, columnsQuery, meta.Schema, meta.Table)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			col    core.ColumnDescriptor
			labels string
		)
		if err := rows.Scan(&col.Name, &col.DeclaredType, &col.Nullable, &col.HasDefault, &labels); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(labels), &col.EnumLabels); err != nil {
			return fmt.Errorf("column %s: decode enum labels: %w", col.Name, err)
		}
		if len(col.EnumLabels) == 0 {
			col.EnumLabels = nil
		}
		meta.Columns = append(meta.Columns, col)
	}
	return rows.Err()
}

func introspectPrimaryKey(ctx context.Context, db *sql.DB, schema, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, primaryKeyQuery, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		pk = append(pk, name)
	}
	return pk, rows.Err()
}

func introspectForeignKeys(ctx context.Context, db *sql.DB, meta *core.TableMeta) error {
	rows, err := db.QueryContext(ctx, foreignKeysQuery, meta.Schema, meta.Table)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var column string
		var ref core.ForeignKeyRef
		if err := rows.Scan(&column, &ref.Schema, &ref.Table, &ref.Column); err != nil {
			return err
		}
		if c := meta.Column(column); c != nil && c.References == nil {
			c.References = &ref
		}
	}
	return rows.Err()
}

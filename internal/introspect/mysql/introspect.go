// Package mysql contains the introspect implementation for MySQL and MariaDB.
// It reads information_schema for one table; an empty schema means the
// database selected by the DSN.
package mysql

import (
	"context"
	"database/sql"

	"gridedit/internal/core"
	"gridedit/internal/introspect"
)

func init() {
	introspect.Register(core.DialectMySQL, New)
}

type introspecter struct{}

type introspectCtx struct {
	db     *sql.DB
	ctx    context.Context
	schema string
	table  string
}

func New() introspect.Introspecter {
	return &introspecter{}
}

func (i *introspecter) Introspect(ctx context.Context, db *sql.DB, schema, table string) (*core.TableMeta, error) {
	ic := &introspectCtx{db: db, ctx: ctx, schema: schema, table: table}

	meta := &core.TableMeta{Schema: schema, Table: table}
	if err := introspectColumns(ic, meta); err != nil {
		return nil, err
	}
	if len(meta.Columns) == 0 {
		return nil, introspect.NotFound(schema, table)
	}

	pk, err := introspectPrimaryKey(ic)
	if err != nil {
		return nil, err
	}
	introspect.MarkPrimaryKey(meta, pk)

	if err := introspectForeignKeys(ic, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

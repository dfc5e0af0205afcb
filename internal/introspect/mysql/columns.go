package mysql

import (
	"database/sql"
	"strings"

	"gridedit/internal/core"
)

// schemaExpr resolves an empty schema argument to the current database.
const schemaExpr = "COALESCE(NULLIF(?, ''), DATABASE())"

func introspectColumns(ic *introspectCtx, meta *core.TableMeta) error {
	rows, err := ic.db.QueryContext(ic.ctx, `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable,
			c.column_default,
			c.extra
		FROM information_schema.columns c
		WHERE c.table_schema = `+schemaExpr+` AND c.table_name = ?
		ORDER BY c.ordinal_position
	`, ic.schema, ic.table)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, colType, nullable, defaultVal, extra sql.NullString
		if err := rows.Scan(&name, &colType, &nullable, &defaultVal, &extra); err != nil {
			return err
		}

		col := core.ColumnDescriptor{
			Name:         name.String,
			DeclaredType: colType.String,
			Nullable:     nullable.String == "YES",
			HasDefault:   defaultVal.Valid || hasGeneratedValue(extra.String),
		}
		if strings.HasPrefix(strings.ToLower(colType.String), "enum(") {
			col.EnumLabels = core.ParseEnumTypeRaw(colType.String)
		}

		meta.Columns = append(meta.Columns, col)
	}

	return rows.Err()
}

// hasGeneratedValue reports whether the server fills the column on insert.
func hasGeneratedValue(extra string) bool {
	extra = strings.ToLower(extra)
	return strings.Contains(extra, "auto_increment") || strings.Contains(extra, "generated")
}

func introspectPrimaryKey(ic *introspectCtx) ([]string, error) {
	rows, err := ic.db.QueryContext(ic.ctx, `
		SELECT k.column_name
		FROM information_schema.key_column_usage k
		WHERE k.table_schema = `+schemaExpr+`
			AND k.table_name = ?
			AND k.constraint_name = 'PRIMARY'
		ORDER BY k.ordinal_position
	`, ic.schema, ic.table)
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

func introspectForeignKeys(ic *introspectCtx, meta *core.TableMeta) error {
	rows, err := ic.db.QueryContext(ic.ctx, `
		SELECT k.column_name, k.referenced_table_schema, k.referenced_table_name, k.referenced_column_name
		FROM information_schema.key_column_usage k
		WHERE k.table_schema = `+schemaExpr+`
			AND k.table_name = ?
			AND k.referenced_table_name IS NOT NULL
		ORDER BY k.constraint_name, k.ordinal_position
	`, ic.schema, ic.table)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var column, refSchema, refTable, refColumn sql.NullString
		if err := rows.Scan(&column, &refSchema, &refTable, &refColumn); err != nil {
			return err
		}
		if c := meta.Column(column.String); c != nil && c.References == nil {
			c.References = &core.ForeignKeyRef{
				Schema: refSchema.String,
				Table:  refTable.String,
				Column: refColumn.String,
			}
		}
	}
	return rows.Err()
}

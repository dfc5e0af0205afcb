// Package sqlite binds neutral statements to SQLite through the pure-Go
// modernc driver. Identifiers keep their double quotes, $n placeholders are
// rebound to positional ? markers and structured values are stored as JSON text.
package sqlite

import (
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"gridedit/internal/core"
	"gridedit/internal/dialect"
)

func init() {
	dialect.RegisterDialect(core.DialectSQLite, func() dialect.Dialect {
		return New()
	})
}

// Dialect is the SQLite binding.
type Dialect struct{}

// New returns the SQLite dialect.
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() core.Dialect {
	return core.DialectSQLite
}

func (d *Dialect) DriverName() string {
	return "sqlite"
}

func (d *Dialect) DefaultSchema() string {
	return "main"
}

// foreignKeysPragma turns on foreign key enforcement for every connection.
const foreignKeysPragma = "_pragma=foreign_keys(1)"

// PrepareDSN enables foreign key enforcement unless the DSN sets it already.
func (d *Dialect) PrepareDSN(dsn string) (string, error) {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn, nil
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + foreignKeysPragma, nil
	}
	return dsn + "?" + foreignKeysPragma, nil
}

func (d *Dialect) Rebind(statement string, values []any) (string, []any) {
	return dialect.RebindQuestion(statement, values)
}

func (d *Dialect) BindValue(v any) (any, error) {
	return dialect.JSONValue(v)
}

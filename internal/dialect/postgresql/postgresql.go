// Package postgresql binds neutral statements to PostgreSQL through the pgx
// database/sql driver. Statements already use PostgreSQL syntax and run as-is.
package postgresql

import (
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"gridedit/internal/core"
	"gridedit/internal/dialect"
)

func init() {
	dialect.RegisterDialect(core.DialectPostgreSQL, func() dialect.Dialect {
		return New()
	})
}

// Dialect is the PostgreSQL binding.
type Dialect struct{}

// New returns the PostgreSQL dialect.
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() core.Dialect {
	return core.DialectPostgreSQL
}

func (d *Dialect) DriverName() string {
	return "pgx"
}

func (d *Dialect) DefaultSchema() string {
	return "public"
}

func (d *Dialect) PrepareDSN(dsn string) (string, error) {
	return dsn, nil
}

func (d *Dialect) Rebind(statement string, values []any) (string, []any) {
	return statement, values
}

// BindValue passes arrays of strings as text arrays, which PostgreSQL casts to
// enum arrays, and encodes every other structured value as JSON text.
func (d *Dialect) BindValue(v any) (any, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		if strs, ok := stringSlice(t); ok {
			return strs, nil
		}
	}
	return dialect.JSONValue(v)
}

func stringSlice(vals []any) ([]string, bool) {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Package mysql binds neutral statements to MySQL and MariaDB. Connections are
// opened with ANSI_QUOTES so double-quoted identifiers keep working, and $n
// placeholders are rebound to ? markers.
package mysql

import (
	"github.com/go-sql-driver/mysql"

	"gridedit/internal/core"
	"gridedit/internal/dialect"
)

// ansiQuotesMode appends ANSI_QUOTES to whatever sql_mode the server uses.
const ansiQuotesMode = "CONCAT(@@sql_mode, ',ANSI_QUOTES')"

func init() {
	dialect.RegisterDialect(core.DialectMySQL, func() dialect.Dialect {
		return New()
	})
}

// Dialect is the MySQL binding.
type Dialect struct{}

// New returns the MySQL dialect.
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() core.Dialect {
	return core.DialectMySQL
}

func (d *Dialect) DriverName() string {
	return "mysql"
}

// DefaultSchema is empty: MySQL resolves unqualified tables in the DSN database.
func (d *Dialect) DefaultSchema() string {
	return ""
}

// PrepareDSN enables ANSI_QUOTES and time parsing on every connection.
func (d *Dialect) PrepareDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	cfg.Params["sql_mode"] = ansiQuotesMode
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (d *Dialect) Rebind(statement string, values []any) (string, []any) {
	return dialect.RebindQuestion(dialect.ExpandDefaultValues(statement), values)
}

func (d *Dialect) BindValue(v any) (any, error) {
	return dialect.JSONValue(v)
}

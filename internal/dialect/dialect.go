// Package dialect provides a unified interface for all database dialects. The
// synthesizer emits one neutral statement form ($n placeholders, double-quoted
// identifiers); each dialect binds that form to its driver: which driver to
// open, how to prepare the DSN, how to rebind placeholders and how to pass
// structured values.
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gridedit/internal/core"
)

// Dialect binds neutral statements to one database driver.
type Dialect interface {
	Name() core.Dialect
	// DriverName is the database/sql driver name registered by the driver package.
	DriverName() string
	// DefaultSchema is used when the caller does not name a schema.
	DefaultSchema() string
	// PrepareDSN adjusts a user supplied DSN with the session settings the
	// dialect needs.
	PrepareDSN(dsn string) (string, error)
	// Rebind converts a neutral statement and its values to the driver's form.
	Rebind(statement string, values []any) (string, []any)
	// BindValue converts one value to something the driver accepts.
	BindValue(v any) (any, error)
}

var (
	registry = make(map[core.Dialect]func() Dialect)
	mu       sync.RWMutex
)

// RegisterDialect creates a new registry entry for the specified dialect.
func RegisterDialect(d core.Dialect, ctor func() Dialect) {
	mu.Lock()
	defer mu.Unlock()
	registry[d] = ctor
}

// GetDialect returns the dialect for the specified name from the registry.
func GetDialect(name string) (Dialect, error) {
	mu.RLock()
	ctor, ok := registry[core.Dialect(strings.ToLower(strings.TrimSpace(name)))]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q; registered dialects: %v", name, Registered())
	}
	return ctor(), nil
}

// Registered returns the names of all registered dialects, sorted.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for d := range registry {
		names = append(names, string(d))
	}
	sort.Strings(names)
	return names
}

// Open opens a connection pool for the dialect and pings it to test the
// connection. If the ping fails the pool is closed again.
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	prepared, err := d.PrepareDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid %s dsn: %w", d.Name(), err)
	}
	db, err := sql.Open(d.DriverName(), prepared)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %v; additionally failed to close connection: %w", pingErr, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}
	return db, nil
}

// BindValues applies d.BindValue to every value.
func BindValues(d Dialect, values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		bv, err := d.BindValue(v)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		out[i] = bv
	}
	return out, nil
}

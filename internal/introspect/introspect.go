// Package introspect contains a main introspecter interface which lets you read
// the metadata of one table: its columns in declared order, their types,
// nullability, defaults, enum labels, foreign keys and the primary key.
// Implementations register themselves per dialect.
package introspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"gridedit/internal/core"
)

// ErrTableNotFound is returned when the table has no columns visible to the
// connection.
var ErrTableNotFound = errors.New("table not found")

type Introspecter interface {
	Introspect(ctx context.Context, db *sql.DB, schema, table string) (*core.TableMeta, error)
}

var (
	registry = make(map[core.Dialect]func() Introspecter)
	mu       sync.RWMutex
)

func Register(dialect core.Dialect, fn func() Introspecter) {
	mu.Lock()
	defer mu.Unlock()
	registry[dialect] = fn
}

func NewIntrospecter(dialect core.Dialect) (Introspecter, error) {
	mu.RLock()
	fn, ok := registry[dialect]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported dialect %v", dialect)
	}

	return fn(), nil
}

// NotFound wraps ErrTableNotFound with the qualified table name.
func NotFound(schema, table string) error {
	return fmt.Errorf("%w: %s", ErrTableNotFound, core.QualifiedName(schema, table))
}

// MarkPrimaryKey sets PrimaryKey on the named columns of meta and records the
// key order.
func MarkPrimaryKey(meta *core.TableMeta, pk []string) {
	meta.PrimaryKey = pk
	for _, name := range pk {
		if c := meta.Column(name); c != nil {
			c.PrimaryKey = true
		}
	}
}

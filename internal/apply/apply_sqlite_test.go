package apply

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridedit/internal/core"
	"gridedit/internal/dialect/sqlite"
	"gridedit/internal/sqlgen"
)

func setupSQLite(t *testing.T, transactional bool) (*Applier, *sql.DB) {
	t.Helper()
	ctx := context.Background()

	a := NewApplier(sqlite.New(), Options{Transactional: transactional})
	require.NoError(t, a.Connect(ctx, filepath.Join(t.TempDir(), "apply.db")))
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("failed to close DB connection: %v", err)
		}
	})

	db := a.DB()
	_, err := db.ExecContext(ctx, `CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO items (id, name) VALUES (1, 'one'), (2, 'two')`)
	require.NoError(t, err)
	return a, db
}

func itemNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM items ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	require.NoError(t, rows.Err())
	return names
}

// conflictingBatch renames row 1, then tries to insert a duplicate name.
func conflictingBatch(t *testing.T) []sqlgen.Statement {
	t.Helper()
	stmts, skipped := sqlgen.SynthesizeBatch("main", "items", []core.Change{
		{Kind: core.ChangeUpdate, Data: []core.ColumnValue{{Column: "name", Value: "uno"}}, Where: []core.ColumnValue{{Column: "id", Value: int64(1)}}},
		{Kind: core.ChangeInsert, Data: []core.ColumnValue{{Column: "name", Value: "two"}}},
	})
	require.Empty(t, skipped)
	return stmts
}

func TestApplySQLiteTransactional(t *testing.T) {
	a, db := setupSQLite(t, true)

	res := a.Apply(context.Background(), conflictingBatch(t))
	require.False(t, res.OK())
	assert.True(t, res.RolledBack)
	assert.Equal(t, 1, res.FailedIndex)
	assert.Contains(t, res.Message(), "UNIQUE constraint failed")
	assert.Equal(t, []string{"one", "two"}, itemNames(t, db))
}

func TestApplySQLiteImmediate(t *testing.T) {
	a, db := setupSQLite(t, false)

	res := a.Apply(context.Background(), conflictingBatch(t))
	require.False(t, res.OK())
	assert.False(t, res.Atomic())
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, []string{"uno", "two"}, itemNames(t, db))
}

func TestApplySQLiteSuccess(t *testing.T) {
	a, db := setupSQLite(t, true)

	stmts, _ := sqlgen.SynthesizeBatch("main", "items", []core.Change{
		{Kind: core.ChangeInsert, Data: []core.ColumnValue{{Column: "name", Value: "it's three"}}},
		{Kind: core.ChangeDelete, Where: []core.ColumnValue{{Column: "id", Value: int64(2)}}},
	})
	res := a.Apply(context.Background(), stmts)
	require.True(t, res.OK(), res.Message())
	assert.Equal(t, []string{"one", "it's three"}, itemNames(t, db))
}

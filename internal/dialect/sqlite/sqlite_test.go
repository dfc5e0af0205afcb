package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridedit/internal/dialect"
)

func TestPrepareDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{name: "plain_path", dsn: "app.db", want: "app.db?_pragma=foreign_keys(1)"},
		{name: "existing_query", dsn: "file:app.db?mode=rwc", want: "file:app.db?mode=rwc&_pragma=foreign_keys(1)"},
		{name: "explicit_setting_kept", dsn: "app.db?_pragma=foreign_keys(0)", want: "app.db?_pragma=foreign_keys(0)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().PrepareDSN(tt.dsn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAndBind(t *testing.T) {
	ctx := context.Background()
	d, err := dialect.GetDialect("sqlite")
	require.NoError(t, err)

	db, err := dialect.Open(ctx, d, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	var fk int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	_, err = db.ExecContext(ctx, `CREATE TABLE "t" ("id" INTEGER PRIMARY KEY, "tags" TEXT)`)
	require.NoError(t, err)

	query, values := d.Rebind(`INSERT INTO "main"."t" ("id", "tags") VALUES ($1, $2)`, []any{int64(1), []any{"a", "b"}})
	args, err := dialect.BindValues(d, values)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, query, args...)
	require.NoError(t, err)

	var tags string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT "tags" FROM "t" WHERE "id" = 1`).Scan(&tags))
	assert.Equal(t, `["a","b"]`, tags)
}

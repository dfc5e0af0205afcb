package mysql

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"gridedit/internal/core"
	"gridedit/internal/introspect"
)

func TestHasGeneratedValue(t *testing.T) {
	assert.True(t, hasGeneratedValue("auto_increment"))
	assert.True(t, hasGeneratedValue("DEFAULT_GENERATED"))
	assert.True(t, hasGeneratedValue("STORED GENERATED"))
	assert.False(t, hasGeneratedValue(""))
	assert.False(t, hasGeneratedValue("on update CURRENT_TIMESTAMP"))
}

func TestIntrospectIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupMySQL(t)
	ctx := context.Background()

	for _, stmt := range []string{
		`CREATE TABLE teams (id INT PRIMARY KEY)`,
		`CREATE TABLE users (
			id INT AUTO_INCREMENT PRIMARY KEY,
			team_id INT NULL,
			name VARCHAR(64) NOT NULL,
			plan ENUM('free','pro','it''s') NOT NULL DEFAULT 'free',
			active TINYINT(1) NOT NULL,
			CONSTRAINT fk_team FOREIGN KEY (team_id) REFERENCES teams(id)
		)`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	meta, err := New().Introspect(ctx, db, "", "users")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "team_id", "name", "plan", "active"}, meta.ColumnNames())
	assert.Equal(t, []string{"id"}, meta.PrimaryKey)

	id := meta.Column("id")
	assert.True(t, id.PrimaryKey)
	assert.True(t, id.HasDefault)

	name := meta.Column("name")
	assert.False(t, name.Nullable)
	assert.False(t, name.HasDefault)

	plan := meta.Column("plan")
	assert.Equal(t, []string{"free", "pro", "it's"}, plan.EnumLabels)
	assert.Equal(t, core.CategoryEnum, plan.Category())
	assert.True(t, plan.HasDefault)

	assert.Equal(t, core.CategoryBoolean, meta.Column("active").Category())

	team := meta.Column("team_id")
	assert.True(t, team.Nullable)
	require.NotNil(t, team.References)
	assert.Equal(t, "teams", team.References.Table)
	assert.Equal(t, "id", team.References.Column)

	_, err = New().Introspect(ctx, db, "", "missing")
	assert.ErrorIs(t, err, introspect.ErrTableNotFound)
}

func setupMySQL(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	mysqlContainer, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(mysqlContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err, "failed to open direct DB connection")
	require.NoError(t, db.PingContext(ctx), "failed to ping database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close DB connection: %v", err)
		}
	})
	return db
}

package apply

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridedit/internal/sqlgen"
)

func TestAnalyzeStatement(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		values   []any
		wantType string
		problem  string
	}{
		{name: "insert", sql: `INSERT INTO "public"."users" ("name") VALUES ($1)`, values: []any{"a"}, wantType: "INSERT"},
		{name: "insert_default_values", sql: `INSERT INTO "public"."users" DEFAULT VALUES`, wantType: "INSERT"},
		{name: "update", sql: `UPDATE "s"."t" SET "a" = $1 WHERE "id" = $2`, values: []any{1, 2}, wantType: "UPDATE"},
		{name: "delete_is_null", sql: `DELETE FROM "s"."t" WHERE "a" IS NULL AND "b" = $1`, values: []any{"x"}, wantType: "DELETE"},
		{name: "quoted_keyword_identifier", sql: `UPDATE "order" SET "select" = $1 WHERE "from" = $2`, values: []any{1, 2}, wantType: "UPDATE"},
		{name: "update_without_where", sql: `UPDATE "t" SET "a" = $1`, values: []any{1}, wantType: "UPDATE", problem: "UPDATE without WHERE"},
		{name: "delete_without_where", sql: `DELETE FROM "t"`, wantType: "DELETE", problem: "DELETE without WHERE"},
		{name: "select", sql: `SELECT 1`, problem: "only INSERT, UPDATE and DELETE"},
		{name: "ddl", sql: `DROP TABLE "t"`, problem: "only INSERT, UPDATE and DELETE"},
		{name: "stacked", sql: `DELETE FROM "t" WHERE "id" = $1; DROP TABLE "t"`, values: []any{1}, problem: "expected one statement, found 2"},
		{name: "garbage", sql: `UPDATE SET WHERE`, problem: "does not parse"},
	}

	a := NewStatementAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := a.AnalyzeStatement(tt.sql, tt.values)
			require.NotNil(t, analysis)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, analysis.StatementType)
			}
			if tt.problem == "" {
				assert.Empty(t, analysis.Problem)
			} else {
				assert.Contains(t, analysis.Problem, tt.problem)
			}
		})
	}
}

func TestAnalyzeStatements(t *testing.T) {
	a := NewStatementAnalyzer()
	result := a.AnalyzeStatements([]sqlgen.Statement{
		{SQL: `DELETE FROM "t" WHERE "id" = $1`, Values: []any{1}},
		{SQL: `UPDATE "t" SET "a" = $1`, Values: []any{1}, ChangeIndex: 4},
	})

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, WarnDanger, result.Warnings[0].Level)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "statement 2 (change 4)")
	assert.False(t, result.OK())
}

func TestTruncateSQL(t *testing.T) {
	short := `DELETE FROM "t" WHERE "id" = $1`
	assert.Equal(t, short, truncateSQL("  "+short+"  "))

	long := `UPDATE "public"."a_rather_long_table_name" SET "first_column" = $1, "second_column" = $2 WHERE "id" = $3`
	got := truncateSQL(long)
	assert.Len(t, got, 80)
	assert.Equal(t, "...", got[77:])

	wide := `UPDATE "` + strings.Repeat("表", 100) + `" SET "a" = $1`
	got = truncateSQL(wide)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 80, utf8.RuneCountInString(got))
	assert.Equal(t, `UPDATE "`+strings.Repeat("表", 69)+"...", got)
}

package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridedit/internal/session"
)

func TestSQLFormatterFormatColumns(t *testing.T) {
	out, err := sqlFormatter{}.FormatColumns(sampleMeta())
	require.NoError(t, err)

	assert.Contains(t, out, "-- gridedit columns: public.users")
	assert.Contains(t, out, "-- id integer [integer] PRIMARY KEY NOT NULL DEFAULT")
	assert.Contains(t, out, "-- name text [text] NOT NULL")
	assert.Contains(t, out, "-- mood mood [enum] ENUM(sad, ok)")
	assert.NotContains(t, out, "No primary key")
}

func TestSQLFormatterFormatColumnsWithoutPrimaryKey(t *testing.T) {
	m := sampleMeta()
	m.PrimaryKey = nil
	out, err := sqlFormatter{}.FormatColumns(m)
	require.NoError(t, err)
	assert.Contains(t, out, "No primary key")

	out, err = sqlFormatter{}.FormatColumns(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSQLFormatterFormatPlan(t *testing.T) {
	out, err := sqlFormatter{}.FormatPlan(samplePlan())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "-- gridedit preview\n"))
	assert.Contains(t, out, "-- SKIPPED (malformed changes)")
	assert.Contains(t, out, "-- - change 1 (update): update has no modified columns")
	assert.Contains(t, out, "-- SQL\n")
	assert.Contains(t, out, `UPDATE "public"."users" SET "name" = 'Ann' WHERE "id" = 1;`)
	assert.Contains(t, out, `DELETE FROM "public"."users" WHERE "id" = 3;`)
	assert.NotContains(t, out, "$1")
}

func TestSQLFormatterFormatPlanEmpty(t *testing.T) {
	for _, p := range []*session.Plan{nil, {}} {
		out, err := sqlFormatter{}.FormatPlan(p)
		require.NoError(t, err)
		assert.Contains(t, out, "-- No pending changes.")
		assert.NotContains(t, out, "-- SQL")
	}
}

func TestSQLFormatterFormatViolations(t *testing.T) {
	out, err := sqlFormatter{}.FormatViolations(sampleViolations())
	require.NoError(t, err)
	assert.Contains(t, out, "-- VALIDATION ERRORS (2)")
	assert.Contains(t, out, `-- - row 0, column "name": null-violation: value is required`)
	assert.Contains(t, out, `-- - row 0, column "mood": enum-invalid`)

	out, err = sqlFormatter{}.FormatViolations(nil)
	require.NoError(t, err)
	assert.Contains(t, out, "-- No validation errors.")
}

func TestSQLFormatterFormatOutcome(t *testing.T) {
	t.Run("blocked", func(t *testing.T) {
		out, err := sqlFormatter{}.FormatOutcome(blockedOutcome())
		require.NoError(t, err)
		assert.Contains(t, out, "-- VALIDATION ERRORS (2)")
		assert.Contains(t, out, "Execution blocked by validation")
		assert.NotContains(t, out, "-- RESULT")
	})

	t.Run("applied", func(t *testing.T) {
		out, err := sqlFormatter{}.FormatOutcome(appliedOutcome())
		require.NoError(t, err)
		assert.Contains(t, out, "-- RESULT\n-- Successfully applied 2 statements\n")
		assert.NotContains(t, out, "failing change")
	})

	t.Run("failed", func(t *testing.T) {
		out, err := sqlFormatter{}.FormatOutcome(failedOutcome())
		require.NoError(t, err)
		assert.Contains(t, out, "-- WARNINGS\n-- - DANGER: statement 2 deletes rows")
		assert.Contains(t, out, `statement 2/2 failed (rolled back): update or delete on table "users" violates foreign key constraint`)
		assert.Contains(t, out, "-- failing change: 2 (row 3)")
	})

	t.Run("nil", func(t *testing.T) {
		out, err := sqlFormatter{}.FormatOutcome(nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestWriteCommentSection(t *testing.T) {
	var sb strings.Builder
	writeCommentSection(&sb, "TITLE", []string{"one\r\ntwo", "", "  three  "})
	assert.Equal(t, "\n-- TITLE\n-- - one\n-- - two\n-- - three\n", sb.String())

	sb.Reset()
	writeCommentSection(&sb, "EMPTY", nil)
	assert.Empty(t, sb.String())
}

func TestSplitCommentLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitCommentLines("a\r\nb\rc"))
	assert.Equal(t, []string{""}, splitCommentLines(""))
}

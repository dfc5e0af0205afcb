package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridedit/internal/core"
	"gridedit/internal/session"
)

func TestSummaryFormatterFormatColumns(t *testing.T) {
	out, err := summaryFormatter{}.FormatColumns(sampleMeta())
	require.NoError(t, err)
	assert.Equal(t, "Table:       public.users\nColumns:     3\nPrimary key: id\n", out)

	m := sampleMeta()
	m.PrimaryKey = nil
	out, err = summaryFormatter{}.FormatColumns(m)
	require.NoError(t, err)
	assert.Contains(t, out, "Primary key: none")

	out, err = summaryFormatter{}.FormatColumns(nil)
	require.NoError(t, err)
	assert.Equal(t, "No table.\n", out)
}

func TestSummaryFormatterFormatPlan(t *testing.T) {
	out, err := summaryFormatter{}.FormatPlan(samplePlan())
	require.NoError(t, err)

	assert.Contains(t, out, "Edit Summary")
	assert.Contains(t, out, "Changes:    +0, ~2, -1")
	assert.Contains(t, out, "Statements: 2")
	assert.Contains(t, out, "Skipped: 1")

	out, err = summaryFormatter{}.FormatPlan(&session.Plan{})
	require.NoError(t, err)
	assert.Equal(t, "No pending changes.\n", out)
}

func TestSummaryFormatterFormatViolations(t *testing.T) {
	v := append(sampleViolations(), core.ValidationError{ColumnName: "age", Kind: core.KindTypeMismatch, ElementIndex: -1})
	out, err := summaryFormatter{}.FormatViolations(v)
	require.NoError(t, err)
	assert.Equal(t, "Validation Errors: 3\n   type-mismatch: 1\n   enum-invalid: 1\n   null-violation: 1\n", out)

	out, err = summaryFormatter{}.FormatViolations(nil)
	require.NoError(t, err)
	assert.Equal(t, "No validation errors.\n", out)
}

func TestSummaryFormatterFormatOutcome(t *testing.T) {
	tests := []struct {
		name     string
		outcome  *session.Outcome
		contains []string
	}{
		{name: "blocked", outcome: blockedOutcome(), contains: []string{"Status: blocked", "Validation Errors: 2"}},
		{name: "applied", outcome: appliedOutcome(), contains: []string{"Status: applied", "Successfully applied 2 statements"}},
		{name: "failed", outcome: failedOutcome(), contains: []string{"Status: failed", "statement 2/2 failed (rolled back)"}},
		{name: "empty", outcome: &session.Outcome{Plan: &session.Plan{}}, contains: []string{"No pending changes."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := summaryFormatter{}.FormatOutcome(tt.outcome)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestCountChanges(t *testing.T) {
	inserts, updates, deletes := countChanges([]core.Change{
		{Kind: core.ChangeInsert}, {Kind: core.ChangeInsert}, {Kind: core.ChangeUpdate}, {Kind: core.ChangeDelete},
	})
	assert.Equal(t, 2, inserts)
	assert.Equal(t, 1, updates)
	assert.Equal(t, 1, deletes)
}

package apply

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridedit/internal/core"
	mysqldialect "gridedit/internal/dialect/mysql"
	"gridedit/internal/dialect/postgresql"
	"gridedit/internal/sqlgen"
)

// recorder is a Conn that keeps committed and rolled back statements apart.
type recorder struct {
	failOn    string
	failErr   error
	committed []string
	rolled    []string
	args      [][]any
	begun     int
}

type recordingTx struct {
	r       *recorder
	pending []string
	done    bool
}

func (r *recorder) exec(query string, args []any) error {
	r.args = append(r.args, args)
	if r.failOn != "" && query == r.failOn {
		return r.failErr
	}
	return nil
}

func (r *recorder) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	if err := r.exec(query, args); err != nil {
		return nil, err
	}
	r.committed = append(r.committed, query)
	return driverResult{}, nil
}

func (r *recorder) BeginTx(context.Context, *sql.TxOptions) (Tx, error) {
	r.begun++
	return &recordingTx{r: r}, nil
}

func (tx *recordingTx) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	if err := tx.r.exec(query, args); err != nil {
		return nil, err
	}
	tx.pending = append(tx.pending, query)
	return driverResult{}, nil
}

func (tx *recordingTx) Commit() error {
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	tx.r.committed = append(tx.r.committed, tx.pending...)
	return nil
}

func (tx *recordingTx) Rollback() error {
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	tx.r.rolled = append(tx.r.rolled, tx.pending...)
	return nil
}

type driverResult struct{}

func (driverResult) LastInsertId() (int64, error) { return 0, nil }
func (driverResult) RowsAffected() (int64, error) { return 1, nil }

func batch(t *testing.T) []sqlgen.Statement {
	t.Helper()
	changes := []core.Change{
		{Kind: core.ChangeInsert, RowID: 10, Data: []core.ColumnValue{{Column: "name", Value: "a"}}},
		{Kind: core.ChangeUpdate, RowID: 11, Data: []core.ColumnValue{{Column: "name", Value: "b"}}, Where: []core.ColumnValue{{Column: "id", Value: int64(2)}}},
		{Kind: core.ChangeDelete, RowID: 12, Where: []core.ColumnValue{{Column: "id", Value: int64(3)}}},
	}
	stmts, skipped := sqlgen.SynthesizeBatch("public", "users", changes)
	require.Empty(t, skipped)
	return stmts
}

func TestNewApplierDefaults(t *testing.T) {
	a := NewApplier(postgresql.New(), Options{})
	assert.NotNil(t, a.out)
	assert.NotNil(t, a.logger)
	assert.NotNil(t, a.analyzer)
	assert.Nil(t, a.DB())
	assert.NoError(t, a.Close())
}

func TestApplyTransactionalSuccess(t *testing.T) {
	rec := &recorder{}
	var out bytes.Buffer
	a := NewApplier(postgresql.New(), Options{Transactional: true, Out: &out})
	a.Use(rec)

	stmts := batch(t)
	res := a.Apply(context.Background(), stmts)

	require.True(t, res.OK())
	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, -1, res.FailedIndex)
	assert.Equal(t, 1, rec.begun)
	assert.Equal(t, []string{stmts[0].SQL, stmts[1].SQL, stmts[2].SQL}, rec.committed)
	assert.Contains(t, out.String(), "Executing statement 3/3...")
	assert.Contains(t, out.String(), "Successfully applied 3 statements")
	assert.Empty(t, res.Message())
}

func TestApplyTransactionalFailureIsAtomic(t *testing.T) {
	stmts := batch(t)
	native := errors.New(`ERROR: duplicate key value violates unique constraint "users_name_key" (SQLSTATE 23505)`)
	rec := &recorder{failOn: stmts[1].SQL, failErr: native}

	a := NewApplier(postgresql.New(), Options{Transactional: true})
	a.Use(rec)
	res := a.Apply(context.Background(), stmts)

	require.False(t, res.OK())
	assert.Empty(t, rec.committed, "no statement of a failed batch may remain")
	assert.Equal(t, []string{stmts[0].SQL}, rec.rolled)
	assert.True(t, res.RolledBack)
	assert.True(t, res.Atomic())
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 1, res.FailedIndex)
	assert.Equal(t, 1, res.ChangeIndex)
	assert.Equal(t, int64(11), res.RowID)
	assert.Same(t, native, res.Err)
	assert.Equal(t, native.Error(), res.Message())
	assert.Contains(t, res.Summary(), "statement 2/3 failed (rolled back)")
}

func TestApplyImmediateFailureIsNotAtomic(t *testing.T) {
	stmts := batch(t)
	native := errors.New("constraint failed")
	rec := &recorder{failOn: stmts[1].SQL, failErr: native}

	var out bytes.Buffer
	a := NewApplier(postgresql.New(), Options{Transactional: false, Out: &out})
	a.Use(rec)
	res := a.Apply(context.Background(), stmts)

	require.False(t, res.OK())
	assert.Equal(t, 0, rec.begun)
	assert.Equal(t, []string{stmts[0].SQL}, rec.committed)
	assert.False(t, res.RolledBack)
	assert.False(t, res.Atomic())
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.FailedIndex)
	assert.Equal(t, "constraint failed", res.Message())
	assert.Contains(t, res.Summary(), "1 statements were already applied and cannot be automatically rolled back")
	assert.Contains(t, out.String(), "without transaction wrapper")
}

func TestApplyFailureKeepsChangeIndexOfSkippedBatch(t *testing.T) {
	changes := []core.Change{
		{Kind: core.ChangeUpdate, Where: []core.ColumnValue{{Column: "id", Value: 1}}},
		{Kind: core.ChangeDelete, RowID: 5, Where: []core.ColumnValue{{Column: "id", Value: 2}}},
	}
	stmts, skipped := sqlgen.SynthesizeBatch("public", "users", changes)
	require.Len(t, skipped, 1)

	rec := &recorder{failOn: stmts[0].SQL, failErr: errors.New("boom")}
	a := NewApplier(postgresql.New(), Options{Transactional: true})
	a.Use(rec)
	res := a.Apply(context.Background(), stmts)

	assert.Equal(t, 0, res.FailedIndex)
	assert.Equal(t, 1, res.ChangeIndex)
}

func TestApplyNotConnected(t *testing.T) {
	a := NewApplier(postgresql.New(), Options{Transactional: true})
	res := a.Apply(context.Background(), batch(t))
	assert.ErrorIs(t, res.Err, ErrNotConnected)
}

func TestApplyEmptyBatch(t *testing.T) {
	rec := &recorder{}
	a := NewApplier(postgresql.New(), Options{Transactional: true})
	a.Use(rec)

	res := a.Apply(context.Background(), nil)
	assert.True(t, res.OK())
	assert.Equal(t, 0, rec.begun)
}

func TestApplyPreflightBlocksBatch(t *testing.T) {
	rec := &recorder{}
	a := NewApplier(postgresql.New(), Options{Transactional: true})
	a.Use(rec)

	stmts := append(batch(t), sqlgen.Statement{SQL: `DELETE FROM "public"."users"`, ChangeIndex: 3})
	res := a.Apply(context.Background(), stmts)

	assert.ErrorIs(t, res.Err, ErrPreflightFailed)
	assert.Contains(t, res.Message(), "DELETE without WHERE")
	assert.Equal(t, 0, rec.begun)
	assert.Empty(t, rec.args)
	assert.False(t, res.Preflight.OK())
}

func TestApplySkipPreflight(t *testing.T) {
	rec := &recorder{}
	a := NewApplier(postgresql.New(), Options{SkipPreflight: true})
	a.Use(rec)

	res := a.Apply(context.Background(), []sqlgen.Statement{{SQL: `DELETE FROM "public"."users"`}})
	assert.True(t, res.OK())
	assert.Nil(t, res.Preflight)
	assert.Len(t, rec.committed, 1)
}

func TestApplyDryRun(t *testing.T) {
	rec := &recorder{}
	var out bytes.Buffer
	a := NewApplier(postgresql.New(), Options{Transactional: true, DryRun: true, Out: &out})
	a.Use(rec)

	res := a.Apply(context.Background(), batch(t))
	assert.True(t, res.OK())
	assert.True(t, res.DryRun)
	assert.Empty(t, rec.args)

	output := out.String()
	assert.Contains(t, output, "DRY RUN MODE")
	assert.Contains(t, output, `INSERT INTO "public"."users" ("name") VALUES ('a')`)
	assert.Contains(t, output, "[DANGER] DELETE will remove rows from the table")
	assert.Contains(t, res.Summary(), "dry run: 3 statements planned")
}

func TestApplyRebindsForMySQL(t *testing.T) {
	rec := &recorder{}
	a := NewApplier(mysqldialect.New(), Options{Transactional: true})
	a.Use(rec)

	stmts, _ := sqlgen.SynthesizeBatch("app", "users", []core.Change{
		{Kind: core.ChangeInsert},
		{Kind: core.ChangeUpdate, Data: []core.ColumnValue{{Column: "tags", Value: []any{"x"}}}, Where: []core.ColumnValue{{Column: "id", Value: int64(1)}}},
	})
	res := a.Apply(context.Background(), stmts)
	require.True(t, res.OK(), res.Message())

	assert.Equal(t, []string{
		`INSERT INTO "app"."users" () VALUES ()`,
		`UPDATE "app"."users" SET "tags" = ? WHERE "id" = ?`,
	}, rec.committed)
	assert.Equal(t, []any{`["x"]`, int64(1)}, rec.args[1])
}

func TestResultSummary(t *testing.T) {
	ok := newResult(2, true)
	ok.Applied = 2
	assert.Equal(t, "Successfully applied 2 statements", ok.Summary())

	beginFailed := newResult(2, true)
	beginFailed.Err = errors.New("conn reset")
	assert.Equal(t, "apply failed: conn reset", beginFailed.Summary())
}

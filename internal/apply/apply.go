// Package apply executes a batch of synthesized row edits against a user
// database. In transactional mode the batch is atomic: any failure rolls back
// every statement. In immediate mode each statement commits on its own and a
// failure stops the batch, leaving earlier statements applied.
package apply

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"gridedit/internal/dialect"
	"gridedit/internal/sqlgen"
)

var (
	ErrNotConnected    = errors.New("not connected to a database")
	ErrPreflightFailed = errors.New("preflight checks failed")
)

// PreflightResult contains warnings and blocking errors found in a batch.
type PreflightResult struct {
	Warnings []Warning
	Errors   []string
}

// OK reports whether the batch may run.
func (p *PreflightResult) OK() bool {
	return p == nil || len(p.Errors) == 0
}

// Warning contains a Level of a warning, message, and the statement it concerns.
type Warning struct {
	Level   WarningLevel
	Message string
	SQL     string
}

// WarningLevel is a const that is expandable for later and contains different levels of danger.
type WarningLevel string

const (
	WarnCaution WarningLevel = "CAUTION"
	WarnDanger  WarningLevel = "DANGER"
)

// Execer runs one statement.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Tx is a started transaction.
type Tx interface {
	Execer
	Commit() error
	Rollback() error
}

// Conn is what the applier needs from a database handle.
type Conn interface {
	Execer
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
}

type dbConn struct {
	db *sql.DB
}

// FromDB adapts a connection pool to Conn.
func FromDB(db *sql.DB) Conn {
	return dbConn{db: db}
}

func (c dbConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c dbConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	return c.db.BeginTx(ctx, opts)
}

// Options struct contains all settings available for one apply.
type Options struct {
	// Transactional wraps the batch in one transaction.
	Transactional bool
	DryRun        bool
	// SkipPreflight disables the statement guard.
	SkipPreflight bool
	Out           io.Writer
	Logger        *zap.Logger
}

// Result is the single outcome of one batch.
type Result struct {
	Total         int              `json:"total"`
	Applied       int              `json:"applied"`
	Transactional bool             `json:"transactional"`
	DryRun        bool             `json:"dryRun,omitempty"`
	RolledBack    bool             `json:"rolledBack,omitempty"`
	FailedIndex   int              `json:"failedIndex"`
	ChangeIndex   int              `json:"changeIndex"`
	RowID         int64            `json:"rowId,omitempty"`
	Preflight     *PreflightResult `json:"preflight,omitempty"`
	// Err is the native database error, unchanged.
	Err error `json:"-"`
}

func newResult(total int, transactional bool) *Result {
	return &Result{Total: total, Transactional: transactional, FailedIndex: -1, ChangeIndex: -1}
}

// OK reports whether every statement was applied.
func (r *Result) OK() bool {
	return r.Err == nil
}

// Atomic reports whether the database is left as if nothing ran on failure.
func (r *Result) Atomic() bool {
	return r.Err == nil || r.RolledBack || r.Applied == 0
}

// Message returns the error text exactly as the database reported it.
func (r *Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Summary is a one-line human description of the outcome.
func (r *Result) Summary() string {
	switch {
	case r.DryRun:
		return fmt.Sprintf("dry run: %d statements planned", r.Total)
	case r.OK():
		return fmt.Sprintf("Successfully applied %d statements", r.Applied)
	case r.FailedIndex < 0:
		return fmt.Sprintf("apply failed: %s", r.Message())
	case r.RolledBack:
		return fmt.Sprintf("statement %d/%d failed (rolled back): %s", r.FailedIndex+1, r.Total, r.Message())
	case r.Transactional:
		return fmt.Sprintf("statement %d/%d failed; rollback also failed: %s", r.FailedIndex+1, r.Total, r.Message())
	default:
		return fmt.Sprintf("statement %d/%d failed: %s; %d statements were already applied and cannot be automatically rolled back",
			r.FailedIndex+1, r.Total, r.Message(), r.Applied)
	}
}

// Applier runs batches for one dialect.
type Applier struct {
	conn     Conn
	db       *sql.DB
	dialect  dialect.Dialect
	options  Options
	analyzer *StatementAnalyzer
	out      io.Writer
	logger   *zap.Logger
}

// NewApplier returns a pointer to Applier for user use, with provided options.
func NewApplier(d dialect.Dialect, options Options) *Applier {
	out := options.Out
	if out == nil {
		out = io.Discard
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{
		dialect:  d,
		options:  options,
		analyzer: NewStatementAnalyzer(),
		out:      out,
		logger:   logger,
	}
}

// We use custom printf to format and print messages to the output writer.
func (a *Applier) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

func (a *Applier) println(args ...any) {
	_, _ = fmt.Fprintln(a.out, args...)
}

// Connect opens a connection pool for the applier's dialect and pings it.
func (a *Applier) Connect(ctx context.Context, dsn string) error {
	db, err := dialect.Open(ctx, a.dialect, dsn)
	if err != nil {
		return err
	}
	a.db = db
	a.conn = FromDB(db)
	return nil
}

// Use attaches an existing connection. The applier does not close it.
func (a *Applier) Use(conn Conn) {
	a.conn = conn
	a.db = nil
}

// DB returns the pool opened by Connect, or nil.
func (a *Applier) DB() *sql.DB {
	return a.db
}

// Close closes a connection opened by Connect.
func (a *Applier) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	a.conn = nil
	return err
}

// PreflightChecks runs the statement guard over the batch.
func (a *Applier) PreflightChecks(statements []sqlgen.Statement) *PreflightResult {
	return a.analyzer.AnalyzeStatements(statements)
}

// Apply runs the batch. It never returns a partial success: either every
// statement was applied or Result.Err is set.
func (a *Applier) Apply(ctx context.Context, statements []sqlgen.Statement) *Result {
	result := newResult(len(statements), a.options.Transactional)

	if !a.options.SkipPreflight {
		result.Preflight = a.PreflightChecks(statements)
		if !result.Preflight.OK() {
			result.Err = fmt.Errorf("%w: %s", ErrPreflightFailed, strings.Join(result.Preflight.Errors, "; "))
			return result
		}
	}

	if a.options.DryRun {
		result.DryRun = true
		a.dryRun(statements, result.Preflight)
		return result
	}

	if a.conn == nil {
		result.Err = ErrNotConnected
		return result
	}
	if len(statements) == 0 {
		return result
	}

	a.logger.Info("applying statements",
		zap.Int("statements", len(statements)),
		zap.Bool("transactional", a.options.Transactional),
	)
	if a.options.Transactional {
		a.applyWithTransaction(ctx, statements, result)
	} else {
		a.applyWithoutTransaction(ctx, statements, result)
	}
	return result
}

// bind turns a neutral statement into the dialect's query and arguments.
func (a *Applier) bind(st sqlgen.Statement) (string, []any, error) {
	query, values := a.dialect.Rebind(st.SQL, st.Values)
	args, err := dialect.BindValues(a.dialect, values)
	if err != nil {
		return "", nil, err
	}
	return query, args, nil
}

func (a *Applier) exec(ctx context.Context, ex Execer, st sqlgen.Statement) error {
	query, args, err := a.bind(st)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, query, args...)
	return err
}

func (a *Applier) fail(result *Result, i int, st sqlgen.Statement, err error) {
	result.FailedIndex = i
	result.ChangeIndex = st.ChangeIndex
	result.RowID = st.RowID
	result.Err = err
	a.logger.Warn("statement failed",
		zap.Int("statement_index", i),
		zap.Int("change_index", st.ChangeIndex),
		zap.Bool("rolled_back", result.RolledBack),
		zap.Int("applied", result.Applied),
	)
}

func (a *Applier) applyWithTransaction(ctx context.Context, statements []sqlgen.Statement, result *Result) {
	tx, err := a.conn.BeginTx(ctx, nil)
	if err != nil {
		result.Err = err
		return
	}

	for i, st := range statements {
		a.printf("Executing statement %d/%d...\n", i+1, len(statements))
		if err := a.exec(ctx, tx, st); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				a.logger.Error("rollback failed", zap.Error(rbErr))
			} else {
				result.RolledBack = true
			}
			result.Applied = 0
			a.fail(result, i, st, err)
			a.printf("execute failed (rolled back): %v\n  Statement: %s\n", err, truncateSQL(st.SQL))
			return
		}
		result.Applied++
	}

	if err := tx.Commit(); err != nil {
		result.Applied = 0
		result.Err = err
		return
	}

	a.printf("Successfully applied %d statements\n", len(statements))
}

func (a *Applier) applyWithoutTransaction(ctx context.Context, statements []sqlgen.Statement, result *Result) {
	a.println("Applying statements without transaction wrapper (each statement commits on its own)")

	for i, st := range statements {
		a.printf("Executing statement %d/%d...\n", i+1, len(statements))
		if err := a.exec(ctx, a.conn, st); err != nil {
			a.fail(result, i, st, err)
			a.printf("statement %d failed: %v\n  Statement: %s\n  %d statements were already applied and cannot be automatically rolled back\n",
				i+1, err, truncateSQL(st.SQL), result.Applied)
			return
		}
		result.Applied++
	}

	a.printf("Successfully applied %d statements\n", len(statements))
}

func (a *Applier) dryRun(statements []sqlgen.Statement, preflight *PreflightResult) {
	a.println("=== DRY RUN MODE ===")

	if preflight != nil {
		a.println("--- Preflight Checks ---")
		if len(preflight.Warnings) == 0 {
			a.println("No warnings")
		}
		for _, w := range preflight.Warnings {
			a.printf("[%s] %s\n", w.Level, w.Message)
			if w.SQL != "" {
				a.printf("    SQL: %s\n", w.SQL)
			}
		}
	}

	a.println("--- Statements to Execute ---")
	for i, st := range statements {
		a.printf("%d. %s\n\n", i+1, st.Preview())
	}

	a.println("=== DRY RUN COMPLETE ===")
	a.println("Run without --dry-run to apply.")
}

// truncateSQL shortens a statement to 80 characters for progress lines.
func truncateSQL(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if utf8.RuneCountInString(stmt) > 80 {
		return string([]rune(stmt)[:77]) + "..."
	}
	return stmt
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gridedit/internal/config"
	"gridedit/internal/core"
	"gridedit/internal/editfile"
	"gridedit/internal/session"
)

var errNoTable = errors.New("--table is required")

// withRuntime runs fn with a connected runtime bounded by the configured timeout.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	rt, err := setup(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.TimeoutDuration())
	defer cancel()
	return fn(ctx, rt)
}

func columnsCmd() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Show the column metadata of a table",
		Example: `  gridedit columns --dsn "postgres://localhost/app" --table public.users
  gridedit columns --dialect sqlite --dsn app.db --table users --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if table == "" {
				return errNoTable
			}
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				schema, name := core.SplitQualifiedName(table, "")
				s, err := session.New(ctx, rt.db, rt.dialect, sessionConfig(rt.cfg, schema, name), session.WithLogger(rt.logger))
				if err != nil {
					return err
				}
				defer s.Close()

				formatted, err := rt.formatter.FormatColumns(s.Meta())
				if err != nil {
					return fmt.Errorf("failed to format output: %w", err)
				}
				return rt.write(formatted)
			})
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Table to describe, optionally schema qualified (required)")
	return cmd
}

// editFlags are shared by the commands that replay an edit file.
type editFlags struct {
	edits string
	table string
}

func (f *editFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.edits, "edits", "e", "", "Path to the TOML edit file (required)")
	cmd.Flags().StringVar(&f.table, "table", "", "Override the table named in the edit file")
}

// load opens a session on the edit file's table and replays its edits.
func (f *editFlags) load(ctx context.Context, rt *runtime) (*session.Session, error) {
	if f.edits == "" {
		return nil, errors.New("--edits is required")
	}
	ef, err := editfile.ParseFile(f.edits)
	if err != nil {
		return nil, err
	}
	if f.table != "" {
		ef.Table = f.table
	}

	schema, table := ef.SchemaTable("")
	s, err := rt.openSession(ctx, schema, table, ef.Page)
	if err != nil {
		return nil, err
	}
	if err := ef.Apply(ctx, s); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to apply %s: %w", f.edits, err)
	}
	return s, nil
}

func previewCmd() *cobra.Command {
	var flags editFlags

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the SQL an edit file would execute",
		Long: `Preview loads the table page named in the edit file, replays the edits and
prints the statements that apply would run. Values are substituted for display
only; nothing is executed.`,
		Example: `  gridedit preview --dsn "postgres://localhost/app" --edits edits.toml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				s, err := flags.load(ctx, rt)
				if err != nil {
					return err
				}
				defer s.Close()

				formatted, err := rt.formatter.FormatPlan(s.Preview())
				if err != nil {
					return fmt.Errorf("failed to format output: %w", err)
				}
				return rt.write(formatted)
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func validateCmd() *cobra.Command {
	var flags editFlags

	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Check the edits of an edit file against the column types",
		Example: `  gridedit validate --dsn "postgres://localhost/app" --edits edits.toml --format summary`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				s, err := flags.load(ctx, rt)
				if err != nil {
					return err
				}
				defer s.Close()

				violations, err := s.Validate(ctx)
				if err != nil {
					return err
				}
				formatted, err := rt.formatter.FormatViolations(violations)
				if err != nil {
					return fmt.Errorf("failed to format output: %w", err)
				}
				if err := rt.write(formatted); err != nil {
					return err
				}
				if len(violations) > 0 {
					return fmt.Errorf("%d validation errors", len(violations))
				}
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func applyCmd() *cobra.Command {
	var flags editFlags

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Validate and execute the edits of an edit file",
		Long: `Apply replays the edit file, validates the resulting changes and executes them.

Before anything runs:
- Values are validated against the column types unless --bypass-validation is set
- Every statement is parsed and must be a single INSERT, UPDATE or DELETE
- UPDATE and DELETE statements must carry a WHERE clause

With --transaction (the default) a failing statement rolls back the whole
batch. With --transaction=false statements run one by one and the first
failure stops the batch; earlier statements stay applied.`,
		Example: `  gridedit apply --dsn "postgres://localhost/app" --edits edits.toml
  gridedit apply --dsn "postgres://localhost/app" --edits edits.toml --dry-run
  gridedit apply --dialect mysql --dsn "user:pass@tcp(localhost:3306)/app" --edits edits.toml --transaction=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				s, err := flags.load(ctx, rt)
				if err != nil {
					return err
				}
				defer s.Close()

				outcome, execErr := s.Execute(ctx)
				if outcome == nil {
					return execErr
				}
				formatted, err := rt.formatter.FormatOutcome(outcome)
				if err != nil {
					return fmt.Errorf("failed to format output: %w", err)
				}
				if err := rt.write(formatted); err != nil {
					return err
				}
				if execErr != nil {
					return execErr
				}

				switch {
				case outcome.Blocked():
					return fmt.Errorf("execution blocked by %d validation errors", len(outcome.Violations))
				case outcome.Result != nil && !outcome.Result.OK():
					return errors.New("execution failed")
				}
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().Bool(config.FlagNames[config.KeyBypassValidation], false, "Execute even when values fail validation")
	cmd.Flags().BoolP(config.FlagNames[config.KeyTransactional], "t", true, "Run the batch in one transaction")
	cmd.Flags().BoolP(config.FlagNames[config.KeyDryRun], "d", false, "Print the plan and run preflight checks without executing")
	return cmd
}

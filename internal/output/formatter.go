// Package output provides a set of formatters for table metadata, edit plans,
// validation errors and execution outcomes. It provides three formats: SQL,
// JSON and a compact summary.
package output

import (
	"fmt"
	"io"
	"strings"

	"gridedit/internal/core"
	"gridedit/internal/session"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatSQL     Format = "sql"
	FormatJSON    Format = "json"
	FormatSummary Format = "summary"
)

// Formatter renders the results of the CLI commands.
type Formatter interface {
	FormatColumns(*core.TableMeta) (string, error)
	FormatPlan(*session.Plan) (string, error)
	FormatViolations([]core.ValidationError) (string, error)
	FormatOutcome(*session.Outcome) (string, error)
}

// NewFormatter creates a new Formatter instance based on the given name.
// If no format is specified, defaults to SQL format.
func NewFormatter(name string) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatSQL:
		return sqlFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	case FormatSummary:
		return summaryFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'sql', 'json', or 'summary'", name)
	}
}

// Write formats with fn and writes the result to w.
func Write[T any](w io.Writer, fn func(T) (string, error), v T) error {
	content, err := fn(v)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, content)
	return err
}

// Status names the state of an outcome: empty, blocked, dry-run, applied or failed.
func Status(o *session.Outcome) string {
	switch {
	case o == nil:
		return "empty"
	case o.Blocked():
		return "blocked"
	case o.Result == nil:
		return "empty"
	case o.Result.DryRun:
		return "dry-run"
	case o.Result.OK():
		return "applied"
	default:
		return "failed"
	}
}

func normalizeStatements(stmts []string) []string {
	var out []string
	for _, stmt := range stmts {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if !strings.HasSuffix(stmt, ";") {
			stmt += ";"
		}
		out = append(out, stmt)
	}
	return out
}

func skippedNotes(p *session.Plan) []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Skipped))
	for _, s := range p.Skipped {
		out = append(out, s.Error())
	}
	return out
}

func columnFlags(c core.ColumnDescriptor) []string {
	var flags []string
	if c.PrimaryKey {
		flags = append(flags, "PRIMARY KEY")
	}
	if !c.Nullable {
		flags = append(flags, "NOT NULL")
	}
	if c.HasDefault {
		flags = append(flags, "DEFAULT")
	}
	if len(c.EnumLabels) > 0 {
		flags = append(flags, "ENUM("+strings.Join(c.EnumLabels, ", ")+")")
	}
	if c.References != nil {
		flags = append(flags, "REFERENCES "+core.QualifiedName(c.References.Schema, c.References.Table)+"("+c.References.Column+")")
	}
	return flags
}

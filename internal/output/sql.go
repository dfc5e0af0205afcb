package output

import (
	"fmt"
	"strings"

	"gridedit/internal/apply"
	"gridedit/internal/core"
	"gridedit/internal/session"
)

type sqlFormatter struct{}

// FormatColumns lists the column descriptors as SQL comments.
func (sqlFormatter) FormatColumns(m *core.TableMeta) (string, error) {
	if m == nil {
		return "", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "-- gridedit columns: %s\n", m.QualifiedName())
	if len(m.PrimaryKey) == 0 {
		sb.WriteString("-- No primary key: rows are matched on all original values.\n")
	}
	sb.WriteString("\n")
	for _, c := range m.Columns {
		fmt.Fprintf(&sb, "-- %s %s [%s]", c.Name, c.DeclaredType, c.Category())
		if flags := columnFlags(c); len(flags) > 0 {
			sb.WriteString(" " + strings.Join(flags, " "))
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// FormatPlan renders the plan as display SQL with values substituted.
func (sqlFormatter) FormatPlan(p *session.Plan) (string, error) {
	var sb strings.Builder
	writePlan(&sb, p)
	return sb.String(), nil
}

// FormatViolations renders validation errors as SQL comments.
func (sqlFormatter) FormatViolations(v []core.ValidationError) (string, error) {
	var sb strings.Builder
	writeViolations(&sb, v)
	return sb.String(), nil
}

// FormatOutcome renders the plan followed by what happened to it.
func (sqlFormatter) FormatOutcome(o *session.Outcome) (string, error) {
	if o == nil {
		return "", nil
	}

	var sb strings.Builder
	writePlan(&sb, o.Plan)

	if o.Blocked() {
		writeViolations(&sb, o.Violations)
		sb.WriteString("\n-- Execution blocked by validation. Nothing was executed.\n")
		return sb.String(), nil
	}
	if o.Result == nil {
		return sb.String(), nil
	}

	writePreflight(&sb, o.Result.Preflight)
	sb.WriteString("\n-- RESULT\n")
	for _, line := range splitCommentLines(o.Result.Summary()) {
		if line != "" {
			sb.WriteString("-- " + line + "\n")
		}
	}
	if o.Result.ChangeIndex >= 0 {
		fmt.Fprintf(&sb, "-- failing change: %d (row %d)\n", o.Result.ChangeIndex, o.Result.RowID)
	}
	return sb.String(), nil
}

func writePlan(sb *strings.Builder, p *session.Plan) {
	sb.WriteString("-- gridedit preview\n")
	sb.WriteString("-- Values are substituted for display only.\n")

	writeCommentSection(sb, "SKIPPED (malformed changes)", skippedNotes(p))

	if p == nil || p.Empty() {
		sb.WriteString("\n-- No pending changes.\n")
		return
	}

	sb.WriteString("\n-- SQL\n")
	for _, stmt := range normalizeStatements(p.Previews()) {
		sb.WriteString(stmt)
		sb.WriteString("\n")
	}
}

func writeViolations(sb *strings.Builder, v []core.ValidationError) {
	if len(v) == 0 {
		sb.WriteString("\n-- No validation errors.\n")
		return
	}
	items := make([]string, 0, len(v))
	for _, e := range v {
		items = append(items, e.Error())
	}
	writeCommentSection(sb, fmt.Sprintf("VALIDATION ERRORS (%d)", len(v)), items)
}

func writePreflight(sb *strings.Builder, p *apply.PreflightResult) {
	if p == nil {
		return
	}
	writeCommentSection(sb, "PREFLIGHT ERRORS", p.Errors)
	items := make([]string, 0, len(p.Warnings))
	for _, w := range p.Warnings {
		items = append(items, string(w.Level)+": "+w.Message)
	}
	writeCommentSection(sb, "WARNINGS", items)
}

func writeCommentSection(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n-- " + title + "\n")
	for _, item := range items {
		for _, line := range splitCommentLines(item) {
			if line == "" {
				continue
			}
			sb.WriteString("-- - " + line + "\n")
		}
	}
}

func splitCommentLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines
}

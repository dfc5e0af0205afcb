package output

import (
	"fmt"
	"strings"

	"gridedit/internal/core"
	"gridedit/internal/session"
)

type summaryFormatter struct{}

// FormatColumns formats table metadata as a compact summary.
// Example output:
//
//	Table:       public.users
//	Columns:     4
//	Primary key: id
func (summaryFormatter) FormatColumns(m *core.TableMeta) (string, error) {
	if m == nil {
		return "No table.\n", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Table:       %s\n", m.QualifiedName())
	fmt.Fprintf(&sb, "Columns:     %d\n", len(m.Columns))
	if len(m.PrimaryKey) > 0 {
		fmt.Fprintf(&sb, "Primary key: %s\n", strings.Join(m.PrimaryKey, ", "))
	} else {
		sb.WriteString("Primary key: none\n")
	}
	return sb.String(), nil
}

// FormatPlan counts the pending changes per kind.
func (summaryFormatter) FormatPlan(p *session.Plan) (string, error) {
	if p == nil || (len(p.Changes) == 0 && len(p.Skipped) == 0) {
		return "No pending changes.\n", nil
	}

	var sb strings.Builder
	writePlanSummary(&sb, p)
	return sb.String(), nil
}

// FormatViolations counts validation errors per kind.
func (summaryFormatter) FormatViolations(v []core.ValidationError) (string, error) {
	if len(v) == 0 {
		return "No validation errors.\n", nil
	}

	var sb strings.Builder
	writeViolationSummary(&sb, v)
	return sb.String(), nil
}

// FormatOutcome reports the status of an execution in a few lines.
func (summaryFormatter) FormatOutcome(o *session.Outcome) (string, error) {
	status := Status(o)
	if status == "empty" {
		return "No pending changes.\n", nil
	}

	var sb strings.Builder
	writePlanSummary(&sb, o.Plan)
	fmt.Fprintf(&sb, "\nStatus: %s\n", status)

	if o.Blocked() {
		sb.WriteString("\n")
		writeViolationSummary(&sb, o.Violations)
		return sb.String(), nil
	}
	fmt.Fprintf(&sb, "%s\n", o.Result.Summary())
	if o.Result.Preflight != nil {
		for _, e := range o.Result.Preflight.Errors {
			fmt.Fprintf(&sb, "   - %s\n", e)
		}
	}
	return sb.String(), nil
}

func writePlanSummary(sb *strings.Builder, p *session.Plan) {
	inserts, updates, deletes := countChanges(p.Changes)

	sb.WriteString("Edit Summary\n")
	sb.WriteString("============\n\n")
	fmt.Fprintf(sb, "Changes:    +%d, ~%d, -%d\n", inserts, updates, deletes)
	fmt.Fprintf(sb, "Statements: %d\n", len(p.Statements))

	if len(p.Skipped) > 0 {
		fmt.Fprintf(sb, "\nSkipped: %d\n", len(p.Skipped))
		for _, s := range p.Skipped {
			fmt.Fprintf(sb, "   - %s\n", s.Error())
		}
	}
}

func writeViolationSummary(sb *strings.Builder, v []core.ValidationError) {
	counts := make(map[core.ValidationKind]int)
	for _, e := range v {
		counts[e.Kind]++
	}

	fmt.Fprintf(sb, "Validation Errors: %d\n", len(v))
	for _, kind := range []core.ValidationKind{
		core.KindTypeMismatch, core.KindEnumInvalid, core.KindNullViolation, core.KindFormatInvalid,
	} {
		if n := counts[kind]; n > 0 {
			fmt.Fprintf(sb, "   %s: %d\n", kind, n)
		}
	}
}

func countChanges(changes []core.Change) (inserts, updates, deletes int) {
	for _, c := range changes {
		switch c.Kind {
		case core.ChangeInsert:
			inserts++
		case core.ChangeUpdate:
			updates++
		case core.ChangeDelete:
			deletes++
		}
	}
	return
}

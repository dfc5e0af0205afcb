package output

import (
	"encoding/json"

	"gridedit/internal/apply"
	"gridedit/internal/core"
	"gridedit/internal/session"
)

type jsonFormatter struct{}

type columnPayload struct {
	Name         string              `json:"name"`
	DeclaredType string              `json:"declaredType"`
	Category     core.TypeCategory   `json:"category"`
	Nullable     bool                `json:"nullable"`
	HasDefault   bool                `json:"hasDefault"`
	PrimaryKey   bool                `json:"primaryKey"`
	EnumLabels   []string            `json:"enumLabels,omitempty"`
	References   *core.ForeignKeyRef `json:"references,omitempty"`
}

type columnsPayload struct {
	Format     string          `json:"format"`
	Schema     string          `json:"schema"`
	Table      string          `json:"table"`
	PrimaryKey []string        `json:"primaryKey"`
	Columns    []columnPayload `json:"columns"`
}

type planSummary struct {
	Changes    int `json:"changes"`
	Statements int `json:"statements"`
	Skipped    int `json:"skipped"`
}

type statementPayload struct {
	ChangeIndex int             `json:"changeIndex"`
	RowID       int64           `json:"rowId"`
	Kind        core.ChangeKind `json:"kind"`
	SQL         string          `json:"sql"`
	Values      []any           `json:"values"`
	Preview     string          `json:"preview"`
}

type planPayload struct {
	Format     string             `json:"format"`
	Summary    planSummary        `json:"summary"`
	Statements []statementPayload `json:"statements,omitempty"`
	Skipped    []string           `json:"skipped,omitempty"`
}

type violationsPayload struct {
	Format     string                 `json:"format"`
	Count      int                    `json:"count"`
	Violations []core.ValidationError `json:"violations"`
}

type warningPayload struct {
	Level   apply.WarningLevel `json:"level"`
	Message string             `json:"message"`
}

type resultPayload struct {
	Total           int              `json:"total"`
	Applied         int              `json:"applied"`
	Transactional   bool             `json:"transactional"`
	DryRun          bool             `json:"dryRun"`
	RolledBack      bool             `json:"rolledBack"`
	Atomic          bool             `json:"atomic"`
	FailedIndex     int              `json:"failedIndex"`
	ChangeIndex     int              `json:"changeIndex"`
	RowID           int64            `json:"rowId,omitempty"`
	Message         string           `json:"message,omitempty"`
	Summary         string           `json:"summary"`
	PreflightErrors []string         `json:"preflightErrors,omitempty"`
	Warnings        []warningPayload `json:"warnings,omitempty"`
}

type outcomePayload struct {
	Format     string                 `json:"format"`
	Status     string                 `json:"status"`
	Plan       planPayload            `json:"plan"`
	Violations []core.ValidationError `json:"violations,omitempty"`
	Result     *resultPayload         `json:"result,omitempty"`
	Reloaded   bool                   `json:"reloaded"`
}

type Payload interface {
	columnsPayload | planPayload | violationsPayload | outcomePayload
}

func (jsonFormatter) FormatColumns(m *core.TableMeta) (string, error) {
	payload := columnsPayload{Format: string(FormatJSON), PrimaryKey: []string{}, Columns: []columnPayload{}}
	if m != nil {
		payload.Schema = m.Schema
		payload.Table = m.Table
		if len(m.PrimaryKey) > 0 {
			payload.PrimaryKey = m.PrimaryKey
		}
		for _, c := range m.Columns {
			payload.Columns = append(payload.Columns, columnPayload{
				Name:         c.Name,
				DeclaredType: c.DeclaredType,
				Category:     c.Category(),
				Nullable:     c.Nullable,
				HasDefault:   c.HasDefault,
				PrimaryKey:   c.PrimaryKey,
				EnumLabels:   c.EnumLabels,
				References:   c.References,
			})
		}
	}
	return marshalJSON(payload)
}

func (jsonFormatter) FormatPlan(p *session.Plan) (string, error) {
	return marshalJSON(newPlanPayload(p))
}

func (jsonFormatter) FormatViolations(v []core.ValidationError) (string, error) {
	if v == nil {
		v = []core.ValidationError{}
	}
	return marshalJSON(violationsPayload{Format: string(FormatJSON), Count: len(v), Violations: v})
}

func (jsonFormatter) FormatOutcome(o *session.Outcome) (string, error) {
	payload := outcomePayload{Format: string(FormatJSON), Status: Status(o)}
	if o != nil {
		payload.Plan = newPlanPayload(o.Plan)
		payload.Violations = o.Violations
		payload.Reloaded = o.Reloaded
		payload.Result = newResultPayload(o.Result)
	} else {
		payload.Plan = newPlanPayload(nil)
	}
	return marshalJSON(payload)
}

func newPlanPayload(p *session.Plan) planPayload {
	payload := planPayload{Format: string(FormatJSON)}
	if p == nil {
		return payload
	}
	for _, st := range p.Statements {
		values := st.Values
		if values == nil {
			values = []any{}
		}
		payload.Statements = append(payload.Statements, statementPayload{
			ChangeIndex: st.ChangeIndex,
			RowID:       st.RowID,
			Kind:        st.Kind,
			SQL:         st.SQL,
			Values:      values,
			Preview:     st.Preview(),
		})
	}
	payload.Skipped = skippedNotes(p)
	payload.Summary = planSummary{
		Changes:    len(p.Changes),
		Statements: len(p.Statements),
		Skipped:    len(p.Skipped),
	}
	return payload
}

func newResultPayload(r *apply.Result) *resultPayload {
	if r == nil {
		return nil
	}
	payload := &resultPayload{
		Total:         r.Total,
		Applied:       r.Applied,
		Transactional: r.Transactional,
		DryRun:        r.DryRun,
		RolledBack:    r.RolledBack,
		Atomic:        r.Atomic(),
		FailedIndex:   r.FailedIndex,
		ChangeIndex:   r.ChangeIndex,
		RowID:         r.RowID,
		Message:       r.Message(),
		Summary:       r.Summary(),
	}
	if r.Preflight != nil {
		payload.PreflightErrors = r.Preflight.Errors
		for _, w := range r.Preflight.Warnings {
			payload.Warnings = append(payload.Warnings, warningPayload{Level: w.Level, Message: w.Message})
		}
	}
	return payload
}

func marshalJSON[T Payload](payload T) (string, error) {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gridedit/internal/apply"
	"gridedit/internal/core"
	"gridedit/internal/sqlgen"
)

// Plan is the synthesized form of the pending edits.
type Plan struct {
	Changes    []core.Change            `json:"changes"`
	Statements []sqlgen.Statement       `json:"statements"`
	Skipped    []*sqlgen.SynthesisError `json:"-"`
}

func (p *Plan) Empty() bool {
	return len(p.Statements) == 0
}

// Previews renders every statement with its values substituted.
func (p *Plan) Previews() []string {
	out := make([]string, 0, len(p.Statements))
	for _, st := range p.Statements {
		out = append(out, st.Preview())
	}
	return out
}

// Text is the display form of the whole plan. It is never executed.
func (p *Plan) Text() string {
	if p.Empty() {
		return ""
	}
	return strings.Join(p.Previews(), ";\n") + ";"
}

// Outcome is the single result of Execute.
type Outcome struct {
	Plan       *Plan                  `json:"plan"`
	Violations []core.ValidationError `json:"violations,omitempty"`
	Result     *apply.Result          `json:"result,omitempty"`
	Reloaded   bool                   `json:"reloaded"`
}

// Blocked reports whether validation stopped the batch before execution.
func (o *Outcome) Blocked() bool {
	return len(o.Violations) > 0
}

func (o *Outcome) OK() bool {
	return !o.Blocked() && o.Result != nil && o.Result.OK()
}

// Preview computes and synthesizes the pending edits without touching the database.
func (s *Session) Preview() *Plan {
	changes := s.tracker.ComputeChanges()
	stmts, skipped := sqlgen.SynthesizeBatch(s.cfg.Schema, s.cfg.Table, changes)
	for _, sk := range skipped {
		s.logger.Warn("change skipped", zap.Int("change_index", sk.ChangeIndex), zap.Error(sk.Err))
	}
	return &Plan{Changes: changes, Statements: stmts, Skipped: skipped}
}

// Validate checks the pending edits against the table metadata.
func (s *Session) Validate(ctx context.Context) ([]core.ValidationError, error) {
	return s.validator.Validate(ctx, s.cfg.Schema, s.cfg.Table, s.tracker.ComputeChanges())
}

// Execute runs the pipeline. Validation, unless bypassed, completes before
// anything executes. After a successful apply the drafts are dropped and the
// current page is fetched again. The returned error is reserved for
// infrastructure failures; database errors from the batch are in
// Outcome.Result.
func (s *Session) Execute(ctx context.Context) (*Outcome, error) {
	plan := s.Preview()
	outcome := &Outcome{Plan: plan}
	log := s.logger.With(zap.Int("changes", len(plan.Changes)))

	if plan.Empty() {
		log.Debug("nothing to execute")
		return outcome, nil
	}

	if !s.cfg.BypassValidation {
		violations, err := s.validator.Validate(ctx, s.cfg.Schema, s.cfg.Table, plan.Changes)
		if err != nil {
			return nil, err
		}
		if len(violations) > 0 {
			log.Info("execution blocked by validation", zap.Int("violations", len(violations)))
			outcome.Violations = violations
			return outcome, nil
		}
	}

	outcome.Result = s.applier.Apply(ctx, plan.Statements)
	if !outcome.Result.OK() {
		log.Warn("execution failed",
			zap.Int("statement_index", outcome.Result.FailedIndex),
			zap.Int("change_index", outcome.Result.ChangeIndex),
			zap.Bool("atomic", outcome.Result.Atomic()),
		)
		return outcome, nil
	}
	if outcome.Result.DryRun {
		return outcome, nil
	}

	log.Info("changes applied", zap.Int("statements", outcome.Result.Applied))
	s.tracker.Reset()
	if _, err := s.reload(ctx, s.page, nil); err != nil {
		return outcome, fmt.Errorf("reload after apply: %w", err)
	}
	outcome.Reloaded = true
	return outcome, nil
}

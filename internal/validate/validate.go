// Package validate checks change values against the live column metadata of
// the edited table before anything executes. It never stops at the first
// problem: every offending value in the batch is reported.
package validate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gridedit/internal/core"
)

// MetadataSource supplies the column descriptors of one table, usually from
// the metadata cache.
type MetadataSource interface {
	TableMeta(ctx context.Context, schema, table string) (*core.TableMeta, error)
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger. Only counts are logged, never values.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// Validator checks batches of changes for one metadata source.
type Validator struct {
	source MetadataSource
	logger *zap.Logger
}

func New(source MetadataSource, opts ...Option) *Validator {
	v := &Validator{source: source, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate fetches the metadata of schema.table and checks every change. The
// returned error is set only when the metadata cannot be read.
func (v *Validator) Validate(ctx context.Context, schema, table string, changes []core.Change) ([]core.ValidationError, error) {
	meta, err := v.source.TableMeta(ctx, schema, table)
	if err != nil {
		return nil, fmt.Errorf("load metadata for %s: %w", core.QualifiedName(schema, table), err)
	}

	errs := Check(meta, changes)
	v.logger.Debug("validated changes",
		zap.String("schema", schema),
		zap.String("table", table),
		zap.Int("changes", len(changes)),
		zap.Int("violations", len(errs)),
	)
	return errs, nil
}

// Check validates changes against meta. The result is empty when every value
// is acceptable.
func Check(meta *core.TableMeta, changes []core.Change) []core.ValidationError {
	var errs []core.ValidationError
	for i := range changes {
		errs = append(errs, checkChange(meta, i, &changes[i])...)
	}
	return errs
}

func checkChange(meta *core.TableMeta, index int, ch *core.Change) []core.ValidationError {
	// Deletes only carry values read back from the database.
	if ch.Kind == core.ChangeDelete {
		return nil
	}

	var errs []core.ValidationError
	report := func(column string, f *Finding) {
		errs = append(errs, core.ValidationError{
			RowIndex:     index,
			RowID:        ch.RowID,
			ColumnName:   column,
			Kind:         f.Kind,
			Message:      f.Message,
			ElementIndex: f.ElementIndex,
		})
	}

	for _, cv := range ch.Data {
		col := meta.Column(cv.Column)
		if col == nil {
			continue
		}
		if f := CheckValue(col, cv.Value); f != nil {
			report(cv.Column, f)
		}
	}

	if ch.Kind == core.ChangeInsert {
		for i := range meta.Columns {
			col := &meta.Columns[i]
			if col.Nullable || col.HasDefault || ch.HasData(col.Name) {
				continue
			}
			report(col.Name, violation(core.KindNullViolation, "a value is required"))
		}
	}
	return errs
}

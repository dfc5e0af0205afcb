package tracker

import (
	"gridedit/internal/core"
)

// DraftUpdate is the pending state of one persisted row.
type DraftUpdate struct {
	Current core.Record `json:"current"`
	Deleted bool        `json:"deleted"`
}

// DraftSnapshot captures unpersisted edits so a reload does not lose them.
// Updates are keyed by identity key.
type DraftSnapshot struct {
	Updates map[string]DraftUpdate `json:"updates"`
	Inserts []RowState             `json:"inserts"`
}

// Empty reports whether the snapshot carries no edits.
func (d *DraftSnapshot) Empty() bool {
	return d == nil || (len(d.Updates) == 0 && len(d.Inserts) == 0)
}

// IdentityKey returns the key used to match a row to its freshly fetched
// counterpart: the ordered primary key values, or the whole row when the
// table has no primary key. Without a primary key, duplicate rows share a key.
func (t *Tracker) IdentityKey(r core.Record) string {
	return t.identityKey(r)
}

func (t *Tracker) identityKey(r core.Record) string {
	cols := t.primaryKey
	if len(cols) == 0 {
		cols = t.columns
	}
	vals := make([]any, 0, len(cols))
	for _, c := range cols {
		vals = append(vals, r[c])
	}
	return core.CanonicalJSON(vals)
}

// IsRowModified reports whether the row is new, deleted, or has at least
// one column whose current value differs from the original.
func (t *Tracker) IsRowModified(r *RowState) bool {
	if r.IsNew || r.Deleted {
		return true
	}
	return len(t.modifiedColumns(r)) > 0
}

// ModifiedColumns returns the columns whose current value differs from the
// original, in declared order.
func (t *Tracker) ModifiedColumns(id int64) ([]string, error) {
	r, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	return t.modifiedColumns(r), nil
}

func (t *Tracker) modifiedColumns(r *RowState) []string {
	var cols []string
	for _, c := range t.columns {
		if !core.Equal(r.Original[c], r.Current[c]) {
			cols = append(cols, c)
		}
	}
	return cols
}

// HasPendingChanges reports whether any row would produce a change.
func (t *Tracker) HasPendingChanges() bool {
	for _, r := range t.rows {
		if t.IsRowModified(r) {
			return true
		}
	}
	return false
}

// ComputeChanges returns one change per qualifying row in collection order.
// New rows become inserts, deleted persisted rows become deletes and rows
// with modified columns become updates carrying only those columns. Rows
// without a net change produce nothing.
func (t *Tracker) ComputeChanges() []core.Change {
	var changes []core.Change
	for _, r := range t.rows {
		switch {
		case r.IsNew && r.Deleted:
			continue
		case r.IsNew:
			changes = append(changes, core.Change{
				Kind:  core.ChangeInsert,
				RowID: r.ID,
				Data:  t.insertData(r),
			})
		case r.Deleted:
			changes = append(changes, core.Change{
				Kind:  core.ChangeDelete,
				RowID: r.ID,
				Where: t.whereFor(r),
			})
		default:
			cols := t.modifiedColumns(r)
			if len(cols) == 0 {
				continue
			}
			data := make([]core.ColumnValue, 0, len(cols))
			for _, c := range cols {
				data = append(data, core.ColumnValue{Column: c, Value: core.CloneValue(r.Current[c])})
			}
			changes = append(changes, core.Change{
				Kind:  core.ChangeUpdate,
				RowID: r.ID,
				Data:  data,
				Where: t.whereFor(r),
			})
		}
	}
	return changes
}

// Draft captures the pending edits of the collection.
func (t *Tracker) Draft() *DraftSnapshot {
	d := &DraftSnapshot{Updates: make(map[string]DraftUpdate)}
	for _, r := range t.rows {
		if r.IsNew {
			if !r.Deleted {
				d.Inserts = append(d.Inserts, r.clone())
			}
			continue
		}
		if !t.IsRowModified(r) {
			continue
		}
		d.Updates[t.identityKey(r.Original)] = DraftUpdate{
			Current: r.Current.Clone(),
			Deleted: r.Deleted,
		}
	}
	return d
}

// insertData holds the non-null current values in declared order, so
// database defaults apply to untouched columns.
func (t *Tracker) insertData(r *RowState) []core.ColumnValue {
	data := make([]core.ColumnValue, 0, len(t.columns))
	for _, c := range t.columns {
		v := r.Current[c]
		if v == nil {
			continue
		}
		data = append(data, core.ColumnValue{Column: c, Value: core.CloneValue(v)})
	}
	return data
}

// whereFor always binds the original values, never the current ones.
func (t *Tracker) whereFor(r *RowState) []core.ColumnValue {
	cols := t.primaryKey
	if len(cols) == 0 {
		cols = t.columns
	}
	where := make([]core.ColumnValue, 0, len(cols))
	for _, c := range cols {
		where = append(where, core.ColumnValue{Column: c, Value: core.CloneValue(r.Original[c])})
	}
	return where
}

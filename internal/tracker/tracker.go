// Package tracker keeps the client-side working copy of a page of table rows.
// Rows live in an arena indexed by a synthetic session-local id; anything that
// needs to point at a row stores that id, so replacing the whole page on reload
// never leaves a dangling reference.
package tracker

import (
	"errors"
	"fmt"
	"slices"

	"gridedit/internal/core"
)

var (
	ErrRowNotFound     = errors.New("row not found")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrPrimaryKeyEdit  = errors.New("primary key columns of persisted rows cannot be edited")
	ErrEditorNotOpened = errors.New("no structured-value editor is open")
)

// RowState is the working copy of one row together with its last known
// server snapshot. Selected is UI state only and never affects persistence.
type RowState struct {
	ID       int64       `json:"id"`
	Original core.Record `json:"original"`
	Current  core.Record `json:"current"`
	IsNew    bool        `json:"isNew"`
	Deleted  bool        `json:"deleted"`
	Selected bool        `json:"selected"`
}

func (r *RowState) clone() RowState {
	return RowState{
		ID:       r.ID,
		Original: r.Original.Clone(),
		Current:  r.Current.Clone(),
		IsNew:    r.IsNew,
		Deleted:  r.Deleted,
		Selected: r.Selected,
	}
}

// EditorRef identifies the cell currently open in a structured-value editor.
type EditorRef struct {
	RowID  int64
	Column string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPrimaryKeyEdits controls whether primary key columns of rows that
// already exist on the server may be edited. Allowed by default.
func WithPrimaryKeyEdits(allow bool) Option {
	return func(t *Tracker) {
		t.allowPKEdits = allow
	}
}

// Tracker owns the row collection of one editing session. It is not safe for
// concurrent use: all mutation happens sequentially in response to UI events.
type Tracker struct {
	columns      []string
	primaryKey   []string
	rows         []*RowState
	index        map[int64]int
	nextID       int64
	allowPKEdits bool
	editor       *EditorRef
}

// New creates an empty tracker for a table with the given columns (in
// declared order) and primary key columns.
func New(columns, primaryKey []string, opts ...Option) *Tracker {
	t := &Tracker{
		columns:      slices.Clone(columns),
		primaryKey:   slices.Clone(primaryKey),
		index:        make(map[int64]int),
		allowPKEdits: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Columns returns the declared column names.
func (t *Tracker) Columns() []string {
	return slices.Clone(t.columns)
}

// PrimaryKey returns the primary key column names.
func (t *Tracker) PrimaryKey() []string {
	return slices.Clone(t.primaryKey)
}

// SetColumns switches the tracker to new table metadata. Rows are reshaped
// to the new columns and ids keep counting from where they were, so ids
// handed out earlier never resolve to a different row. An open editor on a
// column that no longer exists is closed.
func (t *Tracker) SetColumns(columns, primaryKey []string) {
	t.columns = slices.Clone(columns)
	t.primaryKey = slices.Clone(primaryKey)
	for _, r := range t.rows {
		r.Original = core.NormalizeRecord(r.Original, t.columns)
		r.Current = core.NormalizeRecord(r.Current, t.columns)
	}
	if t.editor != nil && !slices.Contains(t.columns, t.editor.Column) {
		t.editor = nil
	}
}

// LoadPage replaces the collection with freshly fetched server rows. Edits
// from prior are re-applied to the matching rows by identity key, while
// Original always holds the fresh server value. Draft inserts are appended
// after the server rows.
func (t *Tracker) LoadPage(serverRows []core.Record, primaryKey []string, prior *DraftSnapshot) []RowState {
	editorKey, editorColumn, keepEditor := t.editorIdentity()

	if primaryKey != nil {
		t.primaryKey = slices.Clone(primaryKey)
	}
	t.rows = make([]*RowState, 0, len(serverRows))
	t.index = make(map[int64]int, len(serverRows))
	t.editor = nil

	for _, sr := range serverRows {
		original := core.NormalizeRecord(sr, t.columns)
		row := &RowState{
			ID:       t.allocID(),
			Original: original,
			Current:  original.Clone(),
		}
		key := t.identityKey(original)
		if prior != nil {
			if upd, ok := prior.Updates[key]; ok {
				row.Current = core.NormalizeRecord(upd.Current, t.columns)
				row.Deleted = upd.Deleted
			}
		}
		if keepEditor && key == editorKey {
			t.editor = &EditorRef{RowID: row.ID, Column: editorColumn}
		}
		t.append(row)
	}

	if prior != nil {
		for _, ins := range prior.Inserts {
			if ins.Deleted {
				continue
			}
			t.append(&RowState{
				ID:       t.allocID(),
				Original: core.NullRecord(t.columns),
				Current:  core.NormalizeRecord(ins.Current, t.columns),
				IsNew:    true,
			})
		}
	}

	return t.Rows()
}

// Rows returns a copy of the collection in order.
func (t *Tracker) Rows() []RowState {
	out := make([]RowState, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r.clone())
	}
	return out
}

// Row returns a copy of the row with the given id.
func (t *Tracker) Row(id int64) (RowState, error) {
	r, err := t.lookup(id)
	if err != nil {
		return RowState{}, err
	}
	return r.clone(), nil
}

// Len returns the number of rows in the collection.
func (t *Tracker) Len() int {
	return len(t.rows)
}

// SetCell sets the current value of one cell.
func (t *Tracker) SetCell(id int64, column string, value core.Value) error {
	r, err := t.lookup(id)
	if err != nil {
		return err
	}
	if !slices.Contains(t.columns, column) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	if !t.allowPKEdits && !r.IsNew && slices.Contains(t.primaryKey, column) {
		return fmt.Errorf("%w: %q", ErrPrimaryKeyEdit, column)
	}
	r.Current[column] = core.CloneValue(value)
	return nil
}

// AddBlankRow appends a new row whose original and current values are all null.
func (t *Tracker) AddBlankRow() RowState {
	r := &RowState{
		ID:       t.allocID(),
		Original: core.NullRecord(t.columns),
		Current:  core.NullRecord(t.columns),
		IsNew:    true,
	}
	t.append(r)
	return r.clone()
}

// DeleteRows removes new rows outright and soft-deletes persisted ones.
// Unknown ids are ignored. It returns the number of rows affected.
func (t *Tracker) DeleteRows(ids ...int64) int {
	affected := 0
	var drop []int64
	for _, id := range ids {
		r, err := t.lookup(id)
		if err != nil {
			continue
		}
		affected++
		if r.IsNew {
			drop = append(drop, id)
			continue
		}
		r.Deleted = true
	}
	if len(drop) > 0 {
		t.remove(drop)
	}
	return affected
}

// RestoreRow reverts a soft delete.
func (t *Tracker) RestoreRow(id int64) error {
	r, err := t.lookup(id)
	if err != nil {
		return err
	}
	r.Deleted = false
	return nil
}

// SelectRows sets the UI selection flag on the given rows.
func (t *Tracker) SelectRows(selected bool, ids ...int64) {
	for _, id := range ids {
		if r, err := t.lookup(id); err == nil {
			r.Selected = selected
		}
	}
}

// DiscardAll drops every pending edit: new rows are removed, soft deletes
// restored and current values reset to the server snapshot.
func (t *Tracker) DiscardAll() {
	kept := t.rows[:0]
	for _, r := range t.rows {
		if r.IsNew {
			continue
		}
		r.Current = r.Original.Clone()
		r.Deleted = false
		kept = append(kept, r)
	}
	t.rows = kept
	t.reindex()
	if t.editor != nil {
		if _, ok := t.index[t.editor.RowID]; !ok {
			t.editor = nil
		}
	}
}

// Reset empties the collection. It is used once a batch has been persisted
// and the page is about to be reloaded without drafts.
func (t *Tracker) Reset() {
	t.rows = nil
	t.index = make(map[int64]int)
	t.editor = nil
}

// OpenEditor records which cell is open in a structured-value editor.
func (t *Tracker) OpenEditor(id int64, column string) error {
	if _, err := t.lookup(id); err != nil {
		return err
	}
	if !slices.Contains(t.columns, column) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	t.editor = &EditorRef{RowID: id, Column: column}
	return nil
}

// CloseEditor forgets the open editor, if any.
func (t *Tracker) CloseEditor() {
	t.editor = nil
}

// Editor returns the cell open in the structured-value editor.
func (t *Tracker) Editor() (EditorRef, bool) {
	if t.editor == nil {
		return EditorRef{}, false
	}
	return *t.editor, true
}

// EditorValue returns the current value of the cell open in the editor.
func (t *Tracker) EditorValue() (core.Value, error) {
	if t.editor == nil {
		return nil, ErrEditorNotOpened
	}
	r, err := t.lookup(t.editor.RowID)
	if err != nil {
		return nil, err
	}
	return core.CloneValue(r.Current[t.editor.Column]), nil
}

func (t *Tracker) editorIdentity() (key, column string, ok bool) {
	if t.editor == nil {
		return "", "", false
	}
	r, err := t.lookup(t.editor.RowID)
	if err != nil || r.IsNew {
		return "", "", false
	}
	return t.identityKey(r.Original), t.editor.Column, true
}

func (t *Tracker) allocID() int64 {
	t.nextID++
	return t.nextID
}

func (t *Tracker) append(r *RowState) {
	t.index[r.ID] = len(t.rows)
	t.rows = append(t.rows, r)
}

func (t *Tracker) remove(ids []int64) {
	t.rows = slices.DeleteFunc(t.rows, func(r *RowState) bool {
		return slices.Contains(ids, r.ID)
	})
	t.reindex()
	if t.editor != nil && slices.Contains(ids, t.editor.RowID) {
		t.editor = nil
	}
}

func (t *Tracker) reindex() {
	t.index = make(map[int64]int, len(t.rows))
	for i, r := range t.rows {
		t.index[r.ID] = i
	}
}

func (t *Tracker) lookup(id int64) (*RowState, error) {
	i, ok := t.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRowNotFound, id)
	}
	return t.rows[i], nil
}

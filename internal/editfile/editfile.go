// Package editfile reads gridedit TOML edit files. An edit file names a table
// and lists row edits; the CLI replays them through a session the same way
// the grid would.
//
//	table = "public.users"
//	page = 0
//
//	[[edits]]
//	action = "update"
//	where = { id = 1 }
//	set = { name = "Ann" }
//	null = ["nickname"]
//
//	[[edits]]
//	action = "insert"
//	set = { name = "Bob" }
//
//	[[edits]]
//	action = "delete"
//	where = { id = 3 }
package editfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"gridedit/internal/core"
	"gridedit/internal/session"
	"gridedit/internal/tracker"
)

// Action is the kind of one edit.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var ErrRowNotMatched = errors.New("no loaded row matches")

// File is one decoded edit file.
type File struct {
	// Table is "table" or "schema.table".
	Table string `toml:"table"`
	Page  int    `toml:"page"`
	Edits []Edit `toml:"edits"`
}

// Edit is one row edit.
type Edit struct {
	Action Action         `toml:"action"`
	Where  map[string]any `toml:"where"`
	Set    map[string]any `toml:"set"`
	Null   []string       `toml:"null"`
}

// ParseFile opens the file at the given path and parses it as an edit file.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("editfile: open file %q: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads TOML content from reader and validates it.
func Parse(r io.Reader) (*File, error) {
	var ef File
	meta, err := toml.NewDecoder(r).Decode(&ef)
	if err != nil {
		return nil, fmt.Errorf("editfile: decode error: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("editfile: unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := ef.validate(); err != nil {
		return nil, err
	}
	return &ef, nil
}

func (f *File) validate() error {
	if strings.TrimSpace(f.Table) == "" {
		return errors.New("editfile: table is required")
	}
	if f.Page < 0 {
		return fmt.Errorf("editfile: page must not be negative, got %d", f.Page)
	}
	for i, e := range f.Edits {
		switch e.Action {
		case ActionInsert:
			if len(e.Where) > 0 {
				return fmt.Errorf("editfile: edit %d: insert does not take where", i+1)
			}
		case ActionUpdate:
			if len(e.Where) == 0 {
				return fmt.Errorf("editfile: edit %d: update requires where", i+1)
			}
			if len(e.Set) == 0 && len(e.Null) == 0 {
				return fmt.Errorf("editfile: edit %d: update requires set or null", i+1)
			}
		case ActionDelete:
			if len(e.Where) == 0 {
				return fmt.Errorf("editfile: edit %d: delete requires where", i+1)
			}
			if len(e.Set) > 0 || len(e.Null) > 0 {
				return fmt.Errorf("editfile: edit %d: delete does not take set or null", i+1)
			}
		default:
			return fmt.Errorf("editfile: edit %d: unknown action %q (want insert, update or delete)", i+1, e.Action)
		}
	}
	return nil
}

// SchemaTable splits Table, using defaultSchema when no schema is given.
func (f *File) SchemaTable(defaultSchema string) (schema, table string) {
	return core.SplitQualifiedName(f.Table, defaultSchema)
}

// Apply replays the edits on s, whose current page must already be loaded.
// Rows are matched on their server values, so an edit never matches a row
// added earlier in the same file.
func (f *File) Apply(ctx context.Context, s *session.Session) error {
	for i, e := range f.Edits {
		if err := applyEdit(ctx, s, e); err != nil {
			return fmt.Errorf("edit %d (%s): %w", i+1, e.Action, err)
		}
	}
	return nil
}

func applyEdit(ctx context.Context, s *session.Session, e Edit) error {
	switch e.Action {
	case ActionInsert:
		reply, err := s.Dispatch(ctx, session.AddRow{})
		if err != nil {
			return err
		}
		return setValues(ctx, s, reply.Row.ID, e)
	case ActionUpdate:
		row, err := matchRow(s.Rows(), e.Where)
		if err != nil {
			return err
		}
		return setValues(ctx, s, row.ID, e)
	case ActionDelete:
		row, err := matchRow(s.Rows(), e.Where)
		if err != nil {
			return err
		}
		_, err = s.Dispatch(ctx, session.DeleteRows{RowIDs: []int64{row.ID}})
		return err
	}
	return fmt.Errorf("unknown action %q", e.Action)
}

func setValues(ctx context.Context, s *session.Session, id int64, e Edit) error {
	cols := make([]string, 0, len(e.Set))
	for c := range e.Set {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	for _, c := range cols {
		if _, err := s.Dispatch(ctx, session.SetCell{RowID: id, Column: c, Value: Value(e.Set[c])}); err != nil {
			return err
		}
	}
	for _, c := range e.Null {
		if _, err := s.Dispatch(ctx, session.SetCell{RowID: id, Column: c, Value: nil}); err != nil {
			return err
		}
	}
	return nil
}

// matchRow finds the single persisted row whose original values equal where.
func matchRow(rows []tracker.RowState, where map[string]any) (tracker.RowState, error) {
	var found []tracker.RowState
	for _, r := range rows {
		if r.IsNew {
			continue
		}
		if matches(r.Original, where) {
			found = append(found, r)
		}
	}
	switch len(found) {
	case 0:
		return tracker.RowState{}, fmt.Errorf("%w %s", ErrRowNotMatched, core.CanonicalJSON(where))
	case 1:
		return found[0], nil
	default:
		return tracker.RowState{}, fmt.Errorf("%d rows match %s; add more columns to where", len(found), core.CanonicalJSON(where))
	}
}

func matches(original core.Record, where map[string]any) bool {
	for col, want := range where {
		got, ok := original[col]
		if !ok || !core.Equal(got, Value(want)) {
			return false
		}
	}
	return true
}

// The decoder marks local dates and times with these locations.
var localLayouts = map[string]string{
	"date-local":     "2006-01-02",
	"time-local":     "15:04:05.999999999",
	"datetime-local": "2006-01-02T15:04:05.999999999",
}

// Value converts decoded TOML values to editor values: local dates and times
// become their ISO text, and nested arrays and tables are converted in turn.
func Value(v any) core.Value {
	switch t := v.(type) {
	case time.Time:
		if layout, ok := localLayouts[t.Location().String()]; ok {
			return t.Format(layout)
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Value(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Value(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Value(e)
		}
		return out
	}
	return v
}

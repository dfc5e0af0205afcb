package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"gridedit/internal/core"
	"gridedit/internal/diff"
	"gridedit/internal/tracker"
)

// Command is one typed request from the grid. Each variant carries its own
// payload; Dispatch is the only entry point that interprets them.
type Command interface {
	CommandName() string
}

type SetCell struct {
	RowID  int64      `json:"rowId"`
	Column string     `json:"column"`
	Value  core.Value `json:"value"`
}

type AddRow struct{}

type DeleteRows struct {
	RowIDs []int64 `json:"rowIds"`
}

type RestoreRow struct {
	RowID int64 `json:"rowId"`
}

type SelectRows struct {
	RowIDs   []int64 `json:"rowIds"`
	Selected bool    `json:"selected"`
}

type OpenEditor struct {
	RowID  int64  `json:"rowId"`
	Column string `json:"column"`
}

type CloseEditor struct{}

type DiscardAll struct{}

// Reload fetches a page (zero based) and keeps pending edits.
type Reload struct {
	Page int `json:"page"`
}

type Preview struct{}

type Validate struct{}

type Execute struct{}

type RefreshMetadata struct{}

func (SetCell) CommandName() string         { return "setCell" }
func (AddRow) CommandName() string          { return "addRow" }
func (DeleteRows) CommandName() string      { return "deleteRows" }
func (RestoreRow) CommandName() string      { return "restoreRow" }
func (SelectRows) CommandName() string      { return "selectRows" }
func (OpenEditor) CommandName() string      { return "openEditor" }
func (CloseEditor) CommandName() string     { return "closeEditor" }
func (DiscardAll) CommandName() string      { return "discardAll" }
func (Reload) CommandName() string          { return "reload" }
func (Preview) CommandName() string         { return "preview" }
func (Validate) CommandName() string        { return "validate" }
func (Execute) CommandName() string         { return "execute" }
func (RefreshMetadata) CommandName() string { return "refreshMetadata" }

var commandFactories = map[string]func() Command{
	"setCell":         func() Command { return &SetCell{} },
	"addRow":          func() Command { return &AddRow{} },
	"deleteRows":      func() Command { return &DeleteRows{} },
	"restoreRow":      func() Command { return &RestoreRow{} },
	"selectRows":      func() Command { return &SelectRows{} },
	"openEditor":      func() Command { return &OpenEditor{} },
	"closeEditor":     func() Command { return &CloseEditor{} },
	"discardAll":      func() Command { return &DiscardAll{} },
	"reload":          func() Command { return &Reload{} },
	"preview":         func() Command { return &Preview{} },
	"validate":        func() Command { return &Validate{} },
	"execute":         func() Command { return &Execute{} },
	"refreshMetadata": func() Command { return &RefreshMetadata{} },
}

// CommandNames lists every known command, sorted.
func CommandNames() []string {
	names := make([]string, 0, len(commandFactories))
	for name := range commandFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeCommand builds the command registered under name from a JSON payload.
// An empty payload leaves the command's zero value.
func DecodeCommand(name string, payload []byte) (Command, error) {
	factory, ok := commandFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q; known commands: %v", name, CommandNames())
	}
	cmd := factory()
	if len(payload) > 0 {
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		if err := dec.Decode(cmd); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", name, err)
		}
	}
	return cmd, nil
}

// EditorState is the cell open in the structured-value editor and its
// current value.
type EditorState struct {
	RowID  int64      `json:"rowId"`
	Column string     `json:"column"`
	Value  core.Value `json:"value"`
}

// Reply carries whatever a command produced. Row-mutating commands return the
// row collection after the change.
type Reply struct {
	Rows       []tracker.RowState     `json:"rows,omitempty"`
	Row        *tracker.RowState      `json:"row,omitempty"`
	Affected   int                    `json:"affected,omitempty"`
	Plan       *Plan                  `json:"plan,omitempty"`
	Violations []core.ValidationError `json:"violations,omitempty"`
	Outcome    *Outcome               `json:"outcome,omitempty"`
	Drift      *diff.TableDiff        `json:"drift,omitempty"`
	Editor     *EditorState           `json:"editor,omitempty"`
}

// Dispatch applies one command to the session.
func (s *Session) Dispatch(ctx context.Context, cmd Command) (*Reply, error) {
	switch c := cmd.(type) {
	case *SetCell:
		return s.Dispatch(ctx, *c)
	case SetCell:
		if err := s.tracker.SetCell(c.RowID, c.Column, normalizeNumber(c.Value)); err != nil {
			return nil, err
		}
	case *AddRow, AddRow:
		row := s.tracker.AddBlankRow()
		return &Reply{Row: &row, Rows: s.tracker.Rows()}, nil
	case *DeleteRows:
		return s.Dispatch(ctx, *c)
	case DeleteRows:
		n := s.tracker.DeleteRows(c.RowIDs...)
		return &Reply{Affected: n, Rows: s.tracker.Rows()}, nil
	case *RestoreRow:
		return s.Dispatch(ctx, *c)
	case RestoreRow:
		if err := s.tracker.RestoreRow(c.RowID); err != nil {
			return nil, err
		}
	case *SelectRows:
		return s.Dispatch(ctx, *c)
	case SelectRows:
		s.tracker.SelectRows(c.Selected, c.RowIDs...)
	case *OpenEditor:
		return s.Dispatch(ctx, *c)
	case OpenEditor:
		if err := s.tracker.OpenEditor(c.RowID, c.Column); err != nil {
			return nil, err
		}
		v, err := s.tracker.EditorValue()
		if err != nil {
			return nil, err
		}
		return &Reply{
			Editor: &EditorState{RowID: c.RowID, Column: c.Column, Value: v},
			Rows:   s.tracker.Rows(),
		}, nil
	case *CloseEditor, CloseEditor:
		s.tracker.CloseEditor()
	case *DiscardAll, DiscardAll:
		s.tracker.DiscardAll()
	case *Reload:
		return s.Dispatch(ctx, *c)
	case Reload:
		rows, err := s.Reload(ctx, c.Page)
		if err != nil {
			return nil, err
		}
		return &Reply{Rows: rows}, nil
	case *Preview, Preview:
		return &Reply{Plan: s.Preview()}, nil
	case *Validate, Validate:
		violations, err := s.Validate(ctx)
		if err != nil {
			return nil, err
		}
		return &Reply{Violations: violations}, nil
	case *Execute, Execute:
		outcome, err := s.Execute(ctx)
		if outcome == nil {
			return nil, err
		}
		return &Reply{Outcome: outcome, Plan: outcome.Plan, Violations: outcome.Violations, Rows: s.tracker.Rows()}, err
	case *RefreshMetadata, RefreshMetadata:
		rows, err := s.RefreshMetadata(ctx)
		if err != nil {
			return nil, err
		}
		return &Reply{Rows: rows, Drift: s.drift}, nil
	case nil:
		return nil, fmt.Errorf("nil command")
	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
	return &Reply{Rows: s.tracker.Rows()}, nil
}

// normalizeNumber converts JSON numbers from decoded payloads into int64 or
// float64 so they compare equal to values scanned from the database.
func normalizeNumber(v core.Value) core.Value {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeNumber(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeNumber(e)
		}
		return out
	}
	return v
}

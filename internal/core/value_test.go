package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{name: "both_nil", a: nil, b: nil, want: true},
		{name: "nil_vs_empty_string", a: nil, b: "", want: false},
		{name: "same_string", a: "x", b: "x", want: true},
		{name: "int_vs_float_same_value", a: int64(1), b: float64(1), want: true},
		{name: "number_vs_numeric_string", a: int64(1), b: "1", want: false},
		{name: "bool", a: true, b: false, want: false},
		{
			name: "map_key_order_ignored",
			a:    map[string]any{"a": 1, "b": map[string]any{"x": 1, "y": 2}},
			b:    map[string]any{"b": map[string]any{"y": 2, "x": 1}, "a": 1},
			want: true,
		},
		{name: "array_order_matters", a: []any{"a", "b"}, b: []any{"b", "a"}, want: false},
		{name: "string_slice_vs_any_slice", a: []string{"a"}, b: []any{"a"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestCanonicalJSONDoesNotEscapeHTML(t *testing.T) {
	assert.Equal(t, `"<a&b>"`, CanonicalJSON("<a&b>"))
}

func TestRecordCloneIsDeep(t *testing.T) {
	orig := Record{"meta": map[string]any{"k": "v"}, "tags": []any{"a"}}
	cp := orig.Clone()

	cp["meta"].(map[string]any)["k"] = "changed"
	cp["tags"].([]any)[0] = "b"

	assert.Equal(t, "v", orig["meta"].(map[string]any)["k"])
	assert.Equal(t, "a", orig["tags"].([]any)[0])
}

func TestNormalizeRecord(t *testing.T) {
	r := NormalizeRecord(Record{"id": 1, "extra": "x"}, []string{"id", "name"})
	require.Len(t, r, 2)
	assert.Equal(t, 1, r["id"])
	v, ok := r["name"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestChangeHelpers(t *testing.T) {
	ch := Change{Kind: ChangeInsert, Data: []ColumnValue{{Column: "a", Value: 1}, {Column: "b", Value: "x"}}}
	assert.Equal(t, []string{"a", "b"}, ch.DataColumns())
	assert.Equal(t, Record{"a": 1, "b": "x"}, ch.DataRecord())
	assert.True(t, ch.HasData("b"))
	assert.False(t, ch.HasData("c"))
}

package dialect

import (
	"encoding/json"
	"strconv"
	"strings"

	"gridedit/internal/core"
)

const defaultValuesSuffix = " DEFAULT VALUES"

// RebindQuestion rewrites $n placeholders to ? markers and orders the values
// the way the markers appear in the text. Placeholders inside quoted
// identifiers or string literals are left alone.
func RebindQuestion(statement string, values []any) (string, []any) {
	var sb strings.Builder
	sb.Grow(len(statement))
	out := make([]any, 0, len(values))

	inSingle, inDouble := false, false
	for i := 0; i < len(statement); i++ {
		ch := statement[i]
		switch {
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
		case ch == '"' && !inSingle:
			inDouble = !inDouble
		case ch == '$' && !inSingle && !inDouble:
			end := i + 1
			for end < len(statement) && statement[end] >= '0' && statement[end] <= '9' {
				end++
			}
			if end == i+1 {
				break
			}
			n, err := strconv.Atoi(statement[i+1 : end])
			if err != nil || n < 1 || n > len(values) {
				break
			}
			sb.WriteByte('?')
			out = append(out, values[n-1])
			i = end - 1
			continue
		}
		sb.WriteByte(ch)
	}
	return sb.String(), out
}

// ExpandDefaultValues rewrites "INSERT INTO t DEFAULT VALUES" to the
// "INSERT INTO t () VALUES ()" form understood by MySQL.
func ExpandDefaultValues(statement string) string {
	if strings.HasPrefix(statement, "INSERT INTO ") && strings.HasSuffix(statement, defaultValuesSuffix) {
		return strings.TrimSuffix(statement, defaultValuesSuffix) + " () VALUES ()"
	}
	return statement
}

// JSONValue encodes structured values as JSON text and returns everything
// else unchanged. It is the binding used by drivers without native array or
// document parameters.
func JSONValue(v any) (any, error) {
	if !core.IsStructured(v) {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

package sqlgen

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gridedit/internal/core"
)

// PreviewWithValues substitutes every positional placeholder with a literal
// rendering of its value. The result is for display only and is never
// executed. Placeholders are matched as whole tokens, so $1 never matches
// inside $10, and quoted identifiers or literals are left untouched.
// Placeholders without a value are kept as written.
func PreviewWithValues(statement string, values []any) string {
	var sb strings.Builder
	sb.Grow(len(statement) + 8*len(values))

	inSingle, inDouble := false, false
	for i := 0; i < len(statement); i++ {
		ch := statement[i]
		switch {
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
		case ch == '"' && !inSingle:
			inDouble = !inDouble
		case ch == '$' && !inSingle && !inDouble && (i == 0 || !isIdentChar(statement[i-1])):
			end := i + 1
			for end < len(statement) && isDigit(statement[end]) {
				end++
			}
			if end == i+1 {
				break
			}
			n, err := strconv.Atoi(statement[i+1 : end])
			if err != nil || n < 1 || n > len(values) {
				break
			}
			sb.WriteString(RenderLiteral(values[n-1]))
			i = end - 1
			continue
		}
		sb.WriteByte(ch)
	}
	return sb.String()
}

// Preview renders the statement with its values substituted.
func (s Statement) Preview() string {
	return PreviewWithValues(s.SQL, s.Values)
}

// RenderLiteral renders a value as a SQL literal for display: strings are
// single-quoted with doubled internal quotes, nil is NULL, structured values
// are JSON-encoded and quoted, booleans and numbers are bare.
func RenderLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return QuoteString(t)
	case []byte:
		return QuoteString(string(t))
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return formatFloat(float64(t), 32)
	case float64:
		return formatFloat(t, 64)
	case json.Number:
		return t.String()
	case time.Time:
		return QuoteString(t.Format(time.RFC3339Nano))
	default:
		if core.IsStructured(v) {
			return QuoteString(core.CanonicalJSON(v))
		}
		return QuoteString(fmt.Sprint(v))
	}
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return QuoteString(strconv.FormatFloat(f, 'g', -1, bits))
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentChar(b byte) bool {
	return b == '_' || isDigit(b) || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

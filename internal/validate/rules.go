package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gridedit/internal/core"
)

var (
	integerRe = regexp.MustCompile(`^[+-]?\d+$`)
	numericRe = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

	dateRe      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe      = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}(:?\d{2})?)?$`)
	timestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([ T]\d{2}:\d{2}(:\d{2}(\.\d+)?)?)?(Z|[+-]\d{2}(:?\d{2})?)?$`)
)

var booleanLiterals = map[string]bool{
	"true": true, "false": true,
	"1": true, "0": true,
	"yes": true, "no": true,
}

// Finding is one rule violation before it is tied to a row.
type Finding struct {
	Kind    core.ValidationKind
	Message string
	// ElementIndex is the offending array element, -1 for scalar values.
	ElementIndex int
}

func violation(kind core.ValidationKind, format string, args ...any) *Finding {
	return &Finding{Kind: kind, Message: fmt.Sprintf(format, args...), ElementIndex: -1}
}

// CheckValue applies the rule of the column's type category to v. It returns
// nil when v is acceptable.
func CheckValue(col *core.ColumnDescriptor, v any) *Finding {
	if v == nil {
		if col.Nullable {
			return nil
		}
		return violation(core.KindNullViolation, "column does not accept NULL")
	}

	switch col.Category() {
	case core.CategoryInteger:
		if !isWholeNumber(v) {
			return violation(core.KindTypeMismatch, "%s is not a whole number", describe(v))
		}
	case core.CategoryNumeric:
		if !isNumber(v) {
			return violation(core.KindTypeMismatch, "%s is not a number", describe(v))
		}
	case core.CategoryBoolean:
		if !isBoolean(v) {
			return violation(core.KindTypeMismatch, "%s is not a boolean", describe(v))
		}
	case core.CategoryEnum:
		labels := enumLabels(col)
		if !hasLabel(labels, v) {
			return violation(core.KindEnumInvalid, "%s is not one of %s", describe(v), strings.Join(labels, ", "))
		}
	case core.CategoryEnumArray:
		return checkEnumArray(enumLabels(col), v)
	case core.CategoryDate, core.CategoryTimestamp:
		if !matchesTemporal(v, timestampRe) {
			return violation(core.KindFormatInvalid, "%s is not a valid date or timestamp", describe(v))
		}
	case core.CategoryTime:
		if !matchesTemporal(v, timeRe, timestampRe) {
			return violation(core.KindFormatInvalid, "%s is not a valid time", describe(v))
		}
	case core.CategoryUUID:
		if !isUUID(v) {
			return violation(core.KindFormatInvalid, "%s is not a UUID", describe(v))
		}
	}
	return nil
}

// enumLabels falls back to parsing an inline enum('a','b') declaration when
// the metadata source did not list labels.
func enumLabels(col *core.ColumnDescriptor) []string {
	if len(col.EnumLabels) > 0 {
		return col.EnumLabels
	}
	return core.ParseEnumTypeRaw(col.DeclaredType)
}

func hasLabel(labels []string, v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, l := range labels {
		if l == s {
			return true
		}
	}
	return false
}

func checkEnumArray(labels []string, v any) *Finding {
	elems, ok := arrayElements(v)
	if !ok {
		return violation(core.KindTypeMismatch, "%s is not an array", describe(v))
	}
	for i, e := range elems {
		if !hasLabel(labels, e) {
			f := violation(core.KindEnumInvalid, "element %d: %s is not one of %s", i, describe(e), strings.Join(labels, ", "))
			f.ElementIndex = i
			return f
		}
	}
	return nil
}

// arrayElements accepts slices and PostgreSQL array literals such as {a,"b c"}.
func arrayElements(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case string:
		return parseArrayLiteral(t)
	}
	return nil, false
}

func parseArrayLiteral(s string) ([]any, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, false
	}
	body := s[1 : len(s)-1]
	if strings.TrimSpace(body) == "" {
		return []any{}, true
	}

	var (
		out     []any
		cur     strings.Builder
		quoted  bool
		wasQuot bool
	)
	flush := func() {
		elem := cur.String()
		if !wasQuot {
			elem = strings.TrimSpace(elem)
		}
		if !wasQuot && strings.EqualFold(elem, "null") {
			out = append(out, nil)
		} else {
			out = append(out, elem)
		}
		cur.Reset()
		wasQuot = false
	}
	for i := 0; i < len(body); i++ {
		ch := body[i]
		switch {
		case ch == '\\' && quoted && i+1 < len(body):
			i++
			cur.WriteByte(body[i])
		case ch == '"':
			quoted = !quoted
			wasQuot = true
		case ch == ',' && !quoted:
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	if quoted {
		return nil, false
	}
	flush()
	return out, true
}

func isWholeNumber(v any) bool {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return isWholeFloat(float64(t))
	case float64:
		return isWholeFloat(t)
	case json.Number:
		return isWholeString(t.String())
	case string:
		return isWholeString(t)
	}
	return false
}

func isWholeFloat(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
}

// isWholeString accepts signed digit strings and decimals with a zero
// fractional part, e.g. "42", "-7", "3.00".
func isWholeString(s string) bool {
	s = strings.TrimSpace(s)
	if integerRe.MatchString(s) {
		return true
	}
	if !numericRe.MatchString(s) {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && isWholeFloat(f)
}

func isNumber(v any) bool {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return !math.IsNaN(float64(t)) && !math.IsInf(float64(t), 0)
	case float64:
		return !math.IsNaN(t) && !math.IsInf(t, 0)
	case json.Number:
		return numericRe.MatchString(t.String())
	case string:
		return numericRe.MatchString(strings.TrimSpace(t))
	}
	return false
}

func isBoolean(v any) bool {
	switch t := v.(type) {
	case bool:
		return true
	case string:
		return booleanLiterals[strings.ToLower(strings.TrimSpace(t))]
	case int, int64, float64, json.Number:
		return booleanLiterals[fmt.Sprint(t)]
	}
	return false
}

func matchesTemporal(v any, patterns ...*regexp.Regexp) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case string:
		s := strings.TrimSpace(t)
		for _, re := range patterns {
			if re.MatchString(s) {
				return true
			}
		}
	}
	return false
}

// isUUID accepts only the canonical 8-4-4-4-12 form; uuid.Parse alone would
// also take URN and braced spellings.
func isUUID(v any) bool {
	switch t := v.(type) {
	case uuid.UUID:
		return true
	case string:
		s := strings.TrimSpace(t)
		if len(s) != 36 {
			return false
		}
		_, err := uuid.Parse(s)
		return err == nil
	}
	return false
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(t)
	}
	if core.IsStructured(v) {
		return core.CanonicalJSON(v)
	}
	return fmt.Sprint(v)
}

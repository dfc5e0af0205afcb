package core

import (
	"regexp"
	"strings"
)

// TypeCategory is the validation family a declared column type belongs to.
type TypeCategory string

const (
	CategoryInteger   TypeCategory = "integer"
	CategoryNumeric   TypeCategory = "numeric"
	CategoryBoolean   TypeCategory = "boolean"
	CategoryEnum      TypeCategory = "enum"
	CategoryEnumArray TypeCategory = "enum-array"
	CategoryDate      TypeCategory = "date"
	CategoryTime      TypeCategory = "time"
	CategoryTimestamp TypeCategory = "timestamp"
	CategoryUUID      TypeCategory = "uuid"
	CategoryText      TypeCategory = "text"
)

// parenRe matches balanced parentheses and their content so we can
// extract the base type name. Example: "VARCHAR(255)" -> "VARCHAR".
var parenRe = regexp.MustCompile(`\([^)]*\)`)

// wsRe collapses runs of whitespace into a single space after the
// parenthesized parts have been removed.
var wsRe = regexp.MustCompile(`\s+`)

// modifierRe matches MySQL numeric modifiers that are not part of the type name.
var modifierRe = regexp.MustCompile(`\b(unsigned|signed|zerofill)\b`)

type classifyRule struct {
	category TypeCategory
	names    map[string]bool
}

// classifyRules is checked in order against the normalized base type name.
var classifyRules = []classifyRule{
	{category: CategoryBoolean, names: toSet("bool", "boolean")},
	{category: CategoryInteger, names: toSet(
		"smallint", "integer", "int", "bigint", "int2", "int4", "int8",
		"tinyint", "mediumint", "smallserial", "serial", "bigserial",
		"serial2", "serial4", "serial8",
	)},
	{category: CategoryNumeric, names: toSet(
		"real", "float", "float4", "float8", "double", "double precision",
		"numeric", "decimal", "dec", "fixed", "number",
	)},
	{category: CategoryTimestamp, names: toSet(
		"timestamp", "timestamptz", "datetime",
		"timestamp without time zone", "timestamp with time zone",
	)},
	{category: CategoryDate, names: toSet("date")},
	{category: CategoryTime, names: toSet(
		"time", "timetz", "time without time zone", "time with time zone",
	)},
	{category: CategoryUUID, names: toSet("uuid", "uniqueidentifier")},
}

// ClassifyType maps a declared SQL type (e.g. "VARCHAR(255)", "mood[]",
// "tinyint(1)") to its validation category. Enumerated columns are recognized
// by the presence of labels, since their declared type is usually a
// user-defined name.
func ClassifyType(declared string, hasLabels bool) TypeCategory {
	lower := strings.ToLower(strings.TrimSpace(declared))
	if hasLabels {
		if IsArrayType(lower) {
			return CategoryEnumArray
		}
		return CategoryEnum
	}
	if lower == "" || IsArrayType(lower) {
		return CategoryText
	}
	// MySQL stores booleans as tinyint(1).
	if strings.HasPrefix(lower, "tinyint(1)") {
		return CategoryBoolean
	}
	if strings.HasPrefix(lower, "enum(") {
		return CategoryEnum
	}

	base := BaseTypeName(lower)
	for _, rule := range classifyRules {
		if rule.names[base] {
			return rule.category
		}
	}
	return CategoryText
}

// BaseTypeName strips length/precision modifiers and array suffixes from a
// declared type and lower-cases it. Example: "NUMERIC(10, 2)" -> "numeric".
func BaseTypeName(declared string) string {
	s := strings.ToLower(strings.TrimSpace(declared))
	s = strings.TrimSuffix(s, "[]")
	s = parenRe.ReplaceAllString(s, "")
	s = modifierRe.ReplaceAllString(s, "")
	s = wsRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// IsDocumentType reports whether a declared type holds JSON documents.
func IsDocumentType(declared string) bool {
	if IsArrayType(declared) {
		return false
	}
	switch BaseTypeName(declared) {
	case "json", "jsonb":
		return true
	}
	return false
}

// IsArrayType reports whether a declared type denotes an array, either in
// the "elem[]" form or as PostgreSQL's internal "_elem" udt name.
func IsArrayType(declared string) bool {
	s := strings.ToLower(strings.TrimSpace(declared))
	return strings.HasSuffix(s, "[]") || strings.HasPrefix(s, "_") || s == "array"
}

// ParseEnumTypeRaw extracts the labels of a MySQL style enum declaration,
// e.g. "enum('free','pro')" -> ["free", "pro"]. Doubled single quotes inside
// a label are unescaped.
func ParseEnumTypeRaw(raw string) []string {
	raw = strings.TrimSpace(raw)
	open := strings.Index(raw, "(")
	end := strings.LastIndex(raw, ")")
	if open < 0 || end <= open {
		return nil
	}
	body := raw[open+1 : end]

	var labels []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(body); i++ {
		ch := body[i]
		switch {
		case ch == '\'' && inQuote && i+1 < len(body) && body[i+1] == '\'':
			cur.WriteByte('\'')
			i++
		case ch == '\'':
			if inQuote {
				labels = append(labels, cur.String())
				cur.Reset()
			}
			inQuote = !inQuote
		case inQuote:
			cur.WriteByte(ch)
		}
	}
	return labels
}

func toSet(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

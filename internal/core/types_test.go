package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyType(t *testing.T) {
	tests := []struct {
		name      string
		declared  string
		hasLabels bool
		want      TypeCategory
	}{
		{name: "integer", declared: "integer", want: CategoryInteger},
		{name: "bigint_upper", declared: "BIGINT", want: CategoryInteger},
		{name: "int_unsigned_mysql", declared: "int(10) unsigned", want: CategoryInteger},
		{name: "serial", declared: "serial", want: CategoryInteger},
		{name: "numeric_precision", declared: "NUMERIC(10, 2)", want: CategoryNumeric},
		{name: "double_precision", declared: "double precision", want: CategoryNumeric},
		{name: "real", declared: "real", want: CategoryNumeric},
		{name: "boolean", declared: "boolean", want: CategoryBoolean},
		{name: "mysql_tinyint_one", declared: "tinyint(1)", want: CategoryBoolean},
		{name: "tinyint_wide", declared: "tinyint(4)", want: CategoryInteger},
		{name: "timestamp_tz", declared: "timestamp with time zone", want: CategoryTimestamp},
		{name: "timestamp_precision", declared: "timestamp(3) without time zone", want: CategoryTimestamp},
		{name: "datetime", declared: "DATETIME", want: CategoryTimestamp},
		{name: "date", declared: "date", want: CategoryDate},
		{name: "time", declared: "time", want: CategoryTime},
		{name: "uuid", declared: "uuid", want: CategoryUUID},
		{name: "varchar", declared: "character varying(255)", want: CategoryText},
		{name: "point_is_not_int", declared: "point", want: CategoryText},
		{name: "jsonb", declared: "jsonb", want: CategoryText},
		{name: "empty", declared: "", want: CategoryText},
		{name: "int_array_without_labels", declared: "integer[]", want: CategoryText},
		{name: "user_enum", declared: "mood", hasLabels: true, want: CategoryEnum},
		{name: "user_enum_array", declared: "mood[]", hasLabels: true, want: CategoryEnumArray},
		{name: "pg_udt_enum_array", declared: "_mood", hasLabels: true, want: CategoryEnumArray},
		{name: "mysql_enum", declared: "enum('a','b')", want: CategoryEnum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyType(tt.declared, tt.hasLabels))
		})
	}
}

func TestBaseTypeName(t *testing.T) {
	assert.Equal(t, "varchar", BaseTypeName("  VARCHAR(255)  "))
	assert.Equal(t, "double precision", BaseTypeName("DOUBLE   PRECISION"))
	assert.Equal(t, "mediumint", BaseTypeName("MEDIUMINT UNSIGNED ZEROFILL"))
	assert.Equal(t, "mood", BaseTypeName("mood[]"))
}

func TestIsDocumentType(t *testing.T) {
	assert.True(t, IsDocumentType("jsonb"))
	assert.True(t, IsDocumentType(" JSON "))
	assert.False(t, IsDocumentType("jsonb[]"))
	assert.False(t, IsDocumentType("text"))
}

func TestParseEnumTypeRaw(t *testing.T) {
	assert.Equal(t, []string{"free", "pro", "enterprise"}, ParseEnumTypeRaw("enum('free','pro','enterprise')"))
	assert.Equal(t, []string{"it's", "b"}, ParseEnumTypeRaw("ENUM('it''s', 'b')"))
	assert.Equal(t, []string{"a,b"}, ParseEnumTypeRaw("enum('a,b')"))
	assert.Nil(t, ParseEnumTypeRaw("varchar"))
}

func TestColumnDescriptorHasLabel(t *testing.T) {
	col := ColumnDescriptor{Name: "mood", DeclaredType: "mood", EnumLabels: []string{"happy", "sad"}}
	assert.True(t, col.HasLabel("happy"))
	assert.False(t, col.HasLabel("Happy"))
	assert.Equal(t, CategoryEnum, col.Category())
}

func TestSplitQualifiedName(t *testing.T) {
	schema, table := SplitQualifiedName("public.users", "main")
	assert.Equal(t, "public", schema)
	assert.Equal(t, "users", table)

	schema, table = SplitQualifiedName("users", "main")
	assert.Equal(t, "main", schema)
	assert.Equal(t, "users", table)

	assert.Equal(t, "users", QualifiedName("", "users"))
}

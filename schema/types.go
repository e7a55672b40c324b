package schema

import "strings"

// Canonical scalar type names. Anything outside this set canonicalizes to an
// enum reference (the identifier is preserved, case-folded upper).
const (
	TypeText        = "TEXT"
	TypeInteger     = "INTEGER"
	TypeSmallint    = "SMALLINT"
	TypeBigint      = "BIGINT"
	TypeNumeric     = "NUMERIC"
	TypeBoolean     = "BOOLEAN"
	TypeUUID        = "UUID"
	TypeJSON        = "JSON"
	TypeJSONB       = "JSONB"
	TypeDate        = "DATE"
	TypeTime        = "TIME"
	TypeTimetz      = "TIMETZ"
	TypeTimestamp   = "TIMESTAMP"
	TypeTimestamptz = "TIMESTAMPTZ"
)

var scalarTypes = map[string]bool{
	TypeText: true, TypeInteger: true, TypeSmallint: true, TypeBigint: true,
	TypeNumeric: true, TypeBoolean: true, TypeUUID: true, TypeJSON: true,
	TypeJSONB: true, TypeDate: true, TypeTime: true, TypeTimetz: true,
	TypeTimestamp: true, TypeTimestamptz: true,
}

var typeAliases = map[string]string{
	"INT":                         TypeInteger,
	"INT4":                        TypeInteger,
	"INT2":                        TypeSmallint,
	"INT8":                        TypeBigint,
	"BOOL":                        TypeBoolean,
	"DECIMAL":                     TypeNumeric,
	"TIMESTAMP WITH TIME ZONE":    TypeTimestamptz,
	"TIMESTAMP WITHOUT TIME ZONE": TypeTimestamp,
	"TIME WITH TIME ZONE":         TypeTimetz,
	"TIME WITHOUT TIME ZONE":      TypeTime,
}

// TypeRef is a canonicalized column type: a scalar (or enum) base name plus
// an array bit.
type TypeRef struct {
	Base  string
	Array bool
}

// CanonicalType maps an arbitrary surface type string to its canonical form.
// Unmapped non-scalar bases are treated as enum references.
func CanonicalType(surface string) TypeRef {
	s := strings.ToUpper(strings.TrimSpace(surface))
	var arr bool
	if strings.HasSuffix(s, "[]") {
		arr = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "[]"))
	}
	if mapped, ok := typeAliases[s]; ok {
		s = mapped
	}
	return TypeRef{Base: s, Array: arr}
}

// IsScalar reports whether the base is a builtin scalar.
func (t TypeRef) IsScalar() bool { return scalarTypes[t.Base] }

// String returns the canonical label, with the [] suffix iff array.
func (t TypeRef) String() string {
	if t.Array {
		return t.Base + "[]"
	}
	return t.Base
}

// IsIntegerFamily reports whether base is one of the integer scalars.
func IsIntegerFamily(base string) bool {
	return base == TypeInteger || base == TypeSmallint || base == TypeBigint
}

// IsTemporal reports whether base is a date/time scalar.
func IsTemporal(base string) bool {
	switch base {
	case TypeDate, TypeTime, TypeTimetz, TypeTimestamp, TypeTimestamptz:
		return true
	}
	return false
}

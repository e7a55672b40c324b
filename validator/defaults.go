// Package validator runs the second normalization pass over a model: it
// validates every declared default value against the column's canonical type
// and renders its SQL emission, and it parses CHECK expressions into SQL.
// Diagnostics accumulate on the model; an invalid model is never migrated.
package validator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inedumozey/morm/check"
	"github.com/inedumozey/morm/schema"
)

// ValidateModel fills DefaultSQL and CheckSQL for every column, appending a
// diagnostic for each invalid default or unparsable check expression.
func ValidateModel(m *schema.Model) {
	for _, c := range m.Columns {
		if c.Virtual {
			continue
		}
		if c.HasDefault && !c.Identity {
			sql, err := RenderDefault(c.Default, c.Type, c.EnumValues)
			if err != nil {
				m.Errors = append(m.Errors, schema.Errf(schema.DefaultInvalid, m.Table, c.Name, "%v", err))
			} else {
				c.DefaultSQL = sql
			}
		}
		if c.Check != "" {
			sql, err := check.Parse(c.Check)
			if err != nil {
				m.Errors = append(m.Errors, schema.Errf(schema.CheckSyntax, m.Table, c.Name, "%v", err))
			} else {
				c.CheckSQL = sql
			}
		}
	}
}

// RenderDefault validates a declared default against (canonical type,
// array-ness, enum values) and returns the SQL expression to emit. Identity
// columns are skipped by ValidateModel; a sentinel that reaches here sits on
// a column whose type it does not match and is rejected.
func RenderDefault(value any, t schema.TypeRef, enumValues []string) (string, error) {
	if t.Array {
		return renderArrayDefault(value, t.Base, enumValues)
	}
	return renderScalarDefault(value, t.Base, enumValues)
}

func renderScalarDefault(value any, base string, enumValues []string) (string, error) {
	if s, ok := value.(string); ok {
		switch strings.TrimSpace(s) {
		case "uuid()":
			if base != schema.TypeUUID {
				return "", fmt.Errorf("uuid() default requires a UUID column, have %s", base)
			}
			return "gen_random_uuid()", nil
		case "now()":
			if !schema.IsTemporal(base) {
				return "", fmt.Errorf("now() default requires a temporal column, have %s", base)
			}
			return nowExpr(base), nil
		case "int()", "smallint()", "bigint()":
			want, _ := schema.IdentitySentinel(s)
			return "", fmt.Errorf("identity sentinel %s is only valid on a %s column", s, want)
		}
	}

	if len(enumValues) > 0 {
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("enum default must be a string, have %T", value)
		}
		for _, v := range enumValues {
			if strings.EqualFold(v, s) {
				return quoteLiteral(v), nil
			}
		}
		return "", fmt.Errorf("%q is not a declared value of enum %s", s, base)
	}

	switch base {
	case schema.TypeInteger, schema.TypeSmallint, schema.TypeBigint:
		return renderIntegerDefault(value)
	case schema.TypeNumeric:
		return renderNumericDefault(value)
	case schema.TypeBoolean:
		if b, ok := value.(bool); ok {
			return strconv.FormatBool(b), nil
		}
		return "", fmt.Errorf("boolean default must be true or false, have %v", value)
	case schema.TypeText:
		if s, ok := value.(string); ok {
			return quoteLiteral(s), nil
		}
		return "", fmt.Errorf("text default must be a string, have %T", value)
	case schema.TypeUUID:
		if s, ok := value.(string); ok {
			if _, err := uuid.Parse(s); err == nil {
				return quoteLiteral(s), nil
			}
			return "", fmt.Errorf("%q is not a valid UUID literal", s)
		}
		return "", fmt.Errorf("uuid default must be a string, have %T", value)
	case schema.TypeJSON, schema.TypeJSONB:
		return renderJSONDefault(value)
	case schema.TypeDate, schema.TypeTime, schema.TypeTimetz, schema.TypeTimestamp, schema.TypeTimestamptz:
		if s, ok := value.(string); ok {
			if isoParsable(s, base) {
				return quoteLiteral(s), nil
			}
			return "", fmt.Errorf("%q is not a parsable %s literal", s, base)
		}
		return "", fmt.Errorf("%s default must be a string literal or now()", base)
	}
	return "", fmt.Errorf("no default supported for type %s", base)
}

func renderArrayDefault(value any, base string, enumValues []string) (string, error) {
	elems, ok := anySlice(value)
	if !ok {
		return "", fmt.Errorf("array default must be a list, have %T", value)
	}
	parts := make([]string, 0, len(elems))
	for i, e := range elems {
		p, err := arrayElement(e, base, enumValues)
		if err != nil {
			return "", fmt.Errorf("element %d: %v", i, err)
		}
		parts = append(parts, p)
	}
	return quoteLiteral("{" + strings.Join(parts, ",") + "}"), nil
}

// arrayElement renders one element for the '{...}' array literal format:
// booleans as t/f, strings double-quoted within the braces, JSON stringified.
func arrayElement(value any, base string, enumValues []string) (string, error) {
	// validity first, with the scalar rules
	if _, err := renderScalarDefault(value, base, enumValues); err != nil {
		return "", err
	}
	switch v := value.(type) {
	case bool:
		if v {
			return "t", nil
		}
		return "f", nil
	case string:
		switch base {
		case schema.TypeJSON, schema.TypeJSONB:
			return braceQuote(v), nil
		default:
			if len(enumValues) > 0 {
				for _, ev := range enumValues {
					if strings.EqualFold(ev, v) {
						return braceQuote(ev), nil
					}
				}
			}
			if schema.IsIntegerFamily(base) || base == schema.TypeNumeric {
				return v, nil
			}
			return braceQuote(v), nil
		}
	case int, int32, int64, float64:
		return fmt.Sprintf("%v", v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return braceQuote(string(b)), nil
	}
}

func renderIntegerDefault(value any) (string, error) {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v != float64(int64(v)) {
			return "", fmt.Errorf("integer default cannot carry a fraction: %v", v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	case string:
		if _, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err != nil {
			return "", fmt.Errorf("%q is not an integer literal", v)
		}
		return strings.TrimSpace(v), nil
	}
	return "", fmt.Errorf("integer default must be a number, have %T", value)
}

func renderNumericDefault(value any) (string, error) {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case string:
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return "", fmt.Errorf("%q is not a numeric literal", v)
		}
		return strings.TrimSpace(v), nil
	}
	return "", fmt.Errorf("numeric default must be a number, have %T", value)
}

func renderJSONDefault(value any) (string, error) {
	switch v := value.(type) {
	case string:
		if !json.Valid([]byte(v)) {
			return "", fmt.Errorf("%q is not valid JSON", v)
		}
		return quoteLiteral(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("default is not JSON-encodable: %v", err)
		}
		return quoteLiteral(string(b)), nil
	}
}

// nowExpr maps now() onto the matching CURRENT_* expression per temporal type.
func nowExpr(base string) string {
	switch base {
	case schema.TypeDate:
		return "CURRENT_DATE"
	case schema.TypeTime:
		return "CURRENT_TIME::time"
	case schema.TypeTimetz:
		return "CURRENT_TIME"
	case schema.TypeTimestamp:
		return "CURRENT_TIMESTAMP::timestamp"
	default:
		return "now()"
	}
}

var isoLayouts = map[string][]string{
	schema.TypeDate:        {"2006-01-02"},
	schema.TypeTime:        {"15:04:05", "15:04"},
	schema.TypeTimetz:      {"15:04:05Z07:00", "15:04:05-07", "15:04:05"},
	schema.TypeTimestamp:   {"2006-01-02T15:04:05", "2006-01-02 15:04:05"},
	schema.TypeTimestamptz: {time.RFC3339, "2006-01-02 15:04:05Z07:00", "2006-01-02 15:04:05-07", "2006-01-02T15:04:05"},
}

func isoParsable(s, base string) bool {
	for _, layout := range isoLayouts[base] {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func anySlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func braceQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

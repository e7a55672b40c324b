package check

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTranslations(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"comparison", "age >= 18", "(age >= 18)"},
		{"strict_equality", "role === 'ADMIN'", "(role = 'ADMIN')"},
		{"loose_equality", "role == 'ADMIN'", "(role = 'ADMIN')"},
		{"strict_inequality", "role !== 'ADMIN'", "(role <> 'ADMIN')"},
		{"loose_inequality", "role != 'ADMIN'", "(role <> 'ADMIN')"},
		{"and", "a > 1 && b < 2", "((a > 1) AND (b < 2))"},
		{"or", "a > 1 || b < 2", "((a > 1) OR (b < 2))"},
		{"keyword_and", "a > 1 AND b < 2", "((a > 1) AND (b < 2))"},
		{"keyword_or_lowercase", "a > 1 or b < 2", "((a > 1) OR (b < 2))"},
		{"not", "!active", "NOT (active)"},
		{"double_not", "!!active", "NOT (NOT (active))"},
		{"literals", "deleted === null || ok === true || ok === false", "(((deleted = NULL) OR (ok = TRUE)) OR (ok = FALSE))"},
		{"arithmetic", "price - discount > 0", "((price - discount) > 0)"},
		{"precedence_mul_over_add", "a + b * 2 > 10", "((a + (b * 2)) > 10)"},
		{"negative_number", "balance >= -100", "(balance >= -100)"},
		{"decimal", "rate < 0.5", "(rate < 0.5)"},
		{"array_literal", "role == ['A', 'B']", "(role = ARRAY['A', 'B'])"},
		{"function_call", "length(name) > 3", "(length(name) > 3)"},
		{"function_no_args", "now() > created_at", "(now() > created_at)"},
		{"string_escape", `note != 'it\'s'`, "(note <> 'it''s')"},
		{"double_quoted_string", `role === "ADMIN"`, "(role = 'ADMIN')"},
		{"parens_no_extra_layer", "(a > 1)", "(a > 1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCompound(t *testing.T) {
	got, err := Parse("age >= 18 && (role === 'ADMIN' || role === 'STUDENT')")
	require.NoError(t, err)
	assert.Equal(t, "((age >= 18) AND ((role = 'ADMIN') OR (role = 'STUDENT')))", got)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unterminated_string", "name == 'abc"},
		{"unexpected_character", "a > 1 ; b < 2"},
		{"trailing_input", "a > 1 b"},
		{"unbalanced_paren", "(a > 1"},
		{"unbalanced_bracket", "role == [1, 2"},
		{"lone_equals", "a = 1"},
		{"lone_ampersand", "a > 1 & b < 2"},
		{"empty_operand", "a > "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			assert.Error(t, err)
		})
	}
}

// Re-parsing the emitted SQL of a pure comparison tree yields the same
// normalized text: the output is a fixed point up to normalization.
func TestParseNormalizationStable(t *testing.T) {
	srcs := []string{
		"age >= 18 && (role === 'ADMIN' || role === 'STUDENT')",
		"a + b * 2 > 10",
		"!done && count < 5",
	}
	for _, src := range srcs {
		first, err := Parse(src)
		require.NoError(t, err)

		resurfaced := replaceSQLOps(first)
		second, err := Parse(resurfaced)
		require.NoError(t, err)
		assert.Equal(t, Normalize(first), Normalize(second), "source %q", src)
	}
}

// replaceSQLOps maps the emitted SQL operators back into the source
// language so the output can be fed through the parser again.
func replaceSQLOps(sql string) string {
	r := sql
	for _, p := range [][2]string{
		{" AND ", " && "}, {" OR ", " || "},
		{" = ", " == "}, {" <> ", " != "},
		{"NOT (", "!("},
	} {
		r = strings.ReplaceAll(r, p[0], p[1])
	}
	return r
}

func TestNormalize(t *testing.T) {
	assert.Equal(t,
		Normalize(`CHECK (((age >= 18) AND ((role = 'ADMIN'::text) OR (role = 'STUDENT'::text))))`),
		Normalize(`((age >= 18) AND ((role = 'ADMIN') OR (role = 'STUDENT')))`),
	)
	assert.Equal(t, "'admin'", Normalize(`'ADMIN'::"USER_ROLE"`))
	assert.Equal(t, "gen_random_uuid", Normalize("gen_random_uuid()"))
}

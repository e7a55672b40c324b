// Package generator assembles DDL text from normalized models. Identifiers
// are always double-quoted with embedded quotes doubled; literals are
// single-quoted the same way.
package generator

import (
	"fmt"
	"strings"

	"github.com/inedumozey/morm/schema"
)

// QuoteIdent double-quotes an identifier.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// TypeSQL renders a canonical type for emission: builtin scalars unquoted,
// enums double-quoted, array suffix preserved.
func TypeSQL(t schema.TypeRef) string {
	base := t.Base
	if !t.IsScalar() {
		base = QuoteIdent(t.Base)
	}
	if t.Array {
		return base + "[]"
	}
	return base
}

// ColumnSQL emits one column fragment for CREATE TABLE / ADD COLUMN.
// Virtual columns emit nothing.
func ColumnSQL(c *schema.Column) string {
	if c.Virtual {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(QuoteIdent(c.Name))
	sb.WriteString(" ")
	sb.WriteString(TypeSQL(c.Type))

	if c.Identity {
		sb.WriteString(" GENERATED ALWAYS AS IDENTITY")
	}

	if c.Primary {
		sb.WriteString(" PRIMARY KEY")
	} else {
		if c.Unique {
			sb.WriteString(" UNIQUE")
		}
		if c.NotNull {
			sb.WriteString(" NOT NULL")
		}
	}

	if c.DefaultSQL != "" && !c.Identity {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(c.DefaultSQL)
	}

	if c.CheckSQL != "" {
		sb.WriteString(" CHECK (")
		sb.WriteString(c.CheckSQL)
		sb.WriteString(")")
	}

	if r := c.Reference; r != nil && r.Kind != schema.ManyToMany {
		sb.WriteString(referenceSQL(r))
	}

	return sb.String()
}

func referenceSQL(r *schema.Reference) string {
	onDelete := r.OnDelete
	if onDelete == "" {
		onDelete = "NO ACTION"
	}
	onUpdate := r.OnUpdate
	if onUpdate == "" {
		onUpdate = "NO ACTION"
	}
	return fmt.Sprintf(" REFERENCES %s(%s) ON DELETE %s ON UPDATE %s",
		QuoteIdent(r.Table), QuoteIdent(r.Column), onDelete, onUpdate)
}

// CreateTableSQL emits the full CREATE TABLE statement for a model, or the
// empty string when the model failed validation or has no concrete columns.
func CreateTableSQL(m *schema.Model) string {
	if !m.Valid() {
		return ""
	}
	var frags []string
	for _, c := range m.Columns {
		if f := ColumnSQL(c); f != "" {
			frags = append(frags, f)
		}
	}
	if len(frags) == 0 {
		return ""
	}
	return fmt.Sprintf("CREATE TABLE %s (%s);", QuoteIdent(m.Table), strings.Join(frags, ", "))
}

// UpdatedAtFunctionSQL creates (or replaces) the shared trigger function that
// stamps updated_at on every row update.
func UpdatedAtFunctionSQL() string {
	return `CREATE OR REPLACE FUNCTION morm_set_updated_at() RETURNS trigger AS $$
BEGIN
  NEW.updated_at = NOW();
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;`
}

// UpdatedAtTriggerSQL installs the per-table BEFORE UPDATE trigger.
func UpdatedAtTriggerSQL(table string) string {
	return fmt.Sprintf(
		"CREATE TRIGGER %s BEFORE UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION morm_set_updated_at();",
		QuoteIdent("morm_trigger_"+table+"_updated_at"), QuoteIdent(table))
}

package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inedumozey/morm/schema"
	"github.com/inedumozey/morm/validator"
)

func normalized(t *testing.T, cfg schema.ModelConfig, enums ...schema.EnumDef) *schema.Model {
	t.Helper()
	r := schema.NewRegistry()
	for _, e := range enums {
		r.Register(e)
	}
	m := schema.Normalize(cfg, r)
	validator.ValidateModel(m)
	require.True(t, m.Valid(), "model errors: %v", m.Errors)
	return m
}

func TestColumnSQL(t *testing.T) {
	userRole := schema.EnumDef{Name: "USER_ROLE", Values: []string{"ADMIN", "STUDENT"}}

	tests := []struct {
		name string
		col  schema.ColumnConfig
		want string
	}{
		{
			"primary_uuid",
			schema.ColumnConfig{Name: "id", Type: "uuid", Primary: true, Default: "uuid()"},
			`"id" UUID PRIMARY KEY DEFAULT gen_random_uuid()`,
		},
		{
			"identity",
			schema.ColumnConfig{Name: "id", Type: "int", Primary: true, Default: "int()"},
			`"id" INTEGER GENERATED ALWAYS AS IDENTITY PRIMARY KEY`,
		},
		{
			"unique_not_null",
			schema.ColumnConfig{Name: "email", Type: "text", Unique: true, NotNull: boolPtr(true)},
			`"email" TEXT UNIQUE NOT NULL`,
		},
		{
			"enum_default",
			schema.ColumnConfig{Name: "role", Type: "USER_ROLE", Default: "ADMIN"},
			`"role" "USER_ROLE" DEFAULT 'ADMIN'`,
		},
		{
			"array",
			schema.ColumnConfig{Name: "tags", Type: "text[]"},
			`"tags" TEXT[]`,
		},
		{
			"check",
			schema.ColumnConfig{Name: "age", Type: "int", Check: "age >= 18"},
			`"age" INTEGER CHECK ((age >= 18))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := normalized(t, schema.ModelConfig{Table: "t", Columns: []schema.ColumnConfig{tt.col}}, userRole)
			c := m.Column(tt.col.Name)
			require.NotNil(t, c)
			assert.Equal(t, tt.want, ColumnSQL(c))
		})
	}
}

func TestColumnSQLReference(t *testing.T) {
	m := normalized(t, schema.ModelConfig{Table: "post", Columns: []schema.ColumnConfig{
		{Name: "user_id", Type: "uuid", References: &schema.ReferenceConfig{
			Table: "users", Column: "id", Relation: "one-to-many",
		}},
	}})

	got := ColumnSQL(m.Column("user_id"))
	assert.Equal(t, `"user_id" UUID REFERENCES "users"("id") ON DELETE CASCADE ON UPDATE CASCADE`, got)
}

func TestColumnSQLOneToOne(t *testing.T) {
	m := normalized(t, schema.ModelConfig{Table: "profile", Columns: []schema.ColumnConfig{
		{Name: "user_id", Type: "uuid", References: &schema.ReferenceConfig{
			Table: "users", Column: "id", Relation: "1:1", OnDelete: "set null", OnUpdate: "restrict",
		}},
	}})

	got := ColumnSQL(m.Column("user_id"))
	assert.Equal(t, `"user_id" UUID UNIQUE NOT NULL REFERENCES "users"("id") ON DELETE SET NULL ON UPDATE RESTRICT`, got)
}

func TestColumnSQLVirtualEmitsNothing(t *testing.T) {
	m := normalized(t, schema.ModelConfig{Table: "users", Columns: []schema.ColumnConfig{
		{Name: "position_id", Type: "uuid[]", References: &schema.ReferenceConfig{
			Table: "position", Column: "id", Relation: "mm",
		}},
	}})

	assert.Empty(t, ColumnSQL(m.Column("position_id")))
}

func TestCreateTableSQL(t *testing.T) {
	m := normalized(t, schema.ModelConfig{Table: "users", Columns: []schema.ColumnConfig{
		{Name: "id", Type: "uuid", Primary: true, Default: "uuid()"},
		{Name: "email", Type: "text", Unique: true},
	}})

	sql := CreateTableSQL(m)
	assert.Contains(t, sql, `CREATE TABLE "users" (`)
	assert.Contains(t, sql, `"id" UUID PRIMARY KEY DEFAULT gen_random_uuid()`)
	assert.Contains(t, sql, `"email" TEXT UNIQUE`)
	assert.Contains(t, sql, `"created_at" TIMESTAMPTZ NOT NULL DEFAULT now()`)
	assert.Contains(t, sql, `"updated_at" TIMESTAMPTZ NOT NULL DEFAULT now()`)
}

func TestCreateTableSQLInvalidModelEmpty(t *testing.T) {
	r := schema.NewRegistry()
	m := schema.Normalize(schema.ModelConfig{Table: "t", Columns: []schema.ColumnConfig{
		{Name: "x", Type: "mystery"},
	}}, r)

	assert.Empty(t, CreateTableSQL(m))
}

func TestVirtualColumnsExcludedFromCreate(t *testing.T) {
	m := normalized(t, schema.ModelConfig{Table: "users", Columns: []schema.ColumnConfig{
		{Name: "id", Type: "uuid", Primary: true, Default: "uuid()"},
		{Name: "position_id", Type: "uuid[]", References: &schema.ReferenceConfig{
			Table: "position", Column: "id", Relation: "many-to-many",
		}},
	}})

	sql := CreateTableSQL(m)
	assert.NotContains(t, sql, "position_id")
}

func TestTriggerSQL(t *testing.T) {
	fn := UpdatedAtFunctionSQL()
	assert.Contains(t, fn, "morm_set_updated_at()")
	assert.Contains(t, fn, "NEW.updated_at = NOW()")

	trg := UpdatedAtTriggerSQL("users")
	assert.Contains(t, trg, `"morm_trigger_users_updated_at"`)
	assert.Contains(t, trg, `BEFORE UPDATE ON "users" FOR EACH ROW`)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, QuoteIdent("users"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}

func boolPtr(b bool) *bool { return &b }

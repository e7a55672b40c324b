package schema

import (
	"fmt"
	"strings"
)

// Reference is a normalized foreign key declaration.
type Reference struct {
	Table    string
	Column   string
	Kind     RelationKind
	OnDelete string
	OnUpdate string
}

// Column is a normalized column. Exactly one of the declared surface fields
// feeds each derived flag; the differ consumes only this form.
type Column struct {
	Name        string
	Type        TypeRef
	SurfaceType string

	Primary         bool
	Unique          bool
	NotNull         bool
	NotNullExplicit bool

	Default    any
	HasDefault bool
	DefaultSQL string // filled by validator.ValidateModel

	Check    string
	CheckSQL string // filled by validator.ValidateModel

	Reference *Reference

	Identity   bool
	IsEnum     bool
	EnumValues []string

	// Virtual columns exist only in metadata: a MANY-TO-MANY marker produces
	// no DDL on the owning table.
	Virtual bool

	// Renamed is set by the alter-name phase when this column was matched to
	// an existing column of the same canonical type; the FK phase recreates
	// constraints for renamed columns.
	Renamed bool
}

// RelationDesc annotates a model with one edge of the relation graph.
type RelationDesc struct {
	Relation RelationKind
	Table    string // the other side
	Column   string // the declaring column
	Self     bool
}

// Model is a normalized, validated model. After validation it changes only
// through the relation descriptors and reference flags relation.Build
// records and the per-run rename markers on its columns.
type Model struct {
	Table      string
	Columns    []*Column
	Indexes    []string
	PrimaryKey string

	Outgoing []RelationDesc
	Incoming []RelationDesc

	Errors []*Error
}

// Column returns the named column (case-insensitive), or nil.
func (m *Model) Column(name string) *Column {
	name = strings.ToLower(name)
	for _, c := range m.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Valid reports whether the model passed validation. Invalid models are not
// migrated: their create SQL stays empty and the reconciler aborts.
func (m *Model) Valid() bool { return len(m.Errors) == 0 }

func (m *Model) errf(kind ErrorKind, column, format string, args ...any) {
	m.Errors = append(m.Errors, Errf(kind, m.Table, column, format, args...))
}

var identitySentinels = map[string]string{
	"int()":      TypeInteger,
	"smallint()": TypeSmallint,
	"bigint()":   TypeBigint,
}

// IdentitySentinel returns the integer base type a sentinel default maps to.
func IdentitySentinel(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	base, ok := identitySentinels[strings.TrimSpace(s)]
	return base, ok
}

// Normalize turns a declared config into a normalized model: clones columns,
// appends the timestamp pair, lowercases names, derives type/identity/enum/
// virtual flags, and applies the structural invariants (single primary,
// unique column names, recognized types, relation kinds).
//
// Default and CHECK validation is the second pass (validator.ValidateModel);
// both passes append into the same diagnostic list.
func Normalize(cfg ModelConfig, reg *Registry) *Model {
	m := &Model{Table: strings.ToLower(strings.TrimSpace(cfg.Table))}

	cols := make([]ColumnConfig, len(cfg.Columns))
	copy(cols, cfg.Columns)
	if !hasColumn(cols, "created_at") {
		cols = append(cols, timestampColumn("created_at"))
	}
	if !hasColumn(cols, "updated_at") {
		cols = append(cols, timestampColumn("updated_at"))
	}

	seen := map[string]bool{}
	var primary *Column
	for _, cc := range cols {
		c := normalizeColumn(m, cc, reg)
		if seen[c.Name] {
			m.errf(DuplicateColumnName, c.Name, "column declared twice")
			continue
		}
		seen[c.Name] = true
		if c.Primary {
			if primary != nil {
				m.errf(MultiplePrimaryKeys, c.Name, "primary already declared on %q", primary.Name)
				c.Primary = false
			} else {
				primary = c
			}
		}
		m.Columns = append(m.Columns, c)
	}

	if primary != nil {
		m.PrimaryKey = primary.Name
	} else {
		m.PrimaryKey = "id"
	}

	for _, idx := range cfg.Indexes {
		m.Indexes = append(m.Indexes, strings.ToLower(strings.TrimSpace(idx)))
	}

	return m
}

func normalizeColumn(m *Model, cc ColumnConfig, reg *Registry) *Column {
	c := &Column{
		Name:        strings.ToLower(strings.TrimSpace(cc.Name)),
		SurfaceType: cc.Type,
		Type:        CanonicalType(cc.Type),
		Primary:     cc.Primary,
		Unique:      cc.Unique,
		Check:       cc.Check,
	}

	if cc.NotNull != nil {
		c.NotNull = *cc.NotNull
		c.NotNullExplicit = true
	}
	if cc.Default != nil {
		c.Default = cc.Default
		c.HasDefault = true
		if base, ok := IdentitySentinel(cc.Default); ok && !c.Type.Array && c.Type.Base == base {
			c.Identity = true
		}
	}

	if !c.Type.IsScalar() {
		if vals, ok := reg.Get(c.Type.Base); ok {
			c.IsEnum = true
			c.EnumValues = vals
		} else {
			m.errf(TypeUnknown, c.Name, "type %q is neither a scalar nor a registered enum", cc.Type)
		}
	}

	if cc.References != nil {
		ref := &Reference{
			Table:    strings.ToLower(strings.TrimSpace(cc.References.Table)),
			Column:   strings.ToLower(strings.TrimSpace(cc.References.Column)),
			OnDelete: normalizeAction(cc.References.OnDelete),
			OnUpdate: normalizeAction(cc.References.OnUpdate),
		}
		kind, ok := ParseRelationKind(cc.References.Relation)
		if !ok {
			m.errf(RelationKindInvalid, c.Name, "unknown relation kind %q", cc.References.Relation)
			kind = OneToMany
		}
		ref.Kind = kind
		c.Reference = ref

		switch kind {
		case OneToOne:
			c.Unique = true
			if !c.NotNullExplicit {
				c.NotNull = true
			}
		case ManyToMany:
			c.Virtual = true
		}
	}

	if c.Primary {
		c.NotNull = true
	}

	return c
}

// normalizeAction upper-cases a referential action, defaulting to CASCADE.
// Invalid actions are left as written; the relation graph rejects them.
func normalizeAction(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "CASCADE"
	}
	return s
}

func hasColumn(cols []ColumnConfig, name string) bool {
	for _, c := range cols {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return true
		}
	}
	return false
}

func timestampColumn(name string) ColumnConfig {
	notNull := true
	return ColumnConfig{
		Name:    name,
		Type:    TypeTimestamptz,
		NotNull: &notNull,
		Default: "now()",
	}
}

// FkName is the canonical foreign key constraint name for a column.
func FkName(table, column string) string { return fmt.Sprintf("%s_%s_fkey", table, column) }

// CheckName is the canonical check constraint name for a column.
func CheckName(table, column string) string { return fmt.Sprintf("%s_%s_check", table, column) }

// IndexName is the canonical single-column index name.
func IndexName(table, column string) string { return fmt.Sprintf("%s_%s_idx", table, column) }

// UniqueName is the canonical single-column unique constraint name.
func UniqueName(table, column string) string { return fmt.Sprintf("%s_%s_key", table, column) }

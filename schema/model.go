package schema

import "strings"

// RelationKind is the normalized relation between a referencing column and
// its target model.
type RelationKind string

const (
	OneToOne   RelationKind = "ONE-TO-ONE"
	OneToMany  RelationKind = "ONE-TO-MANY"
	ManyToMany RelationKind = "MANY-TO-MANY"
)

var relationAliases = map[string]RelationKind{
	"nn": OneToOne, "1:1": OneToOne, "o2o": OneToOne, "one-to-one": OneToOne,
	"nm": OneToMany, "1:m": OneToMany, "one-to-many": OneToMany,
	"mm": ManyToMany, "m:m": ManyToMany, "many-to-many": ManyToMany,
}

// ParseRelationKind resolves a surface relation string (case-insensitive
// aliases) to its kind. An empty string defaults to ONE-TO-MANY.
func ParseRelationKind(s string) (RelationKind, bool) {
	if s == "" {
		return OneToMany, true
	}
	kind, ok := relationAliases[strings.ToLower(strings.TrimSpace(s))]
	return kind, ok
}

var fkActions = map[string]bool{
	"CASCADE": true, "SET NULL": true, "SET DEFAULT": true,
	"RESTRICT": true, "NO ACTION": true,
}

// ValidFkAction reports whether s is an accepted referential action
// (case-insensitive).
func ValidFkAction(s string) bool {
	return fkActions[strings.ToUpper(strings.TrimSpace(s))]
}

// ReferenceConfig declares a foreign key on a column.
type ReferenceConfig struct {
	Table    string
	Column   string
	Relation string // surface relation kind, see ParseRelationKind
	OnDelete string
	OnUpdate string
}

// ColumnConfig is one declared column. NotNull is a tri-state pointer so a
// ONE-TO-ONE reference can explicitly opt out of the implied NOT NULL.
type ColumnConfig struct {
	Name       string
	Type       string
	Primary    bool
	Unique     bool
	NotNull    *bool
	Default    any
	Check      string
	References *ReferenceConfig
	Sanitize   *bool
}

// ModelConfig is one declared table.
type ModelConfig struct {
	Table    string
	Columns  []ColumnConfig
	Indexes  []string
	Sanitize string // "", "true", "strict"
}

// EnumDef declares one enumerated type.
type EnumDef struct {
	Name   string
	Values []string
}

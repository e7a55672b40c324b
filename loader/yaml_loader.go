// Package loader reads the declarative schema file. The YAML shape mirrors
// the programmatic declaration API one-to-one.
package loader

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inedumozey/morm/schema"
)

type yamlFile struct {
	Enums  []yamlEnum  `yaml:"enums"`
	Tables []yamlTable `yaml:"tables"`
}

type yamlEnum struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

type yamlTable struct {
	Name     string       `yaml:"name"`
	Columns  []yamlColumn `yaml:"columns"`
	Indexes  []string     `yaml:"indexes"`
	Sanitize string       `yaml:"sanitize"`
}

type yamlColumn struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Primary    bool           `yaml:"primary"`
	Unique     bool           `yaml:"unique"`
	NotNull    *bool          `yaml:"notNull"`
	Default    any            `yaml:"default"`
	Check      string         `yaml:"check"`
	References *yamlReference `yaml:"references"`
	Sanitize   *bool          `yaml:"sanitize"`
}

type yamlReference struct {
	Target   string `yaml:"target"` // "table.column"
	Relation string `yaml:"relation"`
	OnDelete string `yaml:"onDelete"`
	OnUpdate string `yaml:"onUpdate"`
}

// Declaration is everything a schema file declares.
type Declaration struct {
	Enums  []schema.EnumDef
	Models []schema.ModelConfig
}

// LoadFile reads and converts a schema YAML file.
func LoadFile(filename string) (*Declaration, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}

	var yf yamlFile
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return nil, fmt.Errorf("unmarshalling YAML: %w", err)
	}

	decl := &Declaration{}
	for _, e := range yf.Enums {
		decl.Enums = append(decl.Enums, schema.EnumDef{Name: e.Name, Values: e.Values})
	}

	for _, t := range yf.Tables {
		model := schema.ModelConfig{
			Table:    t.Name,
			Indexes:  t.Indexes,
			Sanitize: t.Sanitize,
		}
		for _, c := range t.Columns {
			col := schema.ColumnConfig{
				Name:     c.Name,
				Type:     c.Type,
				Primary:  c.Primary,
				Unique:   c.Unique,
				NotNull:  c.NotNull,
				Default:  c.Default,
				Check:    c.Check,
				Sanitize: c.Sanitize,
			}
			if c.References != nil {
				ref, err := parseReference(c.References)
				if err != nil {
					return nil, fmt.Errorf("table %s column %s: %w", t.Name, c.Name, err)
				}
				col.References = ref
			}
			model.Columns = append(model.Columns, col)
		}
		decl.Models = append(decl.Models, model)
	}

	return decl, nil
}

func parseReference(r *yamlReference) (*schema.ReferenceConfig, error) {
	parts := strings.SplitN(r.Target, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("reference target %q must be table.column", r.Target)
	}
	return &schema.ReferenceConfig{
		Table:    parts[0],
		Column:   parts[1],
		Relation: r.Relation,
		OnDelete: r.OnDelete,
		OnUpdate: r.OnUpdate,
	}, nil
}

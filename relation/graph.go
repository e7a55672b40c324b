// Package relation resolves and validates the references between models,
// annotates each model with its relation descriptors, and orders models so
// every referenced table is created before its referrers.
package relation

import (
	"sort"
	"strings"

	"github.com/inedumozey/morm/schema"
)

// Build validates every reference across models, applies the relation-kind
// implications, records incoming/outgoing descriptors, and returns the
// models in topological creation order (alphabetical within a tier).
// Returned errors are the full list of violations found; a non-empty list
// means no DDL may be issued.
func Build(models []*schema.Model) ([]*schema.Model, []*schema.Error) {
	var errs []*schema.Error

	byTable := map[string]*schema.Model{}
	for _, m := range models {
		byTable[m.Table] = m
		m.Outgoing = nil
		m.Incoming = nil
	}

	// edges[target] -> set of sources that must be created after target
	edges := map[string]map[string]bool{}
	indegree := map[string]int{}
	for _, m := range models {
		indegree[m.Table] = 0
	}

	for _, m := range models {
		for _, c := range m.Columns {
			if c.Reference == nil {
				continue
			}
			r := c.Reference
			target, ok := byTable[r.Table]
			if !ok {
				errs = append(errs, schema.Errf(schema.RelationTargetMissing, m.Table, c.Name,
					"referenced model %q does not exist", r.Table))
				continue
			}
			targetCol := target.Column(r.Column)
			if targetCol == nil {
				errs = append(errs, schema.Errf(schema.RelationColumnMissing, m.Table, c.Name,
					"referenced column %s.%s does not exist", r.Table, r.Column))
				continue
			}

			if c.Type.Base != targetCol.Type.Base {
				errs = append(errs, schema.Errf(schema.RelationTypeMismatch, m.Table, c.Name,
					"type %s does not match %s.%s type %s",
					c.Type.Base, r.Table, r.Column, targetCol.Type.Base))
			}
			if !schema.ValidFkAction(r.OnDelete) {
				errs = append(errs, schema.Errf(schema.FkActionInvalid, m.Table, c.Name,
					"invalid onDelete action %q", r.OnDelete))
			}
			if !schema.ValidFkAction(r.OnUpdate) {
				errs = append(errs, schema.Errf(schema.FkActionInvalid, m.Table, c.Name,
					"invalid onUpdate action %q", r.OnUpdate))
			}

			switch r.Kind {
			case schema.ManyToMany:
				if !c.Type.Array {
					errs = append(errs, schema.Errf(schema.RelationArrayMismatch, m.Table, c.Name,
						"many-to-many reference requires an array type"))
				}
				c.Virtual = true
			case schema.OneToOne:
				if c.Type.Array {
					errs = append(errs, schema.Errf(schema.RelationArrayMismatch, m.Table, c.Name,
						"one-to-one reference forbids an array type"))
				}
				c.Unique = true
				if !c.NotNullExplicit {
					c.NotNull = true
				}
			case schema.OneToMany:
				if c.Type.Array {
					errs = append(errs, schema.Errf(schema.RelationArrayMismatch, m.Table, c.Name,
						"one-to-many reference forbids an array type"))
				}
			}

			self := r.Table == m.Table
			m.Outgoing = append(m.Outgoing, schema.RelationDesc{
				Relation: r.Kind, Table: r.Table, Column: c.Name, Self: self,
			})
			target.Incoming = append(target.Incoming, schema.RelationDesc{
				Relation: r.Kind, Table: m.Table, Column: c.Name, Self: self,
			})

			// target before source; many-to-many resolves through a junction
			// after both base tables, self references need no edge
			if r.Kind != schema.ManyToMany && !self {
				if edges[r.Table] == nil {
					edges[r.Table] = map[string]bool{}
				}
				if !edges[r.Table][m.Table] {
					edges[r.Table][m.Table] = true
					indegree[m.Table]++
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	ordered := kahn(models, edges, indegree)
	if len(ordered) != len(models) {
		var cyclic []string
		done := map[string]bool{}
		for _, m := range ordered {
			done[m.Table] = true
		}
		for _, m := range models {
			if !done[m.Table] {
				cyclic = append(cyclic, m.Table)
			}
		}
		sort.Strings(cyclic)
		return nil, []*schema.Error{{
			Kind:    schema.CyclicRelations,
			Message: "cyclic relations between: " + strings.Join(cyclic, ", "),
		}}
	}
	return ordered, nil
}

// kahn orders models by repeatedly draining zero-indegree nodes, taking the
// alphabetically first table when several are ready.
func kahn(models []*schema.Model, edges map[string]map[string]bool, indegree map[string]int) []*schema.Model {
	byTable := map[string]*schema.Model{}
	var ready []string
	for _, m := range models {
		byTable[m.Table] = m
		if indegree[m.Table] == 0 {
			ready = append(ready, m.Table)
		}
	}
	sort.Strings(ready)

	var ordered []*schema.Model
	for len(ready) > 0 {
		table := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byTable[table])

		var unlocked []string
		for dep := range edges[table] {
			indegree[dep]--
			if indegree[dep] == 0 {
				unlocked = append(unlocked, dep)
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
		sort.Strings(ready)
	}
	return ordered
}

package diff

import (
	"context"
	"fmt"

	"github.com/inedumozey/morm/check"
	"github.com/inedumozey/morm/events"
	"github.com/inedumozey/morm/generator"
	"github.com/inedumozey/morm/introspect"
	"github.com/inedumozey/morm/schema"
)

// phaseAlterName renames, adds and drops columns. A DB-only column is
// renamed onto a model-only column when exactly one model-only candidate
// shares its canonical type; remaining model-only columns are added and
// remaining DB-only columns are dropped (empty table only).
func (d *Differ) phaseAlterName(ctx context.Context, m *schema.Model, live *introspect.Table, counts *introspect.Counts) error {
	section := "table:" + m.Table

	modelCols := map[string]*schema.Column{}
	for _, c := range concrete(m) {
		modelCols[c.Name] = c
	}
	liveCols := map[string]bool{}
	for _, c := range live.Columns {
		liveCols[c.Name] = true
	}

	var missingInModel []string // DB only
	for _, c := range live.Columns {
		if _, ok := modelCols[c.Name]; !ok {
			missingInModel = append(missingInModel, c.Name)
		}
	}
	var missingInDB []*schema.Column // model only
	for _, c := range concrete(m) {
		if !liveCols[c.Name] {
			missingInDB = append(missingInDB, c)
		}
	}

	// renames first: unique same-type candidate
	var stillMissing []string
	for _, oldName := range missingInModel {
		oldCol := live.Column(oldName)
		var candidates []*schema.Column
		for _, c := range missingInDB {
			if !c.Renamed && c.Type == oldCol.TypeOf() {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) != 1 {
			stillMissing = append(stillMissing, oldName)
			continue
		}
		target := candidates[0]
		sql := alterTable(m.Table, fmt.Sprintf("RENAME COLUMN %s TO %s",
			generator.QuoteIdent(oldName), generator.QuoteIdent(target.Name)))
		if err := d.apply(ctx, section, target.Name, events.ActionRename, sql); err != nil {
			return err
		}
		target.Renamed = true
		renameLiveColumn(live, oldName, target.Name)
		missingInDB = removeColumn(missingInDB, target)
	}

	// adds
	for _, c := range missingInDB {
		if counts.HasData() && c.NotNull && !c.HasDefault && !c.Identity {
			return d.blocked(section, schema.Errf(schema.AddNotNullBlocked, m.Table, c.Name,
				"cannot add NOT NULL column without default to a table with data"))
		}
		sql := alterTable(m.Table, "ADD COLUMN "+generator.ColumnSQL(c))
		if err := d.apply(ctx, section, c.Name, events.ActionCreate, sql); err != nil {
			return err
		}
		addLiveColumn(live, c)
	}

	// drops, empty table only
	for _, oldName := range stillMissing {
		if counts.HasData() {
			return d.blocked(section, schema.Errf(schema.DropColumnBlocked, m.Table, oldName,
				"cannot drop column from a table with data"))
		}
		sql := alterTable(m.Table, "DROP COLUMN "+generator.QuoteIdent(oldName))
		if err := d.apply(ctx, section, oldName, events.ActionDrop, sql); err != nil {
			return err
		}
		dropLiveColumn(live, oldName)
	}
	return nil
}

// phasePrimaryKey aligns the primary key constraint. Moving the primary key
// on a table with data is blocked.
func (d *Differ) phasePrimaryKey(ctx context.Context, m *schema.Model, live *introspect.Table, counts *introspect.Counts) error {
	section := "table:" + m.Table

	var want *schema.Column
	for _, c := range concrete(m) {
		if c.Primary {
			want = c
			break
		}
	}

	have := live.PrimaryKey
	switch {
	case want == nil && have == nil:
		return nil
	case want != nil && have != nil && len(have.Columns) == 1 && have.Columns[0] == want.Name:
		return nil
	}

	if counts.HasData() {
		return d.blocked(section, schema.Errf(schema.PrimaryKeyMoveBlocked, m.Table, "",
			"cannot change the primary key of a table with data"))
	}

	if have != nil {
		sql := alterTable(m.Table, "DROP CONSTRAINT "+generator.QuoteIdent(have.ConstraintName))
		if err := d.apply(ctx, section, have.ConstraintName, events.ActionDrop, sql); err != nil {
			return err
		}
		live.PrimaryKey = nil
	}
	if want != nil {
		name := m.Table + "_pkey"
		sql := alterTable(m.Table, fmt.Sprintf("ADD CONSTRAINT %s PRIMARY KEY (%s)",
			generator.QuoteIdent(name), generator.QuoteIdent(want.Name)))
		if err := d.apply(ctx, section, name, events.ActionCreate, sql); err != nil {
			return err
		}
		live.PrimaryKey = &introspect.PrimaryKey{ConstraintName: name, Columns: []string{want.Name}}
	}
	return nil
}

// phaseAlterTypes changes column types on empty tables only, clearing any
// default and column check first.
func (d *Differ) phaseAlterTypes(ctx context.Context, m *schema.Model, live *introspect.Table, counts *introspect.Counts) error {
	section := "table:" + m.Table

	for _, c := range concrete(m) {
		lc := live.Column(c.Name)
		if lc == nil || lc.TypeOf() == c.Type {
			continue
		}
		if counts.HasData() {
			return d.blocked(section, schema.Errf(schema.TypeChangeBlocked, m.Table, c.Name,
				"cannot change type %s to %s on a table with data", lc.TypeOf(), c.Type))
		}

		if lc.Default != nil {
			sql := alterTable(m.Table, fmt.Sprintf("ALTER COLUMN %s DROP DEFAULT", generator.QuoteIdent(c.Name)))
			if err := d.apply(ctx, section, c.Name, events.ActionAlter, sql); err != nil {
				return err
			}
			lc.Default = nil
		}
		checkName := schema.CheckName(m.Table, c.Name)
		if hasCheck(live, checkName) {
			sql := alterTable(m.Table, "DROP CONSTRAINT "+generator.QuoteIdent(checkName))
			if err := d.apply(ctx, section, checkName, events.ActionDrop, sql); err != nil {
				return err
			}
			dropCheck(live, checkName)
		}

		typeSQL := generator.TypeSQL(c.Type)
		sql := alterTable(m.Table, fmt.Sprintf("ALTER COLUMN %s TYPE %s USING NULL::%s",
			generator.QuoteIdent(c.Name), typeSQL, typeSQL))
		if err := d.apply(ctx, section, c.Name, events.ActionAlter, sql); err != nil {
			return err
		}
		lc.UDTName = udtFor(c.Type)
		lc.DataType = ""
	}
	return nil
}

// phaseNullity sets or drops NOT NULL to match the declaration; primary
// columns are implicitly NOT NULL and skipped.
func (d *Differ) phaseNullity(ctx context.Context, m *schema.Model, live *introspect.Table, counts *introspect.Counts) error {
	section := "table:" + m.Table

	for _, c := range concrete(m) {
		if c.Primary {
			continue
		}
		lc := live.Column(c.Name)
		if lc == nil || lc.Nullable == !c.NotNull {
			continue
		}
		if c.NotNull {
			if counts.HasData() && !c.HasDefault && !c.Identity {
				return d.blocked(section, schema.Errf(schema.AddNotNullBlocked, m.Table, c.Name,
					"cannot set NOT NULL without default on a table with data"))
			}
			sql := alterTable(m.Table, fmt.Sprintf("ALTER COLUMN %s SET NOT NULL", generator.QuoteIdent(c.Name)))
			if err := d.apply(ctx, section, c.Name, events.ActionAlter, sql); err != nil {
				return err
			}
			lc.Nullable = false
		} else {
			sql := alterTable(m.Table, fmt.Sprintf("ALTER COLUMN %s DROP NOT NULL", generator.QuoteIdent(c.Name)))
			if err := d.apply(ctx, section, c.Name, events.ActionAlter, sql); err != nil {
				return err
			}
			lc.Nullable = true
		}
	}
	return nil
}

// phaseUnique aligns single-column unique constraints. Adding UNIQUE on a
// table with data is allowed only when the column value is generated
// (uuid() default or identity).
func (d *Differ) phaseUnique(ctx context.Context, m *schema.Model, live *introspect.Table, counts *introspect.Counts) error {
	section := "table:" + m.Table

	for _, c := range concrete(m) {
		if c.Primary {
			continue
		}
		constraint, has := live.Uniques[c.Name]
		switch {
		case c.Unique && !has:
			if counts.HasData() && !(c.DefaultSQL == "gen_random_uuid()" || c.Identity) {
				return d.blocked(section, schema.Errf(schema.AddUniqueBlocked, m.Table, c.Name,
					"cannot add UNIQUE on a table with data unless the column value is generated"))
			}
			name := schema.UniqueName(m.Table, c.Name)
			sql := alterTable(m.Table, fmt.Sprintf("ADD CONSTRAINT %s UNIQUE (%s)",
				generator.QuoteIdent(name), generator.QuoteIdent(c.Name)))
			if err := d.apply(ctx, section, name, events.ActionCreate, sql); err != nil {
				return err
			}
			live.Uniques[c.Name] = name
		case !c.Unique && has:
			sql := alterTable(m.Table, "DROP CONSTRAINT "+generator.QuoteIdent(constraint))
			if err := d.apply(ctx, section, constraint, events.ActionDrop, sql); err != nil {
				return err
			}
			delete(live.Uniques, c.Name)
		}
	}
	return nil
}

// phaseForeignKeys recreates the FK constraint of every renamed column with
// a reference, under the canonical name and declared actions.
func (d *Differ) phaseForeignKeys(ctx context.Context, m *schema.Model, live *introspect.Table, counts *introspect.Counts) error {
	section := "table:" + m.Table

	for _, c := range concrete(m) {
		if !c.Renamed || c.Reference == nil {
			continue
		}
		for _, fk := range live.ForeignKeys {
			if fk.Column != c.Name {
				continue
			}
			sql := alterTable(m.Table, "DROP CONSTRAINT "+generator.QuoteIdent(fk.ConstraintName))
			if err := d.apply(ctx, section, fk.ConstraintName, events.ActionDrop, sql); err != nil {
				return err
			}
		}
		r := c.Reference
		onDelete, onUpdate := r.OnDelete, r.OnUpdate
		if onDelete == "" {
			onDelete = "NO ACTION"
		}
		if onUpdate == "" {
			onUpdate = "NO ACTION"
		}
		name := schema.FkName(m.Table, c.Name)
		sql := alterTable(m.Table, fmt.Sprintf("ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s) ON DELETE %s ON UPDATE %s",
			generator.QuoteIdent(name), generator.QuoteIdent(c.Name),
			generator.QuoteIdent(r.Table), generator.QuoteIdent(r.Column), onDelete, onUpdate))
		if err := d.apply(ctx, section, name, events.ActionCreate, sql); err != nil {
			return err
		}
	}
	return nil
}

// phaseCheck adds, drops or replaces the per-column check constraint,
// comparing normalized constraint text.
func (d *Differ) phaseCheck(ctx context.Context, m *schema.Model, live *introspect.Table, counts *introspect.Counts) error {
	section := "table:" + m.Table

	for _, c := range concrete(m) {
		name := schema.CheckName(m.Table, c.Name)
		liveDef, has := findCheck(live, name)
		want := c.CheckSQL

		switch {
		case want == "" && !has:
			continue
		case want != "" && has && check.Normalize(liveDef) == check.Normalize(want):
			continue
		}

		if has {
			sql := alterTable(m.Table, "DROP CONSTRAINT "+generator.QuoteIdent(name))
			if err := d.apply(ctx, section, name, events.ActionDrop, sql); err != nil {
				return err
			}
			dropCheck(live, name)
		}
		if want != "" {
			sql := alterTable(m.Table, fmt.Sprintf("ADD CONSTRAINT %s CHECK (%s)", generator.QuoteIdent(name), want))
			if err := d.apply(ctx, section, name, events.ActionCreate, sql); err != nil {
				return err
			}
			live.Checks = append(live.Checks, introspect.Check{Name: name, Definition: "CHECK (" + want + ")"})
		}
	}
	return nil
}

// phaseDefault aligns DEFAULT expressions. Identity columns carry no
// DEFAULT and are never altered here.
func (d *Differ) phaseDefault(ctx context.Context, m *schema.Model, live *introspect.Table, counts *introspect.Counts) error {
	section := "table:" + m.Table

	for _, c := range concrete(m) {
		lc := live.Column(c.Name)
		if lc == nil || c.Identity || lc.Identity {
			continue
		}
		var liveDefault string
		if lc.Default != nil {
			liveDefault = *lc.Default
		}
		want := c.DefaultSQL

		switch {
		case want == "" && liveDefault == "":
			continue
		case want != "" && liveDefault != "" && check.Normalize(liveDefault) == check.Normalize(want):
			continue
		}

		if want == "" {
			sql := alterTable(m.Table, fmt.Sprintf("ALTER COLUMN %s DROP DEFAULT", generator.QuoteIdent(c.Name)))
			if err := d.apply(ctx, section, c.Name, events.ActionAlter, sql); err != nil {
				return err
			}
			lc.Default = nil
		} else {
			sql := alterTable(m.Table, fmt.Sprintf("ALTER COLUMN %s SET DEFAULT %s", generator.QuoteIdent(c.Name), want))
			if err := d.apply(ctx, section, c.Name, events.ActionAlter, sql); err != nil {
				return err
			}
			v := want
			lc.Default = &v
		}
	}
	return nil
}

// live snapshot maintenance

func renameLiveColumn(live *introspect.Table, oldName, newName string) {
	if lc := live.Column(oldName); lc != nil {
		lc.Name = newName
	}
	if live.PrimaryKey != nil {
		for i, col := range live.PrimaryKey.Columns {
			if col == oldName {
				live.PrimaryKey.Columns[i] = newName
			}
		}
	}
	if name, ok := live.Uniques[oldName]; ok {
		delete(live.Uniques, oldName)
		live.Uniques[newName] = name
	}
	for i := range live.ForeignKeys {
		if live.ForeignKeys[i].Column == oldName {
			live.ForeignKeys[i].Column = newName
		}
	}
}

func addLiveColumn(live *introspect.Table, c *schema.Column) {
	var def *string
	if c.DefaultSQL != "" {
		v := c.DefaultSQL
		def = &v
	}
	live.Columns = append(live.Columns, introspect.Column{
		Name:     c.Name,
		UDTName:  udtFor(c.Type),
		Nullable: !c.NotNull,
		Default:  def,
		Identity: c.Identity,
	})
	if c.Primary {
		live.PrimaryKey = &introspect.PrimaryKey{ConstraintName: "", Columns: []string{c.Name}}
	}
	if c.Unique && !c.Primary {
		live.Uniques[c.Name] = schema.UniqueName(live.Name, c.Name)
	}
	if c.CheckSQL != "" {
		name := schema.CheckName(live.Name, c.Name)
		live.Checks = append(live.Checks, introspect.Check{Name: name, Definition: "CHECK (" + c.CheckSQL + ")"})
	}
}

func dropLiveColumn(live *introspect.Table, name string) {
	for i := range live.Columns {
		if live.Columns[i].Name == name {
			live.Columns = append(live.Columns[:i], live.Columns[i+1:]...)
			break
		}
	}
	delete(live.Uniques, name)
}

func hasCheck(live *introspect.Table, name string) bool {
	_, ok := findCheck(live, name)
	return ok
}

func findCheck(live *introspect.Table, name string) (string, bool) {
	for _, c := range live.Checks {
		if c.Name == name {
			return c.Definition, true
		}
	}
	return "", false
}

func dropCheck(live *introspect.Table, name string) {
	for i := range live.Checks {
		if live.Checks[i].Name == name {
			live.Checks = append(live.Checks[:i], live.Checks[i+1:]...)
			return
		}
	}
}

func removeColumn(cols []*schema.Column, target *schema.Column) []*schema.Column {
	for i, c := range cols {
		if c == target {
			return append(cols[:i], cols[i+1:]...)
		}
	}
	return cols
}

package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/inedumozey/morm/database"
	"github.com/inedumozey/morm/events"
	"github.com/inedumozey/morm/generator"
	"github.com/inedumozey/morm/introspect"
	"github.com/inedumozey/morm/schema"
)

// EnumMigrator reconciles the live enum types against the registry. After a
// successful run the catalog's enum set equals the registry's, ordered value
// lists included.
type EnumMigrator struct {
	Sess  database.Session
	Sink  events.Sink
	Dry   bool
	Reset bool
}

const enumSection = "enum"

func (em *EnumMigrator) Migrate(ctx context.Context, reg *schema.Registry) error {
	x := &executor{sess: em.Sess, sink: em.Sink, dry: em.Dry}

	dbEnums, err := introspect.ReadEnums(ctx, em.Sess)
	if err != nil {
		return schema.DBErr("", err)
	}

	dbByName := map[string]introspect.Enum{}
	for _, e := range dbEnums {
		dbByName[strings.ToUpper(e.Name)] = e
	}
	defs := reg.All()
	inRegistry := map[string]bool{}
	for _, d := range defs {
		inRegistry[d.Name] = true
	}

	// rename detection: a registry name absent in DB whose ordered values
	// match a DB-only entry
	renamedFrom := map[string]string{} // registry name -> db name
	claimed := map[string]bool{}       // db (upper) names consumed by renames
	for _, d := range defs {
		if _, ok := dbByName[d.Name]; ok {
			continue
		}
		for _, e := range dbEnums {
			upper := strings.ToUpper(e.Name)
			if inRegistry[upper] || claimed[upper] {
				continue
			}
			if sameStrings(e.Values, d.Values) {
				renamedFrom[d.Name] = e.Name
				claimed[upper] = true
				break
			}
		}
	}

	for _, d := range defs {
		oldName, renamed := renamedFrom[d.Name]
		dbEnum, inDB := dbByName[d.Name]
		switch {
		case renamed:
			sql := fmt.Sprintf("ALTER TYPE %s RENAME TO %s;", generator.QuoteIdent(oldName), generator.QuoteIdent(d.Name))
			if err := x.apply(ctx, enumSection, d.Name, events.ActionRename, sql); err != nil {
				return err
			}
		case !inDB:
			if err := x.apply(ctx, enumSection, d.Name, events.ActionCreate, createEnumSQL(d.Name, d.Values)); err != nil {
				return err
			}
		default:
			if err := em.reconcileValues(ctx, x, d, dbEnum); err != nil {
				return err
			}
		}
	}

	// drop DB enums absent from the registry and not consumed by a rename
	for _, e := range dbEnums {
		upper := strings.ToUpper(e.Name)
		if inRegistry[upper] || claimed[upper] {
			continue
		}
		usage, err := introspect.EnumUsage(ctx, em.Sess, e.Name)
		if err != nil {
			return schema.DBErr("", err)
		}
		if len(usage) > 0 {
			return x.blocked(enumSection, schema.EnumErrf(schema.EnumInUse, e.Name,
				"cannot drop enum still used by %d column(s)", len(usage)))
		}
		sql := fmt.Sprintf("DROP TYPE %s;", generator.QuoteIdent(e.Name))
		if err := x.apply(ctx, enumSection, e.Name, events.ActionDrop, sql); err != nil {
			return err
		}
	}
	return nil
}

// reconcileValues aligns one surviving (same-name) pair. Appended values go
// through ADD VALUE; removals and reorders take the destructive recreate
// path, gated on zero usage or reset.
func (em *EnumMigrator) reconcileValues(ctx context.Context, x *executor, d schema.EnumDef, dbEnum introspect.Enum) error {
	if sameStrings(dbEnum.Values, d.Values) {
		return nil
	}

	if isPrefix(dbEnum.Values, d.Values) {
		for _, v := range d.Values[len(dbEnum.Values):] {
			sql := fmt.Sprintf("ALTER TYPE %s ADD VALUE %s;", generator.QuoteIdent(d.Name), quoteLiteral(v))
			if err := x.apply(ctx, enumSection, d.Name, events.ActionAlter, sql); err != nil {
				return err
			}
		}
		return nil
	}

	usage, err := introspect.EnumUsage(ctx, em.Sess, dbEnum.Name)
	if err != nil {
		return schema.DBErr("", err)
	}

	if len(usage) == 0 {
		sql := fmt.Sprintf("DROP TYPE %s;", generator.QuoteIdent(dbEnum.Name))
		if err := x.apply(ctx, enumSection, d.Name, events.ActionDrop, sql); err != nil {
			return err
		}
		return x.apply(ctx, enumSection, d.Name, events.ActionCreate, createEnumSQL(d.Name, d.Values))
	}

	if !em.Reset {
		return x.blocked(enumSection, schema.EnumErrf(schema.EnumInUse, d.Name,
			"removing values requires reset while %d column(s) use the type", len(usage)))
	}

	// destructive recreate: delete dependent rows, swap through a temp type
	tables := map[string]bool{}
	for _, u := range usage {
		if !tables[u.Table] {
			tables[u.Table] = true
			sql := fmt.Sprintf("DELETE FROM %s;", generator.QuoteIdent(u.Table))
			if err := x.apply(ctx, enumSection, u.Table, events.ActionDrop, sql); err != nil {
				return err
			}
		}
	}

	tmp := dbEnum.Name + "__morm_tmp"
	if err := x.apply(ctx, enumSection, d.Name, events.ActionCreate, createEnumSQL(tmp, d.Values)); err != nil {
		return err
	}
	for _, u := range usage {
		sql := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::text::%s;",
			generator.QuoteIdent(u.Table), generator.QuoteIdent(u.Column),
			generator.QuoteIdent(tmp), generator.QuoteIdent(u.Column), generator.QuoteIdent(tmp))
		if err := x.apply(ctx, enumSection, u.Table+"."+u.Column, events.ActionAlter, sql); err != nil {
			return err
		}
	}
	sql := fmt.Sprintf("DROP TYPE %s;", generator.QuoteIdent(dbEnum.Name))
	if err := x.apply(ctx, enumSection, dbEnum.Name, events.ActionDrop, sql); err != nil {
		return err
	}
	sql = fmt.Sprintf("ALTER TYPE %s RENAME TO %s;", generator.QuoteIdent(tmp), generator.QuoteIdent(d.Name))
	return x.apply(ctx, enumSection, d.Name, events.ActionRename, sql)
}

func createEnumSQL(name string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteLiteral(v)
	}
	return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", generator.QuoteIdent(name), strings.Join(quoted, ", "))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isPrefix(prefix, full []string) bool {
	if len(prefix) >= len(full) {
		return false
	}
	for i := range prefix {
		if prefix[i] != full[i] {
			return false
		}
	}
	return true
}

package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/inedumozey/morm/database"
	"github.com/inedumozey/morm/diff"
	"github.com/inedumozey/morm/events"
	"github.com/inedumozey/morm/generator"
	"github.com/inedumozey/morm/introspect"
	"github.com/inedumozey/morm/relation"
	"github.com/inedumozey/morm/schema"
)

// Options configures one reconciliation run. Clean (default true) drops
// DB-only tables the declaration no longer carries; a stray table with data
// blocks instead.
type Options struct {
	Reset bool
	Clean *bool
	Dry   bool
	Tx    database.Options
}

func (o Options) clean() bool { return o.Clean == nil || *o.Clean }

// Reconciler runs one full reconciliation: validation, optional reset,
// extension bootstrap, whole-table rename, then enums, tables, indexes and
// junctions inside a single transaction. A failure inside the transaction
// rolls that part back; the reset, extension bootstrap and table rename run
// on the pool before it opens and are not undone.
type Reconciler struct {
	Inst     *database.Instance
	Registry *schema.Registry
	Models   []*schema.Model
	Sink     events.Sink
}

const reconcileSection = "reconcile"

func (r *Reconciler) sink() events.Sink {
	if r.Sink == nil {
		return events.Discard
	}
	return r.Sink
}

// Run reconciles the database against the declaration. It returns the first
// blocking error; when that error comes from inside the transaction, none of
// the transaction's statements are committed.
func (r *Reconciler) Run(ctx context.Context, opts Options) error {
	if errs := r.Registry.Errors(); len(errs) > 0 {
		for _, e := range errs {
			r.sink().Emit(events.Event{Section: "enum", Subject: e.Enum, Action: events.ActionError,
				Kind: string(e.Kind), Detail: e.Message})
		}
		return errs[0]
	}

	// a model that failed validation has no create SQL; abort before any DDL
	for _, m := range r.Models {
		if !m.Valid() {
			for _, e := range m.Errors {
				r.sink().Emit(events.Event{Section: "table:" + m.Table, Subject: e.Column,
					Action: events.ActionError, Kind: string(e.Kind), Detail: e.Message})
			}
			return m.Errors[0]
		}
	}

	ordered, errs := relation.Build(r.Models)
	if len(errs) > 0 {
		for _, e := range errs {
			r.sink().Emit(events.Event{Section: reconcileSection, Subject: e.Table,
				Action: events.ActionError, Kind: string(e.Kind), Detail: e.Message})
		}
		return errs[0]
	}

	pool := &executor{sess: r.Inst.Pool, sink: r.sink(), dry: opts.Dry}

	if opts.Reset {
		if err := r.reset(ctx, pool); err != nil {
			return err
		}
	}

	if err := pool.apply(ctx, reconcileSection, "pgcrypto", events.ActionCreate,
		"CREATE EXTENSION IF NOT EXISTS pgcrypto;"); err != nil {
		return err
	}

	if err := r.renameTable(ctx, pool, ordered); err != nil {
		return err
	}

	return r.Inst.Transaction(ctx, opts.Tx, func(sess database.Session) error {
		if opts.Dry {
			sess = r.Inst.Pool
		}

		em := &EnumMigrator{Sess: sess, Sink: r.sink(), Dry: opts.Dry, Reset: opts.Reset}
		if err := em.Migrate(ctx, r.Registry); err != nil {
			return err
		}

		d := &diff.Differ{Sess: sess, Sink: r.sink(), Dry: opts.Dry}
		for _, m := range ordered {
			if err := d.MigrateTable(ctx, m); err != nil {
				return err
			}
		}

		im := &IndexMigrator{Sess: sess, Sink: r.sink(), Dry: opts.Dry}
		for _, m := range ordered {
			if err := im.Migrate(ctx, m); err != nil {
				return err
			}
		}

		jb := &JunctionBuilder{Sess: sess, Sink: r.sink(), Dry: opts.Dry}
		if err := jb.Build(ctx, ordered); err != nil {
			return err
		}

		if opts.clean() {
			x := &executor{sess: sess, sink: r.sink(), dry: opts.Dry}
			return r.dropStray(ctx, x, ordered)
		}
		return nil
	})
}

// dropStray removes DB tables the declaration no longer carries, junctions
// of removed relations included. A stray table with data blocks the run.
func (r *Reconciler) dropStray(ctx context.Context, x *executor, models []*schema.Model) error {
	tables, err := introspect.ListTables(ctx, x.sess)
	if err != nil {
		return schema.DBErr("", err)
	}

	desired := map[string]bool{}
	for _, m := range models {
		desired[m.Table] = true
		for _, rel := range m.Outgoing {
			if rel.Relation != schema.ManyToMany {
				continue
			}
			t1, t2 := m.Table, rel.Table
			if t1 > t2 {
				t1, t2 = t2, t1
			}
			desired[t1+"_"+t2+"_junction"] = true
		}
	}

	for _, t := range tables {
		if desired[t] {
			continue
		}
		counts := introspect.ReadCounts(ctx, x.sess, t, nil)
		if counts.HasData() {
			return x.blocked(reconcileSection, schema.Errf(schema.DropTableBlocked, t, "",
				"cannot drop table with data"))
		}
		sql := fmt.Sprintf("DROP TABLE %s CASCADE;", generator.QuoteIdent(t))
		if err := x.apply(ctx, reconcileSection, t, events.ActionDrop, sql); err != nil {
			return err
		}
	}
	return nil
}

// reset drops every non-plpgsql extension, every public table and every
// public enum type.
func (r *Reconciler) reset(ctx context.Context, x *executor) error {
	exts, err := introspect.ListExtensions(ctx, x.sess)
	if err != nil {
		return schema.DBErr("", err)
	}
	for _, ext := range exts {
		if ext == "plpgsql" {
			continue
		}
		sql := fmt.Sprintf("DROP EXTENSION %s CASCADE;", generator.QuoteIdent(ext))
		if err := x.apply(ctx, reconcileSection, ext, events.ActionDrop, sql); err != nil {
			return err
		}
	}

	tables, err := introspect.ListTables(ctx, x.sess)
	if err != nil {
		return schema.DBErr("", err)
	}
	for _, t := range tables {
		sql := fmt.Sprintf("DROP TABLE %s CASCADE;", generator.QuoteIdent(t))
		if err := x.apply(ctx, reconcileSection, t, events.ActionDrop, sql); err != nil {
			return err
		}
	}

	enums, err := introspect.ReadEnums(ctx, x.sess)
	if err != nil {
		return schema.DBErr("", err)
	}
	for _, e := range enums {
		sql := fmt.Sprintf("DROP TYPE %s CASCADE;", generator.QuoteIdent(e.Name))
		if err := x.apply(ctx, reconcileSection, e.Name, events.ActionDrop, sql); err != nil {
			return err
		}
	}
	return nil
}

// renameTable applies the bulk whole-table rename heuristic: exactly one DB
// table absent from the models and exactly one model table absent from the
// DB means a rename, not a drop-and-create.
func (r *Reconciler) renameTable(ctx context.Context, x *executor, models []*schema.Model) error {
	dbTables, err := introspect.ListTables(ctx, x.sess)
	if err != nil {
		return schema.DBErr("", err)
	}

	modelTables := map[string]bool{}
	for _, m := range models {
		modelTables[m.Table] = true
	}
	dbSet := map[string]bool{}
	var dbOnly []string
	for _, t := range dbTables {
		if strings.HasSuffix(t, "_junction") {
			continue
		}
		dbSet[t] = true
		if !modelTables[t] {
			dbOnly = append(dbOnly, t)
		}
	}
	var modelOnly []string
	for _, m := range models {
		if !dbSet[m.Table] {
			modelOnly = append(modelOnly, m.Table)
		}
	}

	if len(dbOnly) != 1 || len(modelOnly) != 1 {
		return nil
	}
	sql := fmt.Sprintf("ALTER TABLE %s RENAME TO %s;",
		generator.QuoteIdent(dbOnly[0]), generator.QuoteIdent(modelOnly[0]))
	return x.apply(ctx, reconcileSection, modelOnly[0], events.ActionRename, sql)
}

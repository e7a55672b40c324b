// Package diff reconciles one table at a time: it reads the live state,
// walks the fixed alter-phase sequence, and issues the minimum DDL. Any
// blocking condition fails the model and, through the reconciler, rolls the
// whole run back.
package diff

import (
	"context"
	"fmt"

	"github.com/inedumozey/morm/database"
	"github.com/inedumozey/morm/events"
	"github.com/inedumozey/morm/generator"
	"github.com/inedumozey/morm/introspect"
	"github.com/inedumozey/morm/schema"
)

// Differ applies one model's reconciliation. With Dry set it records the
// statements it would run without executing them.
type Differ struct {
	Sess database.Session
	Sink events.Sink
	Dry  bool
}

func (d *Differ) sink() events.Sink {
	if d.Sink == nil {
		return events.Discard
	}
	return d.Sink
}

// apply emits the statement as an event and executes it unless dry.
func (d *Differ) apply(ctx context.Context, section, subject string, action events.Action, sql string) error {
	d.sink().Emit(events.Event{Section: section, Subject: subject, Action: action, Detail: sql})
	if d.Dry {
		return nil
	}
	if _, err := d.Sess.Exec(ctx, sql); err != nil {
		d.sink().Emit(events.Event{Section: section, Subject: subject, Action: events.ActionError,
			Kind: string(schema.DatabaseError), Detail: err.Error()})
		return schema.DBErr(subject, err)
	}
	return nil
}

// blocked emits a blocked event and returns the error.
func (d *Differ) blocked(section string, err *schema.Error) error {
	d.sink().Emit(events.Event{Section: section, Subject: err.Table, Action: events.ActionBlocked,
		Kind: string(err.Kind), Detail: err.Message})
	return err
}

// MigrateTable reconciles one model. A missing table is created whole,
// trigger included; an existing table runs the alter phases in order.
func (d *Differ) MigrateTable(ctx context.Context, m *schema.Model) error {
	section := "table:" + m.Table

	// rename markers belong to the current run only
	for _, c := range m.Columns {
		c.Renamed = false
	}

	exists, err := introspect.TableExists(ctx, d.Sess, m.Table)
	if err != nil {
		return schema.DBErr(m.Table, err)
	}

	if !exists {
		sql := generator.CreateTableSQL(m)
		if sql == "" {
			return schema.Errf(schema.DatabaseError, m.Table, "", "model has no create SQL")
		}
		if err := d.apply(ctx, section, m.Table, events.ActionCreate, sql); err != nil {
			return err
		}
		if err := d.apply(ctx, section, m.Table, events.ActionCreate, generator.UpdatedAtFunctionSQL()); err != nil {
			return err
		}
		return d.apply(ctx, section, m.Table, events.ActionCreate, generator.UpdatedAtTriggerSQL(m.Table))
	}

	live, err := introspect.ReadTable(ctx, d.Sess, m.Table)
	if err != nil {
		return schema.DBErr(m.Table, err)
	}

	var liveCols []string
	for _, c := range live.Columns {
		liveCols = append(liveCols, c.Name)
	}
	counts := introspect.ReadCounts(ctx, d.Sess, m.Table, liveCols)

	phases := []func(context.Context, *schema.Model, *introspect.Table, *introspect.Counts) error{
		d.phaseAlterName,
		d.phasePrimaryKey,
		d.phaseAlterTypes,
		d.phaseNullity,
		d.phaseUnique,
		d.phaseForeignKeys,
		d.phaseCheck,
		d.phaseDefault,
	}
	for _, phase := range phases {
		if err := phase(ctx, m, live, counts); err != nil {
			return err
		}
	}
	return nil
}

// concrete returns the model's non-virtual columns.
func concrete(m *schema.Model) []*schema.Column {
	var cols []*schema.Column
	for _, c := range m.Columns {
		if !c.Virtual {
			cols = append(cols, c)
		}
	}
	return cols
}

var canonicalToUDT = map[string]string{
	schema.TypeSmallint: "int2", schema.TypeInteger: "int4", schema.TypeBigint: "int8",
	schema.TypeText: "text", schema.TypeBoolean: "bool", schema.TypeNumeric: "numeric",
	schema.TypeUUID: "uuid", schema.TypeJSON: "json", schema.TypeJSONB: "jsonb",
	schema.TypeDate: "date", schema.TypeTime: "time", schema.TypeTimetz: "timetz",
	schema.TypeTimestamp: "timestamp", schema.TypeTimestamptz: "timestamptz",
}

// udtFor reverses the canonical mapping so the in-memory live snapshot can
// track applied type changes.
func udtFor(t schema.TypeRef) string {
	udt, ok := canonicalToUDT[t.Base]
	if !ok {
		udt = t.Base
	}
	if t.Array {
		return "_" + udt
	}
	return udt
}

func alterTable(table, rest string) string {
	return fmt.Sprintf("ALTER TABLE %s %s;", generator.QuoteIdent(table), rest)
}

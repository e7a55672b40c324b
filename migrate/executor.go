// Package migrate is the top of the engine: the reconciler orchestrates the
// enum migrator, the per-table differ, the index migrator and the junction
// builder inside one outer transaction.
package migrate

import (
	"context"

	"github.com/inedumozey/morm/database"
	"github.com/inedumozey/morm/events"
	"github.com/inedumozey/morm/schema"
)

// executor issues DDL and reports it as events. With dry set it records
// without executing.
type executor struct {
	sess database.Session
	sink events.Sink
	dry  bool
}

func (x *executor) emit(e events.Event) {
	if x.sink != nil {
		x.sink.Emit(e)
	}
}

func (x *executor) apply(ctx context.Context, section, subject string, action events.Action, sql string) error {
	x.emit(events.Event{Section: section, Subject: subject, Action: action, Detail: sql})
	if x.dry {
		return nil
	}
	if _, err := x.sess.Exec(ctx, sql); err != nil {
		x.emit(events.Event{Section: section, Subject: subject, Action: events.ActionError,
			Kind: string(schema.DatabaseError), Detail: err.Error()})
		return schema.DBErr(subject, err)
	}
	return nil
}

func (x *executor) blocked(section string, err *schema.Error) error {
	x.emit(events.Event{Section: section, Subject: err.Enum + err.Table, Action: events.ActionBlocked,
		Kind: string(err.Kind), Detail: err.Message})
	return err
}

// Package morm is a declarative schema migration engine for PostgreSQL: the
// caller declares enums and models, and Migrate reconciles the live database
// against the declaration with the minimum DDL, never losing data unless a
// reset explicitly authorizes it.
package morm

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/inedumozey/morm/database"
	"github.com/inedumozey/morm/events"
	"github.com/inedumozey/morm/migrate"
	"github.com/inedumozey/morm/schema"
	"github.com/inedumozey/morm/validator"
)

// Options configures an engine.
type Options = database.Options

// MigrateOptions configures one reconciliation run. Clean defaults to true:
// tables the declaration no longer carries are dropped when empty.
type MigrateOptions struct {
	Reset bool
	Clean *bool
	Sink  events.Sink
}

// Engine holds one declaration bound to one database. Engines are cached by
// connection string; Init is idempotent.
type Engine struct {
	inst       *database.Instance
	registry   *schema.Registry
	mu         sync.Mutex
	models     []*schema.Model
	inProgress atomic.Bool
}

var (
	enginesMu sync.Mutex
	engines   = map[string]*Engine{}
)

// Init returns the cached engine for connString, creating it (and, if
// needed, the target database) on first use.
func Init(ctx context.Context, connString string, opts Options) (*Engine, error) {
	enginesMu.Lock()
	defer enginesMu.Unlock()

	if eng, ok := engines[connString]; ok {
		return eng, nil
	}
	inst, err := database.Connect(ctx, connString, opts)
	if err != nil {
		return nil, err
	}
	eng := &Engine{inst: inst, registry: schema.NewRegistry()}
	engines[connString] = eng
	return eng, nil
}

// Enums registers enum declarations. Conflicts accumulate and abort the next
// Migrate.
func (e *Engine) Enums(defs []schema.EnumDef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range defs {
		e.registry.Register(d)
	}
}

// Model registers one model. The config is normalized and validated
// immediately; diagnostics surface when Migrate runs.
func (e *Engine) Model(cfg schema.ModelConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := schema.Normalize(cfg, e.registry)
	validator.ValidateModel(m)
	e.models = append(e.models, m)
}

// Transaction runs fn inside a transaction with the given timeouts.
func (e *Engine) Transaction(ctx context.Context, opts database.Options, fn func(database.Session) error) error {
	return e.inst.Transaction(ctx, opts, fn)
}

// Migrate reconciles the database against the declaration and reports
// success. A concurrent call on the same engine is refused immediately and
// returns false without touching the database.
func (e *Engine) Migrate(ctx context.Context, opts MigrateOptions) bool {
	return e.run(ctx, migrate.Options{Reset: opts.Reset, Clean: opts.Clean}, opts.Sink) == nil
}

// Plan records the DDL a Migrate would issue without executing any of it.
// The list always carries the pgcrypto extension ensure; when that is the
// only statement, the schema is in sync.
func (e *Engine) Plan(ctx context.Context, sink events.Sink) ([]string, error) {
	rec := &events.Recorder{}
	s := events.Sink(rec)
	if sink != nil {
		s = events.Multi(rec, sink)
	}
	if err := e.run(ctx, migrate.Options{Dry: true}, s); err != nil {
		return nil, err
	}
	return rec.Statements(), nil
}

func (e *Engine) run(ctx context.Context, opts migrate.Options, sink events.Sink) error {
	if !e.inProgress.CompareAndSwap(false, true) {
		if sink != nil {
			sink.Emit(events.Event{Section: "reconcile", Action: events.ActionBlocked,
				Detail: "a migration is already in progress"})
		}
		return schema.Errf(schema.DatabaseError, "", "", "migration already in progress")
	}
	defer e.inProgress.Store(false)

	e.mu.Lock()
	models := make([]*schema.Model, len(e.models))
	copy(models, e.models)
	e.mu.Unlock()

	r := &migrate.Reconciler{
		Inst:     e.inst,
		Registry: e.registry,
		Models:   models,
		Sink:     sink,
	}
	return r.Run(ctx, opts)
}

// Close releases the engine's pool and removes it from the cache.
func (e *Engine) Close() {
	enginesMu.Lock()
	for key, eng := range engines {
		if eng == e {
			delete(engines, key)
		}
	}
	enginesMu.Unlock()
	e.inst.Close()
}

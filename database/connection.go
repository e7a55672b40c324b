// Package database owns connections: a process-local instance cache keyed by
// connection string, database-creation bootstrap, and transactions carrying
// the configured lock and statement timeouts.
package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Session is the database surface the engine consumes. Both *pgxpool.Pool
// and pgx.Tx satisfy it, as do test fakes.
type Session interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Options configures transaction timeouts.
type Options struct {
	MaxWait time.Duration // lock_timeout
	Timeout time.Duration // statement_timeout
}

func (o Options) withDefaults() Options {
	if o.MaxWait <= 0 {
		o.MaxWait = 2 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

// Instance is one cached connection pool.
type Instance struct {
	Pool *pgxpool.Pool
	opts Options
}

var (
	mu        sync.Mutex
	instances = map[string]*Instance{}
)

// Connect returns the cached instance for connString, creating it on first
// use. Creation ensures the target database exists (a concurrent "already
// exists" error is swallowed), opens a pool, and pings it.
func Connect(ctx context.Context, connString string, opts Options) (*Instance, error) {
	mu.Lock()
	defer mu.Unlock()

	if inst, ok := instances[connString]; ok {
		return inst, nil
	}

	if err := ensureDatabase(ctx, connString); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %v", err)
	}

	inst := &Instance{Pool: pool, opts: opts.withDefaults()}
	instances[connString] = inst
	return inst, nil
}

// ensureDatabase connects to the maintenance database and issues
// CREATE DATABASE for the target, ignoring duplicate_database.
func ensureDatabase(ctx context.Context, connString string) error {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("parsing connection string: %v", err)
	}
	target := cfg.Database
	if target == "" || target == "postgres" {
		return nil
	}

	admin := cfg.Copy()
	admin.Database = "postgres"
	conn, err := pgx.ConnectConfig(ctx, admin)
	if err != nil {
		return fmt.Errorf("connecting to maintenance database: %v", err)
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, fmt.Sprintf(`CREATE DATABASE "%s"`, target))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P04" { // duplicate_database
			return nil
		}
		return fmt.Errorf("creating database %s: %v", target, err)
	}
	return nil
}

// Transaction runs fn inside a transaction with lock_timeout and
// statement_timeout applied. Zero-valued opts fall back to the instance
// options.
func (i *Instance) Transaction(ctx context.Context, opts Options, fn func(Session) error) error {
	if opts.MaxWait <= 0 {
		opts.MaxWait = i.opts.MaxWait
	}
	if opts.Timeout <= 0 {
		opts.Timeout = i.opts.Timeout
	}

	tx, err := i.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", opts.MaxWait.Milliseconds())); err != nil {
		return fmt.Errorf("set lock_timeout: %v", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.Timeout.Milliseconds())); err != nil {
		return fmt.Errorf("set statement_timeout: %v", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Close closes the pool and drops the instance from the cache.
func (i *Instance) Close() {
	mu.Lock()
	defer mu.Unlock()
	for key, inst := range instances {
		if inst == i {
			delete(instances, key)
		}
	}
	i.Pool.Close()
}

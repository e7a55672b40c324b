// Package testutil provides a scripted database.Session so the engine's
// read-compute-apply flow is testable without a live PostgreSQL.
package testutil

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Result scripts the response for every query containing Pattern.
type Result struct {
	Pattern string
	Rows    [][]any
	Err     error
}

// Session is a fake database.Session. Queries are answered from the script
// (first matching pattern wins); executed statements are recorded.
type Session struct {
	Script   []Result
	Executed []string
	ExecErr  map[string]error // substring -> error to return from Exec
}

// On appends a scripted result.
func (s *Session) On(pattern string, rows ...[]any) *Session {
	s.Script = append(s.Script, Result{Pattern: pattern, Rows: rows})
	return s
}

// OnErr scripts a query failure.
func (s *Session) OnErr(pattern string, err error) *Session {
	s.Script = append(s.Script, Result{Pattern: pattern, Err: err})
	return s
}

func (s *Session) find(sql string) (Result, bool) {
	for _, r := range s.Script {
		if strings.Contains(sql, r.Pattern) {
			return r, true
		}
	}
	return Result{}, false
}

func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.Executed = append(s.Executed, sql)
	for pattern, err := range s.ExecErr {
		if strings.Contains(sql, pattern) {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.NewCommandTag(""), nil
}

func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	r, ok := s.find(sql)
	if !ok {
		return &rows{}, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &rows{data: r.Rows}, nil
}

func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	r, ok := s.find(sql)
	if !ok {
		return row{err: fmt.Errorf("no scripted result for query: %s", sql)}
	}
	if r.Err != nil {
		return row{err: r.Err}
	}
	if len(r.Rows) == 0 {
		return row{err: pgx.ErrNoRows}
	}
	return row{values: r.Rows[0]}
}

type row struct {
	values []any
	err    error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

type rows struct {
	data [][]any
	idx  int
	err  error
}

func (r *rows) Close()                                       {}
func (r *rows) Err() error                                   { return r.err }
func (r *rows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rows) Values() ([]any, error)                       { return nil, nil }
func (r *rows) RawValues() [][]byte                          { return nil }
func (r *rows) Conn() *pgx.Conn                              { return nil }

func (r *rows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *rows) Scan(dest ...any) error {
	return scanInto(r.data[r.idx-1], dest)
}

func scanInto(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: have %d values, want %d", len(values), len(dest))
	}
	for i, v := range values {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Pointer {
			return fmt.Errorf("scan: dest %d is not a pointer", i)
		}
		elem := dv.Elem()
		if v == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		sv := reflect.ValueOf(v)
		switch {
		case sv.Type().AssignableTo(elem.Type()):
			elem.Set(sv)
		case elem.Kind() == reflect.Pointer && sv.Type().AssignableTo(elem.Type().Elem()):
			p := reflect.New(elem.Type().Elem())
			p.Elem().Set(sv)
			elem.Set(p)
		case sv.Type().ConvertibleTo(elem.Type()):
			elem.Set(sv.Convert(elem.Type()))
		default:
			return fmt.Errorf("scan: cannot assign %T to %s", v, elem.Type())
		}
	}
	return nil
}

// Package introspect reads the live public schema: tables, columns,
// constraints, indexes, enum types and row counts. Every reader takes a
// Session so it runs equally inside or outside the outer transaction.
package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/inedumozey/morm/database"
	"github.com/inedumozey/morm/schema"
)

// Column is one live column.
type Column struct {
	Name     string
	DataType string // information_schema data_type
	UDTName  string // underlying type name, "_"-prefixed for arrays
	Nullable bool
	Default  *string
	Identity bool
}

// ForeignKey is one live single-column foreign key constraint.
type ForeignKey struct {
	ConstraintName string
	Column         string
	RefTable       string
	RefColumn      string
	OnDelete       string
	OnUpdate       string
}

// Check is one live check constraint.
type Check struct {
	Name       string
	Definition string // pg_get_constraintdef output
}

// PrimaryKey is the live primary key constraint.
type PrimaryKey struct {
	ConstraintName string
	Columns        []string
}

// Table is the live state of one table.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  *PrimaryKey
	Uniques     map[string]string // column -> constraint name, single-column only
	ForeignKeys []ForeignKey
	Checks      []Check
	Indexes     []string // index names
}

// Column returns the named live column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Counts carries the data-presence reads for one table. Nil means the read
// failed; the differ treats unknown as "assume has data".
type Counts struct {
	Rows    *int64
	NonNull map[string]*int64
}

// HasData is true unless the table is known to be empty.
func (c *Counts) HasData() bool {
	return c == nil || c.Rows == nil || *c.Rows > 0
}

// Enum is one live enum type with its ordered labels.
type Enum struct {
	Name   string
	Values []string
}

// ColumnRef locates a column using some type.
type ColumnRef struct {
	Table  string
	Column string
}

// ListTables returns the public base table names, sorted.
func ListTables(ctx context.Context, s database.Session) ([]string, error) {
	rows, err := s.Query(ctx, `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
	ORDER BY table_name;
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %v", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %v", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// TableExists reports whether the named public table exists.
func TableExists(ctx context.Context, s database.Session, table string) (bool, error) {
	var exists bool
	err := s.QueryRow(ctx, `
	SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	);
	`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %v", table, err)
	}
	return exists, nil
}

// ReadTable reads the full live state of one table.
func ReadTable(ctx context.Context, s database.Session, table string) (*Table, error) {
	t := &Table{Name: table, Uniques: map[string]string{}}

	if err := readColumns(ctx, s, t); err != nil {
		return nil, err
	}
	if err := readKeyConstraints(ctx, s, t); err != nil {
		return nil, err
	}
	if err := readForeignKeys(ctx, s, t); err != nil {
		return nil, err
	}
	if err := readChecks(ctx, s, t); err != nil {
		return nil, err
	}
	if err := readIndexes(ctx, s, t); err != nil {
		return nil, err
	}
	return t, nil
}

func readColumns(ctx context.Context, s database.Session, t *Table) error {
	rows, err := s.Query(ctx, `
	SELECT
		c.column_name,
		c.data_type,
		c.udt_name,
		(c.is_nullable = 'YES') AS is_nullable,
		c.column_default,
		(c.is_identity = 'ALWAYS') AS is_identity
	FROM information_schema.columns c
	WHERE c.table_schema = 'public' AND c.table_name = $1
	ORDER BY c.ordinal_position;
	`, t.Name)
	if err != nil {
		return fmt.Errorf("querying columns for %s: %v", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.UDTName, &col.Nullable, &col.Default, &col.Identity); err != nil {
			return fmt.Errorf("scanning column: %v", err)
		}
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func readKeyConstraints(ctx context.Context, s database.Session, t *Table) error {
	rows, err := s.Query(ctx, `
	SELECT tc.constraint_name, tc.constraint_type, kcu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_name = tc.constraint_name
		AND kcu.table_schema = tc.table_schema
	WHERE tc.table_schema = 'public'
		AND tc.table_name = $1
		AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
	ORDER BY tc.constraint_name, kcu.ordinal_position;
	`, t.Name)
	if err != nil {
		return fmt.Errorf("querying key constraints for %s: %v", t.Name, err)
	}
	defer rows.Close()

	uniqueCols := map[string][]string{}
	for rows.Next() {
		var name, ctype, column string
		if err := rows.Scan(&name, &ctype, &column); err != nil {
			return fmt.Errorf("scanning key constraint: %v", err)
		}
		if ctype == "PRIMARY KEY" {
			if t.PrimaryKey == nil {
				t.PrimaryKey = &PrimaryKey{ConstraintName: name}
			}
			t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, column)
		} else {
			uniqueCols[name] = append(uniqueCols[name], column)
		}
	}
	for name, cols := range uniqueCols {
		if len(cols) == 1 {
			t.Uniques[cols[0]] = name
		}
	}
	return rows.Err()
}

func readForeignKeys(ctx context.Context, s database.Session, t *Table) error {
	rows, err := s.Query(ctx, `
	SELECT
		tc.constraint_name,
		kcu.column_name,
		ccu.table_name AS foreign_table_name,
		ccu.column_name AS foreign_column_name,
		rc.delete_rule,
		rc.update_rule
	FROM information_schema.table_constraints AS tc
	JOIN information_schema.key_column_usage AS kcu
		ON tc.constraint_name = kcu.constraint_name
		AND tc.table_schema = kcu.table_schema
	JOIN information_schema.constraint_column_usage AS ccu
		ON ccu.constraint_name = tc.constraint_name
		AND ccu.table_schema = tc.table_schema
	LEFT JOIN information_schema.referential_constraints AS rc
		ON tc.constraint_name = rc.constraint_name
	WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = 'public'
		AND tc.table_name = $1;
	`, t.Name)
	if err != nil {
		return fmt.Errorf("querying foreign keys for %s: %v", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.ConstraintName, &fk.Column, &fk.RefTable, &fk.RefColumn, &fk.OnDelete, &fk.OnUpdate); err != nil {
			return fmt.Errorf("scanning foreign key: %v", err)
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return rows.Err()
}

func readChecks(ctx context.Context, s database.Session, t *Table) error {
	rows, err := s.Query(ctx, `
	SELECT con.conname, pg_get_constraintdef(con.oid)
	FROM pg_constraint con
	JOIN pg_class rel ON rel.oid = con.conrelid
	JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
	WHERE nsp.nspname = 'public' AND rel.relname = $1 AND con.contype = 'c';
	`, t.Name)
	if err != nil {
		return fmt.Errorf("querying checks for %s: %v", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Check
		if err := rows.Scan(&c.Name, &c.Definition); err != nil {
			return fmt.Errorf("scanning check: %v", err)
		}
		t.Checks = append(t.Checks, c)
	}
	return rows.Err()
}

func readIndexes(ctx context.Context, s database.Session, t *Table) error {
	rows, err := s.Query(ctx, `
	SELECT indexname FROM pg_indexes
	WHERE schemaname = 'public' AND tablename = $1
	ORDER BY indexname;
	`, t.Name)
	if err != nil {
		return fmt.Errorf("querying indexes for %s: %v", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning index: %v", err)
		}
		t.Indexes = append(t.Indexes, name)
	}
	return rows.Err()
}

// ReadCounts reads count(*) and per-column count(col). A failed read yields
// nil counts, which the differ treats as unknown.
func ReadCounts(ctx context.Context, s database.Session, table string, columns []string) *Counts {
	c := &Counts{NonNull: map[string]*int64{}}

	var rows int64
	if err := s.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %q`, table)).Scan(&rows); err != nil {
		return nil
	}
	c.Rows = &rows

	for _, col := range columns {
		var n int64
		if err := s.QueryRow(ctx, fmt.Sprintf(`SELECT count(%q) FROM %q`, col, table)).Scan(&n); err != nil {
			c.NonNull[col] = nil
			continue
		}
		v := n
		c.NonNull[col] = &v
	}
	return c
}

// ReadEnums returns the public enum types with their ordered labels.
func ReadEnums(ctx context.Context, s database.Session) ([]Enum, error) {
	rows, err := s.Query(ctx, `
	SELECT t.typname, e.enumlabel
	FROM pg_type t
	JOIN pg_enum e ON e.enumtypid = t.oid
	JOIN pg_namespace n ON n.oid = t.typnamespace
	WHERE n.nspname = 'public'
	ORDER BY t.typname, e.enumsortorder;
	`)
	if err != nil {
		return nil, fmt.Errorf("querying enums: %v", err)
	}
	defer rows.Close()

	var enums []Enum
	byName := map[string]int{}
	for rows.Next() {
		var name, label string
		if err := rows.Scan(&name, &label); err != nil {
			return nil, fmt.Errorf("scanning enum label: %v", err)
		}
		idx, ok := byName[name]
		if !ok {
			idx = len(enums)
			byName[name] = idx
			enums = append(enums, Enum{Name: name})
		}
		enums[idx].Values = append(enums[idx].Values, label)
	}
	return enums, rows.Err()
}

// EnumUsage lists columns whose type is the named enum, directly or as an
// array element.
func EnumUsage(ctx context.Context, s database.Session, enumName string) ([]ColumnRef, error) {
	rows, err := s.Query(ctx, `
	SELECT c.table_name, c.column_name
	FROM information_schema.columns c
	WHERE c.table_schema = 'public' AND (c.udt_name = $1 OR c.udt_name = $2)
	ORDER BY c.table_name, c.column_name;
	`, enumName, "_"+enumName)
	if err != nil {
		return nil, fmt.Errorf("querying enum usage for %s: %v", enumName, err)
	}
	defer rows.Close()

	var refs []ColumnRef
	for rows.Next() {
		var r ColumnRef
		if err := rows.Scan(&r.Table, &r.Column); err != nil {
			return nil, fmt.Errorf("scanning enum usage: %v", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// ListExtensions returns installed extension names.
func ListExtensions(ctx context.Context, s database.Session) ([]string, error) {
	rows, err := s.Query(ctx, `SELECT extname FROM pg_extension ORDER BY extname;`)
	if err != nil {
		return nil, fmt.Errorf("querying extensions: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning extension: %v", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var udtToCanonical = map[string]string{
	"int2": schema.TypeSmallint, "int4": schema.TypeInteger, "int8": schema.TypeBigint,
	"text": schema.TypeText, "bool": schema.TypeBoolean, "numeric": schema.TypeNumeric,
	"uuid": schema.TypeUUID, "json": schema.TypeJSON, "jsonb": schema.TypeJSONB,
	"date": schema.TypeDate, "time": schema.TypeTime, "timetz": schema.TypeTimetz,
	"timestamp": schema.TypeTimestamp, "timestamptz": schema.TypeTimestamptz,
}

// TypeOf maps a live column's underlying type to its canonical form. Unknown
// bases are treated as enum references, case-folded upper.
func (c *Column) TypeOf() schema.TypeRef {
	udt := c.UDTName
	var arr bool
	if strings.HasPrefix(udt, "_") {
		arr = true
		udt = udt[1:]
	}
	if canonical, ok := udtToCanonical[strings.ToLower(udt)]; ok {
		return schema.TypeRef{Base: canonical, Array: arr}
	}
	return schema.TypeRef{Base: strings.ToUpper(udt), Array: arr}
}

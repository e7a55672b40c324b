package diff

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inedumozey/morm/events"
	"github.com/inedumozey/morm/schema"
	"github.com/inedumozey/morm/testutil"
	"github.com/inedumozey/morm/validator"
)

func buildModel(t *testing.T, cfg schema.ModelConfig, enums ...schema.EnumDef) *schema.Model {
	t.Helper()
	r := schema.NewRegistry()
	for _, e := range enums {
		r.Register(e)
	}
	m := schema.Normalize(cfg, r)
	validator.ValidateModel(m)
	require.True(t, m.Valid(), "model errors: %v", m.Errors)
	return m
}

// liveColumn builds one scripted row for the columns query:
// name, data_type, udt_name, nullable, default, identity.
func liveColumn(name, udt string, nullable bool, def any) []any {
	return []any{name, "", udt, nullable, def, false}
}

// scriptTable scripts a full healthy introspection for one existing table.
func scriptTable(sess *testutil.Session, table string, rows int64, columns ...[]any) *testutil.Session {
	sess.On("SELECT EXISTS", []any{true})
	sess.On("c.is_identity", columns...)
	sess.On("constraint_type IN ('PRIMARY KEY', 'UNIQUE')", []any{table + "_pkey", "PRIMARY KEY", "id"})
	sess.On("FOREIGN KEY")
	sess.On("pg_constraint")
	sess.On("pg_indexes", []any{table + "_pkey"})
	sess.On("count(", []any{rows})
	return sess
}

func usersModel(t *testing.T, extra ...schema.ColumnConfig) *schema.Model {
	cols := append([]schema.ColumnConfig{
		{Name: "id", Type: "uuid", Primary: true, Default: "uuid()"},
	}, extra...)
	return buildModel(t, schema.ModelConfig{Table: "users", Columns: cols})
}

// timestamps as the live table carries them after a create
func liveTimestamps() [][]any {
	return [][]any{
		liveColumn("created_at", "timestamptz", false, "now()"),
		liveColumn("updated_at", "timestamptz", false, "now()"),
	}
}

func TestMigrateTableCreates(t *testing.T) {
	sess := &testutil.Session{}
	sess.On("SELECT EXISTS", []any{false})

	d := &Differ{Sess: sess, Sink: &events.Recorder{}}
	m := usersModel(t)

	require.NoError(t, d.MigrateTable(context.Background(), m))
	require.Len(t, sess.Executed, 3)
	assert.Contains(t, sess.Executed[0], `CREATE TABLE "users"`)
	assert.Contains(t, sess.Executed[1], "morm_set_updated_at")
	assert.Contains(t, sess.Executed[2], `"morm_trigger_users_updated_at"`)
}

func TestMigrateTableNoop(t *testing.T) {
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 5, cols...)

	d := &Differ{Sess: sess}
	require.NoError(t, d.MigrateTable(context.Background(), usersModel(t)))
	assert.Empty(t, sess.Executed, "replay against a matching table issues nothing")
}

func TestRenameColumnHeuristic(t *testing.T) {
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("email", "text", true, nil),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 5, cols...)

	m := usersModel(t, schema.ColumnConfig{Name: "email_address", Type: "text"})
	d := &Differ{Sess: sess}
	require.NoError(t, d.MigrateTable(context.Background(), m))

	require.Len(t, sess.Executed, 1, "rename only, data preserved: %v", sess.Executed)
	assert.Equal(t, `ALTER TABLE "users" RENAME COLUMN "email" TO "email_address";`, sess.Executed[0])
	assert.True(t, m.Column("email_address").Renamed)
}

func TestRenameNeedsExactlyOneCandidate(t *testing.T) {
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("email", "text", true, nil),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 0, cols...)

	// two TEXT candidates: no rename, add both and drop the old
	m := usersModel(t,
		schema.ColumnConfig{Name: "email_address", Type: "text"},
		schema.ColumnConfig{Name: "backup_email", Type: "text"},
	)
	d := &Differ{Sess: sess}
	require.NoError(t, d.MigrateTable(context.Background(), m))

	joined := strings.Join(sess.Executed, "\n")
	assert.NotContains(t, joined, "RENAME COLUMN")
	assert.Contains(t, joined, `ADD COLUMN "email_address" TEXT`)
	assert.Contains(t, joined, `ADD COLUMN "backup_email" TEXT`)
	assert.Contains(t, joined, `DROP COLUMN "email"`)
}

func TestAddNotNullColumnBlockedOnData(t *testing.T) {
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 5, cols...)

	notNull := true
	m := usersModel(t, schema.ColumnConfig{Name: "email", Type: "text", NotNull: &notNull})
	d := &Differ{Sess: sess}

	err := d.MigrateTable(context.Background(), m)
	var serr *schema.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.AddNotNullBlocked, serr.Kind)
	assert.Empty(t, sess.Executed)
}

func TestDropColumnBlockedOnData(t *testing.T) {
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("legacy", "int4", true, nil),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 5, cols...)

	d := &Differ{Sess: sess}
	err := d.MigrateTable(context.Background(), usersModel(t))

	var serr *schema.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.DropColumnBlocked, serr.Kind)
}

func TestDropColumnOnEmptyTable(t *testing.T) {
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("legacy", "int4", true, nil),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 0, cols...)

	d := &Differ{Sess: sess}
	require.NoError(t, d.MigrateTable(context.Background(), usersModel(t)))
	assert.Contains(t, strings.Join(sess.Executed, "\n"), `DROP COLUMN "legacy"`)
}

func TestTypeChangeBlockedOnData(t *testing.T) {
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("age", "text", true, nil),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 5, cols...)

	m := usersModel(t, schema.ColumnConfig{Name: "age", Type: "int"})
	d := &Differ{Sess: sess}

	err := d.MigrateTable(context.Background(), m)
	var serr *schema.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.TypeChangeBlocked, serr.Kind)
}

func TestTypeChangeOnEmptyTable(t *testing.T) {
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("age", "text", true, "'0'"),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 0, cols...)

	m := usersModel(t, schema.ColumnConfig{Name: "age", Type: "int"})
	d := &Differ{Sess: sess}
	require.NoError(t, d.MigrateTable(context.Background(), m))

	joined := strings.Join(sess.Executed, "\n")
	assert.Contains(t, joined, `ALTER COLUMN "age" DROP DEFAULT`)
	assert.Contains(t, joined, `ALTER COLUMN "age" TYPE INTEGER USING NULL::INTEGER`)
}

func TestPrimaryKeyMoveBlockedOnData(t *testing.T) {
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("code", "text", false, nil),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 5, cols...)

	m := buildModel(t, schema.ModelConfig{Table: "users", Columns: []schema.ColumnConfig{
		{Name: "id", Type: "uuid", Default: "uuid()"},
		{Name: "code", Type: "text", Primary: true},
	}})
	d := &Differ{Sess: sess}

	err := d.MigrateTable(context.Background(), m)
	var serr *schema.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.PrimaryKeyMoveBlocked, serr.Kind)
}

func TestAddUniqueBlockedOnData(t *testing.T) {
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("email", "text", true, nil),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 5, cols...)

	m := usersModel(t, schema.ColumnConfig{Name: "email", Type: "text", Unique: true})
	d := &Differ{Sess: sess}

	err := d.MigrateTable(context.Background(), m)
	var serr *schema.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.AddUniqueBlocked, serr.Kind)
}

func TestAddUniqueAllowedForGeneratedColumn(t *testing.T) {
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("token", "uuid", true, "gen_random_uuid()"),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 5, cols...)

	m := usersModel(t, schema.ColumnConfig{Name: "token", Type: "uuid", Unique: true, Default: "uuid()"})
	d := &Differ{Sess: sess}
	require.NoError(t, d.MigrateTable(context.Background(), m))
	assert.Contains(t, strings.Join(sess.Executed, "\n"), `ADD CONSTRAINT "users_token_key" UNIQUE ("token")`)
}

func TestCheckAddAndStability(t *testing.T) {
	// no live check: added
	sess := &testutil.Session{}
	cols := append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("age", "int4", true, nil),
	}, liveTimestamps()...)
	scriptTable(sess, "users", 5, cols...)

	m := usersModel(t, schema.ColumnConfig{Name: "age", Type: "int", Check: "age >= 18"})
	d := &Differ{Sess: sess}
	require.NoError(t, d.MigrateTable(context.Background(), m))
	assert.Contains(t, strings.Join(sess.Executed, "\n"),
		`ADD CONSTRAINT "users_age_check" CHECK ((age >= 18))`)

	// live check matches after server rewriting: second run is a no-op
	sess2 := &testutil.Session{}
	sess2.On("SELECT EXISTS", []any{true})
	sess2.On("c.is_identity", append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("age", "int4", true, nil),
	}, liveTimestamps()...)...)
	sess2.On("constraint_type IN ('PRIMARY KEY', 'UNIQUE')", []any{"users_pkey", "PRIMARY KEY", "id"})
	sess2.On("FOREIGN KEY")
	sess2.On("pg_constraint", []any{"users_age_check", "CHECK ((age >= 18))"})
	sess2.On("pg_indexes", []any{"users_pkey"})
	sess2.On("count(", []any{int64(5)})

	m2 := usersModel(t, schema.ColumnConfig{Name: "age", Type: "int", Check: "age >= 18"})
	d2 := &Differ{Sess: sess2}
	require.NoError(t, d2.MigrateTable(context.Background(), m2))
	assert.Empty(t, sess2.Executed)
}

func TestRenamedColumnForeignKeyRecreated(t *testing.T) {
	sess := &testutil.Session{}
	sess.On("SELECT EXISTS", []any{true})
	sess.On("c.is_identity", append([][]any{
		liveColumn("id", "uuid", false, "gen_random_uuid()"),
		liveColumn("author_id", "uuid", true, nil),
	}, liveTimestamps()...)...)
	sess.On("constraint_type IN ('PRIMARY KEY', 'UNIQUE')", []any{"post_pkey", "PRIMARY KEY", "id"})
	sess.On("FOREIGN KEY", []any{"post_author_id_fkey", "author_id", "users", "id", "CASCADE", "CASCADE"})
	sess.On("pg_constraint")
	sess.On("pg_indexes", []any{"post_pkey"})
	sess.On("count(", []any{int64(3)})

	m := buildModel(t, schema.ModelConfig{Table: "post", Columns: []schema.ColumnConfig{
		{Name: "id", Type: "uuid", Primary: true, Default: "uuid()"},
		{Name: "user_id", Type: "uuid", References: &schema.ReferenceConfig{
			Table: "users", Column: "id", Relation: "1:m",
		}},
	}})
	d := &Differ{Sess: sess}
	require.NoError(t, d.MigrateTable(context.Background(), m))

	joined := strings.Join(sess.Executed, "\n")
	assert.Contains(t, joined, `RENAME COLUMN "author_id" TO "user_id"`)
	assert.Contains(t, joined, `DROP CONSTRAINT "post_author_id_fkey"`)
	assert.Contains(t, joined,
		`ADD CONSTRAINT "post_user_id_fkey" FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE CASCADE ON UPDATE CASCADE`)
}

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

// IndexMigrator aligns the named single-column indexes of one table with the
// declaration: missing ones are created, stray <table>_*_idx indexes are
// dropped (the primary key index is never touched).
type IndexMigrator struct {
	Sess database.Session
	Sink events.Sink
	Dry  bool
}

func (im *IndexMigrator) Migrate(ctx context.Context, m *schema.Model) error {
	x := &executor{sess: im.Sess, sink: im.Sink, dry: im.Dry}
	section := "index:" + m.Table

	desired := map[string]string{} // index name -> column
	for _, col := range m.Indexes {
		c := m.Column(col)
		if c == nil || c.Virtual {
			return x.blocked(section, schema.Errf(schema.IndexColumnMissing, m.Table, col,
				"index declared on a column the model does not have"))
		}
		desired[schema.IndexName(m.Table, col)] = col
	}

	live, err := introspect.ReadTable(ctx, im.Sess, m.Table)
	if err != nil {
		return schema.DBErr(m.Table, err)
	}
	existing := map[string]bool{}
	for _, name := range live.Indexes {
		existing[name] = true
	}
	var pkIndex string
	if live.PrimaryKey != nil {
		pkIndex = live.PrimaryKey.ConstraintName
	}

	for name, col := range desired {
		if existing[name] {
			continue
		}
		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s);",
			generator.QuoteIdent(name), generator.QuoteIdent(m.Table), generator.QuoteIdent(col))
		if err := x.apply(ctx, section, name, events.ActionCreate, sql); err != nil {
			return err
		}
	}

	for _, name := range live.Indexes {
		if name == pkIndex {
			continue
		}
		if !strings.HasPrefix(name, m.Table+"_") || !strings.HasSuffix(name, "_idx") {
			continue
		}
		if _, ok := desired[name]; ok {
			continue
		}
		sql := fmt.Sprintf("DROP INDEX %s;", generator.QuoteIdent(name))
		if err := x.apply(ctx, section, name, events.ActionDrop, sql); err != nil {
			return err
		}
	}
	return nil
}

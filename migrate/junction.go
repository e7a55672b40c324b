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

// JunctionBuilder synthesizes the pivot tables realizing MANY-TO-MANY
// relations. Junction names are deterministic (tables sorted
// lexicographically) and deduplicated, so declaring the relation on either
// side produces the same table.
type JunctionBuilder struct {
	Sess database.Session
	Sink events.Sink
	Dry  bool
}

const junctionSection = "junction"

func (jb *JunctionBuilder) Build(ctx context.Context, models []*schema.Model) error {
	x := &executor{sess: jb.Sess, sink: jb.Sink, dry: jb.Dry}

	byTable := map[string]*schema.Model{}
	for _, m := range models {
		byTable[m.Table] = m
	}

	built := map[string]bool{}
	for _, m := range models {
		for _, rel := range m.Outgoing {
			if rel.Relation != schema.ManyToMany {
				continue
			}
			target, ok := byTable[rel.Table]
			if !ok {
				continue
			}
			if err := jb.buildOne(ctx, x, m, target, rel, built); err != nil {
				return err
			}
		}
	}
	return nil
}

func (jb *JunctionBuilder) buildOne(ctx context.Context, x *executor, src, dst *schema.Model, rel schema.RelationDesc, built map[string]bool) error {
	t1, t2 := src.Table, dst.Table
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	name := t1 + "_" + t2 + "_junction"
	if built[name] {
		return nil
	}
	built[name] = true

	srcPK := src.Column(src.PrimaryKey)
	dstPK := dst.Column(dst.PrimaryKey)
	if srcPK == nil || dstPK == nil {
		return x.blocked(junctionSection, schema.Errf(schema.RelationColumnMissing, name, "",
			"junction requires a primary key on both %s and %s", src.Table, dst.Table))
	}

	type side struct {
		column string
		table  string
		pkCol  string
		pkType schema.TypeRef
	}
	var s1, s2 side
	if rel.Self {
		base := strings.TrimSuffix(rel.Column, "_id")
		s1 = side{column: base + "_source_id", table: src.Table, pkCol: srcPK.Name, pkType: srcPK.Type}
		s2 = side{column: base + "_target_id", table: src.Table, pkCol: srcPK.Name, pkType: srcPK.Type}
	} else {
		pk1, pk2 := srcPK, dstPK
		tbl1, tbl2 := src, dst
		if src.Table != t1 {
			pk1, pk2 = dstPK, srcPK
			tbl1, tbl2 = dst, src
		}
		s1 = side{column: t1 + "_id", table: tbl1.Table, pkCol: pk1.Name, pkType: pk1.Type}
		s2 = side{column: t2 + "_id", table: tbl2.Table, pkCol: pk2.Name, pkType: pk2.Type}
	}

	exists, err := introspect.TableExists(ctx, jb.Sess, name)
	if err != nil {
		return schema.DBErr(name, err)
	}
	if exists {
		x.emit(events.Event{Section: junctionSection, Subject: name, Action: events.ActionSkip, Detail: "exists"})
		return nil
	}

	colSQL := func(s side) string {
		return fmt.Sprintf("%s %s NOT NULL REFERENCES %s(%s) ON DELETE CASCADE ON UPDATE CASCADE",
			generator.QuoteIdent(s.column), generator.TypeSQL(s.pkType),
			generator.QuoteIdent(s.table), generator.QuoteIdent(s.pkCol))
	}
	sql := fmt.Sprintf("CREATE TABLE %s (%s, %s, PRIMARY KEY (%s, %s));",
		generator.QuoteIdent(name), colSQL(s1), colSQL(s2),
		generator.QuoteIdent(s1.column), generator.QuoteIdent(s2.column))
	if err := x.apply(ctx, junctionSection, name, events.ActionCreate, sql); err != nil {
		return err
	}

	for _, s := range []side{s1, s2} {
		idx := schema.IndexName(name, s.column)
		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s);",
			generator.QuoteIdent(idx), generator.QuoteIdent(name), generator.QuoteIdent(s.column))
		if err := x.apply(ctx, junctionSection, idx, events.ActionCreate, sql); err != nil {
			return err
		}
	}
	return nil
}

package save

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/syssam/cascade"
	"github.com/syssam/cascade/dialect/sql"
	"github.com/syssam/cascade/dialect/sql/sqlgraph"
	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/schema"
)

// resolve decides the action of every node. Drafts carrying their id are
// updated, or looked up by id when an interceptor needs the original row.
// Drafts with a loaded unique key are looked up by key, with one query for
// the whole group. Everything else is inserted.
func (s *saver) resolve(ctx context.Context, t *schema.Type, nodes []*node, via *schema.Property) error {
	c := s.chain(t)
	var byID, byKey []*node
	for _, n := range nodes {
		d := n.draft
		switch {
		case d.IDOnly():
			n.kind = Noop
		case d.IDLoaded():
			switch {
			case s.mode == InsertOnly:
				n.kind = Insert
			case c.RequiresOriginal() || s.mode == UpdateOnly:
				byID = append(byID, n)
			default:
				n.kind = Update
			}
		case s.mode != InsertOnly && s.keyOf(n):
			byKey = append(byKey, n)
		default:
			n.kind = s.fresh()
		}
	}
	// Lookups of cascaded children stay key lookups.
	reason := ReasonKey
	if c.RequiresOriginal() && via == nil {
		reason = ReasonInterceptor
	}
	if err := s.lookupByKey(ctx, t, byKey, via, reason); err != nil {
		return err
	}
	reason = ReasonID
	if c.RequiresOriginal() {
		reason = ReasonInterceptor
	}
	return s.lookupByID(ctx, t, byID, reason)
}

// fresh returns the kind of a node with no persisted row.
func (s *saver) fresh() Kind {
	if s.mode == UpdateOnly {
		return Noop
	}
	return Insert
}

// keyOf loads the unique key tuple of the node. It reports false when the
// type has no key or a key property is unloaded or null.
func (s *saver) keyOf(n *node) bool {
	key := n.draft.Type().Key()
	if len(key) == 0 {
		return false
	}
	vs := make([]any, len(key))
	for i, p := range key {
		v, ok := n.draft.Prop(p)
		if !ok || v == nil {
			return false
		}
		if p.Reference() {
			id, ok := v.(*entity.Draft).ID()
			if !ok {
				return false
			}
			v = id
		}
		vs[i] = v
	}
	n.key = vs
	return true
}

func (s *saver) lookupByKey(ctx context.Context, t *schema.Type, nodes []*node, via *schema.Property, reason Reason) error {
	if len(nodes) == 0 {
		return nil
	}
	key := t.Key()
	props := append(append([]*schema.Property(nil), t.IDs()...), key...)
	if via != nil && !contains(props, via) {
		props = append(props, via)
	}
	var (
		tuples [][]any
		seen   = make(map[string]bool)
	)
	for _, n := range nodes {
		k := tupleKey(n.key)
		if !seen[k] {
			seen[k] = true
			tuples = append(tuples, n.key)
		}
	}
	rows, err := s.lookup(ctx, t, props, columns(key), tuples, reason)
	if err != nil {
		return err
	}
	matches := make(map[string][]map[string]any, len(rows))
	for _, row := range rows {
		vs, err := rowValues(t, key, row)
		if err != nil {
			return err
		}
		k := tupleKey(vs)
		matches[k] = append(matches[k], row)
	}
	inserted := make(map[string]bool)
	for _, n := range nodes {
		k := tupleKey(n.key)
		found := matches[k]
		switch len(found) {
		case 0:
			n.kind = s.fresh()
			if n.kind != Insert {
				continue
			}
			if inserted[k] {
				return cascade.NewMutationError(t.Name, "resolve",
					sqlgraph.NewConstraintError(fmt.Sprintf("new drafts share unique key %v", n.key)))
			}
			inserted[k] = true
		case 1:
			if err := s.match(t, n, props, found[0]); err != nil {
				return err
			}
		default:
			m := make(map[string]any, len(key))
			for i, p := range key {
				m[p.Name] = n.key[i]
			}
			return &cascade.AmbiguityError{Entity: t.Name, Key: m, Matches: len(found)}
		}
	}
	return nil
}

func (s *saver) lookupByID(ctx context.Context, t *schema.Type, nodes []*node, reason Reason) error {
	if len(nodes) == 0 {
		return nil
	}
	var props []*schema.Property
	for _, p := range t.Properties() {
		if p.Column() != "" {
			props = append(props, p)
		}
	}
	var (
		tuples [][]any
		seen   = make(map[string]bool)
	)
	for _, n := range nodes {
		n.key = idTuple(n.draft)
		k := tupleKey(n.key)
		if !seen[k] {
			seen[k] = true
			tuples = append(tuples, n.key)
		}
	}
	rows, err := s.lookup(ctx, t, props, columns(t.IDs()), tuples, reason)
	if err != nil {
		return err
	}
	found := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		vs, err := rowValues(t, t.IDs(), row)
		if err != nil {
			return err
		}
		found[tupleKey(vs)] = row
	}
	for _, n := range nodes {
		row, ok := found[tupleKey(n.key)]
		if !ok {
			n.kind = s.fresh()
			continue
		}
		if err := s.match(t, n, props, row); err != nil {
			return err
		}
	}
	return nil
}

// lookup issues one SELECT of the given properties, filtered by the tuples
// and, for logically deleted types, by the deleted flag.
func (s *saver) lookup(ctx context.Context, t *schema.Type, props []*schema.Property, by []string, tuples [][]any, reason Reason) ([]map[string]any, error) {
	sel := s.builder.Select(columns(props)...).From(t.Table).Where(sql.InTuples(by, tuples...))
	if p, ok := t.DeletedProperty(); ok {
		sel.Where(sql.NEQ(p.Column(), t.Deleted.Value))
	}
	query, args := sel.Query()
	if err := ctx.Err(); err != nil {
		return nil, cascade.NewMutationError(t.Name, "resolve", err)
	}
	var rows sql.Rows
	if err := s.conn.Query(ctx, query, args, &rows); err != nil {
		return nil, &cascade.StatementError{Table: t.Table, Kind: "select", SQL: query, Err: err}
	}
	maps, err := sql.ScanMaps(rows)
	if err != nil {
		return nil, &cascade.StatementError{Table: t.Table, Kind: "select", SQL: query, Err: err}
	}
	s.logger.DebugContext(ctx, "cascade: select",
		"table", t.Table, "reason", reason, "sql", query, "args", args, "rows", len(maps))
	s.res.record(Executed{
		Table:  t.Table,
		SQL:    query,
		Args:   [][]any{args},
		Kind:   "select",
		Reason: reason,
		Batch:  1,
	})
	return maps, nil
}

// match turns the node into an update of the matched row, copying the row
// id into the draft.
func (s *saver) match(t *schema.Type, n *node, props []*schema.Property, row map[string]any) error {
	original, err := fromRow(t, props, row)
	if err != nil {
		return err
	}
	for _, p := range t.IDs() {
		v, _ := original.Prop(p)
		if err := n.draft.SetProp(p, v); err != nil {
			return cascade.NewMutationError(t.Name, "resolve", err)
		}
	}
	n.original = original
	n.kind = Update
	return nil
}

// fromRow builds the draft of a persisted row. Only the selected properties
// are loaded; owning associations hold bare id references.
func fromRow(t *schema.Type, props []*schema.Property, row map[string]any) (*entity.Draft, error) {
	d := entity.New(t)
	for _, p := range props {
		raw, ok := column(row, p.Column())
		if !ok {
			return nil, cascade.NewMutationError(t.Name, "resolve", fmt.Errorf("column %q missing from result", p.Column()))
		}
		var v any = raw
		if p.Reference() && raw != nil {
			target := p.Assoc.Target
			ref := entity.New(target)
			if err := ref.SetProp(target.IDs()[0], raw); err != nil {
				return nil, cascade.NewMutationError(t.Name, "resolve", err)
			}
			v = ref
		}
		if err := d.SetProp(p, v); err != nil {
			return nil, cascade.NewMutationError(t.Name, "resolve", err)
		}
	}
	return d, nil
}

// rowValues returns the normalized values of props in row.
func rowValues(t *schema.Type, props []*schema.Property, row map[string]any) ([]any, error) {
	vs := make([]any, len(props))
	for i, p := range props {
		raw, _ := column(row, p.Column())
		k := schema.KindAny
		switch {
		case p.Scalar():
			k = p.Field.Kind
		case p.Reference():
			k = p.Assoc.Target.IDs()[0].Field.Kind
		}
		v, err := k.Convert(raw)
		if err != nil {
			return nil, cascade.NewMutationError(t.Name, "resolve", err)
		}
		vs[i] = v
	}
	return vs, nil
}

// column returns the value of the named column. Drivers folding identifier
// case are matched case-insensitively.
func column(row map[string]any, name string) (any, bool) {
	if v, ok := row[name]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func idTuple(d *entity.Draft) []any {
	ids := d.Type().IDs()
	vs := make([]any, len(ids))
	for i, p := range ids {
		vs[i], _ = d.Prop(p)
	}
	return vs
}

func tupleKey(vs []any) string {
	var sb strings.Builder
	for _, v := range vs {
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339Nano)
		}
		fmt.Fprintf(&sb, "%T:%v\x00", v, v)
	}
	return sb.String()
}

func columns(props []*schema.Property) []string {
	cols := make([]string, len(props))
	for i, p := range props {
		cols[i] = p.Column()
	}
	return cols
}

func contains(props []*schema.Property, p *schema.Property) bool {
	for _, q := range props {
		if q == p {
			return true
		}
	}
	return false
}

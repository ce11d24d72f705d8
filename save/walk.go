package save

import (
	"context"
	"errors"

	"github.com/syssam/cascade"
	"github.com/syssam/cascade/dialect"
	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/idgen"
	"github.com/syssam/cascade/intercept"
	"github.com/syssam/cascade/schema"
)

// saver holds the state of one Save call.
type saver struct {
	*Client
	conn   dialect.ExecQuerier
	res    *Result
	active map[*entity.Draft]bool // on the current association path
	done   map[*entity.Draft]bool
	chains map[string]intercept.Chain
}

// node is one draft moving through a phase.
type node struct {
	draft    *entity.Draft
	original *entity.Draft // the persisted row, if it was looked up
	kind     Kind
	key      []any
}

func (s *saver) chain(t *schema.Type) intercept.Chain {
	c, ok := s.chains[t.Name]
	if !ok {
		c = s.interceptors.Resolve(t)
		s.chains[t.Name] = c
	}
	return c
}

// saveGroup saves sibling drafts of the same type as one phase. via is the
// owning association linking the drafts to the parent phase, if any.
func (s *saver) saveGroup(ctx context.Context, t *schema.Type, drafts []*entity.Draft, via *schema.Property, depth int) error {
	if depth > s.maxDepth {
		return cascade.NewConfigurationError(t.Name, "association depth exceeds %d", s.maxDepth)
	}
	nodes := make([]*node, 0, len(drafts))
	seen := make(map[*entity.Draft]bool, len(drafts))
	for _, d := range drafts {
		if s.active[d] {
			return cascade.NewConfigurationError(t.Name, "cyclic association path reaches the same draft twice")
		}
		if s.done[d] || seen[d] {
			continue
		}
		seen[d] = true
		nodes = append(nodes, &node{draft: d})
	}
	if len(nodes) == 0 {
		return nil
	}
	for _, n := range nodes {
		s.active[n.draft] = true
	}
	defer func() {
		for _, n := range nodes {
			delete(s.active, n.draft)
		}
	}()
	if err := s.saveParents(ctx, t, nodes, depth); err != nil {
		return err
	}
	if err := s.resolve(ctx, t, nodes, via); err != nil {
		return err
	}
	if err := s.intercept(ctx, t, nodes); err != nil {
		return err
	}
	if err := s.allocate(ctx, t, nodes); err != nil {
		return err
	}
	actions, err := s.actions(t, nodes)
	if err != nil {
		return err
	}
	if err := s.exec(ctx, Batch(s.builder, actions)); err != nil {
		return err
	}
	for _, n := range nodes {
		s.done[n.draft] = true
	}
	return s.saveChildren(ctx, t, nodes, depth)
}

// saveParents saves the drafts referenced through owning associations, so
// their ids are known before the foreign keys are written. Bare id
// references are left alone.
func (s *saver) saveParents(ctx context.Context, t *schema.Type, nodes []*node, depth int) error {
	for _, p := range t.Properties() {
		if !p.Reference() {
			continue
		}
		var refs []*entity.Draft
		for _, n := range nodes {
			v, ok := n.draft.Prop(p)
			if !ok {
				continue
			}
			if ref, _ := v.(*entity.Draft); ref != nil && !ref.IDOnly() {
				refs = append(refs, ref)
			}
		}
		if len(refs) == 0 {
			continue
		}
		if err := s.saveGroup(ctx, p.Assoc.Target, refs, nil, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// saveChildren saves the drafts of inverse associations after pointing their
// back reference at the parent id.
func (s *saver) saveChildren(ctx context.Context, t *schema.Type, nodes []*node, depth int) error {
	for _, p := range t.Properties() {
		if !p.Inverse() {
			continue
		}
		back, _ := p.Assoc.Target.Property(p.Assoc.MappedBy)
		var children []*entity.Draft
		for _, n := range nodes {
			v, ok := n.draft.Prop(p)
			if !ok || v == nil {
				continue
			}
			var list []*entity.Draft
			switch v := v.(type) {
			case []*entity.Draft:
				list = v
			case *entity.Draft:
				list = []*entity.Draft{v}
			}
			if len(list) == 0 {
				continue
			}
			id, ok := n.draft.ID()
			if !ok {
				s.logger.DebugContext(ctx, "cascade: skipping children of unsaved parent",
					"entity", t.Name, "property", p.Name, "children", len(list))
				continue
			}
			parent := entity.New(t)
			if err := parent.SetProp(t.IDs()[0], id); err != nil {
				return cascade.NewMutationError(t.Name, "cascade", err)
			}
			for _, c := range list {
				if s.active[c] {
					return cascade.NewConfigurationError(p.Assoc.Target.Name, "cyclic association path reaches the same draft twice")
				}
				if err := c.SetProp(back, parent); err != nil {
					return cascade.NewMutationError(p.Assoc.Target.Name, "cascade", err)
				}
				children = append(children, c)
			}
		}
		if len(children) == 0 {
			continue
		}
		if err := s.saveGroup(ctx, p.Assoc.Target, children, back, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// intercept runs the interceptor chain on every node about to be written.
func (s *saver) intercept(ctx context.Context, t *schema.Type, nodes []*node) error {
	c := s.chain(t)
	if c.Len() == 0 {
		return nil
	}
	for _, n := range nodes {
		if n.kind == Noop {
			continue
		}
		violations, err := c.Run(ctx, n.draft, n.original)
		for _, v := range violations {
			s.logger.WarnContext(ctx, "cascade: interceptor overwrote loaded property",
				"entity", v.Entity, "property", v.Property, "before", v.Before, "after", v.After)
		}
		s.res.violations = append(s.res.violations, violations...)
		if err != nil {
			return cascade.NewMutationError(t.Name, "intercept", err)
		}
	}
	return nil
}

// allocate assigns ids to the inserted drafts that still lack one, with a
// single request to the type's generator.
func (s *saver) allocate(ctx context.Context, t *schema.Type, nodes []*node) error {
	var pending []*node
	for _, n := range nodes {
		if n.kind == Insert && !n.draft.IDLoaded() {
			pending = append(pending, n)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	g, ok := s.generators[t.Name]
	if !ok {
		return cascade.NewConfigurationError(t.Name, "missing id generator")
	}
	if t.CompositeID() && g.Strategy() != idgen.StrategyComputed {
		return cascade.NewConfigurationError(t.Name, "composite id must be computed")
	}
	switch g.Strategy() {
	case idgen.StrategyDatabase:
		return nil
	case idgen.StrategyComputed:
		return cascade.NewConfigurationError(t.Name, "computed id is not loaded")
	}
	a, ok := g.(idgen.Allocator)
	if !ok {
		return cascade.NewConfigurationError(t.Name, "prepared id generator %T does not allocate", g)
	}
	ids, err := a.Allocate(ctx, len(pending))
	if err != nil {
		var ce *cascade.ConfigurationError
		if errors.As(err, &ce) {
			if ce.Entity == "" {
				ce.Entity = t.Name
			}
			return ce
		}
		return cascade.NewMutationError(t.Name, "allocate", err)
	}
	if len(ids) != len(pending) {
		return cascade.NewConfigurationError(t.Name, "id generator returned %d ids, %d requested", len(ids), len(pending))
	}
	for i, n := range pending {
		if err := n.draft.SetProp(t.IDs()[0], ids[i]); err != nil {
			return cascade.NewMutationError(t.Name, "allocate", err)
		}
	}
	return nil
}

// actions emits one action per node. Updates drop columns equal to the
// original row and become no-ops when nothing is left.
func (s *saver) actions(t *schema.Type, nodes []*node) ([]*Action, error) {
	actions := make([]*Action, 0, len(nodes))
	for _, n := range nodes {
		if n.kind == Noop {
			continue
		}
		d := n.draft
		a := &Action{Type: t, Kind: n.kind, Draft: d}
		for _, p := range t.Properties() {
			col := p.Column()
			if col == "" || (p.ID && n.kind == Update) {
				continue
			}
			v, ok := d.Prop(p)
			if !ok || (p.ID && v == nil) {
				continue
			}
			cv, err := columnValue(t, p, v)
			if err != nil {
				return nil, err
			}
			if n.kind == Update && n.original != nil {
				if ov, ok := n.original.Prop(p); ok {
					if old, err := columnValue(t, p, ov); err == nil && entity.Equal(old, cv) {
						continue
					}
				}
			}
			a.Columns = append(a.Columns, col)
			a.Values = append(a.Values, cv)
		}
		switch n.kind {
		case Insert:
			a.Generated = !d.IDLoaded()
		case Update:
			if len(a.Columns) == 0 {
				n.kind = Noop
				continue
			}
			for _, p := range t.IDs() {
				v, _ := d.Prop(p)
				a.Where = append(a.Where, p.Column())
				a.Keys = append(a.Keys, v)
			}
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// columnValue returns the value written to the column of p: the value itself
// for fields, the referenced id for owning associations.
func columnValue(t *schema.Type, p *schema.Property, v any) (any, error) {
	if p.Scalar() || v == nil {
		return v, nil
	}
	ref, _ := v.(*entity.Draft)
	if ref == nil {
		return nil, nil
	}
	id, ok := ref.ID()
	if !ok {
		return nil, cascade.NewConfigurationError(t.Name, "reference %s has no id", p.Name)
	}
	return id, nil
}

package save

import (
	"github.com/syssam/cascade"
	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/idgen"
	"github.com/syssam/cascade/schema"
)

// checker walks a draft tree without touching it or the database. It reports
// the configuration errors that would otherwise surface in the middle of a
// save, after earlier phases already wrote rows.
type checker struct {
	*Client
	path  map[*entity.Draft]bool
	depth map[*entity.Draft]int
	ids   []*schema.Type // types with drafts needing an id, in visit order
	need  map[*schema.Type]bool
}

func (c *Client) check(root *entity.Draft) error {
	k := &checker{
		Client: c,
		path:   make(map[*entity.Draft]bool),
		depth:  make(map[*entity.Draft]int),
		need:   make(map[*schema.Type]bool),
	}
	if err := k.visit(root, nil, 0); err != nil {
		return err
	}
	for _, t := range k.ids {
		g, ok := c.generators[t.Name]
		if !ok {
			return cascade.NewConfigurationError(t.Name, "missing id generator")
		}
		if t.CompositeID() && g.Strategy() != idgen.StrategyComputed {
			return cascade.NewConfigurationError(t.Name, "composite id must be computed")
		}
	}
	return nil
}

// visit checks d and everything the walker would save with it. back is the
// property of d that the walker overwrites with its parent's id.
func (k *checker) visit(d *entity.Draft, back *schema.Property, depth int) error {
	t := d.Type()
	if k.path[d] {
		return cascade.NewConfigurationError(t.Name, "cyclic association path reaches the same draft twice")
	}
	if depth > k.maxDepth {
		return cascade.NewConfigurationError(t.Name, "association depth exceeds %d", k.maxDepth)
	}
	if seen, ok := k.depth[d]; ok && seen >= depth {
		return nil
	}
	k.depth[d] = depth
	if k.mode != UpdateOnly && !d.IDOnly() && !d.IDLoaded() && !k.need[t] {
		k.need[t] = true
		k.ids = append(k.ids, t)
	}
	k.path[d] = true
	defer delete(k.path, d)
	for _, p := range t.Properties() {
		if p.Assoc == nil || p == back {
			continue
		}
		v, ok := d.Prop(p)
		if !ok || v == nil {
			continue
		}
		if p.Reference() {
			if ref, _ := v.(*entity.Draft); ref != nil && !ref.IDOnly() {
				if err := k.visit(ref, nil, depth+1); err != nil {
					return err
				}
			}
			continue
		}
		mapped, _ := p.Assoc.Target.Property(p.Assoc.MappedBy)
		var list []*entity.Draft
		switch v := v.(type) {
		case []*entity.Draft:
			list = v
		case *entity.Draft:
			list = []*entity.Draft{v}
		}
		for _, c := range list {
			if c == nil {
				continue
			}
			if err := k.visit(c, mapped, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

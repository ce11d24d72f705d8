package schema

import (
	"github.com/go-openapi/inflect"

	"github.com/syssam/cascade"
)

// Graph holds compiled types by name.
type Graph struct {
	types []*Type
	names map[string]*Type
}

// Types returns the types in definition order.
func (g *Graph) Types() []*Type { return g.types }

// Type returns the named type.
func (g *Graph) Type(name string) (*Type, bool) {
	t, ok := g.names[name]
	return t, ok
}

// MustType returns the named type or panics.
func (g *Graph) MustType(name string) *Type {
	t, ok := g.names[name]
	if !ok {
		panic("schema: unknown type " + name)
	}
	return t
}

// Compile builds the graph from the given definitions: it fills default
// table and column names, merges mixin fields, resolves association targets
// and back references, and validates unique keys.
func Compile(defs ...*Def) (*Graph, error) {
	g := &Graph{names: make(map[string]*Type, len(defs))}
	for _, d := range defs {
		t, err := newType(d)
		if err != nil {
			return nil, err
		}
		if _, ok := g.names[t.Name]; ok {
			return nil, cascade.NewConfigurationError(t.Name, "duplicate type definition")
		}
		g.names[t.Name] = t
		g.types = append(g.types, t)
	}
	for _, t := range g.types {
		if err := g.resolve(t); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func newType(d *Def) (*Type, error) {
	if d.name == "" {
		return nil, cascade.NewConfigurationError("", "type without a name")
	}
	if len(d.ids) == 0 {
		return nil, cascade.NewConfigurationError(d.name, "no id field")
	}
	t := &Type{
		Name:    d.name,
		Table:   d.table,
		Deleted: d.deleted,
		byName:  make(map[string]*Property),
	}
	if t.Table == "" {
		t.Table = inflect.Underscore(d.name)
	}
	add := func(p *Property) error {
		if _, ok := t.byName[p.Name]; ok {
			return cascade.NewConfigurationError(t.Name, "duplicate property %q", p.Name)
		}
		p.Index = len(t.props)
		t.props = append(t.props, p)
		t.byName[p.Name] = p
		return nil
	}
	addField := func(f *Field, id bool) error {
		f = copyField(f)
		if f.Column == "" {
			f.Column = inflect.Underscore(f.Name)
		}
		p := &Property{Name: f.Name, ID: id, Field: f}
		if err := add(p); err != nil {
			return err
		}
		if id {
			t.ids = append(t.ids, p)
		}
		return nil
	}
	for _, f := range d.ids {
		if err := addField(f, true); err != nil {
			return nil, err
		}
	}
	for _, f := range d.fields {
		if err := addField(f, false); err != nil {
			return nil, err
		}
	}
	for _, m := range d.mixins {
		t.Mixins = append(t.Mixins, m.MixinName())
		for _, f := range m.Fields() {
			if err := addField(f.Descriptor(), false); err != nil {
				return nil, err
			}
		}
		if ld, ok := m.(LogicalDeleter); ok && t.Deleted == nil {
			t.Deleted = ld.LogicalDeleted()
		}
	}
	for _, a := range d.assocs {
		a := *a
		if a.Owning() && a.Column == "" {
			a.Column = inflect.Underscore(a.Name) + "_id"
		}
		if err := add(&Property{Name: a.Name, Assoc: &a}); err != nil {
			return nil, err
		}
	}
	if t.Deleted != nil {
		ld := *t.Deleted
		if ld.Value == nil {
			ld.Value = true
		}
		t.Deleted = &ld
		p, ok := t.byName[ld.Field]
		if !ok || p.Field == nil {
			return nil, cascade.NewConfigurationError(t.Name, "logical-delete field %q is not a scalar field", ld.Field)
		}
	}
	for _, name := range d.key {
		p, ok := t.byName[name]
		if !ok {
			return nil, cascade.NewConfigurationError(t.Name, "unique key names unknown property %q", name)
		}
		if p.Inverse() {
			return nil, cascade.NewConfigurationError(t.Name, "unique key property %q is an inverse association", name)
		}
		t.key = append(t.key, p)
	}
	return t, nil
}

func (g *Graph) resolve(t *Type) error {
	for _, p := range t.props {
		a := p.Assoc
		if a == nil {
			continue
		}
		target, ok := g.names[a.TargetName]
		if !ok {
			return cascade.NewConfigurationError(t.Name, "association %q targets unknown type %q", a.Name, a.TargetName)
		}
		a.Target = target
		switch {
		case a.Owning():
			if target.CompositeID() {
				return cascade.NewConfigurationError(t.Name, "association %q targets %s with a composite id", a.Name, target.Name)
			}
		case a.MappedBy == "":
			return cascade.NewConfigurationError(t.Name, "association %q must be mapped by an owning association of %s", a.Name, target.Name)
		default:
			back, ok := target.byName[a.MappedBy]
			if !ok || back.Assoc == nil || !back.Assoc.Owning() || back.Assoc.TargetName != t.Name {
				return cascade.NewConfigurationError(t.Name, "association %q is mapped by %s.%s which is not an owning association to %s", a.Name, target.Name, a.MappedBy, t.Name)
			}
			a.Inverse = back.Assoc
		}
	}
	return nil
}

func copyField(f *Field) *Field {
	c := *f
	return &c
}

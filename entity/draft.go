package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/bits"
	"reflect"
	"time"

	"github.com/syssam/cascade/schema"
)

// bitmask tracks which properties of a draft are loaded.
type bitmask []uint64

func newBitmask(n int) bitmask {
	return make(bitmask, (n+63)/64)
}

func (m bitmask) has(i int) bool { return m[i/64]&(1<<(uint(i)%64)) != 0 }
func (m bitmask) set(i int)      { m[i/64] |= 1 << (uint(i) % 64) }
func (m bitmask) clear(i int)    { m[i/64] &^= 1 << (uint(i) % 64) }

func (m bitmask) count() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// Draft is a mutable, partially loaded instance of an entity type. A property
// is either loaded, with an explicit value that may be nil, or unloaded.
// Unloaded properties are never written by the save engine.
//
// Scalar values are normalized to the Go type of their field kind. Owning and
// one-to-one associations hold a *Draft, one-to-many associations a []*Draft.
type Draft struct {
	typ    *schema.Type
	values []any
	loaded bitmask
}

// New returns an empty draft of the given type.
func New(t *schema.Type) *Draft {
	n := len(t.Properties())
	return &Draft{
		typ:    t,
		values: make([]any, n),
		loaded: newBitmask(n),
	}
}

// Type returns the entity type of the draft.
func (d *Draft) Type() *schema.Type { return d.typ }

func (d *Draft) prop(name string) *schema.Property {
	p, ok := d.typ.Property(name)
	if !ok {
		panic(fmt.Sprintf("entity: unknown property %q on %s", name, d.typ.Name))
	}
	return p
}

// Set loads a scalar property. It panics if the property does not exist, is an
// association, or the value cannot be converted to the field kind.
func (d *Draft) Set(name string, v any) *Draft {
	p := d.prop(name)
	if err := d.SetProp(p, v); err != nil {
		panic(err)
	}
	return d
}

// SetRef loads a single-valued association. A nil ref loads a null reference.
func (d *Draft) SetRef(name string, ref *Draft) *Draft {
	p := d.prop(name)
	if err := d.SetProp(p, ref); err != nil {
		panic(err)
	}
	return d
}

// Add appends children to a one-to-many association and marks it loaded.
func (d *Draft) Add(name string, children ...*Draft) *Draft {
	p := d.prop(name)
	if p.Assoc == nil || !p.Assoc.Many() {
		panic(fmt.Sprintf("entity: %s.%s is not a one-to-many association", d.typ.Name, name))
	}
	list, _ := d.values[p.Index].([]*Draft)
	for _, c := range children {
		if err := checkTarget(p, c); err != nil {
			panic(err)
		}
	}
	d.values[p.Index] = append(list, children...)
	d.loaded.set(p.Index)
	return d
}

// Unset marks the property unloaded and drops its value.
func (d *Draft) Unset(name string) *Draft {
	p := d.prop(name)
	d.values[p.Index] = nil
	d.loaded.clear(p.Index)
	return d
}

// SetProp loads the property with v, converting scalars to the field kind.
func (d *Draft) SetProp(p *schema.Property, v any) error {
	switch {
	case p.Field != nil:
		cv, err := p.Field.Kind.Convert(v)
		if err != nil {
			return fmt.Errorf("entity: %s.%s: %w", d.typ.Name, p.Name, err)
		}
		d.values[p.Index] = cv
	case p.Assoc.Many():
		list, ok := v.([]*Draft)
		if !ok && v != nil {
			return fmt.Errorf("entity: %s.%s expects []*Draft, got %T", d.typ.Name, p.Name, v)
		}
		for _, c := range list {
			if err := checkTarget(p, c); err != nil {
				return err
			}
		}
		d.values[p.Index] = list
	default:
		ref, ok := v.(*Draft)
		if !ok && v != nil {
			return fmt.Errorf("entity: %s.%s expects *Draft, got %T", d.typ.Name, p.Name, v)
		}
		if ref != nil {
			if err := checkTarget(p, ref); err != nil {
				return err
			}
		}
		if ref == nil {
			d.values[p.Index] = nil
		} else {
			d.values[p.Index] = ref
		}
	}
	d.loaded.set(p.Index)
	return nil
}

func checkTarget(p *schema.Property, ref *Draft) error {
	if ref == nil {
		return fmt.Errorf("entity: nil element for %s", p.Name)
	}
	if ref.typ != p.Assoc.Target {
		return fmt.Errorf("entity: %s expects %s, got %s", p.Name, p.Assoc.TargetName, ref.typ.Name)
	}
	return nil
}

// Prop returns the value of the property and whether it is loaded.
func (d *Draft) Prop(p *schema.Property) (any, bool) {
	if !d.loaded.has(p.Index) {
		return nil, false
	}
	return d.values[p.Index], true
}

// Loaded reports whether the property is loaded.
func (d *Draft) Loaded(p *schema.Property) bool {
	return d.loaded.has(p.Index)
}

// Get returns the value of the named property and whether it is loaded.
func (d *Draft) Get(name string) (any, bool) {
	return d.Prop(d.prop(name))
}

// IsLoaded reports whether the named property is loaded.
func (d *Draft) IsLoaded(name string) bool {
	return d.loaded.has(d.prop(name).Index)
}

// Ref returns the draft held by a single-valued association.
func (d *Draft) Ref(name string) (*Draft, bool) {
	v, ok := d.Get(name)
	if !ok {
		return nil, false
	}
	ref, _ := v.(*Draft)
	return ref, true
}

// List returns the drafts held by a one-to-many association.
func (d *Draft) List(name string) ([]*Draft, bool) {
	v, ok := d.Get(name)
	if !ok {
		return nil, false
	}
	list, _ := v.([]*Draft)
	return list, true
}

// LoadedProperties returns the loaded properties in declaration order.
func (d *Draft) LoadedProperties() []*schema.Property {
	out := make([]*schema.Property, 0, d.loaded.count())
	for _, p := range d.typ.Properties() {
		if d.loaded.has(p.Index) {
			out = append(out, p)
		}
	}
	return out
}

// IDLoaded reports whether every identifier property is loaded and non-nil.
func (d *Draft) IDLoaded() bool {
	for _, p := range d.typ.IDs() {
		v, ok := d.Prop(p)
		if !ok || v == nil {
			return false
		}
	}
	return true
}

// ID returns the identifier of the draft: the value for a single id, a
// []any tuple for composite ids. ok is false unless IDLoaded.
func (d *Draft) ID() (any, bool) {
	if !d.IDLoaded() {
		return nil, false
	}
	ids := d.typ.IDs()
	if len(ids) == 1 {
		return d.values[ids[0].Index], true
	}
	tuple := make([]any, len(ids))
	for i, p := range ids {
		tuple[i] = d.values[p.Index]
	}
	return tuple, true
}

// IDOnly reports whether the draft is a bare reference: only its id is loaded.
func (d *Draft) IDOnly() bool {
	return d.IDLoaded() && d.loaded.count() == len(d.typ.IDs())
}

// Clone returns a deep copy of the draft tree.
func (d *Draft) Clone() *Draft {
	return d.clone(make(map[*Draft]*Draft))
}

func (d *Draft) clone(seen map[*Draft]*Draft) *Draft {
	if c, ok := seen[d]; ok {
		return c
	}
	c := &Draft{
		typ:    d.typ,
		values: make([]any, len(d.values)),
		loaded: append(bitmask(nil), d.loaded...),
	}
	seen[d] = c
	for i, v := range d.values {
		switch v := v.(type) {
		case *Draft:
			c.values[i] = v.clone(seen)
		case []*Draft:
			list := make([]*Draft, len(v))
			for j := range v {
				list[j] = v[j].clone(seen)
			}
			c.values[i] = list
		case []byte:
			c.values[i] = append([]byte(nil), v...)
		default:
			c.values[i] = v
		}
	}
	return c
}

// MarshalJSON writes the loaded properties, in declaration order.
func (d *Draft) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range d.LoadedProperties() {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		v, err := json.Marshal(d.values[p.Index])
		if err != nil {
			return nil, fmt.Errorf("entity: marshal %s.%s: %w", d.typ.Name, p.Name, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns the JSON form of the draft.
func (d *Draft) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%s{%v}", d.typ.Name, err)
	}
	return string(b)
}

// Equal reports whether two normalized scalar values are equal.
func Equal(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

package entity

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/cascade/schema"
)

// FromMap builds a draft tree of type t from decoded JSON or YAML. Keys are
// property names; absent keys stay unloaded, explicit nulls are loaded.
func FromMap(t *schema.Type, m map[string]any) (*Draft, error) {
	d := New(t)
	for name, v := range m {
		p, ok := t.Property(name)
		if !ok {
			return nil, fmt.Errorf("entity: unknown property %q on %s", name, t.Name)
		}
		if p.Field != nil {
			if err := d.SetProp(p, v); err != nil {
				return nil, err
			}
			continue
		}
		if v == nil {
			if err := d.SetProp(p, nil); err != nil {
				return nil, err
			}
			continue
		}
		if p.Assoc.Many() {
			items, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("entity: %s.%s expects a list, got %T", t.Name, name, v)
			}
			list := make([]*Draft, 0, len(items))
			for _, item := range items {
				child, err := fromAny(p.Assoc.Target, item)
				if err != nil {
					return nil, err
				}
				list = append(list, child)
			}
			if err := d.SetProp(p, list); err != nil {
				return nil, err
			}
			continue
		}
		ref, err := fromAny(p.Assoc.Target, v)
		if err != nil {
			return nil, err
		}
		if err := d.SetProp(p, ref); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func fromAny(t *schema.Type, v any) (*Draft, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("entity: %s expects an object, got %T", t.Name, v)
	}
	return FromMap(t, m)
}

// ToMap returns the loaded properties as a map. Associations are converted
// recursively.
func (d *Draft) ToMap() map[string]any {
	m := make(map[string]any, d.loaded.count())
	for _, p := range d.LoadedProperties() {
		switch v := d.values[p.Index].(type) {
		case *Draft:
			m[p.Name] = v.ToMap()
		case []*Draft:
			list := make([]any, len(v))
			for i := range v {
				list[i] = v[i].ToMap()
			}
			m[p.Name] = list
		default:
			m[p.Name] = v
		}
	}
	return m
}

// MarshalMsgpack implements msgpack.Marshaler.
func (d *Draft) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal(d.ToMap())
}

var _ msgpack.Marshaler = (*Draft)(nil)

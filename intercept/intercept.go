// Package intercept runs the before-save hooks registered for entity types.
//
// Hooks receive the draft about to be saved and the persisted version of the
// same row, if the existence resolver found one. They typically fill unloaded
// properties with defaults:
//
//	reg := intercept.NewRegistry()
//	reg.Register("Role", intercept.Func(func(ctx context.Context, d, original *entity.Draft) error {
//	    if !d.IsLoaded("deleted") {
//	        d.Set("deleted", false)
//	    }
//	    return nil
//	}))
package intercept

import (
	"context"
	"sync"

	"github.com/syssam/cascade"
	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/schema"
)

// Interceptor is a before-save hook. original is nil for fresh inserts.
type Interceptor interface {
	BeforeSave(ctx context.Context, draft, original *entity.Draft) error
}

// Func adapts an ordinary function to the Interceptor interface.
type Func func(ctx context.Context, draft, original *entity.Draft) error

// BeforeSave calls f(ctx, draft, original).
func (f Func) BeforeSave(ctx context.Context, draft, original *entity.Draft) error {
	return f(ctx, draft, original)
}

// OriginalRequirer is implemented by interceptors that inspect the original
// row. Their presence makes the resolver look every row up, even when the
// draft already carries its id.
type OriginalRequirer interface {
	RequiresOriginal() bool
}

type requiring struct{ Interceptor }

func (requiring) RequiresOriginal() bool { return true }

// RequireOriginal marks i as depending on the original row.
func RequireOriginal(i Interceptor) Interceptor {
	return requiring{i}
}

// Registry maps entity types, and mixins, to ordered interceptor lists.
type Registry struct {
	mu      sync.RWMutex
	byType  map[string][]Interceptor
	byMixin map[string][]Interceptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType:  make(map[string][]Interceptor),
		byMixin: make(map[string][]Interceptor),
	}
}

// Register appends interceptors for the named entity type.
func (r *Registry) Register(typeName string, is ...Interceptor) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[typeName] = append(r.byType[typeName], is...)
	return r
}

// RegisterMixin appends interceptors for every type using the named mixin.
func (r *Registry) RegisterMixin(mixin string, is ...Interceptor) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMixin[mixin] = append(r.byMixin[mixin], is...)
	return r
}

// Resolve returns the chain for t: mixin interceptors in the order the type
// declares its mixins, then the type's own, each in registration order.
func (r *Registry) Resolve(t *schema.Type) Chain {
	c := Chain{entity: t.Name}
	if r == nil {
		return c
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range t.Mixins {
		c.hooks = append(c.hooks, r.byMixin[m]...)
	}
	c.hooks = append(c.hooks, r.byType[t.Name]...)
	for _, h := range c.hooks {
		if or, ok := h.(OriginalRequirer); ok && or.RequiresOriginal() {
			c.requiresOriginal = true
		}
	}
	return c
}

// Chain is the resolved interceptor list of one entity type.
type Chain struct {
	entity           string
	hooks            []Interceptor
	requiresOriginal bool
}

// Len returns the number of interceptors.
func (c Chain) Len() int { return len(c.hooks) }

// RequiresOriginal reports whether any interceptor inspects the original row.
func (c Chain) RequiresOriginal() bool { return c.requiresOriginal }

// Run calls every interceptor in order. Interceptors overwriting or clearing
// a property loaded before they ran are reported as violations; the save
// proceeds with the interceptor's value.
func (c Chain) Run(ctx context.Context, d, original *entity.Draft) ([]*cascade.InterceptorViolation, error) {
	var violations []*cascade.InterceptorViolation
	for _, h := range c.hooks {
		before := loadedValues(d)
		if err := h.BeforeSave(ctx, d, original); err != nil {
			return violations, err
		}
		for _, p := range d.Type().Properties() {
			old, was := before[p.Index]
			if !was {
				continue
			}
			now, ok := d.Prop(p)
			if ok && sameValue(old, now) {
				continue
			}
			violations = append(violations, &cascade.InterceptorViolation{
				Entity:   c.entity,
				Property: p.Name,
				Before:   old,
				After:    now,
			})
		}
	}
	return violations, nil
}

func loadedValues(d *entity.Draft) map[int]any {
	m := make(map[int]any)
	for _, p := range d.LoadedProperties() {
		v, _ := d.Prop(p)
		m[p.Index] = v
	}
	return m
}

func sameValue(a, b any) bool {
	switch a := a.(type) {
	case *entity.Draft:
		bd, ok := b.(*entity.Draft)
		return ok && a == bd
	case []*entity.Draft:
		bl, ok := b.([]*entity.Draft)
		if !ok || len(a) != len(bl) {
			return false
		}
		for i := range a {
			if a[i] != bl[i] {
				return false
			}
		}
		return true
	}
	return entity.Equal(a, b)
}

package intercept_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/intercept"
	"github.com/syssam/cascade/schema"
)

type audited struct{}

func (audited) MixinName() string { return "audited" }

func (audited) Fields() []schema.FieldDescriptor {
	return []schema.FieldDescriptor{schema.String("by")}
}

func roleType(t *testing.T) *schema.Type {
	t.Helper()
	g, err := schema.Compile(
		schema.Define("Role").
			ID(schema.Int("id")).
			Fields(schema.String("name")).
			Mixin(audited{}),
	)
	require.NoError(t, err)
	return g.MustType("Role")
}

func TestRegistry_Order(t *testing.T) {
	typ := roleType(t)
	var calls []string
	hook := func(name string) intercept.Interceptor {
		return intercept.Func(func(context.Context, *entity.Draft, *entity.Draft) error {
			calls = append(calls, name)
			return nil
		})
	}
	reg := intercept.NewRegistry().
		Register("Role", hook("type-1")).
		RegisterMixin("audited", hook("mixin")).
		Register("Role", hook("type-2")).
		Register("Other", hook("other"))

	c := reg.Resolve(typ)
	assert.Equal(t, 3, c.Len())
	assert.False(t, c.RequiresOriginal())
	_, err := c.Run(context.Background(), entity.New(typ), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"mixin", "type-1", "type-2"}, calls)
}

func TestRegistry_Nil(t *testing.T) {
	var reg *intercept.Registry
	c := reg.Resolve(roleType(t))
	assert.Zero(t, c.Len())
	vs, err := c.Run(context.Background(), entity.New(roleType(t)), nil)
	assert.NoError(t, err)
	assert.Empty(t, vs)
}

func TestChain_RequiresOriginal(t *testing.T) {
	typ := roleType(t)
	var seen *entity.Draft
	reg := intercept.NewRegistry().Register("Role", intercept.RequireOriginal(
		intercept.Func(func(_ context.Context, _, original *entity.Draft) error {
			seen = original
			return nil
		}),
	))
	c := reg.Resolve(typ)
	assert.True(t, c.RequiresOriginal())
	original := entity.New(typ).Set("id", 1)
	_, err := c.Run(context.Background(), entity.New(typ), original)
	require.NoError(t, err)
	assert.Same(t, original, seen)
}

func TestChain_Violations(t *testing.T) {
	typ := roleType(t)
	reg := intercept.NewRegistry().Register("Role", intercept.Func(func(_ context.Context, d, _ *entity.Draft) error {
		d.Set("name", "overwritten")
		d.Unset("by")
		if !d.IsLoaded("id") {
			d.Set("id", 1)
		}
		return nil
	}))
	d := entity.New(typ).Set("name", "role").Set("by", "me")
	vs, err := reg.Resolve(typ).Run(context.Background(), d, nil)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "name", vs[0].Property)
	assert.Equal(t, "role", vs[0].Before)
	assert.Equal(t, "overwritten", vs[0].After)
	assert.Equal(t, "by", vs[1].Property)
	assert.Nil(t, vs[1].After)
	assert.Contains(t, vs[0].Error(), "Role.name")
}

func TestChain_Error(t *testing.T) {
	typ := roleType(t)
	var second bool
	reg := intercept.NewRegistry().Register("Role",
		intercept.Func(func(context.Context, *entity.Draft, *entity.Draft) error {
			return errors.New("denied")
		}),
		intercept.Func(func(context.Context, *entity.Draft, *entity.Draft) error {
			second = true
			return nil
		}),
	)
	_, err := reg.Resolve(typ).Run(context.Background(), entity.New(typ), nil)
	assert.EqualError(t, err, "denied")
	assert.False(t, second)
}

package mixin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cascade/contrib/mixin"
	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/intercept"
	"github.com/syssam/cascade/schema"
)

var now = time.Date(2022, 10, 3, 0, 10, 0, 0, time.UTC)

func accountType(t *testing.T) *schema.Type {
	t.Helper()
	g, err := schema.Compile(
		schema.Define("Account").
			ID(schema.Int("id")).
			Fields(schema.String("name")).
			Mixin(
				mixin.SoftDelete{Column: "DELETED"},
				mixin.Time{},
				mixin.TenantID{},
			),
	)
	require.NoError(t, err)
	return g.MustType("Account")
}

func TestMixin_Fields(t *testing.T) {
	typ := accountType(t)
	for name, col := range map[string]string{
		mixin.DeletedField:      "DELETED",
		mixin.CreatedTimeField:  "created_time",
		mixin.ModifiedTimeField: "modified_time",
		mixin.TenantIDField:     "tenant_id",
	} {
		p, ok := typ.Property(name)
		require.True(t, ok, name)
		assert.Equal(t, col, p.Column())
	}
	deleted, ok := typ.DeletedProperty()
	require.True(t, ok)
	assert.Equal(t, mixin.DeletedField, deleted.Name)
	assert.Equal(t, true, typ.Deleted.Value)
	assert.Equal(t, []string{mixin.SoftDeleteName, mixin.TimeName, mixin.TenantIDName}, typ.Mixins)
}

func TestRegister_Insert(t *testing.T) {
	typ := accountType(t)
	c := mixin.Register(intercept.NewRegistry(), func() time.Time { return now }).Resolve(typ)
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.RequiresOriginal())

	d := entity.New(typ).Set("name", "a")
	ctx := mixin.WithTenant(context.Background(), "acme")
	vs, err := c.Run(ctx, d, nil)
	require.NoError(t, err)
	assert.Empty(t, vs)
	assert.Equal(t, false, entity.Lookup[bool](d, mixin.DeletedField).Value)
	assert.Equal(t, now, entity.Lookup[time.Time](d, mixin.CreatedTimeField).Value)
	assert.Equal(t, now, entity.Lookup[time.Time](d, mixin.ModifiedTimeField).Value)
	assert.Equal(t, "acme", entity.Lookup[string](d, mixin.TenantIDField).Value)
}

func TestRegister_Update(t *testing.T) {
	typ := accountType(t)
	c := mixin.Register(intercept.NewRegistry(), func() time.Time { return now }).Resolve(typ)
	d := entity.New(typ).Set("id", 1).Set("deleted", true)
	original := entity.New(typ).Set("id", 1)
	_, err := c.Run(mixin.WithTenant(context.Background(), "acme"), d, original)
	require.NoError(t, err)
	assert.Equal(t, true, entity.Lookup[bool](d, mixin.DeletedField).Value)
	assert.False(t, d.IsLoaded(mixin.CreatedTimeField))
	assert.True(t, d.IsLoaded(mixin.ModifiedTimeField))
	assert.False(t, d.IsLoaded(mixin.TenantIDField))
}

func TestTimeInterceptor_KeepsLoaded(t *testing.T) {
	typ := accountType(t)
	earlier := now.Add(-time.Hour)
	d := entity.New(typ).Set(mixin.ModifiedTimeField, earlier)
	err := mixin.TimeInterceptor(func() time.Time { return now }).BeforeSave(context.Background(), d, nil)
	require.NoError(t, err)
	assert.Equal(t, earlier, entity.Lookup[time.Time](d, mixin.ModifiedTimeField).Value)
	assert.Equal(t, now, entity.Lookup[time.Time](d, mixin.CreatedTimeField).Value)
}

func TestTenantInterceptor_NoTenant(t *testing.T) {
	typ := accountType(t)
	d := entity.New(typ)
	require.NoError(t, mixin.TenantInterceptor().BeforeSave(context.Background(), d, nil))
	assert.False(t, d.IsLoaded(mixin.TenantIDField))
}

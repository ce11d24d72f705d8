// Package mixin provides common mixins for cascade schemas, each paired with
// the interceptor that fills its fields before save.
//
// These mixins are OPTIONAL and provided as convenient starting points.
//
// Available mixins:
//   - Time: createdTime and modifiedTime fields
//   - SoftDelete: deleted flag, declared as the logical-delete field
//   - TenantID: tenantId field filled from the context
//
// Usage:
//
//	role := schema.Define("Role").
//	    ID(schema.Int("id")).
//	    Fields(schema.String("name")).
//	    Mixin(mixin.SoftDelete{}, mixin.Time{})
//
//	reg := intercept.NewRegistry()
//	mixin.Register(reg, time.Now)
package mixin

import (
	"context"
	"time"

	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/intercept"
	"github.com/syssam/cascade/schema"
)

// Mixin names, used to register interceptors.
const (
	TimeName       = "time"
	SoftDeleteName = "soft_delete"
	TenantIDName   = "tenant_id"
)

// Field names contributed by the mixins.
const (
	CreatedTimeField  = "createdTime"
	ModifiedTimeField = "modifiedTime"
	DeletedField      = "deleted"
	TenantIDField     = "tenantId"
)

// Time adds createdTime and modifiedTime fields. Empty column names default
// to created_time and modified_time.
type Time struct {
	CreatedColumn  string
	ModifiedColumn string
}

// MixinName implements schema.Mixin.
func (Time) MixinName() string { return TimeName }

// Fields of the time mixin.
func (m Time) Fields() []schema.FieldDescriptor {
	return []schema.FieldDescriptor{
		schema.Time(CreatedTimeField).StorageKey(m.CreatedColumn),
		schema.Time(ModifiedTimeField).StorageKey(m.ModifiedColumn),
	}
}

// SoftDelete adds a boolean deleted field and declares it as the
// logical-delete flag: rows with deleted = true are invisible to existence
// resolution.
type SoftDelete struct {
	Column string
}

// MixinName implements schema.Mixin.
func (SoftDelete) MixinName() string { return SoftDeleteName }

// Fields of the SoftDelete mixin.
func (m SoftDelete) Fields() []schema.FieldDescriptor {
	return []schema.FieldDescriptor{
		schema.Bool(DeletedField).StorageKey(m.Column),
	}
}

// LogicalDeleted implements schema.LogicalDeleter.
func (SoftDelete) LogicalDeleted() *schema.LogicalDeleted {
	return &schema.LogicalDeleted{Field: DeletedField, Value: true}
}

// TenantID adds a tenantId string field.
type TenantID struct {
	Column string
}

// MixinName implements schema.Mixin.
func (TenantID) MixinName() string { return TenantIDName }

// Fields of the TenantID mixin.
func (m TenantID) Fields() []schema.FieldDescriptor {
	return []schema.FieldDescriptor{
		schema.String(TenantIDField).StorageKey(m.Column),
	}
}

var (
	_ schema.Mixin          = Time{}
	_ schema.Mixin          = SoftDelete{}
	_ schema.LogicalDeleter = SoftDelete{}
	_ schema.Mixin          = TenantID{}
)

// TimeInterceptor fills modifiedTime on every save and createdTime on
// inserts, unless the caller loaded them. It inspects the original row.
func TimeInterceptor(now func() time.Time) intercept.Interceptor {
	return intercept.RequireOriginal(intercept.Func(func(_ context.Context, d, original *entity.Draft) error {
		ts := now()
		if !d.IsLoaded(ModifiedTimeField) {
			d.Set(ModifiedTimeField, ts)
		}
		if original == nil && !d.IsLoaded(CreatedTimeField) {
			d.Set(CreatedTimeField, ts)
		}
		return nil
	}))
}

// SoftDeleteInterceptor defaults the deleted flag to false.
func SoftDeleteInterceptor() intercept.Interceptor {
	return intercept.Func(func(_ context.Context, d, _ *entity.Draft) error {
		if !d.IsLoaded(DeletedField) {
			d.Set(DeletedField, false)
		}
		return nil
	})
}

type tenantKey struct{}

// WithTenant returns a context carrying the tenant id.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantInterceptor fills tenantId from the context on inserts.
func TenantInterceptor() intercept.Interceptor {
	return intercept.Func(func(ctx context.Context, d, original *entity.Draft) error {
		if original != nil || d.IsLoaded(TenantIDField) {
			return nil
		}
		if tenant, ok := ctx.Value(tenantKey{}).(string); ok {
			d.Set(TenantIDField, tenant)
		}
		return nil
	})
}

// Register registers the interceptors of every mixin in this package.
func Register(reg *intercept.Registry, now func() time.Time) *intercept.Registry {
	return reg.
		RegisterMixin(SoftDeleteName, SoftDeleteInterceptor()).
		RegisterMixin(TimeName, TimeInterceptor(now)).
		RegisterMixin(TenantIDName, TenantInterceptor())
}

package privacy

import (
	"context"
	"fmt"
	"slices"
)

// Viewer is the authenticated user on whose behalf a tree is saved.
type Viewer interface {
	GetID() string
	GetRoles() []string
	// GetTenantID returns "" outside multi-tenant deployments.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext returns the viewer attached to ctx, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic Viewer implementation.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

func (v *SimpleViewer) GetID() string       { return v.UserID }
func (v *SimpleViewer) GetRoles() []string  { return v.Roles }
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer denies the save when the context carries no viewer.
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("cascade/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole allows the save when the viewer has role.
func HasRole(role string) Rule {
	return HasAnyRole(role)
}

// HasAnyRole allows the save when the viewer has any of roles.
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner allows the save when the named property, a scalar or a reference,
// holds the viewer's id. For updates the persisted value is checked, so a
// viewer cannot take over a row by rewriting its owner.
func IsOwner(property string) Rule {
	return RuleFunc(func(ctx context.Context, s *Save) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		src := s.Draft
		if s.Original != nil {
			src = s.Original
		}
		v, ok := lookup(src, property)
		if !ok || v == nil {
			return Skip
		}
		if fmt.Sprint(v) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// TenantRule allows the save when the named property equals the viewer's
// tenant and denies it otherwise. It abstains when the viewer has no tenant
// or the value is unknown.
func TenantRule(property string) Rule {
	return RuleFunc(func(ctx context.Context, s *Save) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		v, ok := s.Value(property)
		if !ok || v == nil {
			return Skip
		}
		if fmt.Sprint(v) != viewer.GetTenantID() {
			return Denyf("cascade/privacy: tenant mismatch on %s", s.Draft.Type().Name)
		}
		return Allow
	})
}

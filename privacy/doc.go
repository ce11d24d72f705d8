// Package privacy evaluates authorization policies before drafts are saved.
//
// A policy is an ordered list of rules. Each rule returns a decision:
//
//   - Allow: the save of this draft is permitted and evaluation stops
//   - Deny: the save is rejected and evaluation stops
//   - Skip (or nil): the next rule is evaluated
//
// A policy that runs out of rules permits the save. End a policy with
// AlwaysDenyRule to deny by default.
//
// Policies run as interceptors, so they see the draft and, for updates,
// the persisted row:
//
//	policy := privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.TenantRule("tenantId"),
//	    privacy.AlwaysDenyRule(),
//	}
//	reg := intercept.NewRegistry().Register("Role", privacy.Interceptor(policy))
//	client := save.New(dialect.Postgres, save.WithInterceptors(reg))
//
// A denied draft aborts the save with a MutationError wrapping Deny:
//
//	if _, err := client.Save(ctx, tx, root); errors.Is(err, privacy.Deny) {
//	    ...
//	}
package privacy

package privacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/intercept"
)

// Policy decision sentinel errors. Use errors.Is to check for them.
var (
	// Allow terminates the evaluation with an allow decision.
	Allow = errors.New("cascade/privacy: allow rule")

	// Deny terminates the evaluation with a deny decision.
	Deny = errors.New("cascade/privacy: deny rule")

	// Skip continues the evaluation with the next rule.
	Skip = errors.New("cascade/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Op is the statement a draft is about to produce.
type Op uint

// Operations.
const (
	OpInsert Op = 1 << iota
	OpUpdate
)

// Is reports whether o matches any of the given operations.
func (o Op) Is(other Op) bool { return o&other != 0 }

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	default:
		return fmt.Sprintf("Op(%d)", uint(o))
	}
}

// Save describes one draft under evaluation.
type Save struct {
	Draft    *entity.Draft
	Original *entity.Draft // nil for inserts
}

// Op returns OpUpdate when a persisted row was found, OpInsert otherwise.
func (s *Save) Op() Op {
	if s.Original != nil {
		return OpUpdate
	}
	return OpInsert
}

// Value returns the named property of the draft, falling back to the
// persisted row when the draft leaves it unloaded.
func (s *Save) Value(name string) (any, bool) {
	if v, ok := lookup(s.Draft, name); ok {
		return v, true
	}
	if s.Original != nil {
		return lookup(s.Original, name)
	}
	return nil, false
}

func lookup(d *entity.Draft, name string) (any, bool) {
	p, ok := d.Type().Property(name)
	if !ok {
		return nil, false
	}
	v, ok := d.Prop(p)
	if ref, isRef := v.(*entity.Draft); isRef && ok {
		return ref.ID()
	}
	return v, ok
}

// Rule decides whether a draft may be saved.
type Rule interface {
	EvalSave(context.Context, *Save) error
}

// RuleFunc adapts an ordinary function to the Rule interface.
type RuleFunc func(context.Context, *Save) error

// EvalSave returns f(ctx, s).
func (f RuleFunc) EvalSave(ctx context.Context, s *Save) error {
	return f(ctx, s)
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a function of the context only.
// Returning nil is equivalent to returning Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ *Save) error {
		return eval(ctx)
	})
}

// OnOperation evaluates rule only for the given operations.
func OnOperation(rule Rule, op Op) Rule {
	return RuleFunc(func(ctx context.Context, s *Save) error {
		if s.Op().Is(op) {
			return rule.EvalSave(ctx, s)
		}
		return Skip
	})
}

// DenyOperationRule returns a rule denying the given operations.
func DenyOperationRule(op Op) Rule {
	return OnOperation(RuleFunc(func(_ context.Context, s *Save) error {
		return Denyf("cascade/privacy: %s of %s is not allowed", s.Op(), s.Draft.Type().Name)
	}), op)
}

// AllowOperationRule returns a rule allowing the given operations.
func AllowOperationRule(op Op) Rule {
	return OnOperation(AlwaysAllowRule(), op)
}

// Policy is an ordered list of rules.
type Policy []Rule

// EvalSave evaluates the rules in order. An Allow decision, or running out
// of rules, yields nil. A decision stored in the context with
// DecisionContext short-circuits the policy.
func (p Policy) EvalSave(ctx context.Context, s *Save) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.EvalSave(ctx, s); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// Interceptor returns an interceptor evaluating rule on every inserted or
// updated draft. It requires the original row, so drafts carrying their id
// are looked up and the operation is known. A bare rule is evaluated as a
// one-rule policy: Skip lets the draft through.
func Interceptor(rule Rule) intercept.Interceptor {
	p, ok := rule.(Policy)
	if !ok {
		p = Policy{rule}
	}
	return intercept.RequireOriginal(intercept.Func(func(ctx context.Context, d, original *entity.Draft) error {
		return p.EvalSave(ctx, &Save{Draft: d, Original: original})
	}))
}

type decisionCtxKey struct{}

// DecisionContext returns a context carrying a fixed decision. Skip and nil
// leave the parent unchanged.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the decision stored in ctx. An Allow
// decision is reported as nil.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalSave(context.Context, *Save) error {
	return f.decision
}

// Package idgen supplies primary key values for rows inserted by the save
// engine.
//
// Three strategies exist:
//
//   - Prepared: ids are handed out before any INSERT runs (Sequence, UUID,
//     AllocatorFunc). Child foreign keys can be wired before the parent row
//     is written.
//   - Database: the id is generated by the database and read back from the
//     INSERT. Children of such a row are saved in a later phase.
//   - Computed: the id is made of loaded fields (natural or composite keys)
//     and nothing is allocated.
package idgen

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/syssam/cascade"
)

// Strategy is the id assignment strategy of an entity type.
type Strategy uint8

// Id assignment strategies.
const (
	StrategyPrepared Strategy = iota + 1
	StrategyDatabase
	StrategyComputed
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyPrepared:
		return "prepared"
	case StrategyDatabase:
		return "database"
	case StrategyComputed:
		return "computed"
	default:
		return "unknown"
	}
}

// Generator is registered per entity type.
type Generator interface {
	Strategy() Strategy
}

// Allocator is a Generator for the Prepared strategy.
type Allocator interface {
	Generator
	// Allocate returns n ids in one request. It either returns all n ids or
	// an error, in which case nothing is consumed.
	Allocate(ctx context.Context, n int) ([]any, error)
}

// Sequence is a deterministic queue of pre-supplied ids. It is safe for
// concurrent use; each Allocate call takes a contiguous run of ids.
type Sequence struct {
	mu   sync.Mutex
	ids  []any
	next int
}

// NewSequence returns a sequence handing out ids in the given order.
func NewSequence(ids ...any) *Sequence {
	return &Sequence{ids: ids}
}

// Strategy implements Generator.
func (*Sequence) Strategy() Strategy { return StrategyPrepared }

// Allocate implements Allocator. Asking for more ids than remain is a
// configuration error.
func (s *Sequence) Allocate(ctx context.Context, n int) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if left := len(s.ids) - s.next; n > left {
		return nil, cascade.NewConfigurationError("", "id sequence exhausted: %d requested, %d left", n, left)
	}
	out := make([]any, n)
	copy(out, s.ids[s.next:s.next+n])
	s.next += n
	return out, nil
}

// Remaining returns the number of ids left.
func (s *Sequence) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids) - s.next
}

// AllocatorFunc adapts a function to the Allocator interface.
type AllocatorFunc func(ctx context.Context, n int) ([]any, error)

// Strategy implements Generator.
func (AllocatorFunc) Strategy() Strategy { return StrategyPrepared }

// Allocate calls f(ctx, n).
func (f AllocatorFunc) Allocate(ctx context.Context, n int) ([]any, error) {
	return f(ctx, n)
}

type fixed Strategy

func (s fixed) Strategy() Strategy { return Strategy(s) }

// Database returns the generator of database-generated ids.
func Database() Generator { return fixed(StrategyDatabase) }

// Computed returns the generator of ids derived from loaded fields.
func Computed() Generator { return fixed(StrategyComputed) }

// UUID returns an allocator of random (version 4) UUID strings.
func UUID() Allocator {
	return AllocatorFunc(func(_ context.Context, n int) ([]any, error) {
		out := make([]any, n)
		for i := range out {
			out[i] = uuid.NewString()
		}
		return out, nil
	})
}

var (
	_ Allocator = (*Sequence)(nil)
	_ Allocator = AllocatorFunc(nil)
)

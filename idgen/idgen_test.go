package idgen_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/cascade"
	"github.com/syssam/cascade/idgen"
)

func TestSequence(t *testing.T) {
	ctx := context.Background()
	seq := idgen.NewSequence(int64(101), int64(102), int64(103))
	assert.Equal(t, idgen.StrategyPrepared, seq.Strategy())

	ids, err := seq.Allocate(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(101), int64(102)}, ids)
	assert.Equal(t, 1, seq.Remaining())

	_, err = seq.Allocate(ctx, 2)
	require.Error(t, err)
	assert.True(t, cascade.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "2 requested, 1 left")
	assert.Equal(t, 1, seq.Remaining(), "failed allocation must not consume ids")

	ids, err = seq.Allocate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(103)}, ids)

	ids, err = seq.Allocate(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSequence_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seq := idgen.NewSequence(1)
	_, err := seq.Allocate(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, seq.Remaining())
}

func TestSequence_Concurrent(t *testing.T) {
	const workers, per = 8, 25
	ids := make([]any, workers*per)
	for i := range ids {
		ids[i] = int64(i)
	}
	seq := idgen.NewSequence(ids...)

	var (
		mu   sync.Mutex
		seen = make(map[any]struct{})
	)
	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < per; i++ {
				got, err := seq.Allocate(ctx, 1)
				if err != nil {
					return err
				}
				mu.Lock()
				seen[got[0]] = struct{}{}
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, seen, workers*per, "every id is handed out exactly once")
	assert.Zero(t, seq.Remaining())
}

func TestStrategies(t *testing.T) {
	assert.Equal(t, idgen.StrategyDatabase, idgen.Database().Strategy())
	assert.Equal(t, idgen.StrategyComputed, idgen.Computed().Strategy())
	assert.Equal(t, "database", idgen.StrategyDatabase.String())
	assert.Equal(t, "computed", idgen.StrategyComputed.String())
	assert.Equal(t, "prepared", idgen.StrategyPrepared.String())
	assert.Equal(t, "unknown", idgen.Strategy(0).String())
}

func TestUUID(t *testing.T) {
	gen := idgen.UUID()
	assert.Equal(t, idgen.StrategyPrepared, gen.Strategy())
	ids, err := gen.Allocate(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	for _, id := range ids {
		_, err := uuid.Parse(id.(string))
		assert.NoError(t, err)
	}
	assert.NotEqual(t, ids[0], ids[1])
}

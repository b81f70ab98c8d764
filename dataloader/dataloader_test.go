// dataloader/dataloader_test.go
package dataloader_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prosapient/datacop/dataloader"
	datacop_errors "github.com/prosapient/datacop/errors"
)

// countingSource records every BatchLoad call and resolves inputs from a
// fixed table.
type countingSource struct {
	mu      sync.Mutex
	calls   int
	batches [][]interface{}
	table   map[interface{}]interface{}
	fail    error
}

func (s *countingSource) BatchLoad(ctx context.Context, batchKey interface{}, inputs []interface{}) (map[interface{}]interface{}, error) {
	s.mu.Lock()
	s.calls++
	s.batches = append(s.batches, inputs)
	s.mu.Unlock()

	if s.fail != nil {
		return nil, s.fail
	}
	out := make(map[interface{}]interface{}, len(inputs))
	for _, input := range inputs {
		if value, ok := s.table[input]; ok {
			out[input] = value
		}
	}
	return out, nil
}

func TestLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownSource", func(t *testing.T) {
		loader := dataloader.New()
		err := loader.Load("nope", "key", 1)
		assert.ErrorIs(t, err, datacop_errors.ErrUnknownSource)
	})

	t.Run("GetBeforeRun", func(t *testing.T) {
		loader := dataloader.New().AddSource("acl", &countingSource{})
		require.NoError(t, loader.Load("acl", "view", 1))
		_, err := loader.Get("acl", "view", 1)
		assert.ErrorIs(t, err, datacop_errors.ErrNotLoaded)
	})

	t.Run("LoadRunGet", func(t *testing.T) {
		source := &countingSource{table: map[interface{}]interface{}{1: true, 2: false}}
		loader := dataloader.New().AddSource("acl", source)

		require.NoError(t, loader.Load("acl", "view", 1))
		require.NoError(t, loader.Load("acl", "view", 2))
		assert.True(t, loader.PendingBatches())

		require.NoError(t, loader.Run(ctx))
		assert.False(t, loader.PendingBatches())

		one, err := loader.Get("acl", "view", 1)
		require.NoError(t, err)
		assert.Equal(t, true, one)

		two, err := loader.Get("acl", "view", 2)
		require.NoError(t, err)
		assert.Equal(t, false, two)
	})

	t.Run("CoalescesOneExecutionPerBatchKey", func(t *testing.T) {
		source := &countingSource{table: map[interface{}]interface{}{1: true, 2: true, 3: true}}
		loader := dataloader.New().AddSource("acl", source)

		for _, input := range []int{1, 2, 3, 2, 1} {
			require.NoError(t, loader.Load("acl", "view", input))
		}
		require.NoError(t, loader.Run(ctx))

		assert.Equal(t, 1, source.calls)
		assert.Len(t, source.batches[0], 3, "duplicate inputs must be deduplicated")
	})

	t.Run("DistinctBatchKeysRunSeparately", func(t *testing.T) {
		source := &countingSource{table: map[interface{}]interface{}{1: true}}
		loader := dataloader.New().AddSource("acl", source)

		require.NoError(t, loader.Load("acl", "view", 1))
		require.NoError(t, loader.Load("acl", "edit", 1))
		require.NoError(t, loader.Run(ctx))

		assert.Equal(t, 2, source.calls)
	})

	t.Run("ResolvedInputsAreNotRequeued", func(t *testing.T) {
		source := &countingSource{table: map[interface{}]interface{}{1: true}}
		loader := dataloader.New().AddSource("acl", source)

		require.NoError(t, loader.Load("acl", "view", 1))
		require.NoError(t, loader.Run(ctx))
		require.NoError(t, loader.Load("acl", "view", 1))

		assert.False(t, loader.PendingBatches())
		require.NoError(t, loader.Run(ctx))
		assert.Equal(t, 1, source.calls)
	})

	t.Run("RunIsNoopWithoutPendingBatches", func(t *testing.T) {
		loader := dataloader.New().AddSource("acl", &countingSource{})
		assert.NoError(t, loader.Run(ctx))
	})

	t.Run("SourceFailureFailsTheRun", func(t *testing.T) {
		boom := errors.New("backend down")
		source := &countingSource{fail: boom}
		loader := dataloader.New().AddSource("acl", source)

		require.NoError(t, loader.Load("acl", "view", 1))
		err := loader.Run(ctx)
		assert.ErrorIs(t, err, boom)

		_, err = loader.Get("acl", "view", 1)
		assert.ErrorIs(t, err, datacop_errors.ErrNotLoaded)
	})

	t.Run("MissingInputStaysMissing", func(t *testing.T) {
		source := &countingSource{table: map[interface{}]interface{}{}}
		loader := dataloader.New().AddSource("acl", source)

		require.NoError(t, loader.Load("acl", "view", 99))
		require.NoError(t, loader.Run(ctx))

		_, err := loader.Get("acl", "view", 99)
		assert.ErrorIs(t, err, datacop_errors.ErrNotLoaded)
	})

	t.Run("SourceFunc", func(t *testing.T) {
		loader := dataloader.New().AddSource("fn", dataloader.SourceFunc(
			func(ctx context.Context, batchKey interface{}, inputs []interface{}) (map[interface{}]interface{}, error) {
				out := make(map[interface{}]interface{})
				for _, input := range inputs {
					out[input] = true
				}
				return out, nil
			}))

		require.NoError(t, loader.Load("fn", "k", "a"))
		require.NoError(t, loader.Run(ctx))
		value, err := loader.Get("fn", "k", "a")
		require.NoError(t, err)
		assert.Equal(t, true, value)
	})
}

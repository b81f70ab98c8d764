// sources/redissource/redis_test.go
package redissource_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prosapient/datacop/dataloader"
	"github.com/prosapient/datacop/sources/redissource"
)

func newTestSource(t *testing.T) (*redissource.Source, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redissource.New(client, "perm"), mr
}

func TestSource(t *testing.T) {
	ctx := context.Background()

	t.Run("GrantThenBatchLoad", func(t *testing.T) {
		source, _ := newTestSource(t)
		require.NoError(t, source.Grant(ctx, "document:view", "alice:acme", time.Minute))

		out, err := source.BatchLoad(ctx, "document:view", []interface{}{"alice:acme", "bob:acme"})
		require.NoError(t, err)
		assert.Equal(t, true, out["alice:acme"])
		assert.Equal(t, false, out["bob:acme"], "missing keys resolve to an explicit false")
	})

	t.Run("TruthyStringValues", func(t *testing.T) {
		source, mr := newTestSource(t)
		mr.Set("perm:view:a", "true")
		mr.Set("perm:view:b", "0")

		out, err := source.BatchLoad(ctx, "view", []interface{}{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, true, out["a"])
		assert.Equal(t, false, out["b"])
	})

	t.Run("DefaultPrefix", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		source := redissource.New(client, "")
		require.NoError(t, source.Grant(ctx, "view", "a", 0))
		assert.True(t, mr.Exists("perm:view:a"))
	})

	t.Run("ServerGoneFailsTheBatch", func(t *testing.T) {
		source, mr := newTestSource(t)
		mr.Close()

		_, err := source.BatchLoad(ctx, "view", []interface{}{"a"})
		assert.Error(t, err)
	})

	t.Run("LoaderIntegration", func(t *testing.T) {
		source, _ := newTestSource(t)
		require.NoError(t, source.Grant(ctx, "document:view", "alice:acme", time.Minute))

		loader := dataloader.New().AddSource("acl", source)
		require.NoError(t, loader.Load("acl", "document:view", "alice:acme"))
		require.NoError(t, loader.Load("acl", "document:view", "carol:globex"))
		require.NoError(t, loader.Run(ctx))

		granted, err := loader.Get("acl", "document:view", "alice:acme")
		require.NoError(t, err)
		assert.Equal(t, true, granted)

		denied, err := loader.Get("acl", "document:view", "carol:globex")
		require.NoError(t, err)
		assert.Equal(t, false, denied)
	})
}

package metacache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridedit/internal/core"
)

func fetchCounting(calls *atomic.Int32, meta *core.TableMeta) FetchFunc {
	return func(context.Context) (*core.TableMeta, error) {
		calls.Add(1)
		return meta, nil
	}
}

func TestGetCachesResult(t *testing.T) {
	c := New()
	key := Key{ConnectionID: "c1", Schema: "public", Table: "users"}
	meta := &core.TableMeta{Schema: "public", Table: "users"}

	var calls atomic.Int32
	for range 3 {
		got, err := c.Get(context.Background(), key, fetchCounting(&calls, meta))
		require.NoError(t, err)
		assert.Same(t, meta, got)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestGetDoesNotCacheErrors(t *testing.T) {
	c := New()
	key := Key{ConnectionID: "c1", Table: "users"}
	boom := errors.New("boom")

	_, err := c.Get(context.Background(), key, func(context.Context) (*core.TableMeta, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := c.Peek(key)
	assert.False(t, ok)

	_, err = c.Get(context.Background(), key, func(context.Context) (*core.TableMeta, error) {
		return nil, nil
	})
	assert.ErrorContains(t, err, "no metadata returned for c1/users")
}

func TestGetSharesConcurrentFetch(t *testing.T) {
	c := New()
	key := Key{ConnectionID: "c1", Table: "users"}
	release := make(chan struct{})
	var calls atomic.Int32

	fetch := func(context.Context) (*core.TableMeta, error) {
		calls.Add(1)
		<-release
		return &core.TableMeta{Table: "users"}, nil
	}

	var wg sync.WaitGroup
	results := make([]*core.TableMeta, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta, err := c.Get(context.Background(), key, fetch)
			assert.NoError(t, err)
			results[i] = meta
		}()
	}

	// Wait until the first caller is inside fetch before releasing it.
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(len(results)))
	for _, meta := range results {
		require.NotNil(t, meta)
		assert.Equal(t, "users", meta.Table)
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := New()
	ctx := context.Background()
	var calls atomic.Int32

	k1 := Key{ConnectionID: "c1", Table: "a"}
	k2 := Key{ConnectionID: "c1", Table: "b"}
	k3 := Key{ConnectionID: "c2", Table: "a"}
	for _, k := range []Key{k1, k2, k3} {
		_, err := c.Get(ctx, k, fetchCounting(&calls, &core.TableMeta{Table: k.Table}))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, c.Len())

	c.Invalidate(k1)
	_, ok := c.Peek(k1)
	assert.False(t, ok)

	_, err := c.Get(ctx, k1, fetchCounting(&calls, &core.TableMeta{Table: "a"}))
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())

	c.ClearConnection("c1")
	assert.Equal(t, 1, c.Len())
	_, ok = c.Peek(k3)
	assert.True(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

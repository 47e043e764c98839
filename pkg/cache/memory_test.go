package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HibiKier/wuthering-waves/pkg/cache"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(10)

	require.NoError(t, store.Set(ctx, "player:1", "token", time.Minute))
	v, ok, err := store.Get(ctx, "player:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "token", v)

	require.NoError(t, store.Delete(ctx, "player:1"))
	_, ok, err = store.Get(ctx, "player:1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(10)

	require.NoError(t, store.Set(ctx, "short", "v", 30*time.Millisecond))
	require.NoError(t, store.Set(ctx, "long", "v", time.Hour))

	require.Eventually(t, func() bool {
		_, ok, _ := store.Get(ctx, "short")
		return !ok
	}, time.Second, 5*time.Millisecond)

	_, ok, err := store.Get(ctx, "long")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryStore_ReadsDoNotExtendTTL(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(10)
	require.NoError(t, store.Set(ctx, "k", "v", 60*time.Millisecond))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok, _ := store.Get(ctx, "k"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("entry outlived its TTL while being read")
}

func TestMemoryStore_EvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(3)

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("k%d", i), "v", time.Hour))
	}

	require.Equal(t, 3, store.Len())
	_, ok, _ := store.Get(ctx, "k0")
	require.False(t, ok)
	_, ok, _ = store.Get(ctx, "k3")
	require.True(t, ok)
}

func TestMemoryStore_UnboundedKeepsEveryEntry(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(0)

	for i := 0; i < 500; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("player:%d", i), "1", time.Minute))
	}

	require.Equal(t, 500, store.Len())
	_, ok, _ := store.Get(ctx, "player:0")
	require.True(t, ok)
}

func TestMemo(t *testing.T) {
	ctx := context.Background()
	memo := cache.NewMemo[[]int](time.Hour)

	var loads atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) ([]int, error) {
		loads.Add(1)
		<-release
		return []int{1102, 1203}, nil
	}

	var wg sync.WaitGroup
	results := make([][]int, 3)
	errs := make([]error, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = memo.Get(ctx, "roles", load)
		}(i)
	}
	require.Eventually(t, func() bool { return loads.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, []int{1102, 1203}, results[i])
	}

	_, err := memo.Get(ctx, "roles", load)
	require.NoError(t, err)
	require.Equal(t, int32(1), loads.Load())

	memo.Forget("roles")
	_, err = memo.Get(ctx, "roles", load)
	require.NoError(t, err)
	require.Equal(t, int32(2), loads.Load())
}

func TestMemo_FailuresAreNotCached(t *testing.T) {
	memo := cache.NewMemo[string](time.Hour)
	boom := errors.New("boom")

	_, err := memo.Get(context.Background(), "k", func(context.Context) (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)

	v, err := memo.Get(context.Background(), "k", func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

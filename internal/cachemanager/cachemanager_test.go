package cachemanager

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testTTL     = time.Minute
	testCleanup = 5 * time.Minute
)

func TestInMemoryCacheManager_SetAndGet(t *testing.T) {
	cache := NewInMemoryCacheManager[string, json.RawMessage]("repos", testTTL, testCleanup)
	ctx := context.Background()

	cache.Set(ctx, "token:user/repos", json.RawMessage(`["a","b"]`), testTTL)

	got, ok := cache.Get(ctx, "token:user/repos")
	require.True(t, ok)
	require.JSONEq(t, `["a","b"]`, string(got))
}

func TestInMemoryCacheManager_Miss(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("repos", testTTL, testCleanup)

	got, ok := cache.Get(context.Background(), "missing")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_WrongTypeIsMiss(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("repos", testTTL, testCleanup)
	cache.cache.Set("key", 42, testTTL)

	got, ok := cache.Get(context.Background(), "key")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_Expiry(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("short", testTTL, testCleanup)
	ctx := context.Background()

	cache.Set(ctx, "key", "value", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := cache.Get(ctx, "key")
	require.False(t, ok)
}

func TestInMemoryCacheManager_Delete(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("repos", testTTL, testCleanup)
	ctx := context.Background()

	cache.Set(ctx, "a", "1", testTTL)
	cache.Set(ctx, "b", "2", testTTL)
	cache.Set(ctx, "c", "3", testTTL)

	require.NoError(t, cache.Delete(ctx, "a", "b"))
	_, ok := cache.Get(ctx, "a")
	require.False(t, ok)
	got, ok := cache.Get(ctx, "c")
	require.True(t, ok)
	require.Equal(t, "3", got)
}

func TestInMemoryCacheManager_ConcurrentAccess(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("concurrent", testTTL, testCleanup)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", (id*10+j)%100)
				_, _ = cache.Get(ctx, key)
				cache.Set(ctx, key, fmt.Sprintf("v-%d-%d", id, j), testTTL)
			}
		}(i)
	}
	wg.Wait()
}

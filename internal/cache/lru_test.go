package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := New[string, int](3, WithEvictHook[string, int](func(k string) {
		evicted = append(evicted, k)
	}))
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	c.Put("d", 4)

	require.Equal(t, []string{"a"}, evicted)
	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, 3, c.Len())
	for _, k := range []string{"b", "c", "d"} {
		_, ok := c.Get(k)
		require.True(t, ok, k)
	}
}

func TestLRUGetRefreshesRecency(t *testing.T) {
	t.Parallel()

	c := New[string, int](3)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	c.Put("d", 4)
	_, ok = c.Get("a")
	require.True(t, ok)
	_, ok = c.Get("b")
	require.False(t, ok)
}

func TestLRUPutReplacesWithoutGrowing(t *testing.T) {
	t.Parallel()

	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10)
	c.Put("c", 3)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 10, v)
	_, ok = c.Get("b")
	require.False(t, ok)
	require.Equal(t, 2, c.Len())
}

func TestLRUStats(t *testing.T) {
	t.Parallel()

	c := New[string, int](1)
	c.Put("a", 1)
	c.Get("a")
	c.Get("missing")
	c.Put("b", 2)

	stats := c.Stats()
	require.Equal(t, Stats{Hits: 1, Misses: 1, Evictions: 1, Size: 1, Capacity: 1}, stats)
}

func TestLRUDefaultCapacity(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultCapacity, New[string, int](0).Stats().Capacity)
}

func TestLRUConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New[string, int](16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n*j)%32)
				c.Put(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	require.LessOrEqual(t, c.Len(), 16)
}

func TestNoopNeverStores(t *testing.T) {
	t.Parallel()

	c := NewNoop[string, int]()
	c.Put("a", 1)
	_, ok := c.Get("a")
	require.False(t, ok)
}

package parser

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_ReturnsSameTree(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	first, err := cache.Parse("a + 1")
	require.NoError(t, err)
	second, err := cache.Parse("a + 1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_DoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	_, err := cache.Parse("1 +")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_ConcurrentParses(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	sources := []string{"a + 1", "b * 2", "min(a, b)", "a + 1", "b * 2"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, src := range sources {
			wg.Add(1)
			go func(src string) {
				defer wg.Done()
				_, err := cache.Parse(src)
				assert.NoError(t, err)
			}(src)
		}
	}
	wg.Wait()

	assert.Equal(t, 3, cache.Len())
}

package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	t.Parallel()
	cache := NewCache()
	uri, err := NewMemURI("builtin", "/util.js")
	require.NoError(t, err)

	rec := &Record{Key: "util", URI: uri, Exports: "exports"}
	cache.Put(rec)
	cache.Put(nil)

	got, ok := cache.Get("util")
	require.True(t, ok)
	assert.Same(t, rec, got)
	assert.Equal(t, 1, cache.Len())

	cache.Delete("util")
	_, ok = cache.Get("util")
	assert.False(t, ok)

	cache.Put(rec)
	cache.Clear()
	assert.Zero(t, cache.Len())
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	uri, err := NewMemURI("builtin", "/sub/util.js")
	require.NoError(t, err)
	assert.Equal(t, "mem:builtin!/sub/util.js", CacheKey(uri))

	t.Run("keys are normalized", func(t *testing.T) {
		messy, err := NewMemURI("builtin", "/sub/../sub//util.js")
		require.NoError(t, err)
		assert.Equal(t, CacheKey(uri), CacheKey(messy))
	})
}

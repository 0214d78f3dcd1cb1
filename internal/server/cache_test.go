package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelCacheEmpty(t *testing.T) {
	c := NewModelCache(time.Minute)

	_, _, ok := c.Get()
	assert.False(t, ok)
}

func TestModelCachePutGet(t *testing.T) {
	c := NewModelCache(time.Minute)
	c.Put([]string{"a", "b"})

	names, refreshedAt, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, names)
	assert.WithinDuration(t, time.Now(), refreshedAt, time.Second)
}

func TestModelCacheCopiesOnPutAndGet(t *testing.T) {
	src := []string{"a", "b"}
	c := NewModelCache(time.Minute)
	c.Put(src)
	src[0] = "mutated"

	names, _, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "a", names[0])

	names[1] = "mutated"
	again, _, _ := c.Get()
	assert.Equal(t, "b", again[1])
}

func TestModelCacheExpiry(t *testing.T) {
	c := NewModelCache(time.Nanosecond)
	c.Put([]string{"a"})
	time.Sleep(time.Millisecond)

	_, _, ok := c.Get()
	assert.False(t, ok)
}

func TestModelCacheInvalidate(t *testing.T) {
	c := NewModelCache(time.Minute)
	c.Put([]string{"a"})
	c.Invalidate()

	_, _, ok := c.Get()
	assert.False(t, ok)
}

func TestModelCacheEmptyListIsStillAHit(t *testing.T) {
	c := NewModelCache(time.Minute)
	c.Put(nil)

	names, _, ok := c.Get()
	require.True(t, ok)
	assert.Empty(t, names)
}

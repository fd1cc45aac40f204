package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute, "a"))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 16, 12, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	now = now.Add(59 * time.Second)
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryInvalidateByTag(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	require.NoError(t, c.Set(ctx, "k1", []byte("1"), time.Minute, "slug:a", "invitation:1"))
	require.NoError(t, c.Set(ctx, "k2", []byte("2"), time.Minute, "slug:b"))

	require.NoError(t, c.Invalidate(ctx, "invitation:1"))

	_, ok, _ := c.Get(ctx, "k1")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "k2")
	assert.True(t, ok)

	// unknown tags are a no-op
	require.NoError(t, c.Invalidate(ctx, "slug:zzz"))
	assert.Equal(t, 1, c.Len())
}

func TestMemoryZeroTTLIsNotStored(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value, time.Minute))
	value[0] = 'x'

	got, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestMemorySetFreshSkipsOvertakenStamp(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	stamp, err := c.Stamp(ctx, "slug:a")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "slug:a"))

	stored, err := c.SetFresh(ctx, "k", []byte("old"), time.Minute, stamp, "slug:a")
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok, _ := c.Get(ctx, "k")
	assert.False(t, ok)

	stamp, err = c.Stamp(ctx, "slug:a")
	require.NoError(t, err)
	stored, err = c.SetFresh(ctx, "k", []byte("new"), time.Minute, stamp, "slug:a", "invitation:1")
	require.NoError(t, err)
	assert.True(t, stored)
	got, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}

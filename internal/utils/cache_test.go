package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[int](2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestTTLCacheEviction(t *testing.T) {
	c := NewTTLCache[string](2, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, 2, c.Len())

	c.Delete("b")
	_, ok = c.Get("b")
	require.False(t, ok)
}

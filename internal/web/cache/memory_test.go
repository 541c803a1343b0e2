package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemory()
	m.now = func() time.Time { return now }

	_, err := m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, err = m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss, "entry expires at exactly its TTL")

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, m.Delete(ctx, "a", "b", "missing"))
	_, err = m.Get(ctx, "a")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemory_SetEvictsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "old", []byte("x"), time.Second))
	now = now.Add(2 * time.Second)
	require.NoError(t, m.Set(ctx, "new", []byte("y"), time.Second))

	m.mu.RLock()
	defer m.mu.RUnlock()
	require.Len(t, m.items, 1)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_SetAndGet(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k1", []byte("v1"), 60))

	val, ok, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), val)
}

func TestMemoryBackend_Miss(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()

	_, ok, err := b.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackend_TTLExpiry(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "ttl", []byte("v"), 0))
	_, ok, _ := b.Get(ctx, "ttl")
	assert.True(t, ok, "ttlSeconds=0 means no expiration")

	// A real TTL smaller than a sleep should expire.
	require.NoError(t, b.Set(ctx, "short", []byte("v"), 1))
	time.Sleep(1100 * time.Millisecond)
	_, ok, _ = b.Get(ctx, "short")
	assert.False(t, ok)
}

func TestMemoryBackend_Delete(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "d", []byte("v"), 60))
	require.NoError(t, b.Delete(ctx, "d"))

	_, ok, _ := b.Get(ctx, "d")
	assert.False(t, ok)
}

func TestMemoryBackend_SetIfAbsent(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()
	ctx := context.Background()

	stored, err := b.SetIfAbsent(ctx, "k", []byte("first"), 60)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = b.SetIfAbsent(ctx, "k", []byte("second"), 60)
	require.NoError(t, err)
	assert.False(t, stored)

	val, _, _ := b.Get(ctx, "k")
	assert.Equal(t, []byte("first"), val)
}

func TestMemoryBackend_SetIfAbsent_AfterExpiry(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()
	ctx := context.Background()

	_, err := b.SetIfAbsent(ctx, "k", []byte("first"), 1)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	stored, err := b.SetIfAbsent(ctx, "k", []byte("second"), 60)
	require.NoError(t, err)
	assert.True(t, stored, "an expired entry should not block a fresh set-if-absent")
}

func TestMemoryBackend_EvictsWhenFull(t *testing.T) {
	b := NewMemoryBackend(5, time.Hour)
	defer b.Close()
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		key := string(rune('a' + i))
		require.NoError(t, b.Set(ctx, key, []byte("v"), 60))
	}

	assert.LessOrEqual(t, b.Len(), 5)
}

func TestMemoryBackend_Stats(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()
	ctx := context.Background()

	_ = b.Set(ctx, "s", []byte("v"), 60)
	_, _, _ = b.Get(ctx, "s")
	_, _, _ = b.Get(ctx, "missing")

	stats := b.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestMemoryBackend_Ping(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()
	assert.NoError(t, b.Ping(context.Background()))
}

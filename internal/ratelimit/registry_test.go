package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_PerKeyIsolation(t *testing.T) {
	r := NewRegistry(Config{DefaultRate: 1, DefaultCapacity: 2})
	defer r.Close()

	assert.True(t, r.Allow("key-a"))
	assert.True(t, r.Allow("key-a"))
	assert.False(t, r.Allow("key-a"), "key-a should be exhausted")

	assert.True(t, r.Allow("key-b"), "key-b has its own independent bucket")
}

func TestRegistry_Override(t *testing.T) {
	r := NewRegistry(Config{DefaultRate: 1, DefaultCapacity: 1})
	defer r.Close()

	r.SetOverride("vip", 100, 50)
	for i := 0; i < 50; i++ {
		assert.True(t, r.Allow("vip"))
	}
}

func TestRegistry_SweepEvictsIdleKeys(t *testing.T) {
	r := NewRegistry(Config{
		DefaultRate:     1,
		DefaultCapacity: 1,
		IdleTimeout:     10 * time.Millisecond,
		SweepInterval:   5 * time.Millisecond,
	})
	defer r.Close()

	r.Allow("transient")
	assert.Equal(t, 1, r.Len())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 0, r.Len(), "idle key should have been swept")
}

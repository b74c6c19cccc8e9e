package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucket_StartsFull(t *testing.T) {
	b := NewBucket(1, 5)
	for i := 0; i < 5; i++ {
		assert.True(t, b.Allow(), "bucket should allow a full burst immediately")
	}
	assert.False(t, b.Allow(), "bucket should be empty after consuming its capacity")
}

func TestBucket_Refills(t *testing.T) {
	b := NewBucket(100, 1) // 100 tokens/sec, capacity 1
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow(), "bucket should have refilled after waiting")
}

func TestBucket_NeverExceedsCapacity(t *testing.T) {
	b := NewBucket(1000, 3)
	time.Sleep(50 * time.Millisecond)
	assert.InDelta(t, 3, b.Tokens(), 0.01)
}

func TestBucket_AllowN(t *testing.T) {
	b := NewBucket(1, 10)
	assert.True(t, b.AllowN(10))
	assert.False(t, b.AllowN(1))
}

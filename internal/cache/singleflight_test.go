package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/agentgate/pkg/types"
)

func TestGroup_SoloCallIsNotShared(t *testing.T) {
	g := NewGroup()

	_, shared, err := g.Do(context.Background(), "k", func(context.Context) (*types.CacheEntry, error) {
		return &types.CacheEntry{ResponseText: "solo"}, nil
	})

	require.NoError(t, err)
	assert.False(t, shared, "an uncontended call must not be reported as coalesced")
}

func TestGroup_LeaderNotSharedAttachersAreShared(t *testing.T) {
	g := NewGroup()

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (*types.CacheEntry, error) {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return &types.CacheEntry{ResponseText: "v"}, nil
	}

	const n = 50
	var wg sync.WaitGroup
	shared := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, s, _ := g.Do(context.Background(), "k", fn)
			shared[idx] = s
		}(i)
	}

	// give every goroutine a chance to either create or attach to the call
	// before releasing it, so the leader/attacher split is deterministic.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load(), "the backend must be called exactly once")

	leaders, attachers := 0, 0
	for _, s := range shared {
		if s {
			attachers++
		} else {
			leaders++
		}
	}
	assert.Equal(t, 1, leaders, "exactly one caller must be the leader that ran fn")
	assert.Equal(t, n-1, attachers, "every other caller must be reported as coalesced")
}

func TestGroup_InFlightTracksActiveCalls(t *testing.T) {
	g := NewGroup()
	release := make(chan struct{})
	started := make(chan struct{})

	done := make(chan struct{})
	go func() {
		_, _, _ = g.Do(context.Background(), "k", func(context.Context) (*types.CacheEntry, error) {
			close(started)
			<-release
			return &types.CacheEntry{}, nil
		})
		close(done)
	}()

	<-started
	assert.Equal(t, 1, g.InFlight())

	close(release)
	<-done
	assert.Equal(t, 0, g.InFlight())
}

func TestGroup_CancelingOneWaiterDoesNotAbortOthers(t *testing.T) {
	g := NewGroup()

	started := make(chan struct{})
	canceled := make(chan struct{})
	fn := func(ctx context.Context) (*types.CacheEntry, error) {
		close(started)
		<-ctx.Done()
		close(canceled)
		return nil, ctx.Err()
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		_, _, _ = g.Do(cancelCtx, "k", fn)
		close(leaderDone)
	}()
	<-started

	// a second, independent waiter attaches to the same in-flight call.
	waiterCtx, waiterCancel := context.WithCancel(context.Background())
	waiterDone := make(chan struct{})
	go func() {
		_, shared, _ := g.Do(waiterCtx, "k", fn)
		assert.True(t, shared)
		close(waiterDone)
	}()

	// give the waiter a moment to attach before the leader cancels.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-leaderDone

	select {
	case <-canceled:
		t.Fatal("computation must not be canceled while another waiter is still attached")
	case <-time.After(100 * time.Millisecond):
	}

	waiterCancel()
	<-waiterDone
	<-canceled
}

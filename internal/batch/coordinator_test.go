package batch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
	"github.com/blueberrycongee/agentgate/pkg/types"
)

type fakeExecutor struct {
	inflight  atomic.Int32
	maxSeen   atomic.Int32
	delay     time.Duration
	failModel string
}

func (f *fakeExecutor) Execute(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		max := f.maxSeen.Load()
		if cur <= max || f.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, gwerrors.Timeout("fake")
		}
	}

	if req.Model == f.failModel {
		return nil, gwerrors.Validation("empty prompt")
	}
	return &types.GenerationResult{Response: "ok:" + req.Model, Model: req.Model}, nil
}

func reqs(models ...string) []*types.GenerationRequest {
	out := make([]*types.GenerationRequest, len(models))
	for i, m := range models {
		out[i] = &types.GenerationRequest{Model: m, Prompt: "x"}
	}
	return out
}

func TestCoordinator_PreservesInputOrder(t *testing.T) {
	exec := &fakeExecutor{delay: 5 * time.Millisecond}
	c := New(exec, Config{MaxConcurrency: 10})

	out := c.Execute(context.Background(), reqs("a", "b", "c", "d", "e"))
	require.Len(t, out, 5)
	for i, model := range []string{"a", "b", "c", "d", "e"} {
		require.NotNil(t, out[i].Result)
		assert.Equal(t, "ok:"+model, out[i].Result.Response)
	}
}

func TestCoordinator_BoundsConcurrency(t *testing.T) {
	exec := &fakeExecutor{delay: 20 * time.Millisecond}
	c := New(exec, Config{MaxConcurrency: 2})

	models := make([]string, 8)
	for i := range models {
		models[i] = "m"
	}
	c.Execute(context.Background(), reqs(models...))

	assert.LessOrEqual(t, exec.maxSeen.Load(), int32(2))
}

func TestCoordinator_PartialFailure(t *testing.T) {
	exec := &fakeExecutor{failModel: "bad"}
	c := New(exec, Config{MaxConcurrency: 10})

	out := c.Execute(context.Background(), reqs("good", "bad", "good"))
	require.Len(t, out, 3)
	assert.NotNil(t, out[0].Result)
	require.NotNil(t, out[1].Err)
	assert.Equal(t, gwerrors.KindValidation, out[1].Err.Kind)
	assert.NotNil(t, out[2].Result)
}

func TestCoordinator_EmptyBatch(t *testing.T) {
	exec := &fakeExecutor{}
	c := New(exec, Config{})
	out := c.Execute(context.Background(), nil)
	assert.Empty(t, out)
}

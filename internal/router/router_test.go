package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
)

type fakeLister struct {
	models []string
	err    error
}

func (f *fakeLister) ListModels(context.Context) ([]string, error) {
	return f.models, f.err
}

func TestRouter_ExactMatch(t *testing.T) {
	r := New(&fakeLister{models: []string{"llama3.1"}}, Config{})
	r.Refresh(context.Background())

	name, gerr := r.Resolve("llama3.1")
	require.Nil(t, gerr)
	assert.Equal(t, "llama3.1", name)
}

func TestRouter_SuffixStrippedMatch(t *testing.T) {
	r := New(&fakeLister{models: []string{"llama3.1"}}, Config{})
	r.Refresh(context.Background())

	name, gerr := r.Resolve("llama3.1:70b")
	require.Nil(t, gerr)
	assert.Equal(t, "llama3.1", name)
}

func TestRouter_AliasMatch(t *testing.T) {
	r := New(&fakeLister{models: []string{"llama3.1"}}, Config{Aliases: map[string]string{"default": "llama3.1"}})
	r.Refresh(context.Background())

	name, gerr := r.Resolve("default")
	require.Nil(t, gerr)
	assert.Equal(t, "llama3.1", name)
}

func TestRouter_UnresolvedModelFailsFast(t *testing.T) {
	r := New(&fakeLister{models: []string{"llama3.1"}}, Config{})
	r.Refresh(context.Background())

	_, gerr := r.Resolve("gpt-5")
	require.NotNil(t, gerr)
	assert.Equal(t, gwerrors.KindModelUnavailable, gerr.Kind)
}

func TestRouter_InvalidateOnFailure(t *testing.T) {
	r := New(&fakeLister{models: []string{"llama3.1"}}, Config{})
	r.Refresh(context.Background())

	_, gerr := r.Resolve("llama3.1")
	require.Nil(t, gerr)

	r.InvalidateOnFailure("llama3.1")
	_, gerr = r.Resolve("llama3.1")
	require.NotNil(t, gerr)
}

func TestRouter_RefreshFailureKeepsPriorSnapshot(t *testing.T) {
	lister := &fakeLister{models: []string{"llama3.1"}}
	r := New(lister, Config{})
	r.Refresh(context.Background())

	lister.err = assertErr{}
	r.Refresh(context.Background())

	name, gerr := r.Resolve("llama3.1")
	require.Nil(t, gerr)
	assert.Equal(t, "llama3.1", name)
}

type assertErr struct{}

func (assertErr) Error() string { return "backend unreachable" }

func TestRouter_ReadyRequiresAtLeastOneModel(t *testing.T) {
	r := New(&fakeLister{}, Config{})
	assert.False(t, r.Ready())

	r = New(&fakeLister{models: []string{"llama3.1"}}, Config{})
	r.Refresh(context.Background())
	assert.True(t, r.Ready())
}

func TestRouter_StartPerformsSynchronousFirstRefresh(t *testing.T) {
	r := New(&fakeLister{models: []string{"llama3.1"}}, Config{RefreshInterval: time.Hour})
	defer r.Close()
	r.Start(context.Background())

	assert.True(t, r.Ready(), "Start must refresh once before returning")
}

func TestRouter_ResolveCacheDoesNotOutliveRefresh(t *testing.T) {
	lister := &fakeLister{models: []string{"llama3.1"}}
	r := New(lister, Config{})
	r.Refresh(context.Background())

	// Suffix-stripped resolution caches "llama3.1:latest" -> "llama3.1".
	name, gerr := r.Resolve("llama3.1:latest")
	require.Nil(t, gerr)
	assert.Equal(t, "llama3.1", name)

	// The backend now reports the tag as a distinct, directly-resolvable
	// name, and the untagged name is gone. A stale cached resolution
	// pointing at the old target would wrongly report this unavailable;
	// Refresh must drop it so resolution is recomputed from the new
	// snapshot.
	lister.models = []string{"llama3.1:latest"}
	r.Refresh(context.Background())

	name, gerr = r.Resolve("llama3.1:latest")
	require.Nil(t, gerr)
	assert.Equal(t, "llama3.1:latest", name)
}

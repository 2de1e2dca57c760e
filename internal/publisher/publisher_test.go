// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package publisher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/research-pilot/internal/store"
	"github.com/pdiddy/research-pilot/pkg/types"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func createRecord(t *testing.T, st *store.Store, id string) {
	t.Helper()
	require.NoError(t, st.Create(context.Background(), &types.ResearchRecord{
		ID:               id,
		Query:            "a question of some length",
		RequestedSources: []string{"web-search"},
	}))
}

func collect(t *testing.T, ch <-chan types.Snapshot) []types.Snapshot {
	t.Helper()
	var snaps []types.Snapshot
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return snaps
			}
			snaps = append(snaps, snap)
		case <-timeout:
			t.Fatal("feed did not finish in time")
		}
	}
}

func TestObserveTerminalRecordEndsImmediately(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	createRecord(t, st, "r1")
	require.NoError(t, st.UpdateStatus(ctx, "r1", types.StatusProcessing, ""))
	require.NoError(t, st.UpdateStatus(ctx, "r1", types.StatusCompleted, ""))

	p := New(st, types.StreamConfig{PollInterval: 10 * time.Millisecond, MaxPolls: 10}, zap.NewNop())
	snaps := collect(t, p.Observe(ctx, "r1"))

	require.Len(t, snaps, 1, "terminal record needs exactly one snapshot")
	require.NotNil(t, snaps[0].Record)
	assert.Equal(t, types.StatusCompleted, snaps[0].Record.Status)
	assert.True(t, snaps[0].Terminal())
}

func TestObserveSeesProgressThenTerminal(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	createRecord(t, st, "r1")

	p := New(st, types.StreamConfig{PollInterval: 20 * time.Millisecond, MaxPolls: 100}, zap.NewNop())
	ch := p.Observe(ctx, "r1")

	// Drive the record to completion while the feed is polling.
	go func() {
		time.Sleep(50 * time.Millisecond)
		st.UpdateStatus(ctx, "r1", types.StatusProcessing, "")
		st.SaveSynthesis(ctx, "r1", "the answer")
		time.Sleep(50 * time.Millisecond)
		st.UpdateStatus(ctx, "r1", types.StatusCompleted, "")
	}()

	snaps := collect(t, ch)
	require.NotEmpty(t, snaps)

	last := snaps[len(snaps)-1]
	require.NotNil(t, last.Record)
	assert.Equal(t, types.StatusCompleted, last.Record.Status)
	assert.Equal(t, "the answer", last.Record.Synthesis)

	for _, snap := range snaps[:len(snaps)-1] {
		assert.False(t, snap.Terminal(), "only the last snapshot may be terminal")
	}
}

func TestObserveFailedRecordIsTerminal(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	createRecord(t, st, "r1")
	require.NoError(t, st.UpdateStatus(ctx, "r1", types.StatusProcessing, ""))
	require.NoError(t, st.UpdateStatus(ctx, "r1", types.StatusFailed, "boom"))

	p := New(st, types.StreamConfig{PollInterval: 10 * time.Millisecond, MaxPolls: 10}, zap.NewNop())
	snaps := collect(t, p.Observe(ctx, "r1"))

	require.Len(t, snaps, 1)
	assert.Equal(t, types.StatusFailed, snaps[0].Record.Status)
	assert.Equal(t, "boom", snaps[0].Record.Error)
}

func TestObserveTimeoutSentinel(t *testing.T) {
	st := testStore(t)
	createRecord(t, st, "r1") // stays pending forever

	p := New(st, types.StreamConfig{PollInterval: 5 * time.Millisecond, MaxPolls: 3}, zap.NewNop())
	snaps := collect(t, p.Observe(context.Background(), "r1"))

	require.Len(t, snaps, 5, "initial snapshot + 3 polls + sentinel")
	last := snaps[len(snaps)-1]
	assert.Equal(t, timeoutMessage, last.Err)
	assert.True(t, last.Terminal())
}

func TestObserveNotFoundSentinel(t *testing.T) {
	st := testStore(t)

	p := New(st, types.StreamConfig{PollInterval: 5 * time.Millisecond, MaxPolls: 10}, zap.NewNop())
	snaps := collect(t, p.Observe(context.Background(), "missing"))

	require.Len(t, snaps, 1)
	assert.Equal(t, notFoundMessage, snaps[0].Err)
}

func TestObserveRecordDeletedMidStream(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	createRecord(t, st, "r1")

	p := New(st, types.StreamConfig{PollInterval: 20 * time.Millisecond, MaxPolls: 100}, zap.NewNop())
	ch := p.Observe(ctx, "r1")

	go func() {
		time.Sleep(50 * time.Millisecond)
		st.Delete(ctx, "r1")
	}()

	snaps := collect(t, ch)
	require.NotEmpty(t, snaps)
	assert.Equal(t, notFoundMessage, snaps[len(snaps)-1].Err)
}

func TestObserveContextCancel(t *testing.T) {
	st := testStore(t)
	createRecord(t, st, "r1")

	ctx, cancel := context.WithCancel(context.Background())
	p := New(st, types.StreamConfig{PollInterval: 10 * time.Millisecond, MaxPolls: 1000}, zap.NewNop())
	ch := p.Observe(ctx, "r1")

	<-ch // first snapshot
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// One in-flight snapshot may still arrive; the channel must
			// close right after.
			_, ok = <-ch
			assert.False(t, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("feed did not close after cancellation")
	}
}

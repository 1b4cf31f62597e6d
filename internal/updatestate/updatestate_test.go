package updatestate_test

import (
	"context"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/sap/ord-directory-server/internal/updatestate"
)

func TestInitialStateIsIdle(t *testing.T) {
	m := updatestate.New()
	snap := m.Snapshot()
	assert.Equal(t, updatestate.StateIdle, snap.State)
	assert.True(t, snap.IsReady())
}

func TestTransitions_HappyPath(t *testing.T) {
	m := updatestate.New()
	m.StartUpdate()
	assert.Equal(t, updatestate.StateUpdating, m.Snapshot().State)
	assert.False(t, m.Snapshot().IsReady())

	m.StartCacheWarming()
	assert.Equal(t, updatestate.StateWarming, m.Snapshot().State)
	assert.False(t, m.Snapshot().IsReady())

	m.CompleteCacheWarming()
	snap := m.Snapshot()
	assert.Equal(t, updatestate.StateIdle, snap.State)
	assert.True(t, snap.IsReady())
	assert.False(t, snap.LastUpdateFailed)
}

func TestFailUpdate(t *testing.T) {
	m := updatestate.New()
	m.StartUpdate()
	m.FailUpdate("network unreachable", "deadbeef")

	snap := m.Snapshot()
	assert.Equal(t, updatestate.StateFailed, snap.State)
	assert.True(t, snap.IsReady())
	assert.Equal(t, 1, snap.FailedUpdates)
	assert.Equal(t, "network unreachable", snap.LastError)
	assert.Equal(t, "deadbeef", snap.FailedCommitHash)
	assert.True(t, snap.LastUpdateFailed)
}

func TestWaitForReady_ReturnsImmediatelyWhenAlreadyReady(t *testing.T) {
	m := updatestate.New()
	snap, err := m.WaitForReady(context.Background(), time.Second)
	assert.NoError(t, err)
	assert.True(t, snap.IsReady())
}

func TestWaitForReady_UnblocksOnTransition(t *testing.T) {
	m := updatestate.New()
	m.StartUpdate()

	done := make(chan updatestate.Snapshot, 1)
	go func() {
		snap, err := m.WaitForReady(context.Background(), 2*time.Second)
		assert.NoError(t, err)
		done <- snap
	}()

	time.Sleep(20 * time.Millisecond)
	m.StartCacheWarming()
	m.CompleteCacheWarming()

	select {
	case snap := <-done:
		assert.True(t, snap.IsReady())
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForReady did not unblock after transition to idle")
	}
}

func TestWaitForReady_TimesOut(t *testing.T) {
	m := updatestate.New()
	m.StartUpdate()

	_, err := m.WaitForReady(context.Background(), 10*time.Millisecond)
	assert.Error(t, err)
}

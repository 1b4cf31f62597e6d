// Package updatestate implements the update finite state machine described
// in spec.md §4.5: idle -> updating -> warming -> idle, with a failed state
// reachable from updating or warming. Every transition wakes the callers
// parked in WaitForReady.
package updatestate

import (
	"context"
	"sync"
	"time"

	"github.com/sap/ord-directory-server/internal/apierror"
)

// State is one of the four states the update pipeline can be in.
type State string

const (
	StateIdle     State = "idle"
	StateUpdating State = "updating"
	StateWarming  State = "warming"
	StateFailed   State = "failed"
)

// Snapshot is a point-in-time view of the machine, used by the status
// observer and by callers that just want to read without waiting.
type Snapshot struct {
	State            State
	StartedAt        time.Time
	FailedUpdates    int
	LastError        string
	FailedCommitHash string
	LastUpdateFailed bool
}

// Machine is a mutex-guarded state machine with generation-counted broadcast:
// every transition closes the current "generation" channel and opens a new
// one, so waiters parked on the old channel wake up exactly once per
// transition without needing a slice of per-waiter channels.
type Machine struct {
	mu *sync.Mutex

	state            State
	startedAt        time.Time
	failedUpdates    int
	lastError        string
	failedCommitHash string
	lastUpdateFailed bool

	generation chan struct{}
}

func New() *Machine {
	return &Machine{
		mu:         &sync.Mutex{},
		state:      StateIdle,
		generation: make(chan struct{}),
	}
}

func (m *Machine) broadcastLocked() {
	close(m.generation)
	m.generation = make(chan struct{})
}

// StartUpdate transitions idle|failed -> updating, recording the start time.
func (m *Machine) StartUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUpdating
	m.startedAt = time.Now()
	m.broadcastLocked()
}

// StartCacheWarming transitions updating -> warming.
func (m *Machine) StartCacheWarming() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateWarming
	m.broadcastLocked()
}

// CompleteCacheWarming transitions warming -> idle, resetting the failure
// flag on success.
func (m *Machine) CompleteCacheWarming() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
	m.lastUpdateFailed = false
	m.broadcastLocked()
}

// FailUpdate transitions updating|warming -> failed, recording the error and
// the commit hash the failed attempt was trying to reach.
func (m *Machine) FailUpdate(reason string, failedCommitHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateFailed
	m.failedUpdates++
	m.lastError = reason
	m.failedCommitHash = failedCommitHash
	m.lastUpdateFailed = true
	m.broadcastLocked()
}

// Snapshot returns the current state without blocking.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:            m.state,
		StartedAt:        m.startedAt,
		FailedUpdates:    m.failedUpdates,
		LastError:        m.lastError,
		FailedCommitHash: m.failedCommitHash,
		LastUpdateFailed: m.lastUpdateFailed,
	}
}

// IsReady reports whether the gate should let requests through: idle and
// failed both count as ready, since failed means requests proceed against
// the previously-good current/ (spec.md §7's propagation policy).
func (s Snapshot) IsReady() bool {
	return s.State == StateIdle || s.State == StateFailed
}

// WaitForReady returns when the state becomes idle or failed, or fails with
// a Timeout error when timeout elapses first.
func (m *Machine) WaitForReady(ctx context.Context, timeout time.Duration) (Snapshot, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		m.mu.Lock()
		snap := m.snapshotLocked()
		gen := m.generation
		m.mu.Unlock()

		if snap.IsReady() {
			return snap, nil
		}

		select {
		case <-gen:
			continue
		case <-deadline.C:
			return Snapshot{}, apierror.Timeout("timed out waiting for content update to finish")
		case <-ctx.Done():
			return Snapshot{}, apierror.Timeout("request canceled while waiting for content update")
		}
	}
}

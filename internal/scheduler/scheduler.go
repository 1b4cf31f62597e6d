// Package scheduler implements the update scheduler described in spec.md
// §4.6: it reacts to webhook pushes and startup, coalesces multiple pushes
// inside a cooldown window, runs one update at a time, and tracks
// last/scheduled/failed times and errors.
package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/alecthomas/errors"

	"github.com/sap/ord-directory-server/internal/cachewarm"
	"github.com/sap/ord-directory-server/internal/gitfetch"
	"github.com/sap/ord-directory-server/internal/logging"
	"github.com/sap/ord-directory-server/internal/updatestate"
	"github.com/sap/ord-directory-server/internal/workspace"
)

// Event is one of the lifecycle notifications the scheduler emits; the
// status observer (C9) subscribes to these.
type Event struct {
	Kind      string // update-started, update-completed, update-failed, update-scheduled, update-progress
	Err       error
	Scheduled time.Time
	Progress  string
}

// Fetcher is the subset of gitfetch.Fetcher the scheduler depends on.
type Fetcher interface {
	Fetch(ctx context.Context, coords gitfetch.Coordinates, opts gitfetch.Options) (gitfetch.Metadata, error)
	GetLatestCommitSha(ctx context.Context, coords gitfetch.Coordinates) (string, error)
}

// Warmer is the subset of cachewarm.Warmer the scheduler depends on to warm
// the cache after a successful fetch+swap, or to re-warm a cold in-memory
// cache after a restart when the remote head hasn't moved.
type Warmer interface {
	WarmCache(ctx context.Context, docsPath, hash string) error
}

// Options configures a Scheduler for one deployment.
type Options struct {
	Coordinates           gitfetch.Coordinates
	RootSubpath           string
	DocumentsSubdirectory string
	Cooldown              time.Duration
	OnEvent               func(Event)
}

// Scheduler coalesces push notifications inside a cooldown window and runs
// at most one fetch+swap+warm cycle at a time.
type Scheduler struct {
	fetcher   Fetcher
	warmer    Warmer
	workspace *workspace.Workspace
	state     *updatestate.Machine
	opts      Options

	mu             *sync.Mutex
	pendingAt      time.Time
	inFlight       bool
	queued         bool
	lastCompleted  time.Time
	scheduledTimer *time.Timer
}

func New(fetcher Fetcher, warmer Warmer, ws *workspace.Workspace, state *updatestate.Machine, opts Options) *Scheduler {
	return &Scheduler{
		fetcher:   fetcher,
		warmer:    warmer,
		workspace: ws,
		state:     state,
		opts:      opts,
		mu:        &sync.Mutex{},
	}
}

func (s *Scheduler) emit(e Event) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(e)
	}
}

// ScheduleImmediateUpdate implements spec.md §4.6: if nothing is scheduled
// and no update is in flight, start immediately. If one is already
// scheduled, the scheduled time collapses to lastCompletedOrLastFailed + D,
// discarding any earlier scheduling — only the most recent push survives. If
// an update is currently running, mark that another is queued; the debounce
// timer for it is armed once the running update finishes (RunOnce's defer),
// anchored to that run's own completion time, not to the push.
//
// It returns the time a debounced update was scheduled for, the zero time
// when the update started immediately, or when the push was merely marked
// as queued behind an in-flight run — that run hasn't completed yet, so its
// own schedule isn't knowable until then. Callers report this (or a reason)
// to whoever triggered the update, per spec.md §6.
func (s *Scheduler) ScheduleImmediateUpdate(ctx context.Context, source string) time.Time {
	s.mu.Lock()

	if s.inFlight {
		s.queued = true
		s.mu.Unlock()
		return time.Time{}
	}

	if !s.pendingAt.IsZero() {
		s.scheduleAfterCooldownLocked(ctx)
		at := s.pendingAt
		s.mu.Unlock()
		return at
	}

	s.mu.Unlock()
	go s.RunOnce(ctx)
	return time.Time{}
}

// scheduleAfterCooldownLocked must be called with mu held. It arms (or
// re-arms) a timer to fire RunOnce once the cooldown window has elapsed
// since the last completion.
func (s *Scheduler) scheduleAfterCooldownLocked(ctx context.Context) {
	if s.scheduledTimer != nil {
		s.scheduledTimer.Stop()
	}

	at := s.lastCompleted.Add(s.opts.Cooldown)
	if at.Before(time.Now()) {
		at = time.Now()
	}
	s.pendingAt = at

	delay := time.Until(at)
	s.scheduledTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.pendingAt = time.Time{}
		s.mu.Unlock()
		s.RunOnce(ctx)
	})

	s.emit(Event{Kind: "update-scheduled", Scheduled: at})
}

// RunOnce acquires the single-flight guard and runs one update cycle:
// compare remote head to the current metadata's commit hash; if unchanged,
// still warm the cache (it may be cold after a restart); otherwise fetch,
// swap, save metadata, and warm. On any failure, emit update-failed and
// transition the state machine to failed; the scheduler remains ready for
// the next attempt (no backoff — debounce is the only throttle).
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.lastCompleted = time.Now()
		if s.queued {
			s.queued = false
			s.scheduleAfterCooldownLocked(ctx)
		}
		s.mu.Unlock()
	}()

	logger := logging.FromContext(ctx)
	s.state.StartUpdate()
	s.emit(Event{Kind: "update-started"})

	remoteSha, err := s.fetcher.GetLatestCommitSha(ctx, s.opts.Coordinates)
	if err != nil {
		s.fail(ctx, err, "")
		return
	}

	currentMeta, _ := s.workspace.GetMetadata()
	if currentMeta.CommitHash == remoteSha {
		logger.InfoContext(ctx, "remote head unchanged, re-warming cache", "commitHash", remoteSha)
		s.state.StartCacheWarming()
		hash, err := cachewarm.DirectoryFingerprint(s.workspace.CurrentDir(), remoteSha, s.opts.RootSubpath)
		if err != nil {
			s.fail(ctx, err, remoteSha)
			return
		}
		if err := s.warmer.WarmCache(ctx, s.documentsPath(), hash); err != nil {
			s.fail(ctx, err, remoteSha)
			return
		}
		s.state.CompleteCacheWarming()
		s.emit(Event{Kind: "update-completed"})
		return
	}

	if err := s.workspace.PrepareTempDirectoryWithGit(); err != nil {
		s.fail(ctx, err, remoteSha)
		return
	}

	meta, err := s.fetcher.Fetch(ctx, s.opts.Coordinates, gitfetch.Options{
		RootSubpath: s.opts.RootSubpath,
		TargetDir:   s.workspace.TempDir(),
		StagingDir:  s.workspace.StagingDir(),
		Progress:    func(stage string) { s.emit(Event{Kind: "update-progress", Progress: stage}) },
	})
	if err != nil {
		s.fail(ctx, err, remoteSha)
		return
	}

	if err := s.workspace.SwapDirectories(ctx); err != nil {
		s.fail(ctx, err, remoteSha)
		return
	}
	if err := s.workspace.SaveMetadata(meta); err != nil {
		s.fail(ctx, err, remoteSha)
		return
	}

	s.state.StartCacheWarming()
	hash, err := cachewarm.DirectoryFingerprint(s.workspace.CurrentDir(), meta.CommitHash, s.opts.RootSubpath)
	if err != nil {
		s.fail(ctx, err, remoteSha)
		return
	}
	if err := s.warmer.WarmCache(ctx, s.documentsPath(), hash); err != nil {
		s.fail(ctx, err, remoteSha)
		return
	}

	if err := s.workspace.CleanupTempDirectory(); err != nil {
		logger.WarnContext(ctx, "failed to clean up temp directory after successful swap", "error", err)
	}

	s.state.CompleteCacheWarming()
	s.emit(Event{Kind: "update-completed"})
}

// documentsPath resolves the directory ORD documents are read from: the
// working root (already narrowed to rootSubpath by the fetch's extraction
// step) joined with the configured documentsSubdirectory.
func (s *Scheduler) documentsPath() string {
	sub := s.opts.DocumentsSubdirectory
	if sub == "" || sub == "." {
		return s.workspace.CurrentDir()
	}
	return filepath.Join(s.workspace.CurrentDir(), sub)
}

func (s *Scheduler) fail(ctx context.Context, err error, failedCommitHash string) {
	logging.FromContext(ctx).ErrorContext(ctx, "update failed", "error", err)
	s.state.FailUpdate(err.Error(), failedCommitHash)
	s.emit(Event{Kind: "update-failed", Err: errors.Wrap(err, "update failed")})
}

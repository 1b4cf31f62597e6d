// Package statusobserver assembles status snapshots of the update state
// manager, scheduler, and filesystem manager (spec.md §4.9, C9) and streams
// them to observers over a WebSocket, using gorilla/websocket the same way
// the pack's prview dashboard streams filesystem-watch events.
package statusobserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sap/ord-directory-server/internal/logging"
	"github.com/sap/ord-directory-server/internal/scheduler"
	"github.com/sap/ord-directory-server/internal/updatestate"
	"github.com/sap/ord-directory-server/internal/workspace"
)

// Snapshot is the JSON shape pushed to observers: a merge of C6's state, the
// kind of C7's most recent event, and C2's current content version.
type Snapshot struct {
	State            updatestate.State `json:"state"`
	FailedUpdates    int               `json:"failedUpdates"`
	LastError        string            `json:"lastError,omitempty"`
	FailedCommitHash string            `json:"failedCommitHash,omitempty"`
	LastUpdateFailed bool              `json:"lastUpdateFailed"`
	CurrentVersion   string            `json:"currentVersion,omitempty"`
	LastEvent        string            `json:"lastEvent,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Observer tracks the most recent scheduler event and answers snapshot and
// WebSocket-streaming requests.
type Observer struct {
	state     *updatestate.Machine
	workspace *workspace.Workspace

	mu        *sync.Mutex
	lastEvent string

	heartbeat time.Duration
}

func New(state *updatestate.Machine, ws *workspace.Workspace, heartbeat time.Duration) *Observer {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Observer{state: state, workspace: ws, mu: &sync.Mutex{}, heartbeat: heartbeat}
}

// OnEvent records scheduler events so snapshots can report the most recent
// one; wire this as a scheduler.Options.OnEvent callback.
func (o *Observer) OnEvent(e scheduler.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastEvent = e.Kind
}

func (o *Observer) Snapshot() Snapshot {
	snap := o.state.Snapshot()
	o.mu.Lock()
	lastEvent := o.lastEvent
	o.mu.Unlock()

	return Snapshot{
		State:            snap.State,
		FailedUpdates:    snap.FailedUpdates,
		LastError:        snap.LastError,
		FailedCommitHash: snap.FailedCommitHash,
		LastUpdateFailed: snap.LastUpdateFailed,
		CurrentVersion:   o.workspace.GetCurrentVersion(),
		LastEvent:        lastEvent,
	}
}

// ServeHTTP handles GET /status.json style snapshot requests; the HTML
// dashboard itself is an external collaborator.
func (o *Observer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(o.Snapshot()) //nolint:errcheck
}

// ServeWebSocket upgrades the connection and pushes a snapshot on connect,
// then on a heartbeat interval until the client disconnects.
func (o *Observer) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	ticker := time.NewTicker(o.heartbeat)
	defer ticker.Stop()

	if err := conn.WriteJSON(o.Snapshot()); err != nil {
		return
	}

	for range ticker.C {
		if err := conn.WriteJSON(o.Snapshot()); err != nil {
			return
		}
	}
}

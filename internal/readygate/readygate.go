// Package readygate implements the HTTP readiness gate of spec.md §4.7: an
// HTTP preprocessor that suspends requests to ORD paths while the update
// state machine reports not-ready, with a bounded wait and timeout.
package readygate

import (
	"net/http"
	"strings"
	"time"

	"github.com/sap/ord-directory-server/internal/apierror"
	"github.com/sap/ord-directory-server/internal/updatestate"
)

const (
	ordPathPrefix  = "/ord/v1/"
	wellKnownPath  = "/.well-known/open-resource-discovery"
	defaultTimeout = 5 * time.Minute
)

// Gate decides, per request path, whether to wait for readiness.
type Gate struct {
	state   *updatestate.Machine
	timeout time.Duration
}

// New builds a Gate backed by state. A nil state (local mode, which supplies
// no state manager) makes the gate an identity preprocessor, per spec.md
// §4.7.
func New(state *updatestate.Machine, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gate{state: state, timeout: timeout}
}

// gatedPath reports whether path is a gated ORD path: the well-known ORD
// configuration endpoint, or anything under the server prefix.
func gatedPath(path string) bool {
	return path == wellKnownPath || strings.HasPrefix(path, ordPathPrefix)
}

// Middleware wraps next, waiting for readiness before gated requests reach
// it. Status, webhook, websocket, health, and other unrelated paths pass
// through immediately.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.state == nil || !gatedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if _, err := g.state.WaitForReady(r.Context(), g.timeout); err != nil {
			apierror.AsAPIError(err).WriteJSON(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

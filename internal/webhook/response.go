package webhook

import (
	"encoding/json"
	"net/http"
	"time"
)

type acceptedBody struct {
	Reason    string     `json:"reason"`
	Scheduled *time.Time `json:"scheduled,omitempty"`
}

// writeAccepted writes the 202 body spec.md §6 requires: the scheduled time
// or a reason for no-op.
func writeAccepted(w http.ResponseWriter, reason string, scheduled *time.Time) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(acceptedBody{Reason: reason, Scheduled: scheduled}) //nolint:errcheck
}

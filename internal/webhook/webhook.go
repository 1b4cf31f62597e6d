// Package webhook implements the GitHub push-event ingestion endpoint of
// spec.md §6: POST /api/v1/webhook/github, signature-validated with
// go-github the same way the pack's periph-gohci reference handles GitHub
// webhooks.
package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/sap/ord-directory-server/internal/apierror"
	"github.com/sap/ord-directory-server/internal/logging"
)

// Scheduler is the subset of scheduler.Scheduler the webhook handler needs.
// ScheduleImmediateUpdate returns the time a debounced update was scheduled
// for, or the zero time when it started immediately or was merely queued
// behind an in-flight run.
type Scheduler interface {
	ScheduleImmediateUpdate(ctx context.Context, source string) time.Time
}

// Handler validates and dispatches GitHub push webhooks.
type Handler struct {
	secret    []byte
	branch    string
	scheduler Scheduler
}

// New builds a Handler. secret may be empty, meaning signature validation is
// skipped (not recommended, but some deployments front the endpoint with
// their own network-level protection).
func New(secret []byte, branch string, scheduler Scheduler) *Handler {
	return &Handler{secret: secret, branch: branch, scheduler: scheduler}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	payload, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		logger.WarnContext(ctx, "webhook signature validation failed", "error", err)
		apierror.Unauthorized("invalid webhook signature").WriteJSON(w)
		return
	}

	eventType := github.WebHookType(r)
	if eventType == "ping" {
		writeAccepted(w, "ping acknowledged", nil)
		return
	}

	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		apierror.Validation("invalid webhook payload").WriteJSON(w)
		return
	}

	pushEvent, ok := event.(*github.PushEvent)
	if !ok {
		writeAccepted(w, "event type ignored", nil)
		return
	}

	if pushEvent.GetRef() != "refs/heads/"+h.branch {
		writeAccepted(w, "push to unconfigured branch ignored", nil)
		return
	}

	scheduled := h.scheduler.ScheduleImmediateUpdate(ctx, "webhook")
	if scheduled.IsZero() {
		writeAccepted(w, "update scheduled", nil)
		return
	}
	writeAccepted(w, "update scheduled", &scheduled)
}

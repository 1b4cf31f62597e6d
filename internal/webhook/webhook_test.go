package webhook_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/sap/ord-directory-server/internal/webhook"
)

type fakeScheduler struct {
	calls     int
	source    string
	scheduled time.Time
}

func (f *fakeScheduler) ScheduleImmediateUpdate(_ context.Context, source string) time.Time {
	f.calls++
	f.source = source
	return f.scheduled
}

func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const pushPayload = `{
	"ref": "refs/heads/main",
	"repository": {"full_name": "sap/ord-reference-app"}
}`

func newRequest(t *testing.T, secret []byte, body string, eventType string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/github", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	if secret != nil {
		req.Header.Set("X-Hub-Signature-256", sign(secret, []byte(body)))
	}
	return req
}

func TestWebhook_SchedulesUpdateOnMatchingPush(t *testing.T) {
	secret := []byte("shh")
	sched := &fakeScheduler{}
	h := webhook.New(secret, "main", sched)

	req := newRequest(t, secret, pushPayload, "push")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, sched.calls)
	assert.Equal(t, "webhook", sched.source)
}

func TestWebhook_ResponseCarriesScheduledTime(t *testing.T) {
	secret := []byte("shh")
	at := time.Now().Add(5 * time.Second).Truncate(time.Second)
	sched := &fakeScheduler{scheduled: at}
	h := webhook.New(secret, "main", sched)

	req := newRequest(t, secret, pushPayload, "push")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), at.UTC().Format(time.RFC3339))
}

func TestWebhook_RejectsInvalidSignature(t *testing.T) {
	secret := []byte("shh")
	sched := &fakeScheduler{}
	h := webhook.New(secret, "main", sched)

	req := newRequest(t, []byte("wrong-secret"), pushPayload, "push")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, sched.calls)
}

func TestWebhook_IgnoresOtherBranches(t *testing.T) {
	secret := []byte("shh")
	sched := &fakeScheduler{}
	h := webhook.New(secret, "release", sched)

	req := newRequest(t, secret, pushPayload, "push")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 0, sched.calls)
}

func TestWebhook_IgnoresNonPushEvents(t *testing.T) {
	secret := []byte("shh")
	sched := &fakeScheduler{}
	h := webhook.New(secret, "main", sched)

	req := newRequest(t, secret, `{"zen":"hello"}`, "ping")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 0, sched.calls)
}

// Package authcheck declares the request-authentication boundary the
// readiness-gated ORD handlers sit behind. spec.md §1 scopes bcrypt
// password comparison, base64/DN decoding, and mTLS/basic-auth validators
// out of this system's core: they are external collaborators a deployment
// wires in to match its configured auth methods, not something this
// package implements.
package authcheck

import "net/http"

// Validator authenticates an inbound request, returning a non-nil error
// when authentication fails. A nil Validator corresponds to the "open"
// auth method: every request is admitted.
type Validator interface {
	Authenticate(r *http.Request) error
}

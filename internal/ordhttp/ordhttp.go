// Package ordhttp is the HTTP surface of spec.md §6 and §4.4: the ORD
// Configuration endpoint, the processed-document endpoint, and the raw
// resource-definition passthrough, all sitting behind the readiness gate of
// internal/readygate and, optionally, an internal/authcheck validator.
package ordhttp

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/sap/ord-directory-server/internal/apierror"
	"github.com/sap/ord-directory-server/internal/authcheck"
	"github.com/sap/ord-directory-server/internal/logging"
	"github.com/sap/ord-directory-server/internal/orddoc"
)

const (
	wellKnownPath   = "/.well-known/open-resource-discovery"
	documentsPrefix = "/ord/v1/documents/"
	resourcePrefix  = "/ord/v1/"
)

// Handler serves the three gated ORD routes, backed by an orddoc.Service.
type Handler struct {
	service   *orddoc.Service
	opts      orddoc.ProcessOptions
	validator authcheck.Validator
}

// New builds a Handler. validator may be nil, corresponding to the "open"
// auth method: every request is admitted without an authentication check.
func New(service *orddoc.Service, opts orddoc.ProcessOptions, validator authcheck.Validator) *Handler {
	return &Handler{service: service, opts: opts, validator: validator}
}

// Register installs the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+wellKnownPath, h.authenticated(h.handleConfiguration))
	mux.HandleFunc("GET "+documentsPrefix+"{path...}", h.authenticated(h.handleDocument))
	mux.HandleFunc("GET "+resourcePrefix+"{path...}", h.authenticated(h.handleFileContent))
}

// authenticated wraps next with the optional authcheck.Validator pre-check,
// per spec.md §1's external-collaborator boundary for request authentication.
func (h *Handler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.validator != nil {
			if err := h.validator.Authenticate(r); err != nil {
				apierror.Unauthorized("authentication failed").WriteJSON(w)
				return
			}
		}
		next(w, r)
	}
}

// handleConfiguration serves GET /.well-known/open-resource-discovery,
// optionally filtered by the ?perspective= query parameter per spec.md §8
// scenario 6.
func (h *Handler) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	config, err := h.service.GetOrdConfiguration(r.Context(), r.URL.Query().Get("perspective"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, config)
}

// handleDocument serves GET /ord/v1/documents/<relative-path>, the
// processed-document endpoint. A path that does not end in ".json" is
// resolved with an implicit ".json" appended, per spec.md §4.4.
func (h *Handler) handleDocument(w http.ResponseWriter, r *http.Request) {
	relPath, err := decodePath(r.PathValue("path"))
	if err != nil {
		apierror.Validation("invalid document path").WriteJSON(w)
		return
	}
	if !strings.HasSuffix(relPath, ".json") {
		relPath += ".json"
	}

	doc, err := h.service.GetProcessedDocument(r.Context(), relPath, h.opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, doc)
}

// handleFileContent serves GET /ord/v1/<relative-path>, the raw passthrough
// resourceDefinitions entries are rewritten to point at.
func (h *Handler) handleFileContent(w http.ResponseWriter, r *http.Request) {
	relPath, err := decodePath(r.PathValue("path"))
	if err != nil {
		apierror.Validation("invalid resource path").WriteJSON(w)
		return
	}

	data, err := h.service.GetFileContent(relPath)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(relPath))
	_, _ = w.Write(data) //nolint:errcheck
}

func decodePath(raw string) (string, error) {
	return url.PathUnescape(raw)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".json"):
		return "application/json; charset=utf-8"
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return "application/yaml; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.AsAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "ord request failed", "error", err)
	}
	apiErr.WriteJSON(w)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// Package orddoc holds the ORD document processing logic the cache warmer
// applies to every document before it is cached: baseUrl injection,
// perspective defaulting, synthetic describedSystemVersion, and rewriting of
// resourceDefinitions URLs and accessStrategies. Everything else in a
// document passes through opaquely — this package only looks at the fields
// named in the on-disk contract, the document content model itself is an
// external collaborator.
package orddoc

import (
	"net/url"
	"strings"
)

// Document is a single parsed ORD document. Only the fields this package
// observes are typed; the rest of the JSON tree is preserved opaquely as
// map[string]any.
type Document = map[string]any

// AccessStrategy is one entry of a resourceDefinition's accessStrategies
// array, keyed by the server's configured authentication methods.
type AccessStrategy struct {
	Type string `json:"type"`
}

const (
	PerspectiveSystemVersion     = "system-version"
	PerspectiveSystemInstance    = "system-instance"
	PerspectiveSystemIndependent = "system-independent"
)

// ProcessOptions carries everything document processing needs that isn't
// inside the document JSON itself.
type ProcessOptions struct {
	BaseURL          string
	Fingerprint      string
	ServerPathPrefix string // e.g. "/ord/v1/"
	AccessStrategies []AccessStrategy
}

// Process mutates doc in place per spec: overrides the described system
// instance base URL, defaults perspective, injects a synthetic
// describedSystemVersion for the system-version perspective when absent, and
// rewrites every resourceDefinitions entry's url and accessStrategies.
func Process(doc Document, opts ProcessOptions) {
	overrideBaseURL(doc, opts.BaseURL)
	perspective := Perspective(doc)

	if perspective == PerspectiveSystemVersion {
		if _, ok := doc["describedSystemVersion"]; !ok {
			doc["describedSystemVersion"] = map[string]any{"version": syntheticVersion(opts.Fingerprint)}
		}
	}

	rewriteResourceDefinitions(doc, opts)
}

func overrideBaseURL(doc Document, baseURL string) {
	if baseURL == "" {
		return
	}
	instance, ok := doc["describedSystemInstance"].(map[string]any)
	if !ok {
		instance = map[string]any{}
		doc["describedSystemInstance"] = instance
	}
	instance["baseUrl"] = baseURL
}

// Perspective returns doc's perspective field, defaulting to
// system-instance when absent, per spec.md §4.4.
func Perspective(doc Document) string {
	if p, ok := doc["perspective"].(string); ok && p != "" {
		return p
	}
	return PerspectiveSystemInstance
}

// syntheticVersion builds the placeholder describedSystemVersion injected
// when a system-version-perspective document omits one: "1.0.0-<8 hex>", or
// "1.0.0-unknown" when the fingerprint is empty.
func syntheticVersion(fingerprint string) string {
	short := "unknown"
	if fingerprint != "" {
		short = fingerprint
		if len(short) > 8 {
			short = short[:8]
		}
	}
	return "1.0.0-" + short
}

func rewriteResourceDefinitions(doc Document, opts ProcessOptions) {
	for _, key := range []string{"apiResources", "eventResources"} {
		resources, ok := doc[key].([]any)
		if !ok {
			continue
		}
		for _, r := range resources {
			resource, ok := r.(map[string]any)
			if !ok {
				continue
			}
			defs, ok := resource["resourceDefinitions"].([]any)
			if !ok {
				continue
			}
			for _, d := range defs {
				def, ok := d.(map[string]any)
				if !ok {
					continue
				}
				rewriteURL(def, opts.ServerPathPrefix)
				def["accessStrategies"] = AccessStrategiesJSON(opts.AccessStrategies)
			}
		}
	}
}

// rewriteURL implements spec.md §4.4's url-rewrite rule: a remote URL only
// has its ordId path segment unescaped; a relative URL is prefixed with the
// server's ORD path resolved from "/".
func rewriteURL(def map[string]any, serverPathPrefix string) {
	raw, ok := def["url"].(string)
	if !ok {
		return
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		def["url"] = unescapeLastSegment(raw)
		return
	}
	prefix := serverPathPrefix
	if prefix == "" {
		prefix = "/ord/v1/"
	}
	def["url"] = joinURLPath(prefix, raw)
}

func unescapeLastSegment(raw string) string {
	idx := strings.LastIndex(raw, "/")
	if idx < 0 {
		return raw
	}
	segment := raw[idx+1:]
	if unescaped, err := url.PathUnescape(segment); err == nil {
		return raw[:idx+1] + unescaped
	}
	return raw
}

func joinURLPath(prefix, suffix string) string {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + strings.TrimPrefix(suffix, "/")
}

// AccessStrategiesJSON renders strategies as the JSON-ready accessStrategies
// array form, shared by resourceDefinitions rewriting and the ORD
// configuration document descriptors.
func AccessStrategiesJSON(strategies []AccessStrategy) []any {
	out := make([]any, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, map[string]any{"type": s.Type})
	}
	return out
}

// Package ordschema declares the ORD document validation boundary. JSON
// schema validation of ORD document content is an external collaborator
// per spec.md §1; this core only implements the narrow processing steps
// spec.md §4.4 names (baseUrl override, perspective, resourceDefinitions
// rewriting) and leaves full schema conformance checking to a validator a
// deployment supplies.
package ordschema

// Validator validates a raw ORD document against the Open Resource
// Discovery JSON schema before it is processed and cached. A nil Validator
// means documents are trusted as-is.
type Validator interface {
	Validate(raw []byte) error
}

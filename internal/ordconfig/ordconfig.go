// Package ordconfig holds the fixed mapping from configured authentication
// methods to ORD accessStrategies identifiers, spec.md §6's configuration
// surface.
package ordconfig

import (
	"github.com/alecthomas/errors"

	"github.com/sap/ord-directory-server/internal/orddoc"
)

// AuthMethod is one of the recognized authentication methods a deployment
// can enable.
type AuthMethod string

const (
	AuthMethodOpen   AuthMethod = "open"
	AuthMethodBasic  AuthMethod = "basic"
	AuthMethodMTLS   AuthMethod = "mtls"
	AuthMethodCFMTLS AuthMethod = "cf-mtls"
)

// accessStrategyTypes is the fixed auth-method -> accessStrategies type
// mapping from spec.md §6.
var accessStrategyTypes = map[AuthMethod]string{
	AuthMethodOpen:   "open",
	AuthMethodBasic:  "sap:basic-auth:v1",
	AuthMethodMTLS:   "sap:client-certificate-authentication:v1",
	AuthMethodCFMTLS: "sap:client-certificate-authentication:cf:v1",
}

// ValidateAuthMethods enforces that "open" is exclusive: a deployment may
// enable open access alone, or any non-empty combination of basic/mtls/cf-mtls,
// but never open alongside another method.
func ValidateAuthMethods(methods []AuthMethod) error {
	if len(methods) == 0 {
		return errors.Errorf("at least one auth method must be configured")
	}
	hasOpen := false
	for _, m := range methods {
		if _, ok := accessStrategyTypes[m]; !ok {
			return errors.Errorf("unrecognized auth method %q", m)
		}
		if m == AuthMethodOpen {
			hasOpen = true
		}
	}
	if hasOpen && len(methods) > 1 {
		return errors.Errorf("open auth method must be configured alone")
	}
	return nil
}

// AccessStrategies builds the accessStrategies list resourceDefinitions
// entries are rewritten to carry, derived from the configured auth methods.
func AccessStrategies(methods []AuthMethod) []orddoc.AccessStrategy {
	strategies := make([]orddoc.AccessStrategy, 0, len(methods))
	for _, m := range methods {
		if t, ok := accessStrategyTypes[m]; ok {
			strategies = append(strategies, orddoc.AccessStrategy{Type: t})
		}
	}
	return strategies
}

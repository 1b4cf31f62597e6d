package ordconfig_test

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/sap/ord-directory-server/internal/ordconfig"
)

func TestValidateAuthMethods_OpenAlone(t *testing.T) {
	assert.NoError(t, ordconfig.ValidateAuthMethods([]ordconfig.AuthMethod{ordconfig.AuthMethodOpen}))
}

func TestValidateAuthMethods_OpenMustBeExclusive(t *testing.T) {
	err := ordconfig.ValidateAuthMethods([]ordconfig.AuthMethod{ordconfig.AuthMethodOpen, ordconfig.AuthMethodBasic})
	assert.Error(t, err)
}

func TestValidateAuthMethods_CombinationWithoutOpen(t *testing.T) {
	err := ordconfig.ValidateAuthMethods([]ordconfig.AuthMethod{ordconfig.AuthMethodBasic, ordconfig.AuthMethodMTLS})
	assert.NoError(t, err)
}

func TestValidateAuthMethods_Empty(t *testing.T) {
	assert.Error(t, ordconfig.ValidateAuthMethods(nil))
}

func TestValidateAuthMethods_Unknown(t *testing.T) {
	err := ordconfig.ValidateAuthMethods([]ordconfig.AuthMethod{"oauth2"})
	assert.Error(t, err)
}

func TestAccessStrategies(t *testing.T) {
	strategies := ordconfig.AccessStrategies([]ordconfig.AuthMethod{ordconfig.AuthMethodBasic, ordconfig.AuthMethodCFMTLS})
	assert.Equal(t, 2, len(strategies))
	assert.Equal(t, "sap:basic-auth:v1", strategies[0].Type)
	assert.Equal(t, "sap:client-certificate-authentication:cf:v1", strategies[1].Type)
}

func TestAccessStrategies_Open(t *testing.T) {
	strategies := ordconfig.AccessStrategies([]ordconfig.AuthMethod{ordconfig.AuthMethodOpen})
	assert.Equal(t, 1, len(strategies))
	assert.Equal(t, "open", strategies[0].Type)
}

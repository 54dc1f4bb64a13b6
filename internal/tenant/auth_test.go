package tenant

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scimbridge/tenant-scim/internal/config"
)

func TestValidateAuthenticationUnauthenticatedAlwaysPasses(t *testing.T) {
	assert.NoError(t, ValidateAuthentication(config.AuthConfig{Type: "unauthenticated"}, ""))
}

func TestValidateAuthenticationBearerToken(t *testing.T) {
	token := "secret-token"
	cfg := config.AuthConfig{Type: "bearer", Token: &token}

	assert.NoError(t, ValidateAuthentication(cfg, "Bearer secret-token"), "expected correct bearer token to pass")
	assert.NoError(t, ValidateAuthentication(cfg, "bearer secret-token"), "expected case-insensitive scheme to pass")
	assert.Error(t, ValidateAuthentication(cfg, "Bearer wrong-token"), "expected wrong token to fail")
	assert.Error(t, ValidateAuthentication(cfg, ""), "expected missing header to fail")
}

func TestValidateAuthenticationTokenScheme(t *testing.T) {
	token := "secret-token"
	cfg := config.AuthConfig{Type: "token", Token: &token}
	assert.NoError(t, ValidateAuthentication(cfg, "Token secret-token"), "expected correct token to pass")
	assert.Error(t, ValidateAuthentication(cfg, "Bearer secret-token"), "expected a bearer-scheme header to fail a token-type tenant")
}

func TestValidateAuthenticationBasic(t *testing.T) {
	cfg := config.AuthConfig{Type: "basic", Basic: &config.BasicAuthConfig{Username: "alice", Password: "s3cr3t"}}
	good := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:s3cr3t"))
	bad := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:wrong"))

	assert.NoError(t, ValidateAuthentication(cfg, good), "expected correct basic credentials to pass")
	assert.Error(t, ValidateAuthentication(cfg, bad), "expected wrong password to fail")
	assert.Error(t, ValidateAuthentication(cfg, "Basic not-valid-base64!!!"), "expected malformed base64 to fail")
}

func TestValidateAuthenticationMissingSecretConfigFails(t *testing.T) {
	cfg := config.AuthConfig{Type: "bearer"}
	assert.Error(t, ValidateAuthentication(cfg, "Bearer anything"), "expected a bearer tenant with no configured token to reject every request")
}

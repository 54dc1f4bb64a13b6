package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadParsesTenantsAndDefaults(t *testing.T) {
	path := writeTempConfig(t, `
server:
  host: 0.0.0.0
  port: 8080
backend:
  type: database
  database:
    type: postgres
    url: postgres://localhost/scim
tenants:
  - id: 1
    path: /scim/v2
    auth:
      type: unauthenticated
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Tenants, 1)
	assert.Equal(t, "/scim/v2", cfg.Tenants[0].Path)
	assert.Equal(t, "rfc3339", cfg.Compatibility.MetaDatetimeFormat, "expected default compatibility to be filled in")
}

func TestLoadRejectsEmptyTenantList(t *testing.T) {
	path := writeTempConfig(t, `
server:
  host: 0.0.0.0
  port: 8080
backend:
  type: database
tenants: []
`)
	_, err := Load(path)
	assert.Error(t, err, "expected an error for an empty tenant list")
}

func TestLoadExpandsEnvVarsWithDefault(t *testing.T) {
	os.Setenv("SCIM_TEST_PORT", "9090")
	defer os.Unsetenv("SCIM_TEST_PORT")

	path := writeTempConfig(t, `
server:
  host: 0.0.0.0
  port: ${SCIM_TEST_PORT}
backend:
  type: database
tenants:
  - id: 1
    path: /scim/v2
    auth:
      type: unauthenticated
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadExpandsEnvVarsMissingWithoutDefaultFails(t *testing.T) {
	path := writeTempConfig(t, `
server:
  host: 0.0.0.0
  port: ${SCIM_TEST_UNSET_VAR}
backend:
  type: database
tenants:
  - id: 1
    path: /scim/v2
    auth:
      type: unauthenticated
`)
	_, err := Load(path)
	assert.Error(t, err, "expected an error for a missing env var with no default")
}

func TestCustomEndpointEffectiveAuthConfigFallsBackToTenant(t *testing.T) {
	tenantAuth := AuthConfig{Type: "bearer"}
	ep := CustomEndpoint{Path: "/status"}
	assert.Equal(t, "bearer", ep.EffectiveAuthConfig(tenantAuth).Type, "expected fallback to tenant auth")

	override := AuthConfig{Type: "unauthenticated"}
	ep.Auth = &override
	assert.Equal(t, "unauthenticated", ep.EffectiveAuthConfig(tenantAuth).Type, "expected endpoint override to win")
}

func TestDefaultProducesSingleUnauthenticatedTenant(t *testing.T) {
	cfg := Default()
	require.Len(t, cfg.Tenants, 1)
	assert.Equal(t, "unauthenticated", cfg.Tenants[0].Auth.Type)
}

// Package config loads the tenant configuration document: a YAML AppConfig naming the
// server bind address, the storage backend, the per-tenant auth/host-resolution/
// custom-endpoint descriptors, and default compatibility toggles.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the top-level tenant configuration document.
type AppConfig struct {
	Server        ServerConfig        `yaml:"server"`
	Backend       BackendConfig       `yaml:"backend"`
	Redis         RedisConfig         `yaml:"redis"`
	Tenants       []TenantConfig      `yaml:"tenants"`
	Compatibility CompatibilityConfig `yaml:"compatibility"`
}

// RedisConfig points at the counter store backing the per-tenant admission guard. An
// empty URL means "no rate limiting": main wires a client only when one is configured, so
// a zero-config single-tenant deployment doesn't need Redis at all.
type RedisConfig struct {
	URL string `yaml:"url"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RateLimitPerMinute bounds the per-tenant admission guard. Zero means "use the
	// built-in default".
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type BackendConfig struct {
	Type     string          `yaml:"type"`
	Database *DatabaseConfig `yaml:"database"`
}

type DatabaseConfig struct {
	Type           string `yaml:"type"` // "postgres" or "sqlite"
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
}

// TenantConfig describes one tenant's URL scope, host matching, auth, and overrides.
type TenantConfig struct {
	ID               uint32                `yaml:"id"`
	Path             string                `yaml:"path"`
	Host             *string               `yaml:"host"`
	HostResolution   *HostResolutionConfig `yaml:"host_resolution"`
	Auth             AuthConfig            `yaml:"auth"`
	OverrideBaseURL  *string               `yaml:"override_base_url"`
	CustomEndpoints  []CustomEndpoint      `yaml:"custom_endpoints"`
	Compatibility    *CompatibilityConfig  `yaml:"compatibility"`
}

// HostResolutionType selects which header(s) determine the effective host.
type HostResolutionType string

const (
	ResolveHost        HostResolutionType = "host"
	ResolveForwarded   HostResolutionType = "forwarded"
	ResolveXForwarded  HostResolutionType = "xforwarded"
)

type HostResolutionConfig struct {
	Type           HostResolutionType `yaml:"type"`
	TrustedProxies []string           `yaml:"trusted_proxies"`
}

// AuthConfig is a tenant's (or custom endpoint's) authentication descriptor.
type AuthConfig struct {
	Type  string            `yaml:"type"` // "unauthenticated" | "bearer" | "token" | "basic"
	Token *string           `yaml:"token"`
	Basic *BasicAuthConfig  `yaml:"basic"`
}

type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CustomEndpoint is a static tenant-configured response served at an absolute path.
type CustomEndpoint struct {
	Path        string      `yaml:"path"`
	Response    string      `yaml:"response"`
	StatusCode  int         `yaml:"status_code"`
	ContentType string      `yaml:"content_type"`
	Auth        *AuthConfig `yaml:"auth"`
}

// EffectiveAuthConfig returns the endpoint's own auth descriptor if set, else tenantAuth.
func (e CustomEndpoint) EffectiveAuthConfig(tenantAuth AuthConfig) AuthConfig {
	if e.Auth != nil {
		return *e.Auth
	}
	return tenantAuth
}

// CompatibilityConfig holds every per-tenant-overridable protocol compatibility toggle.
type CompatibilityConfig struct {
	MetaDatetimeFormat              string `yaml:"meta_datetime_format"`
	ShowEmptyGroupsMembers          bool   `yaml:"show_empty_groups_members"`
	IncludeUserGroups               bool   `yaml:"include_user_groups"`
	SupportGroupMembersFilter       bool   `yaml:"support_group_members_filter"`
	SupportGroupDisplayNameFilter   bool   `yaml:"support_group_displayname_filter"`
	SupportPatchReplaceEmptyArray   bool   `yaml:"support_patch_replace_empty_array"`
	SupportPatchReplaceEmptyValue   bool   `yaml:"support_patch_replace_empty_value"`
}

// DefaultCompatibilityConfig returns the application-wide default compatibility toggles.
func DefaultCompatibilityConfig() CompatibilityConfig {
	return CompatibilityConfig{
		MetaDatetimeFormat:            "rfc3339",
		ShowEmptyGroupsMembers:        true,
		IncludeUserGroups:             true,
		SupportGroupMembersFilter:     true,
		SupportGroupDisplayNameFilter: true,
		SupportPatchReplaceEmptyArray: true,
		SupportPatchReplaceEmptyValue: false,
	}
}

// EffectiveCompatibility returns the tenant's own compatibility block if one is
// configured, else fallback (the application-wide default).
func (t TenantConfig) EffectiveCompatibility(fallback CompatibilityConfig) CompatibilityConfig {
	if t.Compatibility != nil {
		return *t.Compatibility
	}
	return fallback
}

// Default builds the zero-config single-tenant, unauthenticated, in-memory SQLite
// configuration used when no config file is present.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{Host: "127.0.0.1", Port: 3000},
		Backend: BackendConfig{
			Type: "database",
			Database: &DatabaseConfig{
				Type:           "sqlite",
				URL:            ":memory:",
				MaxConnections: 1,
			},
		},
		Compatibility: DefaultCompatibilityConfig(),
		Tenants: []TenantConfig{
			{
				ID:   1,
				Path: "/scim/v2",
				Auth: AuthConfig{Type: "unauthenticated"},
			},
		},
	}
}

// Load reads and parses an AppConfig from a YAML file at path, first loading .env (if
// present) and expanding ${VAR}/${VAR:-default} references in the raw file content
// against the process environment.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded, err := expandEnvVars(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if len(cfg.Tenants) == 0 {
		return nil, fmt.Errorf("config: must contain at least one tenant")
	}
	if cfg.Compatibility == (CompatibilityConfig{}) {
		cfg.Compatibility = DefaultCompatibilityConfig()
	}
	return &cfg, nil
}

// ConfigPath resolves the tenant config file path, honoring a SCIM_CONFIG_PATH
// environment override before the supplied default.
func ConfigPath(def string) string {
	if v := os.Getenv("SCIM_CONFIG_PATH"); v != "" {
		return v
	}
	return def
}

// expandEnvVars replaces every ${VAR} or ${VAR:-default} reference in content with the
// named environment variable's value, or its default when the variable is unset and a
// default was given.
func expandEnvVars(content string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(content) {
		if i+1 < len(content) && content[i] == '$' && content[i+1] == '{' {
			end := strings.IndexByte(content[i+2:], '}')
			if end < 0 {
				out.WriteByte(content[i])
				i++
				continue
			}
			expr := content[i+2 : i+2+end]
			name, def, hasDefault := expr, "", false
			if pos := strings.Index(expr, ":-"); pos >= 0 {
				name, def, hasDefault = expr[:pos], expr[pos+2:], true
			}
			val, ok := os.LookupEnv(name)
			if !ok {
				if !hasDefault {
					return "", fmt.Errorf("config: environment variable %s not found and no default provided", name)
				}
				val = def
			}
			out.WriteString(val)
			i = i + 2 + end + 1
			continue
		}
		out.WriteByte(content[i])
		i++
	}
	return out.String(), nil
}

// DatabaseURL resolves the effective connection string, honoring a SCIM_DATABASE_URL
// environment override before the configured value.
func (c *AppConfig) DatabaseURL() string {
	if v := os.Getenv("SCIM_DATABASE_URL"); v != "" {
		return v
	}
	if c.Backend.Database != nil {
		return c.Backend.Database.URL
	}
	return ""
}

// RedisURL resolves the effective Redis connection string, honoring a SCIM_REDIS_URL
// environment override before the configured value.
func (c *AppConfig) RedisURL() string {
	if v := os.Getenv("SCIM_REDIS_URL"); v != "" {
		return v
	}
	return c.Redis.URL
}

// MaxConnections resolves the pool size, honoring a SCIM_DB_MAX_CONNECTIONS override.
func (c *AppConfig) MaxConnections() int {
	if v := os.Getenv("SCIM_DB_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if c.Backend.Database != nil && c.Backend.Database.MaxConnections > 0 {
		return c.Backend.Database.MaxConnections
	}
	return 10
}

package tenant

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scimbridge/tenant-scim/internal/config"
)

func strPtr(s string) *string { return &s }

func TestMatchesRequestPathOnlyTenant(t *testing.T) {
	tc := config.TenantConfig{ID: 1, Path: "/scim/v2"}
	req := RequestInfo{Path: "/scim/v2/Users", HostHeader: "example.com"}

	resolved, ok := MatchesRequest(tc, req)
	require.True(t, ok, "expected a path-only tenant to match by prefix")
	assert.Equal(t, "example.com", resolved.Host)
}

func TestMatchesRequestHostTenantRequiresHostMatch(t *testing.T) {
	tc := config.TenantConfig{ID: 1, Path: "/scim/v2", Host: strPtr("tenant-a.example.com")}
	ok := func(host string) bool {
		_, matched := MatchesRequest(tc, RequestInfo{Path: "/scim/v2/Users", HostHeader: host})
		return matched
	}
	assert.True(t, ok("tenant-a.example.com"), "expected matching host to succeed")
	assert.False(t, ok("tenant-b.example.com"), "expected mismatched host to fail")
}

func TestIsTrustedProxyCIDRAndBareIP(t *testing.T) {
	hr := &config.HostResolutionConfig{TrustedProxies: []string{"10.0.0.0/8", "192.168.1.5"}}
	assert.True(t, IsTrustedProxy(hr, net.ParseIP("10.1.2.3")), "expected an address inside the CIDR range to be trusted")
	assert.True(t, IsTrustedProxy(hr, net.ParseIP("192.168.1.5")), "expected the bare IP entry to be trusted")
	assert.False(t, IsTrustedProxy(hr, net.ParseIP("203.0.113.1")), "expected an address outside both entries to be untrusted")
}

func TestIsTrustedProxyUnconfiguredTrustsEveryPeer(t *testing.T) {
	assert.True(t, IsTrustedProxy(&config.HostResolutionConfig{}, net.ParseIP("203.0.113.1")),
		"expected an unconfigured trusted_proxies list to trust every peer")
}

func TestXForwardedResolutionIgnoredFromUntrustedPeer(t *testing.T) {
	hr := &config.HostResolutionConfig{Type: config.ResolveXForwarded, TrustedProxies: []string{"10.0.0.0/8"}}
	tc := config.TenantConfig{ID: 1, Path: "/scim/v2", Host: strPtr("public.example.com"), HostResolution: hr}

	req := RequestInfo{
		Path:           "/scim/v2/Users",
		HostHeader:     "public.example.com",
		XForwardedHost: "spoofed.example.com",
		ClientIP:       net.ParseIP("203.0.113.1"), // outside 10.0.0.0/8
	}
	// An untrusted peer's X-Forwarded-Host must never be trusted; since the tenant's
	// resolution mode is xforwarded (not host), the spoofed header is simply discarded
	// and there is nothing left to resolve against the configured host.
	_, ok := MatchesRequest(tc, req)
	assert.False(t, ok, "expected no match when the only resolvable host comes from an untrusted peer")
}

func TestBuildBaseURLOverrideWins(t *testing.T) {
	tc := config.TenantConfig{Path: "/scim/v2", OverrideBaseURL: strPtr("https://api.example.com/")}
	got := BuildBaseURL(tc, RequestInfo{})
	assert.Equal(t, "https://api.example.com/scim/v2", got)
}

func TestBuildBaseURLPathOnlyUsesHostHeader(t *testing.T) {
	tc := config.TenantConfig{Path: "/scim/v2"}
	got := BuildBaseURL(tc, RequestInfo{HostHeader: "example.com"})
	assert.Equal(t, "http://example.com/scim/v2", got)
}

func TestBuildBaseURLOmitsDefaultPort(t *testing.T) {
	hr := &config.HostResolutionConfig{Type: config.ResolveXForwarded}
	tc := config.TenantConfig{Path: "/scim/v2", Host: strPtr("example.com"), HostResolution: hr}
	req := RequestInfo{
		Path:            "/scim/v2/Users",
		XForwardedProto: "https",
		XForwardedHost:  "example.com:443",
	}
	got := BuildBaseURL(tc, req)
	assert.Equal(t, "https://example.com/scim/v2", got)
}

func TestBuildBaseURLKeepsNonDefaultPort(t *testing.T) {
	hr := &config.HostResolutionConfig{Type: config.ResolveXForwarded}
	tc := config.TenantConfig{Path: "/scim/v2", Host: strPtr("example.com"), HostResolution: hr}
	req := RequestInfo{
		Path:            "/scim/v2/Users",
		XForwardedProto: "https",
		XForwardedHost:  "example.com:8443",
	}
	got := BuildBaseURL(tc, req)
	assert.Equal(t, "https://example.com:8443/scim/v2", got)
}

func TestFindTenantByRequestPrefersCustomEndpoint(t *testing.T) {
	cfg := &config.AppConfig{Tenants: []config.TenantConfig{
		{
			ID:   1,
			Path: "/scim/v2",
			CustomEndpoints: []config.CustomEndpoint{
				{Path: "/scim/v2/status", Response: `{"ok":true}`},
			},
		},
	}}
	req := RequestInfo{Path: "/scim/v2/status", HostHeader: "example.com"}
	tc, _, ok := FindTenantByRequest(cfg, req)
	require.True(t, ok)
	assert.EqualValues(t, 1, tc.ID)
}

func TestFindTenantByRequestNoMatch(t *testing.T) {
	cfg := &config.AppConfig{Tenants: []config.TenantConfig{{ID: 1, Path: "/scim/v2"}}}
	_, _, ok := FindTenantByRequest(cfg, RequestInfo{Path: "/other", HostHeader: "example.com"})
	assert.False(t, ok, "expected no tenant to match an unrelated path")
}

func TestFindTenantByRequestPrefersHostBoundOverPathOnly(t *testing.T) {
	cfg := &config.AppConfig{Tenants: []config.TenantConfig{
		{ID: 1, Path: "/scim/v2"},
		{ID: 2, Path: "/scim/v2", Host: strPtr("tenant-b.example.com")},
	}}
	req := RequestInfo{Path: "/scim/v2/Users", HostHeader: "tenant-b.example.com"}
	tc, _, ok := FindTenantByRequest(cfg, req)
	require.True(t, ok)
	assert.EqualValues(t, 2, tc.ID, "expected the host-bound tenant to win over the path-only tenant")
}

func TestFindTenantByRequestLongestPathWinsOnTie(t *testing.T) {
	cfg := &config.AppConfig{Tenants: []config.TenantConfig{
		{ID: 1, Path: "/scim"},
		{ID: 2, Path: "/scim/v2"},
	}}
	req := RequestInfo{Path: "/scim/v2/Users", HostHeader: "example.com"}
	tc, _, ok := FindTenantByRequest(cfg, req)
	require.True(t, ok)
	assert.EqualValues(t, 2, tc.ID, "expected the longer configured path to win the tie")
}

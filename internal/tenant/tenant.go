// Package tenant resolves which configured tenant a request belongs to and, for
// host-resolution modes that trust proxy headers, which peers are allowed to supply them.
package tenant

import (
	"net"
	"strconv"
	"strings"

	"github.com/scimbridge/tenant-scim/internal/config"
)

// RequestInfo is the subset of an inbound HTTP request tenant resolution needs.
type RequestInfo struct {
	Path             string
	HostHeader       string
	ForwardedHeader  string
	XForwardedProto  string
	XForwardedHost   string
	XForwardedPort   string
	ClientIP         net.IP
}

// ResolvedURL is the (scheme, host, port) triple a host-resolution mode produced.
type ResolvedURL struct {
	Scheme string
	Host   string
	Port   int // 0 means "not specified"
}

// IsTrustedProxy reports whether clientIP is covered by one of hr's trusted_proxies
// entries (each either a CIDR range or a bare IP). An unconfigured trusted_proxies list
// trusts every peer, for backward compatibility with tenants that never set it.
func IsTrustedProxy(hr *config.HostResolutionConfig, clientIP net.IP) bool {
	if hr == nil || len(hr.TrustedProxies) == 0 {
		return true
	}
	for _, entry := range hr.TrustedProxies {
		if _, cidr, err := net.ParseCIDR(entry); err == nil {
			if cidr.Contains(clientIP) {
				return true
			}
			continue
		}
		if ip := net.ParseIP(entry); ip != nil && ip.Equal(clientIP) {
			return true
		}
	}
	return false
}

// splitHostPort splits a "host" or "host:port" header value. An unparsable port is
// treated as absent rather than an error, matching the original's tolerant behavior.
func splitHostPort(raw string) (host string, port int) {
	idx := strings.LastIndex(raw, ":")
	if idx < 0 {
		return raw, 0
	}
	if p, err := strconv.Atoi(raw[idx+1:]); err == nil {
		return raw[:idx], p
	}
	return raw, 0
}

// resolveFromHostHeader implements HostResolutionType "host": trust the Host header
// verbatim, always over plain HTTP (this mode is for development/testing, per the
// original; a production deployment behind TLS termination should use forwarded/xforwarded).
func resolveFromHostHeader(req RequestInfo) (ResolvedURL, bool) {
	if req.HostHeader == "" {
		return ResolvedURL{}, false
	}
	host, port := splitHostPort(req.HostHeader)
	return ResolvedURL{Scheme: "http", Host: host, Port: port}, true
}

// resolveFromForwardedHeader parses RFC 7239's Forwarded header ("for=...;proto=...;host=...").
func resolveFromForwardedHeader(req RequestInfo, hr *config.HostResolutionConfig) (ResolvedURL, bool) {
	if req.ForwardedHeader == "" {
		return ResolvedURL{}, false
	}
	if req.ClientIP != nil && !IsTrustedProxy(hr, req.ClientIP) {
		return ResolvedURL{}, false
	}

	scheme := "https"
	var host string
	var port int
	for _, part := range strings.Split(req.ForwardedHeader, ";") {
		part = strings.TrimSpace(part)
		eq := strings.Index(part, "=")
		if eq < 0 {
			continue
		}
		key := part[:eq]
		value := strings.Trim(part[eq+1:], `"`)
		switch key {
		case "proto":
			scheme = value
		case "host":
			host, port = splitHostPort(value)
		}
	}
	if host == "" {
		return ResolvedURL{}, false
	}
	return ResolvedURL{Scheme: scheme, Host: host, Port: port}, true
}

// resolveFromXForwardedHeaders parses X-Forwarded-Proto/-Host/-Port.
func resolveFromXForwardedHeaders(req RequestInfo, hr *config.HostResolutionConfig) (ResolvedURL, bool) {
	if req.ClientIP != nil && !IsTrustedProxy(hr, req.ClientIP) {
		return ResolvedURL{}, false
	}
	if req.XForwardedHost == "" {
		return ResolvedURL{}, false
	}

	scheme := req.XForwardedProto
	if scheme == "" {
		scheme = "https"
	}

	host, port := splitHostPort(req.XForwardedHost)
	if port == 0 && req.XForwardedPort != "" {
		if p, err := strconv.Atoi(req.XForwardedPort); err == nil {
			port = p
		}
	}
	return ResolvedURL{Scheme: scheme, Host: host, Port: port}, true
}

// resolveURL dispatches on the tenant's configured host-resolution mode, defaulting to
// the Host header when none is configured.
func resolveURL(req RequestInfo, hr *config.HostResolutionConfig) (ResolvedURL, bool) {
	if hr == nil {
		return resolveFromHostHeader(req)
	}
	switch hr.Type {
	case config.ResolveForwarded:
		return resolveFromForwardedHeader(req, hr)
	case config.ResolveXForwarded:
		return resolveFromXForwardedHeaders(req, hr)
	default:
		return resolveFromHostHeader(req)
	}
}

// MatchesRequest reports whether t's path prefix (and, if configured, its host) matches
// req, returning the resolved URL used for the match.
func MatchesRequest(t config.TenantConfig, req RequestInfo) (ResolvedURL, bool) {
	if !strings.HasPrefix(req.Path, t.Path) {
		return ResolvedURL{}, false
	}
	if t.Host == nil {
		return ResolvedURL{Scheme: "http", Host: fallbackHost(req)}, true
	}
	resolved, ok := resolveURL(req, t.HostResolution)
	if !ok || resolved.Host != *t.Host {
		return ResolvedURL{}, false
	}
	return resolved, true
}

// MatchesCustomEndpoint reports whether one of t's custom endpoints matches req's path
// (and, if t has a configured host, that host too), returning the matched endpoint.
func MatchesCustomEndpoint(t config.TenantConfig, req RequestInfo) (config.CustomEndpoint, ResolvedURL, bool) {
	for _, ep := range t.CustomEndpoints {
		if ep.Path != req.Path {
			continue
		}
		if t.Host == nil {
			return ep, ResolvedURL{Scheme: "http", Host: fallbackHost(req)}, true
		}
		resolved, ok := resolveURL(req, t.HostResolution)
		if ok && resolved.Host == *t.Host {
			return ep, resolved, true
		}
	}
	return config.CustomEndpoint{}, ResolvedURL{}, false
}

func fallbackHost(req RequestInfo) string {
	if req.HostHeader != "" {
		host, _ := splitHostPort(req.HostHeader)
		return host
	}
	return "localhost"
}

// FindTenantByRequest finds the tenant matching req, preferring a custom-endpoint match
// over a plain SCIM-route match. Among plain SCIM-route matches, a host-bound tenant beats
// a path-only tenant, and ties are broken by the longest configured path, so an overly
// broad path-only tenant never shadows a more specific one and YAML ordering never affects
// the result.
func FindTenantByRequest(cfg *config.AppConfig, req RequestInfo) (*config.TenantConfig, ResolvedURL, bool) {
	for i := range cfg.Tenants {
		if _, resolved, ok := MatchesCustomEndpoint(cfg.Tenants[i], req); ok {
			return &cfg.Tenants[i], resolved, true
		}
	}

	best := -1
	var bestResolved ResolvedURL
	for i := range cfg.Tenants {
		resolved, ok := MatchesRequest(cfg.Tenants[i], req)
		if !ok {
			continue
		}
		if best == -1 || rankTenantMatch(cfg.Tenants[i], cfg.Tenants[best]) {
			best = i
			bestResolved = resolved
		}
	}
	if best == -1 {
		return nil, ResolvedURL{}, false
	}
	return &cfg.Tenants[best], bestResolved, true
}

// rankTenantMatch reports whether candidate should be preferred over current: host-bound
// tenants outrank path-only ones, and among tenants that agree on that, the one with the
// longer configured path outranks the shorter one.
func rankTenantMatch(candidate, current config.TenantConfig) bool {
	candidateHostBound := candidate.Host != nil
	currentHostBound := current.Host != nil
	if candidateHostBound != currentHostBound {
		return candidateHostBound
	}
	return len(candidate.Path) > len(current.Path)
}

// BuildBaseURL constructs t's absolute base URL for req: an explicit override wins
// outright; otherwise a host-configured tenant resolves scheme/host/port from its
// configured resolution mode (falling back to plain "http://<host><path>" when resolution
// fails), and a path-only tenant uses the request's Host header (or "localhost").
func BuildBaseURL(t config.TenantConfig, req RequestInfo) string {
	if t.OverrideBaseURL != nil {
		return strings.TrimRight(*t.OverrideBaseURL, "/") + t.Path
	}
	if t.Host == nil {
		return "http://" + fallbackHost(req) + t.Path
	}

	resolved, ok := resolveURL(req, t.HostResolution)
	if !ok {
		return "http://" + *t.Host + t.Path
	}

	portSuffix := ""
	if resolved.Port != 0 {
		isDefaultHTTPS := resolved.Scheme == "https" && resolved.Port == 443
		isDefaultHTTP := resolved.Scheme == "http" && resolved.Port == 80
		if !isDefaultHTTPS && !isDefaultHTTP {
			portSuffix = ":" + strconv.Itoa(resolved.Port)
		}
	}
	return resolved.Scheme + "://" + resolved.Host + portSuffix + t.Path
}

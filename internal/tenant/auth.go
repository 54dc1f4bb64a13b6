package tenant

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scimbridge/tenant-scim/internal/config"
	"github.com/scimbridge/tenant-scim/internal/corrid"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// contextKey is the gin.Context key under which Info is stashed by Middleware.
const contextKey = "scim.tenant"

// Info is what a resolved, authenticated request carries forward to its handler.
type Info struct {
	Tenant  *config.TenantConfig
	BaseURL string
}

// FromContext retrieves the Info a preceding Middleware call attached to c.
func FromContext(c *gin.Context) (Info, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return Info{}, false
	}
	info, ok := v.(Info)
	return info, ok
}

// ValidateAuthentication checks authHeader against cfg. The scheme token is
// case-insensitive, and every secret comparison is constant-time.
func ValidateAuthentication(cfg config.AuthConfig, authHeader string) error {
	switch cfg.Type {
	case "unauthenticated":
		return nil
	case "bearer":
		return validateSchemeToken(authHeader, "bearer ", cfg.Token)
	case "token":
		return validateSchemeToken(authHeader, "token ", cfg.Token)
	case "basic":
		return validateBasic(authHeader, cfg.Basic)
	default:
		return scimerr.Internal("unknown authentication type configured for tenant", nil)
	}
}

func validateSchemeToken(authHeader, prefix string, expected *string) error {
	if expected == nil {
		return scimerr.Unauthorized("no token configured for this tenant")
	}
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return scimerr.Unauthorized("missing or malformed Authorization header")
	}
	provided := authHeader[len(prefix):]
	if constantTimeEqual(provided, *expected) {
		return nil
	}
	return scimerr.Unauthorized("invalid credentials")
}

func validateBasic(authHeader string, expected *config.BasicAuthConfig) error {
	const prefix = "basic "
	if expected == nil {
		return scimerr.Unauthorized("no basic auth configured for this tenant")
	}
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return scimerr.Unauthorized("missing or malformed Authorization header")
	}
	decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
	if err != nil {
		return scimerr.Unauthorized("malformed basic credentials")
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return scimerr.Unauthorized("malformed basic credentials")
	}
	userOK := constantTimeEqual(parts[0], expected.Username)
	passOK := constantTimeEqual(parts[1], expected.Password)
	if userOK && passOK {
		return nil
	}
	return scimerr.Unauthorized("invalid credentials")
}

// constantTimeEqual compares two strings without leaking their contents through timing.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// exemptPaths bypass tenant resolution and authentication entirely.
var exemptPaths = map[string]bool{"/": true, "/health": true}

// Middleware resolves the tenant for each request, authenticates it (honoring a matched
// custom endpoint's own auth override), and attaches Info to the gin context for
// downstream handlers. It resolves identity up front and aborts with a JSON body on
// failure, the same shape as any other gin auth middleware.
func Middleware(cfg *config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if exemptPaths[path] {
			c.Next()
			return
		}

		req := requestInfoFromGin(c, path)
		t, _, ok := FindTenantByRequest(cfg, req)
		if !ok {
			abortWithError(c, scimerr.NotFound(fmt.Sprintf("no tenant configured for path %q", path)))
			return
		}

		authCfg := t.Auth
		if ep, _, matched := MatchesCustomEndpoint(*t, req); matched {
			authCfg = ep.EffectiveAuthConfig(t.Auth)
		}

		if err := ValidateAuthentication(authCfg, c.GetHeader("Authorization")); err != nil {
			c.Header("WWW-Authenticate", authCfg.Type)
			abortWithError(c, err)
			return
		}

		baseURL := BuildBaseURL(*t, req)
		c.Set(contextKey, Info{Tenant: t, BaseURL: baseURL})
		c.Next()
	}
}

func requestInfoFromGin(c *gin.Context, path string) RequestInfo {
	var clientIP net.IP
	if ip := net.ParseIP(c.ClientIP()); ip != nil {
		clientIP = ip
	}
	return RequestInfo{
		Path:            path,
		HostHeader:      c.Request.Host,
		ForwardedHeader: c.GetHeader("Forwarded"),
		XForwardedProto: c.GetHeader("X-Forwarded-Proto"),
		XForwardedHost:  c.GetHeader("X-Forwarded-Host"),
		XForwardedPort:  c.GetHeader("X-Forwarded-Port"),
		ClientIP:        clientIP,
	}
}

func abortWithError(c *gin.Context, err error) {
	se, ok := scimerr.As(err)
	if !ok {
		se = scimerr.Internal("unexpected error", err)
	}

	status := httpStatusOrDefault(se.Status)
	if status < 500 {
		c.AbortWithStatusJSON(status, se.ToDocument(""))
		return
	}

	corrID, _ := corrid.FromContext(c)
	if log, ok := corrid.LoggerFromContext(c); ok {
		log.Error("internal error resolving tenant or authenticating request", se)
	}
	detail := se.Detail
	if corrID != "" {
		detail = "an internal error occurred, reference " + corrID
	}
	c.AbortWithStatusJSON(status, se.ToDocument(detail))
}

func httpStatusOrDefault(status int) int {
	if status == 0 {
		return http.StatusInternalServerError
	}
	return status
}

package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/scimbridge/tenant-scim/internal/scimerr"
	"github.com/scimbridge/tenant-scim/internal/tenant"
	"github.com/scimbridge/tenant-scim/pkg/logger"
)

// RateLimitMiddleware is the per-tenant admission guard: a fixed-window counter kept in
// Redis, keyed by tenant, that fails open if Redis itself is unavailable or unconfigured.
type RateLimitMiddleware struct {
	redis        *redis.Client
	defaultLimit int
	logger       *logger.Logger
}

func NewRateLimitMiddleware(redis *redis.Client, defaultLimit int, logger *logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{redis: redis, defaultLimit: defaultLimit, logger: logger}
}

// TenantRateLimit enforces a fixed-window per-minute limit keyed by the resolved tenant's
// ID. Must run after tenant.Middleware, since it reads tenant.FromContext.
func (m *RateLimitMiddleware) TenantRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.redis == nil {
			c.Next()
			return
		}
		info, ok := tenant.FromContext(c)
		if !ok {
			c.Next()
			return
		}

		limit := m.tenantLimit(info)
		key := fmt.Sprintf("rate_limit:tenant:%d", info.Tenant.ID)
		log := m.logger
		if log != nil {
			log = log.WithTenant(info.Tenant.ID)
		}
		if m.enforce(c, log, key, limit, "Tenant rate limit exceeded") {
			return
		}
		c.Next()
	}
}

// GlobalRateLimit enforces a fixed-window per-minute limit keyed by client IP, independent
// of tenant resolution. Useful ahead of tenant.Middleware to bound unauthenticated abuse.
func (m *RateLimitMiddleware) GlobalRateLimit(limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.redis == nil {
			c.Next()
			return
		}
		key := fmt.Sprintf("rate_limit:global:%s", c.ClientIP())
		if m.enforce(c, m.logger, key, limit, "Global rate limit exceeded") {
			return
		}
		c.Next()
	}
}

func (m *RateLimitMiddleware) enforce(c *gin.Context, log *logger.Logger, key string, limit int, detail string) (aborted bool) {
	ctx := c.Request.Context()

	current, err := m.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		if log != nil {
			log.Error("redis error in rate limiting", err)
		}
		return false
	}

	if current >= limit {
		m.setHeaders(c, limit, 0)
		se := scimerr.TooManyRequests(detail)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, se.ToDocument(""))
		return true
	}

	pipe := m.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil && log != nil {
		log.Error("redis pipeline error in rate limiting", err)
	}

	remaining := limit - (current + 1)
	if remaining < 0 {
		remaining = 0
	}
	m.setHeaders(c, limit, remaining)
	return false
}

func (m *RateLimitMiddleware) setHeaders(c *gin.Context, limit, remaining int) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
}

// tenantLimit resolves the limit for info's tenant. Every tenant currently shares the
// server-wide default; info is kept as a parameter so a future per-tenant override has
// somewhere to hook in.
func (m *RateLimitMiddleware) tenantLimit(info tenant.Info) int {
	if m.defaultLimit > 0 {
		return m.defaultLimit
	}
	return 1000
}

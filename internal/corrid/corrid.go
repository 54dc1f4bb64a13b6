// Package corrid attaches a per-request correlation id (and a logger tagged with it) to
// a gin.Context, so any package that renders a 500 can log it and hand the client back a
// traceable, opaque reference instead of an internal error message. It is split out from
// internal/middleware, which internal/tenant already depends on, so internal/tenant can
// read the correlation id back without an import cycle.
package corrid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scimbridge/tenant-scim/pkg/logger"
)

// Header is the response header a client can capture to reference an opaque 500 later.
const Header = "X-Correlation-Id"

const (
	idKey     = "scim.correlation_id"
	loggerKey = "scim.logger"
)

// Attach mints a uuid, stores it (and, if log is non-nil, a logger tagged with it) on c,
// and echoes it back as a response header. Meant to run in the outermost middleware, ahead
// of tenant resolution and every handler.
func Attach(c *gin.Context, log *logger.Logger) string {
	id := uuid.New().String()
	c.Set(idKey, id)
	if log != nil {
		c.Set(loggerKey, log.WithCorrelationID(id))
	}
	c.Header(Header, id)
	return id
}

// FromContext returns the correlation id Attach stored on c, if any.
func FromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(idKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// LoggerFromContext returns the correlation-id-tagged logger Attach stored on c, if any.
func LoggerFromContext(c *gin.Context) (*logger.Logger, bool) {
	v, ok := c.Get(loggerKey)
	if !ok {
		return nil, false
	}
	log, ok := v.(*logger.Logger)
	return log, ok
}

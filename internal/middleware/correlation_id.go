package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/scimbridge/tenant-scim/internal/corrid"
	"github.com/scimbridge/tenant-scim/pkg/logger"
)

// CorrelationID is the outermost middleware in the chain: it mints a uuid for every
// request via internal/corrid and attaches it, and a logger tagged with it, to the gin
// context. internal/api and internal/tenant read both back off the context when they need
// to log and report a 500 opaquely.
func CorrelationID(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		corrid.Attach(c, log)
		c.Next()
	}
}

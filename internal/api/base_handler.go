package api

import (
	"context"

	"github.com/gin-gonic/gin"
)

// BaseHandler carries the pieces every resource handler needs regardless of which SCIM
// resource type it serves: a gin.Context wraps its own request context, and handlers pass
// that context straight down to internal/service and internal/store rather than threading
// *gin.Context through non-HTTP layers.
type BaseHandler struct{}

// RequestCtx returns the context.Context carried by ginCtx's underlying *http.Request.
func (h *BaseHandler) RequestCtx(ginCtx *gin.Context) context.Context {
	return ginCtx.Request.Context()
}

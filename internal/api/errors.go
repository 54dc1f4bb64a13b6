package api

import (
	"github.com/gin-gonic/gin"

	"github.com/scimbridge/tenant-scim/internal/corrid"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// renderError writes err as a SCIM Error document (RFC 7644 §3.12), mapping any error
// internal/service and its dependents return into the right status and scimType.
// Anything that isn't already a *scimerr.Error is treated as an unexpected internal
// failure. 500-class errors are logged through the request's correlation-id logger
// (attached by middleware.CorrelationID) before rendering, and the client gets the
// correlation id back as its detail message instead of se.Detail or the wrapped cause.
func renderError(c *gin.Context, err error) {
	se, ok := scimerr.As(err)
	if !ok {
		se = scimerr.Internal("an internal error occurred", err)
	}

	if se.Status < 500 {
		c.JSON(se.Status, se.ToDocument(""))
		return
	}

	corrID, _ := corrid.FromContext(c)
	if log, ok := corrid.LoggerFromContext(c); ok {
		log.Error("internal error handling scim request", se)
	}

	detail := se.Detail
	if corrID != "" {
		detail = "an internal error occurred, reference " + corrID
	}
	c.JSON(se.Status, se.ToDocument(detail))
}

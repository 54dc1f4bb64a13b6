package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// scimMediaTypes are the two Content-Type values accepted on a request body; RFC 7644
// mandates "application/scim+json" but permits the plain "application/json" clients still
// commonly send.
var scimMediaTypes = []string{"application/scim+json", "application/json"}

// ValidateContentType rejects bodies sent with anything other than a SCIM-acceptable media
// type.
func ValidateContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete {
			c.Next()
			return
		}
		if c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		contentType := c.GetHeader("Content-Type")
		if contentType == "" {
			abort(c, scimerr.BadRequest("Content-Type header is required"))
			return
		}
		contentType = strings.TrimSpace(strings.Split(contentType, ";")[0])

		for _, allowed := range scimMediaTypes {
			if strings.EqualFold(contentType, allowed) {
				c.Next()
				return
			}
		}
		abort(c, scimerr.BadRequest("unsupported Content-Type: "+contentType))
	}
}

// MaxRequestBodySize caps the request body: reject up front on a Content-Length that
// already exceeds maxBytes, then wrap the body reader so a chunked request can't exceed it
// either.
func MaxRequestBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			abort(c, scimerr.BadRequest("request body too large"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func abort(c *gin.Context, err *scimerr.Error) {
	c.AbortWithStatusJSON(err.Status, err.ToDocument(""))
}

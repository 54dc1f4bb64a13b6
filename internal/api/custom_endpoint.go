package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scimbridge/tenant-scim/internal/tenant"
)

// CustomEndpointHandler serves a tenant's statically configured endpoints: a literal
// response body, status code, and content type, resolved per request instead of baked
// into the route table, since which tenant a request belongs to (and therefore which
// custom endpoints exist) is only known once tenant.Middleware has run.
type CustomEndpointHandler struct{}

func NewCustomEndpointHandler() *CustomEndpointHandler { return &CustomEndpointHandler{} }

// Serve handles any path a tenant declared under custom_endpoints. tenant.Middleware
// already ran auth for this route (using the endpoint's own auth override when present),
// so this handler only needs to find the matching entry and write its literal body.
func (h *CustomEndpointHandler) Serve(c *gin.Context) {
	info, ok := tenant.FromContext(c)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	path := c.Request.URL.Path
	for _, ep := range info.Tenant.CustomEndpoints {
		if ep.Path == path {
			status := ep.StatusCode
			if status == 0 {
				status = http.StatusOK
			}
			contentType := ep.ContentType
			if contentType == "" {
				contentType = "application/json"
			}
			c.Data(status, contentType, []byte(ep.Response))
			return
		}
	}
	c.Status(http.StatusNotFound)
}

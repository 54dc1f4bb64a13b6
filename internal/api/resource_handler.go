// Package api holds the gin routes and handlers that translate HTTP requests into
// internal/service calls and shape the results back into SCIM wire documents via
// internal/projection and internal/shaper. A handler embeds *BaseHandler, and each method
// binds/parses the request, calls the service with h.RequestCtx(c), and renders JSON
// directly, with no separate controller/presenter split.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scimbridge/tenant-scim/internal/config"
	"github.com/scimbridge/tenant-scim/internal/patch"
	"github.com/scimbridge/tenant-scim/internal/projection"
	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
	"github.com/scimbridge/tenant-scim/internal/service"
	"github.com/scimbridge/tenant-scim/internal/shaper"
	"github.com/scimbridge/tenant-scim/internal/store"
	"github.com/scimbridge/tenant-scim/internal/tenant"
)

// ResourceHandler serves /Users and /Groups for one resource type. Two instances (one per
// resource type) are created by NewServer; the handler methods themselves are generic over
// rt so the CRUD wiring below is written once.
type ResourceHandler struct {
	*BaseHandler
	svc *service.Service
	rt  schema.ResourceType
}

func NewResourceHandler(svc *service.Service, rt schema.ResourceType) *ResourceHandler {
	return &ResourceHandler{BaseHandler: &BaseHandler{}, svc: svc, rt: rt}
}

func (h *ResourceHandler) resourcePath() string {
	if h.rt == schema.ResourceGroup {
		return "Groups"
	}
	return "Users"
}

// tenantInfo reads the resolved tenant off gin's context, attached earlier by
// tenant.Middleware, and derives this tenant's numeric ID and effective compatibility
// config from it.
func (h *ResourceHandler) tenantInfo(c *gin.Context) (tenant.Info, config.CompatibilityConfig, error) {
	info, ok := tenant.FromContext(c)
	if !ok {
		return tenant.Info{}, config.CompatibilityConfig{}, scimerr.Internal("tenant not resolved", nil)
	}
	fallback := config.DefaultCompatibilityConfig()
	compat := info.Tenant.EffectiveCompatibility(fallback)
	return info, compat, nil
}

func (h *ResourceHandler) location(info tenant.Info, id string) string {
	base := strings.TrimRight(info.BaseURL, "/")
	return fmt.Sprintf("%s/%s/%s", base, h.resourcePath(), id)
}

// finish applies location stamping, projection, and shaping, in that order: the location
// depends on this tenant's base URL, something only the API layer knows, attribute
// projection happens on the caller-requested subset next, and the compatibility shaper's
// meta/format adjustments run last so they see the already-projected document.
func (h *ResourceHandler) finish(c *gin.Context, res *store.Resource, info tenant.Info, compat config.CompatibilityConfig) map[string]interface{} {
	doc := res.Data
	meta, _ := doc["meta"].(map[string]interface{})
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["location"] = h.location(info, res.ID)
	doc["meta"] = meta

	params, _ := projection.ParseParams(c.Query("attributes"), c.Query("excludedAttributes"))
	doc = projection.Apply(doc, params, h.rt)
	shaper.Apply(doc, service.ShaperConfigFrom(compat), h.rt == schema.ResourceUser)
	return doc
}

func (h *ResourceHandler) writeResource(c *gin.Context, status int, res *store.Resource, info tenant.Info, compat config.CompatibilityConfig) {
	doc := h.finish(c, res, info, compat)
	if etag, ok := doc["meta"].(map[string]interface{})["version"].(string); ok {
		c.Header("ETag", etag)
	}
	c.JSON(status, doc)
}

// Create handles POST /Users and POST /Groups.
func (h *ResourceHandler) Create(c *gin.Context) {
	info, compat, err := h.tenantInfo(c)
	if err != nil {
		renderError(c, err)
		return
	}

	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		renderError(c, scimerr.BadRequest("malformed JSON body: "+err.Error()))
		return
	}

	res, err := h.svc.Create(h.RequestCtx(c), info.Tenant.ID, h.rt, raw)
	if err != nil {
		renderError(c, err)
		return
	}
	h.writeResource(c, http.StatusCreated, res, info, compat)
}

// Get handles GET /Users/:id and GET /Groups/:id.
func (h *ResourceHandler) Get(c *gin.Context) {
	info, compat, err := h.tenantInfo(c)
	if err != nil {
		renderError(c, err)
		return
	}

	res, err := h.svc.Get(h.RequestCtx(c), info.Tenant.ID, h.rt, c.Param("id"), compat)
	if err != nil {
		renderError(c, err)
		return
	}
	if ifNoneMatch := c.GetHeader("If-None-Match"); ifNoneMatch != "" && matchesEtag(ifNoneMatch, res.Version) {
		c.Status(http.StatusNotModified)
		return
	}
	h.writeResource(c, http.StatusOK, res, info, compat)
}

// Replace handles PUT /Users/:id and PUT /Groups/:id.
func (h *ResourceHandler) Replace(c *gin.Context) {
	info, compat, err := h.tenantInfo(c)
	if err != nil {
		renderError(c, err)
		return
	}

	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		renderError(c, scimerr.BadRequest("malformed JSON body: "+err.Error()))
		return
	}

	ifMatch, err := parseIfMatch(c.GetHeader("If-Match"))
	if err != nil {
		renderError(c, err)
		return
	}

	res, err := h.svc.Replace(h.RequestCtx(c), info.Tenant.ID, h.rt, c.Param("id"), raw, ifMatch)
	if err != nil {
		renderError(c, err)
		return
	}
	h.writeResource(c, http.StatusOK, res, info, compat)
}

// patchBody is the wire shape of a PATCH request per RFC 7644 §3.5.2.
type patchBody struct {
	Schemas    []string           `json:"schemas"`
	Operations []patch.Operation  `json:"Operations"`
}

// Patch handles PATCH /Users/:id and PATCH /Groups/:id.
func (h *ResourceHandler) Patch(c *gin.Context) {
	info, compat, err := h.tenantInfo(c)
	if err != nil {
		renderError(c, err)
		return
	}

	var body patchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		renderError(c, scimerr.BadRequest("malformed JSON body: "+err.Error()))
		return
	}
	if len(body.Operations) == 0 {
		renderError(c, scimerr.InvalidValue("Operations must contain at least one entry"))
		return
	}

	ifMatch, err := parseIfMatch(c.GetHeader("If-Match"))
	if err != nil {
		renderError(c, err)
		return
	}

	res, err := h.svc.Patch(h.RequestCtx(c), info.Tenant.ID, h.rt, c.Param("id"), body.Operations, service.PatchConfigFrom(compat), ifMatch)
	if err != nil {
		renderError(c, err)
		return
	}
	h.writeResource(c, http.StatusOK, res, info, compat)
}

// Delete handles DELETE /Users/:id and DELETE /Groups/:id.
func (h *ResourceHandler) Delete(c *gin.Context) {
	info, _, err := h.tenantInfo(c)
	if err != nil {
		renderError(c, err)
		return
	}

	ifMatch, err := parseIfMatch(c.GetHeader("If-Match"))
	if err != nil {
		renderError(c, err)
		return
	}

	if err := h.svc.Delete(h.RequestCtx(c), info.Tenant.ID, h.rt, c.Param("id"), ifMatch); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listResponse is the ListResponse envelope RFC 7644 §3.4.2 defines.
type listResponse struct {
	Schemas      []string                 `json:"schemas"`
	TotalResults int                      `json:"totalResults"`
	StartIndex   int                      `json:"startIndex"`
	ItemsPerPage int                      `json:"itemsPerPage"`
	Resources    []map[string]interface{} `json:"Resources"`
}

// List handles GET /Users and GET /Groups.
func (h *ResourceHandler) List(c *gin.Context) {
	info, compat, err := h.tenantInfo(c)
	if err != nil {
		renderError(c, err)
		return
	}

	params := service.ListParams{
		Filter:     c.Query("filter"),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
		StartIndex: queryInt(c, "startIndex", 1),
		Count:      queryInt(c, "count", 100),
	}

	results, total, err := h.svc.List(h.RequestCtx(c), info.Tenant.ID, h.rt, params, compat)
	if err != nil {
		renderError(c, err)
		return
	}

	docs := make([]map[string]interface{}, 0, len(results))
	for _, res := range results {
		docs = append(docs, h.finish(c, res, info, compat))
	}

	c.JSON(http.StatusOK, listResponse{
		Schemas:      []string{"urn:ietf:params:scim:api:messages:2.0:ListResponse"},
		TotalResults: total,
		StartIndex:   params.StartIndex,
		ItemsPerPage: len(docs),
		Resources:    docs,
	})
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// parseIfMatch extracts the version number a weak ETag (W/"3") or a bare quoted version
// ("3") carries, so the service layer can compare it against a resource's stored version.
func parseIfMatch(header string) (*int, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	header = strings.TrimPrefix(header, "W/")
	header = strings.Trim(header, `"`)
	n, err := strconv.Atoi(header)
	if err != nil {
		return nil, scimerr.BadRequest("malformed If-Match header")
	}
	return &n, nil
}

func matchesEtag(header string, version int) bool {
	n, err := parseIfMatch(header)
	return err == nil && n != nil && *n == version
}

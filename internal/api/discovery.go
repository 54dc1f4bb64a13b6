package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

func notFoundSchema(id string) *scimerr.Error {
	return scimerr.NotFound("no schema or resource type registered with id " + id)
}

// DiscoveryHandler serves the read-only, unauthenticated-by-convention discovery
// endpoints RFC 7644 §4 defines: /Schemas, /ResourceTypes, and /ServiceProviderConfig.
// It renders internal/schema's static Definition values directly; no service-layer call
// is involved since these documents never depend on tenant data.
type DiscoveryHandler struct{}

func NewDiscoveryHandler() *DiscoveryHandler { return &DiscoveryHandler{} }

func attrDoc(a schema.AttributeDefinition) map[string]interface{} {
	doc := map[string]interface{}{
		"name":        a.Name,
		"type":        string(a.Type),
		"multiValued": a.MultiValued,
		"required":    a.Required,
		"caseExact":   a.CaseExact,
		"mutability":  string(a.Mutability),
		"returned":    string(a.Returned),
		"uniqueness":  string(a.Uniqueness),
	}
	if len(a.Canonical) > 0 {
		doc["canonicalValues"] = a.Canonical
	}
	if len(a.SubAttributes) > 0 {
		subs := make([]map[string]interface{}, 0, len(a.SubAttributes))
		for _, sub := range a.SubAttributes {
			subs = append(subs, attrDoc(sub))
		}
		doc["subAttributes"] = subs
	}
	return doc
}

func schemaDoc(def schema.Definition) map[string]interface{} {
	attrs := make([]map[string]interface{}, 0, len(def.Attributes))
	for _, a := range def.Attributes {
		attrs = append(attrs, attrDoc(a))
	}
	return map[string]interface{}{
		"schemas":     []string{"urn:ietf:params:scim:schemas:core:2.0:Schema"},
		"id":          def.ID,
		"name":        def.Name,
		"description": def.Description,
		"attributes":  attrs,
	}
}

var allSchemas = []schema.Definition{schema.User, schema.EnterpriseUser, schema.Group}

// Schemas handles GET /Schemas.
func (h *DiscoveryHandler) Schemas(c *gin.Context) {
	docs := make([]map[string]interface{}, 0, len(allSchemas))
	for _, def := range allSchemas {
		docs = append(docs, schemaDoc(def))
	}
	c.JSON(http.StatusOK, listResponse{
		Schemas:      []string{"urn:ietf:params:scim:api:messages:2.0:ListResponse"},
		TotalResults: len(docs),
		StartIndex:   1,
		ItemsPerPage: len(docs),
		Resources:    docs,
	})
}

// SchemaByID handles GET /Schemas/:id.
func (h *DiscoveryHandler) SchemaByID(c *gin.Context) {
	id := c.Param("id")
	for _, def := range allSchemas {
		if def.ID == id {
			c.JSON(http.StatusOK, schemaDoc(def))
			return
		}
	}
	renderError(c, notFoundSchema(id))
}

func resourceTypeDoc(name, endpoint, schemaID string, extensions []map[string]interface{}) map[string]interface{} {
	doc := map[string]interface{}{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
		"id":       name,
		"name":     name,
		"endpoint": endpoint,
		"schema":   schemaID,
	}
	if len(extensions) > 0 {
		doc["schemaExtensions"] = extensions
	}
	return doc
}

// ResourceTypes handles GET /ResourceTypes.
func (h *DiscoveryHandler) ResourceTypes(c *gin.Context) {
	docs := []map[string]interface{}{
		resourceTypeDoc("User", "/Users", schema.UserURN, []map[string]interface{}{
			{"schema": schema.EnterpriseUserURN, "required": false},
		}),
		resourceTypeDoc("Group", "/Groups", schema.GroupURN, nil),
	}
	c.JSON(http.StatusOK, listResponse{
		Schemas:      []string{"urn:ietf:params:scim:api:messages:2.0:ListResponse"},
		TotalResults: len(docs),
		StartIndex:   1,
		ItemsPerPage: len(docs),
		Resources:    docs,
	})
}

// ResourceTypeByID handles GET /ResourceTypes/:id.
func (h *DiscoveryHandler) ResourceTypeByID(c *gin.Context) {
	switch c.Param("id") {
	case "User":
		c.JSON(http.StatusOK, resourceTypeDoc("User", "/Users", schema.UserURN, []map[string]interface{}{
			{"schema": schema.EnterpriseUserURN, "required": false},
		}))
	case "Group":
		c.JSON(http.StatusOK, resourceTypeDoc("Group", "/Groups", schema.GroupURN, nil))
	default:
		renderError(c, notFoundSchema(c.Param("id")))
	}
}

// ServiceProviderConfig handles GET /ServiceProviderConfig. The feature flags reported
// here match what this module actually implements: PATCH, filtering, sort, and ETags are
// supported; bulk is not.
func (h *DiscoveryHandler) ServiceProviderConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"schemas": []string{"urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"},
		"patch":   gin.H{"supported": true},
		"bulk":    gin.H{"supported": false, "maxOperations": 0, "maxPayloadSize": 0},
		"filter":  gin.H{"supported": true, "maxResults": 200},
		"changePassword": gin.H{"supported": true},
		"sort":            gin.H{"supported": true},
		"etag":            gin.H{"supported": true},
		"authenticationSchemes": []gin.H{
			{"type": "httpbasic", "name": "HTTP Basic", "description": "Authentication via HTTP Basic"},
			{"type": "oauthbearertoken", "name": "Bearer Token", "description": "Authentication via a static bearer token"},
		},
	})
}

// Health handles GET /health, a plain liveness probe with no SCIM shape at all.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

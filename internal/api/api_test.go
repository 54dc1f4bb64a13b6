package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/scimbridge/tenant-scim/internal/config"
	"github.com/scimbridge/tenant-scim/internal/corrid"
	"github.com/scimbridge/tenant-scim/internal/middleware"
	"github.com/scimbridge/tenant-scim/internal/password"
	"github.com/scimbridge/tenant-scim/internal/service"
	"github.com/scimbridge/tenant-scim/internal/store"
)

// APITestSuite drives the full HTTP stack against an in-memory sqlite-backed store,
// exercising the real service and store layers rather than a mocked interface, since
// ResourceHandler is built against a concrete *service.Service, not a narrow interface.
type APITestSuite struct {
	suite.Suite
	router  *gin.Engine
	service *service.Service
}

func (s *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: gormlogger.Discard})
	s.Require().NoError(err)

	st := store.New(db, "sqlite")
	svc := service.New(st, password.NewManager())
	s.service = svc

	cfg := &config.AppConfig{
		Server:        config.ServerConfig{Host: "127.0.0.1", Port: 3000},
		Compatibility: config.DefaultCompatibilityConfig(),
		Tenants: []config.TenantConfig{
			{ID: 1, Path: "/scim/v2", Auth: config.AuthConfig{Type: "unauthenticated"}},
		},
	}

	rateLimit := middleware.NewRateLimitMiddleware(nil, 0, nil)
	server := NewServer(cfg, svc, rateLimit, nil)

	router := gin.New()
	server.SetupRoutes(router)
	s.router = router
}

func (s *APITestSuite) doJSON(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/scim+json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *APITestSuite) TestCreateAndGetUser() {
	rec := s.doJSON(http.MethodPost, "/scim/v2/Users", map[string]interface{}{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": "bjensen@example.com",
	})
	s.Equal(http.StatusCreated, rec.Code)

	var created map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	id, _ := created["id"].(string)
	s.NotEmpty(id)

	rec = s.doJSON(http.MethodGet, "/scim/v2/Users/"+id, nil)
	s.Equal(http.StatusOK, rec.Code)

	var fetched map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &fetched))
	s.Equal("bjensen@example.com", fetched["userName"])
	meta, _ := fetched["meta"].(map[string]interface{})
	s.Contains(meta["location"], "/scim/v2/Users/"+id)
}

func (s *APITestSuite) TestCreateDuplicateUserNameConflicts() {
	rec := s.doJSON(http.MethodPost, "/scim/v2/Users", map[string]interface{}{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": "dup@example.com",
	})
	s.Equal(http.StatusCreated, rec.Code)

	rec = s.doJSON(http.MethodPost, "/scim/v2/Users", map[string]interface{}{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": "dup@example.com",
	})
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *APITestSuite) TestPatchTogglesActive() {
	rec := s.doJSON(http.MethodPost, "/scim/v2/Users", map[string]interface{}{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": "patchme@example.com",
		"active":   true,
	})
	s.Equal(http.StatusCreated, rec.Code)
	var created map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"].(string)

	rec = s.doJSON(http.MethodPatch, "/scim/v2/Users/"+id, map[string]interface{}{
		"schemas": []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		"Operations": []map[string]interface{}{
			{"op": "replace", "path": "active", "value": false},
		},
	})
	s.Equal(http.StatusOK, rec.Code)
	var patched map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &patched))
	s.Equal(false, patched["active"])
}

func (s *APITestSuite) TestDeleteThenGetReturnsNotFound() {
	rec := s.doJSON(http.MethodPost, "/scim/v2/Users", map[string]interface{}{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": "gone@example.com",
	})
	var created map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"].(string)

	rec = s.doJSON(http.MethodDelete, "/scim/v2/Users/"+id, nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.doJSON(http.MethodGet, "/scim/v2/Users/"+id, nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *APITestSuite) TestDiscoveryEndpoints() {
	rec := s.doJSON(http.MethodGet, "/scim/v2/ResourceTypes", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.doJSON(http.MethodGet, "/scim/v2/Schemas", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.doJSON(http.MethodGet, "/scim/v2/ServiceProviderConfig", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *APITestSuite) TestHealthIsExemptFromTenantResolution() {
	rec := s.doJSON(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *APITestSuite) TestEveryResponseCarriesACorrelationID() {
	rec := s.doJSON(http.MethodGet, "/health", nil)
	s.NotEmpty(rec.Header().Get(corrid.Header), "correlation id middleware runs ahead of every route, including /health")

	rec = s.doJSON(http.MethodGet, "/scim/v2/nonexistent-tenant-path", nil)
	s.NotEmpty(rec.Header().Get(corrid.Header))
}

func (s *APITestSuite) TestUnknownAuthTypeIsReportedOpaquelyWithCorrelationID() {
	cfg := &config.AppConfig{
		Server:        config.ServerConfig{Host: "127.0.0.1", Port: 3000},
		Compatibility: config.DefaultCompatibilityConfig(),
		Tenants: []config.TenantConfig{
			{ID: 1, Path: "/scim/v2", Auth: config.AuthConfig{Type: "not-a-real-scheme"}},
		},
	}
	rateLimit := middleware.NewRateLimitMiddleware(nil, 0, nil)
	server := NewServer(cfg, s.service, rateLimit, nil)
	router := gin.New()
	server.SetupRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/scim/v2/Users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	s.Equal(http.StatusInternalServerError, rec.Code)
	corrID := rec.Header().Get(corrid.Header)
	s.NotEmpty(corrID)

	var doc map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &doc))
	s.Contains(doc["detail"], corrID, "the correlation id must be surfaced in the opaque 500 detail")
}

func (s *APITestSuite) createUser(userName string) string {
	rec := s.doJSON(http.MethodPost, "/scim/v2/Users", map[string]interface{}{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": userName,
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var created map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	return created["id"].(string)
}

func (s *APITestSuite) TestCreateGroupWithMembersAndAttachToUser() {
	userID := s.createUser("member@example.com")

	rec := s.doJSON(http.MethodPost, "/scim/v2/Groups", map[string]interface{}{
		"schemas":     []string{"urn:ietf:params:scim:schemas:core:2.0:Group"},
		"displayName": "Engineers",
		"members": []map[string]interface{}{
			{"value": userID, "type": "User"},
		},
	})
	s.Equal(http.StatusCreated, rec.Code)

	var group map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &group))
	groupID := group["id"].(string)
	s.Equal("Engineers", group["displayName"])
	members, _ := group["members"].([]interface{})
	s.Require().Len(members, 1)

	rec = s.doJSON(http.MethodGet, "/scim/v2/Users/"+userID, nil)
	s.Equal(http.StatusOK, rec.Code)
	var user map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &user))
	groups, _ := user["groups"].([]interface{})
	s.Require().Len(groups, 1)
	ref := groups[0].(map[string]interface{})
	s.Equal(groupID, ref["value"])
}

func (s *APITestSuite) TestReplaceGroupDiffsMembership() {
	userA := s.createUser("a@example.com")
	userB := s.createUser("b@example.com")

	rec := s.doJSON(http.MethodPost, "/scim/v2/Groups", map[string]interface{}{
		"schemas":     []string{"urn:ietf:params:scim:schemas:core:2.0:Group"},
		"displayName": "Rotators",
		"members": []map[string]interface{}{
			{"value": userA, "type": "User"},
		},
	})
	s.Equal(http.StatusCreated, rec.Code)
	var created map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	groupID := created["id"].(string)

	rec = s.doJSON(http.MethodPut, "/scim/v2/Groups/"+groupID, map[string]interface{}{
		"schemas":     []string{"urn:ietf:params:scim:schemas:core:2.0:Group"},
		"displayName": "Rotators",
		"members": []map[string]interface{}{
			{"value": userB, "type": "User"},
		},
	})
	s.Equal(http.StatusOK, rec.Code)
	var updated map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &updated))
	members, _ := updated["members"].([]interface{})
	s.Require().Len(members, 1)
	s.Equal(userB, members[0].(map[string]interface{})["value"])

	rec = s.doJSON(http.MethodGet, "/scim/v2/Users/"+userA, nil)
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	s.NotContains(created, "groups")
}

func (s *APITestSuite) TestListUsersWithFilter() {
	s.createUser("findme@example.com")
	s.createUser("other@example.com")

	rec := s.doJSON(http.MethodGet, `/scim/v2/Users?filter=userName eq "findme@example.com"`, nil)
	s.Equal(http.StatusOK, rec.Code)

	var list map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Equal(float64(1), list["totalResults"])
	resources, _ := list["Resources"].([]interface{})
	s.Require().Len(resources, 1)
	s.Equal("findme@example.com", resources[0].(map[string]interface{})["userName"])
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/scimbridge/tenant-scim/internal/config"
	"github.com/scimbridge/tenant-scim/internal/middleware"
	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/service"
	"github.com/scimbridge/tenant-scim/internal/tenant"
	"github.com/scimbridge/tenant-scim/pkg/logger"
)

// Server wires the tenant middleware chain and every route group together: a struct
// holding pre-built handlers plus the middleware instances SetupRoutes composes into
// gin.HandlerFunc chains per group.
type Server struct {
	cfg            *config.AppConfig
	log            *logger.Logger
	users          *ResourceHandler
	groups         *ResourceHandler
	discovery      *DiscoveryHandler
	customEndpoint *CustomEndpointHandler
	rateLimit      *middleware.RateLimitMiddleware
}

func NewServer(cfg *config.AppConfig, svc *service.Service, rateLimit *middleware.RateLimitMiddleware, log *logger.Logger) *Server {
	return &Server{
		cfg:            cfg,
		log:            log,
		users:          NewResourceHandler(svc, schema.ResourceUser),
		groups:         NewResourceHandler(svc, schema.ResourceGroup),
		discovery:      NewDiscoveryHandler(),
		customEndpoint: NewCustomEndpointHandler(),
		rateLimit:      rateLimit,
	}
}

// SetupRoutes registers every route this module serves onto engine. CorrelationID runs
// ahead of everything, including /health, so every response (success or failure) carries a
// traceable id. Tenant resolution and authentication run next: a single tenant.Middleware
// call covers every tenant's path and host, so there is no per-tenant route group.
func (s *Server) SetupRoutes(engine *gin.Engine) {
	engine.Use(middleware.CorrelationID(s.log))

	engine.GET("/health", Health)

	api := engine.Group("")
	api.Use(tenant.Middleware(s.cfg))
	api.Use(middleware.MaxRequestBodySize(10 * 1024 * 1024))
	api.Use(middleware.ValidateContentType())
	api.Use(s.rateLimit.TenantRateLimit())

	// Every handler resolves its tenant from tenant.FromContext at request time rather
	// than from a route closure, so a base path shared by several tenants (distinguished
	// only by Host) needs registering exactly once, not once per tenant. gin's router
	// panics on a duplicate path pattern otherwise.
	seenBase := map[string]bool{}
	seenCustom := map[string]bool{}
	for _, t := range s.cfg.Tenants {
		base := t.Path
		if !seenBase[base] {
			seenBase[base] = true
			api.POST(base+"/Users", s.users.Create)
			api.GET(base+"/Users", s.users.List)
			api.GET(base+"/Users/:id", s.users.Get)
			api.PUT(base+"/Users/:id", s.users.Replace)
			api.PATCH(base+"/Users/:id", s.users.Patch)
			api.DELETE(base+"/Users/:id", s.users.Delete)

			api.POST(base+"/Groups", s.groups.Create)
			api.GET(base+"/Groups", s.groups.List)
			api.GET(base+"/Groups/:id", s.groups.Get)
			api.PUT(base+"/Groups/:id", s.groups.Replace)
			api.PATCH(base+"/Groups/:id", s.groups.Patch)
			api.DELETE(base+"/Groups/:id", s.groups.Delete)

			api.GET(base+"/Schemas", s.discovery.Schemas)
			api.GET(base+"/Schemas/:id", s.discovery.SchemaByID)
			api.GET(base+"/ResourceTypes", s.discovery.ResourceTypes)
			api.GET(base+"/ResourceTypes/:id", s.discovery.ResourceTypeByID)
			api.GET(base+"/ServiceProviderConfig", s.discovery.ServiceProviderConfig)
		}

		for _, ep := range t.CustomEndpoints {
			// ep.Path is already absolute (internal/tenant.MatchesCustomEndpoint compares
			// it directly against the request's full URL path), unlike the SCIM routes
			// above which are relative to the tenant's base path.
			if seenCustom[ep.Path] {
				continue
			}
			seenCustom[ep.Path] = true
			api.GET(ep.Path, s.customEndpoint.Serve)
		}
	}
}

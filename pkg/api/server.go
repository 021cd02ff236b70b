// Package api wires the HTTP surface: route registration, middleware
// ordering, and per-concern handler groups under /api/v1.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/authz"
	"github.com/atriumhq/atrium/pkg/entities"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/identity"
	"github.com/atriumhq/atrium/pkg/middleware"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/roles"
	"github.com/atriumhq/atrium/pkg/templates"
	"github.com/atriumhq/atrium/pkg/tenants"
	"github.com/atriumhq/atrium/pkg/workflows"
)

// Deps collects everything the HTTP surface needs. Metrics, RateLimit,
// and AuditQuery are optional.
type Deps struct {
	Tenants     tenants.Service
	Roles       *roles.Store
	Entities    *entities.Store
	Workflows   *workflows.Store
	Registry    *templates.Registry
	Provisioner *templates.Provisioner
	Audit       audit.Logger
	AuditQuery  *audit.DBLogger

	Identity  *identity.Middleware
	Authz     *authz.Middleware
	RateLimit *middleware.RateLimitMiddleware

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Server is the assembled HTTP API.
type Server struct {
	router *mux.Router
	log    *observability.Logger
}

// NewServer builds the router with all routes and middleware registered.
func NewServer(deps Deps) *Server {
	if deps.Audit == nil {
		deps.Audit = audit.NopLogger{}
	}

	s := &Server{
		router: mux.NewRouter(),
		log:    deps.Logger,
	}

	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.RecoveryMiddleware(deps.Logger))
	if deps.Metrics != nil {
		s.router.Use(middleware.MetricsMiddleware(deps.Metrics))
	}
	s.router.Use(deps.Identity.Handler)
	if deps.RateLimit != nil {
		s.router.Use(deps.RateLimit.Handler)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	tenantHandlers := NewTenantHandlers(deps.Tenants, deps.Roles, deps.Audit, deps.Logger)
	roleHandlers := NewRoleHandlers(deps.Roles, deps.Audit, deps.Logger)
	entityHandlers := NewEntityHandlers(deps.Entities, deps.Roles, deps.Audit, deps.Logger, deps.Metrics)
	templateHandlers := NewTemplateHandlers(deps.Registry, deps.Provisioner, deps.Workflows, deps.Logger)
	auditHandlers := NewAuditHandlers(deps.AuditQuery, deps.Logger)

	// Platform scope: god mode only.
	platform := api.PathPrefix("/platform").Subrouter()
	platform.Use(deps.Authz.RequirePlatform)
	tenantHandlers.RegisterPlatformRoutes(platform)

	// Template catalog: any authenticated caller.
	templateHandlers.RegisterCatalogRoutes(api)

	// Tenant scope: membership or god mode.
	tenant := api.PathPrefix("/tenants/{tenantId}").Subrouter()
	tenant.Use(deps.Authz.RequireTenant)
	tenantHandlers.RegisterTenantRoutes(tenant)
	roleHandlers.RegisterRoutes(tenant)
	entityHandlers.RegisterRoutes(tenant)
	templateHandlers.RegisterTenantRoutes(tenant)
	auditHandlers.RegisterRoutes(tenant)

	return s
}

// Router returns the underlying mux router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

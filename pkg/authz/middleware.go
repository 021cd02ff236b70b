package authz

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/identity"
	"github.com/atriumhq/atrium/pkg/observability"
)

// HeaderTenantID carries the tenant scope for requests whose route has
// no tenant path parameter.
const HeaderTenantID = "X-Atrium-Tenant-ID"

// ResolveTenantID extracts the tenant scope from the request: header
// first, then the route's tenantId parameter, then the tenant_id query
// parameter.
func ResolveTenantID(r *http.Request) (uuid.UUID, bool) {
	candidates := []string{
		r.Header.Get(HeaderTenantID),
		mux.Vars(r)["tenantId"],
		r.URL.Query().Get("tenant_id"),
	}
	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		return id, true
	}
	return uuid.Nil, false
}

// Middleware adapts the pipeline to gorilla/mux handlers.
type Middleware struct {
	authorizer *Authorizer
	log        *observability.Logger
	metrics    *observability.Metrics
	audit      audit.Logger
}

// NewMiddleware creates the HTTP adapters. metrics may be nil; auditLog
// may be nil to skip denial auditing.
func NewMiddleware(authorizer *Authorizer, log *observability.Logger, metrics *observability.Metrics, auditLog audit.Logger) *Middleware {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Middleware{
		authorizer: authorizer,
		log:        log,
		metrics:    metrics,
		audit:      auditLog,
	}
}

// RequirePlatform admits only platform admins.
func (m *Middleware) RequirePlatform(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := identity.FromContext(r.Context())
		if err != nil {
			m.observe("platform", "unauthenticated")
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		if err := m.authorizer.Platform(r.Context(), claims); err != nil {
			m.deny(w, r, "platform", nil, claims, err)
			return
		}

		m.observe("platform", "allow")
		next.ServeHTTP(w, r)
	})
}

// RequireTenant admits tenant members and platform admins, storing the
// pipeline outcome in the request context.
func (m *Middleware) RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := identity.FromContext(r.Context())
		if err != nil {
			m.observe("tenant", "unauthenticated")
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		tenantID, ok := ResolveTenantID(r)
		if !ok {
			httputil.WriteBadRequest(w, "tenant id is required")
			return
		}

		authzCtx, err := m.authorizer.Tenant(r.Context(), claims, tenantID)
		if err != nil {
			m.deny(w, r, "tenant", &tenantID, claims, err)
			return
		}

		m.observe("tenant", "allow")
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), authzCtx)))
	})
}

// RequireApp runs the full cascade for an app-scoped route: identity,
// tenant membership, then app enablement and grants.
func (m *Middleware) RequireApp(appCode string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return m.RequireTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authzCtx, err := FromContext(r.Context())
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}

			appCtx, err := m.authorizer.App(r.Context(), authzCtx, appCode)
			if err != nil {
				m.deny(w, r, "app", &authzCtx.TenantID, authzCtx.Claims, err)
				return
			}

			m.observe("app", "allow")
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), appCtx)))
		}))
	}
}

func (m *Middleware) deny(w http.ResponseWriter, r *http.Request, stage string, tenantID *uuid.UUID, claims *identity.Claims, err error) {
	authzErr, ok := IsAuthzError(err)
	if !ok {
		m.observe(stage, "error")
		m.log.WithError(err).WithField("stage", stage).Error("authorization stage failed")
		httputil.WriteInternalError(w, err)
		return
	}

	m.observe(stage, "deny")

	event := &audit.Event{
		TenantID: tenantID,
		Action:   "authz.deny",
		Entity:   "authz",
		EntityID: string(authzErr.Code),
		NewValue: map[string]any{
			"stage":  stage,
			"path":   r.URL.Path,
			"method": r.Method,
		},
	}
	if claims != nil {
		userID := claims.SubjectID
		event.UserID = &userID
	}
	if auditErr := m.audit.Record(r.Context(), event); auditErr != nil {
		m.log.WithError(auditErr).Warn("failed to audit authorization denial")
	}

	httputil.WriteErrorCode(w, http.StatusForbidden, string(authzErr.Code), authzErr.Message)
}

func (m *Middleware) observe(stage, outcome string) {
	if m.metrics != nil {
		m.metrics.AuthzDecisionsTotal.WithLabelValues(stage, outcome).Inc()
	}
}

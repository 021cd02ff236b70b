package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/observability"
)

// AuditHandlers serves the tenant audit trail.
type AuditHandlers struct {
	store *audit.DBLogger
	log   *observability.Logger
}

// NewAuditHandlers creates the audit handler group. store may be nil
// when auditing is disabled; the routes then report 503.
func NewAuditHandlers(store *audit.DBLogger, log *observability.Logger) *AuditHandlers {
	return &AuditHandlers{store: store, log: log}
}

// RegisterRoutes registers audit routes under a tenant
func (h *AuditHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit", h.ListEvents).Methods("GET")
}

// ListEvents returns the tenant's audit trail, newest first (admin only)
func (h *AuditHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	if h.store == nil {
		httputil.WriteServiceUnavailable(w, "auditing is disabled")
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid limit")
		return
	}

	tenantID := c.TenantID
	events, err := h.store.List(r.Context(), audit.Filter{
		TenantID: &tenantID,
		Action:   httputil.ParseQueryString(r, "action", ""),
		Limit:    limit,
	})
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, events)
}

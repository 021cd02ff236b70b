package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atriumhq/atrium/pkg/authz"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/identity"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/templates"
	"github.com/atriumhq/atrium/pkg/workflows"
)

// TemplateHandlers serves the template catalog and the tenant factory.
type TemplateHandlers struct {
	registry    *templates.Registry
	provisioner *templates.Provisioner
	workflows   *workflows.Store
	log         *observability.Logger
}

// NewTemplateHandlers creates the template handler group
func NewTemplateHandlers(registry *templates.Registry, provisioner *templates.Provisioner, workflowStore *workflows.Store, log *observability.Logger) *TemplateHandlers {
	return &TemplateHandlers{
		registry:    registry,
		provisioner: provisioner,
		workflows:   workflowStore,
		log:         log,
	}
}

// RegisterCatalogRoutes registers the read-only catalog routes
func (h *TemplateHandlers) RegisterCatalogRoutes(router *mux.Router) {
	router.HandleFunc("/templates", h.ListTemplates).Methods("GET")
	router.HandleFunc("/templates/{slug}", h.GetTemplate).Methods("GET")
}

// RegisterTenantRoutes registers factory and materialized-state routes
// under a tenant
func (h *TemplateHandlers) RegisterTenantRoutes(router *mux.Router) {
	router.HandleFunc("/factory/instantiate", h.Instantiate).Methods("POST")
	router.HandleFunc("/workflows", h.ListWorkflows).Methods("GET")
	router.HandleFunc("/dashboards", h.ListDashboards).Methods("GET")
}

// ListTemplates lists catalog summaries
func (h *TemplateHandlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.registry.List()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// GetTemplate returns a full blueprint
func (h *TemplateHandlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	bp, err := h.registry.Get(slug)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, bp)
}

// Instantiate materializes a template into the tenant (admin only).
// Re-running the same template refreshes what it created.
func (h *TemplateHandlers) Instantiate(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	var req struct {
		TemplateSlug string `json:"template_slug"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.TemplateSlug, "template_slug") {
		return
	}

	claims, err := identity.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	summary, err := h.provisioner.Instantiate(r.Context(), c.TenantID, req.TemplateSlug, claims.SubjectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

// ListWorkflows lists the tenant's materialized workflows
func (h *TemplateHandlers) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	list, err := h.workflows.ListWorkflows(r.Context(), c.TenantID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// ListDashboards lists the tenant's dashboards
func (h *TemplateHandlers) ListDashboards(w http.ResponseWriter, r *http.Request) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	list, err := h.workflows.ListDashboards(r.Context(), c.TenantID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

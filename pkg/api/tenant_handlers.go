package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/authz"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/identity"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/roles"
	"github.com/atriumhq/atrium/pkg/tenants"
)

// TenantHandlers serves tenant lifecycle, membership, app enablement,
// and per-user app grants.
type TenantHandlers struct {
	tenants tenants.Service
	roles   *roles.Store
	audit   audit.Logger
	log     *observability.Logger
}

// NewTenantHandlers creates the tenant handler group
func NewTenantHandlers(tenantSvc tenants.Service, roleStore *roles.Store, auditLog audit.Logger, log *observability.Logger) *TenantHandlers {
	return &TenantHandlers{
		tenants: tenantSvc,
		roles:   roleStore,
		audit:   auditLog,
		log:     log,
	}
}

// RegisterPlatformRoutes registers god-mode routes
func (h *TenantHandlers) RegisterPlatformRoutes(router *mux.Router) {
	router.HandleFunc("/tenants", h.CreateTenant).Methods("POST")
	router.HandleFunc("/tenants", h.ListTenants).Methods("GET")
	router.HandleFunc("/apps", h.CreateApp).Methods("POST")
	router.HandleFunc("/apps", h.ListApps).Methods("GET")
}

// RegisterTenantRoutes registers member-facing routes under a tenant
func (h *TenantHandlers) RegisterTenantRoutes(router *mux.Router) {
	router.HandleFunc("", h.GetTenant).Methods("GET")
	router.HandleFunc("/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/members", h.AddMember).Methods("POST")
	router.HandleFunc("/members/{membershipId}/role", h.UpdateMemberRole).Methods("PUT")
	router.HandleFunc("/members/{membershipId}", h.RemoveMember).Methods("DELETE")
	router.HandleFunc("/apps", h.ListTenantApps).Methods("GET")
	router.HandleFunc("/apps/{appCode}", h.SetAppEnabled).Methods("PUT")
	router.HandleFunc("/apps/{appCode}", h.ClearAppOverride).Methods("DELETE")
	router.HandleFunc("/members/{membershipId}/apps/{appCode}", h.GrantAppPermission).Methods("POST")
	router.HandleFunc("/members/{membershipId}/apps/{appCode}", h.RevokeAppPermission).Methods("DELETE")
}

// requireTenantAdmin fetches the pipeline outcome and rejects callers
// below admin. Returns false after writing the response.
func requireTenantAdmin(w http.ResponseWriter, r *http.Request) (*authz.Context, bool) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	if !c.IsTenantAdmin() {
		httputil.WriteForbidden(w, "tenant administrator access required")
		return nil, false
	}
	return c, true
}

// CreateTenant provisions a tenant with its owner membership and seeds
// the built-in roles.
func (h *TenantHandlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenants.CreateTenantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "tenant name is required")
		return
	}

	tenant, err := h.tenants.CreateTenant(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := roles.SeedSystemRoles(r.Context(), h.roles, tenant.ID); err != nil {
		h.log.WithError(err).WithField("tenant_id", tenant.ID).Error("failed to seed system roles")
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordAudit(r, &tenant.ID, "tenant.create", "tenant", tenant.Slug, map[string]any{
		"name": tenant.Name,
		"plan": string(tenant.Plan),
	})
	httputil.WriteCreated(w, tenant)
}

// ListTenants lists all tenants (platform view)
func (h *TenantHandlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	list, err := h.tenants.ListTenants(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// CreateApp registers an app in the platform catalog
func (h *TenantHandlers) CreateApp(w http.ResponseWriter, r *http.Request) {
	var app tenants.App
	if !httputil.ParseJSONOrError(w, r, &app) {
		return
	}
	if app.Code == "" || app.Name == "" {
		httputil.WriteBadRequest(w, "app code and name are required")
		return
	}

	if err := h.tenants.CreateApp(r.Context(), &app); err != nil {
		writeDomainError(w, err)
		return
	}

	h.recordAudit(r, nil, "app.create", "app", app.Code, map[string]any{"is_core": app.IsCore})
	httputil.WriteCreated(w, app)
}

// ListApps lists the platform app catalog
func (h *TenantHandlers) ListApps(w http.ResponseWriter, r *http.Request) {
	list, err := h.tenants.ListApps(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// GetTenant returns the tenant the caller is scoped to
func (h *TenantHandlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	tenant, err := h.tenants.GetTenant(r.Context(), c.TenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, tenant)
}

// ListMembers lists the tenant's active memberships
func (h *TenantHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	members, err := h.tenants.ListMembers(r.Context(), c.TenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

// AddMember invites a user into the tenant (admin only)
func (h *TenantHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	var req tenants.AddMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = roles.RoleMember
	}
	if claims, err := identity.FromContext(r.Context()); err == nil {
		inviter := claims.SubjectID
		req.InvitedBy = &inviter
	}

	member, err := h.tenants.AddMember(r.Context(), c.TenantID, &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.recordAudit(r, &c.TenantID, "member.add", "membership", member.ID.String(), map[string]any{
		"user_id": req.UserID,
		"role":    req.Role,
	})
	httputil.WriteCreated(w, member)
}

// UpdateMemberRole changes a member's tenant role (admin only)
func (h *TenantHandlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	membershipID, ok := httputil.ParsePathUUIDOrError(w, r, "membershipId")
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Role == "" {
		httputil.WriteBadRequest(w, "role is required")
		return
	}

	if err := h.tenants.UpdateMemberRole(r.Context(), membershipID, req.Role); err != nil {
		writeDomainError(w, err)
		return
	}

	h.recordAudit(r, &c.TenantID, "member.update_role", "membership", membershipID.String(), map[string]any{
		"role": req.Role,
	})
	httputil.WriteNoContent(w)
}

// RemoveMember deactivates a membership (admin only)
func (h *TenantHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	membershipID, ok := httputil.ParsePathUUIDOrError(w, r, "membershipId")
	if !ok {
		return
	}

	if err := h.tenants.DeactivateMember(r.Context(), membershipID); err != nil {
		writeDomainError(w, err)
		return
	}

	h.recordAudit(r, &c.TenantID, "member.remove", "membership", membershipID.String(), nil)
	httputil.WriteNoContent(w)
}

// ListTenantApps lists the tenant's app enablement state
func (h *TenantHandlers) ListTenantApps(w http.ResponseWriter, r *http.Request) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	list, err := h.tenants.ListTenantApps(r.Context(), c.TenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// SetAppEnabled toggles an app for the tenant (admin only)
func (h *TenantHandlers) SetAppEnabled(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	appCode := mux.Vars(r)["appCode"]
	app, err := h.tenants.GetAppByCode(r.Context(), appCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tenantApp, err := h.tenants.SetAppEnabled(r.Context(), c.TenantID, app.ID, req.Enabled)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.recordAudit(r, &c.TenantID, "app.set_enabled", "tenant_app", appCode, map[string]any{
		"enabled": req.Enabled,
	})
	httputil.WriteSuccess(w, tenantApp)
}

// ClearAppOverride removes the tenant's enablement override so the app
// reverts to its catalog default (admin only)
func (h *TenantHandlers) ClearAppOverride(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	appCode := mux.Vars(r)["appCode"]
	app, err := h.tenants.GetAppByCode(r.Context(), appCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.tenants.RemoveTenantApp(r.Context(), c.TenantID, app.ID); err != nil {
		writeDomainError(w, err)
		return
	}

	h.recordAudit(r, &c.TenantID, "app.clear_override", "tenant_app", appCode, nil)
	httputil.WriteNoContent(w)
}

// GrantAppPermission grants a member explicit app access (admin only)
func (h *TenantHandlers) GrantAppPermission(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	membershipID, ok := httputil.ParsePathUUIDOrError(w, r, "membershipId")
	if !ok {
		return
	}
	appCode := mux.Vars(r)["appCode"]
	app, err := h.tenants.GetAppByCode(r.Context(), appCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		Permissions map[string]any `json:"permissions"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var grantedBy *uuid.UUID
	if claims, err := identity.FromContext(r.Context()); err == nil {
		id := claims.SubjectID
		grantedBy = &id
	}

	grant, err := h.tenants.GrantAppPermission(r.Context(), membershipID, app.ID, req.Permissions, grantedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.recordAudit(r, &c.TenantID, "app.grant", "user_app_permission", grant.ID.String(), map[string]any{
		"membership_id": membershipID,
		"app":           appCode,
	})
	httputil.WriteCreated(w, grant)
}

// RevokeAppPermission removes a member's explicit app access (admin only)
func (h *TenantHandlers) RevokeAppPermission(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	membershipID, ok := httputil.ParsePathUUIDOrError(w, r, "membershipId")
	if !ok {
		return
	}
	appCode := mux.Vars(r)["appCode"]
	app, err := h.tenants.GetAppByCode(r.Context(), appCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.tenants.RevokeAppPermission(r.Context(), membershipID, app.ID); err != nil {
		writeDomainError(w, err)
		return
	}

	h.recordAudit(r, &c.TenantID, "app.revoke", "user_app_permission", appCode, map[string]any{
		"membership_id": membershipID,
	})
	httputil.WriteNoContent(w)
}

func (h *TenantHandlers) recordAudit(r *http.Request, tenantID *uuid.UUID, action, entity, entityID string, newValue map[string]any) {
	event := &audit.Event{
		TenantID: tenantID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		NewValue: newValue,
	}
	if claims, err := identity.FromContext(r.Context()); err == nil {
		userID := claims.SubjectID
		event.UserID = &userID
	}
	if err := h.audit.Record(r.Context(), event); err != nil {
		h.log.WithError(err).WithField("action", action).Warn("failed to record audit event")
	}
}

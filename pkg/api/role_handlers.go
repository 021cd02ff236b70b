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
)

// RoleHandlers serves tenant role management.
type RoleHandlers struct {
	roles *roles.Store
	audit audit.Logger
	log   *observability.Logger
}

// NewRoleHandlers creates the role handler group
func NewRoleHandlers(roleStore *roles.Store, auditLog audit.Logger, log *observability.Logger) *RoleHandlers {
	return &RoleHandlers{roles: roleStore, audit: auditLog, log: log}
}

// RegisterRoutes registers role routes under a tenant
func (h *RoleHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/roles", h.CreateRole).Methods("POST")
	router.HandleFunc("/roles/{roleId}", h.GetRole).Methods("GET")
	router.HandleFunc("/roles/{roleId}", h.UpdateRole).Methods("PUT")
	router.HandleFunc("/roles/{roleId}", h.DeleteRole).Methods("DELETE")
}

// ListRoles lists the tenant's roles, system roles first
func (h *RoleHandlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	list, err := h.roles.ListRoles(r.Context(), c.TenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// CreateRole creates a custom role (admin only). The permission matrix
// is validated before anything is persisted.
func (h *RoleHandlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	var req roles.CreateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	matrix, err := roles.ValidateMatrix(req.Permissions)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	role := &roles.Role{
		ID:          uuid.New(),
		TenantID:    c.TenantID,
		Name:        req.Name,
		Description: req.Description,
		Permissions: matrix,
	}
	if err := h.roles.CreateRole(r.Context(), role); err != nil {
		writeDomainError(w, err)
		return
	}

	h.recordAudit(r, c.TenantID, "role.create", role.Name, nil, map[string]any{
		"description": role.Description,
	})
	httputil.WriteCreated(w, role)
}

// GetRole retrieves a role, scoped to the caller's tenant
func (h *RoleHandlers) GetRole(w http.ResponseWriter, r *http.Request) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	roleID, ok := httputil.ParsePathUUIDOrError(w, r, "roleId")
	if !ok {
		return
	}

	role, err := h.roles.GetRole(r.Context(), roleID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if role.TenantID != c.TenantID {
		httputil.WriteNotFoundError(w, roles.ErrRoleNotFound.Error())
		return
	}
	httputil.WriteSuccess(w, role)
}

// UpdateRole updates a custom role's description or matrix (admin only).
// System roles reject updates.
func (h *RoleHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	roleID, ok := httputil.ParsePathUUIDOrError(w, r, "roleId")
	if !ok {
		return
	}

	existing, err := h.roles.GetRole(r.Context(), roleID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if existing.TenantID != c.TenantID {
		httputil.WriteNotFoundError(w, roles.ErrRoleNotFound.Error())
		return
	}

	var req roles.UpdateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var matrix roles.Matrix
	if len(req.Permissions) > 0 {
		matrix, err = roles.ValidateMatrix(req.Permissions)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
	}

	if err := h.roles.UpdateRole(r.Context(), roleID, req.Description, matrix); err != nil {
		writeDomainError(w, err)
		return
	}

	old := map[string]any{"description": existing.Description}
	h.recordAudit(r, c.TenantID, "role.update", existing.Name, old, map[string]any{
		"matrix_changed": len(req.Permissions) > 0,
	})
	httputil.WriteNoContent(w)
}

// DeleteRole deletes a custom role (admin only). System roles reject
// deletion.
func (h *RoleHandlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	roleID, ok := httputil.ParsePathUUIDOrError(w, r, "roleId")
	if !ok {
		return
	}

	existing, err := h.roles.GetRole(r.Context(), roleID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if existing.TenantID != c.TenantID {
		httputil.WriteNotFoundError(w, roles.ErrRoleNotFound.Error())
		return
	}

	if err := h.roles.DeleteRole(r.Context(), roleID); err != nil {
		writeDomainError(w, err)
		return
	}

	h.recordAudit(r, c.TenantID, "role.delete", existing.Name, nil, nil)
	httputil.WriteNoContent(w)
}

func (h *RoleHandlers) recordAudit(r *http.Request, tenantID uuid.UUID, action, roleName string, oldValue, newValue map[string]any) {
	event := &audit.Event{
		TenantID: &tenantID,
		Action:   action,
		Entity:   "role",
		EntityID: roleName,
		OldValue: oldValue,
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

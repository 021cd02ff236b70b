package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/authz"
	"github.com/atriumhq/atrium/pkg/entities"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/identity"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/roles"
)

// EntityHandlers serves entity definitions and records. Record access
// runs through the caller's role matrix: actions are checked before the
// store is touched and responses are field-filtered on the way out.
type EntityHandlers struct {
	entities *entities.Store
	roles    *roles.Store
	audit    audit.Logger
	log      *observability.Logger
	metrics  *observability.Metrics
}

// NewEntityHandlers creates the entity handler group. metrics may be nil.
func NewEntityHandlers(entityStore *entities.Store, roleStore *roles.Store, auditLog audit.Logger, log *observability.Logger, metrics *observability.Metrics) *EntityHandlers {
	return &EntityHandlers{
		entities: entityStore,
		roles:    roleStore,
		audit:    auditLog,
		log:      log,
		metrics:  metrics,
	}
}

// RegisterRoutes registers entity routes under a tenant
func (h *EntityHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/entities", h.ListDefinitions).Methods("GET")
	router.HandleFunc("/entities", h.CreateDefinition).Methods("POST")
	router.HandleFunc("/entities/{slug}", h.GetDefinition).Methods("GET")
	router.HandleFunc("/entities/{slug}/records", h.CreateRecord).Methods("POST")
	router.HandleFunc("/entities/{slug}/records", h.ListRecords).Methods("GET")
}

// matrixFor resolves the caller's permission matrix for an entity. Custom
// roles come from the store; built-in role names fall back to the fixed
// system matrices. The synthetic god role gets full access.
func (h *EntityHandlers) matrixFor(r *http.Request, c *authz.Context, entity string) (roles.Matrix, error) {
	roleName := c.TenantRole
	if roleName == authz.RoleGod {
		return roles.EffectiveMatrix(roles.SystemMatrices()[roles.RoleOwner], entity), nil
	}

	role, err := h.roles.GetRoleByName(r.Context(), c.TenantID, roleName)
	if err == nil {
		return roles.EffectiveMatrix(role.Permissions, entity), nil
	}
	if err != roles.ErrRoleNotFound {
		return nil, err
	}
	if matrix, ok := roles.SystemMatrices()[roleName]; ok {
		return roles.EffectiveMatrix(matrix, entity), nil
	}
	return roles.Matrix{}, nil
}

// ListDefinitions lists the tenant's entity definitions
func (h *EntityHandlers) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	list, err := h.entities.ListDefinitions(r.Context(), c.TenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// CreateDefinition creates an entity definition (admin only)
func (h *EntityHandlers) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	c, ok := requireTenantAdmin(w, r)
	if !ok {
		return
	}

	var req entities.CreateDefinitionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	def, err := h.entities.CreateDefinition(r.Context(), c.TenantID, &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.DefinitionsCreatedTotal.WithLabelValues("api").Inc()
	}
	h.recordAudit(r, c.TenantID, "entity.define", "entity_definition", def.Slug, map[string]any{
		"fields": len(def.Fields),
	})
	httputil.WriteCreated(w, def)
}

// GetDefinition retrieves a definition with its ordered fields
func (h *EntityHandlers) GetDefinition(w http.ResponseWriter, r *http.Request) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	slug := mux.Vars(r)["slug"]
	def, err := h.entities.GetDefinition(r.Context(), c.TenantID, slug)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, def)
}

// CreateRecord validates the payload against the definition and persists
// it. The caller's matrix must allow writes on the entity; "own" counts
// because the creator owns the new record.
func (h *EntityHandlers) CreateRecord(w http.ResponseWriter, r *http.Request) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	slug := mux.Vars(r)["slug"]
	matrix, err := h.matrixFor(r, c, slug)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if !roles.CheckPermission(matrix, slug, roles.ActionWrite) {
		httputil.WriteForbidden(w, "no write access to "+slug)
		return
	}

	var data map[string]any
	if !httputil.ParseJSONOrError(w, r, &data) {
		return
	}

	claims, err := identity.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	record, err := h.entities.CreateRecord(r.Context(), c.TenantID, slug, data, claims.SubjectID)
	if err != nil {
		if _, ok := entities.IsValidationError(err); ok && h.metrics != nil {
			h.metrics.RecordValidationErrors.WithLabelValues(slug, "schema").Inc()
		}
		writeDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordsCreatedTotal.WithLabelValues(slug).Inc()
	}
	h.recordAudit(r, c.TenantID, "record.create", "entity_record", record.ID.String(), map[string]any{
		"entity": slug,
	})
	httputil.WriteCreated(w, record)
}

// ListRecords returns the entity's records with the caller's hidden
// fields stripped.
func (h *EntityHandlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	c, err := authz.FromContext(r.Context())
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	slug := mux.Vars(r)["slug"]
	matrix, err := h.matrixFor(r, c, slug)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if !roles.CheckPermission(matrix, slug, roles.ActionRead) {
		httputil.WriteForbidden(w, "no read access to "+slug)
		return
	}

	records, err := h.entities.ListRecords(r.Context(), c.TenantID, slug)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	for _, record := range records {
		record.Data = roles.FilterFields(matrix, slug, record.Data)
	}
	httputil.WriteSuccess(w, records)
}

func (h *EntityHandlers) recordAudit(r *http.Request, tenantID uuid.UUID, action, entity, entityID string, newValue map[string]any) {
	event := &audit.Event{
		TenantID: &tenantID,
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

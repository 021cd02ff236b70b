package api

import (
	"errors"
	"net/http"

	"github.com/atriumhq/atrium/pkg/entities"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/roles"
	"github.com/atriumhq/atrium/pkg/templates"
	"github.com/atriumhq/atrium/pkg/tenants"
)

// writeDomainError maps domain sentinel errors to HTTP statuses:
// not-found sentinels to 404, conflicts to 409, validation to 400,
// everything else to 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenants.ErrTenantNotFound),
		errors.Is(err, tenants.ErrMembershipNotFound),
		errors.Is(err, tenants.ErrAppNotFound),
		errors.Is(err, tenants.ErrTenantAppNotFound),
		errors.Is(err, tenants.ErrGrantNotFound),
		errors.Is(err, roles.ErrRoleNotFound),
		errors.Is(err, entities.ErrDefinitionNotFound),
		errors.Is(err, entities.ErrRecordNotFound),
		errors.Is(err, templates.ErrTemplateNotFound):
		httputil.WriteNotFoundError(w, err.Error())

	case errors.Is(err, tenants.ErrDuplicateSlug),
		errors.Is(err, tenants.ErrDuplicateMembership),
		errors.Is(err, roles.ErrDuplicateRoleName),
		errors.Is(err, roles.ErrSystemRoleImmutable),
		errors.Is(err, entities.ErrDuplicateSlug):
		httputil.WriteConflict(w, err.Error())

	default:
		if ve, ok := entities.IsValidationError(err); ok {
			httputil.WriteDetailedError(w, http.StatusBadRequest, err, ve.Fields)
			return
		}
		httputil.WriteInternalError(w, err)
	}
}

package tenants

import "errors"

var (
	// ErrTenantNotFound indicates the tenant does not exist or is inactive.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrMembershipNotFound indicates no active membership for (tenant, user).
	ErrMembershipNotFound = errors.New("membership not found")

	// ErrAppNotFound indicates the app is not in the platform catalog.
	ErrAppNotFound = errors.New("app not found")

	// ErrTenantAppNotFound indicates the app has no enablement row for the tenant.
	ErrTenantAppNotFound = errors.New("app not configured for tenant")

	// ErrGrantNotFound indicates no explicit app grant for the membership.
	ErrGrantNotFound = errors.New("app permission grant not found")

	// ErrDuplicateSlug indicates a tenant slug collision.
	ErrDuplicateSlug = errors.New("tenant slug already in use")

	// ErrDuplicateMembership indicates the user is already a member.
	ErrDuplicateMembership = errors.New("user is already a member of this tenant")
)

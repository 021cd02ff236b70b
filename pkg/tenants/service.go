package tenants

import (
	"context"

	"github.com/google/uuid"
)

// Service defines tenant membership store operations.
type Service interface {
	// Tenants (platform scope)
	CreateTenant(ctx context.Context, req *CreateTenantRequest) (*Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)

	// Memberships
	AddMember(ctx context.Context, tenantID uuid.UUID, req *AddMemberRequest) (*Membership, error)
	GetMembership(ctx context.Context, tenantID, userID uuid.UUID) (*Membership, error)
	ListMembers(ctx context.Context, tenantID uuid.UUID) ([]*Membership, error)
	UpdateMemberRole(ctx context.Context, membershipID uuid.UUID, role string) error
	DeactivateMember(ctx context.Context, membershipID uuid.UUID) error

	// App catalog
	CreateApp(ctx context.Context, app *App) error
	GetApp(ctx context.Context, id uuid.UUID) (*App, error)
	GetAppByCode(ctx context.Context, code string) (*App, error)
	ListApps(ctx context.Context) ([]*App, error)

	// Per-tenant app enablement
	SetAppEnabled(ctx context.Context, tenantID, appID uuid.UUID, enabled bool) (*TenantApp, error)
	GetTenantApp(ctx context.Context, tenantID, appID uuid.UUID) (*TenantApp, error)
	ListTenantApps(ctx context.Context, tenantID uuid.UUID) ([]*TenantApp, error)
	RemoveTenantApp(ctx context.Context, tenantID, appID uuid.UUID) error

	// Explicit app grants
	GrantAppPermission(ctx context.Context, membershipID, appID uuid.UUID, permissions map[string]any, grantedBy *uuid.UUID) (*UserAppPermission, error)
	GetAppPermission(ctx context.Context, membershipID, appID uuid.UUID) (*UserAppPermission, error)
	RevokeAppPermission(ctx context.Context, membershipID, appID uuid.UUID) error
}

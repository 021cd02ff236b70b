package tenants

import (
	"time"

	"github.com/google/uuid"
)

// Plan represents subscription plan tiers
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Tenant is an isolated organization. All tenant-scoped rows carry its ID.
type Tenant struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Plan        Plan      `json:"plan"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership associates a user with a tenant under a role. The role is a
// name referencing either a built-in role or a tenant custom role.
type Membership struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	UserID    uuid.UUID  `json:"user_id"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	InvitedBy *uuid.UUID `json:"invited_by,omitempty"`
	JoinedAt  time.Time  `json:"joined_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// App is a platform-level installable feature module.
type App struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsCore      bool      `json:"is_core"`
	CreatedAt   time.Time `json:"created_at"`
}

// TenantApp gates whether an app's routes are reachable for a tenant.
type TenantApp struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	AppID     uuid.UUID `json:"app_id"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserAppPermission is an explicit per-membership app grant. Owner and
// admin roles never need one; other roles are denied without it.
type UserAppPermission struct {
	ID           uuid.UUID      `json:"id"`
	MembershipID uuid.UUID      `json:"membership_id"`
	AppID        uuid.UUID      `json:"app_id"`
	Permissions  map[string]any `json:"permissions,omitempty"`
	GrantedBy    *uuid.UUID     `json:"granted_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CreateTenantRequest is the payload for creating a tenant.
type CreateTenantRequest struct {
	Name        string    `json:"name"`
	Slug        string    `json:"slug,omitempty"`
	Plan        Plan      `json:"plan,omitempty"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
}

// AddMemberRequest is the payload for adding a tenant member.
type AddMemberRequest struct {
	UserID    uuid.UUID  `json:"user_id"`
	Role      string     `json:"role"`
	InvitedBy *uuid.UUID `json:"invited_by,omitempty"`
}

// Package authz implements the cascading authorization pipeline. Every
// protected request passes through up to three stages: platform (god
// mode), tenant (membership), and app (enablement plus explicit grants).
// A request stops at the first stage that rejects it.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/contextkeys"
	"github.com/atriumhq/atrium/pkg/identity"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/tenants"
)

// Code identifies why the pipeline rejected a request.
type Code string

const (
	CodeGodModeRequired     Code = "GOD_MODE_REQUIRED"
	CodeTenantAccessDenied  Code = "TENANT_ACCESS_DENIED"
	CodeAppNotEnabled       Code = "APP_NOT_ENABLED"
	CodeAppPermissionDenied Code = "APP_PERMISSION_DENIED"
)

// Error is an authorization rejection with a machine-readable code.
type Error struct {
	Code    Code
	Message string
}

// Error implements error
func (e *Error) Error() string {
	return e.Message
}

// IsAuthzError reports whether err is a pipeline rejection.
func IsAuthzError(err error) (*Error, bool) {
	var authzErr *Error
	if errors.As(err, &authzErr) {
		return authzErr, true
	}
	return nil, false
}

// RoleGod is the synthetic tenant role platform admins carry inside any
// tenant. It is never persisted.
const RoleGod = "god"

// Context is the outcome of a successful pipeline run. MembershipID is
// uuid.Nil for god-mode access.
type Context struct {
	Claims         *identity.Claims
	TenantID       uuid.UUID
	TenantRole     string
	MembershipID   uuid.UUID
	AppCode        string
	AppPermissions map[string]any
}

// IsGod reports whether the caller is a platform admin
func (c *Context) IsGod() bool {
	return c.Claims != nil && c.Claims.IsGod
}

// IsTenantAdmin reports whether the caller manages the tenant: owners,
// admins, and platform admins.
func (c *Context) IsTenantAdmin() bool {
	switch c.TenantRole {
	case RoleGod, "owner", "admin":
		return true
	}
	return false
}

// ErrNoAuthzContext indicates the request never passed the pipeline.
var ErrNoAuthzContext = errors.New("no authorization context")

// FromContext retrieves the pipeline outcome stored by the middleware.
func FromContext(ctx context.Context) (*Context, error) {
	c, ok := ctx.Value(contextkeys.AuthzKey).(*Context)
	if !ok || c == nil {
		return nil, ErrNoAuthzContext
	}
	return c, nil
}

// NewContext stores the pipeline outcome in the request context.
func NewContext(ctx context.Context, c *Context) context.Context {
	return contextkeys.WithAuthz(ctx, c)
}

// Authorizer evaluates the pipeline stages against the tenant store.
type Authorizer struct {
	tenants tenants.Service
	log     *observability.Logger
}

// NewAuthorizer creates a pipeline evaluator
func NewAuthorizer(tenantSvc tenants.Service, log *observability.Logger) *Authorizer {
	return &Authorizer{tenants: tenantSvc, log: log}
}

// Platform admits only platform admins (god mode).
func (a *Authorizer) Platform(ctx context.Context, claims *identity.Claims) error {
	if !claims.IsGod {
		return &Error{Code: CodeGodModeRequired, Message: "platform administrator access required"}
	}
	return nil
}

// Tenant admits members of the tenant. Platform admins are admitted to
// any tenant with the synthetic god role and no membership.
func (a *Authorizer) Tenant(ctx context.Context, claims *identity.Claims, tenantID uuid.UUID) (*Context, error) {
	if claims.IsGod {
		return &Context{
			Claims:     claims,
			TenantID:   tenantID,
			TenantRole: RoleGod,
		}, nil
	}

	membership, err := a.tenants.GetMembership(ctx, tenantID, claims.SubjectID)
	if errors.Is(err, tenants.ErrMembershipNotFound) {
		return nil, &Error{Code: CodeTenantAccessDenied, Message: "not a member of this tenant"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve membership: %w", err)
	}

	return &Context{
		Claims:       claims,
		TenantID:     tenantID,
		TenantRole:   membership.Role,
		MembershipID: membership.ID,
	}, nil
}

// App admits callers to an app inside a tenant. Platform admins skip
// the stage entirely. For everyone else enablement comes before the
// owner/admin bypass: an app without an enabled tenant_apps row rejects
// owners and admins too. Only after that do admin roles bypass the
// explicit-grant check.
func (a *Authorizer) App(ctx context.Context, c *Context, appCode string) (*Context, error) {
	if c.IsGod() {
		return &Context{
			Claims:     c.Claims,
			TenantID:   c.TenantID,
			TenantRole: c.TenantRole,
			AppCode:    appCode,
		}, nil
	}

	app, err := a.tenants.GetAppByCode(ctx, appCode)
	if errors.Is(err, tenants.ErrAppNotFound) {
		return nil, &Error{Code: CodeAppNotEnabled, Message: fmt.Sprintf("app %s is not available", appCode)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve app: %w", err)
	}

	tenantApp, err := a.tenants.GetTenantApp(ctx, c.TenantID, app.ID)
	if errors.Is(err, tenants.ErrTenantAppNotFound) {
		return nil, &Error{Code: CodeAppNotEnabled, Message: fmt.Sprintf("app %s is not enabled for this tenant", appCode)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve app enablement: %w", err)
	}
	if !tenantApp.Enabled {
		return nil, &Error{Code: CodeAppNotEnabled, Message: fmt.Sprintf("app %s is not enabled for this tenant", appCode)}
	}

	out := &Context{
		Claims:       c.Claims,
		TenantID:     c.TenantID,
		TenantRole:   c.TenantRole,
		MembershipID: c.MembershipID,
		AppCode:      appCode,
	}

	if c.IsTenantAdmin() {
		return out, nil
	}

	grant, err := a.tenants.GetAppPermission(ctx, c.MembershipID, app.ID)
	if errors.Is(err, tenants.ErrGrantNotFound) {
		return nil, &Error{Code: CodeAppPermissionDenied, Message: fmt.Sprintf("no access to app %s", appCode)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve app grant: %w", err)
	}

	out.AppPermissions = grant.Permissions
	return out, nil
}

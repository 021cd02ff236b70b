package tenants

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/entities"
	"github.com/atriumhq/atrium/pkg/storage"
)

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// CreateTenant creates a tenant, bootstraps the creator as its owner
// member, and provisions every core app enabled, in one transaction.
func (s *PostgresService) CreateTenant(ctx context.Context, req *CreateTenantRequest) (*Tenant, error) {
	tenant := &Tenant{
		ID:          uuid.New(),
		Name:        req.Name,
		Slug:        req.Slug,
		Plan:        req.Plan,
		OwnerUserID: req.OwnerUserID,
		IsActive:    true,
	}
	if tenant.Slug == "" {
		tenant.Slug = entities.Slugify(req.Name)
	}
	if tenant.Plan == "" {
		tenant.Plan = PlanFree
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tenants (id, name, slug, plan, owner_user_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		tenant.ID, tenant.Name, tenant.Slug, tenant.Plan, tenant.OwnerUserID, tenant.IsActive).
		Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	// Owner bootstrap: the creator always holds an active owner membership.
	membershipID := uuid.New()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO memberships (id, tenant_id, user_id, role, is_active)
		VALUES ($1, $2, $3, $4, true)
	`, membershipID, tenant.ID, tenant.OwnerUserID, "owner")
	if err != nil {
		return nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	// Core apps start enabled so a fresh tenant is usable immediately;
	// everything else waits for an explicit enable.
	coreApps, err := coreAppIDs(ctx, tx)
	if err != nil {
		return nil, err
	}
	for _, appID := range coreApps {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tenant_apps (id, tenant_id, app_id, enabled)
			VALUES ($1, $2, $3, true)
		`, uuid.New(), tenant.ID, appID)
		if err != nil {
			return nil, fmt.Errorf("failed to provision core app: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tenant creation: %w", err)
	}

	return tenant, nil
}

// GetTenant retrieves a tenant by ID
func (s *PostgresService) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	query := `
		SELECT id, name, slug, plan, owner_user_id, is_active, created_at, updated_at
		FROM tenants
		WHERE id = $1 AND is_active = true
	`
	return s.scanTenant(s.db.QueryRowContext(ctx, query, id))
}

// GetTenantBySlug retrieves a tenant by slug
func (s *PostgresService) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	query := `
		SELECT id, name, slug, plan, owner_user_id, is_active, created_at, updated_at
		FROM tenants
		WHERE slug = $1 AND is_active = true
	`
	return s.scanTenant(s.db.QueryRowContext(ctx, query, slug))
}

func (s *PostgresService) scanTenant(row *sql.Row) (*Tenant, error) {
	tenant := &Tenant{}
	err := row.Scan(
		&tenant.ID, &tenant.Name, &tenant.Slug, &tenant.Plan,
		&tenant.OwnerUserID, &tenant.IsActive, &tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, nil
}

// ListTenants lists all active tenants, newest first
func (s *PostgresService) ListTenants(ctx context.Context) ([]*Tenant, error) {
	query := `
		SELECT id, name, slug, plan, owner_user_id, is_active, created_at, updated_at
		FROM tenants
		WHERE is_active = true
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var result []*Tenant
	for rows.Next() {
		tenant := &Tenant{}
		if err := rows.Scan(
			&tenant.ID, &tenant.Name, &tenant.Slug, &tenant.Plan,
			&tenant.OwnerUserID, &tenant.IsActive, &tenant.CreatedAt, &tenant.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		result = append(result, tenant)
	}
	return result, rows.Err()
}

// AddMember adds a user to a tenant
func (s *PostgresService) AddMember(ctx context.Context, tenantID uuid.UUID, req *AddMemberRequest) (*Membership, error) {
	m := &Membership{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    req.UserID,
		Role:      req.Role,
		IsActive:  true,
		InvitedBy: req.InvitedBy,
	}

	query := `
		INSERT INTO memberships (id, tenant_id, user_id, role, is_active, invited_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING joined_at, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		m.ID, m.TenantID, m.UserID, m.Role, m.IsActive, m.InvitedBy).
		Scan(&m.JoinedAt, &m.CreatedAt)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, ErrDuplicateMembership
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return m, nil
}

// GetMembership retrieves the active membership for (tenant, user)
func (s *PostgresService) GetMembership(ctx context.Context, tenantID, userID uuid.UUID) (*Membership, error) {
	query := `
		SELECT id, tenant_id, user_id, role, is_active, invited_by, joined_at, created_at
		FROM memberships
		WHERE tenant_id = $1 AND user_id = $2 AND is_active = true
	`
	m := &Membership{}
	err := s.db.QueryRowContext(ctx, query, tenantID, userID).Scan(
		&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.IsActive,
		&m.InvitedBy, &m.JoinedAt, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListMembers lists active members of a tenant
func (s *PostgresService) ListMembers(ctx context.Context, tenantID uuid.UUID) ([]*Membership, error) {
	query := `
		SELECT id, tenant_id, user_id, role, is_active, invited_by, joined_at, created_at
		FROM memberships
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var result []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(
			&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.IsActive,
			&m.InvitedBy, &m.JoinedAt, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// UpdateMemberRole changes a member's role
func (s *PostgresService) UpdateMemberRole(ctx context.Context, membershipID uuid.UUID, role string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET role = $1 WHERE id = $2 AND is_active = true`,
		role, membershipID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// DeactivateMember soft-deletes a membership. The row is kept so audit
// history and past grants stay resolvable.
func (s *PostgresService) DeactivateMember(ctx context.Context, membershipID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET is_active = false WHERE id = $1 AND is_active = true`,
		membershipID)
	if err != nil {
		return fmt.Errorf("failed to deactivate member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// CreateApp adds an app to the platform catalog
func (s *PostgresService) CreateApp(ctx context.Context, app *App) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	query := `
		INSERT INTO apps (id, code, name, description, is_core)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		app.ID, app.Code, app.Name, app.Description, app.IsCore).
		Scan(&app.ID, &app.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	return nil
}

// GetApp retrieves an app by ID
func (s *PostgresService) GetApp(ctx context.Context, id uuid.UUID) (*App, error) {
	query := `SELECT id, code, name, description, is_core, created_at FROM apps WHERE id = $1`
	return s.scanApp(s.db.QueryRowContext(ctx, query, id))
}

// GetAppByCode retrieves an app by its code
func (s *PostgresService) GetAppByCode(ctx context.Context, code string) (*App, error) {
	query := `SELECT id, code, name, description, is_core, created_at FROM apps WHERE code = $1`
	return s.scanApp(s.db.QueryRowContext(ctx, query, code))
}

func (s *PostgresService) scanApp(row *sql.Row) (*App, error) {
	app := &App{}
	err := row.Scan(&app.ID, &app.Code, &app.Name, &app.Description, &app.IsCore, &app.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAppNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app: %w", err)
	}
	return app, nil
}

// ListApps lists the platform app catalog
func (s *PostgresService) ListApps(ctx context.Context) ([]*App, error) {
	query := `SELECT id, code, name, description, is_core, created_at FROM apps ORDER BY code ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	var result []*App
	for rows.Next() {
		app := &App{}
		if err := rows.Scan(&app.ID, &app.Code, &app.Name, &app.Description, &app.IsCore, &app.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		result = append(result, app)
	}
	return result, rows.Err()
}

// SetAppEnabled upserts the enablement row for (tenant, app)
func (s *PostgresService) SetAppEnabled(ctx context.Context, tenantID, appID uuid.UUID, enabled bool) (*TenantApp, error) {
	ta := &TenantApp{
		ID:       uuid.New(),
		TenantID: tenantID,
		AppID:    appID,
		Enabled:  enabled,
	}
	query := `
		INSERT INTO tenant_apps (id, tenant_id, app_id, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, app_id) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, ta.ID, ta.TenantID, ta.AppID, ta.Enabled).
		Scan(&ta.ID, &ta.CreatedAt, &ta.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to set app enablement: %w", err)
	}
	return ta, nil
}

// GetTenantApp retrieves the enablement row for (tenant, app)
func (s *PostgresService) GetTenantApp(ctx context.Context, tenantID, appID uuid.UUID) (*TenantApp, error) {
	query := `
		SELECT id, tenant_id, app_id, enabled, created_at, updated_at
		FROM tenant_apps
		WHERE tenant_id = $1 AND app_id = $2
	`
	ta := &TenantApp{}
	err := s.db.QueryRowContext(ctx, query, tenantID, appID).Scan(
		&ta.ID, &ta.TenantID, &ta.AppID, &ta.Enabled, &ta.CreatedAt, &ta.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTenantAppNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant app: %w", err)
	}
	return ta, nil
}

// ListTenantApps lists enablement rows for a tenant
func (s *PostgresService) ListTenantApps(ctx context.Context, tenantID uuid.UUID) ([]*TenantApp, error) {
	query := `
		SELECT id, tenant_id, app_id, enabled, created_at, updated_at
		FROM tenant_apps
		WHERE tenant_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant apps: %w", err)
	}
	defer rows.Close()

	var result []*TenantApp
	for rows.Next() {
		ta := &TenantApp{}
		if err := rows.Scan(&ta.ID, &ta.TenantID, &ta.AppID, &ta.Enabled, &ta.CreatedAt, &ta.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant app: %w", err)
		}
		result = append(result, ta)
	}
	return result, rows.Err()
}

// RemoveTenantApp deletes the enablement row for (tenant, app)
func (s *PostgresService) RemoveTenantApp(ctx context.Context, tenantID, appID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tenant_apps WHERE tenant_id = $1 AND app_id = $2`,
		tenantID, appID)
	if err != nil {
		return fmt.Errorf("failed to remove tenant app: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrTenantAppNotFound
	}
	return nil
}

// GrantAppPermission upserts an explicit grant for (membership, app)
func (s *PostgresService) GrantAppPermission(ctx context.Context, membershipID, appID uuid.UUID, permissions map[string]any, grantedBy *uuid.UUID) (*UserAppPermission, error) {
	grant := &UserAppPermission{
		ID:           uuid.New(),
		MembershipID: membershipID,
		AppID:        appID,
		Permissions:  permissions,
		GrantedBy:    grantedBy,
	}

	permissionsJSON, err := json.Marshal(permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO user_app_permissions (id, membership_id, app_id, permissions, granted_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (membership_id, app_id) DO UPDATE SET permissions = EXCLUDED.permissions, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		grant.ID, grant.MembershipID, grant.AppID, permissionsJSON, grant.GrantedBy).
		Scan(&grant.ID, &grant.CreatedAt, &grant.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to grant app permission: %w", err)
	}
	return grant, nil
}

// GetAppPermission retrieves the explicit grant for (membership, app)
func (s *PostgresService) GetAppPermission(ctx context.Context, membershipID, appID uuid.UUID) (*UserAppPermission, error) {
	query := `
		SELECT id, membership_id, app_id, permissions, granted_by, created_at, updated_at
		FROM user_app_permissions
		WHERE membership_id = $1 AND app_id = $2
	`
	grant := &UserAppPermission{}
	var permissionsJSON []byte
	err := s.db.QueryRowContext(ctx, query, membershipID, appID).Scan(
		&grant.ID, &grant.MembershipID, &grant.AppID, &permissionsJSON,
		&grant.GrantedBy, &grant.CreatedAt, &grant.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app permission: %w", err)
	}

	if len(permissionsJSON) > 0 {
		if err := json.Unmarshal(permissionsJSON, &grant.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}
	return grant, nil
}

// RevokeAppPermission removes the explicit grant for (membership, app)
func (s *PostgresService) RevokeAppPermission(ctx context.Context, membershipID, appID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_app_permissions WHERE membership_id = $1 AND app_id = $2`,
		membershipID, appID)
	if err != nil {
		return fmt.Errorf("failed to revoke app permission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrGrantNotFound
	}
	return nil
}

func coreAppIDs(ctx context.Context, tx *sql.Tx) ([]uuid.UUID, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM apps WHERE is_core = true`)
	if err != nil {
		return nil, fmt.Errorf("failed to list core apps: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan core app: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package roles

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/storage"
)

// Store manages roles in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a new role store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateRole persists a role
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}

	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO roles (id, tenant_id, name, description, permissions, is_system)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		role.ID, role.TenantID, role.Name, role.Description, permissionsJSON, role.IsSystem).
		Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return ErrDuplicateRoleName
		}
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	query := `
		SELECT id, tenant_id, name, description, permissions, is_system, created_at, updated_at
		FROM roles
		WHERE id = $1
	`
	return s.scanRole(s.db.QueryRowContext(ctx, query, id))
}

// GetRoleByName retrieves a role by (tenant, name)
func (s *Store) GetRoleByName(ctx context.Context, tenantID uuid.UUID, name string) (*Role, error) {
	query := `
		SELECT id, tenant_id, name, description, permissions, is_system, created_at, updated_at
		FROM roles
		WHERE tenant_id = $1 AND name = $2
	`
	return s.scanRole(s.db.QueryRowContext(ctx, query, tenantID, name))
}

func (s *Store) scanRole(row *sql.Row) (*Role, error) {
	role := &Role{}
	var permissionsJSON []byte
	err := row.Scan(
		&role.ID, &role.TenantID, &role.Name, &role.Description,
		&permissionsJSON, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if err := json.Unmarshal(permissionsJSON, &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	return role, nil
}

// ListRoles lists all roles for a tenant, system roles first
func (s *Store) ListRoles(ctx context.Context, tenantID uuid.UUID) ([]*Role, error) {
	query := `
		SELECT id, tenant_id, name, description, permissions, is_system, created_at, updated_at
		FROM roles
		WHERE tenant_id = $1
		ORDER BY is_system DESC, name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var result []*Role
	for rows.Next() {
		role := &Role{}
		var permissionsJSON []byte
		if err := rows.Scan(
			&role.ID, &role.TenantID, &role.Name, &role.Description,
			&permissionsJSON, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if err := json.Unmarshal(permissionsJSON, &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
		result = append(result, role)
	}
	return result, rows.Err()
}

// UpdateRole updates a custom role's description and permissions. System
// roles reject mutation.
func (s *Store) UpdateRole(ctx context.Context, id uuid.UUID, description *string, permissions Matrix) error {
	existing, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRoleImmutable
	}

	newDescription := existing.Description
	if description != nil {
		newDescription = *description
	}
	newPermissions := existing.Permissions
	if permissions != nil {
		newPermissions = permissions
	}

	permissionsJSON, err := json.Marshal(newPermissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE roles
		SET description = $1, permissions = $2, updated_at = NOW()
		WHERE id = $3 AND is_system = false
	`, newDescription, permissionsJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// DeleteRole deletes a custom role. System roles reject deletion.
func (s *Store) DeleteRole(ctx context.Context, id uuid.UUID) error {
	existing, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRoleImmutable
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM roles WHERE id = $1 AND is_system = false`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// MigrationsTable tracks applied role store migrations.
const MigrationsTable = "roles_migrations"

// GetMigrations returns all role store migrations
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					permissions JSONB NOT NULL DEFAULT '{}',
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, name)
				);

				CREATE INDEX idx_roles_tenant_id ON roles(tenant_id);
				CREATE INDEX idx_roles_is_system ON roles(is_system);
			`,
		},
	}
}

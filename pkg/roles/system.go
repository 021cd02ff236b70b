package roles

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Built-in role names. Every tenant gets these seeded at creation.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// fullAccess grants every action on an entity.
func fullAccess() EntityPermissions {
	return EntityPermissions{Read: true, Write: WriteAll, Delete: true}
}

// SystemMatrices returns the fixed permission matrices for built-in roles.
// The wildcard entity "*" applies when no entity-specific entry exists;
// resolution of the wildcard is the caller's concern via ResolveEntity.
func SystemMatrices() map[string]Matrix {
	return map[string]Matrix{
		RoleOwner: {
			"*": fullAccess(),
		},
		RoleAdmin: {
			"*": fullAccess(),
		},
		RoleMember: {
			"*": {Read: true, Write: WriteOwn, Delete: false},
		},
		RoleViewer: {
			"*": {Read: true, Write: WriteNone, Delete: false},
		},
	}
}

// ResolveEntity returns the matrix entry for an entity, falling back to the
// wildcard entry when present. Used when evaluating system-role matrices
// against tenant-defined entities that cannot be enumerated up front.
func ResolveEntity(matrix Matrix, entity string) (EntityPermissions, bool) {
	if perms, ok := matrix[entity]; ok {
		return perms, true
	}
	perms, ok := matrix["*"]
	return perms, ok
}

// EffectiveMatrix flattens a matrix for a specific entity so the standard
// checker functions apply: entity-specific entry wins, wildcard fills in.
func EffectiveMatrix(matrix Matrix, entity string) Matrix {
	if _, ok := matrix[entity]; ok {
		return matrix
	}
	if wildcard, ok := matrix["*"]; ok {
		return Matrix{entity: wildcard}
	}
	return matrix
}

// SeedSystemRoles creates the built-in roles for a tenant. Existing roles
// are left untouched, so the call is safe to repeat.
func SeedSystemRoles(ctx context.Context, store *Store, tenantID uuid.UUID) error {
	for _, name := range []string{RoleOwner, RoleAdmin, RoleMember, RoleViewer} {
		matrix := SystemMatrices()[name]

		existing, err := store.GetRoleByName(ctx, tenantID, name)
		if err == nil && existing != nil {
			continue
		}
		if err != nil && err != ErrRoleNotFound {
			return fmt.Errorf("failed to check role %s: %w", name, err)
		}

		role := &Role{
			ID:          uuid.New(),
			TenantID:    tenantID,
			Name:        name,
			Permissions: matrix,
			IsSystem:    true,
		}
		if err := store.CreateRole(ctx, role); err != nil {
			return fmt.Errorf("failed to seed system role %s: %w", name, err)
		}
	}
	return nil
}

package roles

import "errors"

var (
	// ErrRoleNotFound indicates the role does not exist.
	ErrRoleNotFound = errors.New("role not found")

	// ErrDuplicateRoleName indicates a (tenant, name) collision.
	ErrDuplicateRoleName = errors.New("role name already in use")

	// ErrSystemRoleImmutable indicates an attempt to mutate a system role.
	ErrSystemRoleImmutable = errors.New("system roles cannot be modified or deleted")
)

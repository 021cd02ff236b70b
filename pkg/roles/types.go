package roles

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is a permission action within an entity matrix.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// WriteMode is the tri-state write permission: denied, allowed, or allowed
// only on records the acting user owns. JSON-encoded as false, true, "own".
type WriteMode int

const (
	WriteNone WriteMode = iota
	WriteAll
	WriteOwn
)

func (w WriteMode) String() string {
	switch w {
	case WriteAll:
		return "all"
	case WriteOwn:
		return "own"
	default:
		return "none"
	}
}

// MarshalJSON encodes WriteNone as false, WriteAll as true, WriteOwn as "own"
func (w WriteMode) MarshalJSON() ([]byte, error) {
	switch w {
	case WriteAll:
		return []byte("true"), nil
	case WriteOwn:
		return []byte(`"own"`), nil
	default:
		return []byte("false"), nil
	}
}

// UnmarshalJSON accepts false, true, or "own"
func (w *WriteMode) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*w = WriteAll
		} else {
			*w = WriteNone
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "own" {
			*w = WriteOwn
			return nil
		}
		return fmt.Errorf("invalid write mode %q: must be true, false, or \"own\"", s)
	}

	return fmt.Errorf("invalid write mode %s: must be true, false, or \"own\"", string(data))
}

// EntityPermissions is the per-entity action matrix. Fields maps field
// names to visibility: only an explicit false hides a field, everything
// else passes through.
type EntityPermissions struct {
	Read   bool            `json:"read"`
	Write  WriteMode       `json:"write"`
	Delete bool            `json:"delete"`
	Fields map[string]bool `json:"fields,omitempty"`
}

// Matrix maps entity names to their action matrices.
type Matrix map[string]EntityPermissions

// Role is a named permission matrix scoped to a tenant. System roles are
// seeded per tenant and immutable.
type Role struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions Matrix    `json:"permissions"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRoleRequest is the payload for creating a custom role.
type CreateRoleRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Permissions json.RawMessage `json:"permissions"`
}

// UpdateRoleRequest is the payload for updating a custom role.
type UpdateRoleRequest struct {
	Description *string         `json:"description,omitempty"`
	Permissions json.RawMessage `json:"permissions,omitempty"`
}

// Package workflows stores tenant automation workflows and dashboards,
// both typically materialized from an industry template.
package workflows

import (
	"time"

	"github.com/google/uuid"
)

// Action is one step of a workflow, executed in SortOrder.
type Action struct {
	Type      string         `json:"type"`
	SortOrder int            `json:"sort_order"`
	Config    map[string]any `json:"config,omitempty"`
}

// Workflow is a tenant automation bound to an entity module. ModuleSlug
// references the entity definition by slug; resolution happens at
// evaluation time, so instantiation never rewrites references to IDs.
type Workflow struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Name       string    `json:"name"`
	ModuleSlug string    `json:"module_slug"`
	Trigger    string    `json:"trigger"`
	Actions    []Action  `json:"actions"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Widget is one tile of a dashboard. ModuleSlug references an entity
// definition by slug, same contract as workflows.
type Widget struct {
	Type       string         `json:"type"`
	Title      string         `json:"title,omitempty"`
	ModuleSlug string         `json:"module_slug,omitempty"`
	SortOrder  int            `json:"sort_order"`
	Config     map[string]any `json:"config,omitempty"`
}

// Dashboard is a role-scoped widget layout.
type Dashboard struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Widgets   []Widget  `json:"widgets"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package workflows

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/storage"
)

// ErrWorkflowNotFound indicates the workflow does not exist.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrDashboardNotFound indicates the dashboard does not exist.
var ErrDashboardNotFound = errors.New("dashboard not found")

// Store manages workflows and dashboards in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a new workflow store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertWorkflowTx creates or refreshes a workflow inside the caller's
// transaction, keyed on (tenant, name).
func UpsertWorkflowTx(ctx context.Context, tx *sql.Tx, wf *Workflow) error {
	if wf.ID == uuid.Nil {
		wf.ID = uuid.New()
	}

	actionsJSON, err := json.Marshal(wf.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	query := `
		INSERT INTO workflows (id, tenant_id, name, module_slug, trigger, actions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, name) DO UPDATE
		SET module_slug = EXCLUDED.module_slug, trigger = EXCLUDED.trigger,
		    actions = EXCLUDED.actions, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		wf.ID, wf.TenantID, wf.Name, wf.ModuleSlug, wf.Trigger, actionsJSON).
		Scan(&wf.ID, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert workflow %s: %w", wf.Name, err)
	}
	return nil
}

// UpsertDashboardTx creates or refreshes a dashboard inside the caller's
// transaction, keyed on (tenant, name).
func UpsertDashboardTx(ctx context.Context, tx *sql.Tx, d *Dashboard) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	widgetsJSON, err := json.Marshal(d.Widgets)
	if err != nil {
		return fmt.Errorf("failed to marshal widgets: %w", err)
	}

	query := `
		INSERT INTO dashboards (id, tenant_id, name, role, widgets)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, name) DO UPDATE
		SET role = EXCLUDED.role, widgets = EXCLUDED.widgets, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		d.ID, d.TenantID, d.Name, d.Role, widgetsJSON).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert dashboard %s: %w", d.Name, err)
	}
	return nil
}

// ListWorkflows lists a tenant's workflows ordered by name
func (s *Store) ListWorkflows(ctx context.Context, tenantID uuid.UUID) ([]*Workflow, error) {
	query := `
		SELECT id, tenant_id, name, module_slug, trigger, actions, created_at, updated_at
		FROM workflows
		WHERE tenant_id = $1
		ORDER BY name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var result []*Workflow
	for rows.Next() {
		wf := &Workflow{}
		var actionsJSON []byte
		if err := rows.Scan(
			&wf.ID, &wf.TenantID, &wf.Name, &wf.ModuleSlug, &wf.Trigger,
			&actionsJSON, &wf.CreatedAt, &wf.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		if err := json.Unmarshal(actionsJSON, &wf.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
		}
		result = append(result, wf)
	}
	return result, rows.Err()
}

// GetWorkflow retrieves a workflow by (tenant, name)
func (s *Store) GetWorkflow(ctx context.Context, tenantID uuid.UUID, name string) (*Workflow, error) {
	query := `
		SELECT id, tenant_id, name, module_slug, trigger, actions, created_at, updated_at
		FROM workflows
		WHERE tenant_id = $1 AND name = $2
	`
	wf := &Workflow{}
	var actionsJSON []byte
	err := s.db.QueryRowContext(ctx, query, tenantID, name).Scan(
		&wf.ID, &wf.TenantID, &wf.Name, &wf.ModuleSlug, &wf.Trigger,
		&actionsJSON, &wf.CreatedAt, &wf.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if err := json.Unmarshal(actionsJSON, &wf.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}
	return wf, nil
}

// ListDashboards lists a tenant's dashboards ordered by name
func (s *Store) ListDashboards(ctx context.Context, tenantID uuid.UUID) ([]*Dashboard, error) {
	query := `
		SELECT id, tenant_id, name, role, widgets, created_at, updated_at
		FROM dashboards
		WHERE tenant_id = $1
		ORDER BY name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	defer rows.Close()

	var result []*Dashboard
	for rows.Next() {
		d := &Dashboard{}
		var widgetsJSON []byte
		if err := rows.Scan(
			&d.ID, &d.TenantID, &d.Name, &d.Role, &widgetsJSON, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dashboard: %w", err)
		}
		if err := json.Unmarshal(widgetsJSON, &d.Widgets); err != nil {
			return nil, fmt.Errorf("failed to unmarshal widgets: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// MigrationsTable tracks applied workflow store migrations.
const MigrationsTable = "workflows_migrations"

// GetMigrations returns all workflow store migrations
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create workflows table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workflows (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					module_slug VARCHAR(255) NOT NULL,
					trigger VARCHAR(100) NOT NULL,
					actions JSONB NOT NULL DEFAULT '[]',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, name)
				);

				CREATE INDEX idx_workflows_tenant_id ON workflows(tenant_id);
				CREATE INDEX idx_workflows_module_slug ON workflows(module_slug);
			`,
		},
		{
			Version:     2,
			Description: "Create dashboards table",
			SQL: `
				CREATE TABLE IF NOT EXISTS dashboards (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					role VARCHAR(255) NOT NULL,
					widgets JSONB NOT NULL DEFAULT '[]',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, name)
				);

				CREATE INDEX idx_dashboards_tenant_id ON dashboards(tenant_id);
				CREATE INDEX idx_dashboards_role ON dashboards(role);
			`,
		},
	}
}

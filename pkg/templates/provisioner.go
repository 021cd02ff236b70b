package templates

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/entities"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/workflows"
)

// InstantiateSummary reports what a template instantiation materialized.
type InstantiateSummary struct {
	Template   string   `json:"template"`
	Modules    []string `json:"modules"`
	Workflows  []string `json:"workflows"`
	Dashboards []string `json:"dashboards"`
}

// Provisioner instantiates template blueprints into tenants. Each run is
// a single transaction; re-running the same template refreshes what it
// created instead of failing or duplicating.
type Provisioner struct {
	db       *sql.DB
	registry *Registry
	log      *observability.Logger
	metrics  *observability.Metrics
	audit    audit.Logger
}

// NewProvisioner creates a provisioner. metrics may be nil; auditLog may
// be nil to disable audit events.
func NewProvisioner(db *sql.DB, registry *Registry, log *observability.Logger, metrics *observability.Metrics, auditLog audit.Logger) *Provisioner {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Provisioner{
		db:       db,
		registry: registry,
		log:      log,
		metrics:  metrics,
		audit:    auditLog,
	}
}

// Instantiate materializes the template into the tenant: entity modules
// first, then workflows and dashboards referencing them by slug. All
// writes happen in one transaction; any failure rolls back everything.
func (p *Provisioner) Instantiate(ctx context.Context, tenantID uuid.UUID, templateSlug string, actorID uuid.UUID) (*InstantiateSummary, error) {
	start := time.Now()

	bp, err := p.registry.Get(templateSlug)
	if err != nil {
		p.observe(templateSlug, "not_found", start)
		return nil, err
	}

	summary, err := p.apply(ctx, tenantID, bp)
	if err != nil {
		p.observe(templateSlug, "error", start)
		p.log.WithError(err).WithFields(map[string]any{
			"template":  templateSlug,
			"tenant_id": tenantID,
		}).Error("template instantiation failed")
		return nil, err
	}

	p.observe(templateSlug, "ok", start)
	p.log.WithFields(map[string]any{
		"template":   templateSlug,
		"tenant_id":  tenantID,
		"modules":    len(summary.Modules),
		"workflows":  len(summary.Workflows),
		"dashboards": len(summary.Dashboards),
	}).Info("template instantiated")

	if err := p.audit.Record(ctx, &audit.Event{
		TenantID: &tenantID,
		UserID:   &actorID,
		Action:   "template.instantiate",
		Entity:   "template",
		EntityID: templateSlug,
		NewValue: map[string]any{
			"modules":    summary.Modules,
			"workflows":  summary.Workflows,
			"dashboards": summary.Dashboards,
		},
	}); err != nil {
		p.log.WithError(err).Warn("failed to audit template instantiation")
	}

	return summary, nil
}

func (p *Provisioner) apply(ctx context.Context, tenantID uuid.UUID, bp *Blueprint) (*InstantiateSummary, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	summary := &InstantiateSummary{Template: bp.Slug}

	for i := range bp.Modules {
		m := &bp.Modules[i]
		def, err := entities.UpsertDefinitionTx(ctx, tx, tenantID, m.DefinitionRequest())
		if err != nil {
			return nil, fmt.Errorf("failed to materialize module %s: %w", m.Name, err)
		}
		summary.Modules = append(summary.Modules, def.Slug)
	}

	for _, wfbp := range bp.Workflows {
		moduleSlug, ok := bp.moduleSlug(wfbp.Module)
		if !ok {
			return nil, fmt.Errorf("workflow %s references unknown module %s", wfbp.Name, wfbp.Module)
		}

		wf := &workflows.Workflow{
			TenantID:   tenantID,
			Name:       wfbp.Name,
			ModuleSlug: moduleSlug,
			Trigger:    wfbp.Trigger,
		}
		for i, a := range wfbp.Actions {
			wf.Actions = append(wf.Actions, workflows.Action{
				Type:      a.Type,
				SortOrder: i,
				Config:    a.Config,
			})
		}
		if err := workflows.UpsertWorkflowTx(ctx, tx, wf); err != nil {
			return nil, err
		}
		summary.Workflows = append(summary.Workflows, wf.Name)
	}

	for _, dbp := range bp.Dashboards {
		d := &workflows.Dashboard{
			TenantID: tenantID,
			Name:     dbp.Name,
			Role:     dbp.Role,
		}
		for i, w := range dbp.Widgets {
			widget := workflows.Widget{
				Type:      w.Type,
				Title:     w.Title,
				SortOrder: i,
				Config:    w.Config,
			}
			if w.Module != "" {
				slug, ok := bp.moduleSlug(w.Module)
				if !ok {
					return nil, fmt.Errorf("dashboard %s references unknown module %s", dbp.Name, w.Module)
				}
				widget.ModuleSlug = slug
			}
			d.Widgets = append(d.Widgets, widget)
		}
		if err := workflows.UpsertDashboardTx(ctx, tx, d); err != nil {
			return nil, err
		}
		summary.Dashboards = append(summary.Dashboards, d.Name)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit instantiation: %w", err)
	}
	return summary, nil
}

func (p *Provisioner) observe(template, outcome string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.InstantiationsTotal.WithLabelValues(template, outcome).Inc()
	if outcome == "ok" {
		p.metrics.InstantiationDuration.Observe(time.Since(start).Seconds())
	}
}

// Package templates loads industry template blueprints from YAML and
// instantiates them into tenants: entity modules, workflows, and
// dashboards materialized in a single transaction.
package templates

import (
	"fmt"
	"strings"

	"github.com/atriumhq/atrium/pkg/entities"
)

// FieldBlueprint describes one field of a module in a template.
type FieldBlueprint struct {
	Name     string   `yaml:"name"`
	Key      string   `yaml:"key,omitempty"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required,omitempty"`
	Options  []string `yaml:"options,omitempty"`
}

// ModuleBlueprint describes one entity definition in a template.
type ModuleBlueprint struct {
	Name        string           `yaml:"name"`
	Icon        string           `yaml:"icon,omitempty"`
	Description string           `yaml:"description,omitempty"`
	Fields      []FieldBlueprint `yaml:"fields"`
}

// Slug is the entity slug the module materializes to, derived from its name.
func (m *ModuleBlueprint) Slug() string {
	return entities.Slugify(m.Name)
}

// DefinitionRequest converts the module into an entity create request.
func (m *ModuleBlueprint) DefinitionRequest() *entities.CreateDefinitionRequest {
	req := &entities.CreateDefinitionRequest{
		Name:        m.Name,
		Icon:        m.Icon,
		Description: m.Description,
	}
	for _, f := range m.Fields {
		req.Fields = append(req.Fields, entities.FieldSpec{
			Name:       f.Name,
			Key:        f.Key,
			Type:       entities.FieldType(f.Type),
			IsRequired: f.Required,
			Options:    f.Options,
		})
	}
	return req
}

// ActionBlueprint is one workflow step.
type ActionBlueprint struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config,omitempty"`
}

// WorkflowBlueprint describes a workflow in a template. Module names the
// blueprint module it is bound to, by module name or slug.
type WorkflowBlueprint struct {
	Name    string            `yaml:"name"`
	Module  string            `yaml:"module"`
	Trigger string            `yaml:"trigger"`
	Actions []ActionBlueprint `yaml:"actions"`
}

// WidgetBlueprint is one dashboard tile.
type WidgetBlueprint struct {
	Type   string         `yaml:"type"`
	Title  string         `yaml:"title,omitempty"`
	Module string         `yaml:"module,omitempty"`
	Config map[string]any `yaml:"config,omitempty"`
}

// DashboardBlueprint describes a role-scoped dashboard in a template.
type DashboardBlueprint struct {
	Name    string            `yaml:"name"`
	Role    string            `yaml:"role"`
	Widgets []WidgetBlueprint `yaml:"widgets"`
}

// Blueprint is a full industry template as authored in YAML.
type Blueprint struct {
	Slug        string               `yaml:"slug"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description,omitempty"`
	Industry    string               `yaml:"industry,omitempty"`
	Modules     []ModuleBlueprint    `yaml:"modules"`
	Workflows   []WorkflowBlueprint  `yaml:"workflows,omitempty"`
	Dashboards  []DashboardBlueprint `yaml:"dashboards,omitempty"`
}

// moduleSlug resolves a workflow or widget module reference, which may be
// the module's name or its slug, to the canonical slug.
func (b *Blueprint) moduleSlug(ref string) (string, bool) {
	want := entities.Slugify(ref)
	for i := range b.Modules {
		if b.Modules[i].Slug() == want {
			return want, true
		}
	}
	return "", false
}

// Validate checks the blueprint is internally consistent: well-formed
// modules and all workflow and widget module references resolving to a
// module declared in the same blueprint.
func (b *Blueprint) Validate() error {
	if strings.TrimSpace(b.Slug) == "" {
		return fmt.Errorf("template slug is required")
	}
	if b.Slug != entities.Slugify(b.Slug) {
		return fmt.Errorf("template slug %q is not in slug form", b.Slug)
	}
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("template %s: name is required", b.Slug)
	}
	if len(b.Modules) == 0 {
		return fmt.Errorf("template %s: at least one module is required", b.Slug)
	}

	seen := make(map[string]bool, len(b.Modules))
	for i := range b.Modules {
		m := &b.Modules[i]
		slug := m.Slug()
		if seen[slug] {
			return fmt.Errorf("template %s: duplicate module %q", b.Slug, slug)
		}
		seen[slug] = true

		if err := entities.ValidateDefinitionRequest(m.DefinitionRequest()); err != nil {
			return fmt.Errorf("template %s: module %q: %w", b.Slug, m.Name, err)
		}
	}

	for _, wf := range b.Workflows {
		if strings.TrimSpace(wf.Name) == "" {
			return fmt.Errorf("template %s: workflow name is required", b.Slug)
		}
		if strings.TrimSpace(wf.Trigger) == "" {
			return fmt.Errorf("template %s: workflow %q: trigger is required", b.Slug, wf.Name)
		}
		if _, ok := b.moduleSlug(wf.Module); !ok {
			return fmt.Errorf("template %s: workflow %q references unknown module %q", b.Slug, wf.Name, wf.Module)
		}
	}

	for _, d := range b.Dashboards {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("template %s: dashboard name is required", b.Slug)
		}
		if strings.TrimSpace(d.Role) == "" {
			return fmt.Errorf("template %s: dashboard %q: role is required", b.Slug, d.Name)
		}
		for _, w := range d.Widgets {
			if w.Module == "" {
				continue
			}
			if _, ok := b.moduleSlug(w.Module); !ok {
				return fmt.Errorf("template %s: dashboard %q references unknown module %q", b.Slug, d.Name, w.Module)
			}
		}
	}

	return nil
}

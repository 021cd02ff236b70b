package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const lawFirmYAML = `
slug: law-firm
name: Law Firm
description: Practice management for small law firms
industry: legal
modules:
  - name: Clients
    icon: briefcase
    fields:
      - name: Name
        type: text
        required: true
      - name: Email
        type: email
      - name: Matter Type
        type: select
        options: [litigation, corporate, estate]
  - name: Matters
    fields:
      - name: Title
        type: text
        required: true
      - name: Opened On
        type: date
workflows:
  - name: New Client Welcome
    module: Clients
    trigger: record.created
    actions:
      - type: send_email
        config:
          template: welcome
      - type: create_task
dashboards:
  - name: Partner Overview
    role: admin
    widgets:
      - type: record_count
        module: Clients
      - type: recent_records
        module: Matters
`

func parseLawFirm(t *testing.T) *Blueprint {
	t.Helper()
	bp := &Blueprint{}
	require.NoError(t, yaml.Unmarshal([]byte(lawFirmYAML), bp))
	return bp
}

func TestBlueprintParse(t *testing.T) {
	bp := parseLawFirm(t)

	assert.Equal(t, "law-firm", bp.Slug)
	require.Len(t, bp.Modules, 2)
	assert.Equal(t, "clients", bp.Modules[0].Slug())
	assert.Equal(t, "matters", bp.Modules[1].Slug())
	require.Len(t, bp.Workflows, 1)
	assert.Len(t, bp.Workflows[0].Actions, 2)
	require.Len(t, bp.Dashboards, 1)
	assert.Equal(t, "admin", bp.Dashboards[0].Role)
}

func TestBlueprintValidate(t *testing.T) {
	assert.NoError(t, parseLawFirm(t).Validate())

	t.Run("slug not slugified", func(t *testing.T) {
		bp := parseLawFirm(t)
		bp.Slug = "Law Firm"
		assert.Error(t, bp.Validate())
	})

	t.Run("no modules", func(t *testing.T) {
		bp := parseLawFirm(t)
		bp.Modules = nil
		assert.Error(t, bp.Validate())
	})

	t.Run("duplicate module slug", func(t *testing.T) {
		bp := parseLawFirm(t)
		bp.Modules = append(bp.Modules, ModuleBlueprint{
			Name:   "clients",
			Fields: []FieldBlueprint{{Name: "Name", Type: "text"}},
		})
		assert.Error(t, bp.Validate())
	})

	t.Run("bad field type", func(t *testing.T) {
		bp := parseLawFirm(t)
		bp.Modules[0].Fields[0].Type = "json"
		assert.Error(t, bp.Validate())
	})

	t.Run("workflow references unknown module", func(t *testing.T) {
		bp := parseLawFirm(t)
		bp.Workflows[0].Module = "Invoices"
		assert.ErrorContains(t, bp.Validate(), "unknown module")
	})

	t.Run("widget references unknown module", func(t *testing.T) {
		bp := parseLawFirm(t)
		bp.Dashboards[0].Widgets[0].Module = "Invoices"
		assert.ErrorContains(t, bp.Validate(), "unknown module")
	})

	t.Run("dashboard without role", func(t *testing.T) {
		bp := parseLawFirm(t)
		bp.Dashboards[0].Role = ""
		assert.Error(t, bp.Validate())
	})
}

func TestModuleReferencesResolveByNameOrSlug(t *testing.T) {
	bp := parseLawFirm(t)

	slug, ok := bp.moduleSlug("Clients")
	require.True(t, ok)
	assert.Equal(t, "clients", slug)

	slug, ok = bp.moduleSlug("clients")
	require.True(t, ok)
	assert.Equal(t, "clients", slug)

	_, ok = bp.moduleSlug("invoices")
	assert.False(t, ok)
}

func TestDefinitionRequestConversion(t *testing.T) {
	bp := parseLawFirm(t)
	req := bp.Modules[0].DefinitionRequest()

	assert.Equal(t, "Clients", req.Name)
	require.Len(t, req.Fields, 3)
	assert.True(t, req.Fields[0].IsRequired)
	assert.Equal(t, []string{"litigation", "corporate", "estate"}, req.Fields[2].Options)
}

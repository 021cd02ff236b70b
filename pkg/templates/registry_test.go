package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/pkg/observability"
)

func writeBlueprint(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestRegistry(t *testing.T, dir string) *Registry {
	t.Helper()
	reg, err := NewRegistry(dir, 16, observability.NewLogger(observability.ErrorLevel, nil), nil)
	require.NoError(t, err)
	return reg
}

func TestRegistryLoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeBlueprint(t, dir, "law-firm.yaml", lawFirmYAML)
	writeBlueprint(t, dir, "notes.txt", "not a blueprint")

	reg := newTestRegistry(t, dir)

	bp, err := reg.Get("law-firm")
	require.NoError(t, err)
	assert.Equal(t, "Law Firm", bp.Name)
}

func TestRegistryGetNotFound(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir())

	_, err := reg.Get("missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRegistrySkipsInvalidBlueprints(t *testing.T) {
	dir := t.TempDir()
	writeBlueprint(t, dir, "law-firm.yaml", lawFirmYAML)
	writeBlueprint(t, dir, "broken.yaml", "slug: broken\nname: Broken\nmodules: []\n")

	reg := newTestRegistry(t, dir)

	list, err := reg.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "law-firm", list[0].Slug)
}

func TestRegistryList(t *testing.T) {
	dir := t.TempDir()
	writeBlueprint(t, dir, "law-firm.yaml", lawFirmYAML)

	reg := newTestRegistry(t, dir)

	list, err := reg.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Modules)
	assert.Equal(t, 1, list[0].Workflows)
	assert.Equal(t, 1, list[0].Dashboards)
}

func TestRegistryCachesBlueprints(t *testing.T) {
	dir := t.TempDir()
	writeBlueprint(t, dir, "law-firm.yaml", lawFirmYAML)

	reg := newTestRegistry(t, dir)

	first, err := reg.Get("law-firm")
	require.NoError(t, err)

	// delete the file; the cached copy still serves
	require.NoError(t, os.Remove(filepath.Join(dir, "law-firm.yaml")))

	second, err := reg.Get("law-firm")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRegistryReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeBlueprint(t, dir, "law-firm.yaml", lawFirmYAML)

	reg := newTestRegistry(t, dir)
	_, err := reg.Get("law-firm")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "law-firm.yaml")))
	require.NoError(t, reg.Reload())

	_, err = reg.Get("law-firm")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRegistrySlugDefaultsToFilename(t *testing.T) {
	dir := t.TempDir()
	writeBlueprint(t, dir, "dental-clinic.yaml", `
name: Dental Clinic
modules:
  - name: Patients
    fields:
      - name: Name
        type: text
        required: true
`)

	reg := newTestRegistry(t, dir)

	bp, err := reg.Get("dental-clinic")
	require.NoError(t, err)
	assert.Equal(t, "dental-clinic", bp.Slug)
}

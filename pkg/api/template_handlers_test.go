package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/pkg/authz"
	"github.com/atriumhq/atrium/pkg/identity"
	"github.com/atriumhq/atrium/pkg/templates"
	"github.com/atriumhq/atrium/pkg/workflows"
)

const dentalClinicYAML = `
name: Dental Clinic
description: Patient and appointment tracking for dental practices
industry: healthcare
modules:
  - name: Patients
    fields:
      - name: Name
        type: text
        required: true
      - name: Phone
        type: phone
  - name: Appointments
    fields:
      - name: Scheduled At
        type: date
        required: true
workflows:
  - name: Appointment Reminder
    module: Appointments
    trigger: record.created
    actions:
      - type: send_email
        config:
          template: reminder
dashboards:
  - name: Front Desk
    role: member
    widgets:
      - type: record_list
        title: Today's Appointments
        module: Appointments
`

func newTemplateFixtures(t *testing.T) (*templates.Registry, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dental-clinic.yaml"), []byte(dentalClinicYAML), 0o644))

	reg, err := templates.NewRegistry(dir, 16, testLogger(), nil)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return reg, db, mock
}

func catalogRouter(t *testing.T, reg *templates.Registry) *mux.Router {
	t.Helper()
	h := NewTemplateHandlers(reg, nil, nil, testLogger())
	router := mux.NewRouter()
	sub := router.PathPrefix("/api/v1").Subrouter()
	h.RegisterCatalogRoutes(sub)
	return router
}

func factoryRouter(t *testing.T, reg *templates.Registry, db *sql.DB, workflowDB *sql.DB, claims *identity.Claims, c *authz.Context, sink *auditSink) *mux.Router {
	t.Helper()
	provisioner := templates.NewProvisioner(db, reg, testLogger(), nil, sink)
	var workflowStore *workflows.Store
	if workflowDB != nil {
		workflowStore = workflows.NewStore(workflowDB)
	}
	h := NewTemplateHandlers(reg, provisioner, workflowStore, testLogger())
	router := mux.NewRouter()
	sub := router.PathPrefix("/api/v1/tenants/{tenantId}").Subrouter()
	sub.Use(injectAuthz(claims, c))
	h.RegisterTenantRoutes(sub)
	return router
}

func TestListTemplates(t *testing.T) {
	reg, _, _ := newTemplateFixtures(t)
	router := catalogRouter(t, reg)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []templates.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "dental-clinic", list[0].Slug)
	assert.Equal(t, 2, list[0].Modules)
	assert.Equal(t, 1, list[0].Workflows)
}

func TestGetTemplate(t *testing.T) {
	reg, _, _ := newTemplateFixtures(t)
	router := catalogRouter(t, reg)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/templates/dental-clinic", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var bp templates.Blueprint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bp))
	assert.Equal(t, "Dental Clinic", bp.Name)
	require.Len(t, bp.Modules, 2)
	assert.Equal(t, "Patients", bp.Modules[0].Name)
}

func TestGetTemplateNotFound(t *testing.T) {
	reg, _, _ := newTemplateFixtures(t)
	router := catalogRouter(t, reg)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/templates/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstantiateAdminOnly(t *testing.T) {
	reg, db, _ := newTemplateFixtures(t)
	claims := &identity.Claims{SubjectID: uuid.New()}
	tenantID := uuid.New()

	member := memberContext(claims, tenantID, "member")
	router := factoryRouter(t, reg, db, nil, claims, member, &auditSink{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/factory/instantiate",
		jsonBody(t, map[string]any{"template_slug": "dental-clinic"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInstantiateUnknownTemplate(t *testing.T) {
	reg, db, _ := newTemplateFixtures(t)
	claims := &identity.Claims{SubjectID: uuid.New()}
	tenantID := uuid.New()

	admin := memberContext(claims, tenantID, "admin")
	router := factoryRouter(t, reg, db, nil, claims, admin, &auditSink{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/factory/instantiate",
		jsonBody(t, map[string]any{"template_slug": "ghost"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstantiateTemplate(t *testing.T) {
	reg, db, mock := newTemplateFixtures(t)
	claims := &identity.Claims{SubjectID: uuid.New()}
	tenantID := uuid.New()
	sink := &auditSink{}
	now := time.Now()

	mock.ExpectBegin()
	for _, fieldCount := range []int{2, 1} { // Patients, Appointments
		mock.ExpectQuery("INSERT INTO entity_definitions").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(uuid.New(), now, now))
		mock.ExpectExec("DELETE FROM entity_fields").
			WillReturnResult(sqlmock.NewResult(0, 0))
		for i := 0; i < fieldCount; i++ {
			mock.ExpectExec("INSERT INTO entity_fields").
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
	}
	mock.ExpectQuery("INSERT INTO workflows").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(uuid.New(), now, now))
	mock.ExpectQuery("INSERT INTO dashboards").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(uuid.New(), now, now))
	mock.ExpectCommit()

	admin := memberContext(claims, tenantID, "admin")
	router := factoryRouter(t, reg, db, nil, claims, admin, sink)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/factory/instantiate",
		jsonBody(t, map[string]any{"template_slug": "dental-clinic"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())

	var summary templates.InstantiateSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "dental-clinic", summary.Template)
	assert.Equal(t, []string{"patients", "appointments"}, summary.Modules)

	require.Len(t, sink.events, 1)
	assert.Equal(t, "template.instantiate", sink.events[0].Action)
}

func TestListTenantWorkflows(t *testing.T) {
	reg, db, _ := newTemplateFixtures(t)
	workflowDB, workflowMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { workflowDB.Close() })

	claims := &identity.Claims{SubjectID: uuid.New()}
	tenantID := uuid.New()
	now := time.Now()

	workflowMock.ExpectQuery("SELECT (.+) FROM workflows").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "name", "module_slug", "trigger", "actions", "created_at", "updated_at",
		}).AddRow(uuid.New(), tenantID, "Appointment Reminder", "appointments", "record.created",
			[]byte(`[{"type":"send_email","sort_order":0}]`), now, now))

	member := memberContext(claims, tenantID, "member")
	router := factoryRouter(t, reg, db, workflowDB, claims, member, &auditSink{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list []workflows.Workflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "appointments", list[0].ModuleSlug)
}

package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/authz"
	"github.com/atriumhq/atrium/pkg/identity"
)

func auditRouter(t *testing.T, store *audit.DBLogger, claims *identity.Claims, c *authz.Context) *mux.Router {
	t.Helper()
	h := NewAuditHandlers(store, testLogger())
	router := mux.NewRouter()
	sub := router.PathPrefix("/api/v1/tenants/{tenantId}").Subrouter()
	sub.Use(injectAuthz(claims, c))
	h.RegisterRoutes(sub)
	return router
}

func TestListAuditEventsAdminOnly(t *testing.T) {
	claims := &identity.Claims{SubjectID: uuid.New()}
	tenantID := uuid.New()

	member := memberContext(claims, tenantID, "member")
	router := auditRouter(t, nil, claims, member)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/audit", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListAuditEventsDisabled(t *testing.T) {
	claims := &identity.Claims{SubjectID: uuid.New()}
	tenantID := uuid.New()

	admin := memberContext(claims, tenantID, "admin")
	router := auditRouter(t, nil, claims, admin)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/audit", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListAuditEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := audit.NewDBLogger(db, testLogger(), nil)

	claims := &identity.Claims{SubjectID: uuid.New()}
	tenantID := uuid.New()
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM audit_events").
		WithArgs(tenantID, "role.create", 25).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "user_id", "action", "entity", "entity_id",
			"old_value", "new_value", "request_id", "created_at",
		}).AddRow(uuid.New(), tenantID, userID, "role.create", "role", "paralegal",
			nil, []byte(`{"name":"paralegal"}`), "req-42", now))

	admin := memberContext(claims, tenantID, "admin")
	router := auditRouter(t, store, claims, admin)

	rec := doRequest(t, router, http.MethodGet,
		"/api/v1/tenants/"+tenantID.String()+"/audit?action=role.create&limit=25", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())

	var events []audit.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "role.create", events[0].Action)
	assert.Equal(t, "paralegal", events[0].NewValue["name"])
}

func TestListAuditEventsBadLimit(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := audit.NewDBLogger(db, testLogger(), nil)

	claims := &identity.Claims{SubjectID: uuid.New()}
	tenantID := uuid.New()

	admin := memberContext(claims, tenantID, "admin")
	router := auditRouter(t, store, claims, admin)

	rec := doRequest(t, router, http.MethodGet,
		"/api/v1/tenants/"+tenantID.String()+"/audit?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

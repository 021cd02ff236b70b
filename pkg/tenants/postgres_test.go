package tenants

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockService(t *testing.T) (*PostgresService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresService(db), mock
}

func TestCreateTenantBootstrapsOwner(t *testing.T) {
	svc, mock := newMockService(t)
	ownerID := uuid.New()
	coreAppID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO tenants").
		WithArgs(sqlmock.AnyArg(), "Acme Realty", "acme-realty", "free", ownerID, true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO memberships").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), ownerID, "owner").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM apps WHERE is_core").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(coreAppID))
	mock.ExpectExec("INSERT INTO tenant_apps").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), coreAppID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tenant, err := svc.CreateTenant(context.Background(), &CreateTenantRequest{
		Name:        "Acme Realty",
		OwnerUserID: ownerID,
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-realty", tenant.Slug)
	assert.Equal(t, PlanFree, tenant.Plan)
	assert.True(t, tenant.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTenantDuplicateSlug(t *testing.T) {
	svc, mock := newMockService(t)
	ownerID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO tenants").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "tenants_slug_key"})
	mock.ExpectRollback()

	_, err := svc.CreateTenant(context.Background(), &CreateTenantRequest{
		Name:        "Acme Realty",
		OwnerUserID: ownerID,
	})
	assert.ErrorIs(t, err, ErrDuplicateSlug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTenantNotFound(t *testing.T) {
	svc, mock := newMockService(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM tenants").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetTenant(context.Background(), id)
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestGetMembership(t *testing.T) {
	svc, mock := newMockService(t)
	tenantID := uuid.New()
	userID := uuid.New()
	membershipID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM memberships").
		WithArgs(tenantID, userID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "user_id", "role", "is_active", "invited_by", "joined_at", "created_at",
		}).AddRow(membershipID, tenantID, userID, "member", true, nil, now, now))

	m, err := svc.GetMembership(context.Background(), tenantID, userID)
	require.NoError(t, err)
	assert.Equal(t, membershipID, m.ID)
	assert.Equal(t, "member", m.Role)
	assert.True(t, m.IsActive)
	assert.Nil(t, m.InvitedBy)
}

func TestGetMembershipAbsent(t *testing.T) {
	svc, mock := newMockService(t)
	tenantID := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM memberships").
		WithArgs(tenantID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetMembership(context.Background(), tenantID, userID)
	assert.ErrorIs(t, err, ErrMembershipNotFound)
}

func TestAddMemberDuplicate(t *testing.T) {
	svc, mock := newMockService(t)
	tenantID := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery("INSERT INTO memberships").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "memberships_tenant_id_user_id_key"})

	_, err := svc.AddMember(context.Background(), tenantID, &AddMemberRequest{
		UserID: userID,
		Role:   "member",
	})
	assert.ErrorIs(t, err, ErrDuplicateMembership)
}

func TestSetAppEnabledUpsert(t *testing.T) {
	svc, mock := newMockService(t)
	tenantID := uuid.New()
	appID := uuid.New()
	rowID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO tenant_apps").
		WithArgs(sqlmock.AnyArg(), tenantID, appID, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(rowID, now, now))

	ta, err := svc.SetAppEnabled(context.Background(), tenantID, appID, false)
	require.NoError(t, err)
	assert.Equal(t, rowID, ta.ID)
	assert.False(t, ta.Enabled)
}

func TestGetTenantAppAbsent(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT (.+) FROM tenant_apps").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetTenantApp(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrTenantAppNotFound)
}

func TestGrantAndGetAppPermission(t *testing.T) {
	svc, mock := newMockService(t)
	membershipID := uuid.New()
	appID := uuid.New()
	grantID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO user_app_permissions").
		WithArgs(sqlmock.AnyArg(), membershipID, appID, sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(grantID, now, now))

	grant, err := svc.GrantAppPermission(context.Background(), membershipID, appID,
		map[string]any{"level": "full"}, nil)
	require.NoError(t, err)
	assert.Equal(t, grantID, grant.ID)

	mock.ExpectQuery("SELECT (.+) FROM user_app_permissions").
		WithArgs(membershipID, appID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "membership_id", "app_id", "permissions", "granted_by", "created_at", "updated_at",
		}).AddRow(grantID, membershipID, appID, []byte(`{"level":"full"}`), nil, now, now))

	got, err := svc.GetAppPermission(context.Background(), membershipID, appID)
	require.NoError(t, err)
	assert.Equal(t, "full", got.Permissions["level"])
}

func TestRevokeAppPermissionAbsent(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectExec("DELETE FROM user_app_permissions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.RevokeAppPermission(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrGrantNotFound)
}

func TestDeactivateMember(t *testing.T) {
	svc, mock := newMockService(t)
	membershipID := uuid.New()

	mock.ExpectExec("UPDATE memberships SET is_active = false").
		WithArgs(membershipID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.DeactivateMember(context.Background(), membershipID)
	assert.NoError(t, err)
}

func TestCreateTenantNormalizesSlug(t *testing.T) {
	svc, mock := newMockService(t)
	ownerID := uuid.New()
	now := time.Now()

	// punctuation collapses to single hyphens, same as entity slugs
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO tenants").
		WithArgs(sqlmock.AnyArg(), "Smith & Sons, LLC", "smith-sons-llc", "free", ownerID, true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO memberships").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM apps WHERE is_core").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	tenant, err := svc.CreateTenant(context.Background(), &CreateTenantRequest{
		Name:        "Smith & Sons, LLC",
		OwnerUserID: ownerID,
	})
	require.NoError(t, err)
	assert.Equal(t, "smith-sons-llc", tenant.Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

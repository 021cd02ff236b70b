package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/authz"
	"github.com/atriumhq/atrium/pkg/entities"
	"github.com/atriumhq/atrium/pkg/identity"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/tenants"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, nil)
}

type auditSink struct {
	events []*audit.Event
}

func (s *auditSink) Record(ctx context.Context, event *audit.Event) error {
	s.events = append(s.events, event)
	return nil
}

// injectAuthz simulates the identity and authorization middleware for
// handler-level tests.
func injectAuthz(claims *identity.Claims, c *authz.Context) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if claims != nil {
				ctx = identity.NewContext(ctx, claims)
			}
			if c != nil {
				ctx = authz.NewContext(ctx, c)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func memberContext(claims *identity.Claims, tenantID uuid.UUID, role string) *authz.Context {
	return &authz.Context{
		Claims:       claims,
		TenantID:     tenantID,
		TenantRole:   role,
		MembershipID: uuid.New(),
	}
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func doRequest(t *testing.T, router *mux.Router, method, path string, body *bytes.Reader) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// memTenantService is an in-memory tenants.Service for handler tests.
type memTenantService struct {
	tenantsByID map[uuid.UUID]*tenants.Tenant
	memberships map[uuid.UUID]*tenants.Membership
	apps        map[uuid.UUID]*tenants.App
	tenantApps  map[string]*tenants.TenantApp
	grants      map[string]*tenants.UserAppPermission
}

func newMemTenantService() *memTenantService {
	return &memTenantService{
		tenantsByID: make(map[uuid.UUID]*tenants.Tenant),
		memberships: make(map[uuid.UUID]*tenants.Membership),
		apps:        make(map[uuid.UUID]*tenants.App),
		tenantApps:  make(map[string]*tenants.TenantApp),
		grants:      make(map[string]*tenants.UserAppPermission),
	}
}

func memPair(a, b uuid.UUID) string { return fmt.Sprintf("%s|%s", a, b) }

func (s *memTenantService) CreateTenant(ctx context.Context, req *tenants.CreateTenantRequest) (*tenants.Tenant, error) {
	slug := req.Slug
	if slug == "" {
		slug = entities.Slugify(req.Name)
	}
	for _, t := range s.tenantsByID {
		if t.Slug == slug {
			return nil, tenants.ErrDuplicateSlug
		}
	}
	tenant := &tenants.Tenant{
		ID:          uuid.New(),
		Name:        req.Name,
		Slug:        slug,
		Plan:        req.Plan,
		OwnerUserID: req.OwnerUserID,
		IsActive:    true,
	}
	s.tenantsByID[tenant.ID] = tenant
	s.memberships[uuid.New()] = &tenants.Membership{
		ID: uuid.New(), TenantID: tenant.ID, UserID: req.OwnerUserID, Role: "owner", IsActive: true,
	}
	for _, app := range s.apps {
		if app.IsCore {
			s.tenantApps[memPair(tenant.ID, app.ID)] = &tenants.TenantApp{
				ID: uuid.New(), TenantID: tenant.ID, AppID: app.ID, Enabled: true,
			}
		}
	}
	return tenant, nil
}

func (s *memTenantService) GetTenant(ctx context.Context, id uuid.UUID) (*tenants.Tenant, error) {
	if t, ok := s.tenantsByID[id]; ok {
		return t, nil
	}
	return nil, tenants.ErrTenantNotFound
}

func (s *memTenantService) GetTenantBySlug(ctx context.Context, slug string) (*tenants.Tenant, error) {
	for _, t := range s.tenantsByID {
		if t.Slug == slug {
			return t, nil
		}
	}
	return nil, tenants.ErrTenantNotFound
}

func (s *memTenantService) ListTenants(ctx context.Context) ([]*tenants.Tenant, error) {
	var list []*tenants.Tenant
	for _, t := range s.tenantsByID {
		list = append(list, t)
	}
	return list, nil
}

func (s *memTenantService) AddMember(ctx context.Context, tenantID uuid.UUID, req *tenants.AddMemberRequest) (*tenants.Membership, error) {
	for _, m := range s.memberships {
		if m.TenantID == tenantID && m.UserID == req.UserID && m.IsActive {
			return nil, tenants.ErrDuplicateMembership
		}
	}
	m := &tenants.Membership{
		ID: uuid.New(), TenantID: tenantID, UserID: req.UserID,
		Role: req.Role, IsActive: true, InvitedBy: req.InvitedBy,
	}
	s.memberships[m.ID] = m
	return m, nil
}

func (s *memTenantService) GetMembership(ctx context.Context, tenantID, userID uuid.UUID) (*tenants.Membership, error) {
	for _, m := range s.memberships {
		if m.TenantID == tenantID && m.UserID == userID && m.IsActive {
			return m, nil
		}
	}
	return nil, tenants.ErrMembershipNotFound
}

func (s *memTenantService) ListMembers(ctx context.Context, tenantID uuid.UUID) ([]*tenants.Membership, error) {
	var list []*tenants.Membership
	for _, m := range s.memberships {
		if m.TenantID == tenantID && m.IsActive {
			list = append(list, m)
		}
	}
	return list, nil
}

func (s *memTenantService) UpdateMemberRole(ctx context.Context, membershipID uuid.UUID, role string) error {
	m, ok := s.memberships[membershipID]
	if !ok || !m.IsActive {
		return tenants.ErrMembershipNotFound
	}
	m.Role = role
	return nil
}

func (s *memTenantService) DeactivateMember(ctx context.Context, membershipID uuid.UUID) error {
	m, ok := s.memberships[membershipID]
	if !ok || !m.IsActive {
		return tenants.ErrMembershipNotFound
	}
	m.IsActive = false
	return nil
}

func (s *memTenantService) CreateApp(ctx context.Context, app *tenants.App) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	s.apps[app.ID] = app
	return nil
}

func (s *memTenantService) GetApp(ctx context.Context, id uuid.UUID) (*tenants.App, error) {
	if app, ok := s.apps[id]; ok {
		return app, nil
	}
	return nil, tenants.ErrAppNotFound
}

func (s *memTenantService) GetAppByCode(ctx context.Context, code string) (*tenants.App, error) {
	for _, app := range s.apps {
		if app.Code == code {
			return app, nil
		}
	}
	return nil, tenants.ErrAppNotFound
}

func (s *memTenantService) ListApps(ctx context.Context) ([]*tenants.App, error) {
	var list []*tenants.App
	for _, app := range s.apps {
		list = append(list, app)
	}
	return list, nil
}

func (s *memTenantService) SetAppEnabled(ctx context.Context, tenantID, appID uuid.UUID, enabled bool) (*tenants.TenantApp, error) {
	ta := &tenants.TenantApp{ID: uuid.New(), TenantID: tenantID, AppID: appID, Enabled: enabled}
	s.tenantApps[memPair(tenantID, appID)] = ta
	return ta, nil
}

func (s *memTenantService) GetTenantApp(ctx context.Context, tenantID, appID uuid.UUID) (*tenants.TenantApp, error) {
	if ta, ok := s.tenantApps[memPair(tenantID, appID)]; ok {
		return ta, nil
	}
	return nil, tenants.ErrTenantAppNotFound
}

func (s *memTenantService) ListTenantApps(ctx context.Context, tenantID uuid.UUID) ([]*tenants.TenantApp, error) {
	var list []*tenants.TenantApp
	for _, ta := range s.tenantApps {
		if ta.TenantID == tenantID {
			list = append(list, ta)
		}
	}
	return list, nil
}

func (s *memTenantService) RemoveTenantApp(ctx context.Context, tenantID, appID uuid.UUID) error {
	key := memPair(tenantID, appID)
	if _, ok := s.tenantApps[key]; !ok {
		return tenants.ErrTenantAppNotFound
	}
	delete(s.tenantApps, key)
	return nil
}

func (s *memTenantService) GrantAppPermission(ctx context.Context, membershipID, appID uuid.UUID, permissions map[string]any, grantedBy *uuid.UUID) (*tenants.UserAppPermission, error) {
	grant := &tenants.UserAppPermission{
		ID: uuid.New(), MembershipID: membershipID, AppID: appID,
		Permissions: permissions, GrantedBy: grantedBy,
	}
	s.grants[memPair(membershipID, appID)] = grant
	return grant, nil
}

func (s *memTenantService) GetAppPermission(ctx context.Context, membershipID, appID uuid.UUID) (*tenants.UserAppPermission, error) {
	if g, ok := s.grants[memPair(membershipID, appID)]; ok {
		return g, nil
	}
	return nil, tenants.ErrGrantNotFound
}

func (s *memTenantService) RevokeAppPermission(ctx context.Context, membershipID, appID uuid.UUID) error {
	key := memPair(membershipID, appID)
	if _, ok := s.grants[key]; !ok {
		return tenants.ErrGrantNotFound
	}
	delete(s.grants, key)
	return nil
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	bookings "booking-system/internal/bookings/service"
	"booking-system/internal/domain/booking"
	"booking-system/internal/domain/event"
	"booking-system/internal/domain/tenant"
	"booking-system/internal/domain/user"
	"booking-system/internal/repository/postgres"
	resources "booking-system/internal/resources/service"
	tenants "booking-system/internal/tenants/service"
	users "booking-system/internal/users/service"
	"booking-system/pkg/cache"
	"booking-system/pkg/webhook"
)

func TestRespondErrorMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"booking not found", bookings.ErrBookingNotFound, http.StatusNotFound, "booking not found"},
		{"resource not found", resources.ErrResourceNotFound, http.StatusNotFound, "resource not found"},
		{"tenant not found", users.ErrTenantNotFound, http.StatusNotFound, "tenant not found"},
		{"webhook not found", tenants.ErrWebhookNotFound, http.StatusNotFound, "webhook not found"},
		{"forbidden", users.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"forbidden booking", bookings.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"domain taken", tenants.ErrDomainTaken, http.StatusConflict, "domain already registered"},
		{"email taken", users.ErrEmailTaken, http.StatusConflict, "email already registered for this tenant"},
		{"category in use", resources.ErrCategoryInUse, http.StatusConflict, "category still has resources attached"},
		{"bad credentials", users.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{
			"validation",
			&bookings.ValidationError{Reason: "start_time must be in the future"},
			http.StatusUnprocessableEntity,
			"start_time must be in the future",
		},
		{
			"validation tenant",
			&tenants.ValidationError{Reason: "name is required"},
			http.StatusUnprocessableEntity,
			"name is required",
		},
		{
			"dependency masked",
			fmt.Errorf("resolve tenant settings: %w", bookings.ErrDependency),
			http.StatusServiceUnavailable,
			"dependency unavailable",
		},
		{"unknown masked", errors.New("pool exhausted"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)

			respondError(rec, req, zap.NewNop(), tc.err)

			require.Equal(t, tc.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.detail, body["detail"])
		})
	}
}

func TestRespondErrorConflictBody(t *testing.T) {
	blocker := uuid.New()
	start := time.Date(2025, time.December, 8, 14, 0, 0, 0, time.UTC)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", nil)

	respondError(rec, req, zap.NewNop(), &bookings.ConflictError{
		Conflicts: []booking.Conflict{{
			BookingID: blocker,
			StartTime: start,
			EndTime:   start.Add(time.Hour),
		}},
	})

	require.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "conflict", body["error"])
	assert.NotEmpty(t, body["message"])

	conflicts, ok := body["conflicts"].([]any)
	require.True(t, ok)
	require.Len(t, conflicts, 1)
	first, ok := conflicts[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, blocker.String(), first["booking_id"])
	assert.Equal(t, "2025-12-08T14:00:00Z", first["start_time"])
	assert.Equal(t, "2025-12-08T15:00:00Z", first["end_time"])
}

// ---- tenant routes over a faked store ----

type fakeTenantRepo struct {
	tenants map[uuid.UUID]tenant.Tenant
}

func (f *fakeTenantRepo) Create(_ context.Context, t tenant.Tenant) error {
	for _, existing := range f.tenants {
		if existing.Domain == t.Domain {
			return postgres.ErrDuplicate
		}
	}
	f.tenants[t.ID] = t
	return nil
}

func (f *fakeTenantRepo) GetByID(_ context.Context, id uuid.UUID) (tenant.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return tenant.Tenant{}, postgres.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenantRepo) GetByDomain(_ context.Context, domain string) (tenant.Tenant, error) {
	for _, t := range f.tenants {
		if t.Domain == domain {
			return t, nil
		}
	}
	return tenant.Tenant{}, postgres.ErrNotFound
}

func (f *fakeTenantRepo) List(_ context.Context, _ postgres.TenantFilter) ([]tenant.Tenant, error) {
	out := make([]tenant.Tenant, 0, len(f.tenants))
	for _, t := range f.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTenantRepo) Update(_ context.Context, t tenant.Tenant) error {
	if _, ok := f.tenants[t.ID]; !ok {
		return postgres.ErrNotFound
	}
	f.tenants[t.ID] = t
	return nil
}

func (f *fakeTenantRepo) Delete(_ context.Context, id uuid.UUID, _ string, _ event.Envelope) error {
	if _, ok := f.tenants[id]; !ok {
		return postgres.ErrNotFound
	}
	delete(f.tenants, id)
	return nil
}

type fakeWebhookRepo struct {
	webhooks map[uuid.UUID]tenant.Webhook
}

func (f *fakeWebhookRepo) Create(_ context.Context, w tenant.Webhook) error {
	f.webhooks[w.ID] = w
	return nil
}

func (f *fakeWebhookRepo) Get(_ context.Context, tenantID, id uuid.UUID) (tenant.Webhook, error) {
	w, ok := f.webhooks[id]
	if !ok || w.TenantID != tenantID {
		return tenant.Webhook{}, postgres.ErrNotFound
	}
	return w, nil
}

func (f *fakeWebhookRepo) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]tenant.Webhook, error) {
	out := []tenant.Webhook{}
	for _, w := range f.webhooks {
		if w.TenantID == tenantID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]tenant.Webhook, error) {
	all, _ := f.ListByTenant(ctx, tenantID)
	out := []tenant.Webhook{}
	for _, w := range all {
		if w.IsActive {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) Update(_ context.Context, w tenant.Webhook) error {
	if _, ok := f.webhooks[w.ID]; !ok {
		return postgres.ErrNotFound
	}
	f.webhooks[w.ID] = w
	return nil
}

func (f *fakeWebhookRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	w, ok := f.webhooks[id]
	if !ok || w.TenantID != tenantID {
		return postgres.ErrNotFound
	}
	delete(f.webhooks, id)
	return nil
}

func newTenantRouter(t *testing.T) (*fakeTenantRepo, *auth.Manager, http.Handler) {
	t.Helper()

	repo := &fakeTenantRepo{tenants: map[uuid.UUID]tenant.Tenant{}}
	hooks := &fakeWebhookRepo{webhooks: map[uuid.UUID]tenant.Webhook{}}
	manager, err := auth.NewManager("test-secret", "HS256", 24)
	require.NoError(t, err)

	svc := tenants.New(
		repo,
		hooks,
		cache.New(nil, zap.NewNop(), 60, 300),
		webhook.NewSender(zap.NewNop()),
		zap.NewNop(),
		"deletion-events",
	)

	router := chi.NewRouter()
	router.Mount("/tenants", NewTenants(svc, manager, zap.NewNop()).Routes())
	return repo, manager, router
}

func doJSON(t *testing.T, router http.Handler, method, target, token string, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTenantRegistrationAndLookupArePublic(t *testing.T) {
	_, _, router := newTenantRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/tenants/", "",
		`{"name":"Clinica Aurora","domain":"aurora"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created tenant.Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Clinica Aurora", created.Name)
	assert.True(t, created.IsActive)

	rec = doJSON(t, router, http.MethodGet, "/tenants/domain/aurora", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var found tenant.Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	assert.Equal(t, created.ID, found.ID)

	rec = doJSON(t, router, http.MethodPost, "/tenants/", "",
		`{"name":"Impostor","domain":"aurora"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestTenantReadsRequireToken(t *testing.T) {
	repo, manager, router := newTenantRouter(t)

	seeded := tenant.New(tenant.CreateRequest{Name: "Clinica Aurora", Domain: "aurora"})
	repo.tenants[seeded.ID] = seeded

	rec := doJSON(t, router, http.MethodGet, "/tenants/"+seeded.ID.String()+"/", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["detail"])

	member, err := manager.Issue(uuid.New(), seeded.ID, "user")
	require.NoError(t, err)
	rec = doJSON(t, router, http.MethodGet, "/tenants/"+seeded.ID.String()+"/", member, "")
	require.Equal(t, http.StatusOK, rec.Code)

	outsider, err := manager.Issue(uuid.New(), uuid.New(), "admin")
	require.NoError(t, err)
	rec = doJSON(t, router, http.MethodGet, "/tenants/"+seeded.ID.String()+"/", outsider, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

// ---- login over a faked user store ----

type fakeUserRepo struct {
	users map[uuid.UUID]user.User
}

func (f *fakeUserRepo) Create(_ context.Context, u user.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return user.User{}, postgres.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, tenantID uuid.UUID, email string) (user.User, error) {
	for _, u := range f.users {
		if u.TenantID == tenantID && u.Email == email {
			return u, nil
		}
	}
	return user.User{}, postgres.ErrNotFound
}

func (f *fakeUserRepo) ListByEmail(_ context.Context, email string) ([]user.User, error) {
	out := []user.User{}
	for _, u := range f.users {
		if u.Email == email {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) List(_ context.Context, _ postgres.UserFilter) ([]user.User, error) {
	out := make([]user.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserRepo) Update(_ context.Context, u user.User) error {
	if _, ok := f.users[u.ID]; !ok {
		return postgres.ErrNotFound
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id uuid.UUID, _ string, _ event.Envelope) error {
	if _, ok := f.users[id]; !ok {
		return postgres.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) DeleteByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	for id, u := range f.users {
		if u.TenantID == tenantID {
			delete(f.users, id)
			n++
		}
	}
	return n, nil
}

func TestLoginIssuesBearerToken(t *testing.T) {
	repo := &fakeUserRepo{users: map[uuid.UUID]user.User{}}
	manager, err := auth.NewManager("test-secret", "HS256", 24)
	require.NoError(t, err)

	hash, err := auth.HashPassword("senha-forte")
	require.NoError(t, err)
	seeded := user.User{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		Name:         "Ana Lima",
		Email:        "ana@aurora.com",
		Type:         user.TypeUser,
		PasswordHash: hash,
		IsActive:     true,
	}
	repo.users[seeded.ID] = seeded

	svc := users.New(repo, nil, manager, zap.NewNop(), "deletion-events")
	router := chi.NewRouter()
	router.Mount("/users", NewUsers(svc, manager, zap.NewNop()).Routes())

	login := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := login(url.Values{"email": {"ana@aurora.com"}, "password": {"senha-forte"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AccessToken string    `json:"access_token"`
		TokenType   string    `json:"token_type"`
		User        user.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bearer", body.TokenType)
	assert.Equal(t, seeded.ID, body.User.ID)

	claims, err := manager.Parse(body.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, claims.UserID)
	assert.Equal(t, seeded.TenantID, claims.TenantID)

	rec = login(url.Values{"email": {"ana@aurora.com"}, "password": {"errada"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = login(url.Values{"email": {"ana@aurora.com"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

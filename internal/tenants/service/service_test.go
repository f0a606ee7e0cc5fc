package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	"booking-system/internal/domain/event"
	"booking-system/internal/domain/tenant"
	"booking-system/internal/repository/postgres"
	"booking-system/pkg/cache"
	"booking-system/pkg/webhook"
)

type fakeTenantRepo struct {
	tenants       map[uuid.UUID]tenant.Tenant
	deletedStream string
	deletedEnv    event.Envelope
}

func newFakeTenantRepo() *fakeTenantRepo {
	return &fakeTenantRepo{tenants: map[uuid.UUID]tenant.Tenant{}}
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
	var out []tenant.Tenant
	for _, t := range f.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTenantRepo) Update(_ context.Context, t tenant.Tenant) error {
	if _, ok := f.tenants[t.ID]; !ok {
		return postgres.ErrNotFound
	}
	for id, existing := range f.tenants {
		if id != t.ID && existing.Domain == t.Domain {
			return postgres.ErrDuplicate
		}
	}
	f.tenants[t.ID] = t
	return nil
}

func (f *fakeTenantRepo) Delete(_ context.Context, id uuid.UUID, stream string, env event.Envelope) error {
	if _, ok := f.tenants[id]; !ok {
		return postgres.ErrNotFound
	}
	delete(f.tenants, id)
	f.deletedStream = stream
	f.deletedEnv = env
	return nil
}

type fakeWebhookRepo struct {
	webhooks map[uuid.UUID]tenant.Webhook
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{webhooks: map[uuid.UUID]tenant.Webhook{}}
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
	var out []tenant.Webhook
	for _, w := range f.webhooks {
		if w.TenantID == tenantID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]tenant.Webhook, error) {
	all, _ := f.ListByTenant(ctx, tenantID)
	var out []tenant.Webhook
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

func newTestService(repo *fakeTenantRepo, hooks *fakeWebhookRepo) *Service {
	logger := zap.NewNop()
	return New(repo, hooks, cache.New(nil, logger, 300, 300), webhook.NewSender(logger), logger, "deletion-events")
}

func adminClaims(tenantID uuid.UUID) auth.Claims {
	return auth.Claims{UserID: uuid.New(), TenantID: tenantID, UserType: "admin"}
}

func userClaims(tenantID uuid.UUID) auth.Claims {
	return auth.Claims{UserID: uuid.New(), TenantID: tenantID, UserType: "user"}
}

func TestCreateAppliesDefaults(t *testing.T) {
	s := newTestService(newFakeTenantRepo(), newFakeWebhookRepo())

	created, err := s.Create(context.Background(), tenant.CreateRequest{
		Name:   "Clínica Vida",
		Domain: "vida.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, tenant.PlanBasico, created.Plan)
	assert.True(t, created.IsActive)
	assert.Equal(t, "UTC", created.Settings.Timezone)
	assert.Equal(t, 30, created.Settings.BookingInterval)
}

func TestCreateRejectsDuplicateDomain(t *testing.T) {
	s := newTestService(newFakeTenantRepo(), newFakeWebhookRepo())
	ctx := context.Background()

	_, err := s.Create(ctx, tenant.CreateRequest{Name: "A", Domain: "shared.example.com"})
	require.NoError(t, err)

	_, err = s.Create(ctx, tenant.CreateRequest{Name: "B", Domain: "shared.example.com"})
	assert.ErrorIs(t, err, ErrDomainTaken)
}

func TestCreateRejectsInvalidSettings(t *testing.T) {
	s := newTestService(newFakeTenantRepo(), newFakeWebhookRepo())

	bad := tenant.DefaultSettings()
	bad.Timezone = "Mars/Olympus"
	_, err := s.Create(context.Background(), tenant.CreateRequest{
		Name:     "A",
		Domain:   "a.example.com",
		Settings: &bad,
	})

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateSettingsValidatesAndPersists(t *testing.T) {
	repo := newFakeTenantRepo()
	s := newTestService(repo, newFakeWebhookRepo())
	ctx := context.Background()

	created, err := s.Create(ctx, tenant.CreateRequest{Name: "A", Domain: "a.example.com"})
	require.NoError(t, err)
	claims := adminClaims(created.ID)

	next := created.Settings
	next.BookingInterval = 4
	_, err = s.UpdateSettings(ctx, claims, created.ID, next)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	next.BookingInterval = 60
	next.Timezone = "America/Sao_Paulo"
	updated, err := s.UpdateSettings(ctx, claims, created.ID, next)
	require.NoError(t, err)
	assert.Equal(t, 60, updated.BookingInterval)
	assert.Equal(t, "America/Sao_Paulo", repo.tenants[created.ID].Settings.Timezone)
}

func TestSettingsRequireSameTenant(t *testing.T) {
	s := newTestService(newFakeTenantRepo(), newFakeWebhookRepo())
	ctx := context.Background()

	created, err := s.Create(ctx, tenant.CreateRequest{Name: "A", Domain: "a.example.com"})
	require.NoError(t, err)

	_, err = s.GetSettings(ctx, userClaims(uuid.New()), created.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.UpdateSettings(ctx, userClaims(created.ID), created.ID, created.Settings)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteStagesTenantDeleted(t *testing.T) {
	repo := newFakeTenantRepo()
	s := newTestService(repo, newFakeWebhookRepo())
	ctx := context.Background()

	created, err := s.Create(ctx, tenant.CreateRequest{Name: "A", Domain: "a.example.com"})
	require.NoError(t, err)

	err = s.Delete(ctx, userClaims(created.ID), created.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, s.Delete(ctx, adminClaims(created.ID), created.ID))
	assert.Equal(t, "deletion-events", repo.deletedStream)
	assert.Equal(t, event.TenantDeleted, repo.deletedEnv.Type)

	var payload event.TenantDeletedPayload
	require.NoError(t, repo.deletedEnv.Decode(&payload))
	assert.Equal(t, created.ID, payload.TenantID)
}

func TestWebhookURLPolicy(t *testing.T) {
	s := newTestService(newFakeTenantRepo(), newFakeWebhookRepo())
	ctx := context.Background()

	created, err := s.Create(ctx, tenant.CreateRequest{Name: "A", Domain: "a.example.com"})
	require.NoError(t, err)
	claims := adminClaims(created.ID)

	_, err = s.CreateWebhook(ctx, claims, created.ID, tenant.WebhookCreateRequest{
		URL:    "http://evil.example.com/hook",
		Events: []string{event.BookingCreated},
	})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	w, err := s.CreateWebhook(ctx, claims, created.ID, tenant.WebhookCreateRequest{
		URL:    "https://hooks.example.com/bookings",
		Events: []string{event.BookingCreated},
	})
	require.NoError(t, err)
	assert.True(t, w.IsActive)

	_, err = s.CreateWebhook(ctx, userClaims(created.ID), created.ID, tenant.WebhookCreateRequest{
		URL: "https://hooks.example.com/other",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestHandleBookingEventDispatchesSubscribedHooks(t *testing.T) {
	repo := newFakeTenantRepo()
	hooks := newFakeWebhookRepo()
	s := newTestService(repo, hooks)
	ctx := context.Background()

	created, err := s.Create(ctx, tenant.CreateRequest{Name: "A", Domain: "a.example.com"})
	require.NoError(t, err)

	var got []byte
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		signature = r.Header.Get(webhook.SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	secret := "hook-secret"
	subscribed := tenant.Webhook{
		ID:       uuid.New(),
		TenantID: created.ID,
		URL:      server.URL,
		Events:   []string{event.BookingCreated},
		Secret:   &secret,
		IsActive: true,
	}
	// Subscribed to a different kind: must not be called.
	other := tenant.Webhook{
		ID:       uuid.New(),
		TenantID: created.ID,
		URL:      server.URL + "/never",
		Events:   []string{event.BookingCancelled},
		IsActive: true,
	}
	hooks.webhooks[subscribed.ID] = subscribed
	hooks.webhooks[other.ID] = other

	env, err := event.New(event.BookingCreated, created.ID, event.BookingCreatedPayload{
		BookingID: uuid.New(),
		TenantID:  created.ID,
	})
	require.NoError(t, err)

	require.NoError(t, s.HandleBookingEvent(ctx, env))
	require.NotEmpty(t, got)

	var body struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(got, &body))
	assert.Equal(t, event.BookingCreated, body.Event)
	assert.Equal(t, webhook.Signature(secret, got), signature)
}

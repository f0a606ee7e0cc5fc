package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	"booking-system/internal/domain/event"
	"booking-system/internal/domain/tenant"
	"booking-system/internal/repository/postgres"
	"booking-system/pkg/cache"
	"booking-system/pkg/webhook"
)

var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrWebhookNotFound = errors.New("webhook not found")
	ErrDomainTaken     = errors.New("domain already registered")
	ErrForbidden       = errors.New("forbidden")
)

// ValidationError carries the caller-facing reason of a 422.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

type Repository interface {
	Create(ctx context.Context, t tenant.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (tenant.Tenant, error)
	GetByDomain(ctx context.Context, domain string) (tenant.Tenant, error)
	List(ctx context.Context, f postgres.TenantFilter) ([]tenant.Tenant, error)
	Update(ctx context.Context, t tenant.Tenant) error
	Delete(ctx context.Context, id uuid.UUID, stream string, env event.Envelope) error
}

type WebhookRepository interface {
	Create(ctx context.Context, w tenant.Webhook) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (tenant.Webhook, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]tenant.Webhook, error)
	ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]tenant.Webhook, error)
	Update(ctx context.Context, w tenant.Webhook) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

type Service struct {
	repo           Repository
	webhooks       WebhookRepository
	cache          *cache.Cache
	sender         *webhook.Sender
	log            *zap.Logger
	deletionStream string
}

func New(repo Repository, webhooks WebhookRepository, c *cache.Cache, sender *webhook.Sender, logger *zap.Logger, deletionStream string) *Service {
	return &Service{
		repo:           repo,
		webhooks:       webhooks,
		cache:          c,
		sender:         sender,
		log:            logger,
		deletionStream: deletionStream,
	}
}

// Create registers a tenant. Open endpoint: this is the platform's
// signup.
func (s *Service) Create(ctx context.Context, req tenant.CreateRequest) (tenant.Tenant, error) {
	if strings.TrimSpace(req.Name) == "" {
		return tenant.Tenant{}, &ValidationError{Reason: "name is required"}
	}
	if strings.TrimSpace(req.Domain) == "" {
		return tenant.Tenant{}, &ValidationError{Reason: "domain is required"}
	}
	if req.Settings != nil {
		if err := req.Settings.Validate(); err != nil {
			return tenant.Tenant{}, &ValidationError{Reason: err.Error()}
		}
	}

	t := tenant.New(req)
	if err := s.repo.Create(ctx, t); err != nil {
		if errors.Is(err, postgres.ErrDuplicate) {
			return tenant.Tenant{}, ErrDomainTaken
		}
		return tenant.Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	s.log.Info("tenant created",
		zap.String("tenant_id", t.ID.String()),
		zap.String("domain", t.Domain))
	return t, nil
}

func (s *Service) Get(ctx context.Context, claims auth.Claims, id uuid.UUID) (tenant.Tenant, error) {
	if claims.TenantID != id {
		return tenant.Tenant{}, ErrForbidden
	}
	return s.get(ctx, id)
}

// GetByDomain is public: the white-label frontend resolves its tenant
// (name, logo, theme) from the domain before anyone logs in.
func (s *Service) GetByDomain(ctx context.Context, domain string) (tenant.Tenant, error) {
	t, err := s.repo.GetByDomain(ctx, domain)
	if errors.Is(err, postgres.ErrNotFound) {
		return tenant.Tenant{}, ErrTenantNotFound
	}
	if err != nil {
		return tenant.Tenant{}, fmt.Errorf("get tenant by domain: %w", err)
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, claims auth.Claims, f postgres.TenantFilter) ([]tenant.Tenant, error) {
	if !claims.IsAdmin() {
		return nil, ErrForbidden
	}
	tenants, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

func (s *Service) Update(ctx context.Context, claims auth.Claims, id uuid.UUID, req tenant.UpdateRequest) (tenant.Tenant, error) {
	if !claims.AdminOf(id) {
		return tenant.Tenant{}, ErrForbidden
	}
	t, err := s.get(ctx, id)
	if err != nil {
		return tenant.Tenant{}, err
	}

	t.Apply(req)
	if err := s.repo.Update(ctx, t); err != nil {
		if errors.Is(err, postgres.ErrDuplicate) {
			return tenant.Tenant{}, ErrDomainTaken
		}
		if errors.Is(err, postgres.ErrNotFound) {
			return tenant.Tenant{}, ErrTenantNotFound
		}
		return tenant.Tenant{}, fmt.Errorf("update tenant: %w", err)
	}
	return t, nil
}

// Delete removes the tenant and stages tenant.deleted in the deleting
// transaction. Everything the tenant owns is torn down asynchronously
// by the consumers of the deletion stream.
func (s *Service) Delete(ctx context.Context, claims auth.Claims, id uuid.UUID) error {
	if !claims.AdminOf(id) {
		return ErrForbidden
	}

	env, err := event.New(event.TenantDeleted, id, event.TenantDeletedPayload{TenantID: id})
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, s.deletionStream, env); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return ErrTenantNotFound
		}
		return fmt.Errorf("delete tenant: %w", err)
	}

	s.cache.Delete(ctx, cache.SettingsKey(id))
	s.log.Info("tenant deleted", zap.String("tenant_id", id.String()))
	return nil
}

func (s *Service) GetSettings(ctx context.Context, claims auth.Claims, id uuid.UUID) (tenant.Settings, error) {
	if claims.TenantID != id {
		return tenant.Settings{}, ErrForbidden
	}
	t, err := s.get(ctx, id)
	if err != nil {
		return tenant.Settings{}, err
	}
	return t.Settings, nil
}

// UpdateSettings replaces the whole settings document and invalidates
// the cached copy the other services read.
func (s *Service) UpdateSettings(ctx context.Context, claims auth.Claims, id uuid.UUID, settings tenant.Settings) (tenant.Settings, error) {
	if !claims.AdminOf(id) {
		return tenant.Settings{}, ErrForbidden
	}
	if err := settings.Validate(); err != nil {
		return tenant.Settings{}, &ValidationError{Reason: err.Error()}
	}

	t, err := s.get(ctx, id)
	if err != nil {
		return tenant.Settings{}, err
	}
	t.Settings = settings
	if err := s.repo.Update(ctx, t); err != nil {
		return tenant.Settings{}, fmt.Errorf("update settings: %w", err)
	}

	s.cache.Delete(ctx, cache.SettingsKey(id))
	s.log.Info("tenant settings updated", zap.String("tenant_id", id.String()))
	return settings, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (tenant.Tenant, error) {
	t, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		return tenant.Tenant{}, ErrTenantNotFound
	}
	if err != nil {
		return tenant.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (s *Service) CreateWebhook(ctx context.Context, claims auth.Claims, tenantID uuid.UUID, req tenant.WebhookCreateRequest) (tenant.Webhook, error) {
	if !claims.AdminOf(tenantID) {
		return tenant.Webhook{}, ErrForbidden
	}
	if err := webhook.ValidateURL(req.URL); err != nil {
		return tenant.Webhook{}, &ValidationError{Reason: err.Error()}
	}
	if _, err := s.get(ctx, tenantID); err != nil {
		return tenant.Webhook{}, err
	}

	w := tenant.NewWebhook(tenantID, req)
	if err := s.webhooks.Create(ctx, w); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return tenant.Webhook{}, ErrTenantNotFound
		}
		return tenant.Webhook{}, fmt.Errorf("create webhook: %w", err)
	}
	return w, nil
}

func (s *Service) ListWebhooks(ctx context.Context, claims auth.Claims, tenantID uuid.UUID) ([]tenant.Webhook, error) {
	if claims.TenantID != tenantID {
		return nil, ErrForbidden
	}
	webhooks, err := s.webhooks.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return webhooks, nil
}

func (s *Service) GetWebhook(ctx context.Context, claims auth.Claims, tenantID, id uuid.UUID) (tenant.Webhook, error) {
	if claims.TenantID != tenantID {
		return tenant.Webhook{}, ErrForbidden
	}
	w, err := s.webhooks.Get(ctx, tenantID, id)
	if errors.Is(err, postgres.ErrNotFound) {
		return tenant.Webhook{}, ErrWebhookNotFound
	}
	if err != nil {
		return tenant.Webhook{}, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

func (s *Service) UpdateWebhook(ctx context.Context, claims auth.Claims, tenantID, id uuid.UUID, req tenant.WebhookUpdateRequest) (tenant.Webhook, error) {
	if !claims.AdminOf(tenantID) {
		return tenant.Webhook{}, ErrForbidden
	}
	if req.URL != nil {
		if err := webhook.ValidateURL(*req.URL); err != nil {
			return tenant.Webhook{}, &ValidationError{Reason: err.Error()}
		}
	}

	w, err := s.GetWebhook(ctx, claims, tenantID, id)
	if err != nil {
		return tenant.Webhook{}, err
	}
	w.Apply(req)
	if err := s.webhooks.Update(ctx, w); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return tenant.Webhook{}, ErrWebhookNotFound
		}
		return tenant.Webhook{}, fmt.Errorf("update webhook: %w", err)
	}
	return w, nil
}

func (s *Service) DeleteWebhook(ctx context.Context, claims auth.Claims, tenantID, id uuid.UUID) error {
	if !claims.AdminOf(tenantID) {
		return ErrForbidden
	}
	err := s.webhooks.Delete(ctx, tenantID, id)
	if errors.Is(err, postgres.ErrNotFound) {
		return ErrWebhookNotFound
	}
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	"booking-system/internal/clients"
	"booking-system/internal/domain/event"
	"booking-system/internal/domain/resource"
	"booking-system/internal/domain/tenant"
	"booking-system/internal/domain/user"
	"booking-system/internal/repository/postgres"
	"booking-system/pkg/cache"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrResourceNotFound = errors.New("resource not found")
	ErrCategoryInUse    = errors.New("category still has resources attached")
	ErrForbidden        = errors.New("forbidden")
	ErrDependency       = errors.New("dependency unavailable")
)

// ValidationError carries the reason a request was semantically
// rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

type CategoryRepository interface {
	Create(ctx context.Context, c resource.Category) error
	Get(ctx context.Context, id uuid.UUID) (resource.Category, error)
	List(ctx context.Context, f postgres.CategoryFilter) ([]resource.Category, error)
	Update(ctx context.Context, c resource.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

type ResourceRepository interface {
	Create(ctx context.Context, res resource.Resource) error
	Get(ctx context.Context, id uuid.UUID) (resource.Resource, error)
	List(ctx context.Context, f postgres.ResourceFilter) ([]resource.Resource, error)
	Update(ctx context.Context, res resource.Resource) error
	Delete(ctx context.Context, id uuid.UUID, stream string, env event.Envelope) error
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// permissionReader is the slice of the user client the write guards
// need. Claims carry no permission bits, so non-admin writes resolve
// them remotely.
type permissionReader interface {
	GetMemoized(ctx context.Context, id uuid.UUID) (user.User, error)
}

// settingsReader resolves tenant policy for the projection.
type settingsReader interface {
	Settings(ctx context.Context, tenantID uuid.UUID) (tenant.Settings, error)
}

// bookingReader fetches the occupied intervals of a resource.
type bookingReader interface {
	ResourceWindow(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]clients.BookingInterval, error)
}

type Service struct {
	resources      ResourceRepository
	categories     CategoryRepository
	users          permissionReader
	settings       settingsReader
	bookings       bookingReader
	cache          *cache.Cache
	log            *zap.Logger
	deletionStream string
	now            func() time.Time
}

func New(
	resources ResourceRepository,
	categories CategoryRepository,
	users *clients.UserClient,
	settings *clients.SettingsProvider,
	bookings *clients.BookingClient,
	c *cache.Cache,
	logger *zap.Logger,
	deletionStream string,
) *Service {
	return &Service{
		resources:      resources,
		categories:     categories,
		users:          users,
		settings:       settings,
		bookings:       bookings,
		cache:          c,
		log:            logger,
		deletionStream: deletionStream,
		now:            time.Now,
	}
}

// canWrite grants resource and category mutation. Admins pass on their
// claims alone; everyone else needs can_manage_resources on their
// profile.
func (s *Service) canWrite(ctx context.Context, claims auth.Claims) error {
	if claims.IsAdmin() {
		return nil
	}
	u, err := s.users.GetMemoized(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) || errors.Is(err, clients.ErrDenied) {
			return ErrForbidden
		}
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}
	if !u.Permissions.CanManageResources {
		return ErrForbidden
	}
	return nil
}

// ---- categories ----

func (s *Service) CreateCategory(ctx context.Context, claims auth.Claims, req resource.CategoryCreateRequest) (resource.Category, error) {
	if req.TenantID != claims.TenantID {
		return resource.Category{}, ErrForbidden
	}
	if err := s.canWrite(ctx, claims); err != nil {
		return resource.Category{}, err
	}
	if req.Name == "" {
		return resource.Category{}, &ValidationError{Reason: "name is required"}
	}
	if !req.Type.Valid() {
		return resource.Category{}, &ValidationError{Reason: fmt.Sprintf("unknown category type %q", req.Type)}
	}

	c := resource.NewCategory(req)
	if err := s.categories.Create(ctx, c); err != nil {
		return resource.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.log.Info("category created",
		zap.String("category_id", c.ID.String()),
		zap.String("tenant_id", c.TenantID.String()))
	return c, nil
}

func (s *Service) GetCategory(ctx context.Context, claims auth.Claims, id uuid.UUID) (resource.Category, error) {
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return resource.Category{}, ErrCategoryNotFound
		}
		return resource.Category{}, fmt.Errorf("get category: %w", err)
	}
	if c.TenantID != claims.TenantID {
		return resource.Category{}, ErrCategoryNotFound
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context, claims auth.Claims, f postgres.CategoryFilter) ([]resource.Category, error) {
	if f.TenantID != claims.TenantID {
		return nil, ErrForbidden
	}
	categories, err := s.categories.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *Service) UpdateCategory(ctx context.Context, claims auth.Claims, id uuid.UUID, req resource.CategoryUpdateRequest) (resource.Category, error) {
	c, err := s.GetCategory(ctx, claims, id)
	if err != nil {
		return resource.Category{}, err
	}
	if err := s.canWrite(ctx, claims); err != nil {
		return resource.Category{}, err
	}
	if req.Type != nil && !req.Type.Valid() {
		return resource.Category{}, &ValidationError{Reason: fmt.Sprintf("unknown category type %q", *req.Type)}
	}

	c.Apply(req)
	if err := s.categories.Update(ctx, c); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return resource.Category{}, ErrCategoryNotFound
		}
		return resource.Category{}, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, claims auth.Claims, id uuid.UUID) error {
	if _, err := s.GetCategory(ctx, claims, id); err != nil {
		return err
	}
	if err := s.canWrite(ctx, claims); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		if errors.Is(err, postgres.ErrRestricted) {
			return ErrCategoryInUse
		}
		if errors.Is(err, postgres.ErrNotFound) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("delete category: %w", err)
	}
	s.log.Info("category deleted", zap.String("category_id", id.String()))
	return nil
}

// ---- resources ----

func (s *Service) CreateResource(ctx context.Context, claims auth.Claims, req resource.CreateRequest) (resource.Resource, error) {
	if req.TenantID != claims.TenantID {
		return resource.Resource{}, ErrForbidden
	}
	if err := s.canWrite(ctx, claims); err != nil {
		return resource.Resource{}, err
	}
	if req.Name == "" {
		return resource.Resource{}, &ValidationError{Reason: "name is required"}
	}
	if req.Status != "" && !req.Status.Valid() {
		return resource.Resource{}, &ValidationError{Reason: fmt.Sprintf("unknown status %q", req.Status)}
	}
	if err := req.Schedule.Validate(); err != nil {
		return resource.Resource{}, &ValidationError{Reason: err.Error()}
	}
	if _, err := s.GetCategory(ctx, claims, req.CategoryID); err != nil {
		return resource.Resource{}, err
	}

	res := resource.New(req)
	if err := s.resources.Create(ctx, res); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return resource.Resource{}, ErrCategoryNotFound
		}
		return resource.Resource{}, fmt.Errorf("create resource: %w", err)
	}
	s.log.Info("resource created",
		zap.String("resource_id", res.ID.String()),
		zap.String("tenant_id", res.TenantID.String()),
		zap.String("category_id", res.CategoryID.String()))
	return res, nil
}

func (s *Service) GetResource(ctx context.Context, claims auth.Claims, id uuid.UUID) (resource.Resource, error) {
	res, err := s.resources.Get(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return resource.Resource{}, ErrResourceNotFound
		}
		return resource.Resource{}, fmt.Errorf("get resource: %w", err)
	}
	if res.TenantID != claims.TenantID {
		return resource.Resource{}, ErrResourceNotFound
	}
	return res, nil
}

func (s *Service) ListResources(ctx context.Context, claims auth.Claims, f postgres.ResourceFilter) ([]resource.Resource, error) {
	if f.TenantID != claims.TenantID {
		return nil, ErrForbidden
	}
	resources, err := s.resources.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

func (s *Service) UpdateResource(ctx context.Context, claims auth.Claims, id uuid.UUID, req resource.UpdateRequest) (resource.Resource, error) {
	res, err := s.GetResource(ctx, claims, id)
	if err != nil {
		return resource.Resource{}, err
	}
	if err := s.canWrite(ctx, claims); err != nil {
		return resource.Resource{}, err
	}
	if req.Status != nil && !req.Status.Valid() {
		return resource.Resource{}, &ValidationError{Reason: fmt.Sprintf("unknown status %q", *req.Status)}
	}
	if req.Schedule != nil {
		if err := req.Schedule.Validate(); err != nil {
			return resource.Resource{}, &ValidationError{Reason: err.Error()}
		}
	}
	if req.CategoryID != nil {
		if _, err := s.GetCategory(ctx, claims, *req.CategoryID); err != nil {
			return resource.Resource{}, err
		}
	}

	res.Apply(req)
	if err := s.resources.Update(ctx, res); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return resource.Resource{}, ErrResourceNotFound
		}
		return resource.Resource{}, fmt.Errorf("update resource: %w", err)
	}

	// Schedule or status changes make cached projections lie.
	s.cache.DeletePattern(ctx, cache.AvailabilityPattern(res.ID))
	return res, nil
}

// DeleteResource removes the resource and stages resource.deleted in
// the deleting transaction; the booking service cancels its active
// bookings when the event arrives.
func (s *Service) DeleteResource(ctx context.Context, claims auth.Claims, id uuid.UUID) error {
	res, err := s.GetResource(ctx, claims, id)
	if err != nil {
		return err
	}
	if err := s.canWrite(ctx, claims); err != nil {
		return err
	}

	env, err := event.New(event.ResourceDeleted, res.TenantID, event.ResourceDeletedPayload{
		ResourceID: res.ID,
		TenantID:   res.TenantID,
	})
	if err != nil {
		return err
	}
	if err := s.resources.Delete(ctx, id, s.deletionStream, env); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return ErrResourceNotFound
		}
		return fmt.Errorf("delete resource: %w", err)
	}

	s.cache.DeletePattern(ctx, cache.AvailabilityPattern(id))
	s.log.Info("resource deleted",
		zap.String("resource_id", id.String()),
		zap.String("tenant_id", res.TenantID.String()))
	return nil
}

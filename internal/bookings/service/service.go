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
	"booking-system/internal/domain/booking"
	"booking-system/internal/domain/event"
	"booking-system/internal/domain/resource"
	"booking-system/internal/domain/tenant"
	"booking-system/internal/domain/user"
	"booking-system/internal/repository/postgres"
)

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrResourceNotFound = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden")
	// ErrDependency marks refusals caused by an unreachable peer
	// service. Admission never falls back to guessed policy.
	ErrDependency = errors.New("dependency unavailable")
)

// ValidationError carries the reason a request was semantically
// rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ConflictError reports an admission blocked by existing bookings.
// Nothing was persisted; Conflicts lists every blocking row.
type ConflictError struct {
	Conflicts []booking.Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d conflicting bookings", len(e.Conflicts))
}

type Repository interface {
	CreateBatch(ctx context.Context, bs []booking.Booking, stream string, envs []event.Envelope) ([]booking.Conflict, error)
	UpdateAdmitted(ctx context.Context, b booking.Booking, stream string, envs []event.Envelope) ([]booking.Conflict, error)
	Update(ctx context.Context, b booking.Booking, stream string, envs []event.Envelope) error
	GetByID(ctx context.Context, id uuid.UUID) (booking.Booking, error)
	List(ctx context.Context, f postgres.BookingFilter) ([]booking.Booking, error)
	ListActiveInWindow(ctx context.Context, tenantID, resourceID uuid.UUID, from, to time.Time) ([]booking.Booking, error)
	CancelActiveByResource(ctx context.Context, resourceID uuid.UUID, reason, stream string, makeEnvs func(booking.Booking) ([]event.Envelope, error)) (int, error)
	CancelActiveByUser(ctx context.Context, userID uuid.UUID, reason, stream string, makeEnvs func(booking.Booking) ([]event.Envelope, error)) (int, error)
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// resourceReader resolves the target resource during admission.
type resourceReader interface {
	Get(ctx context.Context, id uuid.UUID) (resource.Resource, error)
}

// settingsReader resolves the tenant policy every gate reads.
type settingsReader interface {
	Settings(ctx context.Context, tenantID uuid.UUID) (tenant.Settings, error)
}

// permissionReader resolves permission bits absent from the claims.
type permissionReader interface {
	GetMemoized(ctx context.Context, id uuid.UUID) (user.User, error)
}

type Service struct {
	repo          Repository
	resources     resourceReader
	settings      settingsReader
	users         permissionReader
	log           *zap.Logger
	bookingStream string
	now           func() time.Time
}

func New(
	repo Repository,
	resources *clients.ResourceClient,
	settings *clients.SettingsProvider,
	users *clients.UserClient,
	logger *zap.Logger,
	bookingStream string,
) *Service {
	return &Service{
		repo:          repo,
		resources:     resources,
		settings:      settings,
		users:         users,
		log:           logger,
		bookingStream: bookingStream,
		now:           time.Now,
	}
}

// permission resolves one permission bit through the user service.
// Admins pass on their claims alone.
func (s *Service) permission(ctx context.Context, claims auth.Claims, pick func(user.Permissions) bool) error {
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
	if !pick(u.Permissions) {
		return ErrForbidden
	}
	return nil
}

// canTouch grants lifecycle changes on a booking: its holder or a
// tenant admin.
func canTouch(claims auth.Claims, b booking.Booking) bool {
	if b.TenantID != claims.TenantID {
		return false
	}
	return claims.IsAdmin() || b.UserID == claims.UserID
}

func (s *Service) Get(ctx context.Context, claims auth.Claims, id uuid.UUID) (booking.Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return booking.Booking{}, ErrBookingNotFound
		}
		return booking.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	if b.TenantID != claims.TenantID {
		return booking.Booking{}, ErrBookingNotFound
	}
	if b.UserID != claims.UserID {
		if err := s.permission(ctx, claims, func(p user.Permissions) bool { return p.CanViewAllBookings }); err != nil {
			return booking.Booking{}, err
		}
	}
	return b, nil
}

// View is a booking plus the caller-facing cancellation verdict.
type View struct {
	booking.Booking
	CanCancel bool `json:"can_cancel"`
}

// List returns the tenant's bookings. Callers without
// can_view_all_bookings are pinned to their own rows regardless of the
// requested user_id filter.
func (s *Service) List(ctx context.Context, claims auth.Claims, f postgres.BookingFilter) ([]View, error) {
	if f.TenantID == uuid.Nil {
		f.TenantID = claims.TenantID
	}
	if f.TenantID != claims.TenantID {
		return nil, ErrForbidden
	}
	if err := s.permission(ctx, claims, func(p user.Permissions) bool { return p.CanViewAllBookings }); err != nil {
		if !errors.Is(err, ErrForbidden) {
			return nil, err
		}
		f.UserID = &claims.UserID
	}

	settings, err := s.settings.Settings(ctx, f.TenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	bookings, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	now := s.now()
	views := make([]View, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, View{
			Booking:   b,
			CanCancel: b.CanBeCancelled(now, settings.CancellationHours),
		})
	}
	return views, nil
}

// WindowItem is the privacy-reduced projection served to the
// availability computation: interval and status, no holder, no notes.
type WindowItem struct {
	BookingID uuid.UUID      `json:"booking_id"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Status    booking.Status `json:"status"`
}

// ResourceWindow lists the active bookings of a resource overlapping
// [from, to). Open to every authenticated user of the tenant; the
// tenant scope of the query hides foreign resources by construction.
func (s *Service) ResourceWindow(ctx context.Context, claims auth.Claims, resourceID uuid.UUID, from, to time.Time) ([]WindowItem, error) {
	if !to.After(from) {
		return nil, &ValidationError{Reason: "to must be after from"}
	}
	bookings, err := s.repo.ListActiveInWindow(ctx, claims.TenantID, resourceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list resource window: %w", err)
	}
	items := make([]WindowItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, WindowItem{
			BookingID: b.ID,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Status:    b.Status,
		})
	}
	return items, nil
}

// Delete hard-removes a booking. Administrative escape hatch: no
// events, the interval simply frees up.
func (s *Service) Delete(ctx context.Context, claims auth.Claims, id uuid.UUID) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return ErrBookingNotFound
		}
		return fmt.Errorf("get booking: %w", err)
	}
	if !claims.AdminOf(b.TenantID) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return ErrBookingNotFound
		}
		return fmt.Errorf("delete booking: %w", err)
	}
	s.log.Info("booking deleted", zap.String("booking_id", id.String()))
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	"booking-system/internal/domain/booking"
	"booking-system/internal/domain/event"
	"booking-system/internal/domain/tenant"
	"booking-system/internal/repository/postgres"
)

type UpdateRequest struct {
	ResourceID *uuid.UUID      `json:"resource_id"`
	ClientID   *uuid.UUID      `json:"client_id"`
	StartTime  *string         `json:"start_time"`
	EndTime    *string         `json:"end_time"`
	Status     *booking.Status `json:"status"`
	Notes      *string         `json:"notes"`
}

// Update rewrites a booking. Moving its interval or resource re-runs
// the full admission pipeline with the row itself excluded from the
// conflict probe; notes and administrative status transitions do not.
// Emits booking.updated naming the changed fields, plus
// booking.status_changed (and booking.cancelled) when status moved.
func (s *Service) Update(ctx context.Context, claims auth.Claims, id uuid.UUID, req UpdateRequest) (booking.Booking, error) {
	b, err := s.Get(ctx, claims, id)
	if err != nil {
		return booking.Booking{}, err
	}
	if !canTouch(claims, b) {
		return booking.Booking{}, ErrForbidden
	}

	now := s.now()
	var changes []string

	// Policy is only consulted when the change needs it: moved times,
	// a moved resource, or a cancellation that must respect the window.
	needsPolicy := req.StartTime != nil || req.EndTime != nil || req.ResourceID != nil ||
		(req.Status != nil && *req.Status == booking.StatusCancelado)

	settings, loc, err := s.policyFor(ctx, b.TenantID, needsPolicy)
	if err != nil {
		return booking.Booking{}, err
	}

	newStart, newEnd := b.StartTime, b.EndTime
	if req.StartTime != nil {
		if newStart, err = parseTime(*req.StartTime, loc); err != nil {
			return booking.Booking{}, &ValidationError{Reason: err.Error()}
		}
	}
	if req.EndTime != nil {
		if newEnd, err = parseTime(*req.EndTime, loc); err != nil {
			return booking.Booking{}, &ValidationError{Reason: err.Error()}
		}
	}
	newResource := b.ResourceID
	if req.ResourceID != nil {
		newResource = *req.ResourceID
	}

	timeMoved := !newStart.Equal(b.StartTime) || !newEnd.Equal(b.EndTime)
	resourceMoved := newResource != b.ResourceID

	if timeMoved || resourceMoved {
		if !b.Status.IsActive() {
			return booking.Booking{}, &ValidationError{Reason: "a cancelled booking cannot be rescheduled"}
		}
		if !newEnd.After(newStart) {
			return booking.Booking{}, &ValidationError{Reason: "end_time must be after start_time"}
		}
		res, err := s.resolveResource(ctx, b.TenantID, newResource)
		if err != nil {
			return booking.Booking{}, err
		}
		if err := checkAdmission(newStart, newEnd, now, loc, settings, res.Schedule); err != nil {
			return booking.Booking{}, err
		}
		if !newStart.Equal(b.StartTime) {
			changes = append(changes, "start_time")
		}
		if !newEnd.Equal(b.EndTime) {
			changes = append(changes, "end_time")
		}
		if resourceMoved {
			changes = append(changes, "resource_id")
		}
		b.StartTime = newStart.UTC()
		b.EndTime = newEnd.UTC()
		b.ResourceID = newResource
	}

	statusChanged := false
	if req.Status != nil && *req.Status != b.Status {
		if !req.Status.Valid() {
			return booking.Booking{}, &ValidationError{Reason: fmt.Sprintf("unknown status %q", *req.Status)}
		}
		if !b.Status.CanTransitionTo(*req.Status) {
			return booking.Booking{}, &ValidationError{
				Reason: fmt.Sprintf("cannot transition from %s to %s", b.Status, *req.Status),
			}
		}
		if *req.Status == booking.StatusCancelado {
			if !b.CanBeCancelled(now, settings.CancellationHours) {
				return booking.Booking{}, &ValidationError{
					Reason: fmt.Sprintf("cancellation closes %d hours before the start", settings.CancellationHours),
				}
			}
			by := claims.UserID
			b.Cancel(now, &by, nil)
		} else {
			b.Status = *req.Status
		}
		changes = append(changes, "status")
		statusChanged = true
	}

	if req.Notes != nil && !equalStringPtr(req.Notes, b.Notes) {
		b.Notes = req.Notes
		changes = append(changes, "notes")
	}
	if req.ClientID != nil && !equalUUIDPtr(req.ClientID, b.ClientID) {
		b.ClientID = req.ClientID
		changes = append(changes, "client_id")
	}

	if len(changes) == 0 {
		return b, nil
	}
	b.UpdatedAt = now.UTC()

	envs, err := s.updateEnvs(b, changes, statusChanged)
	if err != nil {
		return booking.Booking{}, err
	}

	if timeMoved || resourceMoved {
		conflicts, err := s.repo.UpdateAdmitted(ctx, b, s.bookingStream, envs)
		if err != nil {
			return booking.Booking{}, fmt.Errorf("readmit booking: %w", err)
		}
		if len(conflicts) > 0 {
			return booking.Booking{}, &ConflictError{Conflicts: conflicts}
		}
	} else {
		if err := s.repo.Update(ctx, b, s.bookingStream, envs); err != nil {
			if errors.Is(err, postgres.ErrNotFound) {
				return booking.Booking{}, ErrBookingNotFound
			}
			return booking.Booking{}, fmt.Errorf("update booking: %w", err)
		}
	}

	s.log.Info("booking updated",
		zap.String("booking_id", b.ID.String()),
		zap.Strings("changes", changes))
	return b, nil
}

// Cancel applies the tenant's cancellation window and moves the
// booking to cancelado, recording who and why.
func (s *Service) Cancel(ctx context.Context, claims auth.Claims, id uuid.UUID, cancelledBy *uuid.UUID, reason *string) (booking.Booking, error) {
	b, err := s.Get(ctx, claims, id)
	if err != nil {
		return booking.Booking{}, err
	}
	if !canTouch(claims, b) {
		return booking.Booking{}, ErrForbidden
	}
	if cancelledBy == nil {
		by := claims.UserID
		cancelledBy = &by
	} else if *cancelledBy != claims.UserID && !claims.IsAdmin() {
		return booking.Booking{}, ErrForbidden
	}

	if !b.Status.IsActive() {
		return booking.Booking{}, &ValidationError{Reason: "booking is already cancelled"}
	}
	settings, err := s.settings.Settings(ctx, b.TenantID)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	now := s.now()
	if !b.CanBeCancelled(now, settings.CancellationHours) {
		return booking.Booking{}, &ValidationError{
			Reason: fmt.Sprintf("cancellation closes %d hours before the start", settings.CancellationHours),
		}
	}

	b.Cancel(now, cancelledBy, reason)
	envs, err := s.updateEnvs(b, nil, true)
	if err != nil {
		return booking.Booking{}, err
	}
	if err := s.repo.Update(ctx, b, s.bookingStream, envs); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return booking.Booking{}, ErrBookingNotFound
		}
		return booking.Booking{}, fmt.Errorf("cancel booking: %w", err)
	}

	s.log.Info("booking cancelled",
		zap.String("booking_id", b.ID.String()),
		zap.String("cancelled_by", cancelledBy.String()))
	return b, nil
}

// ChangeStatus performs one validated state-machine transition.
// Cancelling through here honors the same window as Cancel.
func (s *Service) ChangeStatus(ctx context.Context, claims auth.Claims, id uuid.UUID, next booking.Status) (booking.Booking, error) {
	if !next.Valid() {
		return booking.Booking{}, &ValidationError{Reason: fmt.Sprintf("unknown status %q", next)}
	}
	b, err := s.Get(ctx, claims, id)
	if err != nil {
		return booking.Booking{}, err
	}
	if !canTouch(claims, b) {
		return booking.Booking{}, ErrForbidden
	}
	if next == b.Status {
		return b, nil
	}
	if !b.Status.CanTransitionTo(next) {
		return booking.Booking{}, &ValidationError{
			Reason: fmt.Sprintf("cannot transition from %s to %s", b.Status, next),
		}
	}

	now := s.now()
	if next == booking.StatusCancelado {
		settings, err := s.settings.Settings(ctx, b.TenantID)
		if err != nil {
			return booking.Booking{}, fmt.Errorf("%w: %v", ErrDependency, err)
		}
		if !b.CanBeCancelled(now, settings.CancellationHours) {
			return booking.Booking{}, &ValidationError{
				Reason: fmt.Sprintf("cancellation closes %d hours before the start", settings.CancellationHours),
			}
		}
		by := claims.UserID
		b.Cancel(now, &by, nil)
	} else {
		b.Status = next
		b.UpdatedAt = now.UTC()
	}

	envs, err := s.updateEnvs(b, nil, true)
	if err != nil {
		return booking.Booking{}, err
	}
	if err := s.repo.Update(ctx, b, s.bookingStream, envs); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return booking.Booking{}, ErrBookingNotFound
		}
		return booking.Booking{}, fmt.Errorf("change booking status: %w", err)
	}

	s.log.Info("booking status changed",
		zap.String("booking_id", b.ID.String()),
		zap.String("status", string(b.Status)))
	return b, nil
}

// policyFor resolves settings and location when the operation needs
// policy; otherwise both stay zero-valued and unused.
func (s *Service) policyFor(ctx context.Context, tenantID uuid.UUID, needed bool) (tenant.Settings, *time.Location, error) {
	if !needed {
		return tenant.Settings{}, time.UTC, nil
	}
	settings, err := s.settings.Settings(ctx, tenantID)
	if err != nil {
		return tenant.Settings{}, nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	loc, err := settings.Location()
	if err != nil {
		return tenant.Settings{}, nil, fmt.Errorf("resolve tenant timezone: %w", err)
	}
	return settings, loc, nil
}

// updateEnvs stages the events of a lifecycle change: booking.updated
// when field names are given, booking.status_changed when the status
// moved, booking.cancelled when it moved to cancelado.
func (s *Service) updateEnvs(b booking.Booking, changes []string, statusChanged bool) ([]event.Envelope, error) {
	var envs []event.Envelope
	if len(changes) > 0 {
		env, err := event.New(event.BookingUpdated, b.TenantID, event.BookingUpdatedPayload{
			BookingID:  b.ID,
			ResourceID: b.ResourceID,
			Changes:    changes,
		})
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	if statusChanged {
		env, err := event.New(event.BookingStatusChanged, b.TenantID, event.BookingStatusChangedPayload{
			BookingID:  b.ID,
			ResourceID: b.ResourceID,
			Status:     string(b.Status),
		})
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
		if b.Status == booking.StatusCancelado {
			env, err := event.New(event.BookingCancelled, b.TenantID, event.BookingCancelledPayload{
				BookingID:   b.ID,
				ResourceID:  b.ResourceID,
				CancelledBy: b.CancelledBy,
				Reason:      strOrEmpty(b.CancellationReason),
			})
			if err != nil {
				return nil, err
			}
			envs = append(envs, env)
		}
	}
	return envs, nil
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalUUIDPtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

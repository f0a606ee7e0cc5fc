package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"booking-system/internal/domain/booking"
	"booking-system/internal/domain/event"
)

// Cascade cancellation reasons recorded on the affected rows.
const (
	reasonResourceDeleted = "resource_deleted"
	reasonUserDeleted     = "user_deleted"
)

// HandleDeletionEvent applies upstream deletions to the booking store.
// resource.deleted and user.deleted bulk-cancel the active bookings
// they orphan, one booking.cancelled per row, skipping the
// cancellation window because the triggering entity no longer exists.
// tenant.deleted removes rows outright with no per-row events. All
// three are no-ops on redelivery.
func (s *Service) HandleDeletionEvent(ctx context.Context, env event.Envelope) error {
	switch env.Type {
	case event.ResourceDeleted:
		var payload event.ResourceDeletedPayload
		if err := env.Decode(&payload); err != nil {
			s.log.Warn("malformed deletion event", zap.String("event_type", env.Type), zap.Error(err))
			return nil
		}
		n, err := s.repo.CancelActiveByResource(ctx, payload.ResourceID, reasonResourceDeleted, s.bookingStream, cascadeEnvs)
		if err != nil {
			return fmt.Errorf("cascade resource bookings: %w", err)
		}
		s.log.Info("resource cascade applied",
			zap.String("resource_id", payload.ResourceID.String()),
			zap.Int("cancelled", n))
	case event.UserDeleted:
		var payload event.UserDeletedPayload
		if err := env.Decode(&payload); err != nil {
			s.log.Warn("malformed deletion event", zap.String("event_type", env.Type), zap.Error(err))
			return nil
		}
		n, err := s.repo.CancelActiveByUser(ctx, payload.UserID, reasonUserDeleted, s.bookingStream, cascadeEnvs)
		if err != nil {
			return fmt.Errorf("cascade user bookings: %w", err)
		}
		s.log.Info("user cascade applied",
			zap.String("user_id", payload.UserID.String()),
			zap.Int("cancelled", n))
	case event.TenantDeleted:
		var payload event.TenantDeletedPayload
		if err := env.Decode(&payload); err != nil {
			s.log.Warn("malformed deletion event", zap.String("event_type", env.Type), zap.Error(err))
			return nil
		}
		n, err := s.repo.DeleteByTenant(ctx, payload.TenantID)
		if err != nil {
			return fmt.Errorf("cascade tenant bookings: %w", err)
		}
		s.log.Info("tenant cascade applied",
			zap.String("tenant_id", payload.TenantID.String()),
			zap.Int64("deleted", n))
	}
	return nil
}

// cascadeEnvs builds the notification staged with each bulk-cancelled
// row. The repository already stamped the cancellation reason.
func cascadeEnvs(b booking.Booking) ([]event.Envelope, error) {
	env, err := event.New(event.BookingCancelled, b.TenantID, event.BookingCancelledPayload{
		BookingID:   b.ID,
		ResourceID:  b.ResourceID,
		CancelledBy: b.CancelledBy,
		Reason:      strOrEmpty(b.CancellationReason),
	})
	if err != nil {
		return nil, err
	}
	return []event.Envelope{env}, nil
}

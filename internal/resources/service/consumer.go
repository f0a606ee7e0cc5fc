package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-system/internal/domain/event"
	"booking-system/pkg/cache"
)

// HandleBookingEvent invalidates the cached availability of the booked
// resource. Every booking lifecycle payload carries resource_id.
func (s *Service) HandleBookingEvent(ctx context.Context, env event.Envelope) error {
	var payload struct {
		ResourceID uuid.UUID `json:"resource_id"`
	}
	if err := env.Decode(&payload); err != nil {
		s.log.Warn("malformed booking event", zap.String("event_type", env.Type), zap.Error(err))
		return nil
	}
	if payload.ResourceID == uuid.Nil {
		return nil
	}
	s.cache.DeletePattern(ctx, cache.AvailabilityPattern(payload.ResourceID))
	return nil
}

// HandleDeletionEvent reacts to cascades. tenant.deleted removes the
// tenant's resources before its categories so the FK never blocks;
// resource.deleted only clears cached projections, the row is already
// gone. Reprocessing a delivered event is harmless.
func (s *Service) HandleDeletionEvent(ctx context.Context, env event.Envelope) error {
	switch env.Type {
	case event.TenantDeleted:
		var payload event.TenantDeletedPayload
		if err := env.Decode(&payload); err != nil {
			s.log.Warn("malformed deletion event", zap.String("event_type", env.Type), zap.Error(err))
			return nil
		}
		resources, err := s.resources.DeleteByTenant(ctx, payload.TenantID)
		if err != nil {
			return fmt.Errorf("cascade tenant resources: %w", err)
		}
		categories, err := s.categories.DeleteByTenant(ctx, payload.TenantID)
		if err != nil {
			return fmt.Errorf("cascade tenant categories: %w", err)
		}
		s.log.Info("tenant cascade applied",
			zap.String("tenant_id", payload.TenantID.String()),
			zap.Int64("resources", resources),
			zap.Int64("categories", categories))
	case event.ResourceDeleted:
		var payload event.ResourceDeletedPayload
		if err := env.Decode(&payload); err != nil {
			s.log.Warn("malformed deletion event", zap.String("event_type", env.Type), zap.Error(err))
			return nil
		}
		s.cache.DeletePattern(ctx, cache.AvailabilityPattern(payload.ResourceID))
	}
	return nil
}

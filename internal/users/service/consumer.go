package service

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"booking-system/internal/domain/event"
)

var notifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "user_notifications_total",
	Help: "Booking events the user service would notify about.",
}, []string{"event_type"})

// HandleBookingEvent records the notification that a real channel
// (email, SMS) would deliver. Delivery itself is out of scope; the
// log line and counter keep the pipeline observable end to end.
func (s *Service) HandleBookingEvent(ctx context.Context, env event.Envelope) error {
	notifications.WithLabelValues(env.Type).Inc()
	s.log.Info("notification",
		zap.String("event_type", env.Type),
		zap.String("tenant_id", env.Metadata.TenantID.String()))
	return nil
}

// HandleDeletionEvent reacts to tenant.deleted by removing the
// tenant's users. Deleting zero rows on redelivery is the idempotent
// no-op.
func (s *Service) HandleDeletionEvent(ctx context.Context, env event.Envelope) error {
	if env.Type != event.TenantDeleted {
		return nil
	}
	var payload event.TenantDeletedPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	removed, err := s.repo.DeleteByTenant(ctx, payload.TenantID)
	if err != nil {
		return fmt.Errorf("cascade tenant.deleted: %w", err)
	}
	s.log.Info("tenant users removed",
		zap.String("tenant_id", payload.TenantID.String()),
		zap.Int64("count", removed))
	return nil
}

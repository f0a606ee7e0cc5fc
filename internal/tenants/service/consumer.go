package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"booking-system/internal/domain/event"
	"booking-system/pkg/webhook"
)

// HandleBookingEvent fans one consumed booking event out to the
// tenant's active webhooks that subscribed to its type. Each endpoint
// gets exactly one attempt per event; failed endpoints are logged, not
// retried, so one dead endpoint cannot wedge the stream.
func (s *Service) HandleBookingEvent(ctx context.Context, env event.Envelope) error {
	hooks, err := s.webhooks.ListActiveByTenant(ctx, env.Metadata.TenantID)
	if err != nil {
		return fmt.Errorf("load webhooks: %w", err)
	}

	for _, h := range hooks {
		if !h.SubscribedTo(env.Type) {
			continue
		}
		target := webhook.Target{ID: h.ID, URL: h.URL}
		if h.Secret != nil {
			target.Secret = *h.Secret
		}
		delivery := s.sender.Send(ctx, target, env.Type, env.Payload)
		if delivery.Success {
			s.log.Info("webhook delivered",
				zap.String("webhook_id", h.ID.String()),
				zap.String("event_type", env.Type),
				zap.Int("status", delivery.StatusCode))
		} else {
			s.log.Warn("webhook delivery failed",
				zap.String("webhook_id", h.ID.String()),
				zap.String("event_type", env.Type),
				zap.String("error", delivery.Error))
		}
	}
	return nil
}

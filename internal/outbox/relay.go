// Package outbox moves transactionally staged events onto the Redis
// streams. Rows are published in commit order and marked afterwards,
// so a crash between the two steps re-publishes rather than loses;
// consumers absorb the duplicate.
package outbox

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"booking-system/internal/domain/event"
	"booking-system/internal/repository/postgres"
)

const (
	pollInterval = 500 * time.Millisecond
	batchSize    = 100
)

var relayed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "outbox_events_relayed_total",
	Help: "Outbox rows published to their stream.",
}, []string{"stream"})

type source interface {
	PendingBatch(ctx context.Context, limit int) ([]postgres.PendingEvent, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

type publisher interface {
	Publish(ctx context.Context, stream string, env event.Envelope) error
}

type Relay struct {
	repo source
	pub  publisher
	log  *zap.Logger
}

func NewRelay(repo *postgres.OutboxRepository, pub publisher, logger *zap.Logger) *Relay {
	return &Relay{repo: repo, pub: pub, log: logger}
}

// Run polls until the context ends. Errors are logged and retried on
// the next tick; the loop never gives up.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn("outbox drain failed", zap.Error(err))
			}
		}
	}
}

// drain publishes every pending row, batch by batch.
func (r *Relay) drain(ctx context.Context) error {
	for {
		batch, err := r.repo.PendingBatch(ctx, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		done := make([]int64, 0, len(batch))
		for _, p := range batch {
			if err := r.pub.Publish(ctx, p.Stream, p.Envelope); err != nil {
				// Settle what went out; the rest stays pending.
				if markErr := r.repo.MarkPublished(ctx, done); markErr != nil {
					r.log.Warn("mark published failed", zap.Error(markErr))
				}
				return err
			}
			relayed.WithLabelValues(p.Stream).Inc()
			done = append(done, p.ID)
		}
		if err := r.repo.MarkPublished(ctx, done); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
	}
}

// Package stream implements the event fabric over Redis Streams:
// a capped-stream publisher and consumer groups with pending-entry
// recovery. Delivery is at-least-once; handlers are expected to be
// idempotent.
package stream

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"booking-system/internal/domain/event"
)

// maxStreamLen keeps streams bounded; trimming is approximate so XADD
// stays O(1).
const maxStreamLen = 1000

var (
	published = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Events appended to a stream.",
	}, []string{"stream", "event_type"})
	publishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failures_total",
		Help: "XADD attempts that failed.",
	}, []string{"stream"})
)

// adder is the single Redis call the publisher needs.
type adder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type Publisher struct {
	rdb adder
	log *zap.Logger
}

func NewPublisher(rdb *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{rdb: rdb, log: logger}
}

// Publish appends one envelope to stream.
func (p *Publisher) Publish(ctx context.Context, stream string, env event.Envelope) error {
	values, err := env.Values()
	if err != nil {
		return err
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		publishFailures.WithLabelValues(stream).Inc()
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	published.WithLabelValues(stream, env.Type).Inc()
	p.log.Debug("event published",
		zap.String("stream", stream),
		zap.String("event_type", env.Type))
	return nil
}

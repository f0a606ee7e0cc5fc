package stream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"booking-system/internal/domain/event"
)

const (
	readCount    = 10
	readBlock    = 5 * time.Second
	pendingBatch = 100
	retryDelay   = time.Second
)

var (
	consumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_consumed_total",
		Help: "Events acknowledged by a consumer group.",
	}, []string{"stream", "group", "event_type"})
	handlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_handler_failures_total",
		Help: "Handler invocations that errored; the entry stays pending.",
	}, []string{"stream", "group", "event_type"})
)

// Handler processes one delivered envelope. Returning nil acks the
// entry; returning an error leaves it pending for redelivery.
type Handler func(ctx context.Context, env event.Envelope) error

// Consumer joins a consumer group on one stream and dispatches
// entries to registered handlers. Entries without a handler are acked
// immediately so unrelated event kinds never pile up.
type Consumer struct {
	rdb      *redis.Client
	stream   string
	group    string
	name     string
	handlers map[string]Handler
	log      *zap.Logger
}

func NewConsumer(rdb *redis.Client, stream, group, name string, logger *zap.Logger) *Consumer {
	return &Consumer{
		rdb:      rdb,
		stream:   stream,
		group:    group,
		name:     name,
		handlers: map[string]Handler{},
		log: logger.With(
			zap.String("stream", stream),
			zap.String("group", group),
			zap.String("consumer", name)),
	}
}

// Handle registers a handler for one event kind. Not safe to call
// after Run starts.
func (c *Consumer) Handle(kind string, h Handler) {
	c.handlers[kind] = h
}

// Run blocks, reading the group until ctx is cancelled. On startup it
// first reprocesses entries a previous incarnation of this consumer
// claimed but never acked.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}
	c.recoverPending(ctx)
	c.log.Info("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("consumer stopped")
			return nil
		default:
		}

		res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				c.log.Info("consumer stopped")
				return nil
			}
			c.log.Error("read group failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}
		for _, s := range res {
			for _, msg := range s.Messages {
				c.process(ctx, msg)
			}
		}
	}
}

// ensureGroup creates the group at the stream head, creating the
// stream if needed. An already-existing group is fine.
func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// recoverPending re-runs entries this consumer read but never acked.
// Entries that fail again simply stay pending; operators can inspect
// them with XPENDING.
func (c *Consumer) recoverPending(ctx context.Context) {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   c.stream,
		Group:    c.group,
		Start:    "-",
		End:      "+",
		Count:    pendingBatch,
		Consumer: c.name,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("pending lookup failed", zap.Error(err))
		}
		return
	}
	if len(pending) == 0 {
		return
	}
	c.log.Info("reprocessing pending entries", zap.Int("count", len(pending)))

	for _, p := range pending {
		entries, err := c.rdb.XRangeN(ctx, c.stream, p.ID, p.ID, 1).Result()
		if err != nil || len(entries) == 0 {
			continue
		}
		c.process(ctx, entries[0])
	}
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	env, err := event.FromValues(msg.Values)
	if err != nil {
		// Unparseable entries can never succeed; leave them pending
		// for an operator rather than silently dropping them.
		c.log.Error("malformed stream entry", zap.String("id", msg.ID), zap.Error(err))
		return
	}

	handler, ok := c.handlers[env.Type]
	if !ok {
		c.ack(ctx, msg.ID, env.Type)
		return
	}

	tracer := otel.Tracer("booking-system/pkg/stream")
	handlerCtx, span := tracer.Start(ctx, "consume "+env.Type,
		trace.WithSpanKind(trace.SpanKindConsumer))
	err = handler(handlerCtx, env)
	span.End()

	if err != nil {
		handlerFailures.WithLabelValues(c.stream, c.group, env.Type).Inc()
		c.log.Error("handler failed",
			zap.String("id", msg.ID),
			zap.String("event_type", env.Type),
			zap.Error(err))
		return
	}
	c.ack(ctx, msg.ID, env.Type)
}

func (c *Consumer) ack(ctx context.Context, id, kind string) {
	if err := c.rdb.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		c.log.Warn("ack failed", zap.String("id", id), zap.Error(err))
		return
	}
	consumed.WithLabelValues(c.stream, c.group, kind).Inc()
}

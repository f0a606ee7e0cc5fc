package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"booking-system/internal/domain/event"
)

// enqueueEvent stages an envelope in the outbox. Called with the
// transaction of the domain write so the event exists iff the write
// committed.
func enqueueEvent(ctx context.Context, q querier, stream string, env event.Envelope) error {
	meta, err := json.Marshal(env.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO event_outbox (stream, event_type, payload, metadata)
		VALUES ($1, $2, $3, $4)`,
		stream, env.Type, []byte(env.Payload), meta)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", env.Type, err)
	}
	return nil
}

// PendingEvent is an outbox row awaiting publication.
type PendingEvent struct {
	ID       int64
	Stream   string
	Envelope event.Envelope
}

// OutboxRepository reads and settles staged events for the relay.
type OutboxRepository struct {
	db *pgxpool.Pool
}

func NewOutboxRepository(db *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// PendingBatch returns up to limit unpublished events in commit order.
func (r *OutboxRepository) PendingBatch(ctx context.Context, limit int) ([]PendingEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, stream, event_type, payload, metadata
		FROM event_outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()

	var batch []PendingEvent
	for rows.Next() {
		var (
			p             PendingEvent
			payload, meta []byte
		)
		if err := rows.Scan(&p.ID, &p.Stream, &p.Envelope.Type, &payload, &meta); err != nil {
			return nil, fmt.Errorf("scan pending event: %w", err)
		}
		p.Envelope.Payload = payload
		if err := json.Unmarshal(meta, &p.Envelope.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of event %d: %w", p.ID, err)
		}
		batch = append(batch, p)
	}
	return batch, rows.Err()
}

// MarkPublished settles rows the relay has handed to the stream.
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE event_outbox SET published_at = $1
		WHERE id = ANY($2)`,
		time.Now().UTC(), ids)
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}

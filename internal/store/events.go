package store

import (
	"context"
	"time"
)

// Event is a persisted domain event awaiting fan-out.
type Event struct {
	ID          string
	Topic       string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// Events persists the domain event outbox.
type Events struct {
	DB DBTX
}

// Insert appends an event; run inside the transaction that produced it.
func (r Events) Insert(ctx context.Context, id, topic string, payload []byte) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO domain_events (id, topic, payload) VALUES ($1, $2, $3)`, id, topic, payload)
	return err
}

// ListUnpublished returns the oldest pending events up to limit.
func (r Events) ListUnpublished(ctx context.Context, limit int32) ([]Event, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, topic, payload, created_at, published_at
		FROM domain_events WHERE published_at IS NULL
		ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Topic, &e.Payload, &e.CreatedAt, &e.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkPublished stamps events as fanned out.
func (r Events) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.DB.Exec(ctx, `
		UPDATE domain_events SET published_at = now() WHERE id = ANY($1)`, ids)
	return err
}

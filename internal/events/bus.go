package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/awibowo/backend-storefront/internal/store"
)

// EventStore defines the outbox operations required by the bus.
type EventStore interface {
	Insert(ctx context.Context, id, topic string, payload []byte) error
	ListUnpublished(ctx context.Context, limit int32) ([]store.Event, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// Handler reacts to a delivered event (email, metrics, etc.).
type Handler func(ctx context.Context, ev store.Event) error

// Bus persists domain events and fans them out to subscribed handlers.
// Events written directly to the outbox inside a transaction (the checkout
// path) are picked up by Relay instead of being delivered inline.
type Bus struct {
	Store EventStore

	mu   sync.RWMutex
	subs map[string][]Handler
}

// NewBus returns a bus backed by the given outbox store.
func NewBus(st EventStore) *Bus {
	return &Bus{Store: st, subs: map[string][]Handler{}}
}

// Subscribe registers a handler for a topic. Handlers registered under "*"
// receive every event.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], h)
}

// Emit records the event and dispatches it to all matching handlers.
func (b *Bus) Emit(ctx context.Context, topic string, payload any) error {
	if b == nil || b.Store == nil {
		return errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("events: topic is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("events: encode payload: %w", err)
	}
	ev := store.Event{ID: uuid.NewString(), Topic: topic, Payload: encoded}
	if err := b.Store.Insert(ctx, ev.ID, ev.Topic, ev.Payload); err != nil {
		return fmt.Errorf("events: persist event: %w", err)
	}
	if err := b.dispatch(ctx, ev); err != nil {
		return err
	}
	return b.Store.MarkPublished(ctx, []string{ev.ID})
}

// Relay delivers pending outbox events and marks the delivered ones as
// published. Events whose handlers fail stay pending for the next pass.
// It reports how many events were published.
func (b *Bus) Relay(ctx context.Context, batch int32) (int, error) {
	pending, err := b.Store.ListUnpublished(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("events: list pending: %w", err)
	}
	var (
		done   []string
		joined error
	)
	for _, ev := range pending {
		if err := b.dispatch(ctx, ev); err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		done = append(done, ev.ID)
	}
	if len(done) > 0 {
		if err := b.Store.MarkPublished(ctx, done); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: mark published: %w", err))
		}
	}
	return len(done), joined
}

func (b *Bus) dispatch(ctx context.Context, ev store.Event) error {
	b.mu.RLock()
	handlers := append(append([]Handler(nil), b.subs[ev.Topic]...), b.subs["*"]...)
	b.mu.RUnlock()

	var joined error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: handler for %s: %w", ev.Topic, err))
		}
	}
	return joined
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		return encodePayload([]byte(v))
	default:
		return json.Marshal(v)
	}
}

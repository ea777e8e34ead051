package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/awibowo/backend-storefront/internal/store"
)

type memOutbox struct {
	rows []store.Event
}

func (m *memOutbox) Insert(_ context.Context, id, topic string, payload []byte) error {
	m.rows = append(m.rows, store.Event{ID: id, Topic: topic, Payload: payload, CreatedAt: time.Now()})
	return nil
}

func (m *memOutbox) ListUnpublished(_ context.Context, limit int32) ([]store.Event, error) {
	var out []store.Event
	for _, e := range m.rows {
		if e.PublishedAt == nil {
			out = append(out, e)
		}
		if int32(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (m *memOutbox) MarkPublished(_ context.Context, ids []string) error {
	now := time.Now()
	for _, id := range ids {
		for i := range m.rows {
			if m.rows[i].ID == id {
				m.rows[i].PublishedAt = &now
			}
		}
	}
	return nil
}

func (m *memOutbox) pendingCount() int {
	n := 0
	for _, e := range m.rows {
		if e.PublishedAt == nil {
			n++
		}
	}
	return n
}

func TestEmitPersistsAndDispatches(t *testing.T) {
	outbox := &memOutbox{}
	bus := NewBus(outbox)

	var got []string
	bus.Subscribe(TopicOrderCreated, func(_ context.Context, ev store.Event) error {
		got = append(got, string(ev.Payload))
		return nil
	})

	err := bus.Emit(context.Background(), TopicOrderCreated, map[string]string{"order_id": "o1"})
	require.NoError(t, err)
	require.Equal(t, []string{`{"order_id":"o1"}`}, got)
	require.Len(t, outbox.rows, 1)
	require.Zero(t, outbox.pendingCount(), "emitted event is marked published")
}

func TestEmitRejectsInvalidPayload(t *testing.T) {
	bus := NewBus(&memOutbox{})
	err := bus.Emit(context.Background(), TopicOrderPaid, []byte("not json"))
	require.Error(t, err)

	err = bus.Emit(context.Background(), "  ", nil)
	require.Error(t, err)
}

func TestRelayDeliversPendingEvents(t *testing.T) {
	outbox := &memOutbox{}
	// Written straight to the outbox, the way checkout does inside its tx.
	require.NoError(t, outbox.Insert(context.Background(), "e1", TopicOrderCreated, []byte(`{"order_id":"o1"}`)))
	require.NoError(t, outbox.Insert(context.Background(), "e2", TopicOrderPaid, []byte(`{"order_id":"o1"}`)))

	bus := NewBus(outbox)
	var topics []string
	bus.Subscribe("*", func(_ context.Context, ev store.Event) error {
		topics = append(topics, ev.Topic)
		return nil
	})

	n, err := bus.Relay(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{TopicOrderCreated, TopicOrderPaid}, topics)
	require.Zero(t, outbox.pendingCount())
}

func TestRelayKeepsFailedEventsPending(t *testing.T) {
	outbox := &memOutbox{}
	require.NoError(t, outbox.Insert(context.Background(), "e1", TopicOrderCreated, []byte(`{}`)))
	require.NoError(t, outbox.Insert(context.Background(), "e2", TopicPaymentFailed, []byte(`{}`)))

	bus := NewBus(outbox)
	bus.Subscribe(TopicPaymentFailed, func(context.Context, store.Event) error {
		return errors.New("smtp down")
	})

	n, err := bus.Relay(context.Background(), 10)
	require.Error(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, outbox.pendingCount(), "failed event retried next pass")
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/awibowo/backend-storefront/internal/events"
	"github.com/awibowo/backend-storefront/internal/store"
)

// OrderCreatedHandler returns a bus handler that queues the confirmation
// receipt for a freshly placed order.
func OrderCreatedHandler(e Enqueuer) events.Handler {
	return func(ctx context.Context, ev store.Event) error {
		var p OrderReceiptPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("notify: decode %s payload: %w", ev.Topic, err)
		}
		if p.Email == "" {
			return nil
		}
		return e.SendOrderReceipt(ctx, p)
	}
}

// OrderStatusHandler returns a bus handler that notifies the customer of a
// status change.
func OrderStatusHandler(e Enqueuer) events.Handler {
	return func(ctx context.Context, ev store.Event) error {
		var p OrderStatusPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("notify: decode %s payload: %w", ev.Topic, err)
		}
		if p.Email == "" {
			return nil
		}
		return e.SendOrderStatus(ctx, p)
	}
}

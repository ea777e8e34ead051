package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/events"
	"github.com/awibowo/backend-storefront/internal/obs"
	"github.com/awibowo/backend-storefront/internal/order"
	"github.com/awibowo/backend-storefront/internal/store"
)

// PaymentStore is the persistence surface the service needs.
type PaymentStore interface {
	Create(ctx context.Context, p store.PaymentIntent) (store.PaymentIntent, error)
	GetByID(ctx context.Context, id string) (store.PaymentIntent, error)
	GetLatestByOrder(ctx context.Context, orderID string) (store.PaymentIntent, error)
	UpdateStatus(ctx context.Context, id, status string) (store.PaymentIntent, error)
}

// OrderStore loads the order being paid.
type OrderStore interface {
	GetByIDForUser(ctx context.Context, id, userID string) (store.Order, error)
}

// Confirmer advances the order once money arrives.
type Confirmer interface {
	MarkPaid(ctx context.Context, orderID string) (store.Order, error)
}

// Emitter publishes payment outcomes.
type Emitter interface {
	Emit(ctx context.Context, topic string, payload any) error
}

// Service opens payment intents and applies provider callbacks.
type Service struct {
	Payments PaymentStore
	Orders   OrderStore
	Orderer  Confirmer
	Provider Provider
	Bus      Emitter
	Currency string
}

// Intent is the payment payload returned to clients.
type Intent struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	Provider    string          `json:"provider"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type paymentFailedEvent struct {
	OrderID  string `json:"order_id"`
	IntentID string `json:"intent_id"`
	Provider string `json:"provider"`
}

// CreateIntent opens a payment for a pending order owned by the user. An
// existing open intent for the order is returned instead of stacking a new
// one.
func (s *Service) CreateIntent(ctx context.Context, userID, orderID string) (Intent, error) {
	o, err := s.Orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Intent{}, common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
		}
		return Intent{}, fmt.Errorf("load order: %w", err)
	}
	if o.Status != order.StatusPending {
		countIntent(s.Provider.Name(), "not_payable")
		appErr := common.NewAppError("ORDER_NOT_PAYABLE", "order is not awaiting payment", http.StatusConflict, nil)
		appErr.Details = map[string]any{"status": o.Status}
		return Intent{}, appErr
	}

	if existing, err := s.Payments.GetLatestByOrder(ctx, o.ID); err == nil && existing.Status == StatusPending {
		countIntent(s.Provider.Name(), "reused")
		return toIntent(existing, ""), nil
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Intent{}, fmt.Errorf("load latest intent: %w", err)
	}

	result, err := s.Provider.CreateIntent(ctx, IntentRequest{
		OrderID:  o.ID,
		Amount:   o.Total,
		Currency: s.Currency,
	})
	if err != nil {
		countIntent(s.Provider.Name(), "provider_error")
		return Intent{}, fmt.Errorf("provider create intent: %w", err)
	}
	created, err := s.Payments.Create(ctx, store.PaymentIntent{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		Provider:   s.Provider.Name(),
		ExternalID: result.ExternalID,
		Amount:     o.Total,
		Currency:   s.Currency,
		Status:     result.Status,
	})
	if err != nil {
		return Intent{}, fmt.Errorf("persist intent: %w", err)
	}
	countIntent(s.Provider.Name(), "created")
	return toIntent(created, result.RedirectURL), nil
}

// GetStatus returns the latest intent for an order owned by the user.
func (s *Service) GetStatus(ctx context.Context, userID, orderID string) (Intent, error) {
	if _, err := s.Orders.GetByIDForUser(ctx, orderID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Intent{}, common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
		}
		return Intent{}, fmt.Errorf("load order: %w", err)
	}
	intent, err := s.Payments.GetLatestByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Intent{}, common.NewAppError("NOT_FOUND", "no payment intent for order", http.StatusNotFound, err)
		}
		return Intent{}, fmt.Errorf("load latest intent: %w", err)
	}
	return toIntent(intent, ""), nil
}

// ApplyCallback records a provider outcome for an intent. Succeeded
// callbacks confirm the order; anything else marks the intent and emits a
// failure event. Replayed callbacks for settled intents are no-ops.
func (s *Service) ApplyCallback(ctx context.Context, intentID, outcome string) (Intent, error) {
	switch outcome {
	case StatusSucceeded, StatusFailed, StatusExpired:
	default:
		return Intent{}, common.NewAppError("VALIDATION_ERROR", "unknown payment outcome", http.StatusBadRequest, nil)
	}
	intent, err := s.Payments.GetByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Intent{}, common.NewAppError("NOT_FOUND", "payment intent not found", http.StatusNotFound, err)
		}
		return Intent{}, fmt.Errorf("load intent: %w", err)
	}
	if intent.Status != StatusPending {
		countIntent(intent.Provider, "replayed")
		return toIntent(intent, ""), nil
	}

	updated, err := s.Payments.UpdateStatus(ctx, intentID, outcome)
	if err != nil {
		return Intent{}, fmt.Errorf("update intent: %w", err)
	}
	countIntent(updated.Provider, outcome)

	if outcome == StatusSucceeded {
		if _, err := s.Orderer.MarkPaid(ctx, updated.OrderID); err != nil {
			return Intent{}, fmt.Errorf("confirm order: %w", err)
		}
	} else if s.Bus != nil {
		_ = s.Bus.Emit(ctx, events.TopicPaymentFailed, paymentFailedEvent{
			OrderID:  updated.OrderID,
			IntentID: updated.ID,
			Provider: updated.Provider,
		})
	}
	return toIntent(updated, ""), nil
}

func toIntent(p store.PaymentIntent, redirect string) Intent {
	return Intent{
		ID:          p.ID,
		OrderID:     p.OrderID,
		Provider:    p.Provider,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      p.Status,
		RedirectURL: redirect,
		CreatedAt:   p.CreatedAt,
	}
}

func countIntent(provider, result string) {
	if obs.PaymentIntentTotal != nil {
		obs.PaymentIntentTotal.WithLabelValues(provider, result).Inc()
	}
}

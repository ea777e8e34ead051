package payment

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/events"
	"github.com/awibowo/backend-storefront/internal/order"
	"github.com/awibowo/backend-storefront/internal/store"
)

type memPayments struct {
	byID map[string]store.PaymentIntent
}

func (m *memPayments) Create(_ context.Context, p store.PaymentIntent) (store.PaymentIntent, error) {
	m.byID[p.ID] = p
	return p, nil
}

func (m *memPayments) GetByID(_ context.Context, id string) (store.PaymentIntent, error) {
	p, ok := m.byID[id]
	if !ok {
		return store.PaymentIntent{}, store.ErrNotFound
	}
	return p, nil
}

func (m *memPayments) GetLatestByOrder(_ context.Context, orderID string) (store.PaymentIntent, error) {
	for _, p := range m.byID {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return store.PaymentIntent{}, store.ErrNotFound
}

func (m *memPayments) UpdateStatus(_ context.Context, id, status string) (store.PaymentIntent, error) {
	p, ok := m.byID[id]
	if !ok {
		return store.PaymentIntent{}, store.ErrNotFound
	}
	p.Status = status
	m.byID[id] = p
	return p, nil
}

type stubOrders struct {
	order store.Order
}

func (s stubOrders) GetByIDForUser(_ context.Context, id, userID string) (store.Order, error) {
	if s.order.ID != id || s.order.UserID != userID {
		return store.Order{}, store.ErrNotFound
	}
	return s.order, nil
}

type stubConfirmer struct {
	paid []string
}

func (s *stubConfirmer) MarkPaid(_ context.Context, orderID string) (store.Order, error) {
	s.paid = append(s.paid, orderID)
	return store.Order{ID: orderID, Status: order.StatusConfirmed}, nil
}

type captureBus struct {
	topics []string
}

func (b *captureBus) Emit(_ context.Context, topic string, _ any) error {
	b.topics = append(b.topics, topic)
	return nil
}

func newTestService(orderStatus string) (*Service, *memPayments, *stubConfirmer, *captureBus) {
	payments := &memPayments{byID: map[string]store.PaymentIntent{}}
	confirmer := &stubConfirmer{}
	bus := &captureBus{}
	svc := &Service{
		Payments: payments,
		Orders: stubOrders{order: store.Order{
			ID: "o1", UserID: "u1", Status: orderStatus,
			Total: decimal.RequireFromString("539.97"),
		}},
		Orderer:  confirmer,
		Provider: Sandbox{BaseURL: "https://pay.example.com"},
		Bus:      bus,
		Currency: "USD",
	}
	return svc, payments, confirmer, bus
}

func TestCreateIntent(t *testing.T) {
	svc, payments, _, _ := newTestService(order.StatusPending)

	intent, err := svc.CreateIntent(context.Background(), "u1", "o1")
	require.NoError(t, err)
	require.Equal(t, "sandbox", intent.Provider)
	require.Equal(t, StatusPending, intent.Status)
	require.Equal(t, "539.97", intent.Amount.String())
	require.Contains(t, intent.RedirectURL, "https://pay.example.com/sandbox/pay/sbx_")
	require.Len(t, payments.byID, 1)

	// A second call reuses the open intent instead of stacking another.
	again, err := svc.CreateIntent(context.Background(), "u1", "o1")
	require.NoError(t, err)
	require.Equal(t, intent.ID, again.ID)
	require.Len(t, payments.byID, 1)
}

func TestCreateIntentNotPayable(t *testing.T) {
	svc, _, _, _ := newTestService(order.StatusShipped)

	_, err := svc.CreateIntent(context.Background(), "u1", "o1")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "ORDER_NOT_PAYABLE", appErr.Code)
}

func TestCreateIntentWrongOwner(t *testing.T) {
	svc, _, _, _ := newTestService(order.StatusPending)

	_, err := svc.CreateIntent(context.Background(), "intruder", "o1")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestCallbackSucceededConfirmsOrder(t *testing.T) {
	svc, _, confirmer, bus := newTestService(order.StatusPending)

	intent, err := svc.CreateIntent(context.Background(), "u1", "o1")
	require.NoError(t, err)

	updated, err := svc.ApplyCallback(context.Background(), intent.ID, StatusSucceeded)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, updated.Status)
	require.Equal(t, []string{"o1"}, confirmer.paid)
	require.Empty(t, bus.topics)

	// Replay is a no-op and does not double-confirm.
	_, err = svc.ApplyCallback(context.Background(), intent.ID, StatusSucceeded)
	require.NoError(t, err)
	require.Len(t, confirmer.paid, 1)
}

func TestCallbackFailedEmitsEvent(t *testing.T) {
	svc, _, confirmer, bus := newTestService(order.StatusPending)

	intent, err := svc.CreateIntent(context.Background(), "u1", "o1")
	require.NoError(t, err)

	updated, err := svc.ApplyCallback(context.Background(), intent.ID, StatusFailed)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, updated.Status)
	require.Empty(t, confirmer.paid)
	require.Equal(t, []string{events.TopicPaymentFailed}, bus.topics)
}

func TestCallbackUnknownOutcome(t *testing.T) {
	svc, _, _, _ := newTestService(order.StatusPending)

	_, err := svc.ApplyCallback(context.Background(), "x", "maybe")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

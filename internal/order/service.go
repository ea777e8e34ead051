package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/events"
	"github.com/awibowo/backend-storefront/internal/store"
)

// OrderStore is the persistence surface the service needs.
type OrderStore interface {
	GetByID(ctx context.Context, id string) (store.Order, error)
	GetByIDForUser(ctx context.Context, id, userID string) (store.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]store.Order, int64, error)
	ListAll(ctx context.Context, status string, limit, offset int32) ([]store.Order, int64, error)
	ListItems(ctx context.Context, orderID string) ([]store.OrderItem, error)
	UpdateStatus(ctx context.Context, orderID, next string, allowedFrom []string) (store.Order, error)
	AppendStatusHistory(ctx context.Context, id, orderID, status, note string) error
	ListStatusHistory(ctx context.Context, orderID string) ([]store.StatusEvent, error)
}

// UserStore resolves the buyer's email for notification payloads.
type UserStore interface {
	GetByID(ctx context.Context, id string) (store.User, error)
}

// Emitter publishes domain events after a successful transition.
type Emitter interface {
	Emit(ctx context.Context, topic string, payload any) error
}

// Service implements order history, tracking and the status machine.
type Service struct {
	Orders OrderStore
	Users  UserStore
	Bus    Emitter
}

// Summary is one row of an order list.
type Summary struct {
	ID        string          `json:"id"`
	Number    string          `json:"number"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

// Item is one frozen order line.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int32           `json:"qty"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// TrackingEntry is one step of the order's status history.
type TrackingEntry struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Detail is the full order payload.
type Detail struct {
	ID             string          `json:"id"`
	Number         string          `json:"number"`
	Status         string          `json:"status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingFee    decimal.Decimal `json:"shipping_fee"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	CouponCode     *string         `json:"coupon_code,omitempty"`
	Address        json.RawMessage `json:"address"`
	Items          []Item          `json:"items"`
	Tracking       []TrackingEntry `json:"tracking"`
	CreatedAt      time.Time       `json:"created_at"`
}

type statusChangedEvent struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Status      string `json:"status"`
}

// List returns a page of the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string, page, perPage int) ([]Summary, int64, error) {
	offset := int32((page - 1) * perPage)
	rows, total, err := s.Orders.ListByUser(ctx, userID, int32(perPage), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return toSummaries(rows), total, nil
}

// Get returns the full order with lines and tracking, scoped to the owner.
func (s *Service) Get(ctx context.Context, userID, orderID string) (Detail, error) {
	o, err := s.Orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return Detail{}, orderNotFound(err)
	}
	return s.buildDetail(ctx, o)
}

// Tracking returns just the status history, scoped to the owner.
func (s *Service) Tracking(ctx context.Context, userID, orderID string) ([]TrackingEntry, error) {
	if _, err := s.Orders.GetByIDForUser(ctx, orderID, userID); err != nil {
		return nil, orderNotFound(err)
	}
	history, err := s.Orders.ListStatusHistory(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return toTracking(history), nil
}

// Cancel lets the customer abandon an order that has not started shipping.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (Detail, error) {
	o, err := s.Orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return Detail{}, orderNotFound(err)
	}
	if !CancellableBy(o.Status, false) {
		return Detail{}, notCancellable(o.Status)
	}
	updated, err := s.transition(ctx, o.ID, StatusCancelled, []string{StatusPending, StatusConfirmed}, "cancelled by customer")
	if err != nil {
		return Detail{}, err
	}
	s.emit(ctx, events.TopicOrderCancelled, updated)
	return s.buildDetail(ctx, updated)
}

// MarkPaid confirms a pending order after a successful payment. Duplicate
// provider callbacks for an already confirmed order succeed without effect.
func (s *Service) MarkPaid(ctx context.Context, orderID string) (store.Order, error) {
	updated, err := s.Orders.UpdateStatus(ctx, orderID, StatusConfirmed, AllowedFrom(StatusConfirmed))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return store.Order{}, fmt.Errorf("update status: %w", err)
		}
		o, getErr := s.Orders.GetByID(ctx, orderID)
		if getErr != nil {
			return store.Order{}, orderNotFound(getErr)
		}
		if o.Status == StatusConfirmed {
			return o, nil
		}
		return store.Order{}, invalidTransition(StatusConfirmed)
	}
	if err := s.Orders.AppendStatusHistory(ctx, uuid.NewString(), orderID, StatusConfirmed, "payment received"); err != nil {
		return store.Order{}, fmt.Errorf("append status history: %w", err)
	}
	s.emit(ctx, events.TopicOrderPaid, updated)
	return updated, nil
}

// AdminList returns a page of all orders, optionally filtered by status.
func (s *Service) AdminList(ctx context.Context, status string, page, perPage int) ([]Summary, int64, error) {
	if status != "" && !validStatus(status) {
		return nil, 0, common.NewAppError("VALIDATION_ERROR", "unknown status filter", http.StatusBadRequest, nil)
	}
	offset := int32((page - 1) * perPage)
	rows, total, err := s.Orders.ListAll(ctx, status, int32(perPage), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list all orders: %w", err)
	}
	return toSummaries(rows), total, nil
}

// AdminGet returns any order without an ownership check.
func (s *Service) AdminGet(ctx context.Context, orderID string) (Detail, error) {
	o, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return Detail{}, orderNotFound(err)
	}
	return s.buildDetail(ctx, o)
}

// AdminSetStatus advances an order along the fulfilment flow.
func (s *Service) AdminSetStatus(ctx context.Context, orderID, next, note string) (Detail, error) {
	sources := AllowedFrom(next)
	if sources == nil {
		return Detail{}, common.NewAppError("VALIDATION_ERROR", "unknown target status", http.StatusBadRequest, nil)
	}
	if note == "" {
		note = "status updated"
	}
	updated, err := s.transition(ctx, orderID, next, sources, note)
	if err != nil {
		return Detail{}, err
	}
	switch next {
	case StatusCancelled:
		s.emit(ctx, events.TopicOrderCancelled, updated)
	default:
		s.emit(ctx, events.TopicOrderStatusChanged, updated)
	}
	return s.buildDetail(ctx, updated)
}

// transition applies the guarded status update and appends history. A zero
// rows update means the order either does not exist or sits in a status the
// transition does not accept.
func (s *Service) transition(ctx context.Context, orderID, next string, sources []string, note string) (store.Order, error) {
	updated, err := s.Orders.UpdateStatus(ctx, orderID, next, sources)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if _, getErr := s.Orders.GetByID(ctx, orderID); getErr != nil {
				return store.Order{}, orderNotFound(getErr)
			}
			return store.Order{}, invalidTransition(next)
		}
		return store.Order{}, fmt.Errorf("update status: %w", err)
	}
	if err := s.Orders.AppendStatusHistory(ctx, uuid.NewString(), orderID, next, note); err != nil {
		return store.Order{}, fmt.Errorf("append status history: %w", err)
	}
	return updated, nil
}

// emit publishes best-effort; a failed notification never fails the
// transition that already committed.
func (s *Service) emit(ctx context.Context, topic string, o store.Order) {
	if s.Bus == nil {
		return
	}
	ev := statusChangedEvent{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Status:      o.Status,
	}
	if s.Users != nil {
		if u, err := s.Users.GetByID(ctx, o.UserID); err == nil {
			ev.Email = u.Email
		}
	}
	_ = s.Bus.Emit(ctx, topic, ev)
}

func (s *Service) buildDetail(ctx context.Context, o store.Order) (Detail, error) {
	items, err := s.Orders.ListItems(ctx, o.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("list order items: %w", err)
	}
	history, err := s.Orders.ListStatusHistory(ctx, o.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("list status history: %w", err)
	}
	d := Detail{
		ID:             o.ID,
		Number:         o.Number,
		Status:         o.Status,
		Subtotal:       o.Subtotal,
		ShippingFee:    o.ShippingFee,
		TaxAmount:      o.TaxAmount,
		DiscountAmount: o.DiscountAmount,
		Total:          o.Total,
		CouponCode:     o.CouponCode,
		Address:        json.RawMessage(o.AddressSnapshot),
		Items:          make([]Item, 0, len(items)),
		Tracking:       toTracking(history),
		CreatedAt:      o.CreatedAt,
	}
	for _, it := range items {
		d.Items = append(d.Items, Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Qty:       it.Qty,
			LineTotal: it.LineTotal,
		})
	}
	return d, nil
}

func toSummaries(rows []store.Order) []Summary {
	out := make([]Summary, 0, len(rows))
	for _, o := range rows {
		out = append(out, Summary{
			ID:        o.ID,
			Number:    o.Number,
			Status:    o.Status,
			Total:     o.Total,
			CreatedAt: o.CreatedAt,
		})
	}
	return out
}

func toTracking(history []store.StatusEvent) []TrackingEntry {
	out := make([]TrackingEntry, 0, len(history))
	for _, e := range history {
		out = append(out, TrackingEntry{Status: e.Status, Note: e.Note, CreatedAt: e.CreatedAt})
	}
	return out
}

func validStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func orderNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
	}
	return err
}

func notCancellable(status string) error {
	appErr := common.NewAppError("ORDER_NOT_CANCELLABLE", "order can no longer be cancelled", http.StatusConflict, nil)
	appErr.Details = map[string]any{"status": status}
	return appErr
}

func invalidTransition(next string) error {
	appErr := common.NewAppError("INVALID_TRANSITION", "order status does not allow this transition", http.StatusConflict, nil)
	appErr.Details = map[string]any{"target": next}
	return appErr
}

package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/awibowo/backend-storefront/internal/cart"
	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/obs"
	"github.com/awibowo/backend-storefront/internal/pricing"
	"github.com/awibowo/backend-storefront/internal/store"
)

// AddressStore resolves the shipping address to freeze into the order.
type AddressStore interface {
	GetForUser(ctx context.Context, id, userID string) (store.Address, error)
}

// UserStore resolves the buyer for the confirmation email.
type UserStore interface {
	GetByID(ctx context.Context, id string) (store.User, error)
}

// CouponStore resolves the redeemed coupon's id for the redemption record.
type CouponStore interface {
	GetByCode(ctx context.Context, code string) (store.Coupon, error)
}

// OrderWriter persists a placed order atomically: stock decrement, order
// rows, redemption, outbox event and cart reset all commit or none do.
type OrderWriter interface {
	PlaceOrder(ctx context.Context, po PlacedOrder) (store.Order, error)
}

// PlacedOrder is everything the writer must commit in one transaction.
type PlacedOrder struct {
	Order        store.Order
	Items        []store.OrderItem
	CouponID     string
	CartID       string
	EventPayload []byte
}

// OutOfStockError reports the first line that could not be reserved.
type OutOfStockError struct {
	ProductID string
}

func (e *OutOfStockError) Error() string {
	return "insufficient stock for product " + e.ProductID
}

// Service turns the current cart into an order. Pricing is recomputed from
// the live cart at placement time; the resulting summary is frozen on the
// order and never recomputed afterwards.
type Service struct {
	Cart      *cart.Service
	Writer    OrderWriter
	Addresses AddressStore
	Users     UserStore
	Coupons   CouponStore
	Currency  string
	Now       func() time.Time
}

// Confirmation is the checkout response payload.
type Confirmation struct {
	OrderID string          `json:"order_id"`
	Number  string          `json:"number"`
	Status  string          `json:"status"`
	Summary pricing.Summary `json:"summary"`
}

type addressSnapshot struct {
	Recipient  string  `json:"recipient"`
	Phone      string  `json:"phone"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

type orderCreatedEvent struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Total       string `json:"total"`
	Currency    string `json:"currency"`
}

// Place converts the user's cart into a pending order.
func (s *Service) Place(ctx context.Context, userID, addressID string) (Confirmation, error) {
	c, items, resolved, summary, err := s.Cart.Snapshot(ctx, cart.Owner{UserID: userID})
	if err != nil {
		return Confirmation{}, err
	}
	if len(items) == 0 {
		countOrder("empty_cart")
		return Confirmation{}, common.NewAppError("EMPTY_CART", "cart is empty", http.StatusUnprocessableEntity, nil)
	}

	addr, err := s.Addresses.GetForUser(ctx, addressID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Confirmation{}, common.NewAppError("NOT_FOUND", "address not found", http.StatusNotFound, err)
		}
		return Confirmation{}, fmt.Errorf("load address: %w", err)
	}
	buyer, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return Confirmation{}, fmt.Errorf("load user: %w", err)
	}

	var (
		couponID   string
		couponCode *string
	)
	if resolved != nil {
		row, err := s.Coupons.GetByCode(ctx, resolved.Rule.Code)
		if err != nil {
			return Confirmation{}, fmt.Errorf("load coupon: %w", err)
		}
		couponID = row.ID
		couponCode = &row.Code
	}

	snapshot, err := json.Marshal(addressSnapshot{
		Recipient:  addr.Recipient,
		Phone:      addr.Phone,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("encode address snapshot: %w", err)
	}

	rounded := summary.Round()
	order := store.Order{
		ID:              uuid.NewString(),
		Number:          s.orderNumber(),
		UserID:          userID,
		Status:          "pending",
		Subtotal:        rounded.Subtotal,
		ShippingFee:     rounded.ShippingFee,
		TaxAmount:       rounded.TaxAmount,
		DiscountAmount:  rounded.DiscountAmount,
		Total:           rounded.Total,
		CouponCode:      couponCode,
		AddressSnapshot: snapshot,
	}
	lines := make([]store.OrderItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, store.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Name:      it.ProductName,
			UnitPrice: it.UnitPrice,
			Qty:       it.Qty,
			LineTotal: pricing.ExtendedPrice(pricing.LineItem{UnitPrice: it.UnitPrice, Qty: int64(it.Qty)}).Round(2),
		})
	}
	payload, err := json.Marshal(orderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		UserID:      userID,
		Email:       buyer.Email,
		Total:       order.Total.StringFixed(2),
		Currency:    s.Currency,
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("encode event payload: %w", err)
	}

	created, err := s.Writer.PlaceOrder(ctx, PlacedOrder{
		Order:        order,
		Items:        lines,
		CouponID:     couponID,
		CartID:       c.ID,
		EventPayload: payload,
	})
	if err != nil {
		var oos *OutOfStockError
		if errors.As(err, &oos) {
			countOrder("out_of_stock")
			appErr := common.NewAppError("INSUFFICIENT_STOCK", "not enough stock to fulfil the order", http.StatusConflict, err)
			appErr.Details = map[string]any{"product_id": oos.ProductID}
			return Confirmation{}, appErr
		}
		countOrder("error")
		return Confirmation{}, fmt.Errorf("place order: %w", err)
	}

	countOrder("ok")
	return Confirmation{
		OrderID: created.ID,
		Number:  created.Number,
		Status:  created.Status,
		Summary: rounded,
	}, nil
}

// orderNumber yields a short human-quotable reference like SO-7F3A9C2D.
func (s *Service) orderNumber() string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Fall back to time-derived digits; uniqueness is enforced by the
		// column constraint, collisions surface as an insert error.
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		return fmt.Sprintf("SO-%08X", now().UnixNano()&0xFFFFFFFF)
	}
	return "SO-" + strings.ToUpper(hex.EncodeToString(buf[:]))
}

func countOrder(result string) {
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues(result).Inc()
	}
}

package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/awibowo/backend-storefront/internal/events"
	"github.com/awibowo/backend-storefront/internal/store"
)

// TxWriter commits a placed order against Postgres in a single transaction.
type TxWriter struct {
	Store *store.Store
}

// PlaceOrder implements OrderWriter. Stock rows act as the serialization
// point: the conditional decrement fails the whole transaction when a
// concurrent checkout drained a line first.
func (w TxWriter) PlaceOrder(ctx context.Context, po PlacedOrder) (store.Order, error) {
	var created store.Order
	err := w.Store.WithTx(ctx, func(tx pgx.Tx) error {
		catalog := store.Catalog{DB: tx}
		for _, it := range po.Items {
			if err := catalog.DecrementStock(ctx, tx, it.ProductID, it.Qty); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return &OutOfStockError{ProductID: it.ProductID}
				}
				return fmt.Errorf("reserve stock: %w", err)
			}
		}

		orders := store.Orders{DB: tx}
		var err error
		created, err = orders.Create(ctx, po.Order)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, it := range po.Items {
			if err := orders.CreateItem(ctx, it); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		if err := orders.AppendStatusHistory(ctx, uuid.NewString(), created.ID, created.Status, "order placed"); err != nil {
			return fmt.Errorf("insert status history: %w", err)
		}

		if po.CouponID != "" {
			coupons := store.Coupons{DB: tx}
			err := coupons.RecordRedemption(ctx, uuid.NewString(), po.CouponID, created.ID, created.UserID, created.DiscountAmount)
			if err != nil {
				return fmt.Errorf("record redemption: %w", err)
			}
		}

		outbox := store.Events{DB: tx}
		if err := outbox.Insert(ctx, uuid.NewString(), events.TopicOrderCreated, po.EventPayload); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}

		carts := store.Carts{DB: tx}
		if err := carts.ClearItems(ctx, po.CartID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if err := carts.SetCoupon(ctx, po.CartID, nil); err != nil {
			return fmt.Errorf("clear cart coupon: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.Order{}, err
	}
	return created, nil
}

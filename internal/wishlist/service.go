package wishlist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/awibowo/backend-storefront/internal/cart"
	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/store"
)

// WishlistStore is the persistence surface the service needs.
type WishlistStore interface {
	List(ctx context.Context, userID string) ([]store.WishlistItem, error)
	Add(ctx context.Context, id, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	Exists(ctx context.Context, userID, productID string) (bool, error)
}

// ProductStore resolves products before saving them.
type ProductStore interface {
	GetProductByID(ctx context.Context, id string) (store.Product, error)
}

// Service implements the saved-for-later list. Moving an item to the cart
// removes it here; the line lives in exactly one of the two places.
type Service struct {
	Wishlists WishlistStore
	Products  ProductStore
	Cart      *cart.Service
}

// Item is the wishlist payload.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageURL  *string         `json:"image_url,omitempty"`
	InStock   bool            `json:"in_stock"`
	SavedAt   time.Time       `json:"saved_at"`
}

// List returns the user's wishlist, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Item, error) {
	rows, err := s.Wishlists.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	out := make([]Item, 0, len(rows))
	for _, row := range rows {
		out = append(out, Item{
			ProductID: row.ProductID,
			Name:      row.ProductName,
			Slug:      row.ProductSlug,
			UnitPrice: row.UnitPrice,
			ImageURL:  row.ImageURL,
			InStock:   row.Stock > 0,
			SavedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

// Add saves a product. Saving twice is a no-op.
func (s *Service) Add(ctx context.Context, userID, productID string) error {
	if _, err := s.loadProduct(ctx, productID); err != nil {
		return err
	}
	if err := s.Wishlists.Add(ctx, uuid.NewString(), userID, productID); err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	return nil
}

// Toggle adds the product when absent and removes it when present. It
// reports whether the product is saved afterwards.
func (s *Service) Toggle(ctx context.Context, userID, productID string) (bool, error) {
	exists, err := s.Wishlists.Exists(ctx, userID, productID)
	if err != nil {
		return false, fmt.Errorf("check wishlist: %w", err)
	}
	if exists {
		if err := s.Wishlists.Remove(ctx, userID, productID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("remove wishlist item: %w", err)
		}
		return false, nil
	}
	if err := s.Add(ctx, userID, productID); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes a saved product.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	if err := s.Wishlists.Remove(ctx, userID, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return common.NewAppError("NOT_FOUND", "product not in wishlist", http.StatusNotFound, err)
		}
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	return nil
}

// MoveToCart adds the saved product to the user's cart and removes it from
// the wishlist.
func (s *Service) MoveToCart(ctx context.Context, userID, productID string) (cart.View, error) {
	exists, err := s.Wishlists.Exists(ctx, userID, productID)
	if err != nil {
		return cart.View{}, fmt.Errorf("check wishlist: %w", err)
	}
	if !exists {
		return cart.View{}, common.NewAppError("NOT_FOUND", "product not in wishlist", http.StatusNotFound, nil)
	}
	view, err := s.Cart.AddItem(ctx, cart.Owner{UserID: userID}, productID, 1)
	if err != nil {
		return cart.View{}, err
	}
	if err := s.Wishlists.Remove(ctx, userID, productID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return cart.View{}, fmt.Errorf("remove wishlist item: %w", err)
	}
	return view, nil
}

func (s *Service) loadProduct(ctx context.Context, productID string) (store.Product, error) {
	product, err := s.Products.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return store.Product{}, fmt.Errorf("load product: %w", err)
	}
	if !product.Active {
		return store.Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil)
	}
	return product, nil
}

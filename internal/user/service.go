package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/store"
)

// UserStore is the profile persistence surface.
type UserStore interface {
	GetByID(ctx context.Context, id string) (store.User, error)
	UpdateProfile(ctx context.Context, id, fullName string, phone, avatarURL *string) (store.User, error)
}

// AddressStore is the address book persistence surface.
type AddressStore interface {
	List(ctx context.Context, userID string) ([]store.Address, error)
	GetForUser(ctx context.Context, id, userID string) (store.Address, error)
	Create(ctx context.Context, a store.Address) (store.Address, error)
	Update(ctx context.Context, a store.Address) (store.Address, error)
	Delete(ctx context.Context, id, userID string) error
}

// Service implements profile and address book management.
type Service struct {
	Users     UserStore
	Addresses AddressStore
}

// Profile is the account payload.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Phone     *string   `json:"phone,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Address is the address book payload.
type Address struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Recipient  string  `json:"recipient"`
	Phone      string  `json:"phone"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	IsDefault  bool    `json:"is_default"`
}

// AddressInput carries address fields from create and update requests.
type AddressInput struct {
	Label      string  `json:"label" validate:"required,max=64"`
	Recipient  string  `json:"recipient" validate:"required,max=128"`
	Phone      string  `json:"phone" validate:"required,max=32"`
	Line1      string  `json:"line1" validate:"required,max=256"`
	Line2      *string `json:"line2" validate:"omitempty,max=256"`
	City       string  `json:"city" validate:"required,max=128"`
	State      string  `json:"state" validate:"required,max=128"`
	PostalCode string  `json:"postal_code" validate:"required,max=16"`
	Country    string  `json:"country" validate:"required,len=2"`
	IsDefault  bool    `json:"is_default"`
}

// GetProfile returns the user's account details.
func (s *Service) GetProfile(ctx context.Context, userID string) (Profile, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Profile{}, common.NewAppError("NOT_FOUND", "user not found", http.StatusNotFound, err)
		}
		return Profile{}, fmt.Errorf("load user: %w", err)
	}
	return toProfile(u), nil
}

// UpdateProfile replaces the mutable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID, fullName string, phone, avatarURL *string) (Profile, error) {
	u, err := s.Users.UpdateProfile(ctx, userID, fullName, phone, avatarURL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Profile{}, common.NewAppError("NOT_FOUND", "user not found", http.StatusNotFound, err)
		}
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return toProfile(u), nil
}

// ListAddresses returns the address book, default first.
func (s *Service) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	rows, err := s.Addresses.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	out := make([]Address, 0, len(rows))
	for _, a := range rows {
		out = append(out, toAddress(a))
	}
	return out, nil
}

// CreateAddress appends an entry; the first entry becomes the default.
func (s *Service) CreateAddress(ctx context.Context, userID string, in AddressInput) (Address, error) {
	existing, err := s.Addresses.List(ctx, userID)
	if err != nil {
		return Address{}, fmt.Errorf("list addresses: %w", err)
	}
	a := fromInput(in)
	a.ID = uuid.NewString()
	a.UserID = userID
	if len(existing) == 0 {
		a.IsDefault = true
	}
	created, err := s.Addresses.Create(ctx, a)
	if err != nil {
		return Address{}, fmt.Errorf("create address: %w", err)
	}
	return toAddress(created), nil
}

// UpdateAddress replaces an entry owned by the user.
func (s *Service) UpdateAddress(ctx context.Context, userID, addressID string, in AddressInput) (Address, error) {
	if _, err := s.Addresses.GetForUser(ctx, addressID, userID); err != nil {
		return Address{}, addressNotFound(err)
	}
	a := fromInput(in)
	a.ID = addressID
	a.UserID = userID
	updated, err := s.Addresses.Update(ctx, a)
	if err != nil {
		return Address{}, addressNotFound(err)
	}
	return toAddress(updated), nil
}

// DeleteAddress removes an entry owned by the user.
func (s *Service) DeleteAddress(ctx context.Context, userID, addressID string) error {
	if err := s.Addresses.Delete(ctx, addressID, userID); err != nil {
		return addressNotFound(err)
	}
	return nil
}

func toProfile(u store.User) Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     u.Phone,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

func toAddress(a store.Address) Address {
	return Address{
		ID:         a.ID,
		Label:      a.Label,
		Recipient:  a.Recipient,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		IsDefault:  a.IsDefault,
	}
}

func fromInput(in AddressInput) store.Address {
	return store.Address{
		Label:      in.Label,
		Recipient:  in.Recipient,
		Phone:      in.Phone,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		State:      in.State,
		PostalCode: in.PostalCode,
		Country:    in.Country,
		IsDefault:  in.IsDefault,
	}
}

func addressNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return common.NewAppError("NOT_FOUND", "address not found", http.StatusNotFound, err)
	}
	return err
}

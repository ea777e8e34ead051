package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/store"
)

type memUsers struct {
	byID map[string]store.User
}

func (m *memUsers) GetByID(_ context.Context, id string) (store.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id, fullName string, phone, avatarURL *string) (store.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	u.FullName = fullName
	u.Phone = phone
	u.AvatarURL = avatarURL
	m.byID[id] = u
	return u, nil
}

type memAddresses struct {
	byID map[string]store.Address
}

func (m *memAddresses) List(_ context.Context, userID string) ([]store.Address, error) {
	var out []store.Address
	for _, a := range m.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAddresses) GetForUser(_ context.Context, id, userID string) (store.Address, error) {
	a, ok := m.byID[id]
	if !ok || a.UserID != userID {
		return store.Address{}, store.ErrNotFound
	}
	return a, nil
}

func (m *memAddresses) Create(_ context.Context, a store.Address) (store.Address, error) {
	if a.IsDefault {
		m.clearDefault(a.UserID)
	}
	m.byID[a.ID] = a
	return a, nil
}

func (m *memAddresses) Update(_ context.Context, a store.Address) (store.Address, error) {
	if _, ok := m.byID[a.ID]; !ok {
		return store.Address{}, store.ErrNotFound
	}
	if a.IsDefault {
		m.clearDefault(a.UserID)
	}
	m.byID[a.ID] = a
	return a, nil
}

func (m *memAddresses) Delete(_ context.Context, id, userID string) error {
	a, ok := m.byID[id]
	if !ok || a.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memAddresses) clearDefault(userID string) {
	for id, a := range m.byID {
		if a.UserID == userID && a.IsDefault {
			a.IsDefault = false
			m.byID[id] = a
		}
	}
}

func newTestService() *Service {
	return &Service{
		Users: &memUsers{byID: map[string]store.User{
			"u1": {ID: "u1", Email: "jane@example.com", FullName: "Jane Doe"},
		}},
		Addresses: &memAddresses{byID: map[string]store.Address{}},
	}
}

func sampleInput(isDefault bool) AddressInput {
	return AddressInput{
		Label: "Home", Recipient: "Jane Doe", Phone: "+15550100",
		Line1: "1 Main St", City: "Springfield", State: "IL",
		PostalCode: "62701", Country: "US", IsDefault: isDefault,
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := newTestService()
	phone := "+15550123"

	profile, err := svc.UpdateProfile(context.Background(), "u1", "Jane A. Doe", &phone, nil)
	require.NoError(t, err)
	require.Equal(t, "Jane A. Doe", profile.FullName)
	require.Equal(t, "+15550123", *profile.Phone)

	_, err = svc.UpdateProfile(context.Background(), "ghost", "Nobody", nil, nil)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.CreateAddress(ctx, "u1", sampleInput(false))
	require.NoError(t, err)
	require.True(t, first.IsDefault, "first entry is the default even when not requested")

	second, err := svc.CreateAddress(ctx, "u1", sampleInput(false))
	require.NoError(t, err)
	require.False(t, second.IsDefault)
}

func TestNewDefaultDisplacesOld(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.CreateAddress(ctx, "u1", sampleInput(false))
	require.NoError(t, err)

	_, err = svc.CreateAddress(ctx, "u1", sampleInput(true))
	require.NoError(t, err)

	all, err := svc.ListAddresses(ctx, "u1")
	require.NoError(t, err)
	defaults := 0
	for _, a := range all {
		if a.IsDefault {
			defaults++
			require.NotEqual(t, first.ID, a.ID)
		}
	}
	require.Equal(t, 1, defaults)
}

func TestUpdateAddressScopedToOwner(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateAddress(ctx, "u1", sampleInput(false))
	require.NoError(t, err)

	_, err = svc.UpdateAddress(ctx, "intruder", created.ID, sampleInput(false))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestDeleteAddress(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateAddress(ctx, "u1", sampleInput(false))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAddress(ctx, "u1", created.ID))

	err = svc.DeleteAddress(ctx, "u1", created.ID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

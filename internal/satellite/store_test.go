package satellite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "satellite.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleProduct(id int64, name string) domain.Product {
	old := int64(15000)
	return domain.Product{
		ID:        id,
		Article:   "VE-000" + name[:1],
		Name:      name,
		Price:     12500,
		OldPrice:  &old,
		Category:  "accessories",
		Images:    []string{"a.jpg", "b.jpg"},
		Stock:     4,
		IsNew:     true,
		IsActive:  true,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satellite.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestStore_Products(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	synced := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertProduct(ctx, sampleProduct(1, "Scarf"), synced))
	require.NoError(t, s.UpsertProduct(ctx, sampleProduct(2, "Belt"), synced))

	got, err := s.GetProduct(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Scarf", got.Name)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, got.Images)
	require.NotNil(t, got.OldPrice)
	assert.Equal(t, int64(15000), *got.OldPrice)
	assert.True(t, got.LastSynced.Equal(synced))

	updated := sampleProduct(1, "Scarf")
	updated.Stock = 1
	updated.Price = 9900
	require.NoError(t, s.UpsertProduct(ctx, updated, synced.Add(time.Minute)))

	got, err = s.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock, "last write wins")
	assert.Equal(t, int64(9900), got.Price)

	missing, err := s.GetProduct(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := s.ListProducts(ctx, "accessories", 0, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = s.ListProducts(ctx, "bags", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_MarkMissingInactive(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	for i, name := range []string{"Scarf", "Belt", "Coat"} {
		require.NoError(t, s.UpsertProduct(ctx, sampleProduct(int64(i+1), name), now))
	}

	n, err := s.MarkMissingInactive(ctx, []int64{1, 3})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := s.ListProducts(ctx, "", 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, int64(3), list[1].ID)

	n, err = s.MarkMissingInactive(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_RegisterChatUser(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	u, err := s.RegisterChatUser(ctx, 501, "lin", "Lin", "")
	require.NoError(t, err)
	assert.Nil(t, u.CanonicalID)
	assert.Regexp(t, `^VIP\d{6}$`, u.ReferralCode)

	again, err := s.RegisterChatUser(ctx, 501, "lin_new", "Lin", "Wu")
	require.NoError(t, err)
	assert.Equal(t, u.ReferralCode, again.ReferralCode)
	assert.Equal(t, "lin_new", again.Username)
}

func TestStore_RegisterChatUser_RetriesReferralCollision(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	values := []int{111111, 111111, 222222}
	s.randInt = func() int {
		v := values[0]
		values = values[1:]
		return v
	}

	first, err := s.RegisterChatUser(ctx, 1, "", "A", "")
	require.NoError(t, err)
	second, err := s.RegisterChatUser(ctx, 2, "", "B", "")
	require.NoError(t, err)

	assert.Equal(t, "VIP111111", first.ReferralCode)
	assert.Equal(t, "VIP222222", second.ReferralCode)
}

func TestStore_Identities(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, id := range []int64{10, 20, 30} {
		_, err := s.RegisterChatUser(ctx, id, "", "U", "")
		require.NoError(t, err)
	}

	require.NoError(t, s.SetCanonicalID(ctx, 20, 7))

	pending, err := s.PendingIdentities(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(10), pending[0].TelegramID)
	assert.Equal(t, int64(30), pending[1].TelegramID)

	ok, err := s.ApplyProfile(ctx, ProfileUpdate{TelegramID: 30, CanonicalID: 9, IsVIP: true, TotalOrders: 4, TotalSpent: 120000})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ApplyProfile(ctx, ProfileUpdate{TelegramID: 20, CanonicalID: 99, TotalOrders: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := s.GetChatUser(ctx, 20)
	require.NoError(t, err)
	require.NotNil(t, u.CanonicalID)
	assert.Equal(t, int64(7), *u.CanonicalID, "an existing mapping is kept")

	ok, err = s.ApplyProfile(ctx, ProfileUpdate{TelegramID: 404, CanonicalID: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	vips, err := s.Recipients(ctx, TargetVIP)
	require.NoError(t, err)
	assert.Equal(t, []int64{30}, vips)

	all, err := s.Recipients(ctx, TargetAll)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, all)
}

func TestStore_DeleteBefore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return now.Add(-48 * time.Hour) }
	require.NoError(t, s.SaveChatState(ctx, 1, "awaiting_address", ""))
	require.NoError(t, s.RecordView(ctx, 1, 5))
	require.NoError(t, s.LogAction(ctx, 1, "view", "5"))

	s.now = func() time.Time { return now }
	require.NoError(t, s.SaveChatState(ctx, 2, "browsing", ""))
	require.NoError(t, s.RecordView(ctx, 2, 5))

	n, err := s.DeleteChatStatesBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteViewsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteActionsBefore(ctx, now.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_ChatState(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	st, err := s.GetChatState(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, s.SaveChatState(ctx, 9, "browsing", "outerwear"))
	require.NoError(t, s.SaveChatState(ctx, 9, "awaiting_address", ""))

	st, err = s.GetChatState(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "awaiting_address", st.State)
	assert.Empty(t, st.Payload)
}

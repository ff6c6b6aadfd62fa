package repo

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/db"
	"github.com/Skotchmaster/storefront/internal/models"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	return &GormRepo{DB: gdb}
}

func TestUserDocument_LoadMissing(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	items, found, err := r.LoadUserCart(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, items)

	favs, found, err := r.LoadUserFavorites(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, favs)
}

func TestUserDocument_SaveCartThenFavorites(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	p1 := models.Product{ID: "p1", Name: "Lamp", Price: 100, Tags: []string{"home"}}
	p2 := models.Product{ID: "p2", Name: "Mug", Price: 50}

	require.NoError(t, r.SaveUserCart(ctx, "u1", []models.CartLineItem{{Product: p1, Quantity: 2}}))

	_, found, err := r.LoadUserFavorites(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found, "favorites were never written")

	require.NoError(t, r.SaveUserFavorites(ctx, "u1", []models.Product{p2}))

	items, found, err := r.LoadUserCart(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].Product.ID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, []string{"home"}, []string(items[0].Product.Tags))

	favs, found, err := r.LoadUserFavorites(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, favs, 1)
	assert.Equal(t, "p2", favs[0].ID)
}

func TestUserDocument_LastWriteWins(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	p1 := models.Product{ID: "p1", Price: 10}
	require.NoError(t, r.SaveUserCart(ctx, "u1", []models.CartLineItem{{Product: p1, Quantity: 1}}))
	require.NoError(t, r.SaveUserCart(ctx, "u1", []models.CartLineItem{{Product: p1, Quantity: 5}}))

	items, found, err := r.LoadUserCart(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestUserDocument_EmptyCartIsFound(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SaveUserCart(ctx, "u1", []models.CartLineItem{}))

	items, found, err := r.LoadUserCart(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, items)
}

func TestCreateUserWithProfile_Conflict(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	u := &models.User{Email: "a@example.com", PasswordHash: "x", DisplayName: "Ann"}
	profile, err := r.CreateUserWithProfile(ctx, u)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, u.ID, profile.UserID)
	assert.Equal(t, "Ann", profile.DisplayName)

	_, err = r.CreateUserWithProfile(ctx, &models.User{Email: "a@example.com", PasswordHash: "y"})
	assert.ErrorIs(t, err, ErrUserAlreadyExist)

	got, err := r.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestSaveProfile_AppliesMutation(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	u := &models.User{Email: "b@example.com", PasswordHash: "x"}
	_, err := r.CreateUserWithProfile(ctx, u)
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.TouchLastLogin(ctx, u.ID, at))

	saved, err := r.SaveProfile(ctx, u.ID, func(p *models.Profile) {
		p.Phone = "+100"
		p.Addresses = append(p.Addresses, models.Address{Label: "home", City: "Riga"})
	})
	require.NoError(t, err)
	assert.Equal(t, "+100", saved.Phone)

	got, err := r.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, got.Addresses, 1)
	assert.Equal(t, "Riga", got.Addresses[0].City)
	assert.True(t, got.LastLoginAt.Equal(at))
	assert.True(t, got.Preferences.OrderUpdates)
}

func TestProducts_GetAndSearch(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.DB.Create(&[]models.Product{
		{ID: "p1", Name: "Desk lamp", Description: "warm light", Price: 30, Tags: []string{"home", "light"}},
		{ID: "p2", Name: "Coffee mug", Description: "ceramic", Price: 8},
		{ID: "p3", Name: "Floor lamp", Description: "tall", Price: 90},
	}).Error)

	p, err := r.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", p.Name)
	assert.Equal(t, []string{"home", "light"}, []string(p.Tags))

	_, err = r.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	total, items, err := r.SearchProducts(ctx, "lamp", 0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ID)
}

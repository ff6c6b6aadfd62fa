package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/db"
	"github.com/Skotchmaster/storefront/internal/localstore"
	authmw "github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/middleware/session"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/state"
)

type testServer struct {
	t    *testing.T
	e    *echo.Echo
	repo *repo.GormRepo
	reg  *Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	require.NoError(t, gdb.Create(&[]models.Product{
		{ID: "p1", Name: "Desk lamp", Description: "warm light", Price: 25},
		{ID: "p2", Name: "Floor lamp", Description: "tall", Price: 80},
	}).Error)

	r := &repo.GormRepo{DB: gdb}
	reg := &Registry{
		Auth:    auth.NewService(r, []byte("test-secret")),
		Gateway: r,
		Storage: localstore.NewMemoryStorage(),
	}
	t.Cleanup(reg.Close)

	lookup := &catalog.DBCatalog{Repo: r}
	e := echo.New()
	Register(e, &Deps{
		CartHandler:      &CartHTTP{Catalog: lookup},
		FavoritesHandler: &FavoritesHTTP{Catalog: lookup},
		SessionHandler:   &SessionHTTP{Tokens: reg},
		CatalogHandler:   &CatalogHTTP{Catalog: lookup},
		Session:          session.Middleware(session.Config{}, reg),
		RequireLogin:     authmw.RequireLogin(authmw.Config{Tokens: reg}),
	})

	return &testServer{t: t, e: e, repo: r, reg: reg}
}

// client carries cookies between requests like a browser would.
type client struct {
	srv     *testServer
	cookies map[string]*http.Cookie
}

func (s *testServer) newClient() *client {
	return &client{srv: s, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.srv.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.srv.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	c.srv.e.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	rec := srv.newClient().do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, srv.reg.Len())
}

func TestCartFlow_Anonymous(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	c := srv.newClient()

	rec := c.do(http.MethodGet, "/api/v1/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[state.Snapshot](t, rec)
	assert.False(t, snap.Session.IsAuthenticated)
	assert.Equal(t, state.PhaseAnonymous, snap.Session.Phase())
	require.Contains(t, c.cookies, session.CookieName)

	c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p1"})
	rec = c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p1"})
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[state.CartState](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.ItemCount)
	assert.Equal(t, 50.0, cart.Total)

	rec = c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPatch, "/api/v1/cart/items/p1", map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decode[state.CartState](t, rec)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)

	rec = c.do(http.MethodPatch, "/api/v1/cart/items/p1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/api/v1/cart/sync", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = c.do(http.MethodPost, "/api/v1/favorites/sync", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := srv.newClient()
	rec = other.do(http.MethodGet, "/api/v1/state", nil)
	assert.Empty(t, decode[state.Snapshot](t, rec).Cart.Items)
	assert.Equal(t, 2, srv.reg.Len())
}

func TestSessionFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	ctx := context.Background()
	c := srv.newClient()

	c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p1"})
	c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p1"})

	rec := c.do(http.MethodPost, "/api/v1/auth/signup", map[string]any{
		"email":        "ann@shop.io",
		"password":     "secret1",
		"display_name": "Ann",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, c.cookies, session.TokenCookieName)

	rec = c.do(http.MethodGet, "/api/v1/state", nil)
	snap := decode[state.Snapshot](t, rec)
	require.True(t, snap.Session.IsAuthenticated)
	userID := snap.Session.User.ID
	assert.Equal(t, "Ann", snap.Session.User.DisplayName)
	require.NotNil(t, snap.Session.Profile)
	assert.NotEmpty(t, snap.Session.Profile.CreatedAt)

	// remote had nothing, so the anonymous cart was pushed up
	items, found, err := srv.repo.LoadUserCart(ctx, userID)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	c.do(http.MethodPatch, "/api/v1/cart/items/p1", map[string]any{"quantity": 5})
	rec = c.do(http.MethodPost, "/api/v1/cart/sync", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool {
		items, _, err := srv.repo.LoadUserCart(ctx, userID)
		return err == nil && len(items) == 1 && items[0].Quantity == 5
	}, 2*time.Second, 10*time.Millisecond)

	rec = c.do(http.MethodPost, "/api/v1/favorites/p2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[state.FavoritesState](t, rec).Items, 1)
	rec = c.do(http.MethodPost, "/api/v1/favorites/sync", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool {
		favs, _, err := srv.repo.LoadUserFavorites(ctx, userID)
		return err == nil && len(favs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec = c.do(http.MethodPatch, "/api/v1/profile", map[string]any{
		"phone":      "+4712345678",
		"created_at": "2024-01-15T11:30:00+01:00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decode[state.Profile](t, rec)
	assert.Equal(t, "+4712345678", profile.Phone)
	assert.Equal(t, "2024-01-15T10:30:00.000Z", profile.CreatedAt)

	rec = c.do(http.MethodGet, "/api/v1/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-01-15T10:30:00.000Z", decode[state.Profile](t, rec).CreatedAt)

	// a new session presenting the id token is signed back in and hydrated
	token := c.cookies[session.TokenCookieName]
	fresh := srv.newClient()
	fresh.cookies[session.TokenCookieName] = token
	rec = fresh.do(http.MethodGet, "/api/v1/state", nil)
	snap = decode[state.Snapshot](t, rec)
	require.True(t, snap.Session.IsAuthenticated)
	require.Len(t, snap.Cart.Items, 1)
	assert.Equal(t, 5, snap.Cart.Items[0].Quantity)
	assert.Len(t, snap.Favorites.Items, 1)

	rec = c.do(http.MethodPost, "/api/v1/auth/signout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, c.cookies, session.TokenCookieName)
	rec = c.do(http.MethodGet, "/api/v1/state", nil)
	snap = decode[state.Snapshot](t, rec)
	assert.False(t, snap.Session.IsAuthenticated)
	assert.Empty(t, snap.Cart.Items)
	assert.Empty(t, snap.Favorites.Items)

	rec = c.do(http.MethodGet, "/api/v1/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignIn_Failures(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	c := srv.newClient()

	rec := c.do(http.MethodPost, "/api/v1/auth/signup", map[string]any{"email": "bob@shop.io", "password": "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	c.do(http.MethodPost, "/api/v1/auth/signout", nil)

	tests := []struct {
		name     string
		path     string
		body     map[string]any
		wantCode int
		wantMsg  string
	}{
		{"wrong password", "/api/v1/auth/signin", map[string]any{"email": "bob@shop.io", "password": "nope-nope"}, http.StatusUnauthorized, "Incorrect password."},
		{"unknown user", "/api/v1/auth/signin", map[string]any{"email": "zed@shop.io", "password": "secret1"}, http.StatusUnauthorized, "No account found with this email."},
		{"bad email", "/api/v1/auth/signin", map[string]any{"email": "bob", "password": "secret1"}, http.StatusBadRequest, "Please enter a valid email address."},
		{"duplicate", "/api/v1/auth/signup", map[string]any{"email": "bob@shop.io", "password": "secret1"}, http.StatusConflict, "An account with this email already exists."},
		{"weak password", "/api/v1/auth/signup", map[string]any{"email": "new@shop.io", "password": "123"}, http.StatusBadRequest, "Password should be at least 6 characters."},
	}

	for _, tc := range tests {
		rec := c.do(http.MethodPost, tc.path, tc.body)
		assert.Equal(t, tc.wantCode, rec.Code, tc.name)
		assert.Equal(t, tc.wantMsg, decode[map[string]any](t, rec)["message"], tc.name)
	}

	rec = c.do(http.MethodGet, "/api/v1/state", nil)
	snap := decode[state.Snapshot](t, rec)
	assert.False(t, snap.Session.IsAuthenticated)
	assert.Equal(t, "Password should be at least 6 characters.", snap.Session.Error)
}

func TestCatalogSearch(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	c := srv.newClient()

	rec := c.do(http.MethodGet, "/api/v1/catalog/search?q=lamp&size=1&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []models.Product `json:"data"`
		Meta catalog.PageMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "p2", body.Data[0].ID)
	assert.Equal(t, catalog.PageMeta{Page: 2, Size: 1, Total: 2, TotalPages: 2, HasPrev: true}, body.Meta)

	rec = c.do(http.MethodGet, "/api/v1/catalog/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartHTTP_NoContainer(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	h := &CartHTTP{}
	err := h.Clear(ctx)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.Code)

	ctr := state.NewContainer(state.Options{})
	session.WithContainer(ctx, "sid", ctr)
	ctr.Cart.AddItem(models.Product{ID: "p1", Price: 3})
	require.NoError(t, h.Clear(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ctr.Cart.Snapshot().Items)
}

func TestAuthStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusTooManyRequests, authStatus(auth.CodeTooManyRequests))
	assert.Equal(t, http.StatusUnauthorized, authStatus(auth.CodeUserDisabled))
	assert.Equal(t, http.StatusInternalServerError, authStatus(""))
}

func TestRegistry_Sweep(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	srv.reg.IdleTTL = time.Minute

	c := srv.newClient()
	c.do(http.MethodGet, "/api/v1/state", nil)
	require.Equal(t, 1, srv.reg.Len())

	assert.Zero(t, srv.reg.Sweep(time.Now()))
	assert.Equal(t, 1, srv.reg.Sweep(time.Now().Add(2*time.Minute)))
	assert.Zero(t, srv.reg.Len())
}

func TestRegistry_IDTokenConcurrentRefresh(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	srv.reg.Auth.TokenTTL = time.Nanosecond
	ctx := context.Background()

	c := srv.newClient()
	rec := c.do(http.MethodPost, "/api/v1/auth/signup", map[string]any{"email": "eve@shop.io", "password": "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sid := c.cookies[session.CookieName].Value

	var wg sync.WaitGroup
	tokens := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, _, ok := srv.reg.IDToken(ctx, sid)
			if ok {
				tokens <- tok
			}
		}()
	}
	wg.Wait()
	close(tokens)

	n := 0
	for tok := range tokens {
		assert.NotEmpty(t, tok)
		n++
	}
	assert.Equal(t, 8, n)

	_, _, ok := srv.reg.IDToken(ctx, "unknown")
	assert.False(t, ok)
}

func TestRegistry_SweepSkipsPinnedEntries(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	srv.reg.IdleTTL = time.Minute
	ctx := context.Background()

	ctr, release, err := srv.reg.Resolve(ctx, "sid-1", "")
	require.NoError(t, err)
	ctr.Cart.AddItem(models.Product{ID: "p1", Price: 25})

	later := time.Now().Add(2 * time.Minute)
	assert.Zero(t, srv.reg.Sweep(later))
	assert.Equal(t, 1, srv.reg.Len())

	again, releaseAgain, err := srv.reg.Resolve(ctx, "sid-1", "")
	require.NoError(t, err)
	assert.Same(t, ctr, again)
	assert.Len(t, again.Cart.Snapshot().Items, 1)

	release()
	release()
	assert.Zero(t, srv.reg.Sweep(later))
	releaseAgain()

	assert.Equal(t, 1, srv.reg.Sweep(time.Now().Add(2*time.Minute)))
	assert.Zero(t, srv.reg.Len())
}

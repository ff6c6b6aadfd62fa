package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/session"
	"github.com/Skotchmaster/storefront/internal/state"
	"github.com/Skotchmaster/storefront/internal/transport"
)

type FavoritesHTTP struct {
	Catalog catalog.Lookup
}

func (h *FavoritesHTTP) Add(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "favorites.add")

	ctr := session.Container(c)
	if ctr == nil {
		l.Error("add_favorite_error", "status", 500, "reason", "no session container")
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	product, err := lookupProduct(ctx, h.Catalog, c.Param("id"))
	if err != nil {
		return err
	}

	ctr.Favorites.Add(*product)
	return c.JSON(http.StatusOK, ctr.Favorites.Snapshot())
}

func (h *FavoritesHTTP) Toggle(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "favorites.toggle")

	ctr := session.Container(c)
	if ctr == nil {
		l.Error("toggle_favorite_error", "status", 500, "reason", "no session container")
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	product, err := lookupProduct(ctx, h.Catalog, c.Param("id"))
	if err != nil {
		return err
	}

	fav := ctr.Favorites.Toggle(*product)
	return c.JSON(http.StatusOK, transport.ToggleFavoriteResponse{ProductID: product.ID, Favorite: fav})
}

func (h *FavoritesHTTP) Remove(c echo.Context) error {
	ctr := session.Container(c)
	if ctr == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	ctr.Favorites.Remove(c.Param("id"))
	return c.JSON(http.StatusOK, ctr.Favorites.Snapshot())
}

func (h *FavoritesHTTP) Clear(c echo.Context) error {
	ctr := session.Container(c)
	if ctr == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	ctr.Favorites.Clear()
	return c.JSON(http.StatusOK, ctr.Favorites.Snapshot())
}

func (h *FavoritesHTTP) Sync(c echo.Context) error {
	return startSync(c, "favorites.sync", func(ctx context.Context, ctr *state.Container) error {
		_, err := ctr.SyncFavorites(ctx)
		return err
	})
}

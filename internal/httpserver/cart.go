package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/session"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/state"
	"github.com/Skotchmaster/storefront/internal/transport"
)

type CartHTTP struct {
	Catalog catalog.Lookup
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	ctr := session.Container(c)
	if ctr == nil {
		l.Error("add_item_error", "status", 500, "reason", "no session container")
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	var req transport.AddCartItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_item_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.ProductID == "" {
		l.Warn("add_item_error", "status", 400, "reason", "product_id required")
		return echo.NewHTTPError(http.StatusBadRequest, "product_id required")
	}

	product, err := lookupProduct(ctx, h.Catalog, req.ProductID)
	if err != nil {
		return err
	}

	ctr.Cart.AddItem(*product)
	l.Info("item_added", "product_id", product.ID)
	return c.JSON(http.StatusOK, ctr.Cart.Snapshot())
}

func (h *CartHTTP) SetQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_quantity")

	ctr := session.Container(c)
	if ctr == nil {
		l.Error("set_quantity_error", "status", 500, "reason", "no session container")
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	var req transport.SetQuantityRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("set_quantity_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity == nil {
		l.Warn("set_quantity_error", "status", 400, "reason", "quantity required")
		return echo.NewHTTPError(http.StatusBadRequest, "quantity required")
	}

	ctr.Cart.SetQuantity(c.Param("id"), *req.Quantity)
	return c.JSON(http.StatusOK, ctr.Cart.Snapshot())
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctr := session.Container(c)
	if ctr == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	ctr.Cart.RemoveItem(c.Param("id"))
	return c.JSON(http.StatusOK, ctr.Cart.Snapshot())
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctr := session.Container(c)
	if ctr == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	ctr.Cart.Clear()
	return c.JSON(http.StatusOK, ctr.Cart.Snapshot())
}

// Sync starts a push of the cart to the user's remote document and returns
// without waiting for it.
func (h *CartHTTP) Sync(c echo.Context) error {
	return startSync(c, "cart.sync", func(ctx context.Context, ctr *state.Container) error {
		_, err := ctr.SyncCart(ctx)
		return err
	})
}

func lookupProduct(ctx context.Context, lookup catalog.Lookup, id string) (*models.Product, error) {
	l := logging.FromContext(ctx)

	product, err := lookup.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			l.Warn("product_lookup_failed", "status", 404, "product_id", id)
			return nil, echo.NewHTTPError(http.StatusNotFound, "product with this id dont exist")
		}
		l.Error("product_lookup_failed", "status", 500, "product_id", id, "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot get product")
	}
	return product, nil
}

func startSync(c echo.Context, handler string, run func(ctx context.Context, ctr *state.Container) error) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", handler)

	ctr := session.Container(c)
	if ctr == nil {
		l.Error("sync_error", "status", 500, "reason", "no session container")
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}
	if ctr.UserID() == "" {
		l.Warn("sync_error", "status", 401, "reason", "not signed in")
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		if err := run(bg, ctr); err != nil && !errors.Is(err, state.ErrUnauthenticated) {
			l.Error("sync_error", "error", err)
		}
	}()

	return c.JSON(http.StatusAccepted, transport.SyncAcceptedResponse{Status: string(state.SyncPending)})
}

package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/logging"
)

type CatalogHTTP struct {
	Catalog catalog.Lookup
}

func (h *CatalogHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.search")

	q := c.QueryParam("q")
	if q == "" {
		l.Warn("search_error", "status", 400, "reason", "empty query")
		return echo.NewHTTPError(http.StatusBadRequest, "query error")
	}

	page := catalog.ParseIntDefault(c.QueryParam("page"), 1)
	size := catalog.ParseIntDefault(c.QueryParam("size"), 10)
	from, limit := catalog.Paginate(page, size)

	total, products, err := h.Catalog.Search(ctx, q, from, limit)
	if err != nil {
		l.Error("search_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": products,
		"meta": catalog.NewPageMeta(total, page, limit),
	})
}

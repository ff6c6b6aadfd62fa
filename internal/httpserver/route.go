package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Deps struct {
	CartHandler      *CartHTTP
	FavoritesHandler *FavoritesHTTP
	SessionHandler   *SessionHTTP
	CatalogHandler   *CatalogHTTP

	// Session resolves the caller's container. CSRF and RequireLogin are
	// optional; RequireLogin guards the routes that need a signed-in user.
	Session      echo.MiddlewareFunc
	CSRF         echo.MiddlewareFunc
	RequireLogin echo.MiddlewareFunc
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")
	v1.GET("/catalog/search", d.CatalogHandler.Search)

	mws := []echo.MiddlewareFunc{d.Session}
	if d.CSRF != nil {
		mws = append(mws, d.CSRF)
	}
	s := v1.Group("", mws...)

	var private []echo.MiddlewareFunc
	if d.RequireLogin != nil {
		private = append(private, d.RequireLogin)
	}

	s.GET("/state", d.SessionHandler.State)

	s.POST("/cart/items", d.CartHandler.AddItem)
	s.PATCH("/cart/items/:id", d.CartHandler.SetQuantity)
	s.DELETE("/cart/items/:id", d.CartHandler.RemoveItem)
	s.DELETE("/cart", d.CartHandler.Clear)
	s.POST("/cart/sync", d.CartHandler.Sync, private...)

	s.POST("/favorites/sync", d.FavoritesHandler.Sync, private...)
	s.POST("/favorites/:id", d.FavoritesHandler.Add)
	s.POST("/favorites/:id/toggle", d.FavoritesHandler.Toggle)
	s.DELETE("/favorites/:id", d.FavoritesHandler.Remove)
	s.DELETE("/favorites", d.FavoritesHandler.Clear)

	s.POST("/auth/signup", d.SessionHandler.SignUp)
	s.POST("/auth/signin", d.SessionHandler.SignIn)
	s.POST("/auth/signout", d.SessionHandler.SignOut)

	s.GET("/profile", d.SessionHandler.GetProfile, private...)
	s.PATCH("/profile", d.SessionHandler.UpdateProfile, private...)
}

// Package session maps the sid cookie to the caller's state container.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/state"
)

const (
	CookieName      = "sid"
	TokenCookieName = "id_token"

	containerKey = "state_container"
	sidKey       = "sid"
)

// Resolver returns the container for sid, creating it when needed. idToken
// may be used to restore a signed-in user into a new container. release is
// called once the request is done with the container.
type Resolver interface {
	Resolve(ctx context.Context, sid, idToken string) (ctr *state.Container, release func(), err error)
}

type Config struct {
	Secure bool
	MaxAge time.Duration
}

func Middleware(cfg Config, resolver Resolver) echo.MiddlewareFunc {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			sid := ""
			if ck, err := req.Cookie(CookieName); err == nil {
				if _, err := uuid.Parse(ck.Value); err == nil {
					sid = ck.Value
				}
			}
			if sid == "" {
				sid = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     CookieName,
					Value:    sid,
					Path:     "/",
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   int(cfg.MaxAge.Seconds()),
				})
			}

			idToken := ""
			if ck, err := req.Cookie(TokenCookieName); err == nil {
				idToken = ck.Value
			}

			l := logging.FromContext(req.Context()).With("sid", sid)
			ctx := logging.IntoContext(req.Context(), l)
			c.SetRequest(req.WithContext(ctx))

			ctr, release, err := resolver.Resolve(ctx, sid, idToken)
			if err != nil {
				l.Error("session_resolve_failed", "status", 500, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
			}
			defer release()

			c.Set(sidKey, sid)
			c.Set(containerKey, ctr)
			return next(c)
		}
	}
}

// Container returns the container the middleware attached, or nil.
func Container(c echo.Context) *state.Container {
	ctr, _ := c.Get(containerKey).(*state.Container)
	return ctr
}

func SID(c echo.Context) string {
	sid, _ := c.Get(sidKey).(string)
	return sid
}

// WithContainer attaches ctr to c directly. Handler tests use it instead of
// running the middleware.
func WithContainer(c echo.Context, sid string, ctr *state.Container) {
	c.Set(sidKey, sid)
	c.Set(containerKey, ctr)
}

// TokenCookie carries the signed-in user's id token between requests.
func TokenCookie(token string, exp time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func ExpiredTokenCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

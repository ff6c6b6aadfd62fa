// Package authmw gates routes on the session's signed-in user.
package authmw

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/session"
)

// TokenSource returns the current id token for a session, refreshing it
// when it has expired.
type TokenSource interface {
	IDToken(ctx context.Context, sid string) (string, time.Time, bool)
}

type Config struct {
	Tokens TokenSource
	Secure bool
}

// RequireLogin rejects requests whose session has no signed-in user. When
// the id token was refreshed since the caller's cookie was set, the cookie
// is rewritten before the handler runs.
func RequireLogin(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("middleware", "require_login")

			ctr := session.Container(c)
			if ctr == nil || ctr.UserID() == "" {
				l.Warn("unauthorized", "status", 401, "path", c.Path())
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			if cfg.Tokens != nil {
				refreshTokenCookie(c, cfg)
			}
			return next(c)
		}
	}
}

func refreshTokenCookie(c echo.Context, cfg Config) {
	token, exp, ok := cfg.Tokens.IDToken(c.Request().Context(), session.SID(c))
	if !ok {
		return
	}
	if ck, err := c.Cookie(session.TokenCookieName); err == nil && ck.Value == token {
		return
	}
	c.SetCookie(session.TokenCookie(token, exp, cfg.Secure))
}

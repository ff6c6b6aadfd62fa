package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/session"
	"github.com/Skotchmaster/storefront/internal/state"
	"github.com/Skotchmaster/storefront/internal/transport"
)

// TokenSource hands out the id token of the user signed in on a session.
type TokenSource interface {
	IDToken(ctx context.Context, sid string) (string, time.Time, bool)
}

type SessionHTTP struct {
	Tokens       TokenSource
	CookieSecure bool
}

func (h *SessionHTTP) State(c echo.Context) error {
	ctr := session.Container(c)
	if ctr == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}
	return c.JSON(http.StatusOK, ctr.Snapshot())
}

func (h *SessionHTTP) SignUp(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_up")

	ctr := session.Container(c)
	if ctr == nil {
		l.Error("sign_up_error", "status", 500, "reason", "no session container")
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	var req transport.SignUpRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("sign_up_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	id, err := ctr.Actions.SignUp(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return authFailure(c, l, "sign_up_error", err)
	}

	h.setTokenCookie(c)
	l.Info("sign_up_successful", "user_id", id.ID)
	return c.JSON(http.StatusCreated, transport.SessionResponse{User: id, IsAuthenticated: true})
}

func (h *SessionHTTP) SignIn(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_in")

	ctr := session.Container(c)
	if ctr == nil {
		l.Error("sign_in_error", "status", 500, "reason", "no session container")
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	var req transport.SignInRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("sign_in_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	id, err := ctr.Actions.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return authFailure(c, l, "sign_in_error", err)
	}

	h.setTokenCookie(c)
	l.Info("sign_in_successful", "user_id", id.ID)
	return c.JSON(http.StatusOK, transport.SessionResponse{User: id, IsAuthenticated: true})
}

func (h *SessionHTTP) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_out")

	c.SetCookie(session.ExpiredTokenCookie(h.CookieSecure))

	ctr := session.Container(c)
	if ctr == nil {
		l.Error("sign_out_error", "status", 500, "reason", "no session container")
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}
	if err := ctr.Actions.SignOut(ctx); err != nil {
		l.Error("sign_out_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot sign out")
	}

	l.Info("sign_out_successful")
	return c.JSON(http.StatusOK, transport.SessionResponse{})
}

func (h *SessionHTTP) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.get")

	ctr := session.Container(c)
	if ctr == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	if err := ctr.Actions.FetchProfile(ctx); err != nil {
		if errors.Is(err, state.ErrUnauthenticated) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		l.Error("get_profile_error", "status", 502, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, state.AuthErrorMessage(auth.ErrorCode(err)))
	}
	return c.JSON(http.StatusOK, ctr.Session.Snapshot().Profile)
}

func (h *SessionHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.update")

	ctr := session.Container(c)
	if ctr == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}

	var req transport.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_profile_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := ctr.Actions.UpdateProfile(ctx, req.Patch()); err != nil {
		if errors.Is(err, state.ErrUnauthenticated) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		l.Error("update_profile_error", "status", 502, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, state.AuthErrorMessage(auth.ErrorCode(err)))
	}
	return c.JSON(http.StatusOK, ctr.Session.Snapshot().Profile)
}

func (h *SessionHTTP) setTokenCookie(c echo.Context) {
	if h.Tokens == nil {
		return
	}
	token, exp, ok := h.Tokens.IDToken(c.Request().Context(), session.SID(c))
	if !ok {
		return
	}
	c.SetCookie(session.TokenCookie(token, exp, h.CookieSecure))
}

func authFailure(c echo.Context, l *slog.Logger, event string, err error) error {
	code := auth.ErrorCode(err)
	status := authStatus(code)
	l.Warn(event, "status", status, "code", code, "error", err)
	return c.JSON(status, transport.AuthErrorResponse{Code: code, Message: state.AuthErrorMessage(code)})
}

func authStatus(code string) int {
	switch code {
	case auth.CodeInvalidEmail, auth.CodeWeakPassword:
		return http.StatusBadRequest
	case auth.CodeEmailAlreadyInUse:
		return http.StatusConflict
	case auth.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case auth.CodeUserNotFound, auth.CodeWrongPassword, auth.CodeInvalidCredential, auth.CodeUserDisabled:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

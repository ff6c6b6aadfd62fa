package state

import (
	"context"
	"errors"
	"sync"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/logging"
)

var ErrUnauthenticated = errors.New("not signed in")

type AuthProvider interface {
	Subscribe(fn func(*auth.User)) func()
	SignIn(ctx context.Context, email, password string) (*auth.User, error)
	SignUp(ctx context.Context, email, password, displayName string) (*auth.User, error)
	SignOut(ctx context.Context) error
}

type ProfileProvider interface {
	GetProfile(ctx context.Context, userID string) (*auth.ProfileRecord, error)
	UpdateProfile(ctx context.Context, userID string, upd auth.ProfileUpdate) (*auth.ProfileRecord, error)
}

const genericAuthMessage = "Something went wrong. Please try again."

var authMessages = map[string]string{
	auth.CodeInvalidEmail:      "Please enter a valid email address.",
	auth.CodeUserNotFound:      "No account found with this email.",
	auth.CodeWrongPassword:     "Incorrect password.",
	auth.CodeInvalidCredential: "Invalid email or password.",
	auth.CodeEmailAlreadyInUse: "An account with this email already exists.",
	auth.CodeWeakPassword:      "Password should be at least 6 characters.",
	auth.CodeTooManyRequests:   "Too many attempts. Please try again later.",
	auth.CodeUserDisabled:      "This account has been disabled.",
}

// AuthErrorMessage maps a provider code to the text shown to the user.
func AuthErrorMessage(code string) string {
	if msg, ok := authMessages[code]; ok {
		return msg
	}
	return genericAuthMessage
}

// SessionActions drives a SessionStore from the auth and profile providers.
type SessionActions struct {
	store    *SessionStore
	auth     AuthProvider
	profiles ProfileProvider

	mu     sync.Mutex
	unbind func()
}

func NewSessionActions(store *SessionStore, ap AuthProvider, pp ProfileProvider) *SessionActions {
	return &SessionActions{store: store, auth: ap, profiles: pp}
}

// Bind subscribes to identity changes. Calling it again is a no-op. The
// listener never returns errors; profile failures end up in the store.
func (a *SessionActions) Bind(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unbind != nil || a.auth == nil {
		return
	}

	a.unbind = a.auth.Subscribe(func(u *auth.User) {
		if u == nil {
			a.store.SignedOut()
			return
		}
		prev := a.store.Snapshot().User
		a.store.SetUser(NormalizeIdentity(u))
		if prev != nil && prev.ID == u.UID && a.store.Snapshot().Profile != nil {
			return
		}
		if err := a.FetchProfile(ctx); err != nil {
			logging.FromContext(ctx).Warn("profile_fetch_failed", "svc", "state.session", "user_id", u.UID, "error", err)
		}
	})
}

func (a *SessionActions) Unbind() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unbind != nil {
		a.unbind()
		a.unbind = nil
	}
}

// SignIn records failures in the store and also returns them.
func (a *SessionActions) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	a.store.BeginLoading()
	u, err := a.auth.SignIn(ctx, email, password)
	if err != nil {
		a.store.SetError(AuthErrorMessage(auth.ErrorCode(err)))
		return nil, err
	}
	id := NormalizeIdentity(u)
	a.store.SetUser(id)
	return id, nil
}

func (a *SessionActions) SignUp(ctx context.Context, email, password, displayName string) (*Identity, error) {
	a.store.BeginLoading()
	u, err := a.auth.SignUp(ctx, email, password, displayName)
	if err != nil {
		a.store.SetError(AuthErrorMessage(auth.ErrorCode(err)))
		return nil, err
	}
	id := NormalizeIdentity(u)
	a.store.SetUser(id)
	return id, nil
}

func (a *SessionActions) SignOut(ctx context.Context) error {
	if err := a.auth.SignOut(ctx); err != nil {
		a.store.SetError(AuthErrorMessage(auth.ErrorCode(err)))
		return err
	}
	a.store.SignedOut()
	return nil
}

func (a *SessionActions) FetchProfile(ctx context.Context) error {
	user := a.store.Snapshot().User
	if user == nil {
		return ErrUnauthenticated
	}
	if a.profiles == nil {
		return nil
	}
	rec, err := a.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		a.store.SetError(AuthErrorMessage(auth.ErrorCode(err)))
		return err
	}
	a.store.SetProfile(profileFromRecord(rec))
	return nil
}

// UpdateProfile writes patch through the provider, then merges it into the
// stored profile. Timestamps are normalized before either happens.
func (a *SessionActions) UpdateProfile(ctx context.Context, patch ProfilePatch) error {
	user := a.store.Snapshot().User
	if user == nil {
		return ErrUnauthenticated
	}

	upd := auth.ProfileUpdate{
		DisplayName: patch.DisplayName,
		Phone:       patch.Phone,
		Addresses:   patch.Addresses,
		Preferences: patch.Preferences,
	}
	patch.CreatedAt = normalizedOrNil(patch.CreatedAt)
	patch.LastLoginAt = normalizedOrNil(patch.LastLoginAt)
	if ts, ok := patch.CreatedAt.(string); ok {
		upd.CreatedAt = &ts
	}
	if ts, ok := patch.LastLoginAt.(string); ok {
		upd.LastLoginAt = &ts
	}

	if a.profiles != nil {
		if _, err := a.profiles.UpdateProfile(ctx, user.ID, upd); err != nil {
			a.store.SetError(AuthErrorMessage(auth.ErrorCode(err)))
			return err
		}
	}
	a.store.MergeProfile(patch)
	return nil
}

func normalizedOrNil(v any) any {
	if ts, ok := NormalizeTimestamp(v); ok {
		return ts
	}
	return nil
}

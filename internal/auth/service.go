package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

const (
	minPasswordLen  = 6
	defaultTokenTTL = time.Hour

	// failed sign-ins allowed per email before the provider throttles
	signInBurst  = 5
	signInRefill = 3 * time.Minute
)

// Service owns accounts and profiles. It hands out one Client per session.
type Service struct {
	Repo     *repo.GormRepo
	Secret   []byte
	TokenTTL time.Duration

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

func NewService(r *repo.GormRepo, secret []byte) *Service {
	return &Service{
		Repo:     r,
		Secret:   secret,
		TokenTTL: defaultTokenTTL,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (s *Service) NewClient() *Client {
	return &Client{svc: s}
}

func (s *Service) signIn(ctx context.Context, email, password string) (*User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.sign_in")

	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, newError(CodeInvalidEmail, err)
	}

	lim := s.limiter(email)
	if lim.Tokens() < 1 {
		l.Warn("sign_in_throttled", "status", 429)
		return nil, newError(CodeTooManyRequests, nil)
	}

	u, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			lim.Allow()
			return nil, newError(CodeUserNotFound, nil)
		}
		l.Error("sign_in_error", "status", 500, "error", err)
		return nil, newError(CodeInternal, err)
	}
	if !hash.CheckPassword(u.PasswordHash, password) {
		lim.Allow()
		return nil, newError(CodeWrongPassword, nil)
	}
	if u.Disabled {
		return nil, newError(CodeUserDisabled, nil)
	}

	now := time.Now().UTC()
	if err := s.Repo.TouchLastLogin(ctx, u.ID, now); err != nil {
		l.Warn("sign_in_touch_failed", "error", err)
	} else {
		u.LastLoginAt = now
	}

	return s.userFromModel(u)
}

func (s *Service) signUp(ctx context.Context, email, password, displayName string) (*User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.sign_up")

	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, newError(CodeInvalidEmail, err)
	}
	if len(password) < minPasswordLen {
		return nil, newError(CodeWeakPassword, nil)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("sign_up_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, newError(CodeInternal, err)
	}

	now := time.Now().UTC()
	u := &models.User{
		Email:        email,
		PasswordHash: pwHash,
		DisplayName:  strings.TrimSpace(displayName),
		LastLoginAt:  now,
	}
	if _, err := s.Repo.CreateUserWithProfile(ctx, u); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("sign_up_error", "status", 409, "reason", "user already exist")
			return nil, newError(CodeEmailAlreadyInUse, err)
		}
		l.Error("sign_up_error", "status", 500, "error", err)
		return nil, newError(CodeInternal, err)
	}

	return s.userFromModel(u)
}

// restore resolves a previously issued id token back into a signed-in user.
func (s *Service) restore(ctx context.Context, idToken string) (*User, error) {
	claims, err := tokens.IDClaimsFromToken(idToken, s.Secret)
	if err != nil {
		return nil, newError(CodeInvalidCredential, err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, newError(CodeInvalidCredential, err)
	}
	u, err := s.Repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(CodeUserNotFound, nil)
		}
		return nil, newError(CodeInternal, err)
	}
	if u.Disabled {
		return nil, newError(CodeUserDisabled, nil)
	}
	return s.userFromModel(u)
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*ProfileRecord, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, newError(CodeUserNotFound, err)
	}
	p, err := s.Repo.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(CodeUserNotFound, err)
		}
		return nil, newError(CodeInternal, err)
	}
	return recordFromModel(p), nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*ProfileRecord, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, newError(CodeUserNotFound, err)
	}

	var created, lastLogin time.Time
	if upd.CreatedAt != nil {
		if created, err = time.Parse(time.RFC3339Nano, *upd.CreatedAt); err != nil {
			return nil, newError(CodeInternal, fmt.Errorf("createdAt: %w", err))
		}
	}
	if upd.LastLoginAt != nil {
		if lastLogin, err = time.Parse(time.RFC3339Nano, *upd.LastLoginAt); err != nil {
			return nil, newError(CodeInternal, fmt.Errorf("lastLoginAt: %w", err))
		}
	}

	p, err := s.Repo.SaveProfile(ctx, id, func(p *models.Profile) {
		if upd.DisplayName != nil {
			p.DisplayName = *upd.DisplayName
		}
		if upd.Phone != nil {
			p.Phone = *upd.Phone
		}
		if upd.Addresses != nil {
			p.Addresses = upd.Addresses
		}
		if upd.Preferences != nil {
			p.Preferences = *upd.Preferences
		}
		if upd.CreatedAt != nil {
			p.CreatedAt = created
		}
		if upd.LastLoginAt != nil {
			p.LastLoginAt = lastLogin
		}
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(CodeUserNotFound, err)
		}
		return nil, newError(CodeInternal, err)
	}
	return recordFromModel(p), nil
}

func (s *Service) userFromModel(u *models.User) (*User, error) {
	token, exp, err := s.mintToken(u)
	if err != nil {
		return nil, newError(CodeInternal, err)
	}
	user := &User{
		UID:           u.ID.String(),
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		EmailVerified: u.EmailVerified,
		IDToken:       token,
		ExpiresAt:     exp,
		Metadata:      metadataFromModel(u),
	}
	snapshot := *u
	user.refresh = func(ctx context.Context) (string, time.Time, error) {
		return s.mintToken(&snapshot)
	}
	return user, nil
}

func (s *Service) mintToken(u *models.User) (string, time.Time, error) {
	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	exp := time.Now().Add(ttl).UTC()
	token, err := tokens.NewIDToken(s.Secret, u.ID.String(), u.Email, u.EmailVerified, exp)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (s *Service) limiter(email string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	if s.limiters == nil {
		s.limiters = make(map[string]*rate.Limiter)
	}
	lim, ok := s.limiters[email]
	if !ok {
		lim = rate.NewLimiter(rate.Every(signInRefill), signInBurst)
		s.limiters[email] = lim
	}
	return lim
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

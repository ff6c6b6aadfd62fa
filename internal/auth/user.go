package auth

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/Skotchmaster/storefront/internal/models"
)

type Metadata struct {
	CreationTime   *timestamppb.Timestamp
	LastSignInTime *timestamppb.Timestamp
}

// User is the provider's view of a signed-in account. IDToken, ExpiresAt,
// Metadata and the refresh hook belong to the provider and are not meant
// to be stored by callers.
type User struct {
	UID           string
	Email         string
	DisplayName   string
	PhotoURL      string
	EmailVerified bool

	IDToken   string
	ExpiresAt time.Time
	Metadata  Metadata

	refresh func(ctx context.Context) (string, time.Time, error)
}

// GetIDToken returns the current id token, minting a new one when it is
// expired or forceRefresh is set.
func (u *User) GetIDToken(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh && time.Now().Before(u.ExpiresAt) {
		return u.IDToken, nil
	}
	if u.refresh == nil {
		return "", newError(CodeRequiresRecentLogin, nil)
	}
	token, exp, err := u.refresh(ctx)
	if err != nil {
		return "", err
	}
	u.IDToken, u.ExpiresAt = token, exp
	return token, nil
}

type ProfileRecord struct {
	UserID      string
	DisplayName string
	Phone       string
	Addresses   []models.Address
	Preferences models.Preferences
	CreatedAt   *timestamppb.Timestamp
	LastLoginAt *timestamppb.Timestamp
}

// ProfileUpdate is a partial write; nil fields are left untouched.
// Timestamps are textual and parsed by the provider.
type ProfileUpdate struct {
	DisplayName *string
	Phone       *string
	Addresses   []models.Address
	Preferences *models.Preferences
	CreatedAt   *string
	LastLoginAt *string
}

func recordFromModel(p *models.Profile) *ProfileRecord {
	rec := &ProfileRecord{
		UserID:      p.UserID.String(),
		DisplayName: p.DisplayName,
		Phone:       p.Phone,
		Addresses:   append([]models.Address(nil), p.Addresses...),
		Preferences: p.Preferences,
	}
	if !p.CreatedAt.IsZero() {
		rec.CreatedAt = timestamppb.New(p.CreatedAt)
	}
	if !p.LastLoginAt.IsZero() {
		rec.LastLoginAt = timestamppb.New(p.LastLoginAt)
	}
	return rec
}

func metadataFromModel(u *models.User) Metadata {
	var md Metadata
	if !u.CreatedAt.IsZero() {
		md.CreationTime = timestamppb.New(u.CreatedAt)
	}
	if !u.LastLoginAt.IsZero() {
		md.LastSignInTime = timestamppb.New(u.LastLoginAt)
	}
	return md
}

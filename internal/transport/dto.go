package transport

import (
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/state"
)

type AddCartItemRequest struct {
	ProductID string `json:"product_id"`
}

type SetQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	User            *state.Identity `json:"user"`
	IsAuthenticated bool            `json:"is_authenticated"`
}

type AuthErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ToggleFavoriteResponse struct {
	ProductID string `json:"product_id"`
	Favorite  bool   `json:"favorite"`
}

type SyncAcceptedResponse struct {
	Status string `json:"status"`
}

// UpdateProfileRequest is a partial update; absent fields are kept.
// Timestamps may be RFC 3339 text or unix milliseconds.
type UpdateProfileRequest struct {
	DisplayName *string             `json:"display_name"`
	Phone       *string             `json:"phone"`
	Addresses   []models.Address    `json:"addresses"`
	Preferences *models.Preferences `json:"preferences"`
	CreatedAt   any                 `json:"created_at"`
	LastLoginAt any                 `json:"last_login_at"`
}

func (r UpdateProfileRequest) Patch() state.ProfilePatch {
	return state.ProfilePatch{
		DisplayName: r.DisplayName,
		Phone:       r.Phone,
		Addresses:   r.Addresses,
		Preferences: r.Preferences,
		CreatedAt:   r.CreatedAt,
		LastLoginAt: r.LastLoginAt,
	}
}

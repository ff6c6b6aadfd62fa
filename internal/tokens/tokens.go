package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IDClaims identify a signed-in account to the auth provider.
type IDClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

func NewIDToken(secret []byte, userID, email string, verified bool, exp time.Time) (string, error) {
	claims := IDClaims{
		Email:         email,
		EmailVerified: verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func IDClaimsFromToken(tokenStr string, secret []byte) (*IDClaims, error) {
	var claims IDClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return &claims, nil
}

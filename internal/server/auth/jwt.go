// Package auth implements JWT access tokens and password hashing for the
// walletsync server.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/walletsync/internal/common"
)

// Claims carries the standard claims plus the authenticated owner's id.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"owner_id"`
}

// GenerateToken issues an HS256 access token for the owner.
func GenerateToken(ownerID string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		OwnerID: ownerID,
	})
	return token.SignedString(secretKey)
}

// OwnerIDFromToken validates the token and returns the owner id it was
// issued for. An expired token yields ErrTokenExpired so the client can
// refresh instead of re-authenticating.
func OwnerIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}
	if !token.Valid || claims.OwnerID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.OwnerID, nil
}

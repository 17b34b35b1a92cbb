package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"littlelemon/internal/models"
)

const accessTokenTTL = 24 * time.Hour

// SignAccessToken issues an HS256 token for the user. The role claim is
// informational; authorization always re-resolves the role from the store.
func SignAccessToken(user *models.User, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role()),
		"exp":  time.Now().Add(accessTokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

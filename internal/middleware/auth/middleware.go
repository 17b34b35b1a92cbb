package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"littlelemon/internal/models"
)

const (
	ctxUserID = "userID"
	ctxRole   = "role"
)

type Middleware struct {
	DB        *gorm.DB
	JWTSecret []byte
}

// RequireAuth authenticates the bearer token, loads the user with its group
// memberships and resolves the role once, here, for the whole request.
func (m *Middleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, err := extractToken(c)
		if err != nil {
			return err
		}

		userID, err := parseAccessToken(raw, m.JWTSecret)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		var user models.User
		if err := m.DB.Preload("Groups").First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxRole, user.Role())
		return next(c)
	}
}

// RequireRoles gates a route to the given roles. It must run after RequireAuth.
func (m *Middleware) RequireRoles(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ctxRole).(models.Role)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, r := range roles {
				if r == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}
	}
}

func UserID(c echo.Context) (uint, error) {
	id, ok := c.Get(ctxUserID).(uint)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

func RoleOf(c echo.Context) models.Role {
	if role, ok := c.Get(ctxRole).(models.Role); ok {
		return role
	}
	return models.RoleCustomer
}

func extractToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	for _, scheme := range []string{"Bearer ", "Token "} {
		if strings.HasPrefix(header, scheme) {
			return strings.TrimPrefix(header, scheme), nil
		}
	}
	if cookie, err := c.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", echo.NewHTTPError(http.StatusUnauthorized, "missing auth token")
}

func parseAccessToken(raw string, secret []byte) (uint, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid token claims")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, errors.New("invalid subject claim")
	}
	return uint(sub), nil
}

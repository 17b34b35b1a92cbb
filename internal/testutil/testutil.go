// Package testutil wires an in-memory database and request helpers shared by
// the handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"littlelemon/internal/config"
	"littlelemon/internal/hash"
	"littlelemon/internal/models"
)

var dbSeq atomic.Int64

// OpenDB opens a fresh in-memory sqlite database with the full schema and
// the seeded role groups.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

// NewUser creates a user with a bcrypt-hashed password and optional group
// memberships ("Manager", "Delivery Crew").
func NewUser(t *testing.T, db *gorm.DB, username string, staff bool, groups ...string) *models.User {
	t.Helper()

	pwHash, err := hash.HashPassword("password123")
	require.NoError(t, err)

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: pwHash,
		IsStaff:      staff,
	}
	require.NoError(t, db.Create(&user).Error)

	for _, name := range groups {
		var g models.Group
		require.NoError(t, db.Where("name = ?", name).First(&g).Error)
		require.NoError(t, db.Model(&user).Association("Groups").Append(&g))
	}
	require.NoError(t, db.Preload("Groups").First(&user, user.ID).Error)
	return &user
}

// JSONRequest builds an echo context carrying a JSON body; the returned
// recorder captures whatever the handler writes.
func JSONRequest(t *testing.T, e *echo.Echo, method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, c
}

// ActAs marks the context as authenticated, the way the auth middleware does
// after resolving the role.
func ActAs(c echo.Context, user *models.User) {
	c.Set("userID", user.ID)
	c.Set("role", user.Role())
}

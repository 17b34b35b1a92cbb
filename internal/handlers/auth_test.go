package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"littlelemon/internal/testutil"
)

var testSecret = []byte("test-secret")

func TestRegister(t *testing.T) {
	db := testutil.OpenDB(t)
	e := echo.New()
	h := &AuthHandler{DB: db, JWTSecret: testSecret}

	rec, c := testutil.JSONRequest(t, e, http.MethodPost, "/users", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Same username again.
	rec, c = testutil.JSONRequest(t, e, http.MethodPost, "/users", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	db := testutil.OpenDB(t)
	e := echo.New()
	h := &AuthHandler{DB: db, JWTSecret: testSecret}

	rec, c := testutil.JSONRequest(t, e, http.MethodPost, "/users", map[string]string{})
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var fieldErrs map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fieldErrs))
	require.Contains(t, fieldErrs, "username")
	require.Contains(t, fieldErrs, "password")
}

func TestObtainToken(t *testing.T) {
	db := testutil.OpenDB(t)
	e := echo.New()
	h := &AuthHandler{DB: db, JWTSecret: testSecret}
	user := testutil.NewUser(t, db, "alice", false)

	rec, c := testutil.JSONRequest(t, e, http.MethodPost, "/api-token-auth", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	require.NoError(t, h.ObtainToken(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	token, err := jwt.Parse(resp.Token, func(t *jwt.Token) (interface{}, error) { return testSecret, nil })
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	require.EqualValues(t, user.ID, claims["sub"])
}

func TestObtainTokenBadCredentials(t *testing.T) {
	db := testutil.OpenDB(t)
	e := echo.New()
	h := &AuthHandler{DB: db, JWTSecret: testSecret}
	testutil.NewUser(t, db, "alice", false)

	rec, c := testutil.JSONRequest(t, e, http.MethodPost, "/api-token-auth", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	require.NoError(t, h.ObtainToken(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, c = testutil.JSONRequest(t, e, http.MethodPost, "/api-token-auth", map[string]string{
		"username": "nobody",
		"password": "password123",
	})
	require.NoError(t, h.ObtainToken(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	r.GET("/optional", OptionalAuth(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetUserID(c))
	})
	r.GET("/private", RequireAuth(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetUserID(c))
	})
	r.GET("/admin", RequireAuth(testSecret), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doGet(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newAuthRouter()
	token, err := GenerateToken(7, "a@b.c", "user", testSecret, time.Hour)
	require.NoError(t, err)

	w := doGet(r, "/private", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doGet(r, "/private", token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "7", w.Body.String())

	forged, err := GenerateToken(7, "a@b.c", "user", "other-secret", time.Hour)
	require.NoError(t, err)
	w = doGet(r, "/private", forged)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthTreatsBadTokenAsAnonymous(t *testing.T) {
	r := newAuthRouter()

	w := doGet(r, "/optional", "garbage")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "0", w.Body.String())

	expired, err := GenerateToken(3, "", "user", testSecret, -time.Minute)
	require.NoError(t, err)
	w = doGet(r, "/optional", expired)
	require.Equal(t, "0", w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	r := newAuthRouter()
	user, _ := GenerateToken(1, "", "user", testSecret, time.Hour)
	admin, _ := GenerateToken(2, "", RoleAdmin, testSecret, time.Hour)

	require.Equal(t, http.StatusForbidden, doGet(r, "/admin", user).Code)
	require.Equal(t, http.StatusNoContent, doGet(r, "/admin", admin).Code)
}

func TestShouldRefresh(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(3 * time.Hour)),
	}}
	require.True(t, shouldRefresh(claims, time.Now()))
	require.False(t, shouldRefresh(claims, issued.Add(time.Hour)))
	require.False(t, shouldRefresh(&Claims{}, time.Now()))
}

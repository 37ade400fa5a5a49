package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-secret"

func newAuthRouter(roles ...int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{AuthMiddleware()}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		userID, _ := CurrentUserID(c)
		roleID, _ := CurrentRoleID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "role_id": roleID})
	})
	r.GET("/me", handlers...)
	return r
}

func call(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func signed(t *testing.T, key string, userID, roleID int, expires time.Time) string {
	t.Helper()
	tok, err := IssueToken(key, userID, roleID, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expires)})
	require.NoError(t, err)
	return tok
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	w := call(newAuthRouter(), "Bearer "+signed(t, secret, 42, RoleReviewer, time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":42,"role_id":2}`, w.Body.String())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	r := newAuthRouter()

	cases := map[string]string{
		"missing header": "",
		"no bearer":      signed(t, secret, 1, RoleAdmin, time.Now().Add(time.Hour)),
		"wrong secret":   "Bearer " + signed(t, "other", 1, RoleAdmin, time.Now().Add(time.Hour)),
		"expired":        "Bearer " + signed(t, secret, 1, RoleAdmin, time.Now().Add(-time.Minute)),
		"no user":        "Bearer " + signed(t, secret, 0, RoleAdmin, time.Now().Add(time.Hour)),
	}
	for name, header := range cases {
		assert.Equal(t, http.StatusUnauthorized, call(r, header).Code, name)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1, RoleID: RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+unsigned).Code)
}

func TestAuthMiddlewareWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	w := call(newAuthRouter(), "Bearer abc")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireRole(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	r := newAuthRouter(RoleAdmin)

	assert.Equal(t, http.StatusForbidden, call(r, "Bearer "+signed(t, secret, 5, RoleStudent, time.Now().Add(time.Hour))).Code)
	assert.Equal(t, http.StatusOK, call(r, "Bearer "+signed(t, secret, 5, RoleAdmin, time.Now().Add(time.Hour))).Code)
}

func TestCORSMiddleware(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://pkm.example.ac.th")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://pkm.example.ac.th")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://pkm.example.ac.th", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

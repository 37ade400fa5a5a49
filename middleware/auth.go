package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Role ids carried in the token's role_id claim.
const (
	RoleStudent  = 1
	RoleReviewer = 2
	RoleAdmin    = 3
)

const (
	ctxUserID = "userID"
	ctxRoleID = "roleID"
)

type Claims struct {
	UserID int `json:"user_id"`
	RoleID int `json:"role_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates JWT token
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "code": "unauthorized"})
			c.Abort()
			return
		}

		// Check Bearer prefix
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format", "code": "unauthorized"})
			c.Abort()
			return
		}

		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "JWT_SECRET is not configured", "code": "internal_error"})
			c.Abort()
			return
		}

		// Parse token
		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "code": "unauthorized"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || claims.UserID <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims", "code": "unauthorized"})
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRoleID, claims.RoleID)

		c.Next()
	}
}

// RequireRole checks if user has specific role
func RequireRole(roleIDs ...int) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := CurrentRoleID(c)
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "Role not found", "code": "forbidden"})
			c.Abort()
			return
		}

		allowed := false
		for _, roleID := range roleIDs {
			if userRole == roleID {
				allowed = true
				break
			}
		}

		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions", "code": "forbidden"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUserID returns the authenticated user id.
func CurrentUserID(c *gin.Context) (int, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

// CurrentRoleID returns the authenticated role id.
func CurrentRoleID(c *gin.Context) (int, bool) {
	v, ok := c.Get(ctxRoleID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

// IssueToken signs claims for the given identity. Used by the operator CLI
// and tests; there is no login endpoint.
func IssueToken(secret string, userID, roleID int, claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:           userID,
		RoleID:           roleID,
		RegisteredClaims: claims,
	})
	return token.SignedString([]byte(secret))
}

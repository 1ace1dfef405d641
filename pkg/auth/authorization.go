package auth

import (
	"context"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/tholdem/uniqn-sync/pkg/records"
)

const (
	tokenKey = "token"
	userKey  = "userId"
	roleKey  = "role"
)

// TokenVerifier is implemented by *auth.Client of the Firebase SDK.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// AuthMiddleware verifies the Firebase ID token of the request and attaches
// the token, the user id and the role claim to the context. Users without
// a role claim are staff.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is missing"})
			c.Abort()
			return
		}
		idToken, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || idToken == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must be a bearer token"})
			c.Abort()
			return
		}

		token, err := verifier.VerifyIDToken(c.Request.Context(), idToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid ID token"})
			c.Abort()
			return
		}

		role := records.RoleStaff
		if claim, ok := token.Claims["role"].(string); ok && claim != "" {
			role, err = records.ParseRole(claim)
			if err != nil {
				c.JSON(http.StatusForbidden, gin.H{"error": "unknown role"})
				c.Abort()
				return
			}
		}

		// Attach token to the context
		c.Set(tokenKey, token)
		c.Set(userKey, token.UID)
		c.Set(roleKey, role)

		c.Next()
	}
}

// RequireRole aborts requests whose role is not one of roles. It must run
// after AuthMiddleware.
func RequireRole(roles ...records.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		c.Abort()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(userKey)
}

func Role(c *gin.Context) records.Role {
	role, _ := c.Get(roleKey)
	r, _ := role.(records.Role)
	return r
}

// WithIdentity sets the values AuthMiddleware would set. Tests and
// trusted internal callers use it in place of token verification.
func WithIdentity(userID string, role records.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(userKey, userID)
		c.Set(roleKey, role)
		c.Next()
	}
}

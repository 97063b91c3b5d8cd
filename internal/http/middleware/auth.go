// README: Firebase ID-token auth; exposes the caller uid and role to handlers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridebook/internal/infra"
)

const (
	RoleDriver = infra.RoleDriver
	RoleAdmin  = infra.RoleAdmin
)

const (
	callerUIDKey  = "caller_uid"
	callerRoleKey = "caller_role"
)

func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil || token == nil || token.UID == "" {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		c.Set(callerUIDKey, token.UID)
		c.Set(callerRoleKey, token.Role)
		c.Next()
	}
}

// RequireRole must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CallerRole(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "forbidden")
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(callerUIDKey)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(callerRoleKey)
}

func abort(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}

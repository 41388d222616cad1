package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/statlerhq/accounts/internal/application"
	"github.com/statlerhq/accounts/internal/domain/entity"
	"github.com/statlerhq/accounts/pkg/response"
)

const (
	CtxUserIDKey = "userID"
	CtxRoleKey   = "userRole"
)

// Auth validates the access token cookie against the session store and
// injects the account id and role into the Gin context.
func Auth(sessions *application.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil || token == "" {
			response.AbortError(c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		claims, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "invalid access token", nil)
			return
		}
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxRoleKey, claims.Role)
		c.Next()
	}
}

// RequireOwner gates the admin endpoints; it must run after Auth.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRoleKey) != string(entity.RoleOwner) {
			response.AbortError(c, http.StatusForbidden, "owner role required", nil)
			return
		}
		c.Next()
	}
}

// CallerFrom builds the service-level caller identity from the request
// context set by Auth.
func CallerFrom(c *gin.Context) application.Caller {
	if c.GetString(CtxRoleKey) == string(entity.RoleOwner) {
		return application.Admin()
	}
	return application.Self(c.GetInt64(CtxUserIDKey))
}

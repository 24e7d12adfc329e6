package middlewares

import (
	"log/slog"
	"net/http"
	"strings"

	"civicsync-issues/models"
	authUtils "civicsync-issues/utils"

	"github.com/gin-gonic/gin"
)

const (
	callerKey = "caller"

	// AuthCookie is the cookie set on login and read as a fallback credential.
	AuthCookie = "auth_token"
)

// AuthMiddleware authenticates the request once and stores the caller identity
// on the context for the handlers behind it.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided", "code": "auth_required"})
			return
		}

		caller, err := authUtils.ParseToken(jwtSecret, tokenString)
		if err != nil {
			slog.Debug("token validation failed", "error", err, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token", "code": "auth_invalid"})
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// CallerFrom returns the identity stored by AuthMiddleware.
func CallerFrom(c *gin.Context) (models.Caller, bool) {
	v, exists := c.Get(callerKey)
	if !exists {
		return models.Caller{}, false
	}
	caller, ok := v.(models.Caller)
	return caller, ok
}

// Extracting token from "Bearer <token>" format, falling back to the session cookie
func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie(AuthCookie); err == nil {
		return cookie
	}
	return ""
}

package http

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/service"
	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

func bearer(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return token, ok && token != ""
}

// SessionFrom returns the session stored by AuthMiddleware
func SessionFrom(c *gin.Context) (*core.Session, bool) {
	v, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}
	session, ok := v.(*core.Session)
	return session, ok
}

// AuthMiddleware creates middleware that validates bearer session tokens
func AuthMiddleware(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		session, err := sessions.Session(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			case errors.Is(err, core.ErrTokenInvalidated):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been invalidated"})
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// RequireRole rejects sessions without one of roles; it runs after AuthMiddleware
func RequireRole(roles ...core.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := SessionFrom(c)
		if !ok || !slices.Contains(roles, session.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}

// CORS allows credentialed requests from the listed origins
func CORS(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && slices.Contains(origins, origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

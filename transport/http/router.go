package http

import (
	"net/http"
	"time"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/service"
	"github.com/gin-gonic/gin"
)

// RouterConfig controls the HTTP surface of the session service
type RouterConfig struct {
	AllowedOrigins []string
	SecureCookie   bool
	CookieTTL      time.Duration
}

// SetupRouter sets up the Gin router
func SetupRouter(sessions *service.SessionService, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), CORS(cfg.AllowedOrigins))

	// Create handlers
	handlers := NewSessionHandlers(sessions, cfg.SecureCookie, cfg.CookieTTL)

	// Session routes
	router.POST("/nonce", handlers.Nonce)
	router.POST("/verify", handlers.Verify)
	router.GET("/session", handlers.Session)
	router.POST("/signout", handlers.SignOut)

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(sessions))
	{
		api.GET("/me", handlers.Me)
		api.GET("/evaluator", RequireRole(core.RoleEvaluator), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"authorized": true})
		})
	}

	return router
}

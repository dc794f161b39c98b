package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// SetupRouter sets up the Gin router
func SetupRouter(sessions *Sessions, cookieSecure bool, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	handlers := NewLoginHandlers(sessions, cookieSecure)

	router.GET("/healthz", handlers.Health)
	router.GET("/login", handlers.Login)
	router.GET("/login/cancel", handlers.Cancel)

	// Routes bound to a running handshake
	login := router.Group("/login")
	login.Use(SessionMiddleware(sessions))
	{
		login.GET("/status", handlers.Status)
		login.POST("/select", handlers.Select)
		login.POST("/confirm", handlers.Confirm)
		login.POST("/retry", handlers.Retry)
	}

	return router
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// SessionCookie carries the handshake session ID
	SessionCookie = "portal_handshake"

	sessionKey = "handshakeSession"
)

// RequestLogger logs one line per request
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// SessionMiddleware resolves the handshake session from the cookie
func SessionMiddleware(sessions *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || id == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "No login in progress"})
			return
		}

		sess, ok := sessions.Get(id)
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Login session expired"})
			return
		}

		c.Set(sessionKey, sess)

		c.Next()
	}
}

func sessionFrom(c *gin.Context) *Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*Session)
	return sess
}

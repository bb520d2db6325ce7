package http

import (
	"net/http"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/service"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
)

// RequireSession rejects requests while no session is authenticated
func RequireSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := authService.Session()
		if !session.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		c.Set("userAddress", session.Address)

		c.Next()
	}
}

// RequestLogger logs every request once it completes
func RequestLogger(logger watermill.LoggerAdapter) gin.HandlerFunc {
	logger = logger.With(watermill.LogFields{"component": "http"})

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := watermill.LogFields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		if len(c.Errors) > 0 {
			logger.Error("Request failed", c.Errors.Last().Err, fields)
			return
		}
		logger.Debug("Request served", fields)
	}
}

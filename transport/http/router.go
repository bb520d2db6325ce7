package http

import (
	"net/http"

	"github.com/ArtCertify/ArtCertify-sub001/service"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
)

// SetupRouter sets up the Gin router. metrics may be nil.
func SetupRouter(authService *service.AuthService, ledger *service.SignatureLedger, metrics http.Handler, logger watermill.LoggerAdapter) *gin.Engine {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	// Create handlers
	handlers := NewAuthHandlers(authService, ledger)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/login", handlers.Login)
		auth.POST("/login/secret", handlers.LoginWithSecret)
		auth.POST("/logout", handlers.Logout)
		auth.GET("/session", handlers.Session)

		federation := auth.Group("/federation")
		federation.GET("/providers", handlers.Providers)
		federation.GET("/:provider/login", handlers.FederatedLogin)
		federation.GET("/callback", handlers.FederatedCallback)
		federation.POST("/link", handlers.LinkAddress)
	}

	// Routes that need an authenticated session
	protected := router.Group("/auth")
	protected.Use(RequireSession(authService))
	{
		protected.POST("/credential/revoke", handlers.RevokeCredential)
	}

	router.GET("/signatures/:address", handlers.Signature)

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	return router
}

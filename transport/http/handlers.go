package http

import (
	"errors"
	"net/http"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/service"
	"github.com/gin-gonic/gin"
)

// AuthHandlers contains HTTP handlers for the login surface
type AuthHandlers struct {
	authService *service.AuthService
	ledger      *service.SignatureLedger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, ledger *service.SignatureLedger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		ledger:      ledger,
	}
}

// Login handles manual address entry
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	session, err := h.authService.LoginWithAddress(c.Request.Context(), req.Address)
	if err != nil {
		writeError(c, err, "Authentication failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// LoginWithSecret handles login through a locally held secret
func (h *AuthHandlers) LoginWithSecret(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	session, err := h.authService.LoginWithSecret(c.Request.Context(), req.Secret)
	if err != nil {
		writeError(c, err, "Authentication failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Providers lists the configured identity providers
func (h *AuthHandlers) Providers(c *gin.Context) {
	providers := h.authService.Providers()
	out := make([]gin.H, 0, len(providers))
	for _, p := range providers {
		out = append(out, gin.H{"id": p.ID, "name": p.Name})
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

// FederatedLogin redirects to the provider authorization endpoint, or returns the URL when mode=json
func (h *AuthHandlers) FederatedLogin(c *gin.Context) {
	url, err := h.authService.BeginFederatedLogin(c.Request.Context(), c.Param("provider"))
	if err != nil {
		writeError(c, err, "Failed to start federated login")
		return
	}

	if c.Query("mode") == "json" {
		c.JSON(http.StatusOK, gin.H{"url": url})
		return
	}
	c.Redirect(http.StatusFound, url)
}

// FederatedCallback handles the return leg from the identity provider
func (h *AuthHandlers) FederatedCallback(c *gin.Context) {
	params := service.CallbackParams{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	}

	result, err := h.authService.CompleteFederatedLogin(c.Request.Context(), params)
	if errors.Is(err, core.ErrLinkingRequired) {
		c.JSON(http.StatusAccepted, gin.H{
			"phase":      result.Phase.String(),
			"subject_id": result.Assertion.SubjectID,
			"provider":   result.Assertion.ProviderID,
			"identity":   result.Assertion,
		})
		return
	}
	if err != nil {
		writeError(c, err, "Federated login failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"phase":   result.Phase.String(),
		"session": result.Session,
	})
}

// LinkAddress links the pending federated subject to an address and logs it in
func (h *AuthHandlers) LinkAddress(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	session, err := h.authService.LinkFederatedAddress(c.Request.Context(), req.Address)
	if err != nil {
		writeError(c, err, "Failed to link address")
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	if !h.authService.Logout(c.Request.Context()) {
		c.JSON(http.StatusConflict, gin.H{"error": "Logout already in progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// RevokeCredential invalidates the current credential
func (h *AuthHandlers) RevokeCredential(c *gin.Context) {
	if err := h.authService.RevokeCredential(c.Request.Context()); err != nil {
		writeError(c, err, "Failed to revoke credential")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Credential revoked"})
}

// Session returns the current session
func (h *AuthHandlers) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"session": h.authService.Session()})
}

// Signature returns the signature record of an address
func (h *AuthHandlers) Signature(c *gin.Context) {
	address := c.Param("address")
	if err := core.ValidateAddress(address); err != nil {
		writeError(c, err, "Invalid address")
		return
	}

	record, err := h.ledger.Lookup(c.Request.Context(), address)
	if err != nil {
		writeError(c, err, "Failed to read signature")
		return
	}

	c.JSON(http.StatusOK, record)
}

// writeError maps domain errors to status codes
func writeError(c *gin.Context, err error, fallback string) {
	statusCode := http.StatusInternalServerError
	errorMsg := fallback

	switch {
	case errors.Is(err, core.ErrInvalidAddressFormat):
		statusCode = http.StatusBadRequest
		errorMsg = "Invalid address format"
	case errors.Is(err, core.ErrInvalidSecret):
		statusCode = http.StatusBadRequest
		errorMsg = "Invalid secret"
	case errors.Is(err, core.ErrInvalidAuthorizationState):
		statusCode = http.StatusUnauthorized
		errorMsg = "Expired or unknown authorization state"
	case errors.Is(err, core.ErrProviderError):
		statusCode = http.StatusUnauthorized
		errorMsg = "Identity provider error"
	case errors.Is(err, core.ErrNoPendingLink):
		statusCode = http.StatusBadRequest
		errorMsg = "No pending federated login"
	case errors.Is(err, core.ErrUnknownProvider):
		statusCode = http.StatusNotFound
		errorMsg = "Unknown identity provider"
	}

	_ = c.Error(err)
	c.JSON(statusCode, gin.H{"error": errorMsg})
}

package core

import "errors"

var (
	// Recoverable authentication outcomes
	ErrInvalidAddressFormat      = errors.New("invalid wallet address format")
	ErrInvalidAuthorizationState = errors.New("expired or unknown authorization state")
	ErrProviderError             = errors.New("identity provider error")
	ErrLinkingRequired           = errors.New("wallet address linking required")
	ErrTokenExpired              = errors.New("token has expired")
	ErrReconnectionFailed        = errors.New("wallet reconnection failed")

	// Infrastructure and input errors
	ErrNotFound             = errors.New("not found")
	ErrStoreOperationFailed = errors.New("store operation failed")
	ErrUnknownProvider      = errors.New("unknown identity provider")
	ErrInvalidSecret        = errors.New("invalid wallet secret")
	ErrInvalidToken         = errors.New("invalid token")
	ErrNoPendingLink        = errors.New("no pending identity to link")
)

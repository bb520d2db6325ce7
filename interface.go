package artcertify

import (
	"context"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/service"
)

// Client represents the public interface for interacting with the session service
type Client interface {
	// Session returns the current session
	Session() core.Session

	// LoginWithAddress authenticates a manually entered address
	LoginWithAddress(ctx context.Context, address string) (core.Session, error)

	// LoginWithSecret derives the address from a locally held secret and authenticates it
	LoginWithSecret(ctx context.Context, secret string) (core.Session, error)

	// BeginFederatedLogin returns the authorization URL of an identity provider
	BeginFederatedLogin(ctx context.Context, providerID string) (string, error)

	// CompleteFederatedLogin handles the provider callback
	CompleteFederatedLogin(ctx context.Context, params service.CallbackParams) (*service.FederatedLogin, error)

	// LinkFederatedAddress links the pending federated subject to address
	LinkFederatedAddress(ctx context.Context, address string) (core.Session, error)

	// Logout ends the session; false means a logout was already running
	Logout(ctx context.Context) bool

	// Signature returns the signature record of the current address
	Signature() core.SignatureRecord
}

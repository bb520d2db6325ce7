package federation

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

type oidcClient struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// OIDCResolver exchanges authorization codes with OpenID Connect providers.
// Provider discovery runs on first use of each provider.
type OIDCResolver struct {
	providers   map[string]core.Provider
	redirectURL string

	mu      sync.Mutex
	clients map[string]*oidcClient
}

var _ ports.AssertionResolver = (*OIDCResolver)(nil)

// NewOIDCResolver creates a resolver for providers
func NewOIDCResolver(providers []core.Provider, redirectURL string) *OIDCResolver {
	byID := make(map[string]core.Provider, len(providers))
	for _, p := range providers {
		byID[p.ID] = p
	}
	return &OIDCResolver{
		providers:   byID,
		redirectURL: redirectURL,
		clients:     make(map[string]*oidcClient),
	}
}

func (r *OIDCResolver) client(ctx context.Context, providerID string) (*oidcClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[providerID]; ok {
		return c, nil
	}

	p, ok := r.providers[providerID]
	if !ok {
		return nil, core.ErrUnknownProvider
	}

	// Discover OIDC provider
	provider, err := oidc.NewProvider(ctx, p.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	c := &oidcClient{
		verifier: provider.Verifier(&oidc.Config{ClientID: p.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  r.redirectURL,
			Scopes:       p.Scopes,
		},
	}
	r.clients[providerID] = c
	return c, nil
}

// Resolve exchanges code, verifies the ID token and its nonce and maps the claims
func (r *OIDCResolver) Resolve(ctx context.Context, providerID, code, nonce string) (*core.IdentityAssertion, error) {
	c, err := r.client(ctx, providerID)
	if err != nil {
		return nil, err
	}

	// Exchange code for token
	oauth2Token, err := c.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", core.ErrProviderError)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in response: %w", core.ErrProviderError)
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", core.ErrProviderError)
	}

	if subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(nonce)) != 1 {
		return nil, fmt.Errorf("ID token nonce mismatch: %w", core.ErrProviderError)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	return AssertionFromClaims(providerID, idToken.Subject, claims)
}

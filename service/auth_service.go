package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/ThreeDotsLabs/watermill"
)

// Login methods
const (
	MethodManual    = "manual"
	MethodSecret    = "secret"
	MethodFederated = "federated"
)

// DeriveFunc turns a locally held secret into an account
type DeriveFunc func(secret string) (core.WalletAccount, error)

// FederatedLogin is the outcome of a completed callback
type FederatedLogin struct {
	Assertion *core.IdentityAssertion
	Session   core.Session
	Phase     AttemptPhase
}

// AuthService handles authentication business logic for the login surface.
// Every entry path applies the address rule before calling SessionManager.Login.
type AuthService struct {
	sessions   *SessionManager
	federation *FederationClient
	issuer     ports.CredentialIssuer
	connector  ports.AccountConnector
	derive     DeriveFunc
	notifier   ports.Notifier
	logger     watermill.LoggerAdapter

	credentialTTL time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	sessions *SessionManager,
	federation *FederationClient,
	issuer ports.CredentialIssuer,
	connector ports.AccountConnector,
	derive DeriveFunc,
	notifier ports.Notifier,
	logger watermill.LoggerAdapter,
	credentialTTL time.Duration,
) *AuthService {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if credentialTTL <= 0 {
		credentialTTL = 24 * time.Hour
	}
	return &AuthService{
		sessions:      sessions,
		federation:    federation,
		issuer:        issuer,
		connector:     connector,
		derive:        derive,
		notifier:      notifier,
		logger:        logger.With(watermill.LogFields{"component": "auth"}),
		credentialTTL: credentialTTL,
	}
}

// Session returns the current session
func (s *AuthService) Session() core.Session {
	return s.sessions.Session()
}

// LoginWithAddress authenticates a manually entered address
func (s *AuthService) LoginWithAddress(ctx context.Context, address string) (core.Session, error) {
	if err := core.ValidateAddress(address); err != nil {
		return core.Session{}, err
	}
	return s.login(ctx, address, WithMethod(MethodManual))
}

// LoginWithSecret derives an address from secret, connects it as the local wallet and
// authenticates it
func (s *AuthService) LoginWithSecret(ctx context.Context, secret string) (core.Session, error) {
	account, err := s.derive(secret)
	if err != nil {
		return core.Session{}, err
	}
	if err := core.ValidateAddress(account.Address); err != nil {
		return core.Session{}, err
	}

	if err := s.connector.Connect(ctx, account); err != nil {
		return core.Session{}, fmt.Errorf("failed to connect wallet: %w", err)
	}

	return s.login(ctx, account.Address, WithMethod(MethodSecret), WithWalletConnection())
}

// Providers lists the configured identity providers
func (s *AuthService) Providers() []core.Provider {
	return s.federation.Providers()
}

// BeginFederatedLogin returns the authorization URL of providerID
func (s *AuthService) BeginFederatedLogin(ctx context.Context, providerID string) (string, error) {
	return s.federation.BeginLogin(ctx, providerID)
}

// CompleteFederatedLogin handles the callback. A linked subject is logged in; an unlinked one
// returns the assertion together with core.ErrLinkingRequired.
func (s *AuthService) CompleteFederatedLogin(ctx context.Context, params CallbackParams) (*FederatedLogin, error) {
	result, err := s.federation.HandleCallback(ctx, params)
	if err != nil {
		return nil, err
	}

	out := &FederatedLogin{Assertion: result.Assertion, Phase: result.Phase}
	if result.LinkedAddress == "" {
		return out, core.ErrLinkingRequired
	}

	session, err := s.login(ctx, result.LinkedAddress, WithMethod(MethodFederated))
	if err != nil {
		return nil, err
	}
	out.Session = session
	return out, nil
}

// LinkFederatedAddress links the pending subject to address and logs it in
func (s *AuthService) LinkFederatedAddress(ctx context.Context, address string) (core.Session, error) {
	if err := core.ValidateAddress(address); err != nil {
		return core.Session{}, err
	}

	subject, err := s.federation.PendingSubject(ctx)
	if err != nil {
		return core.Session{}, err
	}

	if err := s.federation.LinkAddress(ctx, subject, address); err != nil {
		return core.Session{}, err
	}
	if err := s.federation.ClearPending(ctx); err != nil {
		s.logger.Error("Failed to clear pending subject", err, nil)
	}

	return s.login(ctx, address, WithMethod(MethodFederated))
}

// Logout logs out the current session; false means another logout was already running
func (s *AuthService) Logout(ctx context.Context) bool {
	return s.sessions.Logout(ctx)
}

// RevokeCredential deletes the cached credential and raises the credential-invalid signal
func (s *AuthService) RevokeCredential(ctx context.Context) error {
	if err := s.issuer.Revoke(ctx); err != nil {
		return err
	}
	if err := s.notifier.Notify(ctx, core.TopicCredentialInvalid, "revoked"); err != nil {
		return fmt.Errorf("failed to signal credential invalidation: %w", err)
	}
	return nil
}

func (s *AuthService) login(ctx context.Context, address string, opts ...LoginOption) (core.Session, error) {
	if _, err := s.issuer.Issue(ctx, address, s.credentialTTL); err != nil {
		return core.Session{}, fmt.Errorf("failed to issue credential: %w", err)
	}

	if err := s.sessions.Login(ctx, address, opts...); err != nil {
		// the session is authenticated in memory; only restoration is affected
		s.logger.Error("Failed to persist session", err, watermill.LogFields{"address": address})
	}

	return s.sessions.Session(), nil
}

// IsRecoverable reports whether err is one of the locally recovered authentication outcomes
func IsRecoverable(err error) bool {
	return errors.Is(err, core.ErrInvalidAddressFormat) ||
		errors.Is(err, core.ErrInvalidAuthorizationState) ||
		errors.Is(err, core.ErrProviderError) ||
		errors.Is(err, core.ErrLinkingRequired) ||
		errors.Is(err, core.ErrTokenExpired) ||
		errors.Is(err, core.ErrReconnectionFailed)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/ThreeDotsLabs/watermill"
	"golang.org/x/oauth2"
)

// AttemptPhase is the state of a single federated login attempt
type AttemptPhase int

const (
	PhaseIdle AttemptPhase = iota
	PhaseAuthorizationRequested
	PhaseCallbackReceived
	PhaseNeedsLinking
	PhaseResolved
	PhaseFailed
)

// String returns the phase name used in logs and responses
func (p AttemptPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAuthorizationRequested:
		return "authorization_requested"
	case PhaseCallbackReceived:
		return "callback_received"
	case PhaseNeedsLinking:
		return "needs_linking"
	case PhaseResolved:
		return "resolved"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CallbackParams are the parameters of the federated login return leg
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult is the outcome of a successful callback.
// LinkedAddress is empty when the subject still has to be linked to an address.
type CallbackResult struct {
	Assertion     *core.IdentityAssertion
	LinkedAddress string
	Phase         AttemptPhase
}

// FederationClient drives federated login attempts and owns the subject to address links
type FederationClient struct {
	states      *AuthorizationStateStore
	store       ports.Store
	resolver    ports.AssertionResolver
	providers   map[string]core.Provider
	redirectURL string
	logger      watermill.LoggerAdapter
	metrics     ports.Metrics

	// serializes read-modify-write of the links map
	linkMu sync.Mutex
}

// NewFederationClient creates a new federation client
func NewFederationClient(
	states *AuthorizationStateStore,
	store ports.Store,
	resolver ports.AssertionResolver,
	providers []core.Provider,
	redirectURL string,
	logger watermill.LoggerAdapter,
	metrics ports.Metrics,
) *FederationClient {
	byID := make(map[string]core.Provider, len(providers))
	for _, p := range providers {
		byID[p.ID] = p
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &FederationClient{
		states:      states,
		store:       store,
		resolver:    resolver,
		providers:   byID,
		redirectURL: redirectURL,
		logger:      logger.With(watermill.LogFields{"component": "federation"}),
		metrics:     metrics,
	}
}

// Providers returns the configured providers
func (f *FederationClient) Providers() []core.Provider {
	out := make([]core.Provider, 0, len(f.providers))
	for _, p := range f.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BeginLogin issues a fresh authorization state and returns the provider authorization URL.
// The redirect itself is left to the caller.
func (f *FederationClient) BeginLogin(ctx context.Context, providerID string) (string, error) {
	p, ok := f.providers[providerID]
	if !ok {
		return "", core.ErrUnknownProvider
	}

	st, err := f.states.IssueFor(ctx, providerID)
	if err != nil {
		return "", err
	}

	cfg := &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.AuthURL,
			TokenURL: p.TokenURL,
		},
		RedirectURL: f.redirectURL,
		Scopes:      p.Scopes,
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("nonce", st.Nonce),
		oauth2.SetAuthURLParam("prompt", "login"),
	}
	if p.ACRValues != "" {
		opts = append(opts, oauth2.SetAuthURLParam("acr_values", p.ACRValues))
	}

	f.logger.Info("Federated login requested", watermill.LogFields{
		"provider": providerID,
		"phase":    PhaseAuthorizationRequested.String(),
	})

	return cfg.AuthCodeURL(st.State, opts...), nil
}

// HandleCallback validates the callback, resolves the identity assertion and looks up its link
func (f *FederationClient) HandleCallback(ctx context.Context, params CallbackParams) (*CallbackResult, error) {
	if params.Error != "" {
		f.fail("provider_error", nil)
		return nil, fmt.Errorf("%s %s: %w", params.Error, params.ErrorDescription, core.ErrProviderError)
	}

	st, err := f.states.Consume(ctx, params.State)
	if err != nil {
		f.fail("invalid_state", err)
		return nil, err
	}

	if params.Code == "" {
		f.fail("provider_error", nil)
		return nil, fmt.Errorf("missing authorization code: %w", core.ErrProviderError)
	}

	f.logger.Debug("Federated callback received", watermill.LogFields{
		"provider": st.Provider,
		"phase":    PhaseCallbackReceived.String(),
	})

	assertion, err := f.resolver.Resolve(ctx, st.Provider, params.Code, st.Nonce)
	if err != nil {
		f.fail("resolve_failed", err)
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	linked, err := f.LinkedAddress(ctx, assertion.SubjectID)
	if err != nil {
		f.fail("link_lookup_failed", err)
		return nil, err
	}

	if linked != "" {
		f.metrics.ObserveCallback("resolved")
		return &CallbackResult{Assertion: assertion, LinkedAddress: linked, Phase: PhaseResolved}, nil
	}

	if err := f.store.Set(ctx, core.KeyPendingSubject, assertion.SubjectID, AuthorizationWindow); err != nil {
		f.fail("pending_store_failed", err)
		return nil, fmt.Errorf("failed to store pending subject: %w", err)
	}

	f.metrics.ObserveCallback("needs_linking")
	return &CallbackResult{Assertion: assertion, Phase: PhaseNeedsLinking}, nil
}

func (f *FederationClient) fail(outcome string, err error) {
	f.metrics.ObserveCallback(outcome)

	fields := watermill.LogFields{
		"outcome": outcome,
		"phase":   PhaseFailed.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	f.logger.Info("Federated login failed", fields)
}

// LinkedAddress returns the address linked to subjectID, or "" when none is linked.
// A stored address that fails the format rule counts as not linked.
func (f *FederationClient) LinkedAddress(ctx context.Context, subjectID string) (string, error) {
	links, err := f.links(ctx)
	if err != nil {
		return "", err
	}

	address, ok := links[subjectID]
	if !ok {
		return "", nil
	}
	if !core.IsValidAddress(address) {
		f.logger.Info("Ignoring malformed linked address", watermill.LogFields{"subject_links": len(links)})
		return "", nil
	}
	return address, nil
}

// LinkAddress upserts the subject to address link; the last write wins
func (f *FederationClient) LinkAddress(ctx context.Context, subjectID, address string) error {
	if err := core.ValidateAddress(address); err != nil {
		return err
	}

	f.linkMu.Lock()
	defer f.linkMu.Unlock()

	links, err := f.links(ctx)
	if err != nil {
		return err
	}
	links[subjectID] = address

	raw, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("failed to marshal links: %w", err)
	}
	if err := f.store.Set(ctx, core.KeySubjectLinks, string(raw), 0); err != nil {
		return fmt.Errorf("failed to store links: %w", err)
	}

	f.logger.Info("Subject linked to address", watermill.LogFields{"address": address})
	return nil
}

func (f *FederationClient) links(ctx context.Context) (map[string]string, error) {
	raw, err := f.store.Get(ctx, core.KeySubjectLinks)
	if errors.Is(err, core.ErrNotFound) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read links: %w", err)
	}

	links := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &links); err != nil {
		return nil, fmt.Errorf("failed to decode links: %w", err)
	}
	return links, nil
}

// PendingSubject returns the subject of the last callback that needs linking
func (f *FederationClient) PendingSubject(ctx context.Context) (string, error) {
	subject, err := f.store.Get(ctx, core.KeyPendingSubject)
	if errors.Is(err, core.ErrNotFound) {
		return "", core.ErrNoPendingLink
	}
	if err != nil {
		return "", fmt.Errorf("failed to read pending subject: %w", err)
	}
	return subject, nil
}

// ClearPending forgets the pending subject
func (f *FederationClient) ClearPending(ctx context.Context) error {
	if err := f.store.Delete(ctx, core.KeyPendingSubject); err != nil {
		return fmt.Errorf("failed to clear pending subject: %w", err)
	}
	return nil
}

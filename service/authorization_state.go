package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/jonboulle/clockwork"
)

const (
	// AuthorizationWindow bounds the time between issuing a state and consuming it
	AuthorizationWindow = 5 * time.Minute

	stateBytes = 16
)

// AuthorizationStateStore issues and consumes one-time authorization state/nonce pairs.
// At most one state is live: issuing replaces the previous one.
type AuthorizationStateStore struct {
	store ports.Store
	clock clockwork.Clock
}

// NewAuthorizationStateStore creates a new authorization state store
func NewAuthorizationStateStore(store ports.Store, clock clockwork.Clock) *AuthorizationStateStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuthorizationStateStore{
		store: store,
		clock: clock,
	}
}

// Issue generates a fresh state and nonce and persists them
func (s *AuthorizationStateStore) Issue(ctx context.Context) (core.AuthorizationState, error) {
	return s.IssueFor(ctx, "")
}

// IssueFor is Issue with the provider the attempt is addressed to
func (s *AuthorizationStateStore) IssueFor(ctx context.Context, providerID string) (core.AuthorizationState, error) {
	state, err := randomHex()
	if err != nil {
		return core.AuthorizationState{}, err
	}
	nonce, err := randomHex()
	if err != nil {
		return core.AuthorizationState{}, err
	}

	st := core.AuthorizationState{
		State:    state,
		Nonce:    nonce,
		IssuedAt: s.clock.Now().UnixMilli(),
		Provider: providerID,
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return core.AuthorizationState{}, fmt.Errorf("failed to marshal authorization state: %w", err)
	}

	// The store TTL only collects abandoned attempts; the window itself is checked on consumption.
	if err := s.store.Set(ctx, core.KeyAuthState, string(raw), AuthorizationWindow+time.Minute); err != nil {
		return core.AuthorizationState{}, fmt.Errorf("failed to store authorization state: %w", err)
	}

	return st, nil
}

// Consume validates candidate against the live state and deletes it.
// It fails with core.ErrInvalidAuthorizationState when no state exists, the state does not
// match, or the window has elapsed.
func (s *AuthorizationStateStore) Consume(ctx context.Context, candidate string) (core.AuthorizationState, error) {
	raw, err := s.store.Get(ctx, core.KeyAuthState)
	if errors.Is(err, core.ErrNotFound) {
		return core.AuthorizationState{}, core.ErrInvalidAuthorizationState
	}
	if err != nil {
		return core.AuthorizationState{}, fmt.Errorf("failed to read authorization state: %w", err)
	}

	var st core.AuthorizationState
	if err := json.Unmarshal([]byte(raw), &st); err != nil || st.State == "" {
		_, _ = s.store.CompareAndDelete(ctx, core.KeyAuthState, raw)
		return core.AuthorizationState{}, core.ErrInvalidAuthorizationState
	}

	if subtle.ConstantTimeCompare([]byte(candidate), []byte(st.State)) != 1 {
		return core.AuthorizationState{}, core.ErrInvalidAuthorizationState
	}

	if st.Age(s.clock.Now()) >= AuthorizationWindow {
		_, _ = s.store.CompareAndDelete(ctx, core.KeyAuthState, raw)
		return core.AuthorizationState{}, core.ErrInvalidAuthorizationState
	}

	deleted, err := s.store.CompareAndDelete(ctx, core.KeyAuthState, raw)
	if err != nil {
		return core.AuthorizationState{}, fmt.Errorf("failed to consume authorization state: %w", err)
	}
	if !deleted {
		return core.AuthorizationState{}, core.ErrInvalidAuthorizationState
	}

	return st, nil
}

// ValidateAndConsume reports whether candidate matched the live state, consuming it on success
func (s *AuthorizationStateStore) ValidateAndConsume(ctx context.Context, candidate string) bool {
	_, err := s.Consume(ctx, candidate)
	return err == nil
}

func randomHex() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

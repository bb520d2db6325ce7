package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/ArtCertify/ArtCertify-sub001/adapters/store"
	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProvider = core.Provider{
	ID:           "spid-test",
	Name:         "SPID Test",
	AuthURL:      "https://idp.example.it/authorization",
	TokenURL:     "https://idp.example.it/token",
	ClientID:     "https://rp.example.it",
	ClientSecret: "secret",
	Scopes:       []string{"openid", "profile"},
	ACRValues:    "https://www.spid.gov.it/SpidL2",
}

type federationFixture struct {
	clock    fakeClock
	store    ports.Store
	resolver *fakeResolver
	client   *FederationClient
}

func newFederationFixture(t *testing.T) *federationFixture {
	t.Helper()
	clock := newFakeClock()
	s := store.NewMemoryStore(clock)
	resolver := &fakeResolver{assertion: &core.IdentityAssertion{
		SubjectID:  "RSSMRA80A01H501U",
		GivenName:  "Mario",
		FamilyName: "Rossi",
	}}

	return &federationFixture{
		clock:    clock,
		store:    s,
		resolver: resolver,
		client: NewFederationClient(
			NewAuthorizationStateStore(s, clock),
			s,
			resolver,
			[]core.Provider{testProvider},
			"https://rp.example.it/auth/federation/callback",
			nil,
			nil,
		),
	}
}

// begin starts an attempt and returns the state carried by the authorization URL
func (f *federationFixture) begin(t *testing.T) url.Values {
	t.Helper()
	raw, err := f.client.BeginLogin(context.Background(), testProvider.ID)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query()
}

func TestFederation_BeginLoginURL(t *testing.T) {
	ctx := context.Background()
	f := newFederationFixture(t)

	raw, err := f.client.BeginLogin(ctx, testProvider.ID)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "idp.example.it", u.Host)
	assert.Equal(t, "/authorization", u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, testProvider.ClientID, q.Get("client_id"))
	assert.Equal(t, "https://rp.example.it/auth/federation/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid profile", q.Get("scope"))
	assert.Equal(t, testProvider.ACRValues, q.Get("acr_values"))
	assert.Equal(t, "login", q.Get("prompt"))
	assert.Len(t, q.Get("state"), 32)
	assert.Len(t, q.Get("nonce"), 32)

	// the URL carries the live state
	st, err := f.client.states.Consume(ctx, q.Get("state"))
	require.NoError(t, err)
	assert.Equal(t, q.Get("nonce"), st.Nonce)
	assert.Equal(t, testProvider.ID, st.Provider)
}

func TestFederation_BeginLoginUnknownProvider(t *testing.T) {
	f := newFederationFixture(t)
	_, err := f.client.BeginLogin(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrUnknownProvider)
}

func TestFederation_CallbackErrors(t *testing.T) {
	tests := []struct {
		name     string
		params   func(q url.Values) CallbackParams
		expected error
	}{
		{
			name: "provider error wins over a valid state",
			params: func(q url.Values) CallbackParams {
				return CallbackParams{Code: "c", State: q.Get("state"), Error: "access_denied"}
			},
			expected: core.ErrProviderError,
		},
		{
			name: "unknown state",
			params: func(q url.Values) CallbackParams {
				return CallbackParams{Code: "c", State: "forged"}
			},
			expected: core.ErrInvalidAuthorizationState,
		},
		{
			name: "missing code",
			params: func(q url.Values) CallbackParams {
				return CallbackParams{State: q.Get("state")}
			},
			expected: core.ErrProviderError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFederationFixture(t)
			q := f.begin(t)

			_, err := f.client.HandleCallback(context.Background(), tt.params(q))
			assert.ErrorIs(t, err, tt.expected)
			assert.Empty(t, f.resolver.nonces, "resolver must not be reached")
		})
	}
}

func TestFederation_CallbackResolverFailure(t *testing.T) {
	f := newFederationFixture(t)
	f.resolver.err = fmt.Errorf("exchange: %w", core.ErrProviderError)
	q := f.begin(t)

	_, err := f.client.HandleCallback(context.Background(), CallbackParams{Code: "c", State: q.Get("state")})
	assert.ErrorIs(t, err, core.ErrProviderError)
}

func TestFederation_CallbackNeedsLinkingThenResolved(t *testing.T) {
	ctx := context.Background()
	f := newFederationFixture(t)

	q := f.begin(t)
	result, err := f.client.HandleCallback(ctx, CallbackParams{Code: "c1", State: q.Get("state")})
	require.NoError(t, err)
	assert.Equal(t, PhaseNeedsLinking, result.Phase)
	assert.Empty(t, result.LinkedAddress)
	assert.Equal(t, "RSSMRA80A01H501U", result.Assertion.SubjectID)
	assert.Equal(t, []string{q.Get("nonce")}, f.resolver.nonces)
	assert.Equal(t, []string{testProvider.ID}, f.resolver.providers)

	pending, err := f.client.PendingSubject(ctx)
	require.NoError(t, err)
	assert.Equal(t, "RSSMRA80A01H501U", pending)

	require.NoError(t, f.client.LinkAddress(ctx, pending, validAddress))
	require.NoError(t, f.client.ClearPending(ctx))
	_, err = f.client.PendingSubject(ctx)
	assert.ErrorIs(t, err, core.ErrNoPendingLink)

	// the same callback cannot be replayed
	_, err = f.client.HandleCallback(ctx, CallbackParams{Code: "c1", State: q.Get("state")})
	assert.ErrorIs(t, err, core.ErrInvalidAuthorizationState)

	q = f.begin(t)
	result, err = f.client.HandleCallback(ctx, CallbackParams{Code: "c2", State: q.Get("state")})
	require.NoError(t, err)
	assert.Equal(t, PhaseResolved, result.Phase)
	assert.Equal(t, validAddress, result.LinkedAddress)
}

func TestFederation_MalformedLinkCountsAsAbsent(t *testing.T) {
	ctx := context.Background()
	f := newFederationFixture(t)

	require.NoError(t, f.store.Set(ctx, core.KeySubjectLinks, `{"RSSMRA80A01H501U":"not-an-address"}`, 0))

	q := f.begin(t)
	result, err := f.client.HandleCallback(ctx, CallbackParams{Code: "c", State: q.Get("state")})
	require.NoError(t, err)
	assert.Equal(t, PhaseNeedsLinking, result.Phase)
	assert.Empty(t, result.LinkedAddress)
}

func TestFederation_LinkAddressLastWriteWins(t *testing.T) {
	ctx := context.Background()
	f := newFederationFixture(t)

	require.NoError(t, f.client.LinkAddress(ctx, "SUBJECT", validAddress))
	require.NoError(t, f.client.LinkAddress(ctx, "SUBJECT", validAddress))

	linked, err := f.client.LinkedAddress(ctx, "SUBJECT")
	require.NoError(t, err)
	assert.Equal(t, validAddress, linked)

	before, err := f.store.Get(ctx, core.KeySubjectLinks)
	require.NoError(t, err)
	require.NoError(t, f.client.LinkAddress(ctx, "SUBJECT", validAddress))
	after, err := f.store.Get(ctx, core.KeySubjectLinks)
	require.NoError(t, err)
	assert.JSONEq(t, before, after, "relinking the same pair is idempotent")

	require.NoError(t, f.client.LinkAddress(ctx, "SUBJECT", otherAddress))
	linked, err = f.client.LinkedAddress(ctx, "SUBJECT")
	require.NoError(t, err)
	assert.Equal(t, otherAddress, linked)
}

func TestFederation_LinkAddressRejectsInvalidFormat(t *testing.T) {
	ctx := context.Background()
	f := newFederationFixture(t)

	for _, address := range []string{"", "short", validAddress[:57], validAddress + "A", "abcdefghijklmnopqrstuvwxyz234567abcdefghijklmnopqrstuvwxyz", validAddress[:57] + "1"} {
		err := f.client.LinkAddress(ctx, "SUBJECT", address)
		assert.ErrorIs(t, err, core.ErrInvalidAddressFormat, address)
	}

	_, err := f.store.Get(ctx, core.KeySubjectLinks)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestFederation_ConcurrentLinksAreAllKept(t *testing.T) {
	ctx := context.Background()
	f := newFederationFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, f.client.LinkAddress(ctx, fmt.Sprintf("SUBJECT-%d", i), validAddress))
		}(i)
	}
	wg.Wait()

	links, err := f.client.links(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 20)
}

func TestAttemptPhase_String(t *testing.T) {
	assert.Equal(t, "needs_linking", PhaseNeedsLinking.String())
	assert.Equal(t, "resolved", PhaseResolved.String())
	assert.Equal(t, "unknown", AttemptPhase(99).String())
}

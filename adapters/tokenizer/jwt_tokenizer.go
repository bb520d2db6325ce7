package tokenizer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const AudienceSession = "artcertify:session"

// JWTTokenizer issues ES256 session credentials, caches them in the store
// and validates the cached one by its expiry claim.
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	store   ports.Store
	clock   clockwork.Clock
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, store ports.Store, clock clockwork.Clock) *JWTTokenizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JWTTokenizer{
		signKey: signKey,
		store:   store,
		clock:   clock,
	}
}

var (
	_ ports.TokenValidator   = (*JWTTokenizer)(nil)
	_ ports.CredentialIssuer = (*JWTTokenizer)(nil)
)

// Sign converts claims for address into a signed token
func (j *JWTTokenizer) Sign(address, method string, ttl time.Duration) (string, error) {
	now := j.clock.Now()
	claims := CredentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		Method: method,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Parse verifies tokenStr and returns its claims. Expired tokens fail with core.ErrTokenExpired.
func (j *JWTTokenizer) Parse(tokenStr string) (*CredentialClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &CredentialClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithAudience(AudienceSession),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.clock.Now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, core.ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", core.ErrInvalidToken)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*CredentialClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	return claims, nil
}

// Issue signs a credential for address and caches it under wallet_auth_token
func (j *JWTTokenizer) Issue(ctx context.Context, address string, ttl time.Duration) (string, error) {
	token, err := j.Sign(address, "", ttl)
	if err != nil {
		return "", err
	}

	if err := j.store.Set(ctx, core.KeyAuthToken, token, ttl); err != nil {
		return "", fmt.Errorf("failed to cache credential: %w", err)
	}

	return token, nil
}

// Valid reports whether the cached credential exists and has not expired.
// Only store failures are returned as errors.
func (j *JWTTokenizer) Valid(ctx context.Context) (bool, error) {
	token, err := j.store.Get(ctx, core.KeyAuthToken)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read credential: %w", err)
	}

	if _, err := j.Parse(token); err != nil {
		return false, nil
	}
	return true, nil
}

// Revoke deletes the cached credential
func (j *JWTTokenizer) Revoke(ctx context.Context) error {
	if err := j.store.Delete(ctx, core.KeyAuthToken); err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
	}
	return nil
}

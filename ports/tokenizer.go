package ports

import (
	"context"
	"time"
)

// TokenValidator answers whether the current credential is still valid
type TokenValidator interface {
	Valid(ctx context.Context) (bool, error)
}

// CredentialIssuer issues and revokes the credential cached for the current session
type CredentialIssuer interface {
	Issue(ctx context.Context, address string, ttl time.Duration) (string, error)
	Revoke(ctx context.Context) error
}

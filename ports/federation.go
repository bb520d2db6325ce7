package ports

import (
	"context"

	"github.com/ArtCertify/ArtCertify-sub001/core"
)

// AssertionResolver exchanges an authorization code for an identity assertion
type AssertionResolver interface {
	Resolve(ctx context.Context, providerID, code, nonce string) (*core.IdentityAssertion, error)
}
